package notify

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// Notification is a transient user message that disappears at ExpiresAt.
type Notification struct {
	ID        uint64    `json:"id"`
	Message   string    `json:"message"`
	PostedAt  time.Time `json:"postedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Messages
type postNotification struct {
	Notification Notification
}

type listActive struct {
	Now time.Time
}

type activeNotifications struct {
	Notifications []Notification
}

// notificationActor owns the list of notifications; only its Receive touches it.
type notificationActor struct {
	logger  *zap.Logger
	pending []Notification
}

func (a *notificationActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *postNotification:
		a.pending = append(a.pending, msg.Notification)
		a.logger.Info("Notification posted",
			zap.Uint64("id", msg.Notification.ID),
			zap.String("message", msg.Notification.Message),
			zap.Time("expires_at", msg.Notification.ExpiresAt))

	case *listActive:
		a.prune(msg.Now)
		out := make([]Notification, len(a.pending))
		copy(out, a.pending)
		ctx.Respond(&activeNotifications{Notifications: out})

	case *actor.Started:
		a.logger.Info("Notification actor started")

	case *actor.Stopped:
		a.logger.Info("Notification actor stopped")
	}
}

func (a *notificationActor) prune(now time.Time) {
	kept := a.pending[:0]
	for _, n := range a.pending {
		if now.Before(n.ExpiresAt) {
			kept = append(kept, n)
		}
	}
	a.pending = kept
}

// Notifier posts notifications to a dedicated actor. Notify never blocks.
type Notifier struct {
	root    *actor.RootContext
	pid     *actor.PID
	seq     atomic.Uint64
	now     func() time.Time
	timeout time.Duration
}

func NewNotifier(system *actor.ActorSystem, logger *zap.Logger) (*Notifier, error) {
	props := actor.PropsFromProducer(func() actor.Actor {
		return &notificationActor{logger: logger.Named("notification-actor")}
	})
	pid, err := system.Root.SpawnNamed(props, "notification-actor")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn notification actor: %w", err)
	}

	return &Notifier{
		root:    system.Root,
		pid:     pid,
		now:     time.Now,
		timeout: 2 * time.Second,
	}, nil
}

func (n *Notifier) Notify(message string, autoDismiss time.Duration) {
	now := n.now()
	n.root.Send(n.pid, &postNotification{Notification: Notification{
		ID:        n.seq.Add(1),
		Message:   message,
		PostedAt:  now,
		ExpiresAt: now.Add(autoDismiss),
	}})
}

// Active returns the notifications that have not been dismissed yet, oldest first.
func (n *Notifier) Active(ctx context.Context) ([]Notification, error) {
	timeout := n.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	res, err := n.root.RequestFuture(n.pid, &listActive{Now: n.now()}, timeout).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	active, ok := res.(*activeNotifications)
	if !ok {
		return nil, fmt.Errorf("unexpected notification response %T", res)
	}
	return active.Notifications, nil
}

func (n *Notifier) Close() error {
	return n.root.StopFuture(n.pid).Wait()
}
