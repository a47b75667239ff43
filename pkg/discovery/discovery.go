package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/example/shopcart/pkg/config"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

type ServiceDiscovery struct {
	client *clientv3.Client
	config *config.EtcdConfig
	logger *zap.Logger
	lease  clientv3.LeaseID
}

type ServiceInstance struct {
	Name string
	Host string
	Port int
}

func (i *ServiceInstance) Addr() string {
	return net.JoinHostPort(i.Host, strconv.Itoa(i.Port))
}

func NewServiceDiscovery(cfg *config.EtcdConfig, logger *zap.Logger) (*ServiceDiscovery, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Logger:      logger.Named("etcd-client"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &ServiceDiscovery{
		client: cli,
		config: cfg,
		logger: logger.Named("discovery"),
	}, nil
}

func serviceKey(prefix string, instance *ServiceInstance) string {
	return prefix + instance.Name + "/" + instance.Addr()
}

// parseInstance turns a registered "host:port" value back into an instance.
func parseInstance(name, value string) (*ServiceInstance, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(value))
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return &ServiceInstance{Name: name, Host: host, Port: port}, nil
}

// Register puts the instance under a lease and keeps the lease alive until ctx is done.
func (sd *ServiceDiscovery) Register(ctx context.Context, instance *ServiceInstance) error {
	ttl := sd.config.LeaseTTL
	if ttl <= 0 {
		ttl = 30
	}

	lease, err := sd.client.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}

	key := serviceKey(sd.config.Prefix, instance)
	if _, err := sd.client.Put(ctx, key, instance.Addr(), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	ch, err := sd.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return fmt.Errorf("failed to keep alive: %w", err)
	}
	sd.lease = lease.ID

	go func() {
		for range ch {
		}
		sd.logger.Info("Lease keep-alive stopped", zap.String("key", key))
	}()

	sd.logger.Info("Service registered", zap.String("key", key), zap.Int64("ttl", ttl))
	return nil
}

func (sd *ServiceDiscovery) Discover(ctx context.Context, serviceName string) ([]*ServiceInstance, error) {
	key := sd.config.Prefix + serviceName + "/"

	resp, err := sd.client.Get(ctx, key, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to discover service: %w", err)
	}

	return instancesFrom(serviceName, resp.Kvs, sd.logger), nil
}

// instancesFrom decodes registered entries, skipping malformed ones.
func instancesFrom(serviceName string, kvs []*mvccpb.KeyValue, logger *zap.Logger) []*ServiceInstance {
	var instances []*ServiceInstance
	for _, kv := range kvs {
		instance, err := parseInstance(serviceName, string(kv.Value))
		if err != nil {
			logger.Warn("Skipping malformed service entry",
				zap.String("key", string(kv.Key)), zap.Error(err))
			continue
		}
		instances = append(instances, instance)
	}
	return instances
}

func (sd *ServiceDiscovery) Deregister(ctx context.Context, instance *ServiceInstance) error {
	if _, err := sd.client.Delete(ctx, serviceKey(sd.config.Prefix, instance)); err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}
	if sd.lease != 0 {
		if _, err := sd.client.Revoke(ctx, sd.lease); err != nil {
			sd.logger.Warn("Failed to revoke lease", zap.Error(err))
		}
	}
	return nil
}

func (sd *ServiceDiscovery) Close() error {
	return sd.client.Close()
}
