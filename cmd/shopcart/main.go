package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/shopcart/gateway"
	"github.com/example/shopcart/pkg/cart"
	"github.com/example/shopcart/pkg/config"
	"github.com/example/shopcart/pkg/discovery"
	"github.com/example/shopcart/pkg/grpc"
	"github.com/example/shopcart/pkg/logger"
	"github.com/example/shopcart/pkg/notify"
	"github.com/example/shopcart/pkg/repository"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting shopcart",
		zap.String("name", cfg.Server.Name),
		zap.String("grpc", cfg.Server.Addr()),
		zap.String("http", cfg.Gateway.Addr()),
		zap.String("order_sink", cfg.OrderSink.Driver))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mongoRepo, err := repository.NewMongoRepository(&cfg.MongoDB)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer mongoRepo.Close(context.Background())

	redisRepo := repository.NewRedisRepository(&cfg.Redis)
	defer redisRepo.Close()
	if err := redisRepo.Ping(ctx); err != nil {
		log.Warn("Redis connection failed, cart will not survive restarts", zap.Error(err))
	} else {
		log.Info("Redis connected successfully")
	}

	var sink cart.OrderSink = mongoRepo
	if cfg.OrderSink.Driver == "mysql" {
		sqlRepo, err := repository.NewSQLRepository(&cfg.MySQL)
		if err != nil {
			log.Fatal("Failed to connect to MySQL", zap.Error(err))
		}
		defer sqlRepo.Close()
		sink = sqlRepo
	}

	system := actor.NewActorSystem()
	notifier, err := notify.NewNotifier(system, log)
	if err != nil {
		log.Fatal("Failed to start notifier", zap.Error(err))
	}
	defer notifier.Close()

	controller := cart.NewController(mongoRepo, sink, redisRepo, notifier, cart.Options{
		CartKey:           cfg.Checkout.CartKey,
		WhatsAppHost:      cfg.Checkout.WhatsAppHost,
		WhatsAppRecipient: cfg.Checkout.WhatsAppRecipient,
		CartNoticeTTL:     cfg.Checkout.CartNoticeTTL,
		OrderNoticeTTL:    cfg.Checkout.OrderNoticeTTL,
	}, log)

	if err := controller.Restore(ctx); err != nil {
		log.Warn("Starting with an empty cart", zap.Error(err))
	}
	controller.LoadCatalog(ctx)

	grpcServer := grpc.NewCartServer(&cfg.Server, controller, log)
	gw := gateway.NewGateway(&cfg.Gateway, controller, notifier, log)
	gw.SetupRoutes()

	serverErr := make(chan error, 2)
	go func() {
		if err := grpcServer.Start(); err != nil {
			serverErr <- fmt.Errorf("grpc: %w", err)
		}
	}()
	go func() {
		if err := gw.Start(); err != nil {
			serverErr <- fmt.Errorf("gateway: %w", err)
		}
	}()

	var sd *discovery.ServiceDiscovery
	instance := &discovery.ServiceInstance{
		Name: cfg.Server.Name,
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}
	if cfg.Etcd.Enabled {
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd, log)
		if err != nil {
			log.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		} else if err := sd.Register(ctx, instance); err != nil {
			log.Warn("Failed to register service", zap.Error(err))
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("Received shutdown signal")
	case err := <-serverErr:
		log.Error("Server error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if sd != nil {
		if err := sd.Deregister(shutdownCtx, instance); err != nil {
			log.Error("Failed to deregister service", zap.Error(err))
		}
		sd.Close()
	}

	if err := gw.Shutdown(shutdownCtx); err != nil {
		log.Error("Gateway shutdown failed", zap.Error(err))
	}
	grpcServer.Stop()

	log.Info("Shopcart stopped")
}
