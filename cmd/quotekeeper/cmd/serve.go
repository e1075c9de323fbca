package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/quotekeeper/internal/cache"
	"github.com/solatis/quotekeeper/internal/core/api"
	"github.com/solatis/quotekeeper/internal/core/config"
	"github.com/solatis/quotekeeper/internal/core/db"
	"github.com/solatis/quotekeeper/internal/core/httpapi"
	"github.com/solatis/quotekeeper/internal/core/server"
	"github.com/solatis/quotekeeper/internal/events"
	"github.com/solatis/quotekeeper/internal/tracing"
)

const shutdownGrace = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC API and HTTP gateway",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "listen host for both servers")
	serveCmd.Flags().Int("grpc-port", 50051, "gRPC server port")
	serveCmd.Flags().Int("http-port", 8080, "HTTP gateway port")
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("host") {
		host, _ := cmd.Flags().GetString("host")
		cfg.Server.GRPCHost = host
		cfg.Server.HTTPHost = host
	}
	if cmd.Flags().Changed("grpc-port") {
		cfg.Server.GRPCPort, _ = cmd.Flags().GetInt("grpc-port")
	}
	if cmd.Flags().Changed("http-port") {
		cfg.Server.HTTPPort, _ = cmd.Flags().GetInt("http-port")
	}
	return config.Validate(cfg)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyServeFlags(cmd, cfg); err != nil {
		return err
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := requireMigrated(ctx, database); err != nil {
		return err
	}

	store, err := db.NewStore(database)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	tp, err := tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer shutdownWithGrace(tp.Shutdown, "tracing")

	c, err := cache.New(ctx, cfg.Cache.Backend, cache.RedisOptions{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
		Prefix:   "quotekeeper:",
	})
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer c.Close()

	publisher, err := events.New(events.Options{
		Backend:  cfg.Events.Backend,
		AMQPURL:  cfg.Events.AMQPURL,
		Exchange: cfg.Events.Exchange,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create event publisher: %w", err)
	}
	defer publisher.Close()

	svc, err := api.NewQuoteService(api.Deps{
		Store:     store,
		Options:   cache.NewOptionsCache(c, api.StoreOptionsLoader(store), cfg.Cache.OptionsTTL, logger),
		Publisher: publisher,
		Config:    cfg.Quotes,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(cfg.Server, api.NewGRPCHandler(svc), logger)
	if err != nil {
		return fmt.Errorf("failed to create grpc server: %w", err)
	}
	router := httpapi.NewRouter(httpapi.NewHandler(svc, store, logger), cfg.Server)
	httpServer := server.NewHTTPServer(cfg.Server, router)

	logger.Info("starting quotekeeper",
		"version", Version,
		"grpc_addr", cfg.Server.GRPCAddr(),
		"http_addr", cfg.Server.HTTPAddr(),
		"cache", cfg.Cache.Backend,
		"events", cfg.Events.Backend,
		"tracing", cfg.Tracing.Enabled)

	errChan := make(chan error, 2)
	go func() { errChan <- grpcServer.Start(ctx) }()
	go func() { errChan <- httpServer.Start(ctx) }()

	var runErr error
	select {
	case runErr = <-errChan:
		logger.Error("server stopped", "error", runErr)
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return errors.Join(
		runErr,
		httpServer.Shutdown(shutdownCtx),
		grpcServer.Shutdown(shutdownCtx),
	)
}

func shutdownWithGrace(fn func(context.Context) error, what string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.Warn("shutdown failed", "component", what, "error", err)
	}
}
