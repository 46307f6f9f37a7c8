package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/reseller/internal/adapter/handler"
	"github.com/rl1809/reseller/internal/adapter/handler/rpc"
	"github.com/rl1809/reseller/internal/adapter/storage"
	"github.com/rl1809/reseller/internal/config"
	"github.com/rl1809/reseller/internal/core/service"
	"github.com/rl1809/reseller/internal/logging"
	"github.com/rl1809/reseller/internal/metrics"
	"github.com/rl1809/reseller/internal/port"
)

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	return cmd
}

// backends holds the opened connections and the adapters built on them.
type backends struct {
	repo    port.RegistryRepository
	cache   port.CacheRepository
	sink    port.EventSink
	closers []func() error
}

func (b *backends) close(logger *zap.SugaredLogger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			logger.Warnw("failed to close connection", "error", err)
		}
	}
}

func openBackends(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*backends, error) {
	b := &backends{}

	var mysqlAdapter *storage.MySQLAdapter
	if cfg.NeedsMySQL() {
		db, err := sql.Open("mysql", cfg.MySQL.DSN)
		if err != nil {
			return b, fmt.Errorf("failed to connect mysql: %w", err)
		}
		b.closers = append(b.closers, db.Close)
		db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

		if err := db.PingContext(ctx); err != nil {
			return b, fmt.Errorf("failed to ping mysql: %w", err)
		}
		logger.Info("connected to mysql")

		mysqlAdapter = storage.NewMySQLAdapter(db)
		if cfg.MySQL.Migrate {
			if err := mysqlAdapter.Migrate(ctx); err != nil {
				return b, err
			}
		}
	}

	var redisAdapter *storage.RedisAdapter
	if cfg.NeedsRedis() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		b.closers = append(b.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return b, fmt.Errorf("failed to connect redis: %w", err)
		}
		logger.Info("connected to redis")
		redisAdapter = storage.NewRedisAdapter(rdb)
	}

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		b.repo = storage.NewMemoryAdapter()
	case config.BackendRedis:
		b.repo = redisAdapter
	case config.BackendMySQL:
		b.repo = mysqlAdapter
	case config.BackendDynamoDB:
		client, err := storage.NewDynamoDBClient(ctx, cfg.DynamoDB.Region, cfg.DynamoDB.Endpoint,
			cfg.DynamoDB.AccessKey, cfg.DynamoDB.SecretKey)
		if err != nil {
			return b, err
		}
		logger.Infow("dynamodb client initialized", "table", cfg.DynamoDB.Table, "region", cfg.DynamoDB.Region)
		b.repo = storage.NewDynamoDBAdapter(client, cfg.DynamoDB.Table,
			cfg.DynamoDB.AppendAttempts, cfg.DynamoDB.AppendBackoff)
	}

	if cfg.Storage.Idempotency {
		if redisAdapter != nil {
			b.cache = redisAdapter
		} else {
			b.cache = storage.NewMemoryCache(cfg.Storage.IdempotencyTTL)
		}
	}

	if cfg.Journal.Sink == config.BackendMySQL {
		b.sink = mysqlAdapter
	} else {
		b.sink = storage.NewLogJournal(logger)
	}

	logger.Infow("storage ready", "backend", cfg.Storage.Backend, "journal", cfg.Journal.Sink,
		"idempotency", cfg.Storage.Idempotency)
	return b, nil
}

func runServe(parent context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.Log.Debug, cfg.Log.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg, logger)
	defer b.close(logger)
	if err != nil {
		return err
	}

	// Metrics
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promRegistry)

	// Initialize service
	registryService := service.NewRegistryService(b.repo, b.cache, cfg.Journal.QueueSize,
		service.WithLogger(logger.Named("registry")),
		service.WithMetrics(m),
	)

	// Start journal workers
	var wg sync.WaitGroup
	for i := 0; i < cfg.Journal.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			service.RunJournalWorker(id, registryService.Events(), b.sink, logger.Named("journal"), m)
		}(i)
	}
	logger.Infof("started %d journal workers", cfg.Journal.Workers)

	var grpcServer *grpc.Server
	if cfg.GRPCAddr != "" {
		grpcServer = grpc.NewServer()
		rpc.RegisterSellerRegistryServer(grpcServer, handler.NewGRPCHandler(registryService, logger.Named("grpc")))

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("failed to listen: %w", err)
		}

		go func() {
			logger.Infof("gRPC server listening on %s", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Errorw("gRPC server error", "error", err)
			}
		}()
	}

	var httpServer *http.Server
	if cfg.HTTPAddr != "" {
		httpHandler := handler.NewHTTPHandler(registryService, logger.Named("http"))
		httpServer = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           httpHandler.Router(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			logger.Infof("HTTP server listening on %s", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logger.Errorw("HTTP server error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down...")

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warnw("HTTP shutdown", "error", err)
		}
		logger.Info("HTTP server stopped")
	}

	if grpcServer != nil {
		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")
	}

	// Close event queue and wait for workers
	registryService.Close()
	wg.Wait()
	logger.Info("journal workers stopped")

	return nil
}
