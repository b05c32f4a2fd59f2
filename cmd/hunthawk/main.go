package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"

	"github.com/hunthawk-systems/hunthawk/internal/campaign"
	"github.com/hunthawk-systems/hunthawk/internal/config"
	"github.com/hunthawk-systems/hunthawk/internal/connector"
	"github.com/hunthawk-systems/hunthawk/internal/events"
	"github.com/hunthawk-systems/hunthawk/internal/guard"
	"github.com/hunthawk-systems/hunthawk/internal/handlers"
	"github.com/hunthawk-systems/hunthawk/internal/logging"
	"github.com/hunthawk-systems/hunthawk/internal/repository"
	"github.com/hunthawk-systems/hunthawk/internal/scheduler"
	"github.com/hunthawk-systems/hunthawk/internal/server"
	"github.com/hunthawk-systems/hunthawk/internal/service"
	"github.com/hunthawk-systems/hunthawk/internal/tasks"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.ErrorContext(context.Background(), "engine exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connString := cfg.Database.Postgres.ConnString()

	log.InfoContext(ctx, "running database migrations")
	m, err := migrate.New("file://migrations", connString)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	repo, err := repository.NewPostgresRepository(ctx, connString)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer repo.Close()

	var tracker tasks.Tracker
	if cfg.Redis.Enabled {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer client.Close()
		tracker = tasks.NewRedisTracker(client)
		log.InfoContext(ctx, "task tracking backed by redis")
	} else {
		tracker = tasks.NewMemoryTracker()
		log.InfoContext(ctx, "task tracking is in-memory, task state is lost on restart")
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.NATS.Enabled {
		np, err := events.NewNATSPublisher(cfg.NATS, log)
		if err != nil {
			return fmt.Errorf("failed to connect to nats: %w", err)
		}
		defer np.Close()
		publisher = np
	}

	registry := connector.NewRegistry()
	g := guard.New(repo, cfg.Campaign, publisher, log)
	engine := campaign.NewEngine(repo, registry, g, publisher, tracker, cfg.Campaign, log)
	runner := tasks.NewRunner(tracker, log)
	defer runner.Shutdown()
	svc := service.New(repo, registry, engine, runner, tracker, publisher, cfg.Campaign, cfg.Workflow, log)

	// Connectors report soft query failures through the service, so they are
	// registered after it.
	if cfg.Connectors.OpenSearch.Enabled {
		osc, err := connector.NewOpenSearchConnector(cfg.Connectors.OpenSearch, cfg.Campaign.MaxHostsThreshold, svc, log)
		if err != nil {
			return fmt.Errorf("failed to build opensearch connector: %w", err)
		}
		registry.Register("opensearch", osc)
	}
	if cfg.Connectors.SQL.Enabled {
		sc, err := connector.NewSQLConnector(cfg.Connectors.SQL, svc, log)
		if err != nil {
			return fmt.Errorf("failed to build sql connector: %w", err)
		}
		defer sc.Close()
		registry.Register("sql", sc)
	}
	if len(registry.Names()) == 0 {
		log.WarnContext(ctx, "no connectors configured, campaigns will fail until one is enabled")
	}

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(svc, cfg.Scheduler, log)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	h := handlers.NewHandler(svc, log)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.InfoContext(ctx, "hunt engine listening", "addr", srv.Addr, "connectors", registry.Names())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.InfoContext(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.InfoContext(context.Background(), "stopped gracefully")
	return nil
}
