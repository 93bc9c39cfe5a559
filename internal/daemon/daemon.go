package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/plano-ai/plano/internal/api"
	"github.com/plano-ai/plano/internal/app/engagement"
	"github.com/plano-ai/plano/internal/app/logbook"
	"github.com/plano-ai/plano/internal/app/planner"
	"github.com/plano-ai/plano/internal/domain"
	"github.com/plano-ai/plano/internal/health"
	"github.com/plano-ai/plano/internal/infra/badgerkv"
	"github.com/plano-ai/plano/internal/infra/interpret"
	"github.com/plano-ai/plano/internal/infra/sqlite"
	"github.com/plano-ai/plano/internal/logger"
)

// Daemon is the plano runtime. It wires together all services.
type Daemon struct {
	Config   Config
	Store    domain.KVStore
	Location *time.Location

	// Backend is nil when the configured service backend could not be built.
	Backend interpret.Backend

	Notifications *engagement.NotificationService
	Plans         *planner.PlanService
	Progress      *engagement.ProgressService
	Logbook       *logbook.Logbook
	Health        *health.Checker
	Server        *api.Server

	log    *zap.Logger
	cancel context.CancelFunc
}

// New loads .env files and config, configures logging and wires the daemon.
func New() (*Daemon, error) {
	if err := LoadEnv(); err != nil {
		return nil, err
	}
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development}); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return NewWithConfig(cfg, LoadSecrets())
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config, secrets Secrets) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, _ := cfg.Location()
	log := logger.Named("daemon")

	store, notifLog, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	d := &Daemon{Config: cfg, Store: store, Location: loc, log: log}

	backend, err := interpret.New(interpret.Config{
		Backend:           cfg.Services.Backend,
		BaseURL:           cfg.Services.BaseURL,
		Timeout:           cfg.ServiceTimeout(),
		Token:             secrets.ServiceToken,
		RequestsPerMinute: cfg.Services.RequestsPerMinute,
		OpenAIKey:         secrets.OpenAIKey,
		OpenAIModel:       cfg.Services.OpenAIModel,
		OpenAIBaseURL:     cfg.Services.OpenAIBaseURL,
		Retry:             cfg.RetryConfig(),
	})
	if err != nil {
		log.Warn("service backend unavailable; plan import and photo analysis disabled",
			zap.String("backend", cfg.Services.Backend), zap.Error(err))
	} else {
		d.Backend = backend
	}

	d.Notifications = engagement.NewNotificationService(notifLog)

	d.Plans, err = planner.NewPlanService(store, d.Backend, d.Notifications)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load plan: %w", err)
	}

	d.Progress, err = engagement.NewProgressService(store, d.Notifications, engagement.ProgressConfig{
		Location:   loc,
		PerfectDay: cfg.Progress.PerfectDay,
		DayPlan:    d.Plans.Day,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load progress: %w", err)
	}

	d.Logbook = logbook.New(d.Plans, d.Progress, d.Backend, logbook.Config{
		RequirePhotos: cfg.Progress.RequirePhotos,
		Location:      loc,
	})

	d.Health = health.NewChecker(store, cfg.StorageDir())

	d.Server = api.NewServer(api.Services{
		Plans:         d.Plans,
		Progress:      d.Progress,
		Logbook:       d.Logbook,
		Notifications: d.Notifications,
		Health:        d.Health,
	})
	if cfg.Telemetry.Prometheus {
		d.Server.EnableMetrics()
	}

	log.Debug("daemon ready",
		zap.String("driver", cfg.Storage.Driver),
		zap.String("backend", cfg.Services.Backend),
		zap.String("timezone", loc.String()),
	)
	return d, nil
}

// openStore opens the configured KV store. Only the sqlite driver also
// provides a persistent notification log.
func openStore(cfg Config) (domain.KVStore, engagement.NotificationLog, error) {
	dir := cfg.StorageDir()
	switch cfg.Storage.Driver {
	case "badger":
		bc := badgerkv.DefaultConfig(filepath.Join(dir, "badger"))
		bc.Logger = logger.Named("badger")
		s, err := badgerkv.Open(bc)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger store: %w", err)
		}
		return s, nil, nil
	default:
		db, err := sqlite.Open(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		return db, db, nil
	}
}

// InterpretAvailable reports whether plan import and photo analysis can run.
func (d *Daemon) InterpretAvailable() bool { return d.Backend != nil }

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.Health.Run(ctx)

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		_ = httpServer.Shutdown(shutdownCtx)
	}()

	fmt.Printf("plano serving on http://%s\n", addr)
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}
	if d.Backend == nil {
		fmt.Printf("  Services: unavailable (%s backend not configured)\n", d.Config.Services.Backend)
	}
	d.log.Info("serving", zap.String("addr", addr))

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			d.log.Warn("close store", zap.Error(err))
		}
	}
	logger.Sync()
}
