package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/grantflow/internal/config"
	"github.com/kirillkom/grantflow/internal/core/domain"
	"github.com/kirillkom/grantflow/internal/core/ports"
	"github.com/kirillkom/grantflow/internal/core/usecase"
	"github.com/kirillkom/grantflow/internal/core/validation"
	"github.com/kirillkom/grantflow/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/grantflow/internal/infrastructure/gateway"
	"github.com/kirillkom/grantflow/internal/infrastructure/llm/adk"
	"github.com/kirillkom/grantflow/internal/infrastructure/queue/nats"
	"github.com/kirillkom/grantflow/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/grantflow/internal/infrastructure/resilience"
	"github.com/kirillkom/grantflow/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/grantflow/internal/infrastructure/storage/s3"
)

// Metrics is what the API process feeds from the core and the gateway.
type Metrics interface {
	ports.GatewayMetrics
	ports.WorkflowMetrics
	RecordBreakerTransition(operation, from, to string)
}

type Options struct {
	Logger  *slog.Logger
	Metrics Metrics
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Locations *validation.LocationValidator
	Gateway   *gateway.Gateway
	Workflow  *usecase.WorkflowService
	Exports   *usecase.ExportService
	Archive   ports.ExportArchive

	closeFns []func()
}

// New wires the session side: gateway, workflow and exports. NATS and
// Postgres are attached only when configured.
func New(ctx context.Context, cfg config.Config, opts Options) (_ *App, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	locations, err := loadLocations(cfg.LocationVocabularyPath)
	if err != nil {
		return nil, err
	}
	app.Locations = locations

	var (
		gatewayMetrics  ports.GatewayMetrics  = ports.NoopGatewayMetrics{}
		workflowMetrics ports.WorkflowMetrics = ports.NoopWorkflowMetrics{}
	)
	executorOpts := []resilience.Option{resilience.WithLogger(logger)}
	if opts.Metrics != nil {
		gatewayMetrics = opts.Metrics
		workflowMetrics = opts.Metrics
		executorOpts = append(executorOpts, resilience.WithStateObserver(opts.Metrics.RecordBreakerTransition))
	}
	executor := resilience.NewExecutor(resilienceConfig(cfg), executorOpts...)

	prober := gateway.NewProber(cfg.AgentEndpoint, cfg.ProbeTimeout, cfg.ProbeCacheTTL, logger, gatewayMetrics)
	client := adk.New(adk.Config{
		BaseURL: cfg.AgentEndpoint,
		AppName: cfg.AgentAppName,
		UserID:  cfg.AgentUserID,
		Timeout: cfg.AgentCallTimeout,
	}, executor)
	app.Gateway = gateway.New(
		gateway.Config{CallTimeout: cfg.AgentCallTimeout},
		prober,
		client,
		gateway.NewSimulator(locations),
		logger,
		gatewayMetrics,
	)

	app.Workflow = usecase.NewWorkflowService(usecase.Dependencies{
		Gateway:            app.Gateway,
		Prober:             app.Gateway,
		Locations:          locations,
		Scorer:             validation.NewScorer(cfg.MinFundingAmount),
		Metrics:            workflowMetrics,
		Logger:             logger,
		GrantSearchEnabled: cfg.GrantSearchEnabled,
	}, sessionConfig(cfg))

	storage, err := newStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	var publisher ports.ExportPublisher
	if cfg.NATSURL != "" {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.closeFns = append(app.closeFns, queue.Close)
		publisher = queue
	}

	if cfg.PostgresDSN != "" {
		repo, err := openArchive(ctx, cfg.PostgresDSN, app)
		if err != nil {
			return nil, err
		}
		app.Archive = repo
	}

	app.Exports = usecase.NewExportService(storage, xlsx.NewWriter(), publisher, logger)
	logger.Info("bootstrap_ready",
		"agent_endpoint", cfg.AgentEndpoint,
		"export_storage", cfg.ExportStorage,
		"nats", cfg.NATSURL != "",
		"postgres", cfg.PostgresDSN != "",
	)
	return app, nil
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}

// Worker is the archive side: it consumes export events into Postgres.
type Worker struct {
	Config     config.Config
	Subscriber ports.ExportSubscriber
	ArchiveUC  *usecase.ArchiveExportUseCase

	closeFns []func()
}

func NewWorker(ctx context.Context, cfg config.Config, logger *slog.Logger, metrics usecase.ArchiveMetrics) (_ *Worker, err error) {
	if cfg.NATSURL == "" {
		return nil, errors.New("worker: NATS_URL is required")
	}
	if cfg.PostgresDSN == "" {
		return nil, errors.New("worker: POSTGRES_DSN is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{Config: cfg}
	defer func() {
		if err != nil {
			w.Close()
		}
	}()

	db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	w.closeFns = append(w.closeFns, func() { _ = db.Close() })
	repo, err := ensureRepository(ctx, db)
	if err != nil {
		return nil, err
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg), resilience.WithLogger(logger))
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	w.closeFns = append(w.closeFns, queue.Close)

	w.Subscriber = queue
	w.ArchiveUC = usecase.NewArchiveExportUseCase(repo, metrics, logger, "grantflow-worker")
	return w, nil
}

func (w *Worker) Close() {
	for i := len(w.closeFns) - 1; i >= 0; i-- {
		w.closeFns[i]()
	}
	w.closeFns = nil
}

func loadLocations(path string) (*validation.LocationValidator, error) {
	if path == "" {
		return validation.DefaultLocationValidator(), nil
	}
	vocab, err := validation.LoadVocabulary(path)
	if err != nil {
		return nil, fmt.Errorf("load location vocabulary: %w", err)
	}
	locations, err := validation.NewLocationValidator(vocab)
	if err != nil {
		return nil, fmt.Errorf("compile location vocabulary: %w", err)
	}
	return locations, nil
}

func newStorage(cfg config.Config) (ports.ObjectStorage, error) {
	switch cfg.ExportStorage {
	case "", "localfs":
		return localfs.New(cfg.StoragePath)
	case "s3":
		return s3.New(s3.Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			UseSSL:    cfg.S3UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown export storage %q", cfg.ExportStorage)
	}
}

func openArchive(ctx context.Context, dsn string, app *App) (*postgres.ExportRepository, error) {
	db, err := postgres.OpenDB(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.closeFns = append(app.closeFns, func() { _ = db.Close() })
	return ensureRepository(ctx, db)
}

func ensureRepository(ctx context.Context, db *sql.DB) (*postgres.ExportRepository, error) {
	repo := postgres.NewExportRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, nil
}

func sessionConfig(cfg config.Config) domain.SessionConfig {
	return domain.SessionConfig{Endpoint: cfg.AgentEndpoint, Debug: cfg.Debug}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:        cfg.ResilienceRetryMaxAttempts,
		RetryInitialBackoff:     cfg.ResilienceRetryInitialBackoff,
		RetryMaxBackoff:         cfg.ResilienceRetryMaxBackoff,
		BreakerEnabled:          cfg.ResilienceBreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.ResilienceBreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.ResilienceBreakerFailureRatio,
		BreakerOpenTimeout:      cfg.ResilienceBreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: uint32(max(cfg.ResilienceBreakerHalfOpenCalls, 0)),
	}
}
