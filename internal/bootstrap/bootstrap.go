package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	httpadapter "github.com/OsmanWais29/filesecureai-sub002/internal/adapters/http"
	"github.com/OsmanWais29/filesecureai-sub002/internal/config"
	"github.com/OsmanWais29/filesecureai-sub002/internal/core/ports"
	"github.com/OsmanWais29/filesecureai-sub002/internal/core/usecase"
	"github.com/OsmanWais29/filesecureai-sub002/internal/infrastructure/cache/sqlite"
	"github.com/OsmanWais29/filesecureai-sub002/internal/infrastructure/connectivity"
	"github.com/OsmanWais29/filesecureai-sub002/internal/infrastructure/extractor"
	"github.com/OsmanWais29/filesecureai-sub002/internal/infrastructure/fetch/httpfetch"
	"github.com/OsmanWais29/filesecureai-sub002/internal/infrastructure/llm/ollama"
	"github.com/OsmanWais29/filesecureai-sub002/internal/infrastructure/queue/nats"
	"github.com/OsmanWais29/filesecureai-sub002/internal/infrastructure/repository/postgres"
	"github.com/OsmanWais29/filesecureai-sub002/internal/infrastructure/resilience"
	"github.com/OsmanWais29/filesecureai-sub002/internal/infrastructure/session"
	"github.com/OsmanWais29/filesecureai-sub002/internal/infrastructure/storage/localfs"
	"github.com/OsmanWais29/filesecureai-sub002/internal/observability/metrics"
)

const fetchTimeout = 30 * time.Second

type Options struct {
	Service string
	// Lifecycle receives pipeline, retrieval and cache metrics; a private registry is used when nil.
	Lifecycle *metrics.LifecycleMetrics
	Logger    *slog.Logger
}

type App struct {
	Config config.Config

	DB        *sql.DB
	Documents *postgres.DocumentRepository
	Versions  *postgres.VersionRepository
	Tasks     *postgres.TaskRepository
	Storage   *localfs.Storage
	Cache     *sqlite.Cache
	Queue     *nats.Queue

	Ingestion      *usecase.IngestionOrchestrator
	Duplicates     *usecase.DuplicateDetector
	Resolver       *usecase.ResolveDuplicateUseCase
	VersionManager *usecase.VersionManager
	Retriever      *usecase.ResilientRetriever

	keeper  *session.Keeper
	monitor *connectivity.Monitor
	logger  *slog.Logger
	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lifecycle := opts.Lifecycle
	if lifecycle == nil {
		lifecycle = metrics.NewWorkerMetrics(opts.Service).Lifecycle()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.MigrateOnStart {
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
	}
	documents := postgres.NewDocumentRepository(db)
	versions := postgres.NewVersionRepository(db)
	folders := postgres.NewFolderRepository(db)
	tasks := postgres.NewTaskRepository(db)
	assessments := postgres.NewRiskAssessmentRepository(db)

	var signer *localfs.Signer
	if cfg.StorageSigningKey != "" {
		signer = localfs.NewSigner(cfg.StorageSigningKey)
	}
	storage, err := localfs.New(cfg.StoragePath, cfg.StoragePublicBaseURL, signer)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	cache, err := sqlite.Open(ctx, cfg.CachePath, sqlite.Options{
		MaxBytes:  cfg.CacheMaxBytes,
		Retention: cfg.CacheRetention,
		Observer:  lifecycle,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open offline cache: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, nats.Options{
		Name:               opts.Service,
		IngestSubject:      cfg.NATSIngestSubject,
		RiskSubject:        cfg.NATSRiskSubject,
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
	})
	if err != nil {
		_ = cache.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, ollama.Options{
		Timeout:  cfg.OllamaTimeout,
		Executor: resilience.NewExecutor(resilience.DefaultConfig()),
	})

	monitor := connectivity.NewMonitor(nil, cfg.ConnectivityInterval, logger)
	if cfg.ConnectivityProbeURL != "" {
		monitor = connectivity.NewMonitor(connectivity.HTTPProbe(nil, cfg.ConnectivityProbeURL), cfg.ConnectivityInterval, logger)
	}

	var keeper *session.Keeper
	var sessions ports.SessionProvider
	if cfg.SessionSecret != "" {
		provider, err := session.NewLocalProvider(cfg.SessionSecret, cfg.SessionUserID, cfg.SessionTTL)
		if err != nil {
			queue.Close()
			_ = cache.Close()
			_ = db.Close()
			return nil, fmt.Errorf("init session provider: %w", err)
		}
		keeper = session.NewKeeper(provider, cfg.SessionRefreshInterval, logger)
		sessions = keeper
	}

	retrievalPolicy := resilience.RetrievalConfig()
	retrievalPolicy.RetryMaxAttempts = cfg.RetryMaxAttempts
	retrievalPolicy.RetryInitialBackoff = cfg.RetryInitialBackoff
	retrievalPolicy.RetryMaxBackoff = cfg.RetryMaxBackoff
	retrievalPolicy.OfflineCeiling = cfg.OfflineCeiling

	duplicates := usecase.NewDuplicateDetector(documents, usecase.DuplicateOptions{
		NameThreshold: cfg.DuplicateNameThreshold,
		MaxCandidates: cfg.DuplicateMaxCandidates,
	}, logger)
	versionManager := usecase.NewVersionManager(documents, versions, storage, logger)
	ingestion := usecase.NewIngestionOrchestrator(usecase.OrchestratorDeps{
		Documents:   documents,
		Storage:     storage,
		Duplicates:  duplicates,
		Extractor:   extractor.NewRouter(logger),
		Analyzer:    ollama.NewAnalyzer(ollamaClient),
		Categorizer: usecase.NewCategorizer(documents, folders, logger),
		RiskTasks:   usecase.NewRiskTaskGenerator(documents, tasks, queue, cfg.RiskTaskDueDays, logger),
		Versions:    versionManager,
		Assessments: assessments,
		Queue:       queue,
		Observer:    lifecycle,
		Logger:      logger,
	})
	retriever := usecase.NewResilientRetriever(usecase.RetrieverDeps{
		Storage:       storage,
		Fetcher:       httpfetch.New(fetchTimeout, cfg.UploadMaxBytes),
		Executor:      resilience.NewExecutor(retrievalPolicy),
		Session:       sessions,
		Connectivity:  monitor,
		Cache:         cache,
		Observer:      lifecycle,
		ViewerBaseURL: cfg.ViewerBaseURL,
		SignedURLTTL:  cfg.SignedURLTTL,
		Logger:        logger,
	})

	return &App{
		Config:    cfg,
		DB:        db,
		Documents: documents,
		Versions:  versions,
		Tasks:     tasks,
		Storage:   storage,
		Cache:     cache,
		Queue:     queue,

		Ingestion:      ingestion,
		Duplicates:     duplicates,
		Resolver:       usecase.NewResolveDuplicateUseCase(documents, versionManager, ingestion, logger),
		VersionManager: versionManager,
		Retriever:      retriever,

		keeper:  keeper,
		monitor: monitor,
		logger:  logger,
		closeFn: func() {
			retriever.Wait()
			queue.Close()
			if err := cache.Close(); err != nil {
				logger.Warn("cache_close_failed", "error", err)
			}
			_ = db.Close()
		},
	}, nil
}

// Start launches the connectivity monitor and the session keeper.
func (a *App) Start(ctx context.Context) error {
	a.monitor.Start(ctx)
	if a.keeper != nil {
		if err := a.keeper.Start(ctx); err != nil {
			a.monitor.Stop()
			return fmt.Errorf("start session keeper: %w", err)
		}
	}
	return nil
}

// HTTPDependencies assembles the router collaborators; recorder may be nil.
func (a *App) HTTPDependencies(recorder httpadapter.MetricsRecorder) httpadapter.Dependencies {
	return httpadapter.Dependencies{
		Ingestor:   a.Ingestion,
		Duplicates: a.Duplicates,
		Resolver:   a.Resolver,
		Versions:   a.VersionManager,
		Retriever:  a.Retriever,
		Documents:  a.Documents,
		Objects:    a.Storage,
		Cache:      a.Cache,
		Metrics:    recorder,
	}
}

func (a *App) Close() {
	if a.keeper != nil {
		a.keeper.Stop()
	}
	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.closeFn != nil {
		a.closeFn()
	}
}
