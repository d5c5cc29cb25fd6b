package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"face-analysis-backend/internal/analyses"
	"face-analysis-backend/internal/services/health"
	"face-analysis-backend/internal/shared/config"
	"face-analysis-backend/internal/shared/server"
	"face-analysis-backend/internal/shared/storage/db"
	"face-analysis-backend/internal/shared/storage/object"
	localstore "face-analysis-backend/internal/shared/storage/object/local"
	s3store "face-analysis-backend/internal/shared/storage/object/s3"
	"face-analysis-backend/internal/shared/telemetry"
	"face-analysis-backend/internal/uploads"
	"face-analysis-backend/internal/worker"
)

// App holds shared dependencies.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Media           object.ObjectStore
	Store           analyses.Store
	Runner          *worker.Runner
	Stager          *uploads.Stager
	AnalysesService *analyses.Service
	AnalysisHandler *analyses.Handler
}

// Build constructs every dependency and the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	media, err := buildMedia(ctx, cfg)
	if err != nil {
		closeDB(sqlDB)
		return nil, err
	}

	runner, err := worker.NewRunner(worker.Config{
		Command:        cfg.WorkerCommand,
		Timeout:        cfg.WorkerTimeout,
		MaxConcurrency: cfg.WorkerMaxConcurrency,
	})
	if err != nil {
		closeDB(sqlDB)
		return nil, fmt.Errorf("worker: %w", err)
	}

	var store analyses.Store
	if sqlDB != nil {
		store = &analyses.PGStore{DB: sqlDB}
	} else {
		store = analyses.NewMemoryStore()
	}

	stager := uploads.NewStager(cfg.UploadDir, cfg.UploadMaxBytes)
	svc := analyses.NewService(store, runner, media, cfg.MediaBaseURL)

	app := &App{
		Config:          cfg,
		DB:              sqlDB,
		Media:           media,
		Store:           store,
		Runner:          runner,
		Stager:          stager,
		AnalysesService: svc,
		AnalysisHandler: analyses.NewHandler(svc, stager),
	}

	workerProgram := ""
	if len(cfg.WorkerCommand) > 0 {
		workerProgram = cfg.WorkerCommand[0]
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		AnalysisHandler: app.AnalysisHandler,
		Health:          health.NewService(sqlDB, workerProgram),
		Media:           media,
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":             cfg.Env,
		"store":           storeKind(sqlDB),
		"object_store":    cfg.ObjectStoreType,
		"worker_command":  strings.Join(cfg.WorkerCommand, " "),
		"worker_timeout":  cfg.WorkerTimeout.String(),
		"max_concurrency": cfg.WorkerMaxConcurrency,
	})
	return app, nil
}

// Close releases the database pool.
func (a *App) Close() {
	closeDB(a.DB)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_store", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_store", map[string]any{"reason": "database connect failed", "err": err.Error()})
			return nil, nil
		}
		return nil, err
	}

	version, err := db.RunMigrations(ctx, sqlDB)
	if err != nil {
		closeDB(sqlDB)
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	telemetry.Info("bootstrap.migrated", map[string]any{"version": version})
	return sqlDB, nil
}

func buildMedia(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.MediaDir), nil
	}
}

func storeKind(sqlDB *sql.DB) string {
	if sqlDB != nil {
		return "postgres"
	}
	return "memory"
}

func closeDB(sqlDB *sql.DB) {
	if sqlDB != nil {
		_ = sqlDB.Close()
	}
}
