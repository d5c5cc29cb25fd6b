package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"face-analysis-backend/internal/analyses"
	"face-analysis-backend/internal/shared/config"
)

func devConfig(t *testing.T) config.Config {
	return config.Config{
		Env:                  "dev",
		CORSAllowOrigin:      []string{"http://localhost:5173"},
		UploadDir:            t.TempDir(),
		UploadMaxBytes:       1 << 20,
		WorkerCommand:        []string{"sh", "-c", "echo '{}'"},
		WorkerTimeout:        time.Second,
		WorkerMaxConcurrency: 1,
		ObjectStoreType:      "local",
		MediaDir:             t.TempDir(),
		MediaBaseURL:         "/media/",
	}
}

func TestBuildDevUsesMemoryStore(t *testing.T) {
	app, err := Build(context.Background(), devConfig(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer app.Close()

	if app.DB != nil {
		t.Fatalf("expected no database in dev without DATABASE_URL")
	}
	if _, ok := app.Store.(*analyses.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", app.Store)
	}

	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analysis/latest", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 from empty store, got %d", w.Code)
	}
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := devConfig(t)
	cfg.Env = "production"
	if _, err := Build(context.Background(), cfg); err == nil {
		t.Fatalf("expected error without DATABASE_URL in production")
	}
}

func TestBuildRejectsEmptyWorkerCommand(t *testing.T) {
	cfg := devConfig(t)
	cfg.WorkerCommand = nil
	if _, err := Build(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for missing worker command")
	}
}

func TestBuildS3RequiresBucket(t *testing.T) {
	cfg := devConfig(t)
	cfg.ObjectStoreType = "s3"
	if _, err := Build(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for missing S3 bucket")
	}
}
