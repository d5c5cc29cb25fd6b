package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"face-analysis-backend/internal/analyses"
	"face-analysis-backend/internal/shared/config"
	"face-analysis-backend/internal/shared/storage/object"
	"face-analysis-backend/internal/shared/storage/object/local"
	"face-analysis-backend/internal/uploads"
)

func testConfig() config.Config {
	return config.Config{
		Env:              "test",
		CORSAllowOrigin:  []string{"http://localhost:5173"},
		UploadMaxBytes:   1 << 20,
		AnalyzeRateLimit: 1,
		AnalyzeRateBurst: 1,
	}
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	r := NewRouter(RouterDeps{Config: testConfig()})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("unexpected health response %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Fatalf("unexpected metrics response %d", w.Code)
	}
}

func TestRouterServesPublishedMedia(t *testing.T) {
	store := local.New(t.TempDir())
	key, _, _, err := store.Save(context.Background(), "analyzed", "face.png", strings.NewReader("derived"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	r := NewRouter(RouterDeps{Config: testConfig(), Media: store})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/media/"+key, nil))
	if w.Code != http.StatusOK || w.Body.String() != "derived" {
		t.Fatalf("unexpected media response %d: %q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %q", ct)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/media/analyzed/missing.png", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing media expected 404, got %d", w.Code)
	}
}

type stubMedia struct {
	objects map[string]string
	openErr error
}

func (s *stubMedia) Save(context.Context, string, string, io.Reader) (string, int64, string, error) {
	return "", 0, "", errors.New("read only")
}

func (s *stubMedia) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	body, ok := s.objects[key]
	if !ok {
		return nil, object.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func TestRouterServesMediaFromAnyObjectStore(t *testing.T) {
	media := &stubMedia{objects: map[string]string{"analyzed/abc_face.jpg": "jpeg-bytes"}}
	r := NewRouter(RouterDeps{Config: testConfig(), Media: media})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/media/analyzed/abc_face.jpg", nil))
	if w.Code != http.StatusOK || w.Body.String() != "jpeg-bytes" {
		t.Fatalf("unexpected media response %d: %q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %q", ct)
	}

	media.openErr = errors.New("s3 get object: access denied")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/media/analyzed/abc_face.jpg", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("store failure expected 500, got %d", w.Code)
	}
}

func TestRouterRateLimitsAnalyzeOnly(t *testing.T) {
	svc := analyses.NewService(analyses.NewMemoryStore(), nil, nil, "")
	h := analyses.NewHandler(svc, uploads.NewStager(t.TempDir(), 1<<20))
	r := NewRouter(RouterDeps{Config: testConfig(), AnalysisHandler: h})

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	if code := post(); code != http.StatusBadRequest {
		t.Fatalf("first analyze expected 400, got %d", code)
	}
	if code := post(); code != http.StatusTooManyRequests {
		t.Fatalf("second analyze expected 429, got %d", code)
	}

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analysis/latest", nil))
		if w.Code != http.StatusNotFound {
			t.Fatalf("latest expected 404, got %d", w.Code)
		}
	}
}
