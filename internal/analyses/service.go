package analyses

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"face-analysis-backend/internal/shared/metrics"
	"face-analysis-backend/internal/shared/storage/object"
	"face-analysis-backend/internal/shared/telemetry"
	"face-analysis-backend/internal/uploads"
	"face-analysis-backend/internal/worker"
)

// Pipeline stages reported in logs, metrics and the failedStage request key.
const (
	StageInvoke  = "invoke"
	StageMap     = "map"
	StagePublish = "publish"
	StageStore   = "store"
)

const mediaNamespace = "analyzed"

// Invoker runs the external analysis worker against a staged image.
type Invoker interface {
	Run(ctx context.Context, imagePath string) (worker.Output, error)
}

// Service runs the submit pipeline and serves stored analyses.
type Service struct {
	Store   Store
	Invoker Invoker
	// Media receives derived images the worker writes into the staging directory.
	// When nil, derived paths are stored as the worker reported them.
	Media        object.ObjectStore
	MediaBaseURL string
}

// NewService constructs a Service.
func NewService(store Store, invoker Invoker, media object.ObjectStore, mediaBaseURL string) *Service {
	return &Service{Store: store, Invoker: invoker, Media: media, MediaBaseURL: mediaBaseURL}
}

// Analyze runs the worker on the staged photo, maps its result and stores it.
// Nothing is stored when any stage fails. The caller owns staged and its cleanup.
func (s *Service) Analyze(ctx context.Context, staged *uploads.Staged) (Analysis, error) {
	metrics.IncAnalysisSubmitted()
	start := time.Now()
	requestID := telemetry.RequestIDFromContext(ctx)

	started := map[string]any{
		"request_id":   requestID,
		"photo_name":   staged.Photo.OriginalName,
		"photo_bytes":  staged.Photo.Size,
		"photo_sha256": staged.Photo.SHA256,
		"photo_type":   staged.Photo.ContentType,
	}
	if staged.Video != nil {
		started["video_name"] = staged.Video.OriginalName
		started["video_bytes"] = staged.Video.Size
	}
	telemetry.Info("analysis.started", started)

	out, err := s.Invoker.Run(ctx, staged.Photo.Path)
	if err != nil {
		return Analysis{}, s.fail(ctx, StageInvoke, err)
	}

	in, err := MapResult(out.Result())
	if err != nil {
		return Analysis{}, s.fail(ctx, StageMap, err)
	}

	if err := s.publishDerivedImage(ctx, staged, &in); err != nil {
		return Analysis{}, s.fail(ctx, StagePublish, err)
	}

	analysis, err := s.Store.CreateAnalysis(ctx, in)
	if err != nil {
		var serr *StorageError
		if !errors.As(err, &serr) {
			err = &StorageError{Stage: StageStore, Err: err}
		}
		return Analysis{}, s.fail(ctx, StageStore, err)
	}

	metrics.IncAnalysisCompleted()
	telemetry.Info("analysis.completed", map[string]any{
		"request_id":   requestID,
		"analysis_id":  analysis.ID,
		"worker_lines": out.LineCount,
		"worker_ms":    out.Duration.Milliseconds(),
		"duration_ms":  time.Since(start).Milliseconds(),
		"has_video":    staged.Video != nil,
		"has_image":    analysis.AnalyzedImagePath != nil,
	})
	return analysis, nil
}

// Latest returns the most recent analysis or ErrNotFound.
func (s *Service) Latest(ctx context.Context) (Analysis, error) {
	return s.Store.GetLatestAnalysis(ctx)
}

// Get returns an analysis by id or ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (Analysis, error) {
	return s.Store.GetAnalysis(ctx, id)
}

// publishDerivedImage copies a derived image out of the staging directory so it
// survives cleanup, and rewrites its path to the published URL.
func (s *Service) publishDerivedImage(ctx context.Context, staged *uploads.Staged, in *InsertAnalysis) error {
	if s.Media == nil || in.AnalyzedImagePath == nil {
		return nil
	}
	path := *in.AnalyzedImagePath
	if !staged.Contains(path) {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return &StorageError{Stage: StagePublish, Err: fmt.Errorf("open derived image: %w", err)}
	}
	defer f.Close()

	key, size, mimeType, err := s.Media.Save(ctx, mediaNamespace, filepath.Base(path), f)
	if err != nil {
		return &StorageError{Stage: StagePublish, Err: err}
	}
	url := mediaURL(s.MediaBaseURL, key)
	in.AnalyzedImagePath = &url

	telemetry.Debug("analysis.image_published", map[string]any{
		"request_id": telemetry.RequestIDFromContext(ctx),
		"key":        key,
		"size":       size,
		"mime_type":  mimeType,
	})
	return nil
}

func (s *Service) fail(ctx context.Context, stage string, err error) error {
	metrics.IncAnalysisFailed(stage)
	fields := map[string]any{
		"request_id": telemetry.RequestIDFromContext(ctx),
		"stage":      stage,
		"err":        err.Error(),
	}
	var perr *worker.ProcessError
	if errors.As(err, &perr) {
		fields["worker_failure"] = string(perr.Kind)
		if perr.Stderr != "" {
			fields["worker_stderr"] = perr.Stderr
		}
	}
	var derr *DomainAnalysisError
	if errors.As(err, &derr) && derr.Message != "" {
		fields["worker_error"] = derr.Message
	}
	telemetry.Error("analysis.failed", fields)
	return &StageError{Stage: stage, Err: err}
}

func mediaURL(base, key string) string {
	if base == "" {
		return key
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
