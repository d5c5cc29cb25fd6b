package analyses

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"face-analysis-backend/internal/shared/server/respond"
	"face-analysis-backend/internal/shared/telemetry"
	"face-analysis-backend/internal/uploads"
	"face-analysis-backend/internal/worker"
)

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc    *Service
	Stager *uploads.Stager
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, stager *uploads.Stager) *Handler {
	return &Handler{Svc: svc, Stager: stager}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze", h.analyze)
	rg.GET("/analysis/latest", h.latest)
	rg.GET("/analysis/:id", h.get)
}

func (h *Handler) analyze(c *gin.Context) {
	staged, err := h.Stager.Stage(c.Request)
	if err != nil {
		var verr *uploads.ValidationError
		if errors.As(err, &verr) {
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, verr.Message, verr.Details)
			return
		}
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "Server error", err.Error())
		return
	}
	defer func() {
		if err := staged.Cleanup(); err != nil {
			telemetry.Warn("uploads.cleanup_failed", map[string]any{
				"request_id": c.GetString("requestId"),
				"dir":        staged.Dir,
				"err":        err.Error(),
			})
		}
	}()

	analysis, err := h.Svc.Analyze(c.Request.Context(), staged)
	if err != nil {
		writeAnalyzeError(c, err)
		return
	}

	c.Set("analysisId", analysis.ID)
	respond.OK(c, analysis)
}

func writeAnalyzeError(c *gin.Context, err error) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		c.Set("failedStage", stageErr.Stage)
	}

	var (
		perr    *worker.ProcessError
		parse   *ParseError
		domain  *DomainAnalysisError
		storage *StorageError
	)
	switch {
	case errors.As(err, &perr):
		respond.Error(c, http.StatusInternalServerError, ErrorCodeAnalysisFailed, "Analysis failed", perr.Error())
	case errors.As(err, &domain):
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInvalidResult, "Failed to process analysis results", domain.Details)
	case errors.As(err, &parse):
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInvalidResult, "Failed to process analysis results", parse.Error())
	case errors.As(err, &storage):
		respond.Error(c, http.StatusInternalServerError, ErrorCodeStorage, "Failed to save analysis", storage.Error())
	default:
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "Server error", err.Error())
	}
}

func (h *Handler) latest(c *gin.Context) {
	analysis, err := h.Svc.Latest(c.Request.Context())
	if err != nil {
		writeFetchError(c, err, "Complete an assessment first to see results")
		return
	}
	c.Set("analysisId", analysis.ID)
	respond.OK(c, analysis)
}

func (h *Handler) get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "Invalid analysis id", "Analysis id must be a positive integer")
		return
	}
	analysis, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		writeFetchError(c, err, fmt.Sprintf("Analysis %d does not exist", id))
		return
	}
	c.Set("analysisId", analysis.ID)
	respond.OK(c, analysis)
}

func writeFetchError(c *gin.Context, err error, notFoundDetails string) {
	if errors.Is(err, ErrNotFound) {
		respond.Error(c, http.StatusNotFound, ErrorCodeNotFound, "No analysis found", notFoundDetails)
		return
	}
	respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "Failed to fetch analysis", err.Error())
}
