package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"face-analysis-backend/internal/analyses"
	"face-analysis-backend/internal/services/health"
	"face-analysis-backend/internal/shared/config"
	"face-analysis-backend/internal/shared/metrics"
	"face-analysis-backend/internal/shared/server/middleware"
	"face-analysis-backend/internal/shared/server/respond"
	"face-analysis-backend/internal/shared/storage/object"
)

const analyzeRateLimitGroup = "ANALYZE"

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Config          config.Config
	AnalysisHandler *analyses.Handler
	Health          *health.Service
	// Media serves published analysis images under /media.
	Media object.ObjectStore
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.IsDevLike() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.MaxMultipartMemory = deps.Config.UploadMaxBytes

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			GroupFor: rateLimitGroup,
			Rules: map[string]middleware.RateLimitRule{
				analyzeRateLimitGroup: {Rate: deps.Config.AnalyzeRateLimit, Burst: deps.Config.AnalyzeRateBurst},
			},
		}),
	)

	r.GET("/metrics", metrics.Handler())
	if deps.Media != nil {
		r.GET("/media/*key", mediaHandler(deps.Media))
		r.HEAD("/media/*key", mediaHandler(deps.Media))
	}

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.OK(c, gin.H{"ok": true})
			return
		}
		report := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}

	return r
}

func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method == http.MethodPost && strings.HasSuffix(c.FullPath(), "/analyze") {
		return analyzeRateLimitGroup
	}
	return ""
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
