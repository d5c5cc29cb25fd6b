package server

import (
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"face-analysis-backend/internal/shared/server/respond"
	"face-analysis-backend/internal/shared/storage/object"
	"face-analysis-backend/internal/shared/telemetry"
)

// mediaHandler streams published analysis images from the object store.
func mediaHandler(store object.ObjectStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimPrefix(c.Param("key"), "/")
		if key == "" {
			respond.Error(c, http.StatusNotFound, "not_found", "Media not found", "No media key given")
			return
		}

		rc, err := store.Open(c.Request.Context(), key)
		if err != nil {
			if errors.Is(err, object.ErrNotFound) {
				respond.Error(c, http.StatusNotFound, "not_found", "Media not found", "No media stored under "+key)
				return
			}
			telemetry.Error("media.open_failed", map[string]any{
				"request_id": telemetry.RequestIDFromContext(c.Request.Context()),
				"key":        key,
				"err":        err.Error(),
			})
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to fetch media", err.Error())
			return
		}
		defer rc.Close()

		contentType := mime.TypeByExtension(path.Ext(key))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		// Keys carry a unique prefix, so a stored object never changes.
		c.Header("Cache-Control", "public, max-age=31536000, immutable")
		c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
	}
}
