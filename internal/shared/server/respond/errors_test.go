package respond

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"

	"face-analysis-backend/internal/shared/telemetry"
)

func TestErrorWritesMessageAndDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var logs bytes.Buffer
	telemetry.SetOutput(&logs)
	defer telemetry.SetOutput(os.Stdout)

	r := gin.New()
	r.GET("/boom", func(c *gin.Context) {
		Error(c, http.StatusBadRequest, "validation_error", "Photo is required", "Please upload a clear photo of your face")
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["message"] != "Photo is required" {
		t.Fatalf("unexpected message: %q", body["message"])
	}
	if body["details"] != "Please upload a clear photo of your face" {
		t.Fatalf("unexpected details: %q", body["details"])
	}
	if body["code"] != "validation_error" {
		t.Fatalf("unexpected code: %q", body["code"])
	}
	if !bytes.Contains(logs.Bytes(), []byte("http.error")) {
		t.Fatalf("expected http.error log line")
	}
}
