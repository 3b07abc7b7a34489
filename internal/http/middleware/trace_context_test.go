package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/dialogforge-backend/internal/platform/ctxutil"
)

func TestAttachTraceContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	var seen *ctxutil.TraceData
	r.GET("/healthcheck", func(c *gin.Context) {
		seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	req.Header.Set(HeaderTraceID, "trace-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if seen == nil || seen.RequestID != "req-1" || seen.TraceID != "trace-1" {
		t.Fatalf("caller ids not propagated: %+v", seen)
	}
	if rec.Header().Get(HeaderRequestID) != "req-1" {
		t.Fatalf("request id header not echoed")
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	if seen.RequestID == "" || seen.TraceID == "" {
		t.Fatalf("ids must be generated: %+v", seen)
	}
	if rec.Header().Get(HeaderTraceID) != seen.TraceID {
		t.Fatalf("trace header %q != %q", rec.Header().Get(HeaderTraceID), seen.TraceID)
	}
}
