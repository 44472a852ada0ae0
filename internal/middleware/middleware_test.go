package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"homesync-go/pkg/log"
)

func TestRequestLoggerKeepsBodyReadable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger())
	r.POST("/echo", func(c *gin.Context) {
		b, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, string(b))
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"content":"hi"}`)))
	if rr.Body.String() != `{"content":"hi"}` {
		t.Fatalf("body = %q", rr.Body.String())
	}
}

func TestIsSensitivePath(t *testing.T) {
	if !isSensitiveResponsePath("/api/v1/sessions") || isSensitiveResponsePath("/api/v1/session/messages") {
		t.Fatal("only the session creation response should be redacted")
	}
	if !isSensitivePath("/api/v1/session/connection") {
		t.Fatal("connection path should be redacted")
	}
	if isSensitivePath("/api/v1/session/messages") {
		t.Fatal("messages path should be logged")
	}
}

func TestMetricsMiddlewarePassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
}

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	log.SetLogger(zap.New(core))
	t.Cleanup(func() { log.SetLogger(zap.NewNop()) })
	return logs
}

func TestRequestLoggerRedactsSecrets(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logs := observeLogs(t)

	r := gin.New()
	r.Use(RequestLogger())
	r.POST("/api/v1/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"token": "eyJhbGciOiJIUzI1NiJ9.secret"}})
	})
	r.PUT("/api/v1/session/connection", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Connected to database!"})
	})
	r.POST("/api/v1/session/messages", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"content": "You have 3 lamps."}})
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/api/v1/session/connection",
		strings.NewReader(`{"user":"root","password":"hunter2"}`)))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/session/messages",
		strings.NewReader(`{"content":"how many lamps?"}`)))

	entries := logs.FilterMessage("HTTP Request Log").All()
	if len(entries) != 3 {
		t.Fatalf("log entries = %d, want 3", len(entries))
	}

	created := entries[0].ContextMap()
	if created["responseBody"] != "[redacted]" {
		t.Fatalf("session response logged: %v", created["responseBody"])
	}

	connected := entries[1].ContextMap()
	if connected["requestBody"] != "[redacted]" {
		t.Fatalf("connection request logged: %v", connected["requestBody"])
	}

	asked := entries[2].ContextMap()
	if asked["requestBody"] != `{"content":"how many lamps?"}` || !strings.Contains(asked["responseBody"].(string), "You have 3 lamps.") {
		t.Fatalf("ordinary request not logged: %v", asked)
	}

	for _, e := range entries {
		for _, v := range e.ContextMap() {
			if s, ok := v.(string); ok && (strings.Contains(s, "hunter2") || strings.Contains(s, "secret")) {
				t.Fatalf("secret leaked into log: %v", e.ContextMap())
			}
		}
	}
}
