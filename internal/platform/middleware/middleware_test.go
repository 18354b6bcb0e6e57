package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"

	"verihire/pkg/requestcontext"
)

func TestRequestContext_PropagatesRequestID(t *testing.T) {
	var gotID, gotIP string
	r := chi.NewRouter()
	r.Use(chimw.RequestID, RequestContext)
	r.Get("/x", func(w http.ResponseWriter, r *http.Request) {
		gotID = requestcontext.RequestID(r.Context())
		gotIP = requestcontext.ClientIP(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(chimw.RequestIDHeader, "req-123")
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, "req-123", gotID)
	assert.Equal(t, "203.0.113.7", gotIP)
	assert.Equal(t, "req-123", rr.Header().Get("X-Request-ID"))
}

func TestAccessLog_LogsRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(AccessLog(logger, nil))
	r.Get("/candidates/{candidateId}/status", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/candidates/c1/status", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, buf.String(), `"route":"/candidates/{candidateId}/status"`)
	assert.Contains(t, buf.String(), `"status":404`)
}

func TestClientIPFromRequest_RemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::1]:5555"
	assert.Equal(t, "::1", ClientIPFromRequest(req))
}

func TestClientName(t *testing.T) {
	assert.Equal(t, "unknown", ClientName(""))

	chrome := ClientName("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	assert.True(t, strings.HasPrefix(chrome, "Chrome/"), chrome)

	bot := ClientName("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")
	assert.True(t, strings.HasPrefix(bot, "bot:"), bot)
}
