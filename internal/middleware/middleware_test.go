package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func status(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
		_, _ = w.Write([]byte("body"))
	})
}

func TestLogger_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		code      int
		wantLevel string
	}{
		{http.StatusOK, "level=INFO"},
		{http.StatusNotFound, "level=WARN"},
		{http.StatusBadGateway, "level=ERROR"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			rr := httptest.NewRecorder()
			Logger(logger)(status(tt.code)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/users/get", nil))

			line := buf.String()
			assert.Equal(t, tt.code, rr.Code)
			assert.Contains(t, line, tt.wantLevel)
			assert.Contains(t, line, "path=/api/users/get")
			assert.Contains(t, line, "bytes=4")
		})
	}
}

func TestRateLimit(t *testing.T) {
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}

	t.Run("limits per client", func(t *testing.T) {
		h := RateLimit(2, time.Minute, onLimit)(status(http.StatusOK))

		var codes []int
		for range 3 {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "198.51.100.7:4000"
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			codes = append(codes, rr.Code)
			if rr.Code == http.StatusTooManyRequests {
				assert.True(t, strings.Contains(rr.Body.String(), "slow down"))
			}
		}
		assert.Equal(t, []int{200, 200, 429}, codes)

		other := httptest.NewRequest(http.MethodGet, "/", nil)
		other.RemoteAddr = "198.51.100.8:4000"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, other)
		assert.Equal(t, http.StatusOK, rr.Code, "a different client has its own budget")
	})

	t.Run("zero disables", func(t *testing.T) {
		h := RateLimit(0, time.Minute, onLimit)(status(http.StatusOK))
		for range 10 {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, http.StatusOK, rr.Code)
		}
	})
}
