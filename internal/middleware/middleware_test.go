package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("hello"))
	})
}

func TestLogging(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := Logging(logger)(okHandler())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/graphql", nil))

	id := w.Header().Get(RequestIDHeader)
	require.NotEmpty(t, id)

	line := buf.String()
	assert.Contains(t, line, "request_id="+id)
	assert.Contains(t, line, "path=/graphql")
	assert.Contains(t, line, "status=200")
	assert.Contains(t, line, "bytes=5")
}

func TestLogging_ReusesIncomingID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := Logging(slog.New(slog.NewTextHandler(&buf, nil)))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.True(t, strings.Contains(buf.String(), "request_id=abc-123"))
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	// Burst of 2 with no refill within the test.
	h := RateLimit(rate.NewLimiter(rate.Limit(0.001), 2))(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/graphql", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_NilDisables(t *testing.T) {
	t.Parallel()

	h := RateLimit(nil)(okHandler())
	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestChainOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(okHandler(), mw("outer"), mw("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner"}, order)
}
