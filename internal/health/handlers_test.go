package health

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func okProbe(context.Context, time.Duration) error   { return nil }
func failProbe(context.Context, time.Duration) error { return errors.New("connection refused") }

func TestLive(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler{}.Live(rec, httptest.NewRequest("GET", "/healthz", nil))
	require.Equal(t, 200, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestReadyAllHealthy(t *testing.T) {
	h := Handler{DB: okProbe, Redis: okProbe}
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest("GET", "/readyz", nil))
	require.Equal(t, 200, rec.Code)
	require.JSONEq(t, `{"db":"ok","redis":"ok"}`, rec.Body.String())
}

func TestReadyDependencyDown(t *testing.T) {
	h := Handler{DB: okProbe, Redis: failProbe}
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest("GET", "/readyz", nil))
	require.Equal(t, 503, rec.Code)
	require.Contains(t, rec.Body.String(), "connection refused")
}

func TestReadyMissingProbe(t *testing.T) {
	h := Handler{DB: okProbe}
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest("GET", "/readyz", nil))
	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "not configured")
}
