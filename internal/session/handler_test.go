package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Wuchinator/landing-analytics/internal/geocode"
	"github.com/Wuchinator/landing-analytics/internal/httpapi"
	"github.com/Wuchinator/landing-analytics/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newRouter(t *testing.T) (http.Handler, *session.Service) {
	t.Helper()

	svc, _ := newService(t, geocode.Noop{}, time.Second)
	h := session.NewHandler(svc, zaptest.NewLogger(t))

	r := chi.NewRouter()
	r.Route("/api/track", h.RegisterRoutes)
	return r, svc
}

func do(t *testing.T, h http.Handler, method, path, contentType, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestHandlerTrack(t *testing.T) {
	t.Parallel()

	h, svc := newRouter(t)

	rec, out := do(t, h, http.MethodPost, "/api/track/session", "application/json",
		`{"session_id":"abc","timestamp":"2024-05-01T10:00:00.000Z","screen_width":390,"rtt":"fast","connection_type":"4g"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, true, out["created"])

	rec, out = do(t, h, http.MethodPost, "/api/track/session", "application/json",
		`{"session_id":"abc","timestamp":"2024-05-01T10:00:03.000Z","latitude":50.85,"longitude":4.35}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["created"])

	got, err := svc.Get(context.Background(), "abc")
	require.NoError(t, err)
	assert.EqualValues(t, 390, *got.ScreenWidth)
	assert.Nil(t, got.RTT)
	assert.Equal(t, "4g", *got.ConnectionType)
	assert.NotNil(t, got.Latitude)
}

func TestHandlerTrackMetrics(t *testing.T) {
	t.Parallel()

	h, svc := newRouter(t)

	rec, _ := do(t, h, http.MethodPut, "/api/track/session/abc", "application/json",
		`{"time_on_page":25,"scroll_depth":60,"active_time":20}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	// sendBeacon posts JSON as text/plain.
	rec, _ = do(t, h, http.MethodPost, "/api/track/session/abc", "text/plain;charset=UTF-8",
		`{"session_id":"other","time_on_page":31,"scroll_depth":55}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	got, err := svc.Get(context.Background(), "abc")
	require.NoError(t, err)
	assert.False(t, got.Timestamp.IsZero())
	assert.EqualValues(t, 31, got.TimeOnPage)
	assert.EqualValues(t, 60, got.ScrollDepth)
	assert.EqualValues(t, 31, got.ActiveTime)

	_, err = svc.Get(context.Background(), "other")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestHandlerTrackMetricsIgnoresGarbage(t *testing.T) {
	t.Parallel()

	h, svc := newRouter(t)

	rec, _ := do(t, h, http.MethodPut, "/api/track/session/s9", "application/json",
		`{"scroll_depth":1e19,"time_on_page":-7}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	got, err := svc.Get(context.Background(), "s9")
	require.NoError(t, err)
	assert.Zero(t, got.ScrollDepth)
	assert.Zero(t, got.TimeOnPage)
	assert.Zero(t, got.ActiveTime)

	rec, _ = do(t, h, http.MethodPut, "/api/track/session/s9", "application/json",
		`{"scroll_depth":70,"time_on_page":14,"active_time":-2}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodPut, "/api/track/session/s9", "application/json",
		`{"scroll_depth":-70,"time_on_page":-1e30}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	got, err = svc.Get(context.Background(), "s9")
	require.NoError(t, err)
	assert.EqualValues(t, 70, got.ScrollDepth)
	assert.EqualValues(t, 14, got.TimeOnPage)
	assert.EqualValues(t, 14, got.ActiveTime)
}

func TestHandlerRejects(t *testing.T) {
	t.Parallel()

	h, _ := newRouter(t)

	rec, out := do(t, h, http.MethodPost, "/api/track/session", "application/json", `{"timestamp":"2024-05-01T10:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation failed", out["error"])
	errs, ok := out["errors"].([]any)
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "session_id", errs[0].(map[string]any)["field"])

	rec, out = do(t, h, http.MethodPost, "/api/track/session", "application/json", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", out["error"])

	big := `{"session_id":"s","timestamp":"2024-05-01T10:00:00Z","referrer":"` + strings.Repeat("x", httpapi.MaxBodyBytes) + `"}`
	rec, _ = do(t, h, http.MethodPost, "/api/track/session", "application/json", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
