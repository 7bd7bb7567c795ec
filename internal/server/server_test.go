package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/presence/internal/domain"
	"github.com/vburojevic/presence/internal/history"
	"github.com/vburojevic/presence/internal/signal"
)

type fakeTracker struct {
	active     *domain.ActiveSession
	sessions   []domain.CompletedSession
	detections []domain.DetectionEvent
	clearErr   error
	cleared    []string
}

func (f *fakeTracker) Active() (domain.ActiveSession, bool) {
	if f.active == nil {
		return domain.ActiveSession{}, false
	}
	return *f.active, true
}

func (f *fakeTracker) Sessions(by history.SortBy) []domain.CompletedSession {
	return history.Sort(f.sessions, by)
}

func (f *fakeTracker) Detections() []domain.DetectionEvent { return f.detections }

func (f *fakeTracker) ClearSessions(ctx context.Context) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared = append(f.cleared, "sessions")
	f.sessions = nil
	return nil
}

func (f *fakeTracker) ClearDetections(ctx context.Context) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared = append(f.cleared, "detections")
	f.detections = nil
	return nil
}

func session(startSec, endSec int64, dur float64) domain.CompletedSession {
	start := time.Unix(startSec, 0)
	end := time.Unix(endSec, 0)
	return domain.NewCompletedSession(start, end, time.Duration(dur*float64(time.Second)))
}

func newTestServer(t *testing.T, tr Tracker) (*httptest.Server, chan signal.Sample) {
	t.Helper()
	samples := make(chan signal.Sample, 8)
	s := New(tr, samples, Options{Addr: "127.0.0.1:0"})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, samples
}

func decode(t *testing.T, resp *http.Response) (APIResponse, json.RawMessage) {
	t.Helper()
	defer resp.Body.Close()
	var raw struct {
		APIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	return raw.APIResponse, raw.Data
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t, &fakeTracker{})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := decode(t, resp)
	assert.True(t, body.Success)
	assert.NotZero(t, body.Timestamp)
}

func TestActive(t *testing.T) {
	t.Run("idle", func(t *testing.T) {
		ts, _ := newTestServer(t, &fakeTracker{})
		resp, err := http.Get(ts.URL + "/api/v1/active")
		require.NoError(t, err)
		_, data := decode(t, resp)

		var active ActiveData
		require.NoError(t, json.Unmarshal(data, &active))
		assert.False(t, active.Active)
		assert.Zero(t, active.ElapsedSeconds)
	})

	t.Run("active", func(t *testing.T) {
		start := time.UnixMilli(1_700_000_000_000)
		tr := &fakeTracker{active: &domain.ActiveSession{StartTime: start, Elapsed: 90 * time.Second}}
		ts, _ := newTestServer(t, tr)
		resp, err := http.Get(ts.URL + "/api/v1/active")
		require.NoError(t, err)
		_, data := decode(t, resp)

		var active ActiveData
		require.NoError(t, json.Unmarshal(data, &active))
		assert.True(t, active.Active)
		assert.Equal(t, start.UnixMilli(), active.StartTime)
		assert.Equal(t, 90.0, active.ElapsedSeconds)
	})
}

func TestSessionsSorted(t *testing.T) {
	tr := &fakeTracker{sessions: []domain.CompletedSession{
		session(100, 110, 10),
		session(50, 80, 30),
	}}
	ts, _ := newTestServer(t, tr)

	resp, err := http.Get(ts.URL + "/api/v1/sessions?sort=duration")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, data := decode(t, resp)

	var got []domain.CompletedSession
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, 30.0, got[0].Duration)
	assert.Equal(t, 10.0, got[1].Duration)
}

func TestSessionsInvalidSort(t *testing.T) {
	ts, _ := newTestServer(t, &fakeTracker{})

	resp, err := http.Get(ts.URL + "/api/v1/sessions?sort=alphabetical")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body, _ := decode(t, resp)
	assert.Equal(t, "INVALID_SORT", body.Code)
}

func TestEmptyListsAreArrays(t *testing.T) {
	ts, _ := newTestServer(t, &fakeTracker{})

	for _, path := range []string{"/api/v1/sessions", "/api/v1/detections"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		_, data := decode(t, resp)
		assert.JSONEq(t, "[]", string(data), path)
	}
}

func TestClearRequiresConfirmation(t *testing.T) {
	tr := &fakeTracker{sessions: []domain.CompletedSession{session(1, 2, 1)}}
	ts, _ := newTestServer(t, tr)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/sessions", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusPreconditionRequired, resp.StatusCode)
	body, _ := decode(t, resp)
	assert.Equal(t, "CONFIRMATION_REQUIRED", body.Code)
	assert.Empty(t, tr.cleared)
	assert.Len(t, tr.sessions, 1)
}

func TestClearConfirmed(t *testing.T) {
	tr := &fakeTracker{
		sessions:   []domain.CompletedSession{session(1, 2, 1)},
		detections: []domain.DetectionEvent{domain.NewDetectionEvent(time.UnixMilli(5))},
	}
	ts, _ := newTestServer(t, tr)

	for _, path := range []string{"/api/v1/sessions", "/api/v1/detections"} {
		req, _ := http.NewRequest(http.MethodDelete, ts.URL+path+"?confirm=true", nil)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}
	assert.Equal(t, []string{"sessions", "detections"}, tr.cleared)
}

func TestClearWhenStopped(t *testing.T) {
	tr := &fakeTracker{clearErr: errors.New("monitor is not running")}
	ts, _ := newTestServer(t, tr)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/detections?confirm=1", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body, _ := decode(t, resp)
	assert.Equal(t, "NOT_RUNNING", body.Code)
}

func TestPresencePost(t *testing.T) {
	ts, samples := newTestServer(t, &fakeTracker{})

	resp, err := http.Post(ts.URL+"/api/v1/presence", "application/json", strings.NewReader(`{"faces":2}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	select {
	case s := <-samples:
		assert.True(t, s.Present)
		assert.Equal(t, 2, s.Faces)
	case <-time.After(time.Second):
		t.Fatal("sample not forwarded")
	}
}

func TestPresencePostInvalid(t *testing.T) {
	ts, samples := newTestServer(t, &fakeTracker{})

	resp, err := http.Post(ts.URL+"/api/v1/presence", "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body, _ := decode(t, resp)
	assert.Equal(t, "INVALID_SAMPLE", body.Code)
	assert.Empty(t, samples)
}

func TestPresenceWebSocket(t *testing.T) {
	ts, samples := newTestServer(t, &fakeTracker{})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/presence"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"present":true}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"present":false}`)))

	for _, want := range []bool{true, false} {
		select {
		case s := <-samples:
			assert.Equal(t, want, s.Present)
		case <-time.After(time.Second):
			t.Fatal("sample not forwarded")
		}
	}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`garbage`)))
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var reply APIResponse
	require.NoError(t, conn.ReadJSON(&reply))
	assert.False(t, reply.Success)
	assert.Equal(t, "INVALID_SAMPLE", reply.Code)
}

func TestCheckOrigin(t *testing.T) {
	s := New(&fakeTracker{}, nil, Options{AllowedOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodGet, "/ws/presence", nil)
	assert.True(t, s.checkOrigin(req), "no origin header")

	req.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, s.checkOrigin(req))

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, s.checkOrigin(req))
}
