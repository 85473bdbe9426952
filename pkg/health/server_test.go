package health

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srediag/shm-pool/pkg/pool"
)

var _ Probe = (*pool.Owner)(nil)

type fakeProbe struct {
	live, ready error
	state       *pool.State
}

func (f *fakeProbe) Live() error  { return f.live }
func (f *fakeProbe) Ready() error { return f.ready }
func (f *fakeProbe) LastSnapshot() (pool.State, bool) {
	if f.state == nil {
		return pool.State{}, false
	}
	return *f.state, true
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestProbeEndpoints(t *testing.T) {
	probe := &fakeProbe{}
	srv := NewServer("127.0.0.1:0", probe, prometheus.NewRegistry(), nil)
	h := srv.Handler()

	assert.Equal(t, http.StatusOK, get(t, h, "/live").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/ready").Code)

	probe.ready = pool.ErrExhausted
	assert.Equal(t, http.StatusOK, get(t, h, "/live").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/ready").Code)

	probe.live = pool.ErrCorrupted
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/live").Code)
}

func TestStateEndpoint(t *testing.T) {
	probe := &fakeProbe{}
	h := NewServer("127.0.0.1:0", probe, prometheus.NewRegistry(), nil).Handler()

	var body StateResponse
	rec := get(t, h, "/state")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Reported)

	probe.state = &pool.State{Total: 20, Available: 12, Allocated: 8, Transactions: 3}
	rec = get(t, h, "/state")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, StateResponse{Reported: true, Total: 20, Available: 12, Allocated: 8, Transactions: 3}, body)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := pool.NewMetrics(reg)
	m.Available.Set(7)
	probe := &fakeProbe{ready: errors.New("not yet")}
	h := NewServer("127.0.0.1:0", probe, reg, nil).Handler()

	get(t, h, "/ready")
	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shmpool_available_tickets 7")
	assert.Contains(t, rec.Body.String(), "shmpool_healthcheck_status")
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := NewServer(ln.Addr().String(), &fakeProbe{}, prometheus.NewRegistry(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/live")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}
