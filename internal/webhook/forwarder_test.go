package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"backend-gpslogger/internal/gps"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() gps.Record {
	speed := 10.0
	return gps.Record{
		ID:        "rec-1",
		Latitude:  -26.30,
		Longitude: -48.85,
		Timestamp: "2024-05-01T10:00:00.000Z",
		Speed:     &speed,
		DeviceID:  "phone-1",
	}
}

type captured struct {
	auth        string
	contentType string
	body        map[string]any
}

func captureServer(t *testing.T, status int) (*httptest.Server, chan captured) {
	t.Helper()
	calls := make(chan captured, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		calls <- captured{
			auth:        r.Header.Get("Authorization"),
			contentType: r.Header.Get("Content-Type"),
			body:        body,
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func TestForwardSendsPayloadWithBearer(t *testing.T) {
	srv, calls := captureServer(t, http.StatusOK)
	f := New(Config{URL: srv.URL, Token: "secret"}, zerolog.Nop())

	require.NoError(t, f.Forward(testRecord()))

	got := <-calls
	assert.Equal(t, "Bearer secret", got.auth)
	assert.Contains(t, got.contentType, "application/json")

	loc := got.body["location"].(map[string]any)
	assert.Equal(t, -26.30, loc["latitude"])
	assert.Equal(t, -48.85, loc["longitude"])
	assert.Equal(t, "2024-05-01T10:00:00.000Z", loc["timestamp"])

	meta := got.body["metadata"].(map[string]any)
	assert.Equal(t, 10.0, meta["speed"])
	assert.Nil(t, meta["accuracy"])
	assert.Equal(t, "phone-1", meta["device"])
}

func TestForwardWithoutToken(t *testing.T) {
	srv, calls := captureServer(t, http.StatusNoContent)
	f := New(Config{URL: srv.URL}, zerolog.Nop())

	require.NoError(t, f.Forward(testRecord()))
	assert.Empty(t, (<-calls).auth)
}

func TestForwardNon2xx(t *testing.T) {
	srv, _ := captureServer(t, http.StatusBadGateway)
	f := New(Config{URL: srv.URL}, zerolog.Nop())

	err := f.Forward(testRecord())
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestForwardUnreachable(t *testing.T) {
	f := New(Config{URL: "http://127.0.0.1:1/hook"}, zerolog.Nop())
	assert.Error(t, f.Forward(testRecord()))
}

func TestForwardTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	f := New(Config{URL: srv.URL, Timeout: 50 * time.Millisecond}, zerolog.Nop())
	start := time.Now()
	assert.Error(t, f.Forward(testRecord()))
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestForwardDisabled(t *testing.T) {
	f := New(Config{}, zerolog.Nop())
	assert.False(t, f.Enabled())
	assert.NoError(t, f.Forward(testRecord()))

	f.Dispatch(testRecord())
	f.Wait()
}

func TestDefaultTimeout(t *testing.T) {
	f := New(Config{URL: "http://example"}, zerolog.Nop())
	assert.Equal(t, DefaultTimeout, f.cfg.Timeout)
}

func TestDispatchDoesNotBlock(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		hits.Add(1)
	}))
	defer srv.Close()

	f := New(Config{URL: srv.URL}, zerolog.Nop())
	start := time.Now()
	f.Dispatch(testRecord())
	f.Dispatch(testRecord())
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(release)
	f.Wait()
	assert.Equal(t, int32(2), hits.Load())
}

func TestDispatchSwallowsFailure(t *testing.T) {
	var got error
	f := New(Config{
		URL:      "http://127.0.0.1:1/hook",
		OnResult: func(err error) { got = err },
	}, zerolog.Nop())
	f.Dispatch(testRecord())
	f.Wait()
	assert.Error(t, got)
}
