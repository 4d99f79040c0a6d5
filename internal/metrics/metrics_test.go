package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New(nil)

	m.FixAccepted("gps")
	m.FixAccepted("gps")
	m.FixAccepted("network")
	m.FixRejected()
	m.ForwardResult(nil)
	m.ForwardResult(errors.New("boom"))
	m.ForwardResult(errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.fixesAccepted.WithLabelValues("gps")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fixesAccepted.WithLabelValues("network")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fixesRejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.forwards.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.forwards.WithLabelValues("error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.FixAccepted("gps")
		m.FixRejected()
		m.ForwardResult(nil)
	})
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New(func() int { return 7 })
	m.FixAccepted("gps")

	app := fiber.New()
	app.Get("/metrics", m.Handler())

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, `gps_fixes_accepted_total{provider="gps"} 1`), text)
	assert.True(t, strings.Contains(text, "gps_history_size 7"), text)
}

func TestProviderLabel(t *testing.T) {
	assert.Equal(t, "gps", ProviderLabel("gps"))
	assert.Equal(t, "network", ProviderLabel(" Network "))
	assert.Equal(t, "fused", ProviderLabel("FUSED"))
	assert.Equal(t, "passive", ProviderLabel("passive"))
	assert.Equal(t, OtherProvider, ProviderLabel("unknown"))
	assert.Equal(t, OtherProvider, ProviderLabel(""))
	assert.Equal(t, OtherProvider, ProviderLabel("p-42"))
}

func TestAcceptedSeriesStayBounded(t *testing.T) {
	m := New(nil)

	for _, p := range []string{"gps", "network", "fused", "passive"} {
		m.FixAccepted(p)
	}
	for i := 0; i < 500; i++ {
		m.FixAccepted(fmt.Sprintf("p-%d", i))
	}

	assert.Equal(t, 5, testutil.CollectAndCount(m.fixesAccepted))
	assert.Equal(t, 500.0, testutil.ToFloat64(m.fixesAccepted.WithLabelValues(OtherProvider)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fixesAccepted.WithLabelValues("gps")))
}
