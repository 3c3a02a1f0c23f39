package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	c := NewCollector()

	c.ObserveRun("earnings", 40, 16000, 250*time.Millisecond)
	c.ObserveRun("earnings", 38, 15000, 200*time.Millisecond)
	c.ObserveRun("dividend", 80, 4000, 100*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Runs.WithLabelValues("earnings")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Runs.WithLabelValues("dividend")))
}

func TestObserveProviderCall(t *testing.T) {
	c := NewCollector()

	c.ObserveProviderCall("yahoo", "bars", nil)
	c.ObserveProviderCall("yahoo", "bars", errors.New("status 500"))
	c.ObserveProviderCall("eodhd", "anchors", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.ProviderCalls.WithLabelValues("yahoo", "bars")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ProviderErrors.WithLabelValues("yahoo", "bars")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.ProviderErrors.WithLabelValues("eodhd", "anchors")))
}

func TestHandler(t *testing.T) {
	c := NewCollector()
	c.ObserveRun("earnings", 1, 1, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "eventedge_runs_total"))
}
