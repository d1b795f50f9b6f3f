package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendorsync/internal/events"
)

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("list vendors", 200, 20*time.Millisecond)
	m.ObserveRequest("list vendors", 200, 30*time.Millisecond)
	m.ObserveRequest("get vendor", 0, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.upstreamRequests.WithLabelValues("list vendors", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamRequests.WithLabelValues("get vendor", "error")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.upstreamDuration))
}

func TestObserveHTTPLabelsUnmatchedRoutes(t *testing.T) {
	m := New()
	m.ObserveHTTP("GET", "", 404, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404")))
}

func TestSubscribeFollowsBus(t *testing.T) {
	m := New()
	bus := events.NewBus()
	unsubscribe := m.Subscribe(bus)

	ctx := context.Background()
	bus.Publish(ctx, events.NewEvent(events.TotalSpendUpdate, events.TotalSpendPayload{Total: 1234.5}))
	bus.Publish(ctx, events.NewEvent(events.DashboardRefresh, events.RefreshPayload{Reason: "init"}))

	assert.Equal(t, 1234.5, testutil.ToFloat64(m.totalSpend))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes))

	unsubscribe()
	bus.Publish(ctx, events.NewEvent(events.DashboardRefresh, events.RefreshPayload{Reason: "manual"}))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.SetTotalSpend(42)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "vendorsync_total_spend 42")
	assert.Contains(t, string(body), "go_goroutines")
}
