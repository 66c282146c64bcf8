package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAdmissionRejectedIncrementsByStatus(t *testing.T) {
	m := NewMetrics()
	m.AdmissionRejected(413)
	m.AdmissionRejected(413)
	m.AdmissionRejected(400)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.AdmissionRejections.WithLabelValues("413")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AdmissionRejections.WithLabelValues("400")))
}

func TestObserveRequestBodyFeedsHistogram(t *testing.T) {
	m := NewMetrics()
	m.ObserveRequestBody(1024)

	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestBodySize))
}

func TestConnectionAttachedAndClosedTrackLiveConnections(t *testing.T) {
	m := NewMetrics()
	m.ConnectionAttached()
	m.ConnectionAttached()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.LiveConnections))

	m.ConnectionClosed()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LiveConnections))
}

func TestObserveRequestDurationDoesNotPanicWithoutExporter(t *testing.T) {
	m := NewMetrics()
	assert.NotPanics(t, func() {
		m.ObserveRequestDuration(5 * time.Millisecond)
	})
}
