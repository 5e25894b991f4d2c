package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordDispatch(t *testing.T) {
	before := testutil.ToFloat64(dispatchRequests.WithLabelValues("Root", "GET", "200"))
	RecordDispatch("Root", "GET", 200, 5*time.Millisecond)
	after := testutil.ToFloat64(dispatchRequests.WithLabelValues("Root", "GET", "200"))
	assert.Equal(t, before+1, after)
}

func TestRecordDispatchWithoutService(t *testing.T) {
	before := testutil.ToFloat64(dispatchRequests.WithLabelValues(NoService, "GET", "404"))
	RecordDispatch("", "GET", 404, time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(dispatchRequests.WithLabelValues(NoService, "GET", "404")))
}

func TestWorkerMetrics(t *testing.T) {
	RecordWorkerRequest("Random", "timeout")
	assert.GreaterOrEqual(t, testutil.ToFloat64(workerRequests.WithLabelValues("Random", "timeout")), 1.0)

	SetWorkerState("Random", 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(workerState.WithLabelValues("Random")))
}
