package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	dispatchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "svcengine",
			Subsystem: "dispatch",
			Name:      "requests_total",
			Help:      "Requests dispatched by the controller.",
		},
		[]string{"service", "method", "status"},
	)
	dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "svcengine",
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "Time from dispatch to response in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method"},
	)
	workerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "svcengine",
			Subsystem: "worker",
			Name:      "requests_total",
			Help:      "Worker round-trips by outcome (answered, timeout, stale, unavailable, cancelled).",
		},
		[]string{"service", "outcome"},
	)
	workerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "svcengine",
			Subsystem: "worker",
			Name:      "state",
			Help:      "Current worker state (0 created, 1 running, 2 stop requested, 3 stopped, 4 force terminated).",
		},
		[]string{"service"},
	)
)

// NoService labels dispatches that never reached a service.
const NoService = "-"

// Register adds the collectors to the default registry. Safe to call repeatedly.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(dispatchRequests, dispatchDuration, workerRequests, workerState)
	})
}

func RecordDispatch(service, method string, status int, duration time.Duration) {
	Register()
	if service == "" {
		service = NoService
	}
	dispatchRequests.WithLabelValues(service, method, strconv.Itoa(status)).Inc()
	dispatchDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

func RecordWorkerRequest(service, outcome string) {
	Register()
	workerRequests.WithLabelValues(service, outcome).Inc()
}

func SetWorkerState(service string, state int) {
	Register()
	workerState.WithLabelValues(service).Set(float64(state))
}
