package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors, registered via Register.
var (
	workerStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spiderctl",
			Subsystem: "worker",
			Name:      "starts_total",
			Help:      "Number of successful worker starts.",
		}, []string{"name"},
	)
	workerStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spiderctl",
			Subsystem: "worker",
			Name:      "stops_total",
			Help:      "Number of confirmed worker stops (graceful or kill).",
		}, []string{"name"},
	)
	launchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spiderctl",
			Subsystem: "worker",
			Name:      "launch_failures_total",
			Help:      "Number of starts that died within the grace interval.",
		}, []string{"name"},
	)
	staleRecordsPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "spiderctl",
			Subsystem: "worker",
			Name:      "stale_records_purged_total",
			Help:      "Pid records removed because the process no longer exists.",
		},
	)
	logsRemoved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "spiderctl",
			Subsystem: "logs",
			Name:      "removed_total",
			Help:      "Log files deleted by clean after the retention window.",
		},
	)
)

// Register registers all metrics with the provided registerer. Safe to call
// multiple times.
func Register(r prometheus.Registerer) error {
	cs := []prometheus.Collector{workerStarts, workerStops, launchFailures, staleRecordsPurged, logsRemoved}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Handler serves Prometheus metrics for the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

func IncStart(name string)         { workerStarts.WithLabelValues(name).Inc() }
func IncStop(name string)          { workerStops.WithLabelValues(name).Inc() }
func IncLaunchFailure(name string) { launchFailures.WithLabelValues(name).Inc() }
func IncStalePurged()              { staleRecordsPurged.Inc() }
func AddLogsRemoved(n int)         { logsRemoved.Add(float64(n)) }
