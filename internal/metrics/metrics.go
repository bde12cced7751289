// Package metrics holds the prometheus collectors shared across session,
// transport, mysql, and postgres. It generalizes the teacher's hand-rolled
// PoolMetrics (carlolib/metrics.go, carlolib/pools.go) into real
// prometheus.Counter/Gauge series: na+nr (new acquires + reuses) becomes a
// CounterVec labelled "new"/"reuse", np becomes a release counter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestPoolAcquires counts session.requestPool.acquire calls,
	// labelled "new" or "reuse" (carlolib/pools.go's na/nr).
	RequestPoolAcquires = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adbcj",
		Subsystem: "request_pool",
		Name:      "acquires_total",
		Help:      "Count of Request arena acquisitions, by whether a pooled instance was reused.",
	}, []string{"source"})

	// RequestPoolReleases counts session.requestPool.release calls
	// (carlolib/pools.go's np).
	RequestPoolReleases = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "adbcj",
		Subsystem: "request_pool",
		Name:      "releases_total",
		Help:      "Count of Request arena releases.",
	})

	// WriteBufferPoolAcquires counts transport.writePool.acquire calls,
	// labelled "pool"; bytebufferpool does not report whether a buffer was
	// new or reused, so carlolib/pendingwritepool.go's na/nr split is not kept.
	WriteBufferPoolAcquires = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adbcj",
		Subsystem: "write_buffer_pool",
		Name:      "acquires_total",
		Help:      "Count of outbound write-buffer acquisitions, by whether a pooled instance was reused.",
	}, []string{"source"})

	// WriteBufferPoolReleases counts transport.writePool.release calls.
	WriteBufferPoolReleases = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "adbcj",
		Subsystem: "write_buffer_pool",
		Name:      "releases_total",
		Help:      "Count of outbound write-buffer releases.",
	})

	// RequestsInFlight is the number of sessions with a non-nil active
	// request at any given moment.
	RequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "adbcj",
		Name:      "requests_in_flight",
		Help:      "Number of sessions currently awaiting a protocol response for their active request.",
	})

	// PipeliningDepth observes how many requests were walked forward and
	// executed eagerly during one promotion's pipelining walk (spec §4.2
	// "Promotion on completion").
	PipeliningDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "adbcj",
		Name:      "pipelining_depth",
		Help:      "Number of pipelinable requests executed eagerly in one promotion walk.",
		Buckets:   prometheus.LinearBuckets(0, 1, 10),
	})
)
