package mixing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const labelQueue = "queue"

var packetsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "mixing",
	Name:      "packets_ingested_total",
	Help:      "Total number of packets accepted into a window",
}, []string{labelQueue})

var packetsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "mixing",
	Name:      "packets_rejected_total",
	Help:      "Total number of packets rejected before reaching the buffer",
}, []string{labelQueue})

var pushouts = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "mixing",
	Name:      "pushouts_total",
	Help:      "Total number of windows forced out by a repeated origin",
}, []string{labelQueue})

var batchesEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "mixing",
	Name:      "batches_emitted_total",
	Help:      "Total number of batches handed to subscribers",
}, []string{labelQueue})

var batchSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Subsystem: "mixing",
	Name:      "batch_size",
	Help:      "Number of packets per emitted batch",
	Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
}, []string{labelQueue})

var pendingWindows = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Subsystem: "mixing",
	Name:      "pending_windows",
	Help:      "Number of open windows",
}, []string{labelQueue})

var storeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "mixing",
	Name:      "store_errors_total",
	Help:      "Total number of failed buffer operations",
}, []string{labelQueue, "op"})
