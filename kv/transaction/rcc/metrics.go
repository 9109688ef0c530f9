package rcc

import "github.com/prometheus/client_golang/prometheus"

var (
	decisionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rcckv",
			Subsystem: "scheduler",
			Name:      "decision_total",
			Help:      "Counter of decided transactions.",
		}, []string{"result"})

	inquiryCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rcckv",
			Subsystem: "scheduler",
			Name:      "inquiry_total",
			Help:      "Counter of inquiries sent and served.",
		}, []string{"type"})

	queueGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "rcckv",
			Subsystem: "scheduler",
			Name:      "queue_size",
			Help:      "Size of the waitlist and the fridge.",
		}, []string{"queue"})

	vertexGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rcckv",
			Subsystem: "scheduler",
			Name:      "vertex_count",
			Help:      "Number of vertices in the dependency graph.",
		})

	epochGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rcckv",
			Subsystem: "scheduler",
			Name:      "epoch",
			Help:      "Current epoch of the scheduler.",
		})

	sccSizeHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rcckv",
			Subsystem: "scheduler",
			Name:      "scc_size",
			Help:      "Bucketed histogram of the size of decided components.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		})

	gcCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rcckv",
			Subsystem: "scheduler",
			Name:      "gc_vertex_total",
			Help:      "Counter of vertices removed by epoch garbage collection.",
		})
)

func init() {
	prometheus.MustRegister(decisionCounter)
	prometheus.MustRegister(inquiryCounter)
	prometheus.MustRegister(queueGauge)
	prometheus.MustRegister(vertexGauge)
	prometheus.MustRegister(epochGauge)
	prometheus.MustRegister(sccSizeHistogram)
	prometheus.MustRegister(gcCounter)
}
