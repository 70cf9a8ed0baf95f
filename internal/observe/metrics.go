package observe

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	onlineConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_connections_online",
		Help: "Number of connections currently in the registry",
	})

	connsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_connections_total",
			Help: "Total accepted connections by transport",
		},
		[]string{"transport"}, // tcp|websocket
	)

	messagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_messages_total",
		Help: "Total chunks enqueued for broadcast",
	})

	bytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_bytes_total",
		Help: "Total payload bytes enqueued for broadcast",
	})

	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_queue_depth",
		Help: "Messages waiting in the broadcast queue",
	})

	deliveriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_deliveries_total",
		Help: "Total successful per-connection writes",
	})

	prunedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_pruned_total",
			Help: "Connections removed from the registry by reason",
		},
		[]string{"reason"}, // closed|write_error|disconnect|shutdown
	)

	acceptErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_accept_errors_total",
		Help: "Transient accept errors",
	})

	broadcastDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay_broadcast_duration_seconds",
		Help:    "Time spent fanning one message out to the registry",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
	})

	queueWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay_queue_wait_seconds",
		Help:    "Time a message spent in the queue before its broadcast pass",
		Buckets: []float64{.0001, .001, .01, .1, 1, 10},
	})

	tapDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_tap_dropped_total",
		Help: "Messages dropped because the tap buffer was full",
	})

	tapErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_tap_errors_total",
			Help: "Tap publish failures by sink",
		},
		[]string{"sink"},
	)
)

func init() {
	prometheus.MustRegister(
		onlineConns,
		connsTotal,
		messagesTotal,
		bytesTotal,
		queueDepth,
		deliveriesTotal,
		prunedTotal,
		acceptErrorsTotal,
		broadcastDuration,
		queueWait,
		tapDroppedTotal,
		tapErrorsTotal,
	)
}

func AddOnline(delta float64)          { onlineConns.Add(delta) }
func IncConnection(transport string)   { connsTotal.WithLabelValues(transport).Inc() }
func SetQueueDepth(n int)              { queueDepth.Set(float64(n)) }
func AddDeliveries(n int)              { deliveriesTotal.Add(float64(n)) }
func IncPruned(reason string)          { prunedTotal.WithLabelValues(reason).Inc() }
func IncAcceptError()                  { acceptErrorsTotal.Inc() }
func IncTapDropped()                   { tapDroppedTotal.Inc() }
func IncTapError(sink string)          { tapErrorsTotal.WithLabelValues(sink).Inc() }
func ObserveBroadcast(d time.Duration) { broadcastDuration.Observe(d.Seconds()) }
func ObserveQueueWait(d time.Duration) { queueWait.Observe(d.Seconds()) }

// IncMessage records one enqueued chunk of n bytes.
func IncMessage(n int) {
	messagesTotal.Inc()
	bytesTotal.Add(float64(n))
}
