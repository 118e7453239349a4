// Package metrics records upload session and connection events as
// Prometheus metrics.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/specialistvlad/imageburst/internal/upload"
	"github.com/specialistvlad/imageburst/internal/wire"
)

const namespace = "imageburst"

// Status constants for metric labels.
const (
	statusSuccess = "success"
	statusError   = "error"
)

// Recorder turns session and connection events into metrics. It implements
// both upload.Observer and connmgr.Observer.
type Recorder struct {
	registry *prometheus.Registry

	batchesTotal    *prometheus.CounterVec
	batchDuration   *prometheus.HistogramVec
	framesTotal     *prometheus.CounterVec
	bytesTotal      prometheus.Counter
	acksTotal       prometheus.Counter
	connectionsOpen prometheus.Gauge
	connEvents      *prometheus.CounterVec

	mu      sync.Mutex
	started time.Time
	count   int
	open    map[uint64]struct{}
}

// NewRecorder creates a Recorder with its own registry, which also carries
// the Go runtime and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		open:     make(map[uint64]struct{}),
		batchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_total",
				Help:      "Total number of batches by outcome",
			},
			[]string{"status"},
		),
		batchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Time from submission to the last frame or the failure of a batch",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"status"},
		),
		framesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_sent_total",
				Help:      "Total number of frames handed to the transport",
			},
			[]string{"kind"},
		),
		bytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payload_bytes_sent_total",
			Help:      "Total image bytes handed to the transport",
		}),
		acksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acks_received_total",
			Help:      "Total number of frames received from the endpoint",
		}),
		connectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_open",
			Help:      "Number of currently open connections",
		}),
		connEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connection_events_total",
				Help:      "Total number of connection lifecycle events",
			},
			[]string{"event"}, // open, close, error
		),
	}

	r.registry.MustRegister(
		r.batchesTotal,
		r.batchDuration,
		r.framesTotal,
		r.bytesTotal,
		r.acksTotal,
		r.connectionsOpen,
		r.connEvents,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the underlying Prometheus registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns an http.Handler serving the registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// HandleEvent records a session event.
func (r *Recorder) HandleEvent(e upload.Event) {
	switch e.Type {
	case upload.EventConnecting:
		r.mu.Lock()
		r.started = time.Now()
		r.count = 0
		r.mu.Unlock()
	case upload.EventHeaderSent:
		r.framesTotal.WithLabelValues(wire.Text.String()).Inc()
		r.mu.Lock()
		r.count = e.Count
		r.mu.Unlock()
	case upload.EventPayloadSent:
		r.framesTotal.WithLabelValues(wire.Binary.String()).Inc()
		r.bytesTotal.Add(float64(e.Bytes))
		r.mu.Lock()
		last := e.Index == r.count-1
		r.mu.Unlock()
		if last {
			r.finishBatch(statusSuccess)
		}
	case upload.EventAck:
		r.acksTotal.Inc()
	case upload.EventError:
		r.finishBatch(statusError)
	default:
	}
}

func (r *Recorder) finishBatch(status string) {
	r.mu.Lock()
	started := r.started
	r.started = time.Time{}
	r.mu.Unlock()

	// An error while idle has no batch to account for.
	if started.IsZero() {
		return
	}
	r.batchesTotal.WithLabelValues(status).Inc()
	r.batchDuration.WithLabelValues(status).Observe(time.Since(started).Seconds())
}

// OnOpen records an opened connection.
func (r *Recorder) OnOpen(connID uint64) {
	r.mu.Lock()
	r.open[connID] = struct{}{}
	r.mu.Unlock()
	r.connEvents.WithLabelValues("open").Inc()
	r.connectionsOpen.Inc()
}

// OnMessage is a no-op; acks are counted from session events.
func (r *Recorder) OnMessage(uint64, wire.Frame) {}

// OnClose records a cleanly closed connection.
func (r *Recorder) OnClose(connID uint64) {
	r.connEvents.WithLabelValues("close").Inc()
	r.forget(connID)
}

// OnError records a failed connection, including a failed dial.
func (r *Recorder) OnError(connID uint64, _ error) {
	r.connEvents.WithLabelValues("error").Inc()
	r.forget(connID)
}

func (r *Recorder) forget(connID uint64) {
	r.mu.Lock()
	_, ok := r.open[connID]
	delete(r.open, connID)
	r.mu.Unlock()
	if ok {
		r.connectionsOpen.Dec()
	}
}
