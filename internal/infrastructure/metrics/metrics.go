package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lorrc/helpdesk-client/internal/core/ports"
)

const namespace = "helpdesk"

// Prometheus records ticket synchronization metrics on its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	reloads       *prometheus.CounterVec
	mutations     *prometheus.CounterVec
	pushes        *prometheus.CounterVec
	pollSkipped   prometheus.Counter
	pushConnected prometheus.Gauge
}

var _ ports.Metrics = (*Prometheus)(nil)

// New creates the collectors and registers them together with the Go
// runtime collectors.
func New() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reloads_total",
				Help:      "Ticket list reloads by trigger and outcome",
			},
			[]string{"trigger", "status"},
		),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mutations_total",
				Help:      "Ticket mutations sent to the API by operation and outcome",
			},
			[]string{"op", "status"},
		),
		pushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "push_events_total",
				Help:      "Pushed tickets by how the store applied them",
			},
			[]string{"result"},
		),
		pollSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_skipped_total",
			Help:      "Poll ticks skipped because a reload was still running",
		}),
		pushConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "push_connected",
			Help:      "1 while the push socket is connected",
		}),
	}

	p.registry.MustRegister(
		p.reloads,
		p.mutations,
		p.pushes,
		p.pollSkipped,
		p.pushConnected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// Registry exposes the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func (p *Prometheus) ObserveReload(trigger string, err error) {
	p.reloads.WithLabelValues(trigger, status(err)).Inc()
}

func (p *Prometheus) ObserveMutation(op string, err error) {
	p.mutations.WithLabelValues(op, status(err)).Inc()
}

func (p *Prometheus) ObservePush(result string) {
	p.pushes.WithLabelValues(result).Inc()
}

func (p *Prometheus) ObservePollSkipped() {
	p.pollSkipped.Inc()
}

func (p *Prometheus) SetPushConnected(connected bool) {
	if connected {
		p.pushConnected.Set(1)
		return
	}
	p.pushConnected.Set(0)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
