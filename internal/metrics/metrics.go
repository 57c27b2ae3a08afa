// Package metrics holds the prometheus collectors for worker loads and
// invocations.
package metrics

import (
	"errors"
	"time"

	"github.com/cryguy/fnbridge/internal/core"
	"github.com/prometheus/client_golang/prometheus"
)

// Invocation outcomes.
const (
	OutcomeOK             = "ok"
	OutcomeGuestError     = "guest_error"
	OutcomeNormalizeError = "normalize_error"
	OutcomeMarshalError   = "marshal_error"
	OutcomeHandleError    = "handle_error"
	OutcomeBusy           = "busy"

	OutcomeLoadError = "error"
)

// Collector records worker activity. A nil *Collector is valid and records
// nothing.
type Collector struct {
	loads       *prometheus.CounterVec
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	inFlight    *prometheus.GaugeVec
}

// NewCollector creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "fnbridge_loads_total", Help: "worker loads by outcome"},
			[]string{"worker", "outcome"},
		),
		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "fnbridge_invocations_total", Help: "handler invocations by outcome"},
			[]string{"worker", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fnbridge_invocation_duration_seconds",
				Help:    "handler invocation time.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"worker"},
		),
		inFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "fnbridge_invocations_in_flight", Help: "invocations currently running"},
			[]string{"worker"},
		),
	}
	if reg == nil {
		return c, nil
	}
	var err error
	c.loads, err = register(reg, c.loads)
	if err != nil {
		return nil, err
	}
	c.invocations, err = register(reg, c.invocations)
	if err != nil {
		return nil, err
	}
	c.duration, err = register(reg, c.duration)
	if err != nil {
		return nil, err
	}
	c.inFlight, err = register(reg, c.inFlight)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// register adds col to reg, reusing an identical collector registered
// earlier (several workers share one registry).
func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return col, err
	}
	return col, nil
}

// Load records one Initialize.
func (c *Collector) Load(worker string, err error) {
	if c == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeLoadError
	}
	c.loads.WithLabelValues(worker, outcome).Inc()
}

// Begin marks an invocation as in flight; the returned func records its
// outcome and duration.
func (c *Collector) Begin(worker string) func(resp *core.Response) {
	if c == nil {
		return func(*core.Response) {}
	}
	start := time.Now()
	g := c.inFlight.WithLabelValues(worker)
	g.Inc()
	return func(resp *core.Response) {
		g.Dec()
		c.duration.WithLabelValues(worker).Observe(time.Since(start).Seconds())
		c.invocations.WithLabelValues(worker, Outcome(resp)).Inc()
	}
}

// Outcome classifies a response for the invocations counter.
func Outcome(resp *core.Response) string {
	if resp == nil || !resp.Failed() {
		return OutcomeOK
	}
	if resp.Err == nil {
		return OutcomeGuestError
	}
	if errors.Is(resp.Err, core.ErrReentrantInvocation) {
		return OutcomeBusy
	}
	switch resp.Err.Kind {
	case core.KindNormalization:
		return OutcomeNormalizeError
	case core.KindMarshal:
		return OutcomeMarshalError
	case core.KindHandle:
		return OutcomeHandleError
	}
	return OutcomeGuestError
}
