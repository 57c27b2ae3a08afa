package metrics

import (
	"errors"
	"testing"

	"github.com/cryguy/fnbridge/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		name string
		resp *core.Response
		want string
	}{
		{"ok", &core.Response{StatusCode: 200}, OutcomeOK},
		{"nil", nil, OutcomeOK},
		{"guest", core.ErrorResponse(core.NewError(core.KindInvocation, errors.New("boom"))), OutcomeGuestError},
		{"normalize", core.ErrorResponse(core.NewError(core.KindNormalization, core.ErrInvalidStatusCode)), OutcomeNormalizeError},
		{"marshal", core.ErrorResponse(core.NewError(core.KindMarshal, errors.New("x"))), OutcomeMarshalError},
		{"handle", core.ErrorResponse(core.NewError(core.KindHandle, core.ErrUninitializedHandle)), OutcomeHandleError},
		{"busy", core.ErrorResponse(core.NewError(core.KindInvocation, core.ErrReentrantInvocation)), OutcomeBusy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Outcome(tt.resp); got != tt.want {
				t.Errorf("Outcome = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatal(err)
	}

	c.Load("w", nil)
	c.Load("w", errors.New("bad"))
	done := c.Begin("w")
	if got := testutil.ToFloat64(c.inFlight.WithLabelValues("w")); got != 1 {
		t.Errorf("in flight = %v, want 1", got)
	}
	done(&core.Response{StatusCode: 200})
	c.Begin("w")(core.ErrorResponse(core.NewError(core.KindNormalization, core.ErrNotSerializable)))

	if got := testutil.ToFloat64(c.loads.WithLabelValues("w", OutcomeOK)); got != 1 {
		t.Errorf("ok loads = %v", got)
	}
	if got := testutil.ToFloat64(c.loads.WithLabelValues("w", OutcomeLoadError)); got != 1 {
		t.Errorf("failed loads = %v", got)
	}
	if got := testutil.ToFloat64(c.invocations.WithLabelValues("w", OutcomeOK)); got != 1 {
		t.Errorf("ok invocations = %v", got)
	}
	if got := testutil.ToFloat64(c.invocations.WithLabelValues("w", OutcomeNormalizeError)); got != 1 {
		t.Errorf("normalize errors = %v", got)
	}
	if got := testutil.ToFloat64(c.inFlight.WithLabelValues("w")); got != 0 {
		t.Errorf("in flight = %v, want 0", got)
	}
}

func TestNewCollectorTwiceOnSameRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewCollector(reg); err != nil {
		t.Fatal(err)
	}
	if _, err := NewCollector(reg); err != nil {
		t.Fatalf("second NewCollector: %v", err)
	}
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.Load("w", nil)
	c.Begin("w")(nil)
}

func TestCollectorsShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, _ := NewCollector(reg)
	b, _ := NewCollector(reg)
	a.Load("w", nil)
	b.Load("w", nil)
	if got := testutil.ToFloat64(a.loads.WithLabelValues("w", OutcomeOK)); got != 2 {
		t.Errorf("loads = %v, want 2", got)
	}
}
