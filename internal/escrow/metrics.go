package escrow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/diceroll/internal/dice"
	"github.com/roach88/diceroll/internal/wager"
)

// Metrics are the controller's Prometheus collectors.
type Metrics struct {
	ops      *prometheus.CounterVec
	outcomes *prometheus.CounterVec
	staked   prometheus.Counter
	paid     prometheus.Counter
	held     prometheus.Counter
}

// NewMetrics registers the collectors with reg. Pass prometheus.NewRegistry()
// in tests to keep runs isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diceroll",
			Name:      "operations_total",
			Help:      "Lifecycle operations by kind and result code (ok on success).",
		}, []string{"op", "result"}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diceroll",
			Name:      "play_outcomes_total",
			Help:      "Resolved plays by outcome.",
		}, []string{"outcome"}),
		staked: f.NewCounter(prometheus.CounterOpts{
			Namespace: "diceroll",
			Name:      "staked_total",
			Help:      "Total amount moved into escrow.",
		}),
		paid: f.NewCounter(prometheus.CounterOpts{
			Namespace: "diceroll",
			Name:      "paid_out_total",
			Help:      "Total amount released from escrow to winners and vendors.",
		}),
		held: f.NewCounter(prometheus.CounterOpts{
			Namespace: "diceroll",
			Name:      "held_sessions_total",
			Help:      "Sessions marked held after a settlement failure.",
		}),
	}
}

func (m *Metrics) observe(op wager.OpKind, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = string(wager.CodeOf(err))
		if result == "" {
			result = "internal"
		}
	}
	m.ops.WithLabelValues(string(op), result).Inc()
}

func (m *Metrics) outcome(o dice.Outcome) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(string(o)).Inc()
}

func (m *Metrics) escrowed(amount uint64) {
	if m == nil {
		return
	}
	m.staked.Add(float64(amount))
}

func (m *Metrics) released(amount uint64) {
	if m == nil || amount == 0 {
		return
	}
	m.paid.Add(float64(amount))
}

func (m *Metrics) markHeld() {
	if m == nil {
		return
	}
	m.held.Inc()
}
