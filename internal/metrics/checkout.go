package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records the checkout flow of the terminal.
type CheckoutMetrics struct {
	scans       *prometheus.CounterVec
	transitions *prometheus.CounterVec
	pinAttempts *prometheus.CounterVec
	completed   *prometheus.CounterVec
	amount      *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	scans := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_scans_total",
		Help: "Scanned codes by result.",
	}, []string{"result"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_transitions_total",
		Help: "State machine transitions.",
	}, []string{"from", "to"})
	pinAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_pin_attempts_total",
		Help: "PIN verifications by outcome.",
	}, []string{"outcome"})
	completed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_completed_total",
		Help: "Completed checkouts by payment method.",
	}, []string{"method"})
	amount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_amount_total",
		Help: "Sum of completed checkout totals by payment method.",
	}, []string{"method"})
	reg.MustRegister(scans, transitions, pinAttempts, completed, amount)
	return &CheckoutMetrics{
		scans:       scans,
		transitions: transitions,
		pinAttempts: pinAttempts,
		completed:   completed,
		amount:      amount,
	}
}

func (c *CheckoutMetrics) ScanResolved() {
	c.incScan("resolved")
}

func (c *CheckoutMetrics) ScanNotFound() {
	c.incScan("not_found")
}

func (c *CheckoutMetrics) ScanDecodeError() {
	c.incScan("decode_error")
}

func (c *CheckoutMetrics) incScan(result string) {
	if c == nil || c.scans == nil {
		return
	}
	c.scans.WithLabelValues(result).Inc()
}

func (c *CheckoutMetrics) Transition(from, to string) {
	if c == nil || c.transitions == nil {
		return
	}
	c.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (c *CheckoutMetrics) PinAttempt(outcome string) {
	if c == nil || c.pinAttempts == nil {
		return
	}
	c.pinAttempts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// CheckoutCompleted counts the checkout and adds its total to the amount counter.
func (c *CheckoutMetrics) CheckoutCompleted(method string, total float64) {
	if c == nil || c.completed == nil {
		return
	}
	method = normalizeLabel(method)
	c.completed.WithLabelValues(method).Inc()
	if total > 0 {
		c.amount.WithLabelValues(method).Add(total)
	}
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
