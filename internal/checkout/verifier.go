package checkout

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultPIN           = "1234"
	DefaultVerifyLatency = 1500 * time.Millisecond
)

// Outcome is the result of a verification or authorization step.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeDenied   Outcome = "denied"
	OutcomePending  Outcome = "pending"
)

func (o Outcome) String() string {
	return string(o)
}

// Verifier checks a PIN candidate.
type Verifier interface {
	Verify(ctx context.Context, candidate string) (Outcome, error)
}

// Authorizer approves a payment for methods that need no challenge step.
type Authorizer interface {
	Authorize(ctx context.Context, method PaymentMethod, amount decimal.Decimal) (Outcome, error)
}

// DemoVerifier accepts a single fixed PIN after a simulated round trip.
type DemoVerifier struct {
	pin     string
	latency time.Duration
}

func NewDemoVerifier(pin string, latency time.Duration) *DemoVerifier {
	return &DemoVerifier{pin: pin, latency: latency}
}

func (v *DemoVerifier) Verify(ctx context.Context, candidate string) (Outcome, error) {
	if v.latency > 0 {
		timer := time.NewTimer(v.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return OutcomeDenied, ctx.Err()
		}
	}
	if len(candidate) == len(v.pin) && subtle.ConstantTimeCompare([]byte(candidate), []byte(v.pin)) == 1 {
		return OutcomeApproved, nil
	}
	return OutcomeDenied, nil
}

// MockAuthorizer approves every payment immediately.
type MockAuthorizer struct{}

func (MockAuthorizer) Authorize(context.Context, PaymentMethod, decimal.Decimal) (Outcome, error) {
	return OutcomeApproved, nil
}
