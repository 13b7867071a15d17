package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/drstein77/smartbilling/internal/catalog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu  sync.Mutex
	txs []Transaction
	err error
}

func (n *recordingNotifier) CheckoutCompleted(_ context.Context, tx Transaction) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.txs = append(n.txs, tx)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.txs)
}

// gateVerifier blocks every verification until release is closed.
type gateVerifier struct {
	release chan struct{}
	pin     string
}

func (g *gateVerifier) Verify(ctx context.Context, candidate string) (Outcome, error) {
	<-g.release
	if candidate == g.pin {
		return OutcomeApproved, nil
	}
	return OutcomeDenied, nil
}

type stubAuthorizer struct {
	outcome Outcome
	err     error
}

func (a stubAuthorizer) Authorize(context.Context, PaymentMethod, decimal.Decimal) (Outcome, error) {
	return a.outcome, a.err
}

func newTestSession(t *testing.T, opts ...func(*Config)) *Session {
	t.Helper()
	cfg := Config{
		Resolver: catalog.Default(),
		Verifier: NewDemoVerifier(DefaultPIN, 0),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewSession(cfg)
}

func scanAll(t *testing.T, s *Session, codes ...string) {
	t.Helper()
	for _, code := range codes {
		_, err := s.Scan(code)
		require.NoError(t, err, "scan %s", code)
	}
}

func submit(t *testing.T, s *Session, pin string) Outcome {
	t.Helper()
	require.NoError(t, s.EnterPin(pin))
	done, err := s.SubmitPin(context.Background())
	require.NoError(t, err)
	select {
	case outcome := <-done:
		return outcome
	case <-time.After(2 * time.Second):
		t.Fatal("verification did not complete")
	}
	return ""
}

func toPinVerification(t *testing.T, s *Session) {
	t.Helper()
	scanAll(t, s, "12345", "12345", "67890")
	require.True(t, s.Confirm())
	require.NoError(t, s.SelectPayment(context.Background(), PaymentMethodWeb))
	require.Equal(t, StatePinVerification, s.Snapshot().State)
}

func TestScenarioA_ScanAggregatesAndTotals(t *testing.T) {
	s := newTestSession(t)
	scanAll(t, s, "12345", "12345", "67890")

	snap := s.Snapshot()
	require.Len(t, snap.Lines, 2)
	assert.Equal(t, 2, snap.Lines[0].Quantity)
	assert.Equal(t, 1, snap.Lines[1].Quantity)
	assert.Equal(t, "12.25", snap.Total.StringFixed(2))
	assert.Equal(t, 3, snap.ItemCount)
	assert.True(t, snap.CanConfirm)
}

func TestScenarioB_ConfirmWithEmptyCartIsNoop(t *testing.T) {
	s := newTestSession(t)

	assert.False(t, s.Confirm())
	snap := s.Snapshot()
	assert.Equal(t, StateScanning, snap.State)
	assert.False(t, snap.CanConfirm)
}

func TestScenarioC_WrongThenCorrectPin(t *testing.T) {
	s := newTestSession(t)
	toPinVerification(t, s)
	assert.Equal(t, "12.25", s.Snapshot().Total.StringFixed(2))

	assert.Equal(t, OutcomeDenied, submit(t, s, "0000"))
	snap := s.Snapshot()
	assert.Equal(t, StatePinVerification, snap.State)
	assert.True(t, snap.PinError)
	assert.Zero(t, snap.PinLength)
	assert.False(t, snap.Verifying)

	assert.Equal(t, OutcomeApproved, submit(t, s, DefaultPIN))
	snap = s.Snapshot()
	assert.Equal(t, StateSuccess, snap.State)
	require.NotNil(t, snap.Transaction)
	assert.Equal(t, PaymentMethodWeb, snap.Transaction.Method)
	assert.Equal(t, "12.25", snap.Transaction.Total.StringFixed(2))
}

func TestScenarioD_DoneResetsSession(t *testing.T) {
	s := newTestSession(t)
	scanAll(t, s, "11111")
	require.True(t, s.Confirm())
	require.NoError(t, s.SelectPayment(context.Background(), PaymentMethodCard))
	before := s.Snapshot()
	require.Equal(t, StateSuccess, before.State)

	require.NoError(t, s.Done())

	after := s.Snapshot()
	assert.Equal(t, StateScanning, after.State)
	assert.Empty(t, after.Lines)
	assert.Equal(t, PaymentMethod(""), after.Payment)
	assert.Nil(t, after.Transaction)
	assert.True(t, after.Total.IsZero())
	assert.NotEqual(t, before.SessionID, after.SessionID)
}

func TestDeniedPins(t *testing.T) {
	for _, pin := range []string{"0000", "9999", "0234", "1034", "1204", "1235"} {
		t.Run(pin, func(t *testing.T) {
			s := newTestSession(t)
			toPinVerification(t, s)

			assert.Equal(t, OutcomeDenied, submit(t, s, pin))
			snap := s.Snapshot()
			assert.Equal(t, StatePinVerification, snap.State)
			assert.True(t, snap.PinError)
			assert.Zero(t, snap.PinLength)
		})
	}
}

func TestUnlimitedRetries(t *testing.T) {
	s := newTestSession(t)
	toPinVerification(t, s)
	for i := 0; i < 20; i++ {
		require.Equal(t, OutcomeDenied, submit(t, s, "4321"))
	}
	assert.Equal(t, OutcomeApproved, submit(t, s, DefaultPIN))
}

func TestCardAndUPIGoStraightToSuccess(t *testing.T) {
	for _, method := range []PaymentMethod{PaymentMethodCard, PaymentMethodUPI} {
		t.Run(method.String(), func(t *testing.T) {
			notifier := &recordingNotifier{}
			s := newTestSession(t, func(c *Config) { c.Notifier = notifier })
			scanAll(t, s, "33333")
			require.True(t, s.Confirm())

			require.NoError(t, s.SelectPayment(context.Background(), method))
			snap := s.Snapshot()
			assert.Equal(t, StateSuccess, snap.State)
			assert.Equal(t, method, snap.Payment)
			assert.Equal(t, 1, notifier.count())
		})
	}
}

func TestDeniedAuthorizationStaysOnPaymentSelection(t *testing.T) {
	for _, outcome := range []Outcome{OutcomeDenied, OutcomePending} {
		s := newTestSession(t, func(c *Config) { c.Authorizer = stubAuthorizer{outcome: outcome} })
		scanAll(t, s, "33333")
		require.True(t, s.Confirm())

		err := s.SelectPayment(context.Background(), PaymentMethodCard)
		assert.ErrorIs(t, err, ErrPaymentNotApproved)
		snap := s.Snapshot()
		assert.Equal(t, StatePaymentSelection, snap.State)
		assert.NotEmpty(t, snap.PaymentError)
		assert.Equal(t, PaymentMethod(""), snap.Payment)
	}

	s := newTestSession(t, func(c *Config) { c.Authorizer = stubAuthorizer{err: errors.New("gateway down")} })
	scanAll(t, s, "33333")
	require.True(t, s.Confirm())
	assert.ErrorIs(t, s.SelectPayment(context.Background(), PaymentMethodUPI), ErrPaymentNotApproved)
}

func TestNotifierFailureDoesNotRevertSuccess(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("broker unavailable")}
	s := newTestSession(t, func(c *Config) { c.Notifier = notifier })
	scanAll(t, s, "33333")
	require.True(t, s.Confirm())
	require.NoError(t, s.SelectPayment(context.Background(), PaymentMethodCard))
	assert.Equal(t, StateSuccess, s.Snapshot().State)
}

func TestBackTransitions(t *testing.T) {
	s := newTestSession(t)
	assert.ErrorIs(t, s.Back(), ErrInvalidTransition)

	toPinVerification(t, s)
	_, err := s.PressDigit('1')
	require.NoError(t, err)

	require.NoError(t, s.Back())
	snap := s.Snapshot()
	assert.Equal(t, StatePaymentSelection, snap.State)
	assert.Zero(t, snap.PinLength)
	assert.Equal(t, PaymentMethod(""), snap.Payment)

	require.NoError(t, s.Back())
	snap = s.Snapshot()
	assert.Equal(t, StateScanning, snap.State)
	assert.Len(t, snap.Lines, 2, "back keeps the cart")
}

func TestSubmitRejectedWhileVerifying(t *testing.T) {
	gate := &gateVerifier{release: make(chan struct{}), pin: DefaultPIN}
	s := newTestSession(t, func(c *Config) { c.Verifier = gate })
	toPinVerification(t, s)

	require.NoError(t, s.EnterPin(DefaultPIN))
	done, err := s.SubmitPin(context.Background())
	require.NoError(t, err)

	assert.True(t, s.Snapshot().Verifying)
	assert.False(t, s.Snapshot().CanSubmitPin)
	_, err = s.SubmitPin(context.Background())
	assert.ErrorIs(t, err, ErrVerificationInFlight)
	assert.ErrorIs(t, s.Back(), ErrVerificationInFlight)
	_, err = s.PressDigit('1')
	assert.ErrorIs(t, err, ErrVerificationInFlight)

	close(gate.release)
	assert.Equal(t, OutcomeApproved, <-done)
	assert.Equal(t, StateSuccess, s.Snapshot().State)
}

func TestVerificationSurvivesCancelledContext(t *testing.T) {
	gate := &gateVerifier{release: make(chan struct{}), pin: DefaultPIN}
	s := newTestSession(t, func(c *Config) { c.Verifier = gate })
	toPinVerification(t, s)
	require.NoError(t, s.EnterPin(DefaultPIN))

	ctx, cancel := context.WithCancel(context.Background())
	done, err := s.SubmitPin(ctx)
	require.NoError(t, err)
	cancel()
	close(gate.release)

	assert.Equal(t, OutcomeApproved, <-done)
	assert.Equal(t, StateSuccess, s.Snapshot().State)
}

func TestSubmitIncompletePin(t *testing.T) {
	s := newTestSession(t)
	toPinVerification(t, s)

	for _, d := range "12" {
		_, err := s.PressDigit(d)
		require.NoError(t, err)
	}
	assert.False(t, s.Snapshot().CanSubmitPin)
	_, err := s.SubmitPin(context.Background())
	assert.ErrorIs(t, err, ErrPinIncomplete)
}

func TestPinDigitsEditing(t *testing.T) {
	s := newTestSession(t)
	toPinVerification(t, s)

	accepted, err := s.PressDigit('x')
	require.NoError(t, err)
	assert.False(t, accepted)

	for _, d := range "12345" {
		_, err := s.PressDigit(d)
		require.NoError(t, err)
	}
	assert.Equal(t, PinLength, s.Snapshot().PinLength)

	removed, err := s.Backspace()
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 3, s.Snapshot().PinLength)

	_, err = s.PressDigit('4')
	require.NoError(t, err)
	assert.True(t, s.Snapshot().CanSubmitPin)

	done, err := s.SubmitPin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeApproved, <-done)
}

func TestTypingClearsPinError(t *testing.T) {
	s := newTestSession(t)
	toPinVerification(t, s)
	submit(t, s, "9999")
	require.True(t, s.Snapshot().PinError)

	_, err := s.PressDigit('1')
	require.NoError(t, err)
	assert.False(t, s.Snapshot().PinError)
}

func TestRejectedKeystrokeKeepsPinError(t *testing.T) {
	s := newTestSession(t)
	toPinVerification(t, s)
	submit(t, s, "0000")
	require.True(t, s.Snapshot().PinError)

	accepted, err := s.PressDigit('x')
	require.NoError(t, err)
	assert.False(t, accepted)
	assert.True(t, s.Snapshot().PinError)

	for _, d := range "5678" {
		_, err := s.PressDigit(d)
		require.NoError(t, err)
	}
	assert.False(t, s.Snapshot().PinError)
}

func TestSubmitPinValueIsAtomic(t *testing.T) {
	gate := &gateVerifier{release: make(chan struct{}), pin: DefaultPIN}
	s := newTestSession(t, func(c *Config) { c.Verifier = gate })
	toPinVerification(t, s)

	for _, d := range "99" {
		_, err := s.PressDigit(d)
		require.NoError(t, err)
	}

	done, err := s.SubmitPinValue(context.Background(), DefaultPIN)
	require.NoError(t, err)
	snap := s.Snapshot()
	assert.True(t, snap.Verifying)
	assert.Equal(t, PinLength, snap.PinLength)

	_, err = s.Backspace()
	assert.ErrorIs(t, err, ErrVerificationInFlight)
	_, err = s.PressDigit('0')
	assert.ErrorIs(t, err, ErrVerificationInFlight)

	close(gate.release)
	assert.Equal(t, OutcomeApproved, <-done)
	assert.Equal(t, StateSuccess, s.Snapshot().State)
}

func TestSubmitPinValueRejectsBadPin(t *testing.T) {
	s := newTestSession(t)
	toPinVerification(t, s)
	_, err := s.PressDigit('7')
	require.NoError(t, err)

	_, err = s.SubmitPinValue(context.Background(), "12a4")
	assert.ErrorIs(t, err, ErrInvalidPinFormat)
	_, err = s.SubmitPinValue(context.Background(), "12")
	assert.ErrorIs(t, err, ErrPinIncomplete)

	snap := s.Snapshot()
	assert.False(t, snap.Verifying)
	assert.Equal(t, 1, snap.PinLength)
	assert.Equal(t, StatePinVerification, snap.State)
}

func TestScanNotFoundLeavesCartUntouched(t *testing.T) {
	s := newTestSession(t)
	scanAll(t, s, "12345")

	_, err := s.Scan("00000")
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	snap := s.Snapshot()
	assert.Len(t, snap.Lines, 1)
	assert.Equal(t, StateScanning, snap.State)
	assert.Contains(t, snap.ScanError, "00000")

	scanAll(t, s, "12345")
	assert.Empty(t, s.Snapshot().ScanError)
}

func TestIntentsOutsideTheirState(t *testing.T) {
	s := newTestSession(t)

	assert.ErrorIs(t, s.SelectPayment(context.Background(), PaymentMethodCard), ErrInvalidTransition)
	_, err := s.SubmitPin(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, s.Done(), ErrInvalidTransition)

	scanAll(t, s, "12345")
	require.True(t, s.Confirm())
	_, err = s.Scan("12345")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.RemoveItem("12345")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.False(t, s.Confirm())
}

func TestSelectUnknownPaymentMethod(t *testing.T) {
	s := newTestSession(t)
	scanAll(t, s, "12345")
	require.True(t, s.Confirm())

	assert.ErrorIs(t, s.SelectPayment(context.Background(), PaymentMethod("cash")), ErrInvalidPaymentMethod)
	assert.Equal(t, StatePaymentSelection, s.Snapshot().State)
}

func TestRemoveItem(t *testing.T) {
	s := newTestSession(t)
	scanAll(t, s, "12345", "12345", "67890")

	removed, err := s.RemoveItem("12345")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, "3.25", s.Snapshot().Total.StringFixed(2))

	removed, err = s.RemoveItem("12345")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRapidDuplicateScansIncrement(t *testing.T) {
	s := newTestSession(t)
	for i := 0; i < 10; i++ {
		_, err := s.Scan("44444")
		require.NoError(t, err)
	}
	snap := s.Snapshot()
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, 10, snap.Lines[0].Quantity)
}

func TestDemoVerifierLatency(t *testing.T) {
	v := NewDemoVerifier("1234", 20*time.Millisecond)

	start := time.Now()
	outcome, err := v.Verify(context.Background(), "1234")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApproved, outcome)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome, err = v.Verify(ctx, "1234")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeDenied, outcome)
}
