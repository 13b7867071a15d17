package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/drstein77/smartbilling/internal/cart"
	"github.com/drstein77/smartbilling/internal/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Resolver turns a scanned code into a product.
type Resolver interface {
	Resolve(code string) (catalog.Product, error)
}

// Log interface for logging
type Log interface {
	Info(string, ...zap.Field)
	Warn(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// Config wires the collaborators of a Session. Resolver and Verifier are required.
type Config struct {
	Resolver   Resolver
	Verifier   Verifier
	Authorizer Authorizer
	Notifier   Notifier
	Metrics    Recorder
	Log        Log
	Now        func() time.Time
}

// Session is the checkout flow of a single terminal. All intents are
// serialised; the PIN verification is the only step that runs in the background.
type Session struct {
	mu sync.Mutex

	id           uuid.UUID
	cart         *cart.Cart
	state        State
	payment      PaymentMethod
	pin          PinPad
	pinError     bool
	verifying    bool
	paymentError string
	scanError    string
	tx           *Transaction

	resolver   Resolver
	verifier   Verifier
	authorizer Authorizer
	notifier   Notifier
	metrics    Recorder
	log        Log
	now        func() time.Time
}

// Snapshot is a read-only copy of the session for rendering.
type Snapshot struct {
	SessionID    uuid.UUID
	State        State
	Lines        []cart.Line
	ItemCount    int
	Total        decimal.Decimal
	Payment      PaymentMethod
	PinLength    int
	PinError     bool
	Verifying    bool
	PaymentError string
	ScanError    string
	Transaction  *Transaction
	CanConfirm   bool
	CanSubmitPin bool
}

func NewSession(cfg Config) *Session {
	s := &Session{
		id:         uuid.New(),
		cart:       cart.New(),
		state:      StateScanning,
		resolver:   cfg.Resolver,
		verifier:   cfg.Verifier,
		authorizer: cfg.Authorizer,
		notifier:   cfg.Notifier,
		metrics:    cfg.Metrics,
		log:        cfg.Log,
		now:        cfg.Now,
	}
	if s.authorizer == nil {
		s.authorizer = MockAuthorizer{}
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	if s.log == nil {
		s.log = nopLog{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		SessionID:    s.id,
		State:        s.state,
		Lines:        s.cart.Lines(),
		ItemCount:    s.cart.ItemCount(),
		Total:        s.cart.Total(),
		Payment:      s.payment,
		PinLength:    s.pin.Len(),
		PinError:     s.pinError,
		Verifying:    s.verifying,
		PaymentError: s.paymentError,
		ScanError:    s.scanError,
		CanConfirm:   s.state == StateScanning && !s.cart.IsEmpty(),
		CanSubmitPin: s.state == StatePinVerification && s.pin.Complete() && !s.verifying,
	}
	if s.tx != nil {
		tx := *s.tx
		snap.Transaction = &tx
	}
	return snap
}

// Scan resolves code and adds the product to the cart. A miss leaves the
// cart untouched and is kept as the scan error for display.
func (s *Session) Scan(code string) (cart.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateScanning {
		return cart.Line{}, invalidIntent("scan", s.state)
	}

	product, err := s.resolver.Resolve(code)
	if err != nil {
		s.scanError = err.Error()
		if errors.Is(err, catalog.ErrNotFound) {
			s.metrics.ScanNotFound()
		}
		s.log.Info("scan rejected", zap.String("session_id", s.id.String()), zap.String("code", code), zap.Error(err))
		return cart.Line{}, err
	}

	s.scanError = ""
	line := s.cart.Add(product)
	s.metrics.ScanResolved()
	s.log.Info("item added",
		zap.String("session_id", s.id.String()),
		zap.String("code", code),
		zap.Int("quantity", line.Quantity),
	)
	return line, nil
}

// RemoveItem drops the whole line for productID. Removing an absent line is a no-op.
func (s *Session) RemoveItem(productID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateScanning {
		return false, invalidIntent("remove item", s.state)
	}
	removed := s.cart.Remove(productID)
	if removed {
		s.log.Info("item removed", zap.String("session_id", s.id.String()), zap.String("code", productID))
	}
	return removed, nil
}

// Confirm moves to payment selection when the cart has items. With an empty
// cart, or outside the scanning screen, nothing happens and false is returned.
func (s *Session) Confirm() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateScanning || s.cart.IsEmpty() {
		return false
	}
	s.scanError = ""
	s.moveTo(StatePaymentSelection, "confirm")
	return true
}

// Back returns to the previous screen.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StatePaymentSelection:
		s.paymentError = ""
		s.moveTo(StateScanning, "back")
		return nil
	case StatePinVerification:
		if s.verifying {
			return ErrVerificationInFlight
		}
		s.pin.Clear()
		s.pinError = false
		s.payment = ""
		s.moveTo(StatePaymentSelection, "back")
		return nil
	}
	return invalidIntent("back", s.state)
}

// SelectPayment records the method. Methods that need a challenge go to PIN
// verification; the rest are authorized straight away.
func (s *Session) SelectPayment(ctx context.Context, method PaymentMethod) error {
	s.mu.Lock()

	if s.state != StatePaymentSelection {
		s.mu.Unlock()
		return invalidIntent("select payment", s.state)
	}
	if !method.IsValid() {
		s.mu.Unlock()
		_, err := ParsePaymentMethod(string(method))
		return err
	}

	s.payment = method
	s.paymentError = ""
	if method.RequiresChallenge() {
		s.pin.Clear()
		s.pinError = false
		s.moveTo(StatePinVerification, "select payment")
		s.mu.Unlock()
		return nil
	}

	amount := s.cart.Total()
	outcome, err := s.authorizer.Authorize(ctx, method, amount)
	if err != nil {
		s.log.Error("payment authorization failed", zap.String("session_id", s.id.String()), zap.String("method", method.String()), zap.Error(err))
		outcome = OutcomeDenied
	}
	if outcome != OutcomeApproved {
		s.payment = ""
		s.paymentError = "payment " + outcome.String()
		s.mu.Unlock()
		return ErrPaymentNotApproved
	}

	tx := s.complete()
	s.mu.Unlock()

	s.notify(ctx, tx)
	return nil
}

// PressDigit types one digit into the PIN pad. An accepted digit clears a previous error.
func (s *Session) PressDigit(d rune) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editablePin("enter digit"); err != nil {
		return false, err
	}
	accepted := s.pin.Press(d)
	if accepted {
		s.pinError = false
	}
	return accepted, nil
}

// Backspace removes the last typed digit.
func (s *Session) Backspace() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editablePin("backspace"); err != nil {
		return false, err
	}
	return s.pin.Backspace(), nil
}

// EnterPin replaces the PIN pad with a full PIN.
func (s *Session) EnterPin(pin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editablePin("enter pin"); err != nil {
		return err
	}
	if err := s.pin.Set(pin); err != nil {
		return err
	}
	s.pinError = false
	return nil
}

func (s *Session) editablePin(intent string) error {
	if s.state != StatePinVerification {
		return invalidIntent(intent, s.state)
	}
	if s.verifying {
		return ErrVerificationInFlight
	}
	return nil
}

// SubmitPin starts verification of the typed PIN. The returned channel yields
// the single outcome once it has been applied to the session. Cancelling ctx
// does not abort a verification that has started.
func (s *Session) SubmitPin(ctx context.Context) (<-chan Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editablePin("submit pin"); err != nil {
		return nil, err
	}
	return s.startVerification(ctx)
}

// SubmitPinValue replaces the pad with pin and submits it in one step, so no
// keystroke can change the PIN between entry and verification.
func (s *Session) SubmitPinValue(ctx context.Context, pin string) (<-chan Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editablePin("submit pin"); err != nil {
		return nil, err
	}
	if err := s.pin.Set(pin); err != nil {
		return nil, err
	}
	s.pinError = false
	return s.startVerification(ctx)
}

// startVerification hands the pad contents to the verifier. Callers hold the lock.
func (s *Session) startVerification(ctx context.Context) (<-chan Outcome, error) {
	if !s.pin.Complete() {
		return nil, ErrPinIncomplete
	}
	candidate := s.pin.Value()
	s.verifying = true

	vctx := context.WithoutCancel(ctx)
	done := make(chan Outcome, 1)
	go func() {
		outcome, err := s.verifier.Verify(vctx, candidate)
		if err != nil {
			s.log.Error("pin verification failed", zap.Error(err))
			outcome = OutcomeDenied
		}
		if outcome != OutcomeApproved {
			outcome = OutcomeDenied
		}
		s.applyVerification(vctx, outcome)
		done <- outcome
		close(done)
	}()
	return done, nil
}

func (s *Session) applyVerification(ctx context.Context, outcome Outcome) {
	s.mu.Lock()
	s.verifying = false
	s.metrics.PinAttempt(outcome.String())

	if outcome != OutcomeApproved {
		s.pin.Clear()
		s.pinError = true
		s.log.Warn("pin denied", zap.String("session_id", s.id.String()))
		s.mu.Unlock()
		return
	}

	tx := s.complete()
	s.mu.Unlock()

	s.notify(ctx, tx)
}

// Done acknowledges the success screen and starts a fresh session.
func (s *Session) Done() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSuccess {
		return invalidIntent("done", s.state)
	}
	s.moveTo(StateScanning, "done")
	s.reset()
	return nil
}

func (s *Session) reset() {
	s.id = uuid.New()
	s.cart.Clear()
	s.payment = ""
	s.pin.Clear()
	s.pinError = false
	s.verifying = false
	s.paymentError = ""
	s.scanError = ""
	s.tx = nil
}

// complete enters SUCCESS and records the transaction. Callers hold the lock.
func (s *Session) complete() Transaction {
	s.moveTo(StateSuccess, "complete")
	tx := Transaction{
		ID:          uuid.New(),
		SessionID:   s.id,
		Method:      s.payment,
		Total:       s.cart.Total(),
		Lines:       s.cart.Lines(),
		CompletedAt: s.now().UTC(),
	}
	s.tx = &tx
	total, _ := tx.Total.Float64()
	s.metrics.CheckoutCompleted(tx.Method.String(), total)
	s.log.Info("checkout completed",
		zap.String("session_id", s.id.String()),
		zap.String("transaction_id", tx.ID.String()),
		zap.String("method", tx.Method.String()),
		zap.String("total", tx.Total.StringFixed(2)),
	)
	return tx
}

func (s *Session) notify(ctx context.Context, tx Transaction) {
	if err := s.notifier.CheckoutCompleted(ctx, tx); err != nil {
		s.log.Error("failed to publish checkout completion",
			zap.String("transaction_id", tx.ID.String()),
			zap.Error(err),
		)
	}
}

// moveTo changes state along an allowed edge. Callers hold the lock.
func (s *Session) moveTo(to State, intent string) {
	from := s.state
	if !canTransition(from, to) {
		s.log.Error("illegal transition", zap.String("from", from.String()), zap.String("to", to.String()))
		return
	}
	s.state = to
	s.metrics.Transition(from.String(), to.String())
	s.log.Info("state changed",
		zap.String("session_id", s.id.String()),
		zap.String("intent", intent),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

type nopLog struct{}

func (nopLog) Info(string, ...zap.Field)  {}
func (nopLog) Warn(string, ...zap.Field)  {}
func (nopLog) Error(string, ...zap.Field) {}
