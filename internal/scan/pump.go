package scan

import (
	"context"
	"errors"
	"time"

	"github.com/drstein77/smartbilling/internal/cart"
	"go.uber.org/zap"
)

// Sink receives decoded codes one at a time.
type Sink interface {
	Scan(code string) (cart.Line, error)
}

// Log interface for logging
type Log interface {
	Info(string, ...zap.Field)
	Warn(string, ...zap.Field)
}

// Recorder counts feed level failures.
type Recorder interface {
	ScanDecodeError()
}

// PumpOptions tunes how codes reach the sink. A zero Debounce passes every
// code through, so rapid duplicate scans add the product repeatedly.
type PumpOptions struct {
	Debounce time.Duration
	Metrics  Recorder
	Now      func() time.Time
}

// Pump starts src and feeds its codes, in arrival order, into sink until ctx
// is done or the source runs dry. The source is stopped before Pump returns.
func Pump(ctx context.Context, src Source, sink Sink, log Log, opts PumpOptions) error {
	if err := src.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := src.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
			log.Warn("failed to stop scan source", zap.Error(err))
		}
	}()

	if opts.Now == nil {
		opts.Now = time.Now
	}
	d := debouncer{window: opts.Debounce, now: opts.Now}
	codes, errs := src.Codes(), src.Errors()

	for codes != nil || errs != nil {
		select {
		case <-ctx.Done():
			return nil
		case code, ok := <-codes:
			if !ok {
				codes = nil
				continue
			}
			if d.suppress(code) {
				log.Info("duplicate scan suppressed", zap.String("code", code))
				continue
			}
			if _, err := sink.Scan(code); err != nil {
				log.Warn("scanned code rejected", zap.String("code", code), zap.Error(err))
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if opts.Metrics != nil {
				opts.Metrics.ScanDecodeError()
			}
			log.Warn("scan decode error", zap.Error(err))
		}
	}
	return nil
}

type debouncer struct {
	window time.Duration
	now    func() time.Time
	last   string
	at     time.Time
}

func (d *debouncer) suppress(code string) bool {
	if d.window <= 0 {
		return false
	}
	now := d.now()
	if code == d.last && now.Sub(d.at) < d.window {
		return true
	}
	d.last = code
	d.at = now
	return false
}
