package scan

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/drstein77/smartbilling/internal/cart"
	"github.com/drstein77/smartbilling/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	mu    sync.Mutex
	codes []string
}

func (s *recordingSink) Scan(code string) (cart.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes = append(s.codes, code)
	if code == "00000" {
		return cart.Line{}, &catalog.NotFoundError{Code: code}
	}
	return cart.Line{Quantity: 1}, nil
}

type nopLog struct{}

func (nopLog) Info(string, ...zap.Field) {}
func (nopLog) Warn(string, ...zap.Field) {}

type countingRecorder struct {
	mu     sync.Mutex
	errors int
}

func (c *countingRecorder) ScanDecodeError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors++
}

func TestPumpDeliversEveryCodeWithoutDebounce(t *testing.T) {
	sink := &recordingSink{}
	src := NewLineSource(stringOpener("12345\n12345\n00000\n67890\n12345\n"), 0)

	require.NoError(t, Pump(context.Background(), src, sink, nopLog{}, PumpOptions{}))
	assert.Equal(t, []string{"12345", "12345", "00000", "67890", "12345"}, sink.codes)
	assert.ErrorIs(t, src.Stop(), ErrNotRunning)
}

func TestPumpDebouncesRepeatsWithinWindow(t *testing.T) {
	sink := &recordingSink{}
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	src := NewLineSource(stringOpener("12345\n12345\n67890\n12345\n"), 0)

	err := Pump(context.Background(), src, sink, nopLog{}, PumpOptions{
		Debounce: time.Second,
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"12345", "67890", "12345"}, sink.codes)
}

func TestDebouncerWindowExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	d := debouncer{window: 500 * time.Millisecond, now: func() time.Time { return now }}

	assert.False(t, d.suppress("1"))
	now = now.Add(100 * time.Millisecond)
	assert.True(t, d.suppress("1"))
	now = now.Add(time.Second)
	assert.False(t, d.suppress("1"))
}

func TestPumpCountsDecodeErrors(t *testing.T) {
	rec := &countingRecorder{}
	src := NewLineSource(stringOpener("bad\x01code\n12345\n"), 0)
	sink := &recordingSink{}

	require.NoError(t, Pump(context.Background(), src, sink, nopLog{}, PumpOptions{Metrics: rec}))
	assert.Equal(t, 1, rec.errors)
	assert.Equal(t, []string{"12345"}, sink.codes)
}

func TestPumpStartFailure(t *testing.T) {
	src := NewLineSource(func() (io.ReadCloser, error) { return nil, errors.New("busy") }, 0)
	assert.Error(t, Pump(context.Background(), src, &recordingSink{}, nopLog{}, PumpOptions{}))
}
