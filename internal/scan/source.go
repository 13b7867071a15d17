package scan

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode"
)

// DefaultMaxCodeLength bounds a single decoded code.
const DefaultMaxCodeLength = 64

var (
	ErrAlreadyRunning = errors.New("scan source already running")
	ErrNotRunning     = errors.New("scan source not running")
)

// DecodeError is emitted for input the source could not turn into a code.
type DecodeError struct {
	Raw    string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %s", e.Raw, e.Reason)
}

// Source emits decoded codes until stopped. A stopped source may be started
// again; every run gets fresh channels, which are closed when the run ends.
type Source interface {
	Start(ctx context.Context) error
	Stop() error
	Codes() <-chan string
	Errors() <-chan error
}

// Opener returns the stream a LineSource reads from on each start.
type Opener func() (io.ReadCloser, error)

// Stdin reads codes typed on (or wedged into) standard input.
func Stdin() Opener {
	return func() (io.ReadCloser, error) {
		return io.NopCloser(os.Stdin), nil
	}
}

// Device reads codes from a character device or file, such as a serial scanner.
func Device(path string) Opener {
	return func() (io.ReadCloser, error) {
		return os.Open(path)
	}
}

// LineSource reads newline framed codes, as sent by keyboard-wedge and
// serial barcode readers. The opened stream outlives a run: Stop pauses
// delivery and Close releases the stream.
type LineSource struct {
	open   Opener
	maxLen int

	mu      sync.Mutex
	running bool
	stream  *lineStream
	cancel  context.CancelFunc
	codes   chan string
	errs    chan error
	done    chan struct{}
}

func NewLineSource(open Opener, maxLen int) *LineSource {
	if maxLen <= 0 {
		maxLen = DefaultMaxCodeLength
	}
	return &LineSource{open: open, maxLen: maxLen}
}

// Start begins a run. The stream is opened on first use, or again once the
// previous one reached its end.
func (s *LineSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	if s.stream == nil || s.stream.exhausted() {
		if s.stream != nil {
			_ = s.stream.close()
		}
		st, err := openStream(s.open)
		if err != nil {
			return fmt.Errorf("failed to open scan input: %w", err)
		}
		s.stream = st
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.codes = make(chan string, 16)
	s.errs = make(chan error, 16)
	s.done = make(chan struct{})
	s.running = true

	go s.run(runCtx, s.stream, s.codes, s.errs, s.done)
	return nil
}

// Stop ends the current run. A line the reader already holds is kept for the next run.
func (s *LineSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrNotRunning
	}
	s.halt()
	return nil
}

// Close stops any run and closes the stream. The next Start opens a new one.
func (s *LineSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.halt()
	}
	if s.stream == nil {
		return nil
	}
	err := s.stream.close()
	s.stream = nil
	return err
}

func (s *LineSource) halt() {
	s.cancel()
	<-s.done
	s.running = false
}

func (s *LineSource) Codes() <-chan string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes
}

func (s *LineSource) Errors() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs
}

func (s *LineSource) run(ctx context.Context, st *lineStream, codes chan<- string, errs chan<- error, done chan<- struct{}) {
	defer close(done)
	defer close(errs)
	defer close(codes)

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-st.end:
			if err != nil {
				select {
				case errs <- fmt.Errorf("scan input: %w", err):
				case <-ctx.Done():
				}
			}
			return
		case line := <-st.lines:
			code, err := s.decode(line)
			if code == "" && err == nil {
				continue
			}
			if err != nil {
				select {
				case errs <- err:
				case <-ctx.Done():
					return
				}
				continue
			}
			select {
			case codes <- code:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *LineSource) decode(line string) (string, error) {
	code := strings.TrimRight(line, "\r\n")
	if code == "" {
		return "", nil
	}
	if len(code) > s.maxLen {
		return "", &DecodeError{Raw: code[:s.maxLen], Reason: "code too long"}
	}
	for _, r := range code {
		if unicode.IsControl(r) {
			return "", &DecodeError{Raw: code, Reason: "control character in code"}
		}
	}
	return code, nil
}

// lineStream is one opened input with the only goroutine that reads it.
// Streams whose Close does not interrupt a read, like stdin, are never
// read by two goroutines at once.
type lineStream struct {
	rc    io.ReadCloser
	lines chan string
	end   chan error
	quit  chan struct{}
	gone  chan struct{}
	once  sync.Once
}

func openStream(open Opener) (*lineStream, error) {
	rc, err := open()
	if err != nil {
		return nil, err
	}
	st := &lineStream{
		rc:    rc,
		lines: make(chan string),
		end:   make(chan error, 1),
		quit:  make(chan struct{}),
		gone:  make(chan struct{}),
	}
	go st.read()
	return st, nil
}

// read delivers lines until the input ends. gone is closed before the
// terminal error, nil on EOF, is handed to end.
func (st *lineStream) read() {
	br := bufio.NewReader(st.rc)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			select {
			case st.lines <- line:
			case <-st.quit:
				close(st.gone)
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || st.closed() {
				err = nil
			}
			close(st.gone)
			st.end <- err
			return
		}
	}
}

func (st *lineStream) exhausted() bool {
	select {
	case <-st.gone:
		return true
	default:
		return false
	}
}

func (st *lineStream) closed() bool {
	select {
	case <-st.quit:
		return true
	default:
		return false
	}
}

func (st *lineStream) close() error {
	var err error
	st.once.Do(func() {
		close(st.quit)
		err = st.rc.Close()
	})
	return err
}
