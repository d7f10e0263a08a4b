// Package run drives a report run from submission to its outcome: it
// validates the request, opens the stream, feeds the body through the line
// reader and the classifier, and resolves exactly one Outcome. It also keeps
// the run context used for retries.
package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Backland-Labs/reportrun/internal/api"
	"github.com/Backland-Labs/reportrun/internal/logger"
	"github.com/Backland-Labs/reportrun/internal/protocol"
	"github.com/Backland-Labs/reportrun/internal/report"
	"github.com/Backland-Labs/reportrun/internal/stream"
)

var (
	// ErrAlreadyRunning is returned when a run is started while another is in flight
	ErrAlreadyRunning = errors.New("a report run is already in progress")

	// ErrNoRunContext is returned by Retry when nothing was submitted for the kind
	ErrNoRunContext = errors.New("no previous request to retry")
)

// Streamer opens the response stream for a request
type Streamer interface {
	OpenStream(ctx context.Context, req report.Request) (io.ReadCloser, error)
}

// ContextStore remembers the last submitted request per kind
type ContextStore interface {
	Get(kind report.Kind) (report.Request, bool, error)
	Set(req report.Request) error
	Clear(kind report.Kind) error
}

// Options tunes a Manager
type Options struct {
	// ChunkSize is the read size for the response body
	ChunkSize int
	// RunTimeout bounds a whole run; zero means no deadline
	RunTimeout time.Duration
	Logger     *logger.Logger
	// NewID generates run identifiers
	NewID func() string
}

// Manager owns the run lifecycle. At most one run is in flight at a time.
type Manager struct {
	streamer Streamer
	store    ContextStore
	sink     Sink
	opts     Options
	log      *logger.Logger

	mu     sync.Mutex
	state  State
	kind   report.Kind
	active bool
	cancel context.CancelFunc
}

// NewManager creates a Manager. A nil sink discards progress.
func NewManager(streamer Streamer, store ContextStore, sink Sink, opts Options) *Manager {
	if sink == nil {
		sink = NopSink{}
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = stream.DefaultChunkSize
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		streamer: streamer,
		store:    store,
		sink:     sink,
		opts:     opts,
		log:      log,
	}
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Running reports whether a run is in flight
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Start submits a fresh request. It returns an error only when the run could
// not start (ErrAlreadyRunning or a *report.ValidationError); every started
// run resolves to an Outcome.
func (m *Manager) Start(ctx context.Context, req report.Request) (Outcome, error) {
	req = req.Clone()
	runCtx, release, err := m.acquire(ctx, req.Kind)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	if err := req.Validate(); err != nil {
		m.setState(req.Kind, Idle)
		return Outcome{}, err
	}

	if err := m.store.Set(req); err != nil {
		m.log.WithError(err).Warn("Failed to remember run context")
	}
	return m.execute(runCtx, req), nil
}

// Retry re-submits the remembered request for kind unchanged
func (m *Manager) Retry(ctx context.Context, kind report.Kind) (Outcome, error) {
	req, ok, err := m.store.Get(kind)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to load run context: %w", err)
	}
	if !ok {
		return Outcome{}, ErrNoRunContext
	}

	runCtx, release, err := m.acquire(ctx, kind)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	if err := req.Validate(); err != nil {
		m.setState(kind, Idle)
		return Outcome{}, err
	}
	return m.execute(runCtx, req), nil
}

// Dismiss forgets the remembered request for kind
func (m *Manager) Dismiss(kind report.Kind) error {
	if err := m.store.Clear(kind); err != nil {
		return fmt.Errorf("failed to clear run context: %w", err)
	}
	m.mu.Lock()
	reset := !m.active && m.kind == kind
	m.mu.Unlock()
	if reset {
		m.setState(kind, Idle)
	}
	return nil
}

// Cancel stops the run in flight. It reports whether there was one.
func (m *Manager) Cancel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active || m.cancel == nil {
		return false
	}
	m.cancel()
	return true
}

func (m *Manager) acquire(ctx context.Context, kind report.Kind) (context.Context, func(), error) {
	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		return nil, nil, ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.active = true
	m.cancel = cancel
	m.kind = kind
	m.mu.Unlock()

	m.setState(kind, Validating)

	release := func() {
		cancel()
		m.mu.Lock()
		m.active = false
		m.cancel = nil
		m.mu.Unlock()
	}
	return runCtx, release, nil
}

func (m *Manager) setState(kind report.Kind, s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	m.sink.OnStateChange(kind, s)
}

// execute runs a validated request to its outcome
func (m *Manager) execute(ctx context.Context, req report.Request) Outcome {
	started := time.Now()
	out := Outcome{RunID: m.opts.NewID(), Kind: req.Kind, Attempts: 1}
	log := m.log.WithRun(out.RunID, string(req.Kind))

	if m.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.RunTimeout)
		defer cancel()
	}

	m.sink.OnLog(protocol.LogEvent(protocol.LevelInfo, StartBanner(req.Kind)))
	m.setState(req.Kind, Requesting)

	done := log.Timed("report run")
	out = m.stream(ctx, req, out, log)
	out.Duration = time.Since(started)
	done(out.Err)

	switch out.Status {
	case Succeeded, Cancelled:
		if err := m.store.Clear(req.Kind); err != nil {
			log.WithError(err).Warn("Failed to clear run context")
		}
	}
	if out.Status == Cancelled {
		m.sink.OnLog(protocol.LogEvent(protocol.LevelInfo, CancelledText))
	}
	m.setState(req.Kind, out.Status)
	return out
}

func (m *Manager) stream(ctx context.Context, req report.Request, out Outcome, log *logger.Logger) Outcome {
	body, err := m.streamer.OpenStream(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return m.interrupted(ctx, req, out)
		}
		return m.fail(req, out, err, "")
	}
	defer body.Close()
	stop := context.AfterFunc(ctx, func() {
		_ = body.Close()
	})
	defer stop()

	m.setState(req.Kind, Streaming)

	lines := stream.NewLineReader(body, m.opts.ChunkSize)
	classifier := protocol.NewClassifier()
	for {
		if ctx.Err() != nil {
			return m.interrupted(ctx, req, out)
		}
		line, err := lines.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if ctx.Err() != nil {
			return m.interrupted(ctx, req, out)
		}
		if err != nil {
			return m.fail(req, out, &api.TransportError{Err: err}, "")
		}
		for _, ev := range classifier.Classify(line) {
			switch ev.Kind {
			case protocol.EventLog:
				m.sink.OnLog(ev)
			case protocol.EventResponse:
				m.sink.OnResponse(ev.Text, ev.Final)
			}
		}
	}

	chunks, n := lines.Stats()
	log.WithFields(map[string]interface{}{"chunks": chunks, "bytes": n}).Debug("Stream finished")

	if classifier.Failed() {
		line := strings.TrimSpace(classifier.LastError())
		return m.fail(req, out, errors.New(line), line)
	}

	out.Status = Succeeded
	out.Text, _ = classifier.Response()
	return out
}

// interrupted resolves a run whose context ended: cancellation by the user
// or the parent, or expiry of the run deadline.
func (m *Manager) interrupted(ctx context.Context, req report.Request, out Outcome) Outcome {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err := fmt.Errorf("run timed out after %s", m.opts.RunTimeout)
		return m.fail(req, out, err, "")
	}
	out.Status = Cancelled
	return out
}

// fail resolves a Failed outcome. When the failure came from a streamed error
// line, that line was already logged and streamedLine carries its text.
func (m *Manager) fail(req report.Request, out Outcome, err error, streamedLine string) Outcome {
	out.Status = Failed
	out.Err = err
	out.Message = failureMessage(req.Kind, err)
	if streamedLine == "" {
		m.sink.OnLog(protocol.LogEvent(protocol.LevelError, protocol.ErrorToken+" "+out.Message))
	}
	return out
}

func failureMessage(kind report.Kind, err error) string {
	if err == nil {
		return FailureText(kind)
	}
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Error()
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return FailureText(kind)
}
