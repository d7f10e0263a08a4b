package run

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Backland-Labs/reportrun/internal/api"
	"github.com/Backland-Labs/reportrun/internal/core"
	"github.com/Backland-Labs/reportrun/internal/logger"
	"github.com/Backland-Labs/reportrun/internal/protocol"
	"github.com/Backland-Labs/reportrun/internal/report"
)

type responseEvent struct {
	Text  string
	Final bool
}

// recordingSink keeps every callback for inspection
type recordingSink struct {
	mu         sync.Mutex
	states     []State
	logs       []protocol.Event
	responses  []responseEvent
	onState    func(State)
	onResponse func(string, bool)
}

func (s *recordingSink) OnStateChange(_ report.Kind, state State) {
	s.mu.Lock()
	s.states = append(s.states, state)
	hook := s.onState
	s.mu.Unlock()
	if hook != nil {
		hook(state)
	}
}

func (s *recordingSink) OnLog(ev protocol.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, ev)
}

func (s *recordingSink) OnResponse(text string, final bool) {
	s.mu.Lock()
	s.responses = append(s.responses, responseEvent{text, final})
	hook := s.onResponse
	s.mu.Unlock()
	if hook != nil {
		hook(text, final)
	}
}

func (s *recordingSink) logTexts(level protocol.Level) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, ev := range s.logs {
		if ev.Level == level {
			out = append(out, ev.Text)
		}
	}
	return out
}

// fakeStreamer records requests and answers with respond
type fakeStreamer struct {
	mu      sync.Mutex
	bodies  [][]byte
	respond func(call int, ctx context.Context) (io.ReadCloser, error)
}

func (f *fakeStreamer) OpenStream(ctx context.Context, req report.Request) (io.ReadCloser, error) {
	body, err := req.Body()
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.bodies = append(f.bodies, body)
	call := len(f.bodies)
	f.mu.Unlock()
	return f.respond(call, ctx)
}

func (f *fakeStreamer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bodies)
}

func staticBody(s string) func(int, context.Context) (io.ReadCloser, error) {
	return func(int, context.Context) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(s)), nil
	}
}

// blockingBody returns a body that delivers prefix and then blocks until it
// is closed
func blockingBody(t *testing.T, prefix string) func(int, context.Context) (io.ReadCloser, error) {
	return func(int, context.Context) (io.ReadCloser, error) {
		pr, pw := io.Pipe()
		t.Cleanup(func() { _ = pw.Close() })
		go func() {
			if prefix != "" {
				_, _ = pw.Write([]byte(prefix))
			}
		}()
		return pr, nil
	}
}

func newTestManager(streamer Streamer, store ContextStore, sink Sink, opts Options) *Manager {
	opts.Logger = logger.Nop()
	return NewManager(streamer, store, sink, opts)
}

func sprintRequest() report.Request {
	return report.NewSprintReviewRequest("2024-05-01", "2024-05-14", []string{"PROJ-12", "misc", "PROJ-12"})
}

func TestStartSucceeds(t *testing.T) {
	streamer := &fakeStreamer{respond: staticBody("Collecting logs\nRESPONSE_START\nhello\nworld\nRESPONSE_END\n")}
	store := core.NewMemoryStore()
	sink := &recordingSink{}
	m := newTestManager(streamer, store, sink, Options{})

	out, err := m.Start(context.Background(), report.NewEODRequest())
	require.NoError(t, err)

	assert.Equal(t, Succeeded, out.Status)
	assert.True(t, out.Succeeded())
	assert.Equal(t, "hello\nworld", out.Text)
	assert.Equal(t, report.KindEOD, out.Kind)
	assert.Equal(t, 1, out.Attempts)
	_, parseErr := uuid.Parse(out.RunID)
	assert.NoError(t, parseErr, "run IDs are UUIDs")

	assert.Equal(t, []State{Validating, Requesting, Streaming, Succeeded}, sink.states)
	assert.Equal(t, []string{"Starting EOD Generator...", "Collecting logs"}, sink.logTexts(protocol.LevelInfo))
	assert.Equal(t, []responseEvent{
		{"hello", false},
		{"hello\nworld", false},
		{"hello\nworld", true},
	}, sink.responses)
	assert.Equal(t, Succeeded, m.State())
	assert.False(t, m.Running())

	_, ok, _ := store.Get(report.KindEOD)
	assert.False(t, ok, "success clears the run context")
}

func TestStartChunkSizeDoesNotChangeEvents(t *testing.T) {
	const body = "step one\nRESPONSE_START\n## Résumé ✓\n\n- item\nRESPONSE_END\ntrailing"

	run := func(chunkSize int) *recordingSink {
		streamer := &fakeStreamer{respond: func(int, context.Context) (io.ReadCloser, error) {
			return io.NopCloser(iotest.HalfReader(strings.NewReader(body))), nil
		}}
		sink := &recordingSink{}
		m := newTestManager(streamer, core.NewMemoryStore(), sink, Options{ChunkSize: chunkSize})
		out, err := m.Start(context.Background(), report.NewEODRequest())
		require.NoError(t, err)
		require.Equal(t, Succeeded, out.Status)
		assert.Equal(t, "## Résumé ✓\n\n- item", out.Text)
		return sink
	}

	want := run(4096)
	for _, size := range []int{1, 2, 3, 7} {
		got := run(size)
		assert.Equal(t, want.logs, got.logs, "chunk size %d", size)
		assert.Equal(t, want.responses, got.responses, "chunk size %d", size)
	}
}

func TestStartWithoutMarkersSucceedsEmpty(t *testing.T) {
	streamer := &fakeStreamer{respond: staticBody("only logs\n\n   \nmore logs")}
	sink := &recordingSink{}
	m := newTestManager(streamer, core.NewMemoryStore(), sink, Options{})

	out, err := m.Start(context.Background(), report.NewEODRequest())
	require.NoError(t, err)
	assert.Equal(t, Succeeded, out.Status)
	assert.Empty(t, out.Text)
	assert.Empty(t, sink.responses)
	assert.Equal(t, []string{"Starting EOD Generator...", "only logs", "more logs"}, sink.logTexts(protocol.LevelInfo))
}

func TestErrorLineFailsRun(t *testing.T) {
	streamer := &fakeStreamer{respond: staticBody("Error: disk full\n")}
	store := core.NewMemoryStore()
	sink := &recordingSink{}
	m := newTestManager(streamer, store, sink, Options{})

	req := sprintRequest()
	out, err := m.Start(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, Failed, out.Status)
	assert.Equal(t, "Error: disk full", out.Message)
	assert.Equal(t, []string{"Error: disk full"}, sink.logTexts(protocol.LevelError))
	assert.Empty(t, sink.responses)

	kept, ok, _ := store.Get(report.KindSprintReview)
	require.True(t, ok, "failure keeps the run context")
	assert.True(t, req.Equal(kept))
}

func TestErrorLineBeforeCompletedResponseSucceeds(t *testing.T) {
	streamer := &fakeStreamer{respond: staticBody("Error: retrying upstream\nRESPONSE_START\nok\nRESPONSE_END\n")}
	m := newTestManager(streamer, core.NewMemoryStore(), nil, Options{})

	out, err := m.Start(context.Background(), report.NewEODRequest())
	require.NoError(t, err)
	assert.Equal(t, Succeeded, out.Status)
	assert.Equal(t, "ok", out.Text)
}

func TestStatusErrorFailsWithoutStreaming(t *testing.T) {
	streamer := &fakeStreamer{respond: func(int, context.Context) (io.ReadCloser, error) {
		return nil, &api.StatusError{Code: 500, Status: "Internal Server Error"}
	}}
	sink := &recordingSink{}
	m := newTestManager(streamer, core.NewMemoryStore(), sink, Options{})

	out, err := m.Start(context.Background(), report.NewEODRequest())
	require.NoError(t, err)

	assert.Equal(t, Failed, out.Status)
	assert.Equal(t, "HTTP error! status: 500 Internal Server Error", out.Message)
	assert.Equal(t, []State{Validating, Requesting, Failed}, sink.states)
	assert.Equal(t, []string{"Error: HTTP error! status: 500 Internal Server Error"}, sink.logTexts(protocol.LevelError))
	assert.Equal(t, "Failed to generate EOD report.", FailureText(out.Kind))
}

func TestTransportErrorBeatsErrorLine(t *testing.T) {
	streamer := &fakeStreamer{respond: func(int, context.Context) (io.ReadCloser, error) {
		r := io.MultiReader(strings.NewReader("Error: partial\nRESPONSE_START\nhalf"), iotest.ErrReader(errors.New("connection reset")))
		return io.NopCloser(r), nil
	}}
	sink := &recordingSink{}
	m := newTestManager(streamer, core.NewMemoryStore(), sink, Options{})

	out, err := m.Start(context.Background(), report.NewEODRequest())
	require.NoError(t, err)

	assert.Equal(t, Failed, out.Status)
	assert.Equal(t, "connection reset", out.Message)
	var transportErr *api.TransportError
	assert.ErrorAs(t, out.Err, &transportErr)
	assert.Equal(t, []string{"Error: partial", "Error: connection reset"}, sink.logTexts(protocol.LevelError))
	assert.Empty(t, sink.responses, "the partial line is never delivered")
}

func TestCancelMidStream(t *testing.T) {
	streamer := &fakeStreamer{respond: blockingBody(t, "RESPONSE_START\nhello\n")}
	store := core.NewMemoryStore()
	sink := &recordingSink{}
	m := newTestManager(streamer, store, sink, Options{})
	sink.onResponse = func(string, bool) { assert.True(t, m.Cancel()) }

	done := make(chan Outcome, 1)
	go func() {
		out, err := m.Start(context.Background(), report.NewEODRequest())
		assert.NoError(t, err)
		done <- out
	}()

	select {
	case out := <-done:
		assert.Equal(t, Cancelled, out.Status)
		assert.Empty(t, out.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}

	assert.Equal(t, []responseEvent{{"hello", false}}, sink.responses, "no final response after cancel")
	assert.Contains(t, sink.logTexts(protocol.LevelInfo), CancelledText)
	assert.Empty(t, sink.logTexts(protocol.LevelError), "cancel is not a failure")
	assert.Equal(t, Cancelled, m.State())

	_, ok, _ := store.Get(report.KindEOD)
	assert.False(t, ok, "cancel clears the run context")
}

func TestCancelFromParentContextBeforeResponse(t *testing.T) {
	streamer := &fakeStreamer{respond: func(_ int, ctx context.Context) (io.ReadCloser, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	sink := &recordingSink{}
	m := newTestManager(streamer, core.NewMemoryStore(), sink, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	sink.onState = func(s State) {
		if s == Requesting {
			cancel()
		}
	}

	out, err := m.Start(ctx, report.NewEODRequest())
	require.NoError(t, err)
	assert.Equal(t, Cancelled, out.Status)
	assert.NotContains(t, sink.states, Streaming)
}

func TestRunTimeoutFails(t *testing.T) {
	streamer := &fakeStreamer{respond: blockingBody(t, "working\n")}
	store := core.NewMemoryStore()
	m := newTestManager(streamer, store, nil, Options{RunTimeout: 30 * time.Millisecond})

	out, err := m.Start(context.Background(), report.NewEODRequest())
	require.NoError(t, err)
	assert.Equal(t, Failed, out.Status)
	assert.Contains(t, out.Message, "timed out")

	_, ok, _ := store.Get(report.KindEOD)
	assert.True(t, ok, "a timed out run can be retried")
}

func TestValidationFailureMakesNoRequest(t *testing.T) {
	var hits int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
	}))
	defer server.Close()

	client, err := api.NewClient(api.Options{BaseURL: server.URL, Logger: logger.Nop()})
	require.NoError(t, err)

	tests := []struct {
		name string
		req  report.Request
		want string
	}{
		{"empty tickets", report.NewSprintReviewRequest("2024-05-01", "2024-05-14", []string{" ", ""}), report.MsgTicketsRequired},
		{"missing end date", report.NewSprintReviewRequest("2024-05-01", "", []string{"A-1"}), report.MsgDatesRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := core.NewMemoryStore()
			sink := &recordingSink{}
			m := newTestManager(client, store, sink, Options{})

			out, err := m.Start(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, report.IsValidationError(err))
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, Outcome{}, out)
			assert.Equal(t, []State{Validating, Idle}, sink.states)
			assert.Equal(t, Idle, m.State())

			_, ok, _ := store.Get(report.KindSprintReview)
			assert.False(t, ok, "rejected input is not remembered")
		})
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, hits)
}

func TestRetryAfterFailureSendsIdenticalRequest(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies [][]byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, body)
		first := len(bodies) == 1
		mu.Unlock()

		if first {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, "RESPONSE_START\nsprint summary\nRESPONSE_END\n")
	}))
	defer server.Close()

	client, err := api.NewClient(api.Options{BaseURL: server.URL, Logger: logger.Nop()})
	require.NoError(t, err)
	store := core.NewMemoryStore()
	m := newTestManager(client, store, nil, Options{})

	out, err := m.Start(context.Background(), sprintRequest())
	require.NoError(t, err)
	require.Equal(t, Failed, out.Status)
	assert.Equal(t, "HTTP error! status: 502 Bad Gateway", out.Message)

	out, err = m.Retry(context.Background(), report.KindSprintReview)
	require.NoError(t, err)
	assert.Equal(t, Succeeded, out.Status)
	assert.Equal(t, "sprint summary", out.Text)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1], "retry must send a byte-identical request")

	_, err = m.Retry(context.Background(), report.KindSprintReview)
	assert.ErrorIs(t, err, ErrNoRunContext, "success cleared the context")
}

func TestRetryWithoutContext(t *testing.T) {
	streamer := &fakeStreamer{respond: staticBody("")}
	m := newTestManager(streamer, core.NewMemoryStore(), nil, Options{})

	_, err := m.Retry(context.Background(), report.KindEOD)
	assert.ErrorIs(t, err, ErrNoRunContext)
	assert.Zero(t, streamer.calls())
}

func TestStartWhileRunning(t *testing.T) {
	streamer := &fakeStreamer{respond: blockingBody(t, "working\n")}
	sink := &recordingSink{}
	m := newTestManager(streamer, core.NewMemoryStore(), sink, Options{})

	streaming := make(chan struct{})
	var once sync.Once
	sink.onState = func(s State) {
		if s == Streaming {
			once.Do(func() { close(streaming) })
		}
	}

	done := make(chan Outcome, 1)
	go func() {
		out, _ := m.Start(context.Background(), report.NewEODRequest())
		done <- out
	}()

	select {
	case <-streaming:
	case <-time.After(5 * time.Second):
		t.Fatal("run never started streaming")
	}

	assert.True(t, m.Running())
	_, err := m.Start(context.Background(), sprintRequest())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	_, err = m.Retry(context.Background(), report.KindEOD)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	require.True(t, m.Cancel())
	select {
	case out := <-done:
		assert.Equal(t, Cancelled, out.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
	assert.False(t, m.Cancel(), "nothing left to cancel")
	assert.Equal(t, 1, streamer.calls())
}

func TestDismissClearsContext(t *testing.T) {
	streamer := &fakeStreamer{respond: staticBody("Error: boom\n")}
	store := core.NewMemoryStore()
	sink := &recordingSink{}
	m := newTestManager(streamer, store, sink, Options{})

	out, err := m.Start(context.Background(), report.NewEODRequest())
	require.NoError(t, err)
	require.Equal(t, Failed, out.Status)

	require.NoError(t, m.Dismiss(report.KindEOD))
	assert.Equal(t, Idle, m.State())

	_, err = m.Retry(context.Background(), report.KindEOD)
	assert.ErrorIs(t, err, ErrNoRunContext)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "streaming", Streaming.String())
	assert.Equal(t, "state(42)", State(42).String())
	assert.True(t, Cancelled.Terminal())
	assert.False(t, Streaming.Terminal())
	assert.True(t, Requesting.Active())
	assert.Equal(t, "Starting Sprint Review Generator...", StartBanner(report.KindSprintReview))
	assert.Equal(t, "Failed to generate Sprint Review report.", FailureText(report.KindSprintReview))
}
