package exchange

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/theirongolddev/cchat/internal/anthropic"
	"github.com/theirongolddev/cchat/internal/chat"
	"github.com/theirongolddev/cchat/internal/config"
	"github.com/theirongolddev/cchat/internal/usage"
)

// fakeStreamer scripts one exchange: deliver chunks, then return either the
// result or the error. block, when set, holds the stream open until closed.
type fakeStreamer struct {
	chunks []string
	result *anthropic.Result
	err    error
	block  chan struct{}

	gotReq anthropic.Request
}

func (f *fakeStreamer) Stream(_ context.Context, req anthropic.Request, onText func(string)) (*anthropic.Result, error) {
	f.gotReq = req
	for _, ch := range f.chunks {
		onText(ch)
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type harness struct {
	dir        string
	store      *chat.Store
	ledger     *usage.Ledger
	controller *Controller
	streamer   *fakeStreamer

	chunks     []string
	done       chan chat.Message
	fail       chan error
	cost       float64
	persistErr error
}

func newHarness(t *testing.T, streamer *fakeStreamer) *harness {
	t.Helper()

	dir := t.TempDir()
	store, err := chat.NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ledger, err := usage.Open(filepath.Join(dir, "usage.db"))
	if err != nil {
		t.Fatalf("usage.Open: %v", err)
	}
	t.Cleanup(func() { _ = ledger.Close() })

	c := NewController(store, ledger)
	c.newStreamer = func(string) anthropic.Streamer { return streamer }

	return &harness{
		dir:        dir,
		store:      store,
		ledger:     ledger,
		controller: c,
		streamer:   streamer,
		done:       make(chan chat.Message, 1),
		fail:       make(chan error, 1),
	}
}

func (h *harness) callbacks() Callbacks {
	return Callbacks{
		OnChunk: func(text string) { h.chunks = append(h.chunks, text) },
		OnDone: func(msg chat.Message, cost float64, persistErr error) {
			h.cost = cost
			h.persistErr = persistErr
			h.done <- msg
		},
		OnError: func(err error) { h.fail <- err },
	}
}

func (h *harness) send(t *testing.T, cfg config.ChatConfig) {
	t.Helper()
	if err := h.controller.Send(context.Background(), cfg, "sk-ant-test", h.callbacks()); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func (h *harness) waitDone(t *testing.T) chat.Message {
	t.Helper()
	select {
	case msg := <-h.done:
		return msg
	case err := <-h.fail:
		t.Fatalf("exchange failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("exchange did not complete")
	}
	return chat.Message{}
}

func (h *harness) waitError(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.fail:
		return err
	case msg := <-h.done:
		t.Fatalf("exchange completed unexpectedly: %+v", msg)
	case <-time.After(5 * time.Second):
		t.Fatal("exchange did not resolve")
	}
	return nil
}

func TestSend_CompletedExchange(t *testing.T) {
	h := newHarness(t, &fakeStreamer{
		chunks: []string{"Hello", ", ", "world"},
		result: &anthropic.Result{
			Text:         "Hello, world",
			StopReason:   "end_turn",
			InputTokens:  42,
			OutputTokens: 17,
		},
	})

	h.store.NewSession()
	if _, err := h.store.AppendMessage(chat.RoleUser, "greet me", "", 0, 0); err != nil {
		t.Fatal(err)
	}

	h.send(t, config.DefaultConfig().Chat)
	msg := h.waitDone(t)

	if msg.Role != chat.RoleAssistant || msg.Content != "Hello, world" {
		t.Fatalf("assistant message = %+v", msg)
	}
	if msg.StopReason != "end_turn" || msg.InputTokens != 42 || msg.OutputTokens != 17 {
		t.Fatalf("finalization fields = %+v", msg)
	}

	// Chunks arrive in order, exactly once each.
	if !reflect.DeepEqual(h.chunks, []string{"Hello", ", ", "world"}) {
		t.Fatalf("chunks = %v", h.chunks)
	}

	// Exactly one assistant message persisted.
	msgs := h.store.Messages()
	if len(msgs) != 2 {
		t.Fatalf("transcript has %d messages, want 2", len(msgs))
	}

	// Exactly one ledger record, matching the message's token counts.
	snap := h.ledger.Snapshot()
	if snap.InputTokens != msg.InputTokens || snap.OutputTokens != msg.OutputTokens {
		t.Fatalf("ledger %d/%d, message %d/%d",
			snap.InputTokens, snap.OutputTokens, msg.InputTokens, msg.OutputTokens)
	}
	if h.cost != config.CalculateCost("claude-sonnet-4-6", 42, 17) {
		t.Fatalf("reported cost = %v", h.cost)
	}

	if h.controller.State() != Idle {
		t.Fatalf("state = %v after completion, want Idle", h.controller.State())
	}
}

func TestSend_FailedExchangePersistsNothing(t *testing.T) {
	h := newHarness(t, &fakeStreamer{
		chunks: []string{"partial text before the "},
		err:    errors.New("connection reset"),
	})

	h.store.NewSession()
	if _, err := h.store.AppendMessage(chat.RoleUser, "hello", "", 0, 0); err != nil {
		t.Fatal(err)
	}
	before := h.ledger.Snapshot()

	h.send(t, config.DefaultConfig().Chat)
	if err := h.waitError(t); err == nil {
		t.Fatal("want stream error")
	}

	// Partial text may have been shown transiently but is not persisted.
	msgs := h.store.Messages()
	if len(msgs) != 1 || msgs[0].Role != chat.RoleUser {
		t.Fatalf("transcript after failure = %+v", msgs)
	}

	after := h.ledger.Snapshot()
	if after.InputTokens != before.InputTokens || after.TotalCost != before.TotalCost {
		t.Fatalf("ledger changed by a failed exchange: %+v -> %+v", before, after)
	}

	if h.controller.State() != Idle {
		t.Fatalf("state = %v after failure, want Idle", h.controller.State())
	}
}

func TestSend_RejectsWhileInFlight(t *testing.T) {
	block := make(chan struct{})
	h := newHarness(t, &fakeStreamer{
		block:  block,
		result: &anthropic.Result{Text: "ok", StopReason: "end_turn", InputTokens: 1, OutputTokens: 1},
	})

	h.store.NewSession()
	if _, err := h.store.AppendMessage(chat.RoleUser, "hello", "", 0, 0); err != nil {
		t.Fatal(err)
	}

	h.send(t, config.DefaultConfig().Chat)

	// Wait for the goroutine to reach Streaming, then try a second send.
	deadline := time.Now().Add(2 * time.Second)
	for h.controller.State() == Idle && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	err := h.controller.Send(context.Background(), config.DefaultConfig().Chat, "sk-ant-test", h.callbacks())
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("concurrent Send: err = %v, want ErrBusy", err)
	}

	close(block)
	h.waitDone(t)

	// No duplicate assistant message from the rejected call.
	if got := len(h.store.Messages()); got != 2 {
		t.Fatalf("transcript has %d messages, want 2", got)
	}
}

func TestSend_Preconditions(t *testing.T) {
	h := newHarness(t, &fakeStreamer{})

	h.store.NewSession()
	if _, err := h.store.AppendMessage(chat.RoleUser, "hello", "", 0, 0); err != nil {
		t.Fatal(err)
	}

	err := h.controller.Send(context.Background(), config.DefaultConfig().Chat, "", h.callbacks())
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("no credential: err = %v, want ErrMissingCredential", err)
	}

	bad := config.DefaultConfig().Chat
	bad.Temperature = 2.5
	err = h.controller.Send(context.Background(), bad, "sk-ant-test", h.callbacks())
	if err == nil {
		t.Fatal("invalid temperature: want validation error")
	}

	if h.controller.State() != Idle {
		t.Fatalf("state = %v after rejected sends, want Idle", h.controller.State())
	}
}

func TestSend_RejectsEmptyTranscript(t *testing.T) {
	h := newHarness(t, &fakeStreamer{})
	h.store.NewSession()

	err := h.controller.Send(context.Background(), config.DefaultConfig().Chat, "sk-ant-test", h.callbacks())
	if !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("err = %v, want ErrEmptyTranscript", err)
	}
}

func TestBuildRequest_MinimalPayloadPolicy(t *testing.T) {
	transcript := []chat.Message{
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant, Content: "hello"},
		{Role: chat.RoleUser, Content: "more"},
	}

	cfg := config.DefaultConfig().Chat // temperature at provider default, no system
	req := buildRequest(cfg, transcript)

	if req.Temperature != nil {
		t.Fatalf("temperature included at provider default: %v", *req.Temperature)
	}
	if req.System != "" {
		t.Fatalf("system included though empty: %q", req.System)
	}
	if len(req.Turns) != 3 || req.Turns[1].Role != "assistant" {
		t.Fatalf("turns = %+v", req.Turns)
	}

	cfg.Temperature = 0.2
	cfg.SystemPrompt = "Be brief."
	req = buildRequest(cfg, transcript)
	if req.Temperature == nil || *req.Temperature != 0.2 {
		t.Fatalf("non-default temperature not included: %+v", req.Temperature)
	}
	if req.System != "Be brief." {
		t.Fatalf("system = %q", req.System)
	}
}

func TestSend_CompletionCarriesPersistFailure(t *testing.T) {
	h := newHarness(t, &fakeStreamer{
		chunks: []string{"kept in memory only"},
		result: &anthropic.Result{
			Text:         "kept in memory only",
			StopReason:   "end_turn",
			InputTokens:  7,
			OutputTokens: 3,
		},
	})

	id := h.store.NewSession()
	// Occupy the session's file path with a directory so every persist
	// fails, independent of file permissions.
	if err := os.Mkdir(filepath.Join(h.dir, "sessions", id+".json"), 0o750); err != nil {
		t.Fatal(err)
	}
	if _, err := h.store.AppendMessage(chat.RoleUser, "hello", "", 0, 0); err == nil {
		t.Fatal("user append persisted into a directory path")
	}

	h.send(t, config.DefaultConfig().Chat)
	msg := h.waitDone(t)

	// The exchange completed, but the done notification reports the failed
	// write instead of claiming unqualified success.
	if h.persistErr == nil {
		t.Fatal("done notification did not carry the persist error")
	}
	if msg.Content != "kept in memory only" {
		t.Fatalf("assistant message = %+v", msg)
	}

	// In-memory state still holds the full outcome.
	if got := len(h.store.Messages()); got != 2 {
		t.Fatalf("transcript has %d messages, want 2", got)
	}
	snap := h.ledger.Snapshot()
	if snap.InputTokens != 7 || snap.OutputTokens != 3 {
		t.Fatalf("ledger = %+v", snap)
	}

	if h.controller.State() != Idle {
		t.Fatalf("state = %v after completion, want Idle", h.controller.State())
	}
}

func TestSend_FallsBackToLocalAccumulation(t *testing.T) {
	// Provider omits the final text; the controller falls back to its own
	// chunk accumulation.
	h := newHarness(t, &fakeStreamer{
		chunks: []string{"a", "b", "c"},
		result: &anthropic.Result{StopReason: "end_turn", InputTokens: 5, OutputTokens: 3},
	})

	h.store.NewSession()
	if _, err := h.store.AppendMessage(chat.RoleUser, "hello", "", 0, 0); err != nil {
		t.Fatal(err)
	}

	h.send(t, config.DefaultConfig().Chat)
	msg := h.waitDone(t)

	if msg.Content != "abc" {
		t.Fatalf("content = %q, want abc", msg.Content)
	}
}
