// Package exchange orchestrates one request/response exchange against the
// model provider: request construction, incremental consumption, and
// reconciliation into the session store and usage ledger.
package exchange

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/theirongolddev/cchat/internal/anthropic"
	"github.com/theirongolddev/cchat/internal/chat"
	"github.com/theirongolddev/cchat/internal/config"
	"github.com/theirongolddev/cchat/internal/usage"
)

// State is the controller's exchange lifecycle position.
type State int

// Controller states. Completed and Failed are transient: the controller is
// back at Idle by the time the caller is notified.
const (
	Idle State = iota
	Sending
	Streaming
)

var (
	// ErrBusy rejects a Send while another exchange is in flight. One
	// exchange at a time is policy, not accident: concurrent sends are
	// refused, never queued.
	ErrBusy = errors.New("exchange: another exchange is in flight")

	// ErrMissingCredential rejects a Send before any network activity when
	// no API key is configured.
	ErrMissingCredential = errors.New("exchange: no API credential configured")

	// ErrEmptyTranscript rejects a Send on a session with no messages.
	ErrEmptyTranscript = errors.New("exchange: transcript is empty")
)

// Callbacks receive exchange progress. They are invoked from the exchange
// goroutine; UI callers must hand results back onto their own loop (the TUI
// pushes them through a channel into Bubble Tea). Exactly one of OnDone or
// OnError fires per exchange, after all OnChunk calls. OnDone's persistErr
// is non-nil when the message or usage record could not be durably written;
// the exchange itself still completed and the in-memory state holds it.
type Callbacks struct {
	OnChunk func(text string)
	OnDone  func(msg chat.Message, cost float64, persistErr error)
	OnError func(err error)
}

// Controller runs at most one exchange at a time against the provider and
// reconciles the outcome: on completion exactly one assistant message is
// appended and exactly one ledger record written, in that order; on failure
// neither happens and partial text is discarded from durable state.
type Controller struct {
	mu    sync.Mutex
	state State

	store  *chat.Store
	ledger *usage.Ledger

	// newStreamer is swapped out by tests.
	newStreamer func(apiKey string) anthropic.Streamer
}

// NewController wires a controller to its store and ledger.
func NewController(store *chat.Store, ledger *usage.Ledger) *Controller {
	return &Controller{
		store:  store,
		ledger: ledger,
		newStreamer: func(apiKey string) anthropic.Streamer {
			return anthropic.NewClient(apiKey)
		},
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether an exchange is in flight.
func (c *Controller) Busy() bool {
	return c.State() != Idle
}

// Send dispatches one exchange for the active session's transcript. All
// precondition failures (busy, missing credential, invalid config, empty
// transcript) are returned synchronously with no state transition and no
// side effects; after a nil return the outcome arrives via cb.
func (c *Controller) Send(ctx context.Context, cfg config.ChatConfig, apiKey string, cb Callbacks) error {
	if apiKey == "" {
		return ErrMissingCredential
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	transcript := c.store.Messages()
	if len(transcript) == 0 {
		return ErrEmptyTranscript
	}

	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = Sending
	c.mu.Unlock()

	req := buildRequest(cfg, transcript)
	go c.run(ctx, req, cfg.Model, c.newStreamer(apiKey), cb)
	return nil
}

// buildRequest applies the minimal-payload policy: system only when
// non-empty, temperature only when it differs from the provider default.
func buildRequest(cfg config.ChatConfig, transcript []chat.Message) anthropic.Request {
	turns := make([]anthropic.Turn, len(transcript))
	for i, m := range transcript {
		turns[i] = anthropic.Turn{Role: string(m.Role), Content: m.Content}
	}

	req := anthropic.Request{
		Model:     cfg.Model,
		MaxTokens: int64(cfg.MaxTokens),
		System:    cfg.SystemPrompt,
		Turns:     turns,
	}
	if cfg.Temperature != config.DefaultTemperature {
		t := cfg.Temperature
		req.Temperature = &t
	}
	return req
}

func (c *Controller) run(ctx context.Context, req anthropic.Request, model string, streamer anthropic.Streamer, cb Callbacks) {
	c.setState(Streaming)

	// Local accumulation backs up the provider's final text; chunks go to
	// the callback in arrival order, exactly once each.
	var accumulated strings.Builder
	res, err := streamer.Stream(ctx, req, func(text string) {
		accumulated.WriteString(text)
		if cb.OnChunk != nil {
			cb.OnChunk(text)
		}
	})

	if err != nil {
		// Failed: nothing persisted, partial text discarded.
		c.setState(Idle)
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return
	}

	text := res.Text
	if text == "" {
		text = accumulated.String()
	}

	// Message before usage, so a ledger entry is never observable without
	// its transcript entry. Persist failures do not fail the exchange (the
	// in-memory state holds the outcome) but they are surfaced to the
	// caller through the done notification.
	var persistErr error
	msg, err := c.store.AppendMessage(chat.RoleAssistant, text, res.StopReason, res.InputTokens, res.OutputTokens)
	if err != nil {
		log.Error("persisting assistant message failed", "err", err)
		persistErr = err
	}
	cost, err := c.ledger.RecordUsage(res.InputTokens, res.OutputTokens, model)
	if err != nil {
		log.Error("persisting usage record failed", "err", err)
		persistErr = errors.Join(persistErr, err)
	}

	c.setState(Idle)
	if cb.OnDone != nil {
		cb.OnDone(msg, cost, persistErr)
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
