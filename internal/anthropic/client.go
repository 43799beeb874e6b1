// Package anthropic wraps the official SDK behind the small Streamer
// interface the exchange controller consumes.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// chunkIdleTimeout bounds how long the stream may sit without producing an
// event before the exchange is failed.
const chunkIdleTimeout = 60 * time.Second

// ErrStreamTimeout indicates the provider stream went idle past the
// per-chunk deadline.
var ErrStreamTimeout = errors.New("anthropic: stream idle timeout")

// Client is the production Streamer backed by the Anthropic Messages API.
type Client struct {
	api anthropic.Client
}

// NewClient creates a client for the given API key.
func NewClient(apiKey string) *Client {
	return &Client{api: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

// Stream runs one streaming exchange. Text increments are delivered to
// onText in provider order; the returned Result carries the provider's own
// final text, stop reason, and token counts.
func (c *Client) Stream(ctx context.Context, req Request, onText func(string)) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Watchdog: cancel the stream if no event arrives within the idle
	// deadline, and remember that the cancellation was ours.
	var timedOut atomic.Bool
	watchdog := time.AfterFunc(chunkIdleTimeout, func() {
		timedOut.Store(true)
		cancel()
	})
	defer watchdog.Stop()

	stream := c.api.Messages.NewStreaming(ctx, buildParams(req))
	defer func() { _ = stream.Close() }()

	// The SDK accumulator is the provider-confirmed view of the message;
	// local accumulation is kept only as a fallback.
	var final anthropic.Message
	var local strings.Builder

	for stream.Next() {
		watchdog.Reset(chunkIdleTimeout)
		event := stream.Current()

		if err := final.Accumulate(event); err != nil {
			return nil, fmt.Errorf("anthropic: accumulating stream event: %w", err)
		}

		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				local.WriteString(delta.Text)
				onText(delta.Text)
			}
		}
	}

	if err := stream.Err(); err != nil {
		if timedOut.Load() {
			return nil, ErrStreamTimeout
		}
		return nil, fmt.Errorf("anthropic: streaming: %w", err)
	}

	text := finalText(final)
	if text == "" {
		text = local.String()
	}

	return &Result{
		Text:         text,
		StopReason:   string(final.StopReason),
		InputTokens:  final.Usage.InputTokens,
		OutputTokens: final.Usage.OutputTokens,
	}, nil
}

// buildParams translates a Request into SDK params, leaving system and
// temperature unset unless the request carries them.
func buildParams(req Request) anthropic.MessageNewParams {
	messages := make([]anthropic.MessageParam, 0, len(req.Turns))
	for _, turn := range req.Turns {
		block := anthropic.NewTextBlock(turn.Content)
		if turn.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	return params
}

// finalText concatenates the text blocks of the provider's final message.
func finalText(msg anthropic.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	return b.String()
}
