package anthropic

import "context"

// Turn is one role/content pair of the outbound transcript.
type Turn struct {
	Role    string
	Content string
}

// Request carries everything one exchange sends to the provider. System is
// omitted from the wire payload when empty; Temperature is omitted when nil
// so the provider-side default stays in effect.
type Request struct {
	Model       string
	MaxTokens   int64
	System      string
	Temperature *float64
	Turns       []Turn
}

// Result is the provider's final summary for one exchange.
type Result struct {
	Text         string
	StopReason   string
	InputTokens  int64
	OutputTokens int64
}

// Streamer executes one streaming exchange, invoking onText for each text
// increment in arrival order, and returns the final summary.
type Streamer interface {
	Stream(ctx context.Context, req Request, onText func(string)) (*Result, error)
}
