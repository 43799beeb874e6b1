package config

// ModelPricing holds per-million-token prices for a model, in USD.
type ModelPricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// FallbackPricing is used when a model identifier is not in the table.
var FallbackPricing = ModelPricing{InputPerMTok: 3.00, OutputPerMTok: 15.00}

// DefaultPricing maps model identifiers to their pricing.
// Source: Anthropic official pricing, February 2026.
var DefaultPricing = map[string]ModelPricing{
	"claude-opus-4-6":           {InputPerMTok: 5.00, OutputPerMTok: 25.00},
	"claude-opus-4-5":           {InputPerMTok: 5.00, OutputPerMTok: 25.00},
	"claude-sonnet-4-6":         {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-sonnet-4-5":         {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-haiku-4-5-20251001": {InputPerMTok: 1.00, OutputPerMTok: 5.00},
	"claude-haiku-3-5":          {InputPerMTok: 0.80, OutputPerMTok: 4.00},
}

// AvailableModels lists the model identifiers offered in settings and setup.
var AvailableModels = []string{
	"claude-opus-4-6",
	"claude-sonnet-4-6",
	"claude-haiku-4-5-20251001",
}

// LookupPricing returns the pricing for a model. The second return is false
// when the model is unknown and the fallback rates were used instead.
func LookupPricing(model string) (ModelPricing, bool) {
	if p, ok := DefaultPricing[model]; ok {
		return p, true
	}
	return FallbackPricing, false
}

// CalculateCost computes the USD cost of one API call. The same table entry
// is used for both the input and output side of the call.
func CalculateCost(model string, inputTokens, outputTokens int64) float64 {
	p, _ := LookupPricing(model)
	return (float64(inputTokens)*p.InputPerMTok + float64(outputTokens)*p.OutputPerMTok) / 1_000_000
}
