package domain

// Usage accumulates token consumption for a run. It is a plain value: callers
// add to their own copy and hand the total back to whoever owns the run.
type Usage struct {
	Requests         int `json:"requests"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Pricing is expressed in currency units per million tokens.
type Pricing struct {
	InputPerMillion  float64 `yaml:"inputPerMillion"`
	OutputPerMillion float64 `yaml:"outputPerMillion"`
}

// Add returns the sum of both usages.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		Requests:         u.Requests + other.Requests,
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
	}
}

// Cost converts the usage into money under the given pricing.
func (u Usage) Cost(p Pricing) float64 {
	return float64(u.PromptTokens)/1_000_000*p.InputPerMillion +
		float64(u.CompletionTokens)/1_000_000*p.OutputPerMillion
}
