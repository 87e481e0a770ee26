package cost

import "sync"

// ModelPricing is USD-per-million-token pricing for one model. Ported
// from original_source/src/utils/cost.rs's ModelPricing.
type ModelPricing struct {
	InputCostPerMillion  float64
	OutputCostPerMillion float64
}

// DefaultPricing returns the static pricing table ported from
// original_source/src/utils/cost.rs's default_pricing(), extended with
// the model families the teacher's provider set adds
// (bedrock/google/azure) that the Rust original didn't need to price.
func DefaultPricing() map[string]ModelPricing {
	return map[string]ModelPricing{
		"claude-sonnet-4-5-20250929": {InputCostPerMillion: 3.0, OutputCostPerMillion: 15.0},
		"claude-3-5-sonnet-20241022": {InputCostPerMillion: 3.0, OutputCostPerMillion: 15.0},
		"claude-opus-4-6":            {InputCostPerMillion: 15.0, OutputCostPerMillion: 75.0},
		"claude-3-opus-20240229":     {InputCostPerMillion: 15.0, OutputCostPerMillion: 75.0},
		"claude-3-haiku-20240307":    {InputCostPerMillion: 0.25, OutputCostPerMillion: 1.25},
		"gpt-5.1":                    {InputCostPerMillion: 2.5, OutputCostPerMillion: 10.0},
		"gpt-4o-mini":                {InputCostPerMillion: 0.15, OutputCostPerMillion: 0.6},
		"gpt-4-turbo":                {InputCostPerMillion: 10.0, OutputCostPerMillion: 30.0},
	}
}

// EstimateCost looks up model in customPricing first, falling back to
// DefaultPricing. Returns (0, false) if the model is unknown in both —
// an unknown model contributes zero cost but the caller still counts
// the call.
func EstimateCost(model string, inputTokens, outputTokens uint64, customPricing map[string]ModelPricing) (float64, bool) {
	pricing, ok := customPricing[model]
	if !ok {
		pricing, ok = DefaultPricing()[model]
	}
	if !ok {
		return 0, false
	}
	input := float64(inputTokens) / 1_000_000 * pricing.InputCostPerMillion
	output := float64(outputTokens) / 1_000_000 * pricing.OutputCostPerMillion
	return input + output, true
}

// Tracker accumulates spend across providers and models for a session.
// Grounded on original_source/src/utils/cost.rs's CostTracker, with the
// mutex-guarded-struct-of-maps shape also used by the teacher's
// internal/usage.Tracker.
type Tracker struct {
	mu            sync.Mutex
	customPricing map[string]ModelPricing
	totalCost     float64
	perProvider   map[string]float64
	perModel      map[string]float64
	callCount     uint64
}

// NewTracker creates a tracker using only DefaultPricing.
func NewTracker() *Tracker {
	return NewTrackerWithPricing(nil)
}

// NewTrackerWithPricing creates a tracker with custom pricing overrides
// that take precedence over DefaultPricing.
func NewTrackerWithPricing(custom map[string]ModelPricing) *Tracker {
	return &Tracker{
		customPricing: custom,
		perProvider:   make(map[string]float64),
		perModel:      make(map[string]float64),
	}
}

// Record accumulates cost for one LLM call. Unknown models contribute
// zero cost but still increment the call counter.
func (t *Tracker) Record(provider, model string, inputTokens, outputTokens uint64) {
	cost, _ := EstimateCost(model, inputTokens, outputTokens, t.customPricing)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalCost += cost
	t.perProvider[provider] += cost
	t.perModel[model] += cost
	t.callCount++
}

// TotalCost returns the accumulated cost in USD.
func (t *Tracker) TotalCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalCost
}

// CallCount returns the number of recorded calls.
func (t *Tracker) CallCount() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.callCount
}

// PerProvider returns a snapshot of accumulated cost keyed by provider.
func (t *Tracker) PerProvider() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneFloatMap(t.perProvider)
}

// PerModel returns a snapshot of accumulated cost keyed by model.
func (t *Tracker) PerModel() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneFloatMap(t.perModel)
}

func cloneFloatMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
