// Package cost implements the token budget and cost tracker (C9).
//
// TokenBudget is ported from original_source/src/agent/budget.rs — the
// teacher has no equivalent atomic per-session budget type, only the
// richer but non-atomic internal/usage.Tracker, so the Rust original is
// the direct grounding source here, re-expressed with Go's sync/atomic
// rather than transliterated.
package cost

import "sync/atomic"

// TokenBudget is a thread-safe, lock-free per-session token counter
// with an optional limit. A limit of 0 means unlimited: IsExceeded
// always reports false and Remaining always reports (0, false).
type TokenBudget struct {
	limit      uint64
	inputUsed  atomic.Uint64
	outputUsed atomic.Uint64
}

// NewTokenBudget creates a budget with the given limit (0 = unlimited).
func NewTokenBudget(limit uint64) *TokenBudget {
	return &TokenBudget{limit: limit}
}

// Unlimited creates a budget with no cap.
func Unlimited() *TokenBudget {
	return NewTokenBudget(0)
}

// Record adds input and output tokens to the running totals. Safe for
// concurrent use; associative per spec §8's round-trip law:
// record(a,b); record(c,d) leaves the same state as record(a+c, b+d).
func (b *TokenBudget) Record(inputTokens, outputTokens uint64) {
	b.inputUsed.Add(inputTokens)
	b.outputUsed.Add(outputTokens)
}

// TotalUsed returns input+output tokens consumed so far.
func (b *TokenBudget) TotalUsed() uint64 {
	return b.inputUsed.Load() + b.outputUsed.Load()
}

// InputUsed returns input tokens consumed so far.
func (b *TokenBudget) InputUsed() uint64 { return b.inputUsed.Load() }

// OutputUsed returns output tokens consumed so far.
func (b *TokenBudget) OutputUsed() uint64 { return b.outputUsed.Load() }

// IsUnlimited reports whether this budget has no cap.
func (b *TokenBudget) IsUnlimited() bool { return b.limit == 0 }

// Limit returns the configured token limit (0 = unlimited).
func (b *TokenBudget) Limit() uint64 { return b.limit }

// IsExceeded reports whether usage has reached or passed the limit.
// Always false for an unlimited budget.
func (b *TokenBudget) IsExceeded() bool {
	if b.IsUnlimited() {
		return false
	}
	return b.TotalUsed() >= b.limit
}

// Remaining returns the tokens left before the budget is exhausted and
// whether the budget is limited at all (false means unlimited, and the
// numeric value should be ignored).
func (b *TokenBudget) Remaining() (uint64, bool) {
	if b.IsUnlimited() {
		return 0, false
	}
	used := b.TotalUsed()
	if used >= b.limit {
		return 0, true
	}
	return b.limit - used, true
}

// UsagePercentage returns usage as a percentage of the limit, and
// whether the budget is limited. Can exceed 100 once the budget is
// exceeded.
func (b *TokenBudget) UsagePercentage() (float64, bool) {
	if b.IsUnlimited() {
		return 0, false
	}
	return float64(b.TotalUsed()) / float64(b.limit) * 100, true
}

// Reset zeroes both counters; the limit is unchanged.
func (b *TokenBudget) Reset() {
	b.inputUsed.Store(0)
	b.outputUsed.Store(0)
}
