package provider

import (
	"context"
	"sync"
	"time"

	"github.com/haasonsaas/nexus/internal/zerrors"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Strategy selects how Rotator orders providers on each call.
type Strategy string

const (
	StrategyPriority   Strategy = "priority"
	StrategyRoundRobin Strategy = "round_robin"
)

// RotationConfig configures a Rotator. Grounded on the teacher's
// FailoverConfig (internal/agent/failover.go), generalized with an
// explicit ordering Strategy — the teacher only ever tries providers in
// registration order.
type RotationConfig struct {
	Strategy        Strategy
	Threshold       int           // consecutive failures before a circuit opens
	RecoverySeconds time.Duration // how long a circuit stays open
}

// Rotator tries providers in Strategy order, skipping any whose circuit
// is open, and records health per provider.
type Rotator struct {
	mu        sync.Mutex
	providers []Provider
	health    map[string]*models.ProviderHealth
	cfg       RotationConfig
	rrCursor  int
}

// NewRotator creates a Rotator over providers in the given order.
func NewRotator(providers []Provider, cfg RotationConfig) *Rotator {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 3
	}
	return &Rotator{
		providers: providers,
		health:    make(map[string]*models.ProviderHealth, len(providers)),
		cfg:       cfg,
	}
}

// Chat tries providers in order until one succeeds or every eligible
// provider has failed with a terminal or transient error. Terminal
// errors still advance to the next provider — only an empty eligible
// set surfaces lastErr to the caller.
func (r *Rotator) Chat(ctx context.Context, req ChatRequest) (models.LLMResponse, error) {
	var lastErr error
	for _, p := range r.order() {
		resp, err := p.Chat(ctx, req)
		if err == nil {
			r.recordSuccess(p.Name())
			return resp, nil
		}
		lastErr = err
		r.recordFailure(p.Name())
	}
	if lastErr == nil {
		lastErr = zerrors.New(zerrors.ProviderTerminal, "no providers configured")
	}
	return models.LLMResponse{}, lastErr
}

// ChatStream is the streaming counterpart of Chat. Falls over to the
// next provider only if the initial call fails; once a stream has
// started, its errors propagate as StreamError events rather than
// triggering rotation (switching providers mid-stream would duplicate
// already-emitted content).
func (r *Rotator) ChatStream(ctx context.Context, req ChatRequest) (<-chan models.StreamEvent, error) {
	var lastErr error
	for _, p := range r.order() {
		stream, err := p.ChatStream(ctx, req)
		if err == nil {
			r.recordSuccess(p.Name())
			return stream, nil
		}
		lastErr = err
		r.recordFailure(p.Name())
	}
	if lastErr == nil {
		lastErr = zerrors.New(zerrors.ProviderTerminal, "no providers configured")
	}
	return nil, lastErr
}

// order returns providers in call order for this attempt: eligible
// (circuit-closed) providers first in Strategy order, with circuit-open
// providers appended at the end so that if every provider is open the
// first is force-tried anyway (spec §8 boundary behavior: "Rotation
// with all providers open: the first provider is force-tried").
func (r *Rotator) order() []Provider {
	r.mu.Lock()
	defer r.mu.Unlock()

	base := make([]Provider, len(r.providers))
	copy(base, r.providers)
	if r.cfg.Strategy == StrategyRoundRobin && len(base) > 0 {
		r.rrCursor = r.rrCursor % len(base)
		base = append(base[r.rrCursor:], base[:r.rrCursor]...)
		r.rrCursor++
	}

	var eligible, open []Provider
	for _, p := range base {
		if r.isOpenLocked(p.Name()) {
			open = append(open, p)
		} else {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) == 0 && len(open) > 0 {
		return open[:1]
	}
	return append(eligible, open...)
}

func (r *Rotator) isOpenLocked(name string) bool {
	h, ok := r.health[name]
	if !ok {
		return false
	}
	if h.OpenedUntil.IsZero() {
		return false
	}
	if time.Now().After(h.OpenedUntil) {
		// Half-open: recovery window elapsed, allow one trial call.
		return false
	}
	return true
}

func (r *Rotator) recordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.health[name] = &models.ProviderHealth{}
}

func (r *Rotator) recordFailure(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.health[name]
	if !ok {
		h = &models.ProviderHealth{}
		r.health[name] = h
	}
	h.ConsecutiveFailures++
	if h.ConsecutiveFailures >= r.cfg.Threshold {
		h.OpenedUntil = time.Now().Add(r.cfg.RecoverySeconds)
	}
}

// Health returns a snapshot of per-provider circuit state, for
// diagnostics and tests.
func (r *Rotator) Health(name string) models.ProviderHealth {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.health[name]; ok {
		return *h
	}
	return models.ProviderHealth{}
}
