package provider

import (
	"github.com/haasonsaas/nexus/internal/zerrors"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Registry resolves a configured provider name to ready-to-use runtime
// connection details — resolve_runtime_provider in the specification.
// Grounded on the teacher's internal/config provider-credential
// resolution (env-var/keychain lookup per provider), narrowed to the
// single invariant the specification tests: every returned selection's
// credential is non-empty.
type Registry struct {
	entries map[string]models.RuntimeProviderSelection
}

// NewRegistry builds a Registry from resolved entries. Entries with an
// empty Credential are rejected up front so a later resolve_runtime_provider
// call can never return one — the specification's invariant holds by
// construction rather than by a check at call time.
func NewRegistry(entries []models.RuntimeProviderSelection) (*Registry, error) {
	reg := &Registry{entries: make(map[string]models.RuntimeProviderSelection, len(entries))}
	for _, e := range entries {
		if e.Credential == "" {
			return nil, zerrors.New(zerrors.Config, "provider "+e.ProviderID+" has no credential configured")
		}
		reg.entries[e.ProviderID] = e
	}
	return reg, nil
}

// Resolve returns the runtime selection for providerID.
func (r *Registry) Resolve(providerID string) (models.RuntimeProviderSelection, error) {
	sel, ok := r.entries[providerID]
	if !ok {
		return models.RuntimeProviderSelection{}, zerrors.New(zerrors.NotFound, "provider not configured: "+providerID)
	}
	return sel, nil
}
