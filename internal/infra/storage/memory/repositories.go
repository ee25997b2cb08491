package memory

import (
	"context"
	"sort"
	"sync"

	"bagsy/internal/domain/negotiation"
)

// NegotiationRepository is a mutex-guarded in-memory store used by tests and
// by main when Mongo is not configured. Aggregates are stored by value copy
// so callers never share mutable state with the store.
type NegotiationRepository struct {
	mu    sync.RWMutex
	items map[negotiation.NegotiationID]negotiation.Negotiation
}

func NewNegotiationRepository() *NegotiationRepository {
	return &NegotiationRepository{items: make(map[negotiation.NegotiationID]negotiation.Negotiation)}
}

func (r *NegotiationRepository) ByID(ctx context.Context, id negotiation.NegotiationID) (*negotiation.Negotiation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.items[id]
	if !ok {
		return nil, negotiation.ErrNotFound
	}
	return cloneNegotiation(stored), nil
}

func (r *NegotiationRepository) Save(ctx context.Context, n *negotiation.Negotiation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *n
	clone.Offers = append([]negotiation.Offer(nil), n.Offers...)
	clone.ClearEvents()
	clone.Version = n.Version + 1
	r.items[n.ID] = clone
	n.Version = clone.Version
	return nil
}

func (r *NegotiationRepository) ListByParty(ctx context.Context, userID string) ([]*negotiation.Negotiation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*negotiation.Negotiation
	for _, stored := range r.items {
		if stored.OwnerID == userID || stored.RenterID == userID {
			out = append(out, cloneNegotiation(stored))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func cloneNegotiation(stored negotiation.Negotiation) *negotiation.Negotiation {
	clone := stored
	clone.Offers = append([]negotiation.Offer(nil), stored.Offers...)
	return &clone
}

// PreferencesRepository keeps per-user agent preferences in memory.
type PreferencesRepository struct {
	mu    sync.RWMutex
	items map[string]negotiation.AgentPreferences
}

func NewPreferencesRepository() *PreferencesRepository {
	return &PreferencesRepository{items: make(map[string]negotiation.AgentPreferences)}
}

func (r *PreferencesRepository) ByUser(ctx context.Context, userID string) (*negotiation.AgentPreferences, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	prefs, ok := r.items[userID]
	if !ok {
		return nil, negotiation.ErrPreferencesNotFound
	}
	clone := prefs
	return &clone, nil
}

func (r *PreferencesRepository) Save(ctx context.Context, prefs *negotiation.AgentPreferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[prefs.UserID] = *prefs
	return nil
}
