package account

import (
	"sort"
	"sync"

	"github.com/danghamo/accountd/internal/domain/shared"
)

// Registry maps account keys to identities. It always holds the fallback identity.
type Registry struct {
	mutex    sync.RWMutex
	accounts map[string]Identity
	fallback Identity
}

// NewRegistry creates a registry seeded with the fallback identity
func NewRegistry(fallback Identity) *Registry {
	return &Registry{
		accounts: map[string]Identity{fallback.Key(): fallback},
		fallback: fallback,
	}
}

// Fallback returns the identity the registry was seeded with
func (r *Registry) Fallback() Identity {
	return r.fallback
}

// Upsert inserts or replaces the entry for identity.Key()
func (r *Registry) Upsert(identity Identity) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.accounts[identity.Key()] = identity
}

// Lookup returns the identity registered under key
func (r *Registry) Lookup(key string) (Identity, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	identity, exists := r.accounts[key]
	if !exists {
		return Identity{}, shared.ErrUnknownAccountKey(key)
	}
	return identity, nil
}

// Contains reports whether key is registered
func (r *Registry) Contains(key string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	_, exists := r.accounts[key]
	return exists
}

// RemoveAll deletes every present key. Absent keys and the fallback key are ignored.
// It returns the keys that were actually removed.
func (r *Registry) RemoveAll(keys ...string) []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	removed := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == r.fallback.Key() {
			continue
		}
		if _, exists := r.accounts[key]; exists {
			delete(r.accounts, key)
			removed = append(removed, key)
		}
	}
	return removed
}

// Keys returns the registered keys in sorted order
func (r *Registry) Keys() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	keys := make([]string, 0, len(r.accounts))
	for key := range r.accounts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Identities returns a snapshot of all registered identities, sorted by key
func (r *Registry) Identities() []Identity {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	identities := make([]Identity, 0, len(r.accounts))
	for _, identity := range r.accounts {
		identities = append(identities, identity)
	}
	sort.Slice(identities, func(i, j int) bool {
		return identities[i].Key() < identities[j].Key()
	})
	return identities
}

// Len returns the number of registered identities
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.accounts)
}
