package session

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/danghamo/accountd/internal/domain/account"
	"github.com/danghamo/accountd/internal/domain/preference"
	"github.com/danghamo/accountd/internal/domain/shared"
	"github.com/danghamo/accountd/pkg/logger"
	"github.com/danghamo/accountd/pkg/replay"
)

// RemovalListener is notified after accounts were removed from the registry
type RemovalListener func(keys []string)

// Provider is the account facade handed to collaborators
type Provider struct {
	logger   *logger.Logger
	registry *account.Registry
	state    *CurrentAccountState

	prefMutex    sync.RWMutex
	prefDefaults map[string]bool

	listenerMutex sync.RWMutex
	listeners     []RemovalListener
}

// RenamedPreference describes one control moved into the account namespace
type RenamedPreference struct {
	BaseKey string `json:"base_key"`
	Key     string `json:"key"`
	Checked bool   `json:"checked"`
}

// Adjustment reports what AdjustPreferences changed
type Adjustment struct {
	AccountKey string              `json:"account_key,omitempty"`
	Renamed    []RenamedPreference `json:"renamed"`
}

// NewProvider creates a provider over registry and state
func NewProvider(registry *account.Registry, state *CurrentAccountState, log *logger.Logger) *Provider {
	return &Provider{
		logger:       log.WithComponent("accounts-provider"),
		registry:     registry,
		state:        state,
		prefDefaults: make(map[string]bool),
	}
}

// AccountByKey returns the registered identity for key
func (p *Provider) AccountByKey(key string) (account.Identity, error) {
	return p.registry.Lookup(key)
}

// AccountFromArgs resolves the account whose key is stored in args under argKey
func (p *Provider) AccountFromArgs(args map[string]string, argKey string) (account.Identity, error) {
	key, exists := args[argKey]
	if !exists || key == "" {
		return account.Identity{}, shared.NewDomainErrorf(shared.ErrCodeInvalidInput, "Argument %q does not hold an account key", argKey)
	}
	return p.AccountByKey(key)
}

// IsSignedIn reports whether the current account is signed in
func (p *Provider) IsSignedIn() bool {
	return p.state.IsSignedIn()
}

// CurrentAccount returns the current account, if one was set
func (p *Provider) CurrentAccount() (account.Identity, bool) {
	return p.state.Current()
}

// ObserveCurrentAccount subscribes to current account changes
func (p *Provider) ObserveCurrentAccount(ctx context.Context) *replay.Subscription[account.Identity] {
	return p.state.Observe(ctx)
}

// SetCurrentAccount makes identity current, registering it if needed
func (p *Provider) SetCurrentAccount(identity account.Identity) error {
	if err := p.state.Set(identity); err != nil {
		return err
	}

	p.logger.WithAccountKey(identity.Key()).Info("Current account changed",
		zap.Bool("signed_in", identity.SignedIn()))
	return nil
}

// Accounts returns every registered identity sorted by key
func (p *Provider) Accounts() []account.Identity {
	return p.registry.Identities()
}

// RegisterPreferenceKey marks baseKey as account-scoped. Registering again replaces the default.
func (p *Provider) RegisterPreferenceKey(baseKey string, defaultValue bool) error {
	if baseKey == "" {
		return shared.ErrInvalidInput("Preference key cannot be empty")
	}

	p.prefMutex.Lock()
	defer p.prefMutex.Unlock()

	p.prefDefaults[baseKey] = defaultValue
	return nil
}

// PreferenceKeys returns the registered base keys with their defaults
func (p *Provider) PreferenceKeys() map[string]bool {
	p.prefMutex.RLock()
	defer p.prefMutex.RUnlock()

	keys := make(map[string]bool, len(p.prefDefaults))
	for k, v := range p.prefDefaults {
		keys[k] = v
	}
	return keys
}

// AdjustPreferences moves every registered control on surface into the current
// account's namespace and reloads its checked state from the surface store.
// Nothing is renamed when a registered control is not two-state.
func (p *Provider) AdjustPreferences(ctx context.Context, surface preference.Surface) (Adjustment, error) {
	current, ok := p.CurrentAccount()
	if !ok {
		return Adjustment{Renamed: []RenamedPreference{}}, nil
	}

	defaults := p.PreferenceKeys()
	baseKeys := make([]string, 0, len(defaults))
	for baseKey := range defaults {
		baseKeys = append(baseKeys, baseKey)
	}
	sort.Strings(baseKeys)

	controls := make(map[string]preference.TwoState, len(baseKeys))
	for _, baseKey := range baseKeys {
		control, found := surface.Find(baseKey)
		if !found {
			continue
		}
		twoState, ok := control.(preference.TwoState)
		if !ok {
			return Adjustment{}, shared.ErrUnsupportedPreferenceKind(baseKey, control.Kind())
		}
		controls[baseKey] = twoState
	}

	adjustment := Adjustment{
		AccountKey: current.Key(),
		Renamed:    make([]RenamedPreference, 0, len(controls)),
	}
	for _, baseKey := range baseKeys {
		control, found := controls[baseKey]
		if !found {
			continue
		}

		key := account.Namespace(baseKey, current)
		control.SetKey(key)

		checked, err := surface.Store().GetBool(ctx, key, defaults[baseKey])
		if err != nil {
			return adjustment, shared.WrapDomainError(err, shared.ErrCodeInvalidOperation, "failed to read preference "+key)
		}
		control.SetChecked(checked)

		adjustment.Renamed = append(adjustment.Renamed, RenamedPreference{
			BaseKey: baseKey,
			Key:     key,
			Checked: checked,
		})
	}

	p.logger.WithAccountKey(current.Key()).Debug("Preferences adjusted",
		zap.Int("renamed", len(adjustment.Renamed)))
	return adjustment, nil
}

// RemoveAccounts forgets the given keys. The fallback account is never removed;
// removing the current account makes the fallback current first.
func (p *Provider) RemoveAccounts(keys ...string) []string {
	removed, switched := p.state.evict(keys)
	if switched {
		p.logger.Info("Current account removed, switched to fallback")
	}
	if len(removed) == 0 {
		return removed
	}

	p.logger.Info("Accounts removed", zap.Strings("account_keys", removed))

	p.listenerMutex.RLock()
	listeners := append([]RemovalListener(nil), p.listeners...)
	p.listenerMutex.RUnlock()
	for _, listener := range listeners {
		listener(removed)
	}
	return removed
}

// OnRemoved registers a listener for RemoveAccounts
func (p *Provider) OnRemoved(listener RemovalListener) {
	p.listenerMutex.Lock()
	defer p.listenerMutex.Unlock()
	p.listeners = append(p.listeners, listener)
}
