package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/accountd/internal/domain/account"
	"github.com/danghamo/accountd/internal/domain/preference"
	"github.com/danghamo/accountd/internal/domain/shared"
	"github.com/danghamo/accountd/pkg/logger"
)

func newTestProvider() *Provider {
	registry := account.NewRegistry(account.NonSignedIn())
	return NewProvider(registry, NewCurrentAccountState(registry), logger.NewNop())
}

func TestProvider_FallbackIsRegistered(t *testing.T) {
	provider := newTestProvider()

	stub, err := provider.AccountByKey("stub")
	require.NoError(t, err)
	assert.False(t, stub.SignedIn())
	assert.True(t, stub.IsNonSignedIn())
}

func TestProvider_UnknownKeyIsNotDefaulted(t *testing.T) {
	provider := newTestProvider()

	_, err := provider.AccountByKey("nobody")
	require.Error(t, err)
	assert.True(t, shared.IsCode(err, shared.ErrCodeUnknownAccountKey))
}

func TestProvider_SetCurrentAccount(t *testing.T) {
	provider := newTestProvider()
	u1 := mustIdentity(t, "u1")

	require.NoError(t, provider.SetCurrentAccount(u1))

	found, err := provider.AccountByKey("u1")
	require.NoError(t, err)
	assert.True(t, found.SameAccount(u1))
	assert.True(t, provider.IsSignedIn())

	require.NoError(t, provider.SetCurrentAccount(account.NonSignedIn()))
	assert.False(t, provider.IsSignedIn())
}

func TestProvider_AccountFromArgs(t *testing.T) {
	provider := newTestProvider()
	require.NoError(t, provider.SetCurrentAccount(mustIdentity(t, "u1")))

	identity, err := provider.AccountFromArgs(map[string]string{"accountKey": "u1"}, "accountKey")
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.Key())

	_, err = provider.AccountFromArgs(map[string]string{}, "accountKey")
	assert.True(t, shared.IsCode(err, shared.ErrCodeInvalidInput))

	_, err = provider.AccountFromArgs(map[string]string{"accountKey": "u9"}, "accountKey")
	assert.True(t, shared.IsCode(err, shared.ErrCodeUnknownAccountKey))
}

func TestProvider_AdjustPreferences(t *testing.T) {
	provider := newTestProvider()
	require.NoError(t, provider.RegisterPreferenceKey("sync_wifi_only", true))
	require.NoError(t, provider.SetCurrentAccount(mustIdentity(t, "u1")))

	wifi := preference.NewSwitch("sync_wifi_only", false)
	surface := preference.NewMemorySurface(preference.NewMemoryStore(nil), wifi)

	adjustment, err := provider.AdjustPreferences(context.Background(), surface)
	require.NoError(t, err)

	assert.Equal(t, "account_u1_sync_wifi_only", wifi.Key())
	assert.True(t, wifi.Checked())
	assert.Equal(t, "u1", adjustment.AccountKey)
	assert.Equal(t, []RenamedPreference{
		{BaseKey: "sync_wifi_only", Key: "account_u1_sync_wifi_only", Checked: true},
	}, adjustment.Renamed)
}

func TestProvider_AdjustPreferencesReadsStoredValue(t *testing.T) {
	provider := newTestProvider()
	require.NoError(t, provider.RegisterPreferenceKey("sync_wifi_only", true))
	require.NoError(t, provider.RegisterPreferenceKey("not_on_surface", true))
	require.NoError(t, provider.SetCurrentAccount(mustIdentity(t, "u1")))

	wifi := preference.NewSwitch("sync_wifi_only", true)
	store := preference.NewMemoryStore(map[string]bool{"account_u1_sync_wifi_only": false})
	surface := preference.NewMemorySurface(store, wifi, preference.NewText("unrelated", "x"))

	adjustment, err := provider.AdjustPreferences(context.Background(), surface)
	require.NoError(t, err)
	assert.False(t, wifi.Checked())
	assert.Len(t, adjustment.Renamed, 1)
}

func TestProvider_AdjustPreferencesWithoutCurrentAccount(t *testing.T) {
	provider := newTestProvider()
	require.NoError(t, provider.RegisterPreferenceKey("sync_wifi_only", true))

	wifi := preference.NewSwitch("sync_wifi_only", false)
	surface := preference.NewMemorySurface(preference.NewMemoryStore(nil), wifi)

	adjustment, err := provider.AdjustPreferences(context.Background(), surface)
	require.NoError(t, err)
	assert.Empty(t, adjustment.Renamed)
	assert.Equal(t, "sync_wifi_only", wifi.Key())
	assert.False(t, wifi.Checked())
}

func TestProvider_AdjustPreferencesRejectsNonTwoState(t *testing.T) {
	provider := newTestProvider()
	require.NoError(t, provider.RegisterPreferenceKey("sync_wifi_only", true))
	require.NoError(t, provider.RegisterPreferenceKey("nickname", false))
	require.NoError(t, provider.SetCurrentAccount(mustIdentity(t, "u1")))

	wifi := preference.NewSwitch("sync_wifi_only", false)
	surface := preference.NewMemorySurface(preference.NewMemoryStore(nil), wifi, preference.NewText("nickname", "bob"))

	_, err := provider.AdjustPreferences(context.Background(), surface)
	require.Error(t, err)
	assert.True(t, shared.IsCode(err, shared.ErrCodeUnsupportedPreferenceKind))
	assert.Contains(t, err.Error(), "Adjustment for Text has not been implemented")
	assert.Equal(t, "sync_wifi_only", wifi.Key())
}

func TestProvider_ReRegistrationOverwritesDefault(t *testing.T) {
	provider := newTestProvider()
	require.NoError(t, provider.RegisterPreferenceKey("sync_wifi_only", true))
	require.NoError(t, provider.RegisterPreferenceKey("sync_wifi_only", false))

	assert.Equal(t, map[string]bool{"sync_wifi_only": false}, provider.PreferenceKeys())
	assert.Error(t, provider.RegisterPreferenceKey("", true))
}

type failingStore struct{}

func (failingStore) GetBool(context.Context, string, bool) (bool, error) {
	return false, errors.New("store offline")
}

func (failingStore) SetBool(context.Context, string, bool) error {
	return errors.New("store offline")
}

func TestProvider_AdjustPreferencesStoreError(t *testing.T) {
	provider := newTestProvider()
	require.NoError(t, provider.RegisterPreferenceKey("sync_wifi_only", true))
	require.NoError(t, provider.SetCurrentAccount(mustIdentity(t, "u1")))

	surface := preference.NewMemorySurface(failingStore{}, preference.NewSwitch("sync_wifi_only", false))

	_, err := provider.AdjustPreferences(context.Background(), surface)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store offline")
}

func TestProvider_RemoveAccounts(t *testing.T) {
	provider := newTestProvider()
	require.NoError(t, provider.SetCurrentAccount(mustIdentity(t, "u2")))
	require.NoError(t, provider.SetCurrentAccount(mustIdentity(t, "u1")))

	var notified [][]string
	provider.OnRemoved(func(keys []string) { notified = append(notified, keys) })

	removed := provider.RemoveAccounts("u2", "missing")
	assert.Equal(t, []string{"u2"}, removed)

	_, err := provider.AccountByKey("u2")
	assert.True(t, shared.IsCode(err, shared.ErrCodeUnknownAccountKey))

	current, _ := provider.CurrentAccount()
	assert.Equal(t, "u1", current.Key())

	assert.Empty(t, provider.RemoveAccounts("u2"))
	assert.Equal(t, [][]string{{"u2"}}, notified)
}

func TestProvider_RemoveCurrentAccountSwitchesToFallback(t *testing.T) {
	provider := newTestProvider()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, provider.SetCurrentAccount(mustIdentity(t, "u1")))
	sub := provider.ObserveCurrentAccount(ctx)
	assert.Equal(t, "u1", receive(t, sub.C()).Key())

	removed := provider.RemoveAccounts("u1", "stub")
	assert.Equal(t, []string{"u1"}, removed)

	current, ok := provider.CurrentAccount()
	require.True(t, ok)
	assert.Equal(t, "stub", current.Key())
	assert.False(t, provider.IsSignedIn())
	assert.Equal(t, "stub", receive(t, sub.C()).Key())

	_, err := provider.AccountByKey("stub")
	assert.NoError(t, err)
}

func TestProvider_Accounts(t *testing.T) {
	provider := newTestProvider()
	require.NoError(t, provider.SetCurrentAccount(mustIdentity(t, "u1")))

	accounts := provider.Accounts()
	require.Len(t, accounts, 2)
	assert.Equal(t, "stub", accounts[0].Key())
	assert.Equal(t, "u1", accounts[1].Key())
}
