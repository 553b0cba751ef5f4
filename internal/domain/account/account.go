package account

import (
	"encoding/hex"
	"path/filepath"

	"golang.org/x/crypto/blake2b"

	"github.com/danghamo/accountd/internal/domain/shared"
)

const (
	// NonSignedInKey is the key of the fallback identity used when no real account is active
	NonSignedInKey = "stub"
	// NonSignedInName is the default display name of the fallback identity
	NonSignedInName = "stub"

	accountsDirName = "accounts"
	namespacePrefix = "account_"
)

// Identity is an immutable description of one account.
// Two identities with the same key are the same account.
type Identity struct {
	name      string
	key       string
	signedIn  bool
	filesRoot string
	fallback  bool
}

// Option configures an Identity at construction time
type Option func(*Identity)

// WithFilesRoot sets the directory under which account files directories are derived
func WithFilesRoot(root string) Option {
	return func(id *Identity) {
		id.filesRoot = root
	}
}

// WithName overrides the display name
func WithName(name string) Option {
	return func(id *Identity) {
		id.name = name
	}
}

// NewIdentity creates a new account identity. The key must not be empty and
// must not be the fallback key, which only NonSignedIn may use.
func NewIdentity(key, name string, signedIn bool, opts ...Option) (Identity, error) {
	if key == "" {
		return Identity{}, shared.NewDomainError(shared.ErrCodeInvalidInput, "Account key cannot be empty")
	}
	if key == NonSignedInKey {
		return Identity{}, shared.NewDomainErrorf(shared.ErrCodeInvalidInput, "Account key %q is reserved", key)
	}

	id := Identity{
		name:     name,
		key:      key,
		signedIn: signedIn,
	}
	for _, opt := range opts {
		opt(&id)
	}

	return id, nil
}

// NonSignedIn creates the fallback identity. It is never signed in and keeps
// storage names un-namespaced so data written before any sign-in stays readable.
func NonSignedIn(opts ...Option) Identity {
	id := Identity{
		name:     NonSignedInName,
		key:      NonSignedInKey,
		fallback: true,
	}
	for _, opt := range opts {
		opt(&id)
	}
	id.signedIn = false

	return id
}

// Name returns the display name (not unique)
func (a Identity) Name() string {
	return a.name
}

// Key returns the unique, stable account key
func (a Identity) Key() string {
	return a.key
}

// SignedIn reports whether this is a real authenticated account
func (a Identity) SignedIn() bool {
	return a.signedIn
}

// IsNonSignedIn reports whether this is the fallback identity
func (a Identity) IsNonSignedIn() bool {
	return a.fallback
}

// IsZero reports whether the identity was never constructed
func (a Identity) IsZero() bool {
	return a.key == ""
}

// SameAccount reports whether both identities refer to the same account
func (a Identity) SameAccount(other Identity) bool {
	return a.key == other.key
}

// FilesRoot returns the root the files directory is derived from
func (a Identity) FilesRoot() string {
	return a.filesRoot
}

// FilesDirectory returns the account-scoped directory for files.
// The fallback identity uses the files root itself.
func (a Identity) FilesDirectory() string {
	if a.fallback {
		return a.filesRoot
	}
	return filepath.Join(a.filesRoot, accountsDirName, directoryName(a.key))
}

// DatabaseFileName returns the account-scoped name of a database file
func (a Identity) DatabaseFileName(baseName string) string {
	if a.fallback {
		return baseName
	}
	return namespacePrefix + a.key + "_" + baseName
}

// PreferenceKey returns the account-scoped key of a preference
func (a Identity) PreferenceKey(baseKey string) string {
	if a.fallback {
		return baseKey
	}
	return namespacePrefix + a.key + "_" + baseKey
}

// String returns a log-friendly representation
func (a Identity) String() string {
	return a.name + "<" + a.key + ">"
}

// directoryName maps an arbitrary key to a fixed-length, filesystem-safe name
func directoryName(key string) string {
	sum, _ := blake2b.New(16, nil)
	sum.Write([]byte(key))
	return hex.EncodeToString(sum.Sum(nil))
}
