package account

import (
	"context"
)

// Repository persists the known identities and the current account key between runs
type Repository interface {
	// Save inserts or replaces an identity
	Save(ctx context.Context, identity Identity) error

	// Delete removes identities by key, ignoring absent keys
	Delete(ctx context.Context, keys ...string) error

	// List returns every persisted identity
	List(ctx context.Context) ([]Identity, error)

	// SaveCurrent records the current account key
	SaveCurrent(ctx context.Context, key string) error

	// GetCurrent returns the recorded current account key, or "" if none
	GetCurrent(ctx context.Context) (string, error)
}

// record is the serialized form of an Identity
type record struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	SignedIn  bool   `json:"signed_in"`
	FilesRoot string `json:"files_root,omitempty"`
	Fallback  bool   `json:"fallback,omitempty"`
	UpdatedAt int64  `json:"updated_at"`
}

func toRecord(identity Identity, updatedAt int64) record {
	return record{
		Key:       identity.Key(),
		Name:      identity.Name(),
		SignedIn:  identity.SignedIn(),
		FilesRoot: identity.FilesRoot(),
		Fallback:  identity.IsNonSignedIn(),
		UpdatedAt: updatedAt,
	}
}

func (r record) identity() (Identity, error) {
	if r.Fallback {
		return NonSignedIn(WithName(r.Name), WithFilesRoot(r.FilesRoot)), nil
	}
	return NewIdentity(r.Key, r.Name, r.SignedIn, WithFilesRoot(r.FilesRoot))
}
