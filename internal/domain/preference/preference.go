// Package preference describes the live preference surface that account
// namespacing is applied to, plus in-memory and Redis implementations.
package preference

import (
	"context"
)

// Control kinds
const (
	KindSwitch = "Switch"
	KindText   = "Text"
)

// Store is the storage behind a preference surface
type Store interface {
	GetBool(ctx context.Context, key string, defaultValue bool) (bool, error)
	SetBool(ctx context.Context, key string, value bool) error
}

// Control is a single preference control addressed by key
type Control interface {
	Key() string
	SetKey(key string)
	Kind() string
}

// TwoState is a control with a checked state
type TwoState interface {
	Control
	Checked() bool
	SetChecked(checked bool)
}

// Surface is a set of controls backed by a store
type Surface interface {
	Find(key string) (Control, bool)
	Store() Store
}
