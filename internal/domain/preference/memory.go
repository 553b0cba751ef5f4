package preference

import (
	"context"
	"sync"
)

// Switch is a two-state control
type Switch struct {
	key     string
	checked bool
}

// NewSwitch creates a switch control
func NewSwitch(key string, checked bool) *Switch {
	return &Switch{key: key, checked: checked}
}

func (s *Switch) Key() string             { return s.key }
func (s *Switch) SetKey(key string)       { s.key = key }
func (s *Switch) Kind() string            { return KindSwitch }
func (s *Switch) Checked() bool           { return s.checked }
func (s *Switch) SetChecked(checked bool) { s.checked = checked }

// Text is a free-form text control; it has no checked state
type Text struct {
	key   string
	value string
}

// NewText creates a text control
func NewText(key, value string) *Text {
	return &Text{key: key, value: value}
}

func (t *Text) Key() string       { return t.key }
func (t *Text) SetKey(key string) { t.key = key }
func (t *Text) Kind() string      { return KindText }
func (t *Text) Value() string     { return t.value }

// ControlState is the serializable state of a control
type ControlState struct {
	Kind    string `json:"kind"`
	Checked *bool  `json:"checked,omitempty"`
	Value   string `json:"value,omitempty"`
}

// MemorySurface holds controls in memory. Controls are looked up by their current key.
type MemorySurface struct {
	controls []Control
	store    Store
}

// NewMemorySurface creates a surface over store
func NewMemorySurface(store Store, controls ...Control) *MemorySurface {
	return &MemorySurface{
		controls: controls,
		store:    store,
	}
}

// Add appends a control
func (m *MemorySurface) Add(control Control) {
	m.controls = append(m.controls, control)
}

func (m *MemorySurface) Find(key string) (Control, bool) {
	for _, control := range m.controls {
		if control.Key() == key {
			return control, true
		}
	}
	return nil, false
}

func (m *MemorySurface) Store() Store {
	return m.store
}

// Snapshot returns the state of every control keyed by its current key
func (m *MemorySurface) Snapshot() map[string]ControlState {
	snapshot := make(map[string]ControlState, len(m.controls))
	for _, control := range m.controls {
		state := ControlState{Kind: control.Kind()}
		switch c := control.(type) {
		case TwoState:
			checked := c.Checked()
			state.Checked = &checked
		case *Text:
			state.Value = c.Value()
		}
		snapshot[control.Key()] = state
	}
	return snapshot
}

// MemoryStore is a Store kept in process memory
type MemoryStore struct {
	mutex  sync.RWMutex
	values map[string]bool
}

// NewMemoryStore creates a store seeded with values
func NewMemoryStore(values map[string]bool) *MemoryStore {
	store := &MemoryStore{values: make(map[string]bool, len(values))}
	for k, v := range values {
		store.values[k] = v
	}
	return store
}

func (s *MemoryStore) GetBool(_ context.Context, key string, defaultValue bool) (bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	value, exists := s.values[key]
	if !exists {
		return defaultValue, nil
	}
	return value, nil
}

func (s *MemoryStore) SetBool(_ context.Context, key string, value bool) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.values[key] = value
	return nil
}
