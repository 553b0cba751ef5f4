package account

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository implements Repository in process memory
type MemoryRepository struct {
	mutex    sync.RWMutex
	records  map[string]record
	current  string
	revision int64
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[string]record),
	}
}

func (m *MemoryRepository) Save(_ context.Context, identity Identity) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.revision++
	m.records[identity.Key()] = toRecord(identity, m.revision)
	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, keys ...string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, key := range keys {
		delete(m.records, key)
	}
	return nil
}

func (m *MemoryRepository) List(_ context.Context) ([]Identity, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	identities := make([]Identity, 0, len(m.records))
	for _, rec := range m.records {
		identity, err := rec.identity()
		if err != nil {
			return nil, err
		}
		identities = append(identities, identity)
	}
	sort.Slice(identities, func(i, j int) bool {
		return identities[i].Key() < identities[j].Key()
	})
	return identities, nil
}

func (m *MemoryRepository) SaveCurrent(_ context.Context, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.current = key
	return nil
}

func (m *MemoryRepository) GetCurrent(_ context.Context) (string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.current, nil
}
