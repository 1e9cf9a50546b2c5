package tokenstore

import (
	"sync"
	"time"

	"github.com/alexjbarnes/dashboard-bff/internal/models"
)

// Memory holds the record in a process-local variable. It is the L1 cache
// in front of every durable tier and the whole store in ephemeral runs.
type Memory struct {
	mu  sync.RWMutex
	rec *models.TokenRecord
	now func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// Get returns a copy of the record, or nil.
func (m *Memory) Get() (*models.TokenRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.rec == nil {
		return nil, nil
	}

	cp := *m.rec

	return &cp, nil
}

// Put stamps and stores rec.
func (m *Memory) Put(rec models.TokenRecord) (models.TokenRecord, error) {
	stamped := rec.Stamp(m.now())

	m.mu.Lock()
	m.rec = &stamped
	m.mu.Unlock()

	return stamped, nil
}

// Update merges patch into the current record.
func (m *Memory) Update(patch models.TokenPatch) (models.TokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	merged, err := models.Merge(m.rec, patch, m.now())
	if err != nil {
		return models.TokenRecord{}, err
	}

	m.rec = &merged

	return merged, nil
}

// Clear drops the record.
func (m *Memory) Clear() error {
	m.mu.Lock()
	m.rec = nil
	m.mu.Unlock()

	return nil
}

// seed installs a record read from a durable tier without restamping it,
// unless a record is already present.
func (m *Memory) seed(rec models.TokenRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rec == nil {
		m.rec = &rec
	}
}
