package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryRecords is an in-memory RecordRepository for development and tests.
// Records are keyed by organization, model, and id.
type MemoryRecords struct {
	mu      sync.RWMutex
	records map[string]map[string]any
}

// NewMemoryRecords creates an empty in-memory record repository.
func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{
		records: make(map[string]map[string]any),
	}
}

func recordKey(organizationID, model, recordID string) string {
	return organizationID + "/" + model + "/" + recordID
}

// CreateRecord stores the fields under a freshly generated id.
func (m *MemoryRecords) CreateRecord(_ context.Context, organizationID, model string, fields map[string]any) (string, error) {
	recordID := uuid.New().String()

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make(map[string]any, len(fields))
	for key, value := range fields {
		stored[key] = value
	}

	m.records[recordKey(organizationID, model, recordID)] = stored

	return recordID, nil
}

// UpdateRecord merges fields into an existing record.
func (m *MemoryRecords) UpdateRecord(_ context.Context, organizationID, model, recordID string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.records[recordKey(organizationID, model, recordID)]
	if !exists {
		return fmt.Errorf("record %s/%s not found", model, recordID)
	}

	for key, value := range fields {
		stored[key] = value
	}

	return nil
}

// Record returns a copy of a stored record, for tests.
func (m *MemoryRecords) Record(organizationID, model, recordID string) (map[string]any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, exists := m.records[recordKey(organizationID, model, recordID)]
	if !exists {
		return nil, false
	}

	out := make(map[string]any, len(stored))
	for key, value := range stored {
		out[key] = value
	}

	return out, true
}
