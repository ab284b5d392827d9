package protocol

import "context"

// RecordRepository creates and updates business records (contacts, deals,
// invoices) on behalf of record-manipulation actions. The model name selects
// the record collection; fields carry the resolved values after placeholder
// substitution.
type RecordRepository interface {
	// CreateRecord creates a record and returns its new identifier.
	CreateRecord(ctx context.Context, organizationID, model string, fields map[string]any) (string, error)

	// UpdateRecord applies a partial update to an existing record.
	UpdateRecord(ctx context.Context, organizationID, model, recordID string, fields map[string]any) error
}
