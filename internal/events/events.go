// Package events publishes domain events produced by the ledger.
package events

import (
	"context"
	"time"
)

// TypeEntryRecorded identifies EntryRecorded payloads on the wire.
const TypeEntryRecorded = "ledger.entry_recorded"

// EntryRecorded is emitted after a ledger entry commits.
type EntryRecorded struct {
	Type          string    `json:"type"`
	EntryID       int64     `json:"entry_id"`
	ProjectID     int64     `json:"project_id"`
	ProjectName   string    `json:"project_name"`
	Department    string    `json:"department"`
	Description   string    `json:"description"`
	Amount        string    `json:"amount"`
	ProjectSpent  string    `json:"project_spent"`
	ProjectStatus string    `json:"project_status"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// Publisher delivers events to downstream consumers.
type Publisher interface {
	PublishEntryRecorded(ctx context.Context, event EntryRecorded) error
	Close() error
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

// PublishEntryRecorded implements Publisher.
func (Nop) PublishEntryRecorded(context.Context, EntryRecorded) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }
