// Package identity tracks the two-part identity of records created on the
// client: a local UUID assigned at creation and a remote ID assigned by the
// backend on the first successful save.
package identity

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// SyncStatus is the persistence state of a record.
type SyncStatus string

const (
	Pending SyncStatus = "pending"
	Synced  SyncStatus = "synced"
	Failed  SyncStatus = "failed"
)

// Record is a client-side record with its identity bookkeeping.
type Record struct {
	LocalID    uuid.UUID      `json:"localId"`
	RemoteID   string         `json:"remoteId,omitempty"`
	IsNew      bool           `json:"isNew"`
	IsDirty    bool           `json:"isDirty"`
	SyncStatus SyncStatus     `json:"syncStatus"`
	Fields     map[string]any `json:"fields"`
	UpdatedAt  time.Time      `json:"updatedAt"`

	revision int
}

// Clone returns a deep copy of the record's fields map.
func (r *Record) Clone() *Record {
	c := *r
	c.Fields = maps.Clone(r.Fields)
	return &c
}

// Acknowledgement maps a saved record's local ID to the ID the backend assigned.
type Acknowledgement struct {
	LocalID  uuid.UUID `json:"localId"`
	RemoteID string    `json:"remoteId"`
}

// RecordSaver persists records to the active backend. Records always carry
// their LocalID; the saver reports the remote ID of each stored record.
type RecordSaver interface {
	Save(ctx context.Context, collection string, records []*Record) ([]Acknowledgement, error)
}

// ConflictError is returned by Save when another record has the same match key.
type ConflictError struct {
	Existing *Record
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("duplicate of record %s", e.Existing.LocalID)
}
