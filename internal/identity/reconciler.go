package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for an unknown local ID.
var ErrNotFound = errors.New("record not found")

// Reconciler owns the in-memory record set of one collection.
type Reconciler struct {
	collection string
	matchKey   []string
	saver      RecordSaver
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	records map[uuid.UUID]*Record
	order   []uuid.UUID
}

// NewReconciler creates a reconciler. matchKey lists the fields compared
// case-insensitively when looking for duplicates.
func NewReconciler(collection string, matchKey []string, saver RecordSaver, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		collection: collection,
		matchKey:   matchKey,
		saver:      saver,
		logger:     logger.With("collection", collection),
		now:        time.Now,
		records:    make(map[uuid.UUID]*Record),
	}
}

// Collection returns the collection name.
func (r *Reconciler) Collection() string { return r.collection }

// Create drafts a new record with a fresh local ID.
func (r *Reconciler) Create(fields map[string]any) *Record {
	rec := &Record{
		LocalID:    uuid.New(),
		IsNew:      true,
		SyncStatus: Pending,
		Fields:     map[string]any{},
		UpdatedAt:  r.now(),
	}
	for k, v := range fields {
		rec.Fields[k] = v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.LocalID] = rec
	r.order = append(r.order, rec.LocalID)
	return rec.Clone()
}

// Load adds records read from storage, keeping their identity.
func (r *Reconciler) Load(records ...*Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		if rec == nil || rec.LocalID == uuid.Nil {
			continue
		}
		if _, ok := r.records[rec.LocalID]; !ok {
			r.order = append(r.order, rec.LocalID)
		}
		r.records[rec.LocalID] = rec.Clone()
	}
}

// Edit sets a field and marks the record dirty.
func (r *Reconciler) Edit(localID uuid.UUID, field string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[localID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, localID)
	}
	rec.Fields[field] = value
	rec.IsDirty = true
	rec.revision++
	rec.UpdatedAt = r.now()
	return nil
}

// Get returns a copy of the record.
func (r *Reconciler) Get(localID uuid.UUID) (*Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[localID]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// List returns copies of all records in creation order.
func (r *Reconciler) List() []*Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Record, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.records[id].Clone())
	}
	return out
}

// Discard drops a record that was never meant to be kept, e.g. a draft
// the user cancelled after a duplicate warning.
func (r *Reconciler) Discard(localID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[localID]; !ok {
		return false
	}
	delete(r.records, localID)
	for i, id := range r.order {
		if id == localID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// FindDuplicate returns another record with the same match key.
func (r *Reconciler) FindDuplicate(localID uuid.UUID) (*Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[localID]
	if !ok {
		return nil, false
	}
	dup := r.duplicateOf(rec)
	if dup == nil {
		return nil, false
	}
	return dup.Clone(), true
}

func (r *Reconciler) duplicateOf(rec *Record) *Record {
	key, ok := r.keyOf(rec)
	if !ok {
		return nil
	}
	for _, id := range r.order {
		if id == rec.LocalID {
			continue
		}
		if other, ok := r.keyOf(r.records[id]); ok && other == key {
			return r.records[id]
		}
	}
	return nil
}

// keyOf reports false when every match field is empty.
func (r *Reconciler) keyOf(rec *Record) (string, bool) {
	if len(r.matchKey) == 0 {
		return "", false
	}
	parts := make([]string, len(r.matchKey))
	empty := true
	for i, f := range r.matchKey {
		v, ok := rec.Fields[f]
		if ok && v != nil {
			parts[i] = strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
		}
		if parts[i] != "" {
			empty = false
		}
	}
	return strings.Join(parts, "\x00"), !empty
}

// Save persists the record. A duplicate returns a *ConflictError and
// nothing is written. A failed save marks the record Failed and keeps its
// fields so the caller can retry.
func (r *Reconciler) Save(ctx context.Context, localID uuid.UUID) (bool, error) {
	r.mu.Lock()
	rec, ok := r.records[localID]
	if !ok {
		r.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrNotFound, localID)
	}
	if dup := r.duplicateOf(rec); dup != nil {
		existing := dup.Clone()
		r.mu.Unlock()
		return false, &ConflictError{Existing: existing}
	}
	snapshot := rec.Clone()
	r.mu.Unlock()

	acks, err := r.saver.Save(ctx, r.collection, []*Record{snapshot})
	if err == nil {
		err = ackFor(acks, localID, snapshot)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok = r.records[localID]
	if !ok {
		// Discarded while the save was in flight.
		return err == nil, err
	}
	if err != nil {
		rec.SyncStatus = Failed
		r.logger.Warn("record save failed", "local_id", localID, "error", err)
		return false, err
	}
	if rec.RemoteID == "" {
		rec.RemoteID = snapshot.RemoteID
	}
	rec.IsNew = false
	rec.IsDirty = rec.revision != snapshot.revision
	rec.SyncStatus = Synced
	r.logger.Debug("record saved", "local_id", localID, "remote_id", rec.RemoteID)
	return true, nil
}

// ackFor copies the backend-assigned ID into snapshot.
func ackFor(acks []Acknowledgement, localID uuid.UUID, snapshot *Record) error {
	for _, a := range acks {
		if a.LocalID != localID {
			continue
		}
		if snapshot.RemoteID == "" {
			snapshot.RemoteID = a.RemoteID
		}
		return nil
	}
	return fmt.Errorf("backend did not acknowledge record %s", localID)
}
