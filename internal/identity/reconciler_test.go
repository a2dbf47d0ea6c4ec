package identity_test

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/google/uuid"

	"github.com/nucleus/provision-core/internal/identity"
)

type fakeSaver struct {
	calls  int
	err    error
	nextID int
	seen   [][]*identity.Record
}

func (f *fakeSaver) Save(ctx context.Context, collection string, records []*identity.Record) ([]identity.Acknowledgement, error) {
	f.calls++
	f.seen = append(f.seen, records)
	if f.err != nil {
		return nil, f.err
	}
	acks := make([]identity.Acknowledgement, len(records))
	for i, r := range records {
		f.nextID++
		acks[i] = identity.Acknowledgement{LocalID: r.LocalID, RemoteID: strconv.Itoa(f.nextID)}
	}
	return acks, nil
}

func TestCreate_AssignsUniqueLocalIDs(t *testing.T) {
	r := identity.NewReconciler("articles", []string{"name"}, &fakeSaver{}, nil)
	seen := map[uuid.UUID]bool{}
	for i := 0; i < 100; i++ {
		rec := r.Create(map[string]any{"name": "item " + strconv.Itoa(i)})
		if rec.LocalID == uuid.Nil {
			t.Fatal("empty local id")
		}
		if seen[rec.LocalID] {
			t.Fatalf("local id reused: %s", rec.LocalID)
		}
		seen[rec.LocalID] = true
		if !rec.IsNew || rec.SyncStatus != identity.Pending || rec.RemoteID != "" {
			t.Fatalf("unexpected draft state: %+v", rec)
		}
	}
}

func TestSave_BackfillsRemoteIDOnce(t *testing.T) {
	saver := &fakeSaver{}
	r := identity.NewReconciler("articles", []string{"name"}, saver, nil)
	rec := r.Create(map[string]any{"name": "Butter"})

	ok, err := r.Save(context.Background(), rec.LocalID)
	if !ok || err != nil {
		t.Fatalf("Save = %v, %v", ok, err)
	}
	got, _ := r.Get(rec.LocalID)
	if got.RemoteID != "1" || got.IsNew || got.IsDirty || got.SyncStatus != identity.Synced {
		t.Fatalf("after first save: %+v", got)
	}
	if got.LocalID != rec.LocalID {
		t.Fatal("local id changed")
	}

	if err := r.Edit(rec.LocalID, "unit", "g"); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	got, _ = r.Get(rec.LocalID)
	if !got.IsDirty {
		t.Fatal("edit should mark record dirty")
	}

	if _, err := r.Save(context.Background(), rec.LocalID); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	got, _ = r.Get(rec.LocalID)
	if got.RemoteID != "1" {
		t.Fatalf("remote id reassigned to %q", got.RemoteID)
	}
	if got.IsDirty {
		t.Fatal("save should clear dirty flag")
	}
	if saver.seen[1][0].RemoteID != "1" {
		t.Fatal("second save should send the known remote id")
	}
}

func TestSave_DuplicateIsCaseInsensitive(t *testing.T) {
	saver := &fakeSaver{}
	r := identity.NewReconciler("suppliers", []string{"name"}, saver, nil)
	first := r.Create(map[string]any{"name": "Metro"})
	second := r.Create(map[string]any{"name": "  metro "})

	ok, err := r.Save(context.Background(), second.LocalID)
	var conflict *identity.ConflictError
	if ok || !errors.As(err, &conflict) {
		t.Fatalf("Save = %v, %v; want conflict", ok, err)
	}
	if conflict.Existing.LocalID != first.LocalID {
		t.Fatalf("conflict points at %s", conflict.Existing.LocalID)
	}
	if saver.calls != 0 {
		t.Fatal("duplicate must not be persisted")
	}

	// Cancel branch.
	if !r.Discard(second.LocalID) {
		t.Fatal("Discard returned false")
	}
	if ok, err := r.Save(context.Background(), first.LocalID); !ok || err != nil {
		t.Fatalf("original should save after discard: %v, %v", ok, err)
	}
}

func TestFindDuplicate_ExcludesSelf(t *testing.T) {
	r := identity.NewReconciler("recipes", []string{"name", "parent"}, &fakeSaver{}, nil)
	a := r.Create(map[string]any{"name": "Soup", "parent": "starters"})
	if _, ok := r.FindDuplicate(a.LocalID); ok {
		t.Fatal("record matched itself")
	}
	b := r.Create(map[string]any{"name": "Soup", "parent": "mains"})
	if _, ok := r.FindDuplicate(b.LocalID); ok {
		t.Fatal("different parent should not match")
	}
}

func TestSave_FailureKeepsLocalData(t *testing.T) {
	saver := &fakeSaver{err: errors.New("HTTP 503")}
	r := identity.NewReconciler("articles", []string{"name"}, saver, nil)
	rec := r.Create(map[string]any{"name": "Flour", "price": 1.2})

	ok, err := r.Save(context.Background(), rec.LocalID)
	if ok || err == nil {
		t.Fatalf("Save = %v, %v; want failure", ok, err)
	}
	got, _ := r.Get(rec.LocalID)
	if got.SyncStatus != identity.Failed || !got.IsNew || got.RemoteID != "" {
		t.Fatalf("unexpected state after failure: %+v", got)
	}
	if got.Fields["name"] != "Flour" || got.Fields["price"] != 1.2 {
		t.Fatalf("fields lost: %+v", got.Fields)
	}

	saver.err = nil
	if ok, err := r.Save(context.Background(), rec.LocalID); !ok || err != nil {
		t.Fatalf("retry: %v, %v", ok, err)
	}
}

func TestSave_UnknownRecord(t *testing.T) {
	r := identity.NewReconciler("articles", nil, &fakeSaver{}, nil)
	if _, err := r.Save(context.Background(), uuid.New()); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	r := identity.NewReconciler("articles", nil, &fakeSaver{}, nil)
	rec := r.Create(map[string]any{"name": "Salt"})
	rec.Fields["name"] = "Pepper"
	got, _ := r.Get(rec.LocalID)
	if got.Fields["name"] != "Salt" {
		t.Fatal("caller mutation leaked into reconciler")
	}
	if len(r.List()) != 1 {
		t.Fatal("List length")
	}
}
