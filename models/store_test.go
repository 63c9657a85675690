package models

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

// newTestStore opens a fresh store backed by a temp file and seeds the
// built-in categories.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.ddb")
	s, err := OpenStore(path)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.SeedDefaultCategories(); err != nil {
		t.Fatalf("failed to seed default categories: %v", err)
	}
	return s
}

func TestSaveAndGetNote(t *testing.T) {
	s := newTestStore(t)

	n := &Note{}
	if err := n.SetDocument(NewPlainDocument("first draft")); err != nil {
		t.Fatalf("failed to set document: %v", err)
	}
	n.PlaceName = sql.NullString{String: "Harbor View Cafe", Valid: true}

	if err := s.SaveNote(n); err != nil {
		t.Fatalf("failed to save note: %v", err)
	}
	if n.GUID == "" {
		t.Fatal("save should assign a guid")
	}
	firstGUID := n.GUID

	got, err := s.GetNoteByGUID(n.GUID)
	if err != nil {
		t.Fatalf("failed to get note: %v", err)
	}
	if got == nil {
		t.Fatal("saved note not found")
	}
	if got.Document().PlainText() != "first draft" {
		t.Errorf("document lost on round trip, got %q", got.Document().PlainText())
	}
	if !got.PlaceName.Valid || got.PlaceName.String != "Harbor View Cafe" {
		t.Errorf("place name lost: %+v", got.PlaceName)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps should be set on save")
	}

	// Second save updates in place, keeping the guid.
	if err := n.SetDocument(NewPlainDocument("second draft")); err != nil {
		t.Fatalf("failed to set document: %v", err)
	}
	if err := s.SaveNote(n); err != nil {
		t.Fatalf("failed to re-save note: %v", err)
	}
	if n.GUID != firstGUID {
		t.Errorf("guid changed on update: %s -> %s", firstGUID, n.GUID)
	}

	got, err = s.GetNoteByGUID(firstGUID)
	if err != nil {
		t.Fatalf("failed to re-get note: %v", err)
	}
	if got.Document().PlainText() != "second draft" {
		t.Errorf("update lost, got %q", got.Document().PlainText())
	}

	// Absent notes come back nil, nil.
	missing, err := s.GetNoteByGUID("no-such-guid")
	if err != nil {
		t.Fatalf("lookup of absent note errored: %v", err)
	}
	if missing != nil {
		t.Error("absent note should be nil")
	}
}

func TestApplySyncedNotePreservesTimestamps(t *testing.T) {
	s := newTestStore(t)

	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	updated := time.Date(2024, 3, 5, 17, 30, 0, 0, time.UTC)

	n := &Note{GUID: NewNoteID(), CreatedAt: created, UpdatedAt: updated}
	if err := n.SetDocument(NewPlainDocument("downloaded")); err != nil {
		t.Fatalf("failed to set document: %v", err)
	}
	if err := s.ApplySyncedNote(n); err != nil {
		t.Fatalf("failed to apply synced note: %v", err)
	}

	got, err := s.GetNoteByGUID(n.GUID)
	if err != nil || got == nil {
		t.Fatalf("failed to get applied note: %v", err)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created_at not preserved: %v", got.CreatedAt)
	}
	if !got.UpdatedAt.Equal(updated) {
		t.Errorf("updated_at not preserved: %v", got.UpdatedAt)
	}

	// Applying the same record again overwrites in place.
	later := updated.Add(48 * time.Hour)
	n.UpdatedAt = later
	if err := s.ApplySyncedNote(n); err != nil {
		t.Fatalf("failed to re-apply synced note: %v", err)
	}
	got, _ = s.GetNoteByGUID(n.GUID)
	if !got.UpdatedAt.Equal(later) {
		t.Errorf("re-apply did not update timestamp: %v", got.UpdatedAt)
	}

	if err := s.ApplySyncedNote(&Note{}); err == nil {
		t.Error("applying a note with no guid should fail")
	}
}

func TestSetNotePublicPreservesUpdatedAt(t *testing.T) {
	s := newTestStore(t)

	n := &Note{}
	if err := n.SetDocument(NewPlainDocument("about to go public")); err != nil {
		t.Fatalf("failed to set document: %v", err)
	}
	if err := s.SaveNote(n); err != nil {
		t.Fatalf("failed to save note: %v", err)
	}

	before, err := s.GetNoteByGUID(n.GUID)
	if err != nil || before == nil {
		t.Fatalf("failed to get note: %v", err)
	}

	if err := s.SetNotePublic(n.GUID, true); err != nil {
		t.Fatalf("failed to set publish flag: %v", err)
	}
	after, _ := s.GetNoteByGUID(n.GUID)
	if !after.IsPublic {
		t.Error("publish flag should be set")
	}
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Errorf("flag write must not bump updated_at: %v -> %v",
			before.UpdatedAt, after.UpdatedAt)
	}

	if err := s.SetNotePublic(n.GUID, false); err != nil {
		t.Fatalf("failed to clear publish flag: %v", err)
	}
	after, _ = s.GetNoteByGUID(n.GUID)
	if after.IsPublic {
		t.Error("publish flag should be cleared")
	}
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Errorf("flag write must not bump updated_at: %v -> %v",
			before.UpdatedAt, after.UpdatedAt)
	}
}

func TestNoteImages(t *testing.T) {
	s := newTestStore(t)

	n := &Note{Images: [][]byte{{0x01, 0x02}, {0x03}, {0x04, 0x05, 0x06}}}
	if err := n.SetDocument(NewPlainDocument("with images")); err != nil {
		t.Fatalf("failed to set document: %v", err)
	}
	if err := s.SaveNote(n); err != nil {
		t.Fatalf("failed to save note with images: %v", err)
	}

	images, err := s.GetNoteImages(n.GUID)
	if err != nil {
		t.Fatalf("failed to get images: %v", err)
	}
	if len(images) != 3 {
		t.Fatalf("expected 3 images, got %d", len(images))
	}
	if images[1][0] != 0x03 {
		t.Error("image order not preserved")
	}

	// Saving with a nil image set leaves stored images untouched.
	n.Images = nil
	if err := s.SaveNote(n); err != nil {
		t.Fatalf("failed to re-save note: %v", err)
	}
	images, _ = s.GetNoteImages(n.GUID)
	if len(images) != 3 {
		t.Errorf("nil image set should preserve images, got %d", len(images))
	}

	// Saving with a different set replaces it wholesale.
	n.Images = [][]byte{{0xff}}
	if err := s.SaveNote(n); err != nil {
		t.Fatalf("failed to replace images: %v", err)
	}
	images, _ = s.GetNoteImages(n.GUID)
	if len(images) != 1 || images[0][0] != 0xff {
		t.Errorf("image replacement failed, got %d images", len(images))
	}
}

func TestDeleteNote(t *testing.T) {
	s := newTestStore(t)

	n := &Note{Images: [][]byte{{0xaa}}}
	if err := n.SetDocument(NewPlainDocument("doomed")); err != nil {
		t.Fatalf("failed to set document: %v", err)
	}
	if err := s.SaveNote(n); err != nil {
		t.Fatalf("failed to save note: %v", err)
	}

	if err := s.DeleteNote(n.GUID); err != nil {
		t.Fatalf("failed to delete note: %v", err)
	}
	got, err := s.GetNoteByGUID(n.GUID)
	if err != nil {
		t.Fatalf("lookup after delete errored: %v", err)
	}
	if got != nil {
		t.Error("note should be gone")
	}
	images, _ := s.GetNoteImages(n.GUID)
	if len(images) != 0 {
		t.Error("images should be deleted with the note")
	}

	// Deleting again is a no-op, not an error.
	if err := s.DeleteNote(n.GUID); err != nil {
		t.Errorf("repeat delete should succeed: %v", err)
	}
}

func TestListNotes(t *testing.T) {
	s := newTestStore(t)

	bookGUID := DeterministicCategoryID("Book", "green", "book")

	older := &Note{
		EntryDate: sql.NullTime{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Valid: true},
	}
	older.SetDocument(NewPlainDocument("older"))
	newer := &Note{
		EntryDate:    sql.NullTime{Time: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Valid: true},
		CategoryGUID: sql.NullString{String: bookGUID, Valid: true},
		IsPublic:     true,
	}
	newer.SetDocument(NewPlainDocument("newer"))

	for _, n := range []*Note{older, newer} {
		if err := s.SaveNote(n); err != nil {
			t.Fatalf("failed to save note: %v", err)
		}
	}

	all, err := s.ListNotes(NoteFilter{})
	if err != nil {
		t.Fatalf("failed to list notes: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(all))
	}
	if all[0].GUID != newer.GUID {
		t.Error("notes should be ordered newest entry date first")
	}

	public, err := s.ListNotes(NoteFilter{OnlyPublic: true})
	if err != nil {
		t.Fatalf("failed to list public notes: %v", err)
	}
	if len(public) != 1 || public[0].GUID != newer.GUID {
		t.Errorf("public filter wrong: %d notes", len(public))
	}

	byCat, err := s.ListNotes(NoteFilter{CategoryGUID: bookGUID})
	if err != nil {
		t.Fatalf("failed to list by category: %v", err)
	}
	if len(byCat) != 1 || byCat[0].GUID != newer.GUID {
		t.Errorf("category filter wrong: %d notes", len(byCat))
	}
}

func TestReassignNotes(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		n := &Note{CategoryGUID: sql.NullString{String: "old-cat", Valid: true}}
		n.SetDocument(NewPlainDocument("entry"))
		if err := s.SaveNote(n); err != nil {
			t.Fatalf("failed to save note: %v", err)
		}
	}
	other := &Note{CategoryGUID: sql.NullString{String: "other-cat", Valid: true}}
	other.SetDocument(NewPlainDocument("unrelated"))
	if err := s.SaveNote(other); err != nil {
		t.Fatalf("failed to save note: %v", err)
	}

	moved, err := s.ReassignNotes("old-cat", "new-cat")
	if err != nil {
		t.Fatalf("failed to reassign notes: %v", err)
	}
	if moved != 3 {
		t.Errorf("expected 3 notes moved, got %d", moved)
	}

	remaining, _ := s.ListNotes(NoteFilter{CategoryGUID: "old-cat"})
	if len(remaining) != 0 {
		t.Errorf("old category should be empty, has %d", len(remaining))
	}
	repointed, _ := s.ListNotes(NoteFilter{CategoryGUID: "new-cat"})
	if len(repointed) != 3 {
		t.Errorf("new category should have 3 notes, has %d", len(repointed))
	}
	untouched, _ := s.ListNotes(NoteFilter{CategoryGUID: "other-cat"})
	if len(untouched) != 1 {
		t.Error("unrelated note should be untouched")
	}
}

func TestSeedDefaultCategories(t *testing.T) {
	s := newTestStore(t)

	cats, err := s.ListCategories()
	if err != nil {
		t.Fatalf("failed to list categories: %v", err)
	}
	if len(cats) != len(DefaultCategories) {
		t.Fatalf("expected %d seeded categories, got %d", len(DefaultCategories), len(cats))
	}
	for i, c := range cats {
		dc := DefaultCategories[i]
		if c.Name != dc.Name || c.SortIndex != dc.SortIndex {
			t.Errorf("category %d out of order: %+v", i, c)
		}
		if c.GUID != DeterministicCategoryID(dc.Name, dc.Color, dc.Symbol) {
			t.Errorf("seeded %s with wrong identifier %s", dc.Name, c.GUID)
		}
		if !c.IsDefault {
			t.Errorf("seeded %s not marked default", dc.Name)
		}
	}

	// Seeding again must not duplicate.
	if err := s.SeedDefaultCategories(); err != nil {
		t.Fatalf("re-seed failed: %v", err)
	}
	cats, _ = s.ListCategories()
	if len(cats) != len(DefaultCategories) {
		t.Errorf("re-seed duplicated categories: %d", len(cats))
	}
}

func TestUserCategoryLifecycle(t *testing.T) {
	s := newTestStore(t)

	c, err := s.CreateCategory("Recipes", "teal", "fork", 10)
	if err != nil {
		t.Fatalf("failed to create category: %v", err)
	}
	if c.GUID == "" || IsDefaultCategoryID(c.GUID) {
		t.Errorf("user category should get a random identifier, got %s", c.GUID)
	}

	if err := s.UpdateCategory(c.GUID, "Cooking", "teal", "fork", 10); err != nil {
		t.Fatalf("failed to update user category: %v", err)
	}
	got, _ := s.GetCategoryByGUID(c.GUID)
	if got == nil || got.Name != "Cooking" {
		t.Errorf("rename lost: %+v", got)
	}

	if err := s.DeleteCategory(c.ID); err != nil {
		t.Fatalf("failed to delete user category: %v", err)
	}
	got, _ = s.GetCategoryByGUID(c.GUID)
	if got != nil {
		t.Error("deleted category still present")
	}

	// Deleting an absent category is a no-op.
	if err := s.DeleteCategory(c.ID); err != nil {
		t.Errorf("repeat delete should succeed: %v", err)
	}

	if _, err := s.CreateCategory("", "x", "y", 0); err == nil {
		t.Error("empty name should be rejected")
	}
}

func TestBuiltInCategoriesAreImmutable(t *testing.T) {
	s := newTestStore(t)

	bookGUID := DeterministicCategoryID("Book", "green", "book")
	if err := s.UpdateCategory(bookGUID, "Novels", "green", "book", 1); err == nil {
		t.Error("editing a built-in should be refused")
	}

	book, err := s.GetCategoryByGUID(bookGUID)
	if err != nil || book == nil {
		t.Fatalf("built-in Book missing: %v", err)
	}
	if err := s.DeleteCategory(book.ID); err == nil {
		t.Error("deleting a built-in should be refused")
	}
	if got, _ := s.GetCategoryByGUID(bookGUID); got == nil {
		t.Error("built-in should survive refused delete")
	}
}

func TestCategoryForNote(t *testing.T) {
	s := newTestStore(t)

	bookGUID := DeterministicCategoryID("Book", "green", "book")

	// Valid reference resolves to the referenced category.
	n := &Note{CategoryGUID: sql.NullString{String: bookGUID, Valid: true}}
	c, err := s.CategoryForNote(n)
	if err != nil {
		t.Fatalf("failed to resolve category: %v", err)
	}
	if c == nil || c.Name != "Book" {
		t.Errorf("expected Book, got %+v", c)
	}

	// Orphaned reference falls back to the first default.
	orphan := &Note{CategoryGUID: sql.NullString{String: NewCategoryID(), Valid: true}}
	c, err = s.CategoryForNote(orphan)
	if err != nil {
		t.Fatalf("failed to resolve orphaned category: %v", err)
	}
	if c == nil || c.Name != DefaultCategories[0].Name {
		t.Errorf("orphan should fall back to %s, got %+v", DefaultCategories[0].Name, c)
	}

	// No reference at all behaves the same.
	c, err = s.CategoryForNote(&Note{})
	if err != nil {
		t.Fatalf("failed to resolve empty category: %v", err)
	}
	if c == nil || c.Name != DefaultCategories[0].Name {
		t.Errorf("unset reference should fall back, got %+v", c)
	}
}

func TestSetCategoryGUIDRepairsRow(t *testing.T) {
	s := newTestStore(t)

	// A row predating identity assignment: default-shaped but no guid.
	row := &Category{Name: "Book", Color: "green", Symbol: "book", SortIndex: 1}
	if err := s.InsertCategoryRaw(row); err != nil {
		t.Fatalf("failed to insert raw category: %v", err)
	}

	canonical := DeterministicCategoryID("Book", "green", "book")
	if err := s.SetCategoryGUID(row.ID, canonical); err != nil {
		t.Fatalf("failed to set category guid: %v", err)
	}

	cats, _ := s.ListCategories()
	var repaired *Category
	for i := range cats {
		if cats[i].ID == row.ID {
			repaired = &cats[i]
		}
	}
	if repaired == nil {
		t.Fatal("repaired row vanished")
	}
	if repaired.GUID != canonical {
		t.Errorf("guid not repaired: %s", repaired.GUID)
	}
	if !repaired.IsDefault {
		t.Error("repaired row should be flagged default")
	}
}
