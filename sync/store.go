package sync

import "notesync/models"

// LocalStore is the contract the sync layer consumes from the local record
// store. *models.Store satisfies it; tests may substitute their own.
// The local store is authoritative — failures from it are always surfaced,
// never swallowed.
type LocalStore interface {
	// Notes
	ListNotes(filter models.NoteFilter) ([]models.Note, error)
	ApplySyncedNote(n *models.Note) error
	GetNoteImages(guid string) ([][]byte, error)

	// Categories
	ListCategories() ([]models.Category, error)
	CategoryForNote(n *models.Note) (*models.Category, error)
	ReassignNotes(fromCategoryGUID, toCategoryGUID string) (int64, error)
	DeleteCategoryRowByID(id int64) error
	SetCategoryGUID(id int64, guid string) error
}

// compile-time check that the concrete store satisfies the contract
var _ LocalStore = (*models.Store)(nil)
