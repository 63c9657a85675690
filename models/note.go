package models

import (
	"database/sql"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// Note is the authoritative local record. It exclusively owns its document
// payload and image blobs; the category is a weak reference by value only.
// GUID is immutable once assigned and is the join key against the remote
// mirror row.
type Note struct {
	ID           int64           `json:"id"`
	GUID         string          `json:"guid"`
	Payload      []byte          `json:"-"` // archival document bytes
	CategoryGUID sql.NullString  `json:"category_guid,omitempty"`
	EntryDate    sql.NullTime    `json:"entry_date,omitempty"`
	Latitude     sql.NullFloat64 `json:"latitude,omitempty"`
	Longitude    sql.NullFloat64 `json:"longitude,omitempty"`
	PlaceName    sql.NullString  `json:"place_name,omitempty"`
	Locality     sql.NullString  `json:"locality,omitempty"`
	IsPublic     bool            `json:"is_public"`
	IsAnonymous  bool            `json:"is_anonymous"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	// Images are loaded on demand via GetNoteImages; SaveNote persists them
	// when non-nil.
	Images [][]byte `json:"-"`
}

// Document decodes the note's payload. Malformed payloads come back as an
// empty document, never an error.
func (n *Note) Document() Document {
	return DecodeDocument(n.Payload)
}

// SetDocument re-encodes the payload from a document. Encode failure is
// surfaced — writing a partial payload would corrupt the local record.
func (n *Note) SetDocument(d Document) error {
	data, err := EncodeDocument(d)
	if err != nil {
		return err
	}
	n.Payload = data
	return nil
}

const noteColumns = `id, guid, payload, category_guid, entry_date, latitude, longitude,
	place_name, locality, is_public, is_anonymous, created_at, updated_at`

// SaveNote upserts a note and, when n.Images is non-nil, replaces its image
// set, all in one transaction. A note with no GUID gets one assigned; the
// GUID never changes afterward.
func (s *Store) SaveNote(n *Note) error {
	if n.GUID == "" {
		n.GUID = NewNoteID()
		n.CreatedAt = time.Now()
	}
	n.UpdatedAt = time.Now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = n.UpdatedAt
	}

	return s.withTx(func(tx *sql.Tx) error {
		var count int
		err := tx.QueryRow(`SELECT COUNT(*) FROM notes WHERE guid = ?`, n.GUID).Scan(&count)
		if err != nil {
			return serr.Wrap(err, "failed to check for existing note")
		}

		if count == 0 {
			_, err = tx.Exec(
				`INSERT INTO notes (guid, payload, category_guid, entry_date, latitude, longitude,
				                    place_name, locality, is_public, is_anonymous, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				n.GUID, n.Payload, n.CategoryGUID, n.EntryDate, n.Latitude, n.Longitude,
				n.PlaceName, n.Locality, n.IsPublic, n.IsAnonymous, n.CreatedAt, n.UpdatedAt,
			)
			if err != nil {
				return serr.Wrap(err, "failed to insert note")
			}
		} else {
			_, err = tx.Exec(
				`UPDATE notes SET payload = ?, category_guid = ?, entry_date = ?, latitude = ?,
				  longitude = ?, place_name = ?, locality = ?, is_public = ?, is_anonymous = ?,
				  updated_at = ?
				 WHERE guid = ?`,
				n.Payload, n.CategoryGUID, n.EntryDate, n.Latitude, n.Longitude,
				n.PlaceName, n.Locality, n.IsPublic, n.IsAnonymous, n.UpdatedAt, n.GUID,
			)
			if err != nil {
				return serr.Wrap(err, "failed to update note")
			}
		}

		if n.Images != nil {
			if _, err := tx.Exec(`DELETE FROM note_images WHERE note_guid = ?`, n.GUID); err != nil {
				return serr.Wrap(err, "failed to clear note images")
			}
			for i, img := range n.Images {
				if _, err := tx.Exec(
					`INSERT INTO note_images (note_guid, position, data) VALUES (?, ?, ?)`,
					n.GUID, i, img,
				); err != nil {
					return serr.Wrap(err, "failed to insert note image")
				}
			}
		}

		return nil
	})
}

// ApplySyncedNote upserts a note exactly as given, preserving its
// timestamps. Only the sync layer uses this: a downloaded record must keep
// the remote updated_at or last-writer-wins comparisons would see every
// download as a fresh local edit.
func (s *Store) ApplySyncedNote(n *Note) error {
	if n.GUID == "" {
		return serr.New("synced note is missing its identifier")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = n.CreatedAt
	}

	return s.withTx(func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM notes WHERE guid = ?`, n.GUID).Scan(&count); err != nil {
			return serr.Wrap(err, "failed to check for existing note")
		}

		if count == 0 {
			_, err := tx.Exec(
				`INSERT INTO notes (guid, payload, category_guid, entry_date, latitude, longitude,
				                    place_name, locality, is_public, is_anonymous, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				n.GUID, n.Payload, n.CategoryGUID, n.EntryDate, n.Latitude, n.Longitude,
				n.PlaceName, n.Locality, n.IsPublic, n.IsAnonymous, n.CreatedAt, n.UpdatedAt,
			)
			if err != nil {
				return serr.Wrap(err, "failed to insert synced note")
			}
			return nil
		}

		_, err := tx.Exec(
			`UPDATE notes SET payload = ?, category_guid = ?, entry_date = ?, latitude = ?,
			  longitude = ?, place_name = ?, locality = ?, is_public = ?, is_anonymous = ?,
			  created_at = ?, updated_at = ?
			 WHERE guid = ?`,
			n.Payload, n.CategoryGUID, n.EntryDate, n.Latitude, n.Longitude,
			n.PlaceName, n.Locality, n.IsPublic, n.IsAnonymous, n.CreatedAt, n.UpdatedAt, n.GUID,
		)
		if err != nil {
			return serr.Wrap(err, "failed to update synced note")
		}
		return nil
	})
}

// SetNotePublic flips the publish flag without touching updated_at. A
// publish must not make the local record look newer than the mirror row
// just written, or the next sync pass re-uploads it for nothing.
func (s *Store) SetNotePublic(guid string, public bool) error {
	_, err := s.exec(`UPDATE notes SET is_public = ? WHERE guid = ?`, public, guid)
	if err != nil {
		return serr.Wrap(err, "failed to set note publish flag")
	}
	return nil
}

// GetNoteByGUID retrieves a single note. Returns nil, nil when absent.
func (s *Store) GetNoteByGUID(guid string) (*Note, error) {
	row := s.queryRow(`SELECT `+noteColumns+` FROM notes WHERE guid = ?`, guid)

	n := &Note{}
	err := row.Scan(&n.ID, &n.GUID, &n.Payload, &n.CategoryGUID, &n.EntryDate,
		&n.Latitude, &n.Longitude, &n.PlaceName, &n.Locality,
		&n.IsPublic, &n.IsAnonymous, &n.CreatedAt, &n.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, serr.Wrap(err, "failed to get note by guid")
	}
	return n, nil
}

// NoteFilter narrows ListNotes. Zero value lists everything.
type NoteFilter struct {
	OnlyPublic   bool
	CategoryGUID string // match notes referencing this category
}

// ListNotes returns notes ordered by entry date (falling back to creation
// time) descending, the order the app presents them in.
func (s *Store) ListNotes(filter NoteFilter) ([]Note, error) {
	q := `SELECT ` + noteColumns + ` FROM notes`
	var args []interface{}
	var where []string

	if filter.OnlyPublic {
		where = append(where, "is_public = true")
	}
	if filter.CategoryGUID != "" {
		where = append(where, "category_guid = ?")
		args = append(args, filter.CategoryGUID)
	}
	for i, w := range where {
		if i == 0 {
			q += " WHERE " + w
		} else {
			q += " AND " + w
		}
	}
	q += " ORDER BY COALESCE(entry_date, created_at) DESC"

	rows, err := s.query(q, args...)
	if err != nil {
		return nil, serr.Wrap(err, "failed to list notes")
	}
	defer rows.Close()

	return scanNotes(rows)
}

// DeleteNote removes a note and its images. Deleting an absent note is not
// an error.
func (s *Store) DeleteNote(guid string) error {
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM note_images WHERE note_guid = ?`, guid); err != nil {
			return serr.Wrap(err, "failed to delete note images")
		}
		if _, err := tx.Exec(`DELETE FROM notes WHERE guid = ?`, guid); err != nil {
			return serr.Wrap(err, "failed to delete note")
		}
		return nil
	})
}

// GetNoteImages loads the ordered image blobs attached to a note.
func (s *Store) GetNoteImages(guid string) ([][]byte, error) {
	rows, err := s.query(
		`SELECT data FROM note_images WHERE note_guid = ? ORDER BY position ASC`, guid)
	if err != nil {
		return nil, serr.Wrap(err, "failed to get note images")
	}
	defer rows.Close()

	var images [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, serr.Wrap(err, "failed to scan note image")
		}
		images = append(images, data)
	}
	if err := rows.Err(); err != nil {
		return nil, serr.Wrap(err, "error iterating note images")
	}
	return images, nil
}

// ReassignNotes repoints every note referencing fromCategoryGUID to
// toCategoryGUID. Used by reconciliation when a duplicate category is
// collapsed into its canonical twin.
func (s *Store) ReassignNotes(fromCategoryGUID, toCategoryGUID string) (int64, error) {
	res, err := s.exec(
		`UPDATE notes SET category_guid = ? WHERE category_guid = ?`,
		toCategoryGUID, fromCategoryGUID,
	)
	if err != nil {
		return 0, serr.Wrap(err, "failed to reassign notes")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, serr.Wrap(err, "failed to get reassigned note count")
	}
	return affected, nil
}

func scanNotes(rows *sql.Rows) ([]Note, error) {
	var notes []Note
	for rows.Next() {
		var n Note
		err := rows.Scan(&n.ID, &n.GUID, &n.Payload, &n.CategoryGUID, &n.EntryDate,
			&n.Latitude, &n.Longitude, &n.PlaceName, &n.Locality,
			&n.IsPublic, &n.IsAnonymous, &n.CreatedAt, &n.UpdatedAt)
		if err != nil {
			logger.LogErr(err, "failed to scan note")
			continue
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, serr.Wrap(err, "error iterating notes")
	}
	return notes, nil
}
