package sync

import (
	"time"

	"notesync/models"
)

// NoteRow is the remote mirror of a local note: a denormalized, rebuildable
// projection. Its ID equals the local note's GUID — the row is a mirror,
// not a separate entity, and there is at most one per note that has ever
// been made public.
//
// Category color/symbol are copied by value so the row keeps rendering
// after the local category is deleted. Content is the plain-text
// projection used for search and preview; Payload is the full document as
// base64 over the archival bytes (the transport is JSON-based, so the
// column is a string, never raw binary).
type NoteRow struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"owner_id"`
	Content        string     `json:"content"`
	Payload        string     `json:"payload"`
	CategoryColor  string     `json:"category_color,omitempty"`
	CategorySymbol string     `json:"category_symbol,omitempty"`
	ImageURLs      []string   `json:"image_urls,omitempty"`
	EntryDate      *time.Time `json:"entry_date,omitempty"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	PlaceName      *string    `json:"place_name,omitempty"`
	Locality       *string    `json:"locality,omitempty"`
	IsAnonymous    bool       `json:"is_anonymous"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Username is a joined profile projection the backend attaches on
	// reads for display. Never written by the client.
	Username string `json:"username,omitempty"`
}

// buildNoteRow projects a local note onto its mirror row. category may be
// nil when no category resolves (tokens stay empty — the row still
// renders). imageURLs are the already-uploaded public URLs, supplied by
// the repository.
func buildNoteRow(n *models.Note, ownerID string, category *models.Category, imageURLs []string) (NoteRow, error) {
	doc := n.Document()
	payload, err := models.EncodeDocumentWire(doc)
	if err != nil {
		return NoteRow{}, err
	}

	row := NoteRow{
		ID:          n.GUID,
		OwnerID:     ownerID,
		Content:     doc.PlainText(),
		Payload:     payload,
		ImageURLs:   imageURLs,
		IsAnonymous: n.IsAnonymous,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}

	if category != nil {
		row.CategoryColor = category.Color
		row.CategorySymbol = category.Symbol
	}
	if n.EntryDate.Valid {
		d := n.EntryDate.Time
		row.EntryDate = &d
	}
	if n.Latitude.Valid && n.Longitude.Valid {
		lat, lon := n.Latitude.Float64, n.Longitude.Float64
		row.Latitude, row.Longitude = &lat, &lon
	}
	if n.PlaceName.Valid {
		p := n.PlaceName.String
		row.PlaceName = &p
	}
	if n.Locality.Valid {
		l := n.Locality.String
		row.Locality = &l
	}

	return row, nil
}

// noteFromRow materializes a local note from a downloaded mirror row.
// Malformed payloads decode to an empty document rather than failing.
// The category reference is left unset: the row only carries copied
// tokens, and local resolution is lookup-or-default anyway.
func noteFromRow(row NoteRow) (*models.Note, error) {
	doc := models.DecodeDocumentWire(row.Payload)
	payload, err := models.EncodeDocument(doc)
	if err != nil {
		return nil, err
	}

	n := &models.Note{
		GUID:        row.ID,
		Payload:     payload,
		IsPublic:    true,
		IsAnonymous: row.IsAnonymous,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.EntryDate != nil {
		n.EntryDate.Valid = true
		n.EntryDate.Time = *row.EntryDate
	}
	if row.Latitude != nil && row.Longitude != nil {
		n.Latitude.Valid, n.Latitude.Float64 = true, *row.Latitude
		n.Longitude.Valid, n.Longitude.Float64 = true, *row.Longitude
	}
	if row.PlaceName != nil {
		n.PlaceName.Valid, n.PlaceName.String = true, *row.PlaceName
	}
	if row.Locality != nil {
		n.Locality.Valid, n.Locality.String = true, *row.Locality
	}

	return n, nil
}
