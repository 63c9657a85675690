package models

import (
	"database/sql"
	"time"

	"github.com/rohanthewiz/serr"
)

// Category groups notes. Built-in defaults carry deterministic identifiers
// (see identity.go) so independent installs agree on them; user-created
// categories carry random identifiers.
//
// ID is the local insertion-order key. It backs the reconciliation
// tie-break: when duplicates share a created_at timestamp, the lowest ID
// survives, which keeps the algorithm deterministic and idempotent.
type Category struct {
	ID        int64     `json:"id"`
	GUID      string    `json:"guid"` // may be '' on rows predating identity repair
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Symbol    string    `json:"symbol"`
	SortIndex int       `json:"sort_index"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

const categoryColumns = `id, guid, name, color, symbol, sort_index, is_default, created_at`

// CreateCategory inserts a user-created category with a fresh random
// identifier. Default categories are seeded, never created through here.
func (s *Store) CreateCategory(name, color, symbol string, sortIndex int) (*Category, error) {
	if name == "" {
		return nil, serr.New("category name is required")
	}

	c := &Category{
		GUID:      NewCategoryID(),
		Name:      name,
		Color:     color,
		Symbol:    symbol,
		SortIndex: sortIndex,
		CreatedAt: time.Now(),
	}

	err := s.queryRow(
		`INSERT INTO categories (guid, name, color, symbol, sort_index, is_default, created_at)
		 VALUES (?, ?, ?, ?, ?, false, ?)
		 RETURNING id`,
		c.GUID, c.Name, c.Color, c.Symbol, c.SortIndex, c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		return nil, serr.Wrap(err, "failed to create category")
	}

	return c, nil
}

// InsertCategoryRaw inserts a category row exactly as given, including an
// empty or duplicate GUID. Reconciliation tests and sync apply paths need
// this; application code goes through CreateCategory or seeding.
func (s *Store) InsertCategoryRaw(c *Category) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	err := s.queryRow(
		`INSERT INTO categories (guid, name, color, symbol, sort_index, is_default, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		c.GUID, c.Name, c.Color, c.Symbol, c.SortIndex, c.IsDefault, c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		return serr.Wrap(err, "failed to insert category")
	}
	return nil
}

// ListCategories returns all categories ordered for display, then by
// insertion order for a stable result.
func (s *Store) ListCategories() ([]Category, error) {
	rows, err := s.query(
		`SELECT ` + categoryColumns + ` FROM categories ORDER BY sort_index ASC, id ASC`)
	if err != nil {
		return nil, serr.Wrap(err, "failed to list categories")
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		err := rows.Scan(&c.ID, &c.GUID, &c.Name, &c.Color, &c.Symbol,
			&c.SortIndex, &c.IsDefault, &c.CreatedAt)
		if err != nil {
			return nil, serr.Wrap(err, "failed to scan category")
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, serr.Wrap(err, "error iterating categories")
	}
	return categories, nil
}

// GetCategoryByGUID retrieves a category. Returns nil, nil when absent.
func (s *Store) GetCategoryByGUID(guid string) (*Category, error) {
	var c Category
	err := s.queryRow(
		`SELECT `+categoryColumns+` FROM categories WHERE guid = ? ORDER BY id ASC LIMIT 1`,
		guid,
	).Scan(&c.ID, &c.GUID, &c.Name, &c.Color, &c.Symbol, &c.SortIndex, &c.IsDefault, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, serr.Wrap(err, "failed to get category by guid")
	}
	return &c, nil
}

// CategoryForNote resolves a note's category reference. Orphaned or empty
// references fall back to the first default category rather than failing —
// deleting a category must never break the notes that pointed at it.
func (s *Store) CategoryForNote(n *Note) (*Category, error) {
	if n.CategoryGUID.Valid && n.CategoryGUID.String != "" {
		c, err := s.GetCategoryByGUID(n.CategoryGUID.String)
		if err != nil {
			return nil, err
		}
		if c != nil {
			return c, nil
		}
	}

	dc := DefaultCategories[0]
	return s.GetCategoryByGUID(DeterministicCategoryID(dc.Name, dc.Color, dc.Symbol))
}

// UpdateCategory renames/restyles a user-created category. Built-ins are
// immutable: their identity is derived from the triple, so editing one
// would silently fork it from every other install.
func (s *Store) UpdateCategory(guid, name, color, symbol string, sortIndex int) error {
	if IsDefaultCategoryID(guid) {
		return serr.New("default categories cannot be edited")
	}
	res, err := s.exec(
		`UPDATE categories SET name = ?, color = ?, symbol = ?, sort_index = ? WHERE guid = ?`,
		name, color, symbol, sortIndex, guid,
	)
	if err != nil {
		return serr.Wrap(err, "failed to update category")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return serr.Wrap(err, "failed to get updated category count")
	}
	if affected == 0 {
		return serr.New("category not found")
	}
	return nil
}

// DeleteCategory removes a user-created category by its local ID. Notes
// referencing it keep their (now orphaned) reference; resolution happens
// lookup-or-default at read time. Built-ins cannot be deleted.
func (s *Store) DeleteCategory(id int64) error {
	var guid string
	err := s.queryRow(`SELECT guid FROM categories WHERE id = ?`, id).Scan(&guid)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return serr.Wrap(err, "failed to look up category for delete")
	}
	if IsDefaultCategoryID(guid) {
		return serr.New("default categories cannot be deleted")
	}

	if _, err := s.exec(`DELETE FROM categories WHERE id = ?`, id); err != nil {
		return serr.Wrap(err, "failed to delete category")
	}
	return nil
}

// DeleteCategoryRowByID removes a category row unconditionally. Only the
// reconciliation pass uses this, after repointing note references away
// from the row.
func (s *Store) DeleteCategoryRowByID(id int64) error {
	if _, err := s.exec(`DELETE FROM categories WHERE id = ?`, id); err != nil {
		return serr.Wrap(err, "failed to delete category row")
	}
	return nil
}

// SetCategoryGUID assigns a computed identifier to a category row in
// place, keyed by local ID so rows with empty GUIDs can be repaired.
func (s *Store) SetCategoryGUID(id int64, guid string) error {
	if _, err := s.exec(
		`UPDATE categories SET guid = ?, is_default = ? WHERE id = ?`,
		guid, IsDefaultCategoryID(guid), id,
	); err != nil {
		return serr.Wrap(err, "failed to set category guid")
	}
	return nil
}
