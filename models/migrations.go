package models

import (
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// migrate brings the local schema up to date. All DDL is idempotent so the
// store can be opened repeatedly without version bookkeeping.
func (s *Store) migrate() error {
	// Sequences for auto-incrementing IDs in DuckDB
	sequences := []string{
		"CREATE SEQUENCE IF NOT EXISTS notes_id_seq START 1",
		"CREATE SEQUENCE IF NOT EXISTS categories_id_seq START 1",
	}
	for _, seqSQL := range sequences {
		if _, err := s.db.Exec(seqSQL); err != nil {
			logger.LogErr(err, "failed to create sequence", "sql", seqSQL)
			// Continue even if sequence exists
		}
	}

	// Notes: the note owns its document payload (BLOB) and its images.
	// category_guid is a weak reference by value — no FK constraint, so
	// deleting a category never cascades to notes; orphaned references are
	// resolved lookup-or-default at read time.
	notesTableSQL := `
	CREATE TABLE IF NOT EXISTS notes (
		id            BIGINT PRIMARY KEY DEFAULT nextval('notes_id_seq'),
		guid          VARCHAR NOT NULL UNIQUE,
		payload       BLOB,
		category_guid VARCHAR,
		entry_date    TIMESTAMP,
		latitude      DOUBLE,
		longitude     DOUBLE,
		place_name    VARCHAR,
		locality      VARCHAR,
		is_public     BOOLEAN DEFAULT false,
		is_anonymous  BOOLEAN DEFAULT false,
		created_at    TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at    TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := s.db.Exec(notesTableSQL); err != nil {
		return serr.Wrap(err, "failed to create notes table")
	}

	// Images attached to a note, owned by it. position preserves order.
	noteImagesTableSQL := `
	CREATE TABLE IF NOT EXISTS note_images (
		note_guid  VARCHAR NOT NULL,
		position   INTEGER NOT NULL,
		data       BLOB NOT NULL,
		PRIMARY KEY (note_guid, position)
	)`
	if _, err := s.db.Exec(noteImagesTableSQL); err != nil {
		return serr.Wrap(err, "failed to create note_images table")
	}

	// Categories: guid is intentionally NOT unique. Rows created before the
	// deterministic-identity mechanism may carry '' or duplicate computed
	// identifiers; the sync manager's reconciliation pass cleans them up
	// using id (insertion order) as the stable tie-break key.
	categoriesTableSQL := `
	CREATE TABLE IF NOT EXISTS categories (
		id         BIGINT PRIMARY KEY DEFAULT nextval('categories_id_seq'),
		guid       VARCHAR NOT NULL DEFAULT '',
		name       VARCHAR NOT NULL,
		color      VARCHAR NOT NULL,
		symbol     VARCHAR NOT NULL,
		sort_index INTEGER DEFAULT 0,
		is_default BOOLEAN DEFAULT false,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := s.db.Exec(categoriesTableSQL); err != nil {
		return serr.Wrap(err, "failed to create categories table")
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_notes_guid ON notes(guid)",
		"CREATE INDEX IF NOT EXISTS idx_notes_category ON notes(category_guid)",
		"CREATE INDEX IF NOT EXISTS idx_notes_updated ON notes(updated_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_categories_guid ON categories(guid)",
	}
	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			logger.LogErr(err, "failed to create index", "sql", indexSQL)
			// Continue with other indexes even if one fails
		}
	}

	return nil
}

// SeedDefaultCategories inserts any missing built-in categories with their
// deterministic identifiers. Safe to call on every start.
func (s *Store) SeedDefaultCategories() error {
	for _, dc := range DefaultCategories {
		guid := DeterministicCategoryID(dc.Name, dc.Color, dc.Symbol)

		var count int
		err := s.queryRow(`SELECT COUNT(*) FROM categories WHERE guid = ?`, guid).Scan(&count)
		if err != nil {
			return serr.Wrap(err, "failed to check for default category "+dc.Name)
		}
		if count > 0 {
			continue
		}

		_, err = s.exec(
			`INSERT INTO categories (guid, name, color, symbol, sort_index, is_default)
			 VALUES (?, ?, ?, ?, ?, true)`,
			guid, dc.Name, dc.Color, dc.Symbol, dc.SortIndex,
		)
		if err != nil {
			return serr.Wrap(err, "failed to seed default category "+dc.Name)
		}
	}

	return nil
}
