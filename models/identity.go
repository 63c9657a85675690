package models

import (
	"strings"

	"github.com/google/uuid"
)

// ============================================================================
// Deterministic Category Identity
//
// Every install ships the same set of default categories, but each install
// creates its rows independently. If their identifiers were random, the same
// "Book" category would fork into a different identity on every device and
// the remote mirror could never join them back together.
//
// The fix: default-category identifiers are computed, not assigned. A
// version-5 (name-based, SHA-1) UUID over a fixed namespace and the
// canonical lowercase "name|color|symbol" string gives every client the
// same 128-bit value for the same triple, bit for bit. Two installs that
// independently create ("Book", "green", "book") collapse to one identity.
//
// User-created categories keep ordinary random identifiers and are never
// deduplicated by content.
// ============================================================================

// categoryNamespace is the fixed UUID v5 namespace for category identity.
// Changing it would re-key every default category; never change it.
var categoryNamespace = uuid.MustParse("7d5aa7f2-3bc4-4e59-9f7a-1c2b4a6d8e0f")

// DefaultCategory is one entry of the fixed set of starter categories.
type DefaultCategory struct {
	Name      string
	Color     string
	Symbol    string
	SortIndex int
}

// DefaultCategories is the canonical list of built-in categories every
// install begins with. Order defines the default display ordering.
var DefaultCategories = []DefaultCategory{
	{Name: "Daily", Color: "yellow", Symbol: "sun", SortIndex: 0},
	{Name: "Book", Color: "green", Symbol: "book", SortIndex: 1},
	{Name: "Movie", Color: "purple", Symbol: "film", SortIndex: 2},
	{Name: "Travel", Color: "blue", Symbol: "airplane", SortIndex: 3},
	{Name: "Idea", Color: "orange", Symbol: "lightbulb", SortIndex: 4},
	{Name: "Music", Color: "pink", Symbol: "music", SortIndex: 5},
}

// canonicalCategoryKey normalizes a triple to the canonical string that
// feeds the hash: lowercase, '|'-joined. The delimiter is part of the
// identity scheme and must never change.
func canonicalCategoryKey(name, color, symbol string) string {
	return strings.ToLower(name) + "|" + strings.ToLower(color) + "|" + strings.ToLower(symbol)
}

// DeterministicCategoryID derives the stable identifier for a category
// triple. Pure function: the same triple always produces the same UUID on
// every device, which is the whole reconciliation mechanism.
func DeterministicCategoryID(name, color, symbol string) string {
	key := canonicalCategoryKey(name, color, symbol)
	return uuid.NewSHA1(categoryNamespace, []byte(key)).String()
}

// IsDefaultCategoryID reports whether id equals the deterministic
// identifier of some entry in DefaultCategories. Used to tell reconcilable
// built-ins apart from user-created categories, and to block destructive
// edits on built-ins.
func IsDefaultCategoryID(id string) bool {
	if id == "" {
		return false
	}
	for _, dc := range DefaultCategories {
		if DeterministicCategoryID(dc.Name, dc.Color, dc.Symbol) == id {
			return true
		}
	}
	return false
}

// MatchDefaultCategory returns the canonical default entry whose triple
// matches (case-insensitively), or nil if the triple is not default-shaped.
func MatchDefaultCategory(name, color, symbol string) *DefaultCategory {
	key := canonicalCategoryKey(name, color, symbol)
	for i := range DefaultCategories {
		dc := &DefaultCategories[i]
		if canonicalCategoryKey(dc.Name, dc.Color, dc.Symbol) == key {
			return dc
		}
	}
	return nil
}

// NewCategoryID generates a random identifier for a user-created category.
func NewCategoryID() string {
	return uuid.New().String()
}

// NewNoteID generates the identifier assigned to a note on first save.
// Immutable afterward; it is the join key against the remote mirror.
func NewNoteID() string {
	return uuid.New().String()
}
