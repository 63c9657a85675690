package sync

import (
	"context"
	"fmt"

	"notesync/models"
	"notesync/remote"

	"github.com/rohanthewiz/logger"
)

// notesTable is the remote table mirroring public notes.
const notesTable = "notes"

// imagesBucket is the storage bucket for note image attachments.
const imagesBucket = "note-images"

// NoteRepository maps a single local note onto its remote mirror row and
// performs existence checks, upserts, and deletes on its behalf.
//
// It never retries internally — retry and backoff are caller concerns —
// but it classifies every failure (see remote.KindOf) so callers can
// choose between a sign-in prompt, a retry offer, or treating the failure
// as success-equivalent.
//
// Callers must not overlap two upsert calls for the same note identifier;
// the repository provides no per-identifier mutual exclusion.
type NoteRepository struct {
	client *remote.Client
	store  LocalStore

	// LegacyProbe switches UpsertPublic to the older exists-then-act
	// sequence kept for backends without a true upsert primitive. The
	// probe is a known check-then-act race; the remote primary key is the
	// actual safety net either way.
	LegacyProbe bool
}

// NewNoteRepository wires a repository over the remote client and local store.
func NewNoteRepository(client *remote.Client, store LocalStore) *NoteRepository {
	return &NoteRepository{client: client, store: store}
}

// Exists reports whether a mirror row with the given identifier is
// present remotely. Network and auth failures report "not found": the
// conservative default favors insert-then-detect-conflict over a silent
// skip, and the remote upsert semantics absorb the resulting duplicate
// insert attempt idempotently.
func (r *NoteRepository) Exists(ctx context.Context, remoteID string) bool {
	err := r.client.SelectOne(ctx, notesTable, []remote.Filter{remote.Eq("id", remoteID)}, nil)
	if err != nil {
		if !remote.IsNotFound(err) {
			logger.Debug("Treating remote existence probe failure as not-found",
				"note_id", remoteID, "kind", remote.KindOf(err).String())
		}
		return false
	}
	return true
}

// UpsertPublic mirrors a local note to the remote store under ownerID.
// Category tokens are copied by value so the row survives local category
// deletion; image blobs are uploaded first and their public URLs
// denormalized onto the row. Safe to retry: the write path is the remote
// upsert primitive (or the legacy probe whose races the primary key
// absorbs), and image uploads are keyed by note and position.
func (r *NoteRepository) UpsertPublic(ctx context.Context, n *models.Note, ownerID string) error {
	if ownerID == "" {
		return &remote.Error{Kind: remote.KindNotAuthenticated, Op: "upsert " + notesTable}
	}

	category, err := r.store.CategoryForNote(n)
	if err != nil {
		return err
	}

	imageURLs, err := r.uploadImages(ctx, n)
	if err != nil {
		return err
	}

	row, err := buildNoteRow(n, ownerID, category, imageURLs)
	if err != nil {
		return err
	}

	if r.LegacyProbe {
		return r.upsertViaProbe(ctx, row)
	}
	return r.client.Upsert(ctx, notesTable, row)
}

// upsertViaProbe is the legacy compatibility path: probe existence, then
// update or insert, falling back to the complementary operation when the
// probe raced another writer.
func (r *NoteRepository) upsertViaProbe(ctx context.Context, row NoteRow) error {
	idFilter := []remote.Filter{remote.Eq("id", row.ID)}

	if r.Exists(ctx, row.ID) {
		err := r.client.Update(ctx, notesTable, idFilter, row)
		if remote.IsNotFound(err) {
			// Row vanished between probe and update
			return r.client.Insert(ctx, notesTable, row)
		}
		return err
	}

	err := r.client.Insert(ctx, notesTable, row)
	if remote.IsConflict(err) {
		// Row appeared between probe and insert
		return r.client.Update(ctx, notesTable, idFilter, row)
	}
	return err
}

// uploadImages pushes the note's image blobs to object storage and returns
// their public URLs in order. Paths are derived from the note identifier
// and position, so re-publishing overwrites rather than accumulates.
func (r *NoteRepository) uploadImages(ctx context.Context, n *models.Note) ([]string, error) {
	images := n.Images
	if images == nil {
		var err error
		images, err = r.store.GetNoteImages(n.GUID)
		if err != nil {
			return nil, err
		}
	}
	if len(images) == 0 {
		return nil, nil
	}

	urls := make([]string, 0, len(images))
	for i, img := range images {
		path := fmt.Sprintf("%s/%d.jpg", n.GUID, i)
		stored, err := r.client.UploadObject(ctx, imagesBucket, path, img, "image/jpeg")
		if err != nil {
			return nil, err
		}
		urls = append(urls, r.client.PublicURL(imagesBucket, stored))
	}
	return urls, nil
}

// DeletePublic removes the mirror row unconditionally. An already-absent
// row is success — delete is idempotent end to end.
func (r *NoteRepository) DeletePublic(ctx context.Context, remoteID string) error {
	return r.client.Delete(ctx, notesTable, []remote.Filter{remote.Eq("id", remoteID)})
}

// FetchAll lists mirror rows, optionally scoped to one owner, most recent
// first.
func (r *NoteRepository) FetchAll(ctx context.Context, ownerID string) ([]NoteRow, error) {
	var filters []remote.Filter
	if ownerID != "" {
		filters = append(filters, remote.Eq("owner_id", ownerID))
	}

	var rows []NoteRow
	order := &remote.Order{Column: "created_at", Descending: true}
	if err := r.client.Select(ctx, notesTable, filters, order, 0, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
