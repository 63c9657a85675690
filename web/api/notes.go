package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
	"github.com/rohanthewiz/serr"
)

const publishTimeout = 30 * time.Second

// PublishNote handles POST /api/v1/notes/:guid/publish
// Pushes the note's current local state to the public feed. Re-publishing
// an already-published note overwrites the remote copy.
func (h *Handlers) PublishNote(ctx rweb.Context) error {
	userID := GetCurrentUserID(ctx)
	if userID == "" {
		return writeError(ctx, http.StatusUnauthorized, "authentication required")
	}

	guid := ctx.Request().Param("guid")
	if guid == "" {
		return writeError(ctx, http.StatusBadRequest, "note guid is required")
	}

	note, err := h.store.GetNoteByGUID(guid)
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to load note for publish"), "database error")
		return writeError(ctx, http.StatusInternalServerError, "database error")
	}
	if note == nil {
		return writeError(ctx, http.StatusNotFound, "note not found")
	}

	note.Images, err = h.store.GetNoteImages(guid)
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to load note images"), "database error")
		return writeError(ctx, http.StatusInternalServerError, "database error")
	}

	c, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := h.repo.UpsertPublic(c, note, userID); err != nil {
		logger.LogErr(serr.Wrap(err, "publish failed"), "note", guid)
		return writeRemoteError(ctx, err, "failed to publish note")
	}

	// Flag-only write: bumping updated_at here would make the record look
	// newer than the mirror row just written and force a re-upload on the
	// next pass.
	if err := h.store.SetNotePublic(guid, true); err != nil {
		logger.LogErr(serr.Wrap(err, "failed to mark note public"), "note", guid)
		return writeError(ctx, http.StatusInternalServerError, "database error")
	}

	logger.Info("Note published", "guid", guid)
	return writeSuccess(ctx, http.StatusOK, map[string]string{"guid": guid})
}

// UnpublishNote handles POST /api/v1/notes/:guid/unpublish
// Removes the note from the public feed. Unpublishing a note that was
// never published succeeds without effect.
func (h *Handlers) UnpublishNote(ctx rweb.Context) error {
	userID := GetCurrentUserID(ctx)
	if userID == "" {
		return writeError(ctx, http.StatusUnauthorized, "authentication required")
	}

	guid := ctx.Request().Param("guid")
	if guid == "" {
		return writeError(ctx, http.StatusBadRequest, "note guid is required")
	}

	c, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := h.repo.DeletePublic(c, guid); err != nil {
		logger.LogErr(serr.Wrap(err, "unpublish failed"), "note", guid)
		return writeRemoteError(ctx, err, "failed to unpublish note")
	}

	// The note may only exist remotely; a missing local row is fine.
	note, err := h.store.GetNoteByGUID(guid)
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to load note for unpublish"), "database error")
		return writeError(ctx, http.StatusInternalServerError, "database error")
	}
	if note != nil && note.IsPublic {
		if err := h.store.SetNotePublic(guid, false); err != nil {
			logger.LogErr(serr.Wrap(err, "failed to mark note private"), "note", guid)
			return writeError(ctx, http.StatusInternalServerError, "database error")
		}
	}

	logger.Info("Note unpublished", "guid", guid)
	return writeSuccess(ctx, http.StatusOK, map[string]string{"guid": guid})
}
