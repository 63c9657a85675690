package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
	"github.com/rohanthewiz/serr"
)

const socialTimeout = 15 * time.Second

// ============================================================================
// Social API Handlers
//
// Likes and comments live only on the remote store — there is no local
// cache of social state. Reads are public; every mutation requires a
// session, and comment edits/deletes go through remote procedures that
// enforce authorship server-side.
// ============================================================================

// GetLikes handles GET /api/v1/notes/:guid/likes
// Returns the like count and, when a session is present, whether the
// current user has liked the note.
func (h *Handlers) GetLikes(ctx rweb.Context) error {
	guid := ctx.Request().Param("guid")
	if guid == "" {
		return writeError(ctx, http.StatusBadRequest, "note guid is required")
	}

	c, cancel := context.WithTimeout(context.Background(), socialTimeout)
	defer cancel()

	count, err := h.social.LikeCount(c, guid)
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to fetch like count"), "note", guid)
		return writeRemoteError(ctx, err, "failed to fetch likes")
	}

	result := map[string]interface{}{"count": count}
	if userID := GetCurrentUserID(ctx); userID != "" {
		result["liked"] = h.social.HasLiked(c, guid, userID)
	}

	return writeSuccess(ctx, http.StatusOK, result)
}

// ToggleLike handles POST /api/v1/notes/:guid/like
// Likes the note if not yet liked, unlikes it otherwise. Returns the
// resulting state.
func (h *Handlers) ToggleLike(ctx rweb.Context) error {
	if !IsAuthenticated(ctx) {
		return writeError(ctx, http.StatusUnauthorized, "authentication required")
	}

	guid := ctx.Request().Param("guid")
	if guid == "" {
		return writeError(ctx, http.StatusBadRequest, "note guid is required")
	}

	c, cancel := context.WithTimeout(context.Background(), socialTimeout)
	defer cancel()

	liked, err := h.social.ToggleLike(c, guid)
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to toggle like"), "note", guid)
		return writeRemoteError(ctx, err, "failed to toggle like")
	}

	return writeSuccess(ctx, http.StatusOK, map[string]bool{"liked": liked})
}

// ListComments handles GET /api/v1/notes/:guid/comments
// Returns the note's comments oldest-first.
func (h *Handlers) ListComments(ctx rweb.Context) error {
	guid := ctx.Request().Param("guid")
	if guid == "" {
		return writeError(ctx, http.StatusBadRequest, "note guid is required")
	}

	c, cancel := context.WithTimeout(context.Background(), socialTimeout)
	defer cancel()

	comments, err := h.social.FetchComments(c, guid)
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to fetch comments"), "note", guid)
		return writeRemoteError(ctx, err, "failed to fetch comments")
	}

	return writeSuccess(ctx, http.StatusOK, comments)
}

// commentBody is the request shape for comment create and update.
type commentBody struct {
	Body string `json:"body"`
}

// AddComment handles POST /api/v1/notes/:guid/comments
func (h *Handlers) AddComment(ctx rweb.Context) error {
	if !IsAuthenticated(ctx) {
		return writeError(ctx, http.StatusUnauthorized, "authentication required")
	}

	guid := ctx.Request().Param("guid")
	if guid == "" {
		return writeError(ctx, http.StatusBadRequest, "note guid is required")
	}

	var req commentBody
	if err := json.Unmarshal(ctx.Request().Body(), &req); err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Body) == "" {
		return writeError(ctx, http.StatusBadRequest, "comment body is required")
	}

	c, cancel := context.WithTimeout(context.Background(), socialTimeout)
	defer cancel()

	if err := h.social.AddComment(c, guid, req.Body); err != nil {
		logger.LogErr(serr.Wrap(err, "failed to add comment"), "note", guid)
		return writeRemoteError(ctx, err, "failed to add comment")
	}

	return writeSuccess(ctx, http.StatusCreated, nil)
}

// UpdateComment handles PUT /api/v1/notes/:guid/comments/:id
// Only the comment's author may edit it; the remote procedure enforces
// authorship and we surface its refusal as 403.
func (h *Handlers) UpdateComment(ctx rweb.Context) error {
	if !IsAuthenticated(ctx) {
		return writeError(ctx, http.StatusUnauthorized, "authentication required")
	}

	id := ctx.Request().Param("id")
	if id == "" {
		return writeError(ctx, http.StatusBadRequest, "comment id is required")
	}

	var req commentBody
	if err := json.Unmarshal(ctx.Request().Body(), &req); err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Body) == "" {
		return writeError(ctx, http.StatusBadRequest, "comment body is required")
	}

	c, cancel := context.WithTimeout(context.Background(), socialTimeout)
	defer cancel()

	if err := h.social.UpdateComment(c, id, req.Body); err != nil {
		logger.LogErr(serr.Wrap(err, "failed to update comment"), "comment", id)
		return writeRemoteError(ctx, err, "failed to update comment")
	}

	return writeSuccess(ctx, http.StatusOK, nil)
}

// DeleteComment handles DELETE /api/v1/notes/:guid/comments/:id
func (h *Handlers) DeleteComment(ctx rweb.Context) error {
	if !IsAuthenticated(ctx) {
		return writeError(ctx, http.StatusUnauthorized, "authentication required")
	}

	id := ctx.Request().Param("id")
	if id == "" {
		return writeError(ctx, http.StatusBadRequest, "comment id is required")
	}

	c, cancel := context.WithTimeout(context.Background(), socialTimeout)
	defer cancel()

	if err := h.social.DeleteComment(c, id); err != nil {
		logger.LogErr(serr.Wrap(err, "failed to delete comment"), "comment", id)
		return writeRemoteError(ctx, err, "failed to delete comment")
	}

	return writeSuccess(ctx, http.StatusOK, nil)
}
