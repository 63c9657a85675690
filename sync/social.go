package sync

import (
	"context"
	"time"

	"notesync/remote"

	"github.com/rohanthewiz/logger"
)

// Remote tables and procedures backing the social aggregates.
const (
	likesTable    = "likes"
	commentsTable = "comments"

	rpcUpdateComment = "update_comment"
	rpcDeleteComment = "delete_comment"
)

// Like is a (note, user) pair; the row's existence is the "liked"
// predicate. The remote store enforces at most one row per pair — that
// unique constraint, not the client, is the correctness guarantee.
type Like struct {
	NoteID    string    `json:"note_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment belongs to its author for mutation purposes and is visible to
// every reader of the parent note. Username is a joined author profile
// projection attached by the backend on reads.
type Comment struct {
	ID        string    `json:"id"`
	NoteID    string    `json:"note_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Username  string    `json:"username,omitempty"`
}

// Social layers like-count and comment-thread operations on the remote
// store, keyed by note identity. No caching anywhere: counts and threads
// always reflect remote state at call time.
type Social struct {
	client  *remote.Client
	session remote.SessionProvider
}

// NewSocial wires the social aggregates over the remote client.
func NewSocial(client *remote.Client, session remote.SessionProvider) *Social {
	return &Social{client: client, session: session}
}

// LikeCount returns the current number of likes for a note.
func (s *Social) LikeCount(ctx context.Context, noteID string) (int, error) {
	return s.client.Count(ctx, likesTable, []remote.Filter{remote.Eq("note_id", noteID)})
}

// HasLiked reports whether userID has liked the note. Errors report false
// rather than propagating — like rendering must never block on a lookup.
func (s *Social) HasLiked(ctx context.Context, noteID, userID string) bool {
	if userID == "" {
		return false
	}
	err := s.client.SelectOne(ctx, likesTable, []remote.Filter{
		remote.Eq("note_id", noteID),
		remote.Eq("user_id", userID),
	}, nil)
	if err != nil {
		if !remote.IsNotFound(err) {
			logger.Debug("Treating like lookup failure as not-liked",
				"note_id", noteID, "kind", remote.KindOf(err).String())
		}
		return false
	}
	return true
}

// ToggleLike flips the caller's like on a note: read current state, then
// insert or delete. Concurrent toggles from the same user on two devices
// can race in the read-then-write window; the unique (note, user)
// constraint at the remote store makes a lost race a harmless no-op or a
// double-toggle the user can simply repeat.
//
// Returns the resulting liked state.
func (s *Social) ToggleLike(ctx context.Context, noteID string) (bool, error) {
	userID, ok := s.session.CurrentUserID()
	if !ok {
		return false, &remote.Error{Kind: remote.KindNotAuthenticated, Op: "toggle like"}
	}

	pairFilter := []remote.Filter{
		remote.Eq("note_id", noteID),
		remote.Eq("user_id", userID),
	}

	if s.HasLiked(ctx, noteID, userID) {
		if err := s.client.Delete(ctx, likesTable, pairFilter); err != nil {
			return true, err
		}
		return false, nil
	}

	like := Like{NoteID: noteID, UserID: userID, CreatedAt: time.Now()}
	if err := s.client.Insert(ctx, likesTable, like); err != nil {
		if remote.IsConflict(err) {
			// Another device inserted first; the pair is liked either way
			return true, nil
		}
		return false, err
	}
	return true, nil
}

// FetchComments returns a note's comment thread, oldest first.
func (s *Social) FetchComments(ctx context.Context, noteID string) ([]Comment, error) {
	var comments []Comment
	order := &remote.Order{Column: "created_at"}
	err := s.client.Select(ctx, commentsTable,
		[]remote.Filter{remote.Eq("note_id", noteID)}, order, 0, &comments)
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// AddComment posts a comment on a note as the authenticated caller.
func (s *Social) AddComment(ctx context.Context, noteID, body string) error {
	authorID, ok := s.session.CurrentUserID()
	if !ok {
		return &remote.Error{Kind: remote.KindNotAuthenticated, Op: "add comment"}
	}

	now := time.Now()
	comment := Comment{
		NoteID:    noteID,
		AuthorID:  authorID,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.client.Insert(ctx, commentsTable, comment)
}

// commentMutation is the parameter shape for the comment RPCs. The caller
// identity travels explicitly; the backend enforces that only the author
// may mutate, and rejections surface as authorization failures, distinct
// from network failures.
type commentMutation struct {
	CommentID string `json:"comment_id"`
	AuthorID  string `json:"author_id"`
	Body      string `json:"body,omitempty"`
}

// UpdateComment edits the body of the caller's own comment via the
// privilege-checked procedure.
func (s *Social) UpdateComment(ctx context.Context, commentID, body string) error {
	authorID, ok := s.session.CurrentUserID()
	if !ok {
		return &remote.Error{Kind: remote.KindNotAuthenticated, Op: "update comment"}
	}
	params := commentMutation{CommentID: commentID, AuthorID: authorID, Body: body}
	return s.client.RPC(ctx, rpcUpdateComment, params, nil)
}

// DeleteComment removes the caller's own comment via the privilege-checked
// procedure.
func (s *Social) DeleteComment(ctx context.Context, commentID string) error {
	authorID, ok := s.session.CurrentUserID()
	if !ok {
		return &remote.Error{Kind: remote.KindNotAuthenticated, Op: "delete comment"}
	}
	params := commentMutation{CommentID: commentID, AuthorID: authorID}
	return s.client.RPC(ctx, rpcDeleteComment, params, nil)
}
