package web

import (
	"net/http"

	"github.com/rohanthewiz/rweb"

	"notesync/web/api"
)

// setupRoutes configures the control API routes.
func setupRoutes(s *rweb.Server, h *api.Handlers) {
	// Health check endpoint
	s.Get("/health", func(ctx rweb.Context) error {
		ctx.SetStatus(http.StatusOK)
		return ctx.WriteJSON(map[string]string{"status": "ok"})
	})

	// Session
	s.Post("/api/v1/auth/session", h.SignIn)    // Install a sign-in token
	s.Delete("/api/v1/auth/session", h.SignOut) // Clear the session

	// Sync control
	s.Get("/api/v1/sync/status", h.SyncStatus) // Manager state snapshot
	s.Post("/api/v1/sync/now", h.SyncNow)      // Explicit full sync pass

	// Publishing
	s.Post("/api/v1/notes/:guid/publish", h.PublishNote)     // Push note to public feed
	s.Post("/api/v1/notes/:guid/unpublish", h.UnpublishNote) // Remove note from public feed

	// Likes
	s.Post("/api/v1/notes/:guid/like", h.ToggleLike) // Like / unlike toggle
	s.Get("/api/v1/notes/:guid/likes", h.GetLikes)   // Count plus caller's state

	// Comments
	s.Get("/api/v1/notes/:guid/comments", h.ListComments)
	s.Post("/api/v1/notes/:guid/comments", h.AddComment)
	s.Put("/api/v1/notes/:guid/comments/:id", h.UpdateComment)
	s.Delete("/api/v1/notes/:guid/comments/:id", h.DeleteComment)
}
