package api

import (
	"net/http"

	"github.com/rohanthewiz/rweb"

	"notesync/models"
	"notesync/remote"
	"notesync/sync"
)

// APIResponse provides a consistent JSON response structure for all API endpoints.
// Success responses include data, error responses include an error message.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Handlers carries the components the control API operates on. Everything
// is injected at construction so handlers never reach for globals.
type Handlers struct {
	store   *models.Store
	manager *sync.Manager
	repo    *sync.NoteRepository
	social  *sync.Social
	session *remote.TokenSession
}

func NewHandlers(store *models.Store, manager *sync.Manager, repo *sync.NoteRepository, social *sync.Social, session *remote.TokenSession) *Handlers {
	return &Handlers{store: store, manager: manager, repo: repo, social: social, session: session}
}

// writeSuccess sends a successful JSON response with data.
// Uses rweb's built-in WriteJSON which sets content-type automatically.
func writeSuccess(ctx rweb.Context, status int, data interface{}) error {
	ctx.SetStatus(status)
	return ctx.WriteJSON(APIResponse{Success: true, Data: data})
}

// writeError sends an error JSON response.
func writeError(ctx rweb.Context, status int, message string) error {
	ctx.SetStatus(status)
	return ctx.WriteJSON(APIResponse{Success: false, Error: message})
}

// writeRemoteError maps a remote error to a suitable HTTP status.
func writeRemoteError(ctx rweb.Context, err error, message string) error {
	status := http.StatusBadGateway
	switch remote.KindOf(err) {
	case remote.KindNotAuthenticated:
		status = http.StatusUnauthorized
	case remote.KindAuthorization:
		status = http.StatusForbidden
	case remote.KindNotFound:
		status = http.StatusNotFound
	case remote.KindConflict:
		status = http.StatusConflict
	}
	return writeError(ctx, status, message)
}

// GetCurrentUserID extracts the user ID from the request context.
// Returns empty string if not authenticated.
func GetCurrentUserID(ctx rweb.Context) string {
	id, _ := ctx.Get("user_id").(string)
	return id
}

// IsAuthenticated reports whether the current request carries a valid token.
func IsAuthenticated(ctx rweb.Context) bool {
	auth, _ := ctx.Get("authenticated").(bool)
	return auth
}
