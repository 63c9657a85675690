package web

import (
	"net/http"
	"strings"

	"github.com/rohanthewiz/rweb"

	"notesync/remote"
)

// CorsMiddleware handles CORS headers for cross-origin requests.
func CorsMiddleware(c rweb.Context) error {
	c.Response().SetHeader("Access-Control-Allow-Origin", "*")
	c.Response().SetHeader("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	c.Response().SetHeader("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

	if c.Request().Method() == "OPTIONS" {
		c.SetStatus(http.StatusOK)
		return nil
	}

	return c.Next()
}

// AuthMiddleware extracts the caller identity from the Authorization
// bearer token, scoped to this request only. The shared session changes
// exclusively through the auth endpoints — an ordinary request must not
// flip the sync layer's auth state or swap the identity it runs as.
// Requests without a valid token continue unauthenticated; individual
// handlers decide whether to block.
func AuthMiddleware(c rweb.Context) error {
	authHeader := c.Request().Header("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		c.Set("user_id", "")
		c.Set("authenticated", false)
		return c.Next()
	}

	token := strings.TrimPrefix(authHeader, "Bearer ")
	userID, err := remote.UserIDFromToken(token)
	if err != nil {
		c.Set("user_id", "")
		c.Set("authenticated", false)
		return c.Next()
	}

	c.Set("user_id", userID)
	c.Set("authenticated", true)
	return c.Next()
}
