package api

import (
	"encoding/json"
	"net/http"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
)

// SignIn handles POST /api/v1/auth/session
// Installs the access token handed over by the surrounding app's sign-in
// flow. This is the only request that changes the shared session; the
// session's auth-change notification is what triggers the post-sign-in
// sync pass.
func (h *Handlers) SignIn(ctx rweb.Context) error {
	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(ctx.Request().Body(), &body); err != nil || body.Token == "" {
		return writeError(ctx, http.StatusBadRequest, "token is required")
	}

	if err := h.session.SetToken(body.Token); err != nil {
		logger.LogErr(err, "sign-in rejected")
		return writeError(ctx, http.StatusBadRequest, "invalid token")
	}

	userID, _ := h.session.CurrentUserID()
	logger.Info("Session established", "user_id", userID)
	return writeSuccess(ctx, http.StatusOK, map[string]interface{}{
		"user_id":   userID,
		"signed_in": userID != "",
	})
}

// SignOut handles DELETE /api/v1/auth/session
// Clears the shared session, canceling any in-flight sync pass through the
// auth-change notification. Signing out an already signed-out session
// succeeds without effect.
func (h *Handlers) SignOut(ctx rweb.Context) error {
	h.session.Clear()
	return writeSuccess(ctx, http.StatusOK, map[string]bool{"signed_in": false})
}
