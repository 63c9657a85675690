package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"

	"notesync/sync"
)

// syncNowTimeout bounds a manually triggered pass so a hung remote
// cannot pin the request forever.
const syncNowTimeout = 2 * time.Minute

// SyncStatus handles GET /api/v1/sync/status
// Returns the current state of the sync manager for status indicators.
func (h *Handlers) SyncStatus(ctx rweb.Context) error {
	return writeSuccess(ctx, http.StatusOK, h.manager.Status())
}

// SyncNow handles POST /api/v1/sync/now
// Triggers an immediate sync pass. Returns 409 Conflict if a pass is
// already in progress to avoid queueing multiple cycles.
func (h *Handlers) SyncNow(ctx rweb.Context) error {
	if !IsAuthenticated(ctx) {
		return writeError(ctx, http.StatusUnauthorized, "authentication required")
	}

	c, cancel := context.WithTimeout(context.Background(), syncNowTimeout)
	defer cancel()

	if err := h.manager.SyncNow(c); err != nil {
		if errors.Is(err, sync.ErrSyncInProgress) {
			return writeError(ctx, http.StatusConflict, "sync already in progress")
		}
		logger.LogErr(err, "manual sync failed")
		return writeError(ctx, http.StatusBadGateway, "sync failed: "+err.Error())
	}

	return writeSuccess(ctx, http.StatusOK, h.manager.Status())
}
