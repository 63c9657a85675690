package sync

import (
	"context"
	"fmt"
	"sort"
	gosync "sync"
	"sync/atomic"
	"time"

	"notesync/models"
	"notesync/remote"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// ============================================================================
// Sync Manager
//
// Whole-collection reconciliation. Two concerns:
//
//   1. Category reconciliation (local-only): collapse default categories
//      that were independently created with equivalent semantic identity
//      onto their deterministic identifier, repointing note references
//      before deleting duplicates, and repair rows missing an identifier.
//      Deterministic and idempotent — running it twice is a no-op.
//
//   2. Full bidirectional note sync (requires a session): set difference
//      by identifier classifies each note as upload-only, download-only,
//      or present-in-both; present-in-both resolves by last-writer-wins on
//      the whole record. No field-level merge of concurrent edits — a
//      deliberate simplification, not an oversight.
//
// Trigger points: once on process start (after the local store loads and
// auth state is known), and again whenever auth transitions from
// signed-out to signed-in. Without a session the note sync is skipped
// entirely, never partially attempted, and a sign-out aborts whatever
// pass is in flight so records fetched under the old session are never
// applied.
//
// The pass is not one atomic transaction: it is abortable between
// per-record steps (context cancellation) and partially-completed
// reconciliation is valid intermediate state, repaired by the next run.
// ============================================================================

// ErrSyncInProgress is returned by SyncNow when a pass is already running.
var ErrSyncInProgress = serr.New("sync already in progress")

// Manager orchestrates collection-level reconciliation.
type Manager struct {
	store   LocalStore
	repo    *NoteRepository
	session remote.SessionProvider

	syncMu     gosync.Mutex // prevents concurrent reconciliation passes
	inProgress atomic.Bool

	passMu     gosync.Mutex
	passCancel context.CancelFunc // cancels the in-flight pass, nil when idle

	statusMu  gosync.Mutex
	lastSync  time.Time
	lastError error
}

// Status exposes manager state to callers without leaking internals.
type Status struct {
	InProgress bool       `json:"in_progress"`
	LastSync   *time.Time `json:"last_sync"` // nil if never synced
	LastError  string     `json:"last_error,omitempty"`
	SignedIn   bool       `json:"signed_in"`
}

// NewManager wires a sync manager. All collaborators are passed in
// explicitly; the manager holds no global state.
func NewManager(store LocalStore, repo *NoteRepository, session remote.SessionProvider) *Manager {
	return &Manager{store: store, repo: repo, session: session}
}

// Start runs the startup reconciliation pass in the background. Call once,
// after the local store has loaded and the initial auth state is known.
// Failures here are background failures: logged, never surfaced.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		if err := m.runPass(ctx); err != nil {
			logger.LogErr(err, "startup reconciliation failed")
		}
	}()
}

// HandleAuthChange is the auth-transition trigger point. Wire it to the
// session's auth-change notification at startup. A sign-in runs a pass in
// the background; a sign-out cancels any in-flight pass so records fetched
// under the old session are discarded, never applied.
func (m *Manager) HandleAuthChange(ctx context.Context) func(signedIn bool) {
	return func(signedIn bool) {
		if !signedIn {
			m.cancelPass()
			return
		}
		go func() {
			if err := m.runPass(ctx); err != nil {
				logger.LogErr(err, "post-sign-in reconciliation failed")
			}
		}()
	}
}

// SyncNow runs a full reconciliation pass synchronously for an explicit
// user action. Unlike the background triggers, failures are surfaced so
// the UI can report the taxonomy class (sign-in prompt vs "try again").
// Returns an error immediately if a pass is already running.
func (m *Manager) SyncNow(ctx context.Context) error {
	if m.inProgress.Load() {
		return ErrSyncInProgress
	}
	return m.runPass(ctx)
}

// Status returns a snapshot of the manager's state.
func (m *Manager) Status() Status {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()

	_, signedIn := m.session.CurrentUserID()
	st := Status{
		InProgress: m.inProgress.Load(),
		SignedIn:   signedIn,
	}
	if !m.lastSync.IsZero() {
		t := m.lastSync
		st.LastSync = &t
	}
	if m.lastError != nil {
		st.LastError = m.lastError.Error()
	}
	return st
}

// cancelPass aborts the in-flight pass, if any. The pass stops at its next
// cancellation check; whatever it fetched but had not yet applied is
// dropped.
func (m *Manager) cancelPass() {
	m.passMu.Lock()
	cancel := m.passCancel
	m.passMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// runPass executes one full reconciliation: categories first (local-only,
// always), then the bidirectional note sync (only with a session). The
// pass runs under its own cancelable context so a sign-out can abort it.
func (m *Manager) runPass(ctx context.Context) error {
	if !m.syncMu.TryLock() {
		return nil // another pass is running; it will do the same work
	}
	defer m.syncMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.passMu.Lock()
	m.passCancel = cancel
	m.passMu.Unlock()
	defer func() {
		m.passMu.Lock()
		m.passCancel = nil
		m.passMu.Unlock()
	}()

	m.inProgress.Store(true)
	defer m.inProgress.Store(false)

	err := m.reconcile(ctx)

	m.statusMu.Lock()
	m.lastError = err
	if err == nil {
		m.lastSync = time.Now()
	}
	m.statusMu.Unlock()

	return err
}

func (m *Manager) reconcile(ctx context.Context) error {
	if err := m.ReconcileCategories(ctx); err != nil {
		return serr.Wrap(err, "category reconciliation failed")
	}

	ownerID, ok := m.session.CurrentUserID()
	if !ok {
		// No session: skip the note sync entirely, never partially
		logger.Debug("Skipping note sync, not signed in")
		return nil
	}

	if err := m.syncNotes(ctx, ownerID); err != nil {
		return serr.Wrap(err, "note sync failed")
	}

	logger.Info("Reconciliation pass completed", "owner_id", ownerID)
	return nil
}

// ReconcileCategories deduplicates default-shaped categories onto their
// deterministic identifiers and repairs rows missing one. Local-only; no
// network or session needed. Safe to cancel between steps and safe to run
// repeatedly — the second run in a row is a no-op.
func (m *Manager) ReconcileCategories(ctx context.Context) error {
	categories, err := m.store.ListCategories()
	if err != nil {
		return err
	}

	// Partition into default-shaped groups keyed by canonical identifier.
	// Matching is by triple, not by stored identifier: duplicates created
	// before this mechanism existed carry random identifiers or none.
	groups := make(map[string][]models.Category)
	for _, c := range categories {
		if dc := models.MatchDefaultCategory(c.Name, c.Color, c.Symbol); dc != nil {
			id := models.DeterministicCategoryID(dc.Name, dc.Color, dc.Symbol)
			groups[id] = append(groups[id], c)
		}
	}

	for canonicalID, group := range groups {
		if err := ctx.Err(); err != nil {
			return serr.Wrap(err, "category reconciliation canceled")
		}

		// Earliest-created survives, preserving existing note references.
		// created_at ties break on local insertion order (id) so the
		// outcome is deterministic even with equal timestamps.
		sort.Slice(group, func(i, j int) bool {
			if !group[i].CreatedAt.Equal(group[j].CreatedAt) {
				return group[i].CreatedAt.Before(group[j].CreatedAt)
			}
			return group[i].ID < group[j].ID
		})

		keep := group[0]

		for _, dup := range group[1:] {
			if err := ctx.Err(); err != nil {
				return serr.Wrap(err, "category reconciliation canceled")
			}

			if dup.GUID != "" {
				moved, err := m.store.ReassignNotes(dup.GUID, canonicalID)
				if err != nil {
					return err
				}
				if moved > 0 {
					logger.Info("Repointed notes from duplicate category",
						"from", dup.GUID, "to", canonicalID, "count", moved)
				}
			}
			if err := m.store.DeleteCategoryRowByID(dup.ID); err != nil {
				return err
			}
			logger.Info("Removed duplicate default category",
				"name", dup.Name, "guid", dup.GUID, "canonical", canonicalID)
		}

		// Repair the survivor: assign the computed identifier in place if
		// it is missing or was randomly assigned, repointing any notes
		// that reference the old value first.
		if keep.GUID != canonicalID {
			if keep.GUID != "" {
				if _, err := m.store.ReassignNotes(keep.GUID, canonicalID); err != nil {
					return err
				}
			}
			if err := m.store.SetCategoryGUID(keep.ID, canonicalID); err != nil {
				return err
			}
			logger.Info("Assigned deterministic identifier to default category",
				"name", keep.Name, "guid", canonicalID)
		}
	}

	return nil
}

// syncNotes is the bidirectional pass over the caller's public notes.
// Per-record failures are logged and counted, not fatal — the pass is
// resumable and the next run repairs whatever this one missed.
func (m *Manager) syncNotes(ctx context.Context, ownerID string) error {
	local, err := m.store.ListNotes(models.NoteFilter{OnlyPublic: true})
	if err != nil {
		return err
	}

	rows, err := m.repo.FetchAll(ctx, ownerID)
	if err != nil {
		return err
	}

	localByID := make(map[string]models.Note, len(local))
	for _, n := range local {
		localByID[n.GUID] = n
	}
	remoteByID := make(map[string]NoteRow, len(rows))
	for _, r := range rows {
		remoteByID[r.ID] = r
	}

	var failures int

	// Upload-only and present-in-both
	for _, n := range local {
		if err := ctx.Err(); err != nil {
			return serr.Wrap(err, "note sync canceled")
		}

		row, present := remoteByID[n.GUID]
		if !present {
			if err := m.repo.UpsertPublic(ctx, &n, ownerID); err != nil {
				logger.LogErr(err, "failed to upload note", "note_id", n.GUID)
				failures++
			}
			continue
		}

		// Last-writer-wins on the whole record, newer side wins.
		// Equal timestamps mean the records already agree; do nothing.
		switch {
		case n.UpdatedAt.After(row.UpdatedAt):
			if err := m.repo.UpsertPublic(ctx, &n, ownerID); err != nil {
				logger.LogErr(err, "failed to upload newer note", "note_id", n.GUID)
				failures++
			}
		case row.UpdatedAt.After(n.UpdatedAt):
			if err := m.applyRemoteRow(row, &n); err != nil {
				logger.LogErr(err, "failed to apply newer remote note", "note_id", n.GUID)
				failures++
			}
		}
	}

	// Download-only
	for id, row := range remoteByID {
		if err := ctx.Err(); err != nil {
			return serr.Wrap(err, "note sync canceled")
		}
		if _, present := localByID[id]; present {
			continue
		}
		if err := m.applyRemoteRow(row, nil); err != nil {
			logger.LogErr(err, "failed to download note", "note_id", id)
			failures++
		}
	}

	if failures > 0 {
		return serr.New(fmt.Sprintf("note sync completed with %d failed records", failures))
	}
	return nil
}

// applyRemoteRow overwrites (or creates) the local record from a remote
// row. prior is the existing local note when this is a last-writer-wins
// overwrite; its category reference is preserved since the row only
// carries copied display tokens.
func (m *Manager) applyRemoteRow(row NoteRow, prior *models.Note) error {
	n, err := noteFromRow(row)
	if err != nil {
		return err
	}
	if prior != nil {
		n.CategoryGUID = prior.CategoryGUID

		// Trace what the overwrite replaced; invaluable when a user asks
		// where an edit went.
		before := prior.Document().PlainText()
		after := row.Content
		if before != after {
			dmp := diffmatchpatch.New()
			diffs := dmp.DiffMain(before, after, false)
			logger.Debug("Remote record won last-writer-wins",
				"note_id", row.ID, "diff", dmp.DiffPrettyText(diffs))
		}
	}
	return m.store.ApplySyncedNote(n)
}
