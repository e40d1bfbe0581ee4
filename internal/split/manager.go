package split

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/makansplit/backend/internal/localstore"
	"github.com/makansplit/backend/internal/models"
	"github.com/makansplit/backend/internal/storage"
)

// currentSplitKey is the local-state key holding the active split ID —
// the only piece of session state that must survive a restart.
const currentSplitKey = "current_split_id"

// Manager owns the lifecycle of the current split: creation, restoring it
// after a restart, and teardown. It is the sole writer of the persisted
// current-split ID.
type Manager struct {
	store   storage.Store
	local   *localstore.Store
	session *Session
}

// NewManager creates a manager with an empty session.
func NewManager(store storage.Store, local *localstore.Store) *Manager {
	return &Manager{
		store:   store,
		local:   local,
		session: NewSession(store),
	}
}

// Session returns the managed session aggregate.
func (m *Manager) Session() *Session {
	return m.session
}

// CurrentSplitID returns the active split's ID, or "" when none is active.
func (m *Manager) CurrentSplitID() string {
	return m.session.SplitID()
}

// CreateSplit creates a new remote split with default tax settings, makes
// it current, and clears the in-memory collections. Unlike item and
// participant writes this one is synchronous: nothing can proceed without
// a confirmed split ID.
func (m *Manager) CreateSplit(ctx context.Context, title string) (string, error) {
	sp := &models.Split{Title: title, Tax: models.DefaultTaxSettings}
	if err := m.store.CreateSplit(ctx, sp); err != nil {
		return "", fmt.Errorf("failed to create split: %w", err)
	}

	if err := m.local.Put(currentSplitKey, sp.ID); err != nil {
		// The split exists remotely; losing the local pointer only costs
		// restart recovery.
		slog.Warn("failed to persist current split id", "split_id", sp.ID, "error", err)
	}

	m.session.start(sp.ID, sp.Tax)
	slog.Info("split created", "split_id", sp.ID, "title", sp.Title)
	return sp.ID, nil
}

// LoadCurrent rebuilds the session from the persisted current-split ID.
// No persisted ID, or an ID the store no longer knows, resets the session
// to empty without error. A remote fetch failure propagates to the caller
// and leaves the session empty rather than partially populated.
func (m *Manager) LoadCurrent(ctx context.Context) error {
	var splitID string
	ok, err := m.local.Get(currentSplitKey, &splitID)
	if err != nil {
		m.session.clear()
		return fmt.Errorf("failed to read current split id: %w", err)
	}
	if !ok || splitID == "" {
		m.session.clear()
		return nil
	}

	sp, err := m.store.GetSplit(ctx, splitID)
	if errors.Is(err, storage.ErrNotFound) {
		slog.Warn("persisted split id is stale, resetting", "split_id", splitID)
		m.session.clear()
		if err := m.local.Delete(currentSplitKey); err != nil {
			slog.Warn("failed to drop stale split id", "error", err)
		}
		return nil
	}
	if err != nil {
		m.session.clear()
		return fmt.Errorf("failed to load split: %w", err)
	}

	members, err := m.store.ListParticipants(ctx, splitID)
	if err != nil {
		m.session.clear()
		return fmt.Errorf("failed to load participants: %w", err)
	}

	items, err := m.store.ListItems(ctx, splitID)
	if err != nil {
		m.session.clear()
		return fmt.Errorf("failed to load items: %w", err)
	}

	m.session.load(sp, members, items)
	slog.Info("split loaded",
		"split_id", splitID,
		"participants", len(members),
		"items", len(items),
	)
	return nil
}

// Reset clears the current-split ID and the in-memory collections.
// Remote data is never deleted.
func (m *Manager) Reset() error {
	m.session.clear()
	if err := m.local.Delete(currentSplitKey); err != nil {
		return fmt.Errorf("failed to clear current split id: %w", err)
	}
	return nil
}
