// Package storage provides abstractions for the remote persistence layer.
package storage

import (
	"context"
	"errors"

	"github.com/makansplit/backend/internal/models"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// Store defines the interface for split persistence operations.
// This abstraction allows swapping storage backends (SQLite, Postgres,
// a hosted API, etc.) without changing the session layer, and lets tests
// inject a failing store to exercise the rollback contracts.
//
// Multi-row operations are not transactional: clearing and re-inserting an
// item's assignments is two sequential calls with an accepted inconsistency
// window in between.
type Store interface {
	// CreateSplit persists a new split. The split.ID field is populated
	// by the store.
	CreateSplit(ctx context.Context, split *models.Split) error

	// GetSplit retrieves a split by ID. Returns ErrNotFound if absent.
	GetSplit(ctx context.Context, splitID string) (*models.Split, error)

	// UpdateSplitTax updates the split-scoped tax settings.
	UpdateSplitTax(ctx context.Context, splitID string, tax models.TaxSettings) error

	// CreateParticipant persists a new participant under the split.
	// The participant.ID field is populated by the store.
	CreateParticipant(ctx context.Context, splitID string, p *models.Participant) error

	// UpdateParticipant updates name, phone, avatar, and settled flag.
	// Returns ErrNotFound if the participant does not exist.
	UpdateParticipant(ctx context.Context, p *models.Participant) error

	// ListParticipants returns all participants of a split.
	ListParticipants(ctx context.Context, splitID string) ([]models.Participant, error)

	// CreateItems bulk-inserts items under the split, populating their IDs.
	CreateItems(ctx context.Context, splitID string, items []*models.Item) error

	// DeleteItem removes an item and, via cascade, its assignments.
	DeleteItem(ctx context.Context, itemID string) error

	// ListItems returns all items of a split with their assignment sets.
	ListItems(ctx context.Context, splitID string) ([]models.Item, error)

	// AddAssignment inserts one (item, participant) assignment row.
	AddAssignment(ctx context.Context, itemID, participantID string) error

	// RemoveAssignment deletes the matching assignment row.
	RemoveAssignment(ctx context.Context, itemID, participantID string) error

	// ClearAssignments deletes every assignment row of one item.
	ClearAssignments(ctx context.Context, itemID string) error

	// CreateAssignments bulk-inserts assignment rows for one item.
	CreateAssignments(ctx context.Context, itemID string, participantIDs []string) error

	// Close releases any resources held by the store.
	Close() error
}
