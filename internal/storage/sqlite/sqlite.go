// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/makansplit/backend/internal/models"
	"github.com/makansplit/backend/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSplit persists a new split, generating its ID and timestamp.
func (s *SQLiteStore) CreateSplit(ctx context.Context, split *models.Split) error {
	if split.ID == "" {
		split.ID = uuid.New().String()
	}
	if split.CreatedAt == 0 {
		split.CreatedAt = time.Now().Unix()
	}
	if split.Currency == "" {
		split.Currency = "MYR"
	}
	if split.Title == "" {
		split.Title = fmt.Sprintf("Receipt - %s", time.Now().Format("Jan 2, 2006"))
	}

	// The tax_amount column carries the service tax percentage, matching
	// the original schema.
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO splits (id, title, currency, tax_amount, service_charge, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		split.ID, split.Title, split.Currency, split.Tax.ServiceTax, split.Tax.ServiceCharge, split.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert split: %w", err)
	}
	return nil
}

// GetSplit retrieves a split by ID.
func (s *SQLiteStore) GetSplit(ctx context.Context, splitID string) (*models.Split, error) {
	split := &models.Split{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, currency, tax_amount, service_charge, created_at FROM splits WHERE id = ?",
		splitID,
	).Scan(&split.ID, &split.Title, &split.Currency, &split.Tax.ServiceTax, &split.Tax.ServiceCharge, &split.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("split %s: %w", splitID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get split: %w", err)
	}
	return split, nil
}

// UpdateSplitTax updates the split-scoped tax settings.
func (s *SQLiteStore) UpdateSplitTax(ctx context.Context, splitID string, tax models.TaxSettings) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE splits SET service_charge = ?, tax_amount = ? WHERE id = ?",
		tax.ServiceCharge, tax.ServiceTax, splitID,
	)
	if err != nil {
		return fmt.Errorf("failed to update split tax: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("split %s: %w", splitID, storage.ErrNotFound)
	}
	return nil
}

// CreateParticipant persists a new participant, generating its ID.
func (s *SQLiteStore) CreateParticipant(ctx context.Context, splitID string, p *models.Participant) error {
	p.ID = uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO participants (id, split_id, name, phone, avatar, is_settled) VALUES (?, ?, ?, ?, ?, ?)",
		p.ID, splitID, p.Name, p.Phone, p.Avatar, p.IsSettled,
	)
	if err != nil {
		return fmt.Errorf("failed to insert participant: %w", err)
	}
	return nil
}

// UpdateParticipant updates an existing participant.
func (s *SQLiteStore) UpdateParticipant(ctx context.Context, p *models.Participant) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE participants SET name = ?, phone = ?, avatar = ?, is_settled = ? WHERE id = ?",
		p.Name, p.Phone, p.Avatar, p.IsSettled, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update participant: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("participant %s: %w", p.ID, storage.ErrNotFound)
	}
	return nil
}

// ListParticipants returns all participants of a split.
func (s *SQLiteStore) ListParticipants(ctx context.Context, splitID string) ([]models.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, phone, avatar, is_settled FROM participants WHERE split_id = ?",
		splitID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.Name, &p.Phone, &p.Avatar, &p.IsSettled); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return participants, nil
}

// CreateItems bulk-inserts items under the split, generating their IDs.
func (s *SQLiteStore) CreateItems(ctx context.Context, splitID string, items []*models.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, item := range items {
		item.ID = uuid.New().String()
		if item.Quantity <= 0 {
			item.Quantity = 1
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO items (id, split_id, name, price, quantity) VALUES (?, ?, ?, ?, ?)",
			item.ID, splitID, item.Name, item.Price, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteItem removes an item; assignments cascade.
func (s *SQLiteStore) DeleteItem(ctx context.Context, itemID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM items WHERE id = ?", itemID)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}

// ListItems returns all items of a split with their assignment sets.
func (s *SQLiteStore) ListItems(ctx context.Context, splitID string) ([]models.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, price, quantity FROM items WHERE split_id = ?",
		splitID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(&item.ID, &item.Name, &item.Price, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}

	for i := range items {
		assignRows, err := s.db.QueryContext(ctx,
			"SELECT participant_id FROM item_assignments WHERE item_id = ?",
			items[i].ID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to get item assignments: %w", err)
		}
		for assignRows.Next() {
			var participantID string
			if err := assignRows.Scan(&participantID); err != nil {
				assignRows.Close()
				return nil, fmt.Errorf("failed to scan assignment: %w", err)
			}
			items[i].AssignedMembers = append(items[i].AssignedMembers, participantID)
		}
		assignRows.Close()
		if err := assignRows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate assignments: %w", err)
		}
	}

	return items, nil
}

// AddAssignment inserts one assignment row.
func (s *SQLiteStore) AddAssignment(ctx context.Context, itemID, participantID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO item_assignments (item_id, participant_id) VALUES (?, ?)",
		itemID, participantID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			// Already assigned; the toggle raced with itself.
			return nil
		}
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}

// RemoveAssignment deletes the matching assignment row.
func (s *SQLiteStore) RemoveAssignment(ctx context.Context, itemID, participantID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM item_assignments WHERE item_id = ? AND participant_id = ?",
		itemID, participantID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	return nil
}

// ClearAssignments deletes every assignment row of one item.
func (s *SQLiteStore) ClearAssignments(ctx context.Context, itemID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM item_assignments WHERE item_id = ?",
		itemID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear assignments: %w", err)
	}
	return nil
}

// CreateAssignments bulk-inserts assignment rows for one item.
func (s *SQLiteStore) CreateAssignments(ctx context.Context, itemID string, participantIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, pid := range participantIDs {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO item_assignments (item_id, participant_id) VALUES (?, ?)",
			itemID, pid,
		)
		if err != nil {
			return fmt.Errorf("failed to insert assignment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
