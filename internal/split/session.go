// Package split implements the bill-splitting session engine: the
// in-memory participant/item collections with their many-to-many
// assignment relation, the optimistic sync layer that mirrors every
// mutation to a storage.Store, and the lifecycle manager for the current
// split.
//
// Every mutation follows the same protocol: snapshot the pre-mutation
// value, mutate the in-memory state immediately, then issue the remote
// write in the background. If the write fails, the snapshot is restored
// and the failure is logged; write-path errors never propagate to callers
// beyond that advisory log line. Remote writes are serialized per entity
// ID, so rapid mutations of one item cannot overtake each other.
package split

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/makansplit/backend/internal/calculator"
	"github.com/makansplit/backend/internal/models"
	"github.com/makansplit/backend/internal/storage"
)

// Session is the aggregate for one active split. Collections are mutated
// only through Session operations and always by whole-slice replacement,
// so concurrent readers see a fully consistent prior or post state.
type Session struct {
	mu    sync.Mutex
	store storage.Store
	queue *writeQueue

	splitID string
	members []models.Participant
	items   []models.Item
	tax     models.TaxSettings
}

// NewSession creates an empty session backed by the given store.
func NewSession(store storage.Store) *Session {
	return &Session{
		store: store,
		queue: newWriteQueue(),
		tax:   models.DefaultTaxSettings,
	}
}

// Wait blocks until all in-flight remote writes have settled. Mutations
// return before their writes land, so tests and shutdown paths use this
// to observe the reconciled state.
func (s *Session) Wait() {
	s.queue.Wait()
}

// SplitID returns the current split's ID, or "" when no split is active.
func (s *Session) SplitID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.splitID
}

// Members returns a copy of the current participant collection.
func (s *Session) Members() []models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMembers(s.members)
}

// Items returns a copy of the current item collection, assignment sets
// included.
func (s *Session) Items() []models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyItems(s.items)
}

// Tax returns the current tax settings.
func (s *Session) Tax() models.TaxSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tax
}

// MemberShare computes the participant's breakdown over the current items.
func (s *Session) MemberShare(participantID string) calculator.Breakdown {
	s.mu.Lock()
	items := copyItems(s.items)
	tax := s.tax
	s.mu.Unlock()
	return calculator.MemberShare(participantID, items, tax)
}

// Totals computes the breakdown of the whole receipt.
func (s *Session) Totals() calculator.Breakdown {
	s.mu.Lock()
	items := copyItems(s.items)
	tax := s.tax
	s.mu.Unlock()
	return calculator.SplitTotals(items, tax)
}

// start resets the session onto a fresh, empty split.
func (s *Session) start(splitID string, tax models.TaxSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.splitID = splitID
	s.members = nil
	s.items = nil
	s.tax = tax
}

// load replaces the whole session state with data fetched from the store.
// Sessions are always rebuilt from scratch on a split switch, never
// diffed.
func (s *Session) load(sp *models.Split, members []models.Participant, items []models.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.splitID = sp.ID
	s.tax = sp.Tax
	s.members = copyMembers(members)
	s.items = copyItems(items)
}

// clear drops all in-memory state. Remote data is untouched.
func (s *Session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.splitID = ""
	s.members = nil
	s.items = nil
	s.tax = models.DefaultTaxSettings
}

// AddParticipant appends a participant optimistically under a placeholder
// ID and returns that ID. Once the remote insert succeeds the placeholder
// is substituted with the store-assigned ID; if it fails the placeholder
// is removed again, since a record with no remote backing can never sync.
//
// Name validation (non-empty, unique within the split) is the caller's
// responsibility.
func (s *Session) AddParticipant(p models.Participant) (string, error) {
	s.mu.Lock()
	if s.splitID == "" {
		s.mu.Unlock()
		return "", ErrNoActiveSplit
	}
	splitID := s.splitID
	if p.Avatar == "" {
		p.Avatar = "😊"
	}
	p.ID = newPlaceholderID()
	tempID := p.ID

	next := copyMembers(s.members)
	next = append(next, p)
	s.members = next
	s.mu.Unlock()

	record := p // snapshot by value for the write closure
	s.queue.enqueue(tempID, func() {
		created := record
		if err := s.store.CreateParticipant(context.Background(), splitID, &created); err != nil {
			slog.Warn("participant create failed, removing placeholder",
				"split_id", splitID, "name", record.Name, "error", err)
			s.dropMember(splitID, tempID)
			return
		}
		s.substituteMemberID(splitID, tempID, created.ID)
	})

	return tempID, nil
}

// UpdateParticipant applies a partial update optimistically and mirrors it
// to the store. Unknown IDs are a silent no-op (tolerating UI races);
// placeholder IDs are rejected until the create has settled. A failed
// remote write restores the pre-update snapshot.
func (s *Session) UpdateParticipant(id string, upd ParticipantUpdate) error {
	if IsPlaceholder(id) {
		return ErrPendingSync
	}

	s.mu.Lock()
	if s.splitID == "" {
		s.mu.Unlock()
		return ErrNoActiveSplit
	}
	splitID := s.splitID

	idx := memberIndex(s.members, id)
	if idx < 0 {
		s.mu.Unlock()
		slog.Debug("update for unknown participant ignored", "participant_id", id)
		return nil
	}

	prev := s.members[idx] // value snapshot for rollback
	next := copyMembers(s.members)
	upd.apply(&next[idx])
	updated := next[idx]
	s.members = next
	s.mu.Unlock()

	s.queue.enqueue(id, func() {
		record := updated
		if err := s.store.UpdateParticipant(context.Background(), &record); err != nil {
			slog.Warn("participant update failed, rolling back",
				"participant_id", id, "error", err)
			s.restoreMember(splitID, prev)
		}
	})

	return nil
}

// ParticipantUpdate is a partial participant update; nil fields are left
// unchanged.
type ParticipantUpdate struct {
	Name      *string
	Phone     *string
	Avatar    *string
	IsSettled *bool
}

func (u ParticipantUpdate) apply(p *models.Participant) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Phone != nil {
		p.Phone = *u.Phone
	}
	if u.Avatar != nil {
		p.Avatar = *u.Avatar
	}
	if u.IsSettled != nil {
		p.IsSettled = *u.IsSettled
	}
}

// AddItems bulk-creates items from receipt lines (manual entry and OCR
// import share this path). Items appear immediately under placeholder IDs
// with empty assignment sets; the placeholders are substituted on remote
// success and removed on failure.
func (s *Session) AddItems(lines []models.LineItem) ([]models.Item, error) {
	s.mu.Lock()
	if s.splitID == "" {
		s.mu.Unlock()
		return nil, ErrNoActiveSplit
	}
	if len(lines) == 0 {
		s.mu.Unlock()
		return nil, nil
	}
	splitID := s.splitID

	created := make([]models.Item, len(lines))
	tempIDs := make([]string, len(lines))
	for i, line := range lines {
		qty := line.Quantity
		if qty <= 0 {
			qty = 1
		}
		created[i] = models.Item{
			ID:              newPlaceholderID(),
			Name:            line.Name,
			Price:           line.Price,
			Quantity:        qty,
			AssignedMembers: []string{},
		}
		tempIDs[i] = created[i].ID
	}

	next := copyItems(s.items)
	next = append(next, created...)
	s.items = next
	s.mu.Unlock()

	records := make([]models.Item, len(created))
	copy(records, created)
	s.queue.enqueue("items/"+splitID, func() {
		inserts := make([]*models.Item, len(records))
		for i := range records {
			item := records[i]
			item.ID = ""
			inserts[i] = &item
		}
		if err := s.store.CreateItems(context.Background(), splitID, inserts); err != nil {
			slog.Warn("bulk item create failed, removing placeholders",
				"split_id", splitID, "count", len(records), "error", err)
			for _, tempID := range tempIDs {
				s.dropItem(splitID, tempID)
			}
			return
		}
		for i, tempID := range tempIDs {
			s.substituteItemID(splitID, tempID, inserts[i].ID)
		}
	})

	return copyItems(created), nil
}

// RemoveItem deletes the item optimistically. Unknown IDs are a silent
// no-op so racing deletes are tolerated. On remote failure the exact
// removed record, assignment set included, is reinserted; ordering after
// reinsertion is not guaranteed and item order is not an invariant.
func (s *Session) RemoveItem(id string) error {
	if IsPlaceholder(id) {
		return ErrPendingSync
	}

	s.mu.Lock()
	if s.splitID == "" {
		s.mu.Unlock()
		return ErrNoActiveSplit
	}
	splitID := s.splitID

	idx := itemIndex(s.items, id)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}

	removed := copyItem(s.items[idx]) // full snapshot for rollback
	next := make([]models.Item, 0, len(s.items)-1)
	for i, item := range s.items {
		if i != idx {
			next = append(next, item)
		}
	}
	s.items = next
	s.mu.Unlock()

	s.queue.enqueue(id, func() {
		if err := s.store.DeleteItem(context.Background(), id); err != nil {
			slog.Warn("item delete failed, restoring item",
				"item_id", id, "error", err)
			s.restoreItem(splitID, removed)
		}
	})

	return nil
}

// ToggleAssignment flips the participant's membership in the item's
// assignment set: assigned becomes unassigned and vice versa. Toggling
// twice restores the original set. Both endpoints must have confirmed
// remote IDs. On remote failure the captured pre-toggle set is restored —
// never re-inverted, so overlapping requests cannot double-flip.
func (s *Session) ToggleAssignment(itemID, participantID string) error {
	if IsPlaceholder(itemID) || IsPlaceholder(participantID) {
		return ErrPendingSync
	}

	s.mu.Lock()
	if s.splitID == "" {
		s.mu.Unlock()
		return ErrNoActiveSplit
	}
	splitID := s.splitID

	idx := itemIndex(s.items, itemID)
	if idx < 0 || memberIndex(s.members, participantID) < 0 {
		s.mu.Unlock()
		slog.Debug("toggle on unknown entity ignored",
			"item_id", itemID, "participant_id", participantID)
		return nil
	}

	wasAssigned := s.items[idx].Assigned(participantID)
	prevSet := copyIDs(s.items[idx].AssignedMembers)

	next := copyItems(s.items)
	if wasAssigned {
		filtered := make([]string, 0, len(prevSet)-1)
		for _, id := range prevSet {
			if id != participantID {
				filtered = append(filtered, id)
			}
		}
		next[idx].AssignedMembers = filtered
	} else {
		next[idx].AssignedMembers = append(copyIDs(prevSet), participantID)
	}
	s.items = next
	s.mu.Unlock()

	s.queue.enqueue(itemID, func() {
		var err error
		if wasAssigned {
			err = s.store.RemoveAssignment(context.Background(), itemID, participantID)
		} else {
			err = s.store.AddAssignment(context.Background(), itemID, participantID)
		}
		if err != nil {
			slog.Warn("assignment toggle failed, restoring previous set",
				"item_id", itemID, "participant_id", participantID, "error", err)
			s.restoreAssignments(splitID, itemID, prevSet)
		}
	})

	return nil
}

// AssignAll replaces the item's assignment set with exactly the current
// full participant list, whatever was there before. The remote write is a
// clear followed by a bulk insert — two sequential calls with an accepted
// inconsistency window, and deliberately without rollback: a failure is
// logged and the local replacement stands.
func (s *Session) AssignAll(itemID string) error {
	if IsPlaceholder(itemID) {
		return ErrPendingSync
	}

	s.mu.Lock()
	if s.splitID == "" {
		s.mu.Unlock()
		return ErrNoActiveSplit
	}

	idx := itemIndex(s.items, itemID)
	if idx < 0 || len(s.members) == 0 {
		s.mu.Unlock()
		return nil
	}

	memberIDs := make([]string, len(s.members))
	for i, m := range s.members {
		if IsPlaceholder(m.ID) {
			s.mu.Unlock()
			return ErrPendingSync
		}
		memberIDs[i] = m.ID
	}

	next := copyItems(s.items)
	next[idx].AssignedMembers = copyIDs(memberIDs)
	s.items = next
	s.mu.Unlock()

	s.queue.enqueue(itemID, func() {
		ctx := context.Background()
		if err := s.store.ClearAssignments(ctx, itemID); err != nil {
			slog.Warn("assign-all clear failed", "item_id", itemID, "error", err)
			return
		}
		if err := s.store.CreateAssignments(ctx, itemID, memberIDs); err != nil {
			slog.Warn("assign-all insert failed", "item_id", itemID, "error", err)
		}
	})

	return nil
}

// SetTax updates the split-scoped tax settings optimistically, rolling
// back to the previous rates if the remote write fails. With no active
// split the change is local only.
func (s *Session) SetTax(tax models.TaxSettings) error {
	if tax.ServiceCharge < 0 || tax.ServiceTax < 0 {
		return fmt.Errorf("tax rates must be >= 0")
	}

	s.mu.Lock()
	prev := s.tax
	s.tax = tax
	splitID := s.splitID
	s.mu.Unlock()

	if splitID == "" {
		return nil
	}

	s.queue.enqueue(splitID, func() {
		if err := s.store.UpdateSplitTax(context.Background(), splitID, tax); err != nil {
			slog.Warn("tax update failed, rolling back", "split_id", splitID, "error", err)
			s.mu.Lock()
			if s.splitID == splitID {
				s.tax = prev
			}
			s.mu.Unlock()
		}
	})

	return nil
}

// Rollback and reconciliation helpers. Each checks that the session still
// belongs to the split the mutation was issued under; a split switch
// between mutation and reconciliation makes the fixup moot.

func (s *Session) dropMember(splitID, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.splitID != splitID {
		return
	}
	next := make([]models.Participant, 0, len(s.members))
	for _, m := range s.members {
		if m.ID != id {
			next = append(next, m)
		}
	}
	s.members = next
}

func (s *Session) substituteMemberID(splitID, oldID, newID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.splitID != splitID {
		return
	}
	members := copyMembers(s.members)
	for i := range members {
		if members[i].ID == oldID {
			members[i].ID = newID
		}
	}
	s.members = members

	// New participants start unreferenced, but sweep the assignment sets
	// anyway so a stale reference can never survive the substitution.
	items := copyItems(s.items)
	for i := range items {
		for j, pid := range items[i].AssignedMembers {
			if pid == oldID {
				items[i].AssignedMembers[j] = newID
			}
		}
	}
	s.items = items
}

func (s *Session) restoreMember(splitID string, prev models.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.splitID != splitID {
		return
	}
	next := copyMembers(s.members)
	for i := range next {
		if next[i].ID == prev.ID {
			next[i] = prev
		}
	}
	s.members = next
}

func (s *Session) dropItem(splitID, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.splitID != splitID {
		return
	}
	next := make([]models.Item, 0, len(s.items))
	for _, item := range s.items {
		if item.ID != id {
			next = append(next, item)
		}
	}
	s.items = next
}

func (s *Session) substituteItemID(splitID, oldID, newID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.splitID != splitID {
		return
	}
	next := copyItems(s.items)
	for i := range next {
		if next[i].ID == oldID {
			next[i].ID = newID
		}
	}
	s.items = next
}

func (s *Session) restoreItem(splitID string, removed models.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.splitID != splitID || itemIndex(s.items, removed.ID) >= 0 {
		return
	}
	next := copyItems(s.items)
	next = append(next, removed)
	s.items = next
}

func (s *Session) restoreAssignments(splitID, itemID string, prevSet []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.splitID != splitID {
		return
	}
	idx := itemIndex(s.items, itemID)
	if idx < 0 {
		return
	}
	next := copyItems(s.items)
	next[idx].AssignedMembers = copyIDs(prevSet)
	s.items = next
}

func memberIndex(members []models.Participant, id string) int {
	for i, m := range members {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func itemIndex(items []models.Item, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func copyMembers(members []models.Participant) []models.Participant {
	out := make([]models.Participant, len(members))
	copy(out, members)
	return out
}

func copyItems(items []models.Item) []models.Item {
	out := make([]models.Item, len(items))
	for i, item := range items {
		out[i] = copyItem(item)
	}
	return out
}

func copyItem(item models.Item) models.Item {
	item.AssignedMembers = copyIDs(item.AssignedMembers)
	return item
}

func copyIDs(ids []string) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}
