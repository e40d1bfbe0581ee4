package split

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/makansplit/backend/internal/models"
	"github.com/makansplit/backend/internal/storage"
)

// fakeStore is an in-memory storage.Store with per-operation failure
// injection, used to exercise the optimistic-update rollback contracts.
type fakeStore struct {
	mu           sync.Mutex
	nextID       int
	splits       map[string]models.Split
	participants map[string][]models.Participant
	items        map[string][]models.Item

	failCreateParticipant bool
	failUpdateParticipant bool
	failCreateItems       bool
	failDeleteItem        bool
	failAddAssignment     bool
	failRemoveAssignment  bool
	failClearAssignments  bool
	failCreateAssignments bool
	failUpdateSplitTax    bool
	failReads             bool
}

var errInjected = errors.New("injected remote failure")

var _ storage.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		splits:       make(map[string]models.Split),
		participants: make(map[string][]models.Participant),
		items:        make(map[string][]models.Item),
	}
}

func (f *fakeStore) genID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) CreateSplit(_ context.Context, sp *models.Split) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sp.ID == "" {
		sp.ID = f.genID("split")
	}
	f.splits[sp.ID] = *sp
	return nil
}

func (f *fakeStore) GetSplit(_ context.Context, splitID string) (*models.Split, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, errInjected
	}
	sp, ok := f.splits[splitID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &sp, nil
}

func (f *fakeStore) UpdateSplitTax(_ context.Context, splitID string, tax models.TaxSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdateSplitTax {
		return errInjected
	}
	sp, ok := f.splits[splitID]
	if !ok {
		return storage.ErrNotFound
	}
	sp.Tax = tax
	f.splits[splitID] = sp
	return nil
}

func (f *fakeStore) CreateParticipant(_ context.Context, splitID string, p *models.Participant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateParticipant {
		return errInjected
	}
	p.ID = f.genID("p")
	f.participants[splitID] = append(f.participants[splitID], *p)
	return nil
}

func (f *fakeStore) UpdateParticipant(_ context.Context, p *models.Participant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdateParticipant {
		return errInjected
	}
	for splitID, members := range f.participants {
		for i := range members {
			if members[i].ID == p.ID {
				members[i] = *p
				f.participants[splitID] = members
				return nil
			}
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) ListParticipants(_ context.Context, splitID string) ([]models.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, errInjected
	}
	return append([]models.Participant(nil), f.participants[splitID]...), nil
}

func (f *fakeStore) CreateItems(_ context.Context, splitID string, items []*models.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateItems {
		return errInjected
	}
	for _, item := range items {
		item.ID = f.genID("i")
		f.items[splitID] = append(f.items[splitID], *item)
	}
	return nil
}

func (f *fakeStore) DeleteItem(_ context.Context, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDeleteItem {
		return errInjected
	}
	for splitID, items := range f.items {
		for i := range items {
			if items[i].ID == itemID {
				f.items[splitID] = append(items[:i], items[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (f *fakeStore) ListItems(_ context.Context, splitID string) ([]models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, errInjected
	}
	out := make([]models.Item, len(f.items[splitID]))
	for i, item := range f.items[splitID] {
		item.AssignedMembers = append([]string(nil), item.AssignedMembers...)
		out[i] = item
	}
	return out, nil
}

func (f *fakeStore) withItem(itemID string, fn func(*models.Item)) error {
	for splitID, items := range f.items {
		for i := range items {
			if items[i].ID == itemID {
				fn(&items[i])
				f.items[splitID] = items
				return nil
			}
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) AddAssignment(_ context.Context, itemID, participantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAddAssignment {
		return errInjected
	}
	return f.withItem(itemID, func(item *models.Item) {
		if !item.Assigned(participantID) {
			item.AssignedMembers = append(item.AssignedMembers, participantID)
		}
	})
}

func (f *fakeStore) RemoveAssignment(_ context.Context, itemID, participantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRemoveAssignment {
		return errInjected
	}
	return f.withItem(itemID, func(item *models.Item) {
		next := item.AssignedMembers[:0]
		for _, id := range item.AssignedMembers {
			if id != participantID {
				next = append(next, id)
			}
		}
		item.AssignedMembers = next
	})
}

func (f *fakeStore) ClearAssignments(_ context.Context, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failClearAssignments {
		return errInjected
	}
	return f.withItem(itemID, func(item *models.Item) {
		item.AssignedMembers = nil
	})
}

func (f *fakeStore) CreateAssignments(_ context.Context, itemID string, participantIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateAssignments {
		return errInjected
	}
	return f.withItem(itemID, func(item *models.Item) {
		item.AssignedMembers = append(item.AssignedMembers, participantIDs...)
	})
}

func (f *fakeStore) Close() error { return nil }
