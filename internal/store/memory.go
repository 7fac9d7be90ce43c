package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/StorytellerCZ/voteboard/internal/models"
)

// MemoryStore is the in-memory ItemStore backend. A single mutex linearizes
// mutations; feed events are enqueued inside the critical section, so the
// hub receives them in commit order. Use the Redis backend for per-key
// concurrency across instances.
type MemoryStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]*models.Item
	hub   *feedHub
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[uuid.UUID]*models.Item),
		hub:   newFeedHub(),
	}
}

func (s *MemoryStore) InsertItem(_ context.Context, item models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[item.ID]; exists {
		return ErrItemExists
	}

	stored := item.Clone()
	s.items[item.ID] = &stored
	s.hub.publish(ItemAdded{Item: stored.Clone()})
	return nil
}

func (s *MemoryStore) GetItem(_ context.Context, id uuid.UUID) (models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[id]
	if !exists {
		return models.Item{}, ErrItemNotFound
	}
	return item.Clone(), nil
}

func (s *MemoryStore) ListItems(_ context.Context) ([]models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), nil
}

func (s *MemoryStore) ApplyVote(_ context.Context, itemID, userID uuid.UUID, delta int64) (models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[itemID]
	if !exists {
		return models.Item{}, ErrItemNotFound
	}
	if item.HasVoter(userID) {
		return models.Item{}, ErrAlreadyVoted
	}

	old := item.Clone()
	item.Score += delta
	item.Voters = append(item.Voters, userID)
	updated := item.Clone()

	s.hub.publish(ItemChanged{Old: old, New: updated})
	return updated, nil
}

func (s *MemoryStore) RetractVote(_ context.Context, itemID, userID uuid.UUID, delta int64) (models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[itemID]
	if !exists {
		return models.Item{}, ErrItemNotFound
	}
	if !item.HasVoter(userID) {
		return models.Item{}, ErrNoActiveVote
	}

	old := item.Clone()
	item.Score += delta
	voters := item.Voters[:0]
	for _, v := range item.Voters {
		if v != userID {
			voters = append(voters, v)
		}
	}
	item.Voters = voters
	updated := item.Clone()

	s.hub.publish(ItemChanged{Old: old, New: updated})
	return updated, nil
}

func (s *MemoryStore) RemoveItem(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[id]
	if !exists {
		return ErrItemNotFound
	}

	removed := item.Clone()
	delete(s.items, id)
	s.hub.publish(ItemRemoved{Item: removed})
	return nil
}

// Watch takes the snapshot and registers the subscription under the same
// lock, so the subscription starts exactly at the snapshot point: no
// committed mutation is missed and none is double-counted.
func (s *MemoryStore) Watch(_ context.Context) ([]models.Item, Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.snapshotLocked()
	sub := s.hub.subscribe()
	return snapshot, sub, nil
}

// Close stops the change feed, closing all subscriptions.
func (s *MemoryStore) Close() {
	s.hub.stop()
}

func (s *MemoryStore) snapshotLocked() []models.Item {
	snapshot := make([]models.Item, 0, len(s.items))
	for _, item := range s.items {
		snapshot = append(snapshot, item.Clone())
	}
	return snapshot
}
