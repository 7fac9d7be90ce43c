// Package store defines the item store contract: a document store with
// atomic vote mutations and an ordered change feed, plus the in-memory
// backend used for tests and single-instance deployments.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/StorytellerCZ/voteboard/internal/models"
)

// Sentinel errors returned by ItemStore implementations. The service layer
// maps these to the user-facing taxonomy.
var (
	ErrItemNotFound = errors.New("item not found")
	ErrItemExists   = errors.New("item already exists")
	ErrAlreadyVoted = errors.New("user already voted on item")
	ErrNoActiveVote = errors.New("user has no active vote on item")
)

// Event is a change-feed notification. A Changed event carries both the pre-
// and post-mutation snapshots, captured atomically with the mutation itself,
// so consumers never need to re-query the store to learn the old value.
type Event interface{ event() }

type ItemAdded struct {
	Item models.Item
}

func (ItemAdded) event() {}

type ItemChanged struct {
	Old models.Item
	New models.Item
}

func (ItemChanged) event() {}

type ItemRemoved struct {
	Item models.Item
}

func (ItemRemoved) event() {}

// Subscription is one observer's handle on the change feed. Events for a
// given item id arrive in the order the mutations committed. Close releases
// the subscription; the Events channel is closed afterwards. The channel is
// also closed if the subscriber falls too far behind; callers that care can
// re-Watch to recover.
type Subscription interface {
	Events() <-chan Event
	Close()
}

// ItemStore is the document store the voting core runs against.
//
// ApplyVote and RetractVote each perform their precondition check, score
// increment, and voter-set update as one atomic operation: concurrent votes
// on the same item cannot lose updates, and a duplicate vote fails without
// mutating anything.
type ItemStore interface {
	InsertItem(ctx context.Context, item models.Item) error
	GetItem(ctx context.Context, id uuid.UUID) (models.Item, error)
	ListItems(ctx context.Context) ([]models.Item, error)

	// ApplyVote adds userID to the item's voter set and adjusts the score by
	// delta. Fails with ErrAlreadyVoted if the user already has an active
	// vote. Returns the post-mutation item.
	ApplyVote(ctx context.Context, itemID, userID uuid.UUID, delta int64) (models.Item, error)

	// RetractVote removes userID from the voter set and adjusts the score by
	// delta (the inverse of the original vote). Fails with ErrNoActiveVote if
	// the user has no active vote. Returns the post-mutation item.
	RetractVote(ctx context.Context, itemID, userID uuid.UUID, delta int64) (models.Item, error)

	// RemoveItem deletes an item. There is no user-facing delete operation,
	// but feed consumers must handle removal, e.g. for administrative
	// cleanup.
	RemoveItem(ctx context.Context, id uuid.UUID) error

	// Watch returns a snapshot of all items together with a subscription
	// positioned immediately after it: every mutation committed after the
	// snapshot is delivered on the subscription, and none of the snapshot's
	// state is re-delivered by the memory backend. The Redis backend
	// subscribes before scanning, so events may overlap the snapshot;
	// consumers tracking absolute per-item scores absorb the overlap.
	Watch(ctx context.Context) ([]models.Item, Subscription, error)
}
