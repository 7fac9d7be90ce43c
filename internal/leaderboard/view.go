package leaderboard

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/StorytellerCZ/voteboard/internal/models"
	"github.com/StorytellerCZ/voteboard/internal/store"
)

// ItemScope selects which items a view session observes.
type ItemScope string

const (
	// ScopeAll is every item, ranked by score descending.
	ScopeAll ItemScope = "all"
	// ScopeMine is the session user's own items, newest first.
	ScopeMine ItemScope = "mine"
)

func (s ItemScope) Valid() bool {
	return s == ScopeAll || s == ScopeMine
}

func (s ItemScope) includes(item models.Item, userID uuid.UUID) bool {
	if s == ScopeMine {
		return item.CreatedBy == userID
	}
	return true
}

// sort orders items in place: score desc for the ranked board, createdAt
// desc for a user's own items. Ties break on createdAt then id so the order
// is stable across emissions.
func (s ItemScope) sort(items []models.Item) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if s == ScopeAll && a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}

// ItemView is one observer session over the item list: a sorted snapshot on
// start, then a fresh sorted snapshot after every change that affects the
// session's scope. Independent of any other session.
type ItemView struct {
	updates   chan []models.Item
	sub       store.Subscription
	userID    uuid.UUID
	scope     ItemScope
	closeOnce sync.Once
}

func newItemView(snapshot []models.Item, sub store.Subscription, userID uuid.UUID, scope ItemScope) *ItemView {
	v := &ItemView{
		updates: make(chan []models.Item, 16),
		sub:     sub,
		userID:  userID,
		scope:   scope,
	}
	go v.run(snapshot)
	return v
}

// Updates returns the stream of sorted item snapshots. Closed when the
// session ends. Stale snapshots are displaced if the consumer lags.
func (v *ItemView) Updates() <-chan []models.Item {
	return v.updates
}

// Close ends the session and releases the feed subscription.
func (v *ItemView) Close() {
	v.closeOnce.Do(func() {
		v.sub.Close()
	})
}

func (v *ItemView) run(snapshot []models.Item) {
	defer close(v.updates)

	items := make(map[uuid.UUID]models.Item, len(snapshot))
	for _, item := range snapshot {
		if v.scope.includes(item, v.userID) {
			items[item.ID] = item
		}
	}
	v.emit(items)

	for ev := range v.sub.Events() {
		if v.applyEvent(items, ev) {
			v.emit(items)
		}
	}
}

// applyEvent folds one change event into the view state, returning whether
// anything in scope changed.
func (v *ItemView) applyEvent(items map[uuid.UUID]models.Item, ev store.Event) bool {
	switch e := ev.(type) {
	case store.ItemAdded:
		if !v.scope.includes(e.Item, v.userID) {
			return false
		}
		items[e.Item.ID] = e.Item
		return true
	case store.ItemChanged:
		if !v.scope.includes(e.New, v.userID) {
			return false
		}
		items[e.New.ID] = e.New
		return true
	case store.ItemRemoved:
		if _, ok := items[e.Item.ID]; !ok {
			return false
		}
		delete(items, e.Item.ID)
		return true
	default:
		return false
	}
}

func (v *ItemView) emit(items map[uuid.UUID]models.Item) {
	sorted := make([]models.Item, 0, len(items))
	for _, item := range items {
		sorted = append(sorted, item)
	}
	v.scope.sort(sorted)

	for {
		select {
		case v.updates <- sorted:
			return
		default:
			select {
			case <-v.updates:
			default:
			}
		}
	}
}
