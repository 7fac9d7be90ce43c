package leaderboard

import (
	"sync"

	"github.com/google/uuid"

	"github.com/StorytellerCZ/voteboard/internal/models"
	"github.com/StorytellerCZ/voteboard/internal/store"
)

// Totalizer maintains the live sum of all item scores for one observer
// session. It seeds a per-item score map from the Watch snapshot and then
// folds change events into it: the total is adjusted by the difference
// between an item's new score and its last known score, never by rescanning
// the store. Because the map holds absolute scores, duplicate or
// snapshot-overlapping events are idempotent: re-applying an event with the
// same post-image is a no-op.
//
// Every emission on Updates is the absolute total at that point in feed
// order, never a delta. Pre-change values come from the event payloads and
// the tracked map only; the store is never re-queried inside the handler.
type Totalizer struct {
	updates   chan int64
	sub       store.Subscription
	closeOnce sync.Once
}

func newTotalizer(snapshot []models.Item, sub store.Subscription) *Totalizer {
	t := &Totalizer{
		updates: make(chan int64, 64),
		sub:     sub,
	}
	go t.run(snapshot)
	return t
}

// Updates returns the stream of absolute totals. The channel is closed when
// the session ends. If a consumer stops draining, intermediate totals are
// dropped; only the freshest value matters.
func (t *Totalizer) Updates() <-chan int64 {
	return t.updates
}

// Close ends the session and releases the feed subscription.
func (t *Totalizer) Close() {
	t.closeOnce.Do(func() {
		t.sub.Close()
	})
}

func (t *Totalizer) run(snapshot []models.Item) {
	defer close(t.updates)

	scores := make(map[uuid.UUID]int64, len(snapshot))
	var total int64
	for _, item := range snapshot {
		scores[item.ID] = item.Score
		total += item.Score
	}
	t.emit(total)

	for ev := range t.sub.Events() {
		var changed bool
		total, changed = applyEvent(scores, total, ev)
		if changed {
			t.emit(total)
		}
	}
}

// applyEvent folds one change event into the tracked scores, returning the
// new total and whether it differs in a way worth emitting.
func applyEvent(scores map[uuid.UUID]int64, total int64, ev store.Event) (int64, bool) {
	switch e := ev.(type) {
	case store.ItemAdded:
		prev, tracked := scores[e.Item.ID]
		if tracked && prev == e.Item.Score {
			return total, false
		}
		if tracked {
			total -= prev
		}
		scores[e.Item.ID] = e.Item.Score
		return total + e.Item.Score, true

	case store.ItemChanged:
		prev, tracked := scores[e.New.ID]
		if !tracked {
			// Never saw this item: treat as an add at its new score.
			prev = 0
		}
		if tracked && prev == e.New.Score {
			return total, false
		}
		scores[e.New.ID] = e.New.Score
		return total + e.New.Score - prev, true

	case store.ItemRemoved:
		prev, tracked := scores[e.Item.ID]
		if !tracked {
			return total, false
		}
		delete(scores, e.Item.ID)
		return total - prev, true

	default:
		return total, false
	}
}

// emit pushes a total, displacing the oldest buffered value if the consumer
// is behind. The stream stays current without blocking the session loop.
func (t *Totalizer) emit(total int64) {
	for {
		select {
		case t.updates <- total:
			return
		default:
			select {
			case <-t.updates:
			default:
			}
		}
	}
}
