package leaderboard

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StorytellerCZ/voteboard/internal/models"
	"github.com/StorytellerCZ/voteboard/internal/store"
)

func nextSnapshot(t *testing.T, view *ItemView) []models.Item {
	t.Helper()
	select {
	case items, ok := <-view.Updates():
		require.True(t, ok, "view closed unexpectedly")
		return items
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for view snapshot")
		return nil
	}
}

// waitForSnapshot reads emissions until one satisfies the predicate.
func waitForSnapshot(t *testing.T, view *ItemView, ok func([]models.Item) bool) []models.Item {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case items, open := <-view.Updates():
			require.True(t, open, "view closed unexpectedly")
			if ok(items) {
				return items
			}
		case <-deadline:
			t.Fatal("view never emitted the expected snapshot")
			return nil
		}
	}
}

func ownedItem(owner uuid.UUID, score int64, createdAt time.Time) models.Item {
	return models.Item{
		ID:        uuid.New(),
		Name:      "item",
		Score:     score,
		CreatedBy: owner,
		CreatedAt: createdAt,
		Voters:    []uuid.UUID{},
	}
}

func TestItemScopeValid(t *testing.T) {
	assert.True(t, ScopeAll.Valid())
	assert.True(t, ScopeMine.Valid())
	assert.False(t, ItemScope("").Valid())
	assert.False(t, ItemScope("theirs").Valid())
}

func TestItemViewAllSortsByScore(t *testing.T) {
	now := time.Now().UTC()
	snapshot := []models.Item{
		ownedItem(uuid.New(), 1, now),
		ownedItem(uuid.New(), 5, now.Add(time.Second)),
		ownedItem(uuid.New(), 3, now.Add(2*time.Second)),
	}

	sub := newFakeSubscription()
	view := newItemView(snapshot, sub, uuid.New(), ScopeAll)
	defer view.Close()

	items := nextSnapshot(t, view)
	require.Len(t, items, 3)
	assert.Equal(t, int64(5), items[0].Score)
	assert.Equal(t, int64(3), items[1].Score)
	assert.Equal(t, int64(1), items[2].Score)
}

func TestItemViewAllTiesBreakNewestFirst(t *testing.T) {
	now := time.Now().UTC()
	older := ownedItem(uuid.New(), 2, now)
	newer := ownedItem(uuid.New(), 2, now.Add(time.Minute))

	sub := newFakeSubscription()
	view := newItemView([]models.Item{older, newer}, sub, uuid.New(), ScopeAll)
	defer view.Close()

	items := nextSnapshot(t, view)
	require.Len(t, items, 2)
	assert.Equal(t, newer.ID, items[0].ID)
	assert.Equal(t, older.ID, items[1].ID)
}

func TestItemViewMineFiltersAndSortsByCreation(t *testing.T) {
	now := time.Now().UTC()
	me := uuid.New()
	mineOld := ownedItem(me, 100, now)
	mineNew := ownedItem(me, 0, now.Add(time.Minute))
	other := ownedItem(uuid.New(), 50, now.Add(2*time.Minute))

	sub := newFakeSubscription()
	view := newItemView([]models.Item{mineOld, other, mineNew}, sub, me, ScopeMine)
	defer view.Close()

	items := nextSnapshot(t, view)
	require.Len(t, items, 2)
	assert.Equal(t, mineNew.ID, items[0].ID, "newest first, score ignored")
	assert.Equal(t, mineOld.ID, items[1].ID)
}

func TestItemViewReactsToChanges(t *testing.T) {
	now := time.Now().UTC()
	a := ownedItem(uuid.New(), 1, now)
	b := ownedItem(uuid.New(), 2, now.Add(time.Second))

	sub := newFakeSubscription()
	view := newItemView([]models.Item{a, b}, sub, uuid.New(), ScopeAll)
	defer view.Close()

	items := nextSnapshot(t, view)
	assert.Equal(t, b.ID, items[0].ID)

	// a overtakes b.
	updated := a
	updated.Score = 10
	sub.send(store.ItemChanged{Old: a, New: updated})

	items = waitForSnapshot(t, view, func(items []models.Item) bool {
		return len(items) == 2 && items[0].ID == a.ID
	})
	assert.Equal(t, int64(10), items[0].Score)

	sub.send(store.ItemRemoved{Item: b})
	waitForSnapshot(t, view, func(items []models.Item) bool {
		return len(items) == 1 && items[0].ID == a.ID
	})
}

func TestItemViewMineIgnoresOthersChanges(t *testing.T) {
	now := time.Now().UTC()
	me := uuid.New()
	mine := ownedItem(me, 0, now)

	sub := newFakeSubscription()
	view := newItemView([]models.Item{mine}, sub, me, ScopeMine)
	defer view.Close()

	nextSnapshot(t, view)

	// Another user's item appearing and changing is out of scope; my own item
	// changing is not.
	other := ownedItem(uuid.New(), 3, now.Add(time.Second))
	sub.send(store.ItemAdded{Item: other})

	updatedMine := mine
	updatedMine.Score = 7
	sub.send(store.ItemChanged{Old: mine, New: updatedMine})

	items := waitForSnapshot(t, view, func(items []models.Item) bool {
		return len(items) == 1 && items[0].Score == 7
	})
	assert.Equal(t, mine.ID, items[0].ID)
}

func TestItemViewCloseEndsStream(t *testing.T) {
	sub := newFakeSubscription()
	view := newItemView(nil, sub, uuid.New(), ScopeAll)

	nextSnapshot(t, view)
	view.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-view.Updates():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("updates channel never closed")
		}
	}
}
