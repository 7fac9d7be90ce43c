package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/StorytellerCZ/voteboard/internal/models"
	"github.com/StorytellerCZ/voteboard/internal/store"
)

const (
	itemsIndexKey = "vb:items"
	changeChannel = "vb:changes"

	subscriberBuffer = 256
)

func itemKey(id uuid.UUID) string {
	return "vb:item:" + id.String()
}

func votersKey(id uuid.UUID) string {
	return "vb:item:" + id.String() + ":voters"
}

// ItemStore implements store.ItemStore on Redis. Items live in hashes with a
// sidecar voter set and a global id index; all mutations go through the Lua
// scripts in scripts.go, giving per-key atomicity with no cross-item
// locking. Change events arrive over a single Pub/Sub channel shared by all
// instances.
type ItemStore struct {
	rdb *goredis.Client
}

func NewItemStore(rdb *goredis.Client) *ItemStore {
	return &ItemStore{rdb: rdb}
}

func (s *ItemStore) InsertItem(ctx context.Context, item models.Item) error {
	_, err := insertItemScript.Run(ctx, s.rdb,
		[]string{itemKey(item.ID), votersKey(item.ID), itemsIndexKey},
		item.ID.String(),
		item.Name,
		strconv.FormatInt(item.Score, 10),
		item.CreatedBy.String(),
		strconv.FormatInt(item.CreatedAt.UnixMilli(), 10),
		changeChannel,
	).Result()
	if err != nil {
		return mapScriptError(err, "insert item")
	}
	return nil
}

func (s *ItemStore) GetItem(ctx context.Context, id uuid.UUID) (models.Item, error) {
	pipe := s.rdb.Pipeline()
	hashCmd := pipe.HGetAll(ctx, itemKey(id))
	votersCmd := pipe.SMembers(ctx, votersKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return models.Item{}, fmt.Errorf("failed to read item: %w", err)
	}

	fields := hashCmd.Val()
	if len(fields) == 0 {
		return models.Item{}, store.ErrItemNotFound
	}
	return itemFromHash(id, fields, votersCmd.Val())
}

func (s *ItemStore) ListItems(ctx context.Context) ([]models.Item, error) {
	ids, err := s.rdb.SMembers(ctx, itemsIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read item index: %w", err)
	}

	pipe := s.rdb.Pipeline()
	type itemCmds struct {
		id     uuid.UUID
		hash   *goredis.MapStringStringCmd
		voters *goredis.StringSliceCmd
	}
	cmds := make([]itemCmds, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			slog.Warn("Skipping malformed item id in index", "id", raw)
			continue
		}
		cmds = append(cmds, itemCmds{
			id:     id,
			hash:   pipe.HGetAll(ctx, itemKey(id)),
			voters: pipe.SMembers(ctx, votersKey(id)),
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read items: %w", err)
	}

	items := make([]models.Item, 0, len(cmds))
	for _, c := range cmds {
		fields := c.hash.Val()
		if len(fields) == 0 {
			// Removed between index read and hash read.
			continue
		}
		item, err := itemFromHash(c.id, fields, c.voters.Val())
		if err != nil {
			slog.Warn("Skipping malformed item", "id", c.id, "error", err)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *ItemStore) ApplyVote(ctx context.Context, itemID, userID uuid.UUID, delta int64) (models.Item, error) {
	return s.runVoteScript(ctx, applyVoteScript, itemID, userID, delta)
}

func (s *ItemStore) RetractVote(ctx context.Context, itemID, userID uuid.UUID, delta int64) (models.Item, error) {
	return s.runVoteScript(ctx, retractVoteScript, itemID, userID, delta)
}

func (s *ItemStore) runVoteScript(ctx context.Context, script *goredis.Script, itemID, userID uuid.UUID, delta int64) (models.Item, error) {
	result, err := script.Run(ctx, s.rdb,
		[]string{itemKey(itemID), votersKey(itemID)},
		userID.String(),
		strconv.FormatInt(delta, 10),
		changeChannel,
		itemID.String(),
	).Result()
	if err != nil {
		return models.Item{}, mapScriptError(err, "apply vote")
	}

	payload, ok := result.(string)
	if !ok {
		return models.Item{}, fmt.Errorf("unexpected vote script result type %T", result)
	}
	var ev wireEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return models.Item{}, fmt.Errorf("failed to decode vote script result: %w", err)
	}
	if ev.New == nil {
		return models.Item{}, fmt.Errorf("vote script result missing new snapshot")
	}
	return ev.New.toItem()
}

func (s *ItemStore) RemoveItem(ctx context.Context, id uuid.UUID) error {
	_, err := removeItemScript.Run(ctx, s.rdb,
		[]string{itemKey(id), votersKey(id), itemsIndexKey},
		id.String(),
		changeChannel,
	).Result()
	if err != nil {
		return mapScriptError(err, "remove item")
	}
	return nil
}

// Watch subscribes to the change channel first and scans second, so no
// mutation between the two is lost. Events published during the scan may
// overlap the snapshot; consumers track absolute per-item scores, which
// makes the overlap harmless.
func (s *ItemStore) Watch(ctx context.Context) ([]models.Item, store.Subscription, error) {
	pubsub := s.rdb.Subscribe(ctx, changeChannel)
	// Wait for the subscription to be confirmed before scanning.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to change channel: %w", err)
	}

	snapshot, err := s.ListItems(ctx)
	if err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	sub := &subscription{
		pubsub: pubsub,
		ch:     make(chan store.Event, subscriberBuffer),
	}
	go sub.run()
	return snapshot, sub, nil
}

// subscription implements store.Subscription over a Redis Pub/Sub channel.
type subscription struct {
	pubsub    *goredis.PubSub
	ch        chan store.Event
	closeOnce sync.Once
}

func (s *subscription) Events() <-chan store.Event {
	return s.ch
}

func (s *subscription) Close() {
	s.closeOnce.Do(func() {
		// Closing the PubSub closes its message channel, which ends run().
		_ = s.pubsub.Close()
	})
}

func (s *subscription) run() {
	defer close(s.ch)

	for msg := range s.pubsub.Channel() {
		ev, err := decodeEvent(msg.Payload)
		if err != nil {
			slog.Warn("Dropping malformed change event", "error", err)
			continue
		}
		select {
		case s.ch <- ev:
		default:
			// Slow consumer: drop rather than stall the Pub/Sub reader. A
			// later event for the same item carries its absolute score, so
			// trackers self-correct.
			slog.Warn("Dropping change event for slow subscriber")
		}
	}
}

// --- Wire format ---

// wireEvent is the JSON payload published by the mutation scripts.
type wireEvent struct {
	Type string    `json:"type"`
	Old  *wireItem `json:"old,omitempty"`
	New  *wireItem `json:"new,omitempty"`
}

type wireItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Score       int64    `json:"score"`
	CreatedBy   string   `json:"created_by"`
	CreatedAtMs int64    `json:"created_at_ms"`
	Voters      []string `json:"voters,omitempty"`
}

func (w *wireItem) toItem() (models.Item, error) {
	id, err := uuid.Parse(w.ID)
	if err != nil {
		return models.Item{}, fmt.Errorf("malformed item id %q: %w", w.ID, err)
	}
	createdBy, err := uuid.Parse(w.CreatedBy)
	if err != nil {
		return models.Item{}, fmt.Errorf("malformed creator id %q: %w", w.CreatedBy, err)
	}

	item := models.Item{
		ID:        id,
		Name:      w.Name,
		Score:     w.Score,
		CreatedBy: createdBy,
		CreatedAt: time.UnixMilli(w.CreatedAtMs).UTC(),
		Voters:    []uuid.UUID{},
	}
	for _, raw := range w.Voters {
		voter, err := uuid.Parse(raw)
		if err != nil {
			return models.Item{}, fmt.Errorf("malformed voter id %q: %w", raw, err)
		}
		item.Voters = append(item.Voters, voter)
	}
	return item, nil
}

func decodeEvent(payload string) (store.Event, error) {
	var ev wireEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal change event: %w", err)
	}

	switch ev.Type {
	case "added":
		if ev.New == nil {
			return nil, fmt.Errorf("added event missing snapshot")
		}
		item, err := ev.New.toItem()
		if err != nil {
			return nil, err
		}
		return store.ItemAdded{Item: item}, nil
	case "changed":
		if ev.Old == nil || ev.New == nil {
			return nil, fmt.Errorf("changed event missing snapshots")
		}
		oldItem, err := ev.Old.toItem()
		if err != nil {
			return nil, err
		}
		newItem, err := ev.New.toItem()
		if err != nil {
			return nil, err
		}
		return store.ItemChanged{Old: oldItem, New: newItem}, nil
	case "removed":
		if ev.Old == nil {
			return nil, fmt.Errorf("removed event missing snapshot")
		}
		item, err := ev.Old.toItem()
		if err != nil {
			return nil, err
		}
		return store.ItemRemoved{Item: item}, nil
	default:
		return nil, fmt.Errorf("unknown change event type %q", ev.Type)
	}
}

func itemFromHash(id uuid.UUID, fields map[string]string, voters []string) (models.Item, error) {
	score, err := strconv.ParseInt(fields["score"], 10, 64)
	if err != nil {
		return models.Item{}, fmt.Errorf("malformed score %q: %w", fields["score"], err)
	}
	createdBy, err := uuid.Parse(fields["created_by"])
	if err != nil {
		return models.Item{}, fmt.Errorf("malformed creator id %q: %w", fields["created_by"], err)
	}
	createdAtMs, err := strconv.ParseInt(fields["created_at_ms"], 10, 64)
	if err != nil {
		return models.Item{}, fmt.Errorf("malformed created_at_ms %q: %w", fields["created_at_ms"], err)
	}

	item := models.Item{
		ID:        id,
		Name:      fields["name"],
		Score:     score,
		CreatedBy: createdBy,
		CreatedAt: time.UnixMilli(createdAtMs).UTC(),
		Voters:    []uuid.UUID{},
	}
	for _, raw := range voters {
		voter, err := uuid.Parse(raw)
		if err != nil {
			return models.Item{}, fmt.Errorf("malformed voter id %q: %w", raw, err)
		}
		item.Voters = append(item.Voters, voter)
	}
	return item, nil
}

// mapScriptError converts the mutation scripts' error replies to store
// sentinels; anything else is a transport failure.
func mapScriptError(err error, op string) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "item_not_found"):
		return store.ErrItemNotFound
	case strings.Contains(msg, "item_exists"):
		return store.ErrItemExists
	case strings.Contains(msg, "already_voted"):
		return store.ErrAlreadyVoted
	case strings.Contains(msg, "no_active_vote"):
		return store.ErrNoActiveVote
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}
