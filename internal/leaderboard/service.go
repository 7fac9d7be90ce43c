// Package leaderboard implements the voting core: the vote service that
// validates and applies mutations, per-session live item views, and the
// incrementally maintained total-score aggregator.
package leaderboard

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	apperrors "github.com/StorytellerCZ/voteboard/internal/errors"
	"github.com/StorytellerCZ/voteboard/internal/metrics"
	"github.com/StorytellerCZ/voteboard/internal/models"
	"github.com/StorytellerCZ/voteboard/internal/store"
)

// Service validates and applies votes against an ItemStore. One vote per
// (user, item): the store enforces the voter-set membership check atomically
// with the score mutation, so concurrent votes cannot race past it.
//
// Retraction takes the original direction from the caller: the voter set
// records membership only, not direction. Storing a per-voter direction map
// would make retraction self-describing; the membership set is kept to match
// the store's wire shape.
type Service struct {
	store store.ItemStore
	clock clockwork.Clock
}

func NewService(st store.ItemStore, clock clockwork.Clock) *Service {
	return &Service{store: st, clock: clock}
}

// AddItem creates a new item with score 0 and no voters, owned by userID.
func (s *Service) AddItem(ctx context.Context, userID uuid.UUID, name string) (uuid.UUID, error) {
	if userID == uuid.Nil {
		return uuid.Nil, apperrors.Unauthenticated("you must be logged in to add items")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.Nil, apperrors.InvalidInput("name is required")
	}

	item := models.Item{
		ID:        uuid.New(),
		Name:      name,
		Score:     0,
		CreatedBy: userID,
		CreatedAt: s.clock.Now().UTC(),
		Voters:    []uuid.UUID{},
	}

	if err := s.store.InsertItem(ctx, item); err != nil {
		return uuid.Nil, storeError("failed to insert item", err)
	}

	metrics.ItemsCreatedTotal.Inc()
	slog.Info("Item added", "item_id", item.ID, "user_id", userID)
	return item.ID, nil
}

// Vote casts a vote for userID on itemID. Fails with AlreadyVoted if the
// user already has an active vote on the item, in either direction.
func (s *Service) Vote(ctx context.Context, itemID, userID uuid.UUID, direction models.VoteDirection) error {
	if userID == uuid.Nil {
		return apperrors.Unauthenticated("you must be logged in to vote")
	}
	if !direction.Valid() {
		return apperrors.InvalidInput("direction must be \"up\" or \"down\"")
	}

	item, err := s.store.ApplyVote(ctx, itemID, userID, direction.Delta())
	if err != nil {
		switch {
		case errors.Is(err, store.ErrItemNotFound):
			return apperrors.NotFound("item not found").WithField("item_id", itemID.String())
		case errors.Is(err, store.ErrAlreadyVoted):
			return apperrors.AlreadyVoted("you have already voted on this item").WithField("item_id", itemID.String())
		default:
			return storeError("failed to apply vote", err)
		}
	}

	metrics.VotesTotal.WithLabelValues(string(direction)).Inc()
	slog.Info("Vote applied", "item_id", itemID, "user_id", userID, "direction", direction, "score", item.Score)
	return nil
}

// RetractVote removes userID's active vote from itemID, applying the inverse
// delta. wasUpvote tells the service which direction to reverse.
func (s *Service) RetractVote(ctx context.Context, itemID, userID uuid.UUID, wasUpvote bool) error {
	if userID == uuid.Nil {
		return apperrors.Unauthenticated("you must be logged in to retract a vote")
	}

	delta := int64(1)
	if wasUpvote {
		delta = -1
	}

	item, err := s.store.RetractVote(ctx, itemID, userID, delta)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrItemNotFound):
			return apperrors.NotFound("item not found").WithField("item_id", itemID.String())
		case errors.Is(err, store.ErrNoActiveVote):
			return apperrors.NoActiveVote("you have not voted on this item").WithField("item_id", itemID.String())
		default:
			return storeError("failed to retract vote", err)
		}
	}

	metrics.VotesRetractedTotal.Inc()
	slog.Info("Vote retracted", "item_id", itemID, "user_id", userID, "score", item.Score)
	return nil
}

// Items returns a one-shot sorted snapshot for the given scope.
func (s *Service) Items(ctx context.Context, userID uuid.UUID, scope ItemScope) ([]models.Item, error) {
	if userID == uuid.Nil {
		return nil, apperrors.Unauthenticated("you must be logged in to list items")
	}
	if !scope.Valid() {
		return nil, apperrors.InvalidInput("scope must be \"all\" or \"mine\"")
	}

	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, storeError("failed to list items", err)
	}

	filtered := items[:0]
	for _, item := range items {
		if scope.includes(item, userID) {
			filtered = append(filtered, item)
		}
	}
	scope.sort(filtered)
	return filtered, nil
}

// TotalScore returns the current sum of all item scores via a full scan.
// Returns 0 for an empty store.
func (s *Service) TotalScore(ctx context.Context) (int64, error) {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return 0, storeError("failed to list items", err)
	}

	var total int64
	for _, item := range items {
		total += item.Score
	}
	return total, nil
}

// SubscribeItems starts a live view session for the given scope. The view
// emits a full sorted snapshot on start and after every relevant change.
// Close the view to end the session.
func (s *Service) SubscribeItems(ctx context.Context, userID uuid.UUID, scope ItemScope) (*ItemView, error) {
	if userID == uuid.Nil {
		return nil, apperrors.Unauthenticated("you must be logged in to subscribe")
	}
	if !scope.Valid() {
		return nil, apperrors.InvalidInput("scope must be \"all\" or \"mine\"")
	}

	snapshot, sub, err := s.store.Watch(ctx)
	if err != nil {
		return nil, storeError("failed to watch store", err)
	}
	return newItemView(snapshot, sub, userID, scope), nil
}

// SubscribeTotal starts a totalizer session: the initial emission is the
// current sum over all items, and every subsequent emission is the new
// absolute total after an observed change. Close the totalizer to end the
// session.
func (s *Service) SubscribeTotal(ctx context.Context) (*Totalizer, error) {
	snapshot, sub, err := s.store.Watch(ctx)
	if err != nil {
		return nil, storeError("failed to watch store", err)
	}
	return newTotalizer(snapshot, sub), nil
}

// storeError wraps backend failures. Store sentinels never reach here; what
// remains is connectivity-shaped and surfaced as StoreUnavailable so the
// caller's retry layer can distinguish it from semantic failures.
func storeError(message string, err error) *apperrors.Error {
	return apperrors.StoreUnavailable(message, err)
}
