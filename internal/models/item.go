package models

import (
	"time"

	"github.com/google/uuid"
)

// VoteDirection is the direction of a cast vote.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// Valid reports whether the direction is one of the two known values.
func (d VoteDirection) Valid() bool {
	return d == VoteUp || d == VoteDown
}

// Delta returns the score change this direction implies.
func (d VoteDirection) Delta() int64 {
	if d == VoteDown {
		return -1
	}
	return 1
}

// Item is a votable entry on the board. Voters holds the ids of users with an
// active vote on the item, membership only. The direction of each vote is
// not recorded.
type Item struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Score     int64       `json:"score"`
	CreatedBy uuid.UUID   `json:"createdBy"`
	CreatedAt time.Time   `json:"createdAt"`
	Voters    []uuid.UUID `json:"voters"`
}

// HasVoter reports whether userID has an active vote on the item.
func (i Item) HasVoter(userID uuid.UUID) bool {
	for _, v := range i.Voters {
		if v == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so snapshots handed to observers can never alias
// store-internal state.
func (i Item) Clone() Item {
	cp := i
	if i.Voters != nil {
		cp.Voters = make([]uuid.UUID, len(i.Voters))
		copy(cp.Voters, i.Voters)
	}
	return cp
}
