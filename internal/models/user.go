package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered identity. There are no credentials; the service only
// needs a stable opaque id per caller.
type User struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}
