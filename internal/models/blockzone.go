package models

import (
	"time"

	"github.com/google/uuid"
)

// BlockOutZone marks a set of desks unavailable for a period of time, for
// example during construction. Deleting a zone removes only the zone and its
// desk associations, never the desks.
type BlockOutZone struct {
	ID   uuid.UUID
	Name string
	Span

	DeskIDs []uuid.UUID

	Reason    string
	CreatedBy string
	CreatedAt time.Time
}

// Covers reports whether the zone includes the given desk.
func (z *BlockOutZone) Covers(deskID uuid.UUID) bool {
	for _, id := range z.DeskIDs {
		if id == deskID {
			return true
		}
	}
	return false
}
