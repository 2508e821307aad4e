package domain

import "time"

type RoomID string

// Room is coordination metadata only. Membership, presence and debate
// state live in the core room service that wraps it.
type Room struct {
	ID        RoomID
	HostID    UserID
	StartedAt time.Time
}
