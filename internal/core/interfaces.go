package core

import (
	"time"

	"github.com/podiumlive/podium/internal/domain"
)

// Frame is an encoded message ready for the wire.
type Frame []byte

type SessionID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MemberSession binds domain.Member and its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	Meta() *domain.Member
	Signal() SignalConnection
	UpdateSignal(SignalConnection) MemberSession
}

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SentTo  int
	Dropped []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID          domain.UserID `json:"id"`
	DisplayName string        `json:"displayName"`
	Role        domain.Role   `json:"role"`
}

// RoomService is the core-facing API of a room.
// It owns membership, presence and debate state but never touches
// transport resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	Roster() []domain.UserID
	MembersSnapshot() []MemberDTO

	// AddMember registers a session. If the same user is already present
	// under another session (stale rejoin), that session id is returned
	// so the caller can cancel it; membership never doubles.
	AddMember(sid SessionID, ms MemberSession) (evicted SessionID, ok bool)
	RemoveMember(sid SessionID)
	SessionByUser(id domain.UserID) (MemberSession, bool)

	Broadcast(from SessionID, data Frame) PublishResult
	BroadcastAll(data Frame) PublishResult

	Presence(id domain.UserID) (domain.PresenceStatus, bool)
	UpdatePresence(id domain.UserID, apply func(*domain.PresenceStatus)) (domain.PresenceStatus, bool)

	Debate() (domain.DebateState, bool)
	StartDebate(order []domain.UserID, now time.Time) domain.DebateState
	AdvanceTurn(now time.Time) (domain.DebateState, bool)
	AdvancePhase() (domain.DebateState, bool)
	EndDebate() (domain.DebateState, bool)
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
}

type RoomManager interface {
	GetOrCreate(id domain.RoomID) RoomService
	Get(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	Count() int
	StopRoom(id domain.RoomID)
	// DropIfEmpty removes the room the instant its member set is empty.
	DropIfEmpty(id domain.RoomID) bool
}
