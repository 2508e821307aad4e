package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podiumlive/podium/internal/domain"
)

var errSendFailed = errors.New("send failed")

type fakeConn struct {
	frames []Frame
	fail   bool
}

func (f *fakeConn) TrySend(fr Frame) error {
	if f.fail {
		return errSendFailed
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {}

func newSession(id domain.UserID, name string, conn SignalConnection) MemberSession {
	user := &domain.User{ID: id, DisplayName: name}
	return NewMemberSession(domain.NewMember(user, domain.RoleDebater)).UpdateSignal(conn)
}

func TestRoom_RosterFollowsJoinLeave(t *testing.T) {
	room := NewRoomService(&domain.Room{ID: "R1"})

	room.AddMember("s1", newSession("alice", "Alice", &fakeConn{}))
	room.AddMember("s2", newSession("bob", "Bob", &fakeConn{}))
	room.AddMember("s3", newSession("carol", "Carol", &fakeConn{}))
	assert.Equal(t, []domain.UserID{"alice", "bob", "carol"}, room.Roster())

	room.RemoveMember("s2")
	assert.Equal(t, []domain.UserID{"alice", "carol"}, room.Roster())
	assert.Equal(t, 2, room.MemberCount())

	// Removing an unknown session is a silent no-op.
	room.RemoveMember("nope")
	assert.Equal(t, 2, room.MemberCount())
}

func TestRoom_DuplicateJoinReconciles(t *testing.T) {
	room := NewRoomService(&domain.Room{ID: "R1"})

	room.AddMember("s1", newSession("alice", "Alice", &fakeConn{}))
	evicted, ok := room.AddMember("s2", newSession("alice", "Alice", &fakeConn{}))
	require.True(t, ok)
	assert.Equal(t, SessionID("s1"), evicted)

	assert.Equal(t, 1, room.MemberCount())
	assert.Equal(t, []domain.UserID{"alice"}, room.Roster())

	// Same sid joining twice does not double anything either.
	evicted, _ = room.AddMember("s2", newSession("alice", "Alice", &fakeConn{}))
	assert.Empty(t, evicted)
	assert.Equal(t, 1, room.MemberCount())

	// The stale sid's late disconnect must not drop the live membership.
	room.RemoveMember("s1")
	assert.Equal(t, 1, room.MemberCount())
	assert.Equal(t, []domain.UserID{"alice"}, room.Roster())
}

func TestRoom_SameSessionNewIdentityReplacesOld(t *testing.T) {
	room := NewRoomService(&domain.Room{ID: "R1"})
	room.AddMember("s1", newSession("u-old", "Old", &fakeConn{}))
	room.AddMember("s2", newSession("bob", "Bob", &fakeConn{}))
	room.UpdatePresence("u-old", func(p *domain.PresenceStatus) { p.IsRaised = true })

	// The sid is the stable cookie; the client may regenerate its userId.
	evicted, ok := room.AddMember("s1", newSession("u-new", "New", &fakeConn{}))
	require.True(t, ok)
	assert.Empty(t, evicted)

	assert.Equal(t, []domain.UserID{"bob", "u-new"}, room.Roster())
	assert.Equal(t, 2, room.MemberCount())
	_, ok = room.SessionByUser("u-old")
	assert.False(t, ok)
	_, ok = room.Presence("u-old")
	assert.False(t, ok)

	// The retired identity joining from another sid is a fresh member,
	// not an eviction of the live session.
	evicted, _ = room.AddMember("s9", newSession("u-old", "Old", &fakeConn{}))
	assert.Empty(t, evicted)
	assert.Equal(t, []domain.UserID{"bob", "u-new", "u-old"}, room.Roster())
	assert.Equal(t, 3, room.MemberCount())
}

func TestRoom_FirstJoinerHosts(t *testing.T) {
	room := NewRoomService(&domain.Room{ID: "R1"})
	room.AddMember("s1", newSession("alice", "Alice", &fakeConn{}))
	room.AddMember("s2", newSession("bob", "Bob", &fakeConn{}))
	assert.Equal(t, domain.UserID("alice"), room.Room().HostID)
}

func TestRoom_BroadcastSenderExclusion(t *testing.T) {
	room := NewRoomService(&domain.Room{ID: "R1"})
	a, b := &fakeConn{}, &fakeConn{}
	room.AddMember("s1", newSession("alice", "Alice", a))
	room.AddMember("s2", newSession("bob", "Bob", b))

	res := room.Broadcast("s1", Frame("x"))
	assert.Equal(t, 1, res.SentTo)
	assert.Empty(t, a.frames)
	assert.Len(t, b.frames, 1)

	res = room.BroadcastAll(Frame("y"))
	assert.Equal(t, 2, res.SentTo)
	assert.Len(t, a.frames, 1)
	assert.Len(t, b.frames, 2)
}

func TestRoom_BroadcastReportsDropped(t *testing.T) {
	room := NewRoomService(&domain.Room{ID: "R1"})
	slow := &fakeConn{fail: true}
	room.AddMember("s1", newSession("alice", "Alice", &fakeConn{}))
	room.AddMember("s2", newSession("bob", "Bob", slow))

	res := room.BroadcastAll(Frame("x"))
	assert.Equal(t, 1, res.SentTo)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, domain.UserID("bob"), res.Dropped[0].Meta().User.ID)
}

func TestRoom_PresencePartialUpdate(t *testing.T) {
	room := NewRoomService(&domain.Room{ID: "R1"})
	room.AddMember("s1", newSession("alice", "Alice", &fakeConn{}))

	st, ok := room.UpdatePresence("alice", func(p *domain.PresenceStatus) {
		p.IsMuted = true
		p.IsStreaming = true
	})
	require.True(t, ok)
	assert.True(t, st.IsMuted)

	// Speaking update must not clobber mute/stream flags.
	st, ok = room.UpdatePresence("alice", func(p *domain.PresenceStatus) {
		p.IsSpeaking = true
		p.LastVolume = 0.42
	})
	require.True(t, ok)
	assert.True(t, st.IsMuted)
	assert.True(t, st.IsStreaming)
	assert.True(t, st.IsSpeaking)
	assert.InDelta(t, 0.42, st.LastVolume, 1e-9)

	// No cross-user creation for strangers.
	_, ok = room.UpdatePresence("ghost", func(p *domain.PresenceStatus) { p.IsRaised = true })
	assert.False(t, ok)
}

func TestRoom_PresenceClearedOnLeave(t *testing.T) {
	room := NewRoomService(&domain.Room{ID: "R1"})
	room.AddMember("s1", newSession("alice", "Alice", &fakeConn{}))
	room.UpdatePresence("alice", func(p *domain.PresenceStatus) { p.IsRaised = true })

	room.RemoveMember("s1")
	_, ok := room.Presence("alice")
	assert.False(t, ok)
}

func TestRoom_StartDebateDefaultsToDebaters(t *testing.T) {
	room := NewRoomService(&domain.Room{ID: "R1"})
	room.AddMember("s1", newSession("alice", "Alice", &fakeConn{}))
	spect := NewMemberSession(domain.NewMember(&domain.User{ID: "eve", DisplayName: "Eve"}, domain.RoleSpectator)).UpdateSignal(&fakeConn{})
	room.AddMember("s2", spect)
	room.AddMember("s3", newSession("bob", "Bob", &fakeConn{}))

	st := room.StartDebate(nil, time.Now())
	assert.Equal(t, []domain.UserID{"alice", "bob"}, st.SpeakingOrder)
}

func TestRoomManager_DropIfEmpty(t *testing.T) {
	mgr := NewRoomManager()
	room := mgr.GetOrCreate("R1")
	room.AddMember("s1", newSession("alice", "Alice", &fakeConn{}))

	assert.False(t, mgr.DropIfEmpty("R1"), "occupied room must stay")

	room.RemoveMember("s1")
	assert.True(t, mgr.DropIfEmpty("R1"))
	_, ok := mgr.Get("R1")
	assert.False(t, ok)
	assert.Equal(t, 0, mgr.Count())

	assert.False(t, mgr.DropIfEmpty("R1"), "already gone")
}
