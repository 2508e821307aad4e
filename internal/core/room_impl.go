package core

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/podiumlive/podium/internal/domain"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	room *domain.Room

	mu       sync.RWMutex
	bySID    map[SessionID]MemberSession
	byUser   map[domain.UserID]SessionID
	order    []domain.UserID // join order, drives roster snapshots
	presence map[domain.UserID]*domain.PresenceStatus
	debate   *domain.DebateState
}

func NewRoomService(room *domain.Room) RoomService {
	return &roomImpl{
		room:     room,
		bySID:    make(map[SessionID]MemberSession),
		byUser:   make(map[domain.UserID]SessionID),
		presence: make(map[domain.UserID]*domain.PresenceStatus),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomImpl) AddMember(sid SessionID, ms MemberSession) (SessionID, bool) {
	u := ms.Meta().User.ID
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted SessionID
	if old, ok := r.byUser[u]; ok && old != sid {
		// Stale rejoin: the same user holds an older session. Reconcile
		// to a single membership.
		delete(r.bySID, old)
		evicted = old
	}
	if prev, ok := r.bySID[sid]; ok {
		// The same connection re-joining under a new identity retires
		// the old one; the roster must not keep a ghost.
		if pu := prev.Meta().User.ID; pu != u {
			if cur, ok := r.byUser[pu]; ok && cur == sid {
				r.dropUser(pu)
			}
		}
	}
	if !r.contains(u) {
		r.order = append(r.order, u)
	}
	r.bySID[sid] = ms
	r.byUser[u] = sid
	if r.room.HostID == "" {
		// First joiner hosts; authority checks compare against this,
		// never against the caller's self-report.
		r.room.HostID = u
		r.room.StartedAt = time.Now()
	}
	log.Info().Str("module", "core.room").Str("sid", string(sid)).Str("user", string(u)).Msg("member added")
	return evicted, true
}

// contains assumes r.mu is held.
func (r *roomImpl) contains(u domain.UserID) bool {
	for _, id := range r.order {
		if id == u {
			return true
		}
	}
	return false
}

func (r *roomImpl) RemoveMember(sid SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms, ok := r.bySID[sid]
	if !ok {
		return
	}
	u := ms.Meta().User.ID
	delete(r.bySID, sid)
	// Only drop the user when this sid still owns the membership;
	// a reconciled rejoin keeps the newer session.
	if cur, ok := r.byUser[u]; ok && cur == sid {
		r.dropUser(u)
	}
	log.Info().Str("module", "core.room").Str("sid", string(sid)).Msg("member removed")
}

// dropUser assumes r.mu is held and that the caller verified ownership.
func (r *roomImpl) dropUser(u domain.UserID) {
	delete(r.byUser, u)
	delete(r.presence, u)
	for i, id := range r.order {
		if id == u {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *roomImpl) SessionByUser(id domain.UserID) (MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.byUser[id]
	if !ok {
		return nil, false
	}
	ms, ok := r.bySID[sid]
	return ms, ok
}

func (r *roomImpl) Roster() []domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.UserID, len(r.order))
	copy(out, r.order)
	return out
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberDTO, 0, len(r.order))
	for _, uid := range r.order {
		sid, ok := r.byUser[uid]
		if !ok {
			continue
		}
		m := r.bySID[sid].Meta()
		out = append(out, MemberDTO{ID: m.User.ID, DisplayName: m.User.DisplayName, Role: m.Role})
	}
	return out
}

func (r *roomImpl) Broadcast(from SessionID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fanOut(from, true, data)
}

func (r *roomImpl) BroadcastAll(data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fanOut("", false, data)
}

// fanOut assumes r.mu is held for reading.
func (r *roomImpl) fanOut(from SessionID, skipSender bool, data Frame) PublishResult {
	res := PublishResult{}
	for sid, m := range r.bySID {
		if skipSender && sid == from {
			continue
		}
		sig := m.Signal()
		if sig == nil {
			continue
		}
		if err := sig.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.room").Str("from", string(from)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) Presence(id domain.UserID) (domain.PresenceStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.presence[id]
	if !ok {
		return domain.PresenceStatus{}, false
	}
	return *p, true
}

// UpdatePresence applies a partial mutation to one user's status entry,
// lazily creating it with defaults. Only the owning user's connection
// should reach this; the adapter enforces that scoping.
func (r *roomImpl) UpdatePresence(id domain.UserID, apply func(*domain.PresenceStatus)) (domain.PresenceStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUser[id]; !ok {
		return domain.PresenceStatus{}, false
	}
	p, ok := r.presence[id]
	if !ok {
		p = &domain.PresenceStatus{}
		r.presence[id] = p
	}
	apply(p)
	return *p, true
}

func (r *roomImpl) Debate() (domain.DebateState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.debate == nil {
		return domain.DebateState{}, false
	}
	return *r.debate, true
}

func (r *roomImpl) StartDebate(order []domain.UserID, now time.Time) domain.DebateState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(order) == 0 {
		// Default to the debater-role members in join order.
		for _, uid := range r.order {
			if sid, ok := r.byUser[uid]; ok {
				if r.bySID[sid].Meta().Role == domain.RoleDebater {
					order = append(order, uid)
				}
			}
		}
	}
	st := NewDebateState(order, now)
	r.debate = &st
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Int("speakers", len(order)).Msg("debate started")
	return st
}

func (r *roomImpl) AdvanceTurn(now time.Time) (domain.DebateState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.debate == nil {
		return domain.DebateState{}, false
	}
	st, ok := NextTurn(*r.debate, now)
	if ok {
		*r.debate = st
	}
	return st, ok
}

func (r *roomImpl) AdvancePhase() (domain.DebateState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.debate == nil || r.debate.Phase == domain.PhaseCompleted {
		return domain.DebateState{}, false
	}
	r.debate.Phase = r.debate.Phase.Next()
	return *r.debate, true
}

func (r *roomImpl) EndDebate() (domain.DebateState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.debate == nil {
		return domain.DebateState{}, false
	}
	r.debate.Phase = domain.PhaseCompleted
	return *r.debate, true
}
