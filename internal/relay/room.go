package relay

import (
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicemesh/internal/core"
	"github.com/dkeye/voicemesh/internal/domain"
)

// Member binds a participant identity to its signal connection.
type Member struct {
	Ref    domain.ParticipantRef
	Signal core.SignalConnection
}

// PublishResult reports delivery stats and backpressure for a fan-out.
type PublishResult struct {
	SendTo  int
	Dropped []domain.SessionID
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"client_count"`
}

// Room is a threadsafe in-memory member set.
// It never closes adapter-owned resources.
type Room struct {
	room  *domain.Room
	mu    sync.RWMutex
	bySID map[domain.SessionID]*Member
}

func newRoom(id domain.RoomID) *Room {
	return &Room{
		room:  &domain.Room{ID: id},
		bySID: make(map[domain.SessionID]*Member),
	}
}

func (r *Room) ID() domain.RoomID { return r.room.ID }

func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *Room) Add(m *Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySID[m.Ref.SessionID] = m
	log.Info().Str("module", "relay.room").Str("room", string(r.room.ID)).Str("sid", string(m.Ref.SessionID)).Str("user", string(m.Ref.UserID)).Msg("member added")
}

// Remove reports the member that was removed and how many remain.
func (r *Room) Remove(sid domain.SessionID) (*Member, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.bySID[sid]
	if ok {
		delete(r.bySID, sid)
		log.Info().Str("module", "relay.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Msg("member removed")
	}
	return m, len(r.bySID)
}

func (r *Room) Member(sid domain.SessionID) (*Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.bySID[sid]
	return m, ok
}

// Snapshot lists every member ordered by session id.
func (r *Room) Snapshot() []domain.ParticipantRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ParticipantRef, 0, len(r.bySID))
	for _, m := range r.bySID {
		out = append(out, m.Ref)
	}
	slices.SortFunc(out, func(a, b domain.ParticipantRef) int {
		switch {
		case a.SessionID < b.SessionID:
			return -1
		case a.SessionID > b.SessionID:
			return 1
		}
		return 0
	})
	return out
}

// Broadcast sends data to every member except from.
func (r *Room) Broadcast(from domain.SessionID, data core.Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for sid, m := range r.bySID {
		if sid == from {
			continue
		}
		if err := m.Signal.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, sid)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "relay.room").Str("from", string(from)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
