// Package relay is the reference signaling relay. It owns rooms and the
// registry of connected sessions and forwards events between members
// without interpreting media.
package relay

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicemesh/internal/core"
	"github.com/dkeye/voicemesh/internal/domain"
	"github.com/dkeye/voicemesh/internal/signaling"
)

// Error codes sent to clients in signaling.Error.
const (
	CodeBadPayload    = "bad_payload"
	CodeRateLimited   = "rate_limited"
	CodeInvalidUser   = "invalid_user"
	CodeNotInRoom     = "not_in_room"
	CodeUnknownTarget = "unknown_target"
	CodeUnexpected    = "unexpected_event"
)

const defaultUsername = "guest"

type Config struct {
	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	PongWait     time.Duration `mapstructure:"pong_wait"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	JoinLimit    int           `mapstructure:"join_limit"`
	JoinInterval time.Duration `mapstructure:"join_interval"`
}

func DefaultConfig() Config {
	return Config{
		ReadLimit:    64 << 10,
		PingPeriod:   25 * time.Second,
		PongWait:     60 * time.Second,
		WriteTimeout: 5 * time.Second,
		SendBuffer:   64,
		JoinLimit:    5,
		JoinInterval: 10 * time.Second,
	}
}

var ErrUnknownSession = errors.New("relay: unknown session")

type client struct {
	sid    domain.SessionID
	key    string
	signal core.SignalConnection
	room   domain.RoomID
	ref    domain.ParticipantRef
}

// Hub routes frames between connected sessions.
type Hub struct {
	limiter *RateLimiter
	policy  Policy

	mu      sync.Mutex
	rooms   map[domain.RoomID]*Room
	clients map[domain.SessionID]*client
}

type Option func(*Hub)

func WithPolicy(p Policy) Option { return func(h *Hub) { h.policy = p } }

func NewHub(cfg Config, opts ...Option) *Hub {
	h := &Hub{
		limiter: NewRateLimiter(cfg.JoinLimit, cfg.JoinInterval),
		policy:  KickSlowPolicy{},
		rooms:   make(map[domain.RoomID]*Room),
		clients: make(map[domain.SessionID]*client),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Connect registers a new signal connection and assigns it a session id.
// key identifies the client across connections for rate limiting.
func (h *Hub) Connect(key string, sig core.SignalConnection) domain.SessionID {
	sid := domain.NewSessionID()
	h.mu.Lock()
	h.clients[sid] = &client{sid: sid, key: key, signal: sig}
	h.mu.Unlock()
	log.Info().Str("module", "relay").Str("sid", string(sid)).Str("client", key).Msg("session connected")
	return sid
}

// Disconnect counts as a leave for the session's room.
func (h *Hub) Disconnect(sid domain.SessionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[sid]
	if !ok {
		return
	}
	h.leaveLocked(c)
	delete(h.clients, sid)
	log.Info().Str("module", "relay").Str("sid", string(sid)).Msg("session disconnected")
}

// Dispatch handles one raw frame from sid.
func (h *Hub) Dispatch(sid domain.SessionID, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[sid]
	if !ok {
		return ErrUnknownSession
	}

	ev, err := signaling.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "relay").Str("sid", string(sid)).Msg("bad frame")
		h.sendError(c, CodeBadPayload, err.Error())
		return nil
	}

	switch e := ev.(type) {
	case signaling.Join:
		h.joinLocked(c, e)
	case signaling.Leave:
		h.leaveLocked(c)
	case signaling.Offer:
		h.forwardLocked(c, e)
	case signaling.Answer:
		h.forwardLocked(c, e)
	case signaling.Candidate:
		h.forwardLocked(c, e)
	case signaling.MuteChanged:
		h.broadcastLocked(c, e)
	case signaling.ScreenShareStarted:
		h.broadcastLocked(c, e)
	case signaling.ScreenShareStopped:
		h.broadcastLocked(c, e)
	case signaling.Roster, signaling.MemberJoined, signaling.MemberLeft, signaling.Error:
		h.sendError(c, CodeUnexpected, string(ev.Type())+" is relay-only")
	default:
		h.sendError(c, CodeUnexpected, string(ev.Type()))
	}
	return nil
}

func (h *Hub) joinLocked(c *client, j signaling.Join) {
	if !h.limiter.Allow(c.key) {
		log.Warn().Str("module", "relay").Str("sid", string(c.sid)).Msg("join rate limited")
		h.sendError(c, CodeRateLimited, "too many joins")
		return
	}
	ref, err := participantFor(c.sid, j)
	if err != nil {
		h.sendError(c, CodeInvalidUser, err.Error())
		return
	}
	if c.room != "" {
		h.leaveLocked(c)
	}

	room, ok := h.rooms[j.RoomID]
	if !ok {
		room = newRoom(j.RoomID)
		h.rooms[j.RoomID] = room
		log.Info().Str("module", "relay").Str("room", string(j.RoomID)).Msg("room created")
	}
	room.Add(&Member{Ref: ref, Signal: c.signal})
	c.room, c.ref = j.RoomID, ref

	h.send(c, signaling.Roster{Self: c.sid, RoomID: j.RoomID, Members: room.Snapshot()})
	h.publish(room, c.sid, signaling.MemberJoined{ParticipantRef: ref})
}

func (h *Hub) leaveLocked(c *client) {
	if c.room == "" {
		return
	}
	room, ok := h.rooms[c.room]
	c.room = ""
	if !ok {
		return
	}
	if _, left := room.Remove(c.sid); left == 0 {
		delete(h.rooms, room.ID())
		log.Info().Str("module", "relay").Str("room", string(room.ID())).Msg("room destroyed")
		return
	}
	h.publish(room, c.sid, signaling.MemberLeft{ParticipantRef: c.ref})
}

func (h *Hub) forwardLocked(c *client, ev signaling.Targeted) {
	room, ok := h.rooms[c.room]
	if c.room == "" || !ok {
		h.sendError(c, CodeNotInRoom, "join a room first")
		return
	}
	target, ok := room.Member(ev.Target())
	if !ok {
		h.sendError(c, CodeUnknownTarget, string(ev.Target()))
		return
	}
	data, err := signaling.Encode(ev.Stamped(c.sid))
	if err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("encode forward")
		return
	}
	if err := target.Signal.TrySend(data); err != nil {
		log.Warn().Err(err).Str("module", "relay").Str("from", string(c.sid)).Str("to", string(ev.Target())).Msg("forward dropped")
	}
}

func (h *Hub) broadcastLocked(c *client, ev signaling.Broadcast) {
	room, ok := h.rooms[c.room]
	if c.room == "" || !ok {
		h.sendError(c, CodeNotInRoom, "join a room first")
		return
	}
	h.publish(room, c.sid, ev.Stamped(c.sid, c.ref.UserID))
}

func (h *Hub) publish(room *Room, from domain.SessionID, ev signaling.Event) {
	data, err := signaling.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("encode broadcast")
		return
	}
	res := room.Broadcast(from, data)
	if len(res.Dropped) == 0 {
		return
	}
	log.Warn().Str("module", "relay").Str("type", string(ev.Type())).Int("dropped", len(res.Dropped)).Msg("broadcast backpressure")
	for _, sid := range res.Dropped {
		if h.policy.OnBackPressure(room.ID(), sid) != KickMember {
			continue
		}
		if c, ok := h.clients[sid]; ok {
			log.Warn().Str("module", "relay").Str("sid", string(sid)).Msg("kicking slow member")
			// the transport reports the disconnect once the read side unblocks
			c.signal.Close()
		}
	}
}

func (h *Hub) send(c *client, ev signaling.Event) {
	data, err := signaling.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("encode")
		return
	}
	if err := c.signal.TrySend(data); err != nil {
		log.Warn().Err(err).Str("module", "relay").Str("sid", string(c.sid)).Str("type", string(ev.Type())).Msg("send dropped")
	}
}

func (h *Hub) sendError(c *client, code, msg string) {
	h.send(c, signaling.Error{Code: code, Message: msg})
}

// Rooms lists live rooms.
func (h *Hub) Rooms() []RoomInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]RoomInfo, 0, len(h.rooms))
	for id, r := range h.rooms {
		out = append(out, RoomInfo{ID: id, MemberCount: r.MemberCount()})
	}
	return out
}

func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func participantFor(sid domain.SessionID, j signaling.Join) (domain.ParticipantRef, error) {
	u := &domain.User{ID: j.UserID}
	if u.ID == "" {
		u.ID = domain.UserID(uuid.NewString())
	}
	name := j.Username
	if name == "" {
		name = defaultUsername
	}
	if err := u.SetUsername(name); err != nil {
		return domain.ParticipantRef{}, err
	}
	if err := u.SetAvatar(j.AvatarRef); err != nil {
		return domain.ParticipantRef{}, err
	}
	return domain.RefFor(sid, u), nil
}
