// Package mesh keeps one peer session per remote room member and reacts to
// relay events. Every Coordinator method must run on the event loop.
package mesh

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicemesh/internal/core"
	"github.com/dkeye/voicemesh/internal/domain"
	"github.com/dkeye/voicemesh/internal/peer"
	"github.com/dkeye/voicemesh/internal/remote"
	"github.com/dkeye/voicemesh/internal/signaling"
)

// maxEarlyCandidates caps memory held per peer without a session. Real
// peers gather far fewer.
const maxEarlyCandidates = 256

var ErrAlreadyJoined = errors.New("mesh: already in a room")

type Deps struct {
	Scheduler  core.Scheduler
	Relay      core.Relay
	Transports core.TransportFactory
	Capture    LocalMedia
	Remote     RemoteAudio
	User       *domain.User
	Peer       peer.Config
}

type Coordinator struct {
	sched      core.Scheduler
	relay      core.Relay
	transports core.TransportFactory
	capture    LocalMedia
	remote     RemoteAudio
	user       *domain.User
	peerCfg    peer.Config
	log        zerolog.Logger

	self   domain.SessionID
	room   domain.RoomID
	joined bool

	roster          map[domain.SessionID]domain.ParticipantRef
	sessions        map[domain.SessionID]*peer.Session
	earlyCandidates map[domain.SessionID][]webrtc.ICECandidateInit
	generation      uint64
	// departed members stay here until the relay announces them again, so
	// late offers and candidates from them are dropped.
	departed map[domain.SessionID]struct{}
	// replaced marks peers whose failed session was already replaced once.
	replaced map[domain.SessionID]struct{}

	screen        webrtc.TrackLocal
	muted         bool
	localSpeaking bool

	listeners []Listener
}

func New(d Deps) *Coordinator {
	c := &Coordinator{
		sched:           d.Scheduler,
		relay:           d.Relay,
		transports:      d.Transports,
		capture:         d.Capture,
		remote:          d.Remote,
		user:            d.User,
		peerCfg:         d.Peer,
		log:             log.With().Str("module", "mesh").Logger(),
		roster:          make(map[domain.SessionID]domain.ParticipantRef),
		sessions:        make(map[domain.SessionID]*peer.Session),
		earlyCandidates: make(map[domain.SessionID][]webrtc.ICECandidateInit),
		departed:        make(map[domain.SessionID]struct{}),
		replaced:        make(map[domain.SessionID]struct{}),
	}
	c.capture.OnSpeakingChanged(func(speaking bool) {
		c.sched.Post(func() { c.setLocalSpeaking(speaking) })
	})
	c.remote.OnSpeakingChanged(func(p domain.SessionID, speaking bool) {
		c.sched.Post(func() { c.setRemoteSpeaking(p, speaking) })
	})
	return c
}

// Subscribe registers l for every notification.
func (c *Coordinator) Subscribe(l Listener) { c.listeners = append(c.listeners, l) }

func (c *Coordinator) notify(n Notification) {
	for _, l := range c.listeners {
		l(n)
	}
}

// Join starts capture and asks the relay to admit us to room. The roster
// reply drives session creation.
func (c *Coordinator) Join(ctx context.Context, room domain.RoomID) error {
	if room == "" {
		return signaling.ErrMissingRoom
	}
	if c.room != "" {
		return ErrAlreadyJoined
	}
	if _, err := c.capture.Start(ctx); err != nil {
		return err
	}
	c.room = room
	c.log.Info().Str("room", string(room)).Msg("joining")
	c.sendJoin()
	return nil
}

func (c *Coordinator) sendJoin() {
	c.send(signaling.Join{
		RoomID:    c.room,
		UserID:    c.user.ID,
		Username:  c.user.Username,
		AvatarRef: c.user.AvatarRef,
	})
}

// Leave closes every session, stops capture and tells the relay.
func (c *Coordinator) Leave() error {
	if c.room == "" {
		return core.ErrNotInRoom
	}
	c.log.Info().Str("room", string(c.room)).Msg("leaving")
	c.teardown(nil)
	c.capture.Stop()
	if c.joined {
		c.send(signaling.Leave{})
	}
	c.room = ""
	c.joined = false
	c.self = ""
	c.screen = nil
	c.notify(Notification{Kind: KindLeft})
	return nil
}

// Handle dispatches one relay event.
func (c *Coordinator) Handle(ev signaling.Event) {
	switch e := ev.(type) {
	case signaling.Roster:
		c.handleRoster(e)
	case signaling.MemberJoined:
		c.handleMemberJoined(e.ParticipantRef)
	case signaling.MemberLeft:
		c.handleMemberLeft(e.SessionID)
	case signaling.Offer:
		c.handleOffer(e)
	case signaling.Answer:
		c.handleAnswer(e)
	case signaling.Candidate:
		c.handleCandidate(e)
	case signaling.MuteChanged:
		c.handleMuteBroadcast(e)
	case signaling.ScreenShareStarted:
		c.handleScreenShareBroadcast(e.SessionID, true)
	case signaling.ScreenShareStopped:
		c.handleScreenShareBroadcast(e.SessionID, false)
	case signaling.Error:
		err := fmt.Errorf("relay error %s: %s", e.Code, e.Message)
		c.log.Warn().Err(err).Msg("relay refused request")
		c.notify(Notification{Kind: KindRelayError, Err: err})
	case signaling.Join, signaling.Leave:
		c.log.Warn().Str("type", string(e.Type())).Msg("client-only event from relay")
	default:
		c.log.Warn().Str("type", string(ev.Type())).Msg("unhandled event")
	}
}

func (c *Coordinator) handleRoster(r signaling.Roster) {
	if c.room == "" {
		c.log.Debug().Msg("roster while not joining, ignoring")
		return
	}
	c.self = r.Self
	c.joined = true

	next := make(map[domain.SessionID]domain.ParticipantRef, len(r.Members))
	for _, m := range r.Members {
		if m.SessionID != c.self && m.SessionID != "" {
			next[m.SessionID] = m
		}
	}
	for sid := range c.sessions {
		if _, ok := next[sid]; !ok {
			c.sessions[sid].Close(nil)
		}
	}
	c.roster = next
	clear(c.replaced)
	for sid := range next {
		delete(c.departed, sid)
	}
	c.log.Info().Str("self", string(c.self)).Int("members", len(next)).Msg("roster received")
	c.notify(Notification{Kind: KindJoined, Peer: c.self})

	if c.muted {
		c.send(signaling.MuteChanged{Value: true})
	}
	if c.screen != nil {
		c.send(signaling.ScreenShareStarted{})
	}
	for _, sid := range sortedIDs(next) {
		c.admit(sid)
	}
}

func (c *Coordinator) handleMemberJoined(ref domain.ParticipantRef) {
	if !c.joined || ref.SessionID == c.self || ref.SessionID == "" {
		return
	}
	c.roster[ref.SessionID] = ref
	delete(c.departed, ref.SessionID)
	delete(c.replaced, ref.SessionID)
	c.log.Info().Str("sid", string(ref.SessionID)).Str("user", ref.Username).Msg("member joined")
	c.admit(ref.SessionID)
}

// admit ensures a session exists and applies the initiator rule: only the
// side with the lower session id offers.
func (c *Coordinator) admit(sid domain.SessionID) {
	s := c.ensureSession(sid)
	if s != nil && c.self.Less(sid) {
		s.Connect()
	}
}

func (c *Coordinator) handleMemberLeft(sid domain.SessionID) {
	if sid == c.self {
		return
	}
	delete(c.roster, sid)
	delete(c.earlyCandidates, sid)
	delete(c.replaced, sid)
	if c.joined {
		c.departed[sid] = struct{}{}
	}
	if s, ok := c.sessions[sid]; ok {
		c.log.Info().Str("sid", string(sid)).Msg("member left")
		s.Close(nil)
	}
}

func (c *Coordinator) handleOffer(o signaling.Offer) {
	if !c.joined || o.From == "" {
		c.race(o.From, core.RaceStaleCompletion, errors.New("offer outside a room"))
		return
	}
	if _, gone := c.departed[o.From]; gone {
		c.race(o.From, core.RaceDepartedPeer, errors.New("offer from a member that left"))
		return
	}
	desc, err := o.Description.ToPion()
	if err != nil {
		c.log.Warn().Err(err).Str("sid", string(o.From)).Msg("bad offer")
		return
	}
	if _, ok := c.roster[o.From]; !ok {
		// offers can overtake member_joined
		c.roster[o.From] = domain.ParticipantRef{SessionID: o.From}
	}
	if s := c.ensureSession(o.From); s != nil {
		s.HandleOffer(desc)
	}
}

func (c *Coordinator) handleAnswer(a signaling.Answer) {
	s, ok := c.sessions[a.From]
	if !ok {
		c.race(a.From, core.RaceUnexpectedAnswer, core.ErrUnknownPeer)
		return
	}
	desc, err := a.Description.ToPion()
	if err != nil {
		c.log.Warn().Err(err).Str("sid", string(a.From)).Msg("bad answer")
		return
	}
	s.HandleAnswer(desc)
}

func (c *Coordinator) handleCandidate(cd signaling.Candidate) {
	if cd.From == "" || cd.From == c.self {
		return
	}
	init := cd.Candidate.ToPion()
	if s, ok := c.sessions[cd.From]; ok {
		s.HandleCandidate(init)
		return
	}
	if !c.joined {
		return
	}
	if _, gone := c.departed[cd.From]; gone {
		return
	}
	q := c.earlyCandidates[cd.From]
	if len(q) >= maxEarlyCandidates {
		c.race(cd.From, core.RaceCandidate, errors.New("early candidate queue full"))
		return
	}
	c.earlyCandidates[cd.From] = append(q, init)
}

func (c *Coordinator) handleMuteBroadcast(m signaling.MuteChanged) {
	s, ok := c.sessions[m.SessionID]
	if !ok {
		c.log.Debug().Str("sid", string(m.SessionID)).Msg("mute for unknown peer")
		return
	}
	s.SetRemoteMuted(m.Value)
	c.notify(Notification{Kind: KindRemoteMuted, Peer: m.SessionID, Value: m.Value})
}

func (c *Coordinator) handleScreenShareBroadcast(sid domain.SessionID, sharing bool) {
	s, ok := c.sessions[sid]
	if !ok {
		c.log.Debug().Str("sid", string(sid)).Msg("screen share for unknown peer")
		return
	}
	s.SetRemoteSharing(sharing)
	c.notify(Notification{Kind: KindRemoteSharing, Peer: sid, Value: sharing})
}

func (c *Coordinator) ensureSession(sid domain.SessionID) *peer.Session {
	if s, ok := c.sessions[sid]; ok {
		return s
	}
	t, err := c.transports(sid)
	if err != nil {
		c.log.Error().Err(err).Str("sid", string(sid)).Msg("create transport failed")
		return nil
	}
	c.generation++
	gen := c.generation
	s := peer.New(peer.Params{
		Local:      c.self,
		Remote:     sid,
		Generation: gen,
		Transport:  t,
		Relay:      c.relay,
		Scheduler:  c.sched,
		Config:     c.peerCfg,
		Hooks: peer.Hooks{
			OnStateChange: func(p domain.SessionID, _, to peer.State) {
				if to == peer.StateConnected {
					delete(c.replaced, p)
				}
				c.notify(Notification{Kind: KindPeerState, Peer: p, State: to})
			},
			OnRemoteTrack: c.onRemoteTrack,
			OnClosed: func(p domain.SessionID, reason error) {
				c.onSessionClosed(p, gen, reason)
			},
		},
	})
	c.sessions[sid] = s

	if track := c.capture.Track(); track != nil {
		s.AddTrack(domain.TrackAudio, track)
	}
	if c.screen != nil {
		s.AddTrack(domain.TrackScreen, c.screen)
	}
	if early := c.earlyCandidates[sid]; len(early) > 0 {
		delete(c.earlyCandidates, sid)
		for _, cand := range early {
			s.HandleCandidate(cand)
		}
	}

	c.notify(Notification{Kind: KindPeerAdded, Peer: sid, State: s.State()})
	return s
}

func (c *Coordinator) onRemoteTrack(p domain.SessionID, t core.RemoteTrack) {
	if t.Kind() != webrtc.RTPCodecTypeAudio {
		c.log.Info().Str("sid", string(p)).Str("track", t.ID()).Msg("remote screen track")
		return
	}
	if err := c.remote.Attach(p, t); err != nil {
		c.log.Error().Err(err).Str("sid", string(p)).Msg("attach remote audio failed")
		return
	}
	if s, ok := c.sessions[p]; ok {
		s.SetGain(c.remote.SetGain(p, s.Gain()))
	}
}

func (c *Coordinator) onSessionClosed(p domain.SessionID, gen uint64, reason error) {
	s, ok := c.sessions[p]
	if !ok || s.Generation() != gen {
		return
	}
	delete(c.sessions, p)
	c.remote.Detach(p)
	c.notify(Notification{Kind: KindPeerRemoved, Peer: p, Err: reason})

	var tf *core.TransportFailure
	if !errors.As(reason, &tf) || !c.joined {
		return
	}
	if _, member := c.roster[p]; !member {
		return
	}
	// one replacement per failure; a second failure before it connects
	// drops the peer until the relay announces it again
	if _, again := c.replaced[p]; again {
		c.log.Warn().Str("sid", string(p)).Msg("replacement session failed, giving up")
		delete(c.roster, p)
		delete(c.replaced, p)
		return
	}
	c.replaced[p] = struct{}{}
	c.log.Info().Str("sid", string(p)).Msg("replacing failed session")
	c.admit(p)
}

func (c *Coordinator) teardown(reason error) {
	for _, sid := range sortedIDs(c.sessions) {
		c.sessions[sid].Close(reason)
	}
	clear(c.roster)
	clear(c.earlyCandidates)
	clear(c.departed)
	clear(c.replaced)
}

// SetMuted gates the microphone and tells the room.
func (c *Coordinator) SetMuted(muted bool) {
	c.capture.SetMuted(muted)
	c.muted = muted
	if muted {
		c.setLocalSpeaking(false)
	}
	if c.joined {
		c.send(signaling.MuteChanged{Value: muted})
	}
}

// StartScreenShare adds track to every session and renegotiates.
func (c *Coordinator) StartScreenShare(track webrtc.TrackLocal) error {
	if !c.joined {
		return core.ErrNotInRoom
	}
	c.screen = track
	for _, sid := range sortedIDs(c.sessions) {
		c.sessions[sid].AddTrack(domain.TrackScreen, track)
	}
	c.send(signaling.ScreenShareStarted{})
	return nil
}

func (c *Coordinator) StopScreenShare() {
	if c.screen == nil {
		return
	}
	c.screen = nil
	for _, sid := range sortedIDs(c.sessions) {
		c.sessions[sid].RemoveTrack(domain.TrackScreen)
	}
	if c.joined {
		c.send(signaling.ScreenShareStopped{})
	}
}

// SetGain clamps g to [0, 5] and applies it to one peer's playback.
func (c *Coordinator) SetGain(sid domain.SessionID, g float64) (float64, error) {
	s, ok := c.sessions[sid]
	if !ok {
		return 0, core.ErrUnknownPeer
	}
	v := c.remote.SetGain(sid, remote.ClampGain(g))
	s.SetGain(v)
	return v, nil
}

// RelayLost tears down every session but keeps capture. A terminal loss
// also forgets the room.
func (c *Coordinator) RelayLost(err error, terminal bool) {
	rd := &core.RelayDisconnected{Err: err, Terminal: terminal}
	c.log.Warn().Err(rd).Msg("relay lost")
	c.teardown(rd)
	c.joined = false
	c.self = ""
	c.notify(Notification{Kind: KindRelayLost, Err: rd})
	if terminal {
		c.room = ""
		c.screen = nil
		c.notify(Notification{Kind: KindRelayTerminal, Err: rd})
	}
}

// RelayRestored re-joins the last room.
func (c *Coordinator) RelayRestored() {
	c.notify(Notification{Kind: KindRelayRestored})
	if c.room == "" {
		return
	}
	c.log.Info().Str("room", string(c.room)).Msg("relay restored, rejoining")
	c.sendJoin()
}

func (c *Coordinator) setLocalSpeaking(v bool) {
	if c.muted {
		v = false
	}
	if v == c.localSpeaking {
		return
	}
	c.localSpeaking = v
	c.notify(Notification{Kind: KindLocalSpeaking, Peer: c.self, Value: v})
}

func (c *Coordinator) setRemoteSpeaking(p domain.SessionID, v bool) {
	s, ok := c.sessions[p]
	if !ok || s.Speaking() == v {
		return
	}
	s.SetSpeaking(v)
	c.notify(Notification{Kind: KindSpeaking, Peer: p, Value: v})
}

func (c *Coordinator) Self() domain.SessionID { return c.self }
func (c *Coordinator) Room() domain.RoomID    { return c.room }
func (c *Coordinator) Joined() bool           { return c.joined }
func (c *Coordinator) LocalSpeaking() bool    { return c.localSpeaking }
func (c *Coordinator) Muted() bool            { return c.muted }

// Session returns the live session for sid.
func (c *Coordinator) Session(sid domain.SessionID) (*peer.Session, bool) {
	s, ok := c.sessions[sid]
	return s, ok
}

// SessionIDs lists remote peers with a live session, sorted.
func (c *Coordinator) SessionIDs() []domain.SessionID { return sortedIDs(c.sessions) }

// RosterIDs lists known remote members, sorted.
func (c *Coordinator) RosterIDs() []domain.SessionID { return sortedIDs(c.roster) }

// Participants snapshots the roster, sorted by session id.
func (c *Coordinator) Participants() []Participant {
	out := make([]Participant, 0, len(c.roster))
	for _, sid := range sortedIDs(c.roster) {
		p := Participant{ParticipantRef: c.roster[sid], State: peer.StateClosed, Gain: remote.DefaultGain}
		if s, ok := c.sessions[sid]; ok {
			p.State = s.State()
			p.Speaking = s.Speaking()
			p.Muted = s.RemoteMuted()
			p.ScreenSharing = s.RemoteSharing()
			p.Gain = s.Gain()
		}
		out = append(out, p)
	}
	return out
}

func (c *Coordinator) Status() Status {
	return Status{
		Self:          c.self,
		Room:          c.room,
		Joined:        c.joined,
		Muted:         c.muted,
		ScreenSharing: c.screen != nil,
		LocalSpeaking: c.localSpeaking,
		Participants:  c.Participants(),
	}
}

func (c *Coordinator) send(ev signaling.Event) {
	if err := c.relay.Send(ev); err != nil {
		c.log.Warn().Err(err).Str("type", string(ev.Type())).Msg("relay send failed")
	}
}

func (c *Coordinator) race(p domain.SessionID, kind core.RaceKind, err error) {
	c.log.Warn().Err(&core.SignalingRaceError{Peer: p, Kind: kind, Err: err}).Msg("signaling race")
}

func sortedIDs[V any](m map[domain.SessionID]V) []domain.SessionID {
	ids := make([]domain.SessionID, 0, len(m))
	for sid := range m {
		ids = append(ids, sid)
	}
	slices.Sort(ids)
	return ids
}
