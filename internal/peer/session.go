// Package peer implements the per-remote session state machine.
//
// A Session is not safe for concurrent use: every method, hook and timer
// runs on the mesh event loop. Transport calls that may block are queued
// and executed one at a time off the loop, so candidate application stays
// ordered relative to description application.
package peer

import (
	"errors"
	"maps"
	"slices"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicemesh/internal/core"
	"github.com/dkeye/voicemesh/internal/domain"
	"github.com/dkeye/voicemesh/internal/signaling"
)

var (
	ErrTransportClosed = errors.New("transport reported closed")
	errICEFailed       = errors.New("ice connection failed")
)

// Hooks are invoked on the event loop.
type Hooks struct {
	OnStateChange func(peer domain.SessionID, from, to State)
	OnRemoteTrack func(peer domain.SessionID, track core.RemoteTrack)
	// OnClosed fires exactly once per session.
	OnClosed func(peer domain.SessionID, reason error)
}

type Params struct {
	Local      domain.SessionID
	Remote     domain.SessionID
	Generation uint64
	Transport  core.MediaTransport
	Relay      core.Relay
	Scheduler  core.Scheduler
	Config     Config
	Hooks      Hooks
}

type op struct {
	name  string
	epoch uint64
	// bound ops belong to one negotiation round and are skipped once the
	// epoch moves on.
	bound bool
	work  func() error
	done  func(error)
}

type Session struct {
	local      domain.SessionID
	remote     domain.SessionID
	generation uint64
	initiator  bool

	transport core.MediaTransport
	relay     core.Relay
	sched     core.Scheduler
	cfg       Config
	hooks     Hooks
	log       zerolog.Logger

	state State
	phase phase
	epoch uint64

	ops  []op
	busy bool

	remoteApplied     bool
	pendingCandidates []webrtc.ICECandidateInit
	pendingAnswer     *webrtc.SessionDescription
	answerTimer       core.Timer
	graceTimer        core.Timer

	iceRestartPending bool

	tracks map[domain.TrackKind]webrtc.TrackLocal
	// negotiated holds the kinds the last completed exchange carries;
	// offered those of our outstanding offer.
	negotiated map[domain.TrackKind]bool
	offered    map[domain.TrackKind]bool

	gain          float64
	speaking      bool
	remoteMuted   bool
	remoteSharing bool
}

func New(p Params) *Session {
	s := &Session{
		local:      p.Local,
		remote:     p.Remote,
		generation: p.Generation,
		initiator:  p.Local.Less(p.Remote),
		transport:  p.Transport,
		relay:      p.Relay,
		sched:      p.Scheduler,
		cfg:        p.Config.WithDefaults(),
		hooks:      p.Hooks,
		tracks:     make(map[domain.TrackKind]webrtc.TrackLocal),
		gain:       1,
		log: log.With().
			Str("module", "peer").
			Str("sid", string(p.Remote)).
			Uint64("gen", p.Generation).
			Logger(),
	}

	p.Transport.OnICECandidate(func(c webrtc.ICECandidateInit) {
		s.sched.Post(func() { s.sendCandidate(c) })
	})
	p.Transport.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		s.sched.Post(func() { s.handleTransportState(st) })
	})
	p.Transport.OnTrack(func(t core.RemoteTrack) {
		s.sched.Post(func() {
			if s.state == StateClosed {
				return
			}
			s.log.Info().Str("track", t.ID()).Str("kind", t.Kind().String()).Msg("remote track")
			if s.hooks.OnRemoteTrack != nil {
				s.hooks.OnRemoteTrack(s.remote, t)
			}
		})
	})
	return s
}

func (s *Session) Remote() domain.SessionID { return s.remote }
func (s *Session) Generation() uint64       { return s.generation }
func (s *Session) State() State             { return s.state }

// Initiator reports whether this side sends the first offer.
func (s *Session) Initiator() bool { return s.initiator }

func (s *Session) Closed() bool { return s.state == StateClosed }

// TracksSent lists the local track kinds attached to the session.
func (s *Session) TracksSent() []domain.TrackKind {
	kinds := make([]domain.TrackKind, 0, len(s.tracks))
	for k := range s.tracks {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

func (s *Session) PendingCandidates() int { return len(s.pendingCandidates) }
func (s *Session) HasPendingAnswer() bool { return s.pendingAnswer != nil }

func (s *Session) Gain() float64           { return s.gain }
func (s *Session) SetGain(g float64)       { s.gain = g }
func (s *Session) Speaking() bool          { return s.speaking }
func (s *Session) SetSpeaking(v bool)      { s.speaking = v }
func (s *Session) RemoteMuted() bool       { return s.remoteMuted }
func (s *Session) SetRemoteMuted(v bool)   { s.remoteMuted = v }
func (s *Session) RemoteSharing() bool     { return s.remoteSharing }
func (s *Session) SetRemoteSharing(v bool) { s.remoteSharing = v }

// Connect starts the initial offer. It is a no-op unless the session is idle.
func (s *Session) Connect() {
	if s.state != StateIdle {
		return
	}
	s.setState(StateOffering)
	s.startOffer(false)
}

// AddTrack attaches a local track. The session renegotiates once it is live
// and the last exchange did not carry this kind.
func (s *Session) AddTrack(kind domain.TrackKind, track webrtc.TrackLocal) {
	if s.state == StateClosed {
		return
	}
	s.enqueue(op{
		name: "add-track",
		work: func() error { return s.transport.AddTrack(kind, track) },
		done: func(err error) {
			if err != nil {
				s.log.Error().Err(err).Str("kind", string(kind)).Msg("add track failed")
				return
			}
			s.tracks[kind] = track
			s.maybeRenegotiate()
		},
	})
}

func (s *Session) RemoveTrack(kind domain.TrackKind) {
	if s.state == StateClosed {
		return
	}
	if _, ok := s.tracks[kind]; !ok {
		return
	}
	s.enqueue(op{
		name: "remove-track",
		work: func() error { return s.transport.RemoveTrack(kind) },
		done: func(err error) {
			if err != nil {
				s.log.Error().Err(err).Str("kind", string(kind)).Msg("remove track failed")
				return
			}
			delete(s.tracks, kind)
			s.maybeRenegotiate()
		},
	})
}

// trackKinds is the set of attached local track kinds.
func (s *Session) trackKinds() map[domain.TrackKind]bool {
	kinds := make(map[domain.TrackKind]bool, len(s.tracks))
	for k := range s.tracks {
		kinds[k] = true
	}
	return kinds
}

// tracksChanged reports whether the attached tracks differ from what the
// last completed exchange carries.
func (s *Session) tracksChanged() bool {
	return !maps.Equal(s.trackKinds(), s.negotiated)
}

// maybeRenegotiate offers once the session is live, stable and either needs
// an ICE restart or has tracks the peer has not been offered.
func (s *Session) maybeRenegotiate() {
	if s.state == StateClosed || s.phase != phaseStable {
		return
	}
	switch {
	case s.iceRestartPending && s.initiator && (s.state == StateFailed || s.state.Live()):
		s.iceRestartPending = false
		s.log.Info().Msg("ice restart")
		s.startOffer(true)
	case s.state.Live() && s.tracksChanged():
		s.log.Debug().Msg("renegotiating")
		s.startOffer(false)
	}
}

func (s *Session) startOffer(iceRestart bool) {
	s.phase = phaseCreatingOffer
	var offer webrtc.SessionDescription
	s.enqueue(op{
		name:  "create-offer",
		bound: true,
		work: func() (err error) {
			offer, err = s.transport.CreateOffer(iceRestart)
			return err
		},
		done: func(err error) {
			if err != nil {
				s.closeWith(&core.TransportFailure{Peer: s.remote, Err: err})
				return
			}
			s.phase = phaseCommittingOffer
			s.offered = s.trackKinds()
			s.send(signaling.Offer{Description: signaling.DescriptionFromPion(offer), To: s.remote})
			s.enqueue(op{
				name:  "commit-offer",
				bound: true,
				work:  func() error { return s.transport.SetLocalDescription(offer) },
				done: func(err error) {
					if err != nil {
						s.closeWith(&core.TransportFailure{Peer: s.remote, Err: err})
						return
					}
					s.phase = phaseAwaitingAnswer
					if s.pendingAnswer != nil {
						answer := *s.pendingAnswer
						s.clearPendingAnswer()
						s.log.Debug().Msg("applying buffered answer")
						s.applyAnswer(answer)
					}
				},
			})
		},
	})
}

// HandleAnswer applies a remote answer, or buffers it until our offer has
// been committed.
func (s *Session) HandleAnswer(desc webrtc.SessionDescription) {
	if s.state == StateClosed {
		s.race(core.RaceStaleAnswer, core.ErrSessionClosed)
		return
	}
	if s.phase == phaseAwaitingAnswer {
		s.applyAnswer(desc)
		return
	}

	if s.pendingAnswer != nil {
		s.race(core.RaceStaleAnswer, errors.New("superseded by a newer answer"))
	}
	s.clearPendingAnswer()
	s.pendingAnswer = &desc
	s.log.Debug().Stringer("phase", s.phase).Msg("answer buffered")

	held := s.pendingAnswer
	s.answerTimer = s.sched.AfterFunc(s.cfg.AnswerStaleAfter, func() {
		if s.pendingAnswer != held {
			return
		}
		s.pendingAnswer = nil
		s.answerTimer = nil
		s.race(core.RaceStaleAnswer, errors.New("no local offer committed in time"))
	})
}

func (s *Session) clearPendingAnswer() {
	s.pendingAnswer = nil
	if s.answerTimer != nil {
		s.answerTimer.Stop()
		s.answerTimer = nil
	}
}

func (s *Session) applyAnswer(desc webrtc.SessionDescription) {
	s.phase = phaseApplyingAnswer
	s.enqueue(op{
		name:  "apply-answer",
		bound: true,
		work:  func() error { return s.transport.SetRemoteDescription(desc) },
		done: func(err error) {
			if err != nil {
				s.race(core.RaceUnexpectedAnswer, err)
				s.phase = phaseAwaitingAnswer
				return
			}
			s.remoteApplied = true
			s.phase = phaseStable
			s.negotiated, s.offered = s.offered, nil
			s.flushCandidates()
			if s.state == StateOffering {
				s.setState(StateConnecting)
			}
			s.maybeRenegotiate()
		},
	})
}

// HandleOffer answers a remote offer. On collision with our own outstanding
// offer the side with the higher session id rolls back; the other ignores
// the remote offer and waits for its answer.
func (s *Session) HandleOffer(desc webrtc.SessionDescription) {
	if s.state == StateClosed {
		s.race(core.RaceStaleCompletion, core.ErrSessionClosed)
		return
	}

	if s.phase.localOfferOutstanding() {
		if s.initiator {
			s.race(core.RaceOfferCollision, errors.New("ignoring remote offer"))
			return
		}
		s.race(core.RaceOfferCollision, errors.New("rolling back local offer"))
		s.rollback()
	} else if s.phase != phaseStable {
		s.race(core.RaceOfferCollision, errors.New("negotiation in progress"))
		return
	}

	if s.state == StateIdle || s.state == StateOffering {
		s.setState(StateAnswering)
	}
	s.applyOffer(desc)
}

func (s *Session) rollback() {
	committed := s.phase != phaseCreatingOffer
	s.epoch++
	s.clearPendingAnswer()
	s.phase = phaseStable
	s.offered = nil
	if !committed {
		return
	}
	s.enqueue(op{
		name:  "rollback",
		bound: true,
		work: func() error {
			return s.transport.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeRollback})
		},
		done: func(err error) {
			if err != nil {
				s.log.Warn().Err(err).Msg("rollback failed")
			}
		},
	})
}

func (s *Session) applyOffer(desc webrtc.SessionDescription) {
	s.phase = phaseApplyingOffer
	media, parsed := mediaTypes(desc)
	var answer webrtc.SessionDescription
	s.enqueue(op{
		name:  "apply-offer",
		bound: true,
		work:  func() error { return s.transport.SetRemoteDescription(desc) },
		done: func(err error) {
			if err != nil {
				s.race(core.RaceOfferCollision, err)
				s.phase = phaseStable
				return
			}
			s.remoteApplied = true
			s.phase = phaseAnswering
			s.flushCandidates()
			s.enqueue(op{
				name:  "create-answer",
				bound: true,
				work: func() (err error) {
					answer, err = s.transport.CreateAnswer()
					if err != nil {
						return err
					}
					return s.transport.SetLocalDescription(answer)
				},
				done: func(err error) {
					if err != nil {
						s.closeWith(&core.TransportFailure{Peer: s.remote, Err: err})
						return
					}
					s.phase = phaseStable
					s.negotiated = s.answeredKinds(media, parsed)
					s.send(signaling.Answer{Description: signaling.DescriptionFromPion(answer), To: s.remote})
					if s.state == StateAnswering {
						s.setState(StateConnecting)
					}
					s.maybeRenegotiate()
				},
			})
		},
	})
}

// HandleCandidate applies a remote candidate, queueing it while no remote
// description is in effect.
func (s *Session) HandleCandidate(c webrtc.ICECandidateInit) {
	if s.state == StateClosed {
		return
	}
	if !s.remoteReady() {
		s.pendingCandidates = append(s.pendingCandidates, c)
		return
	}
	s.applyCandidate(c)
}

func (s *Session) remoteReady() bool {
	return s.remoteApplied && s.phase != phaseApplyingOffer && s.phase != phaseApplyingAnswer
}

func (s *Session) flushCandidates() {
	if len(s.pendingCandidates) > 0 {
		s.log.Debug().Int("count", len(s.pendingCandidates)).Msg("flushing buffered candidates")
	}
	queued := s.pendingCandidates
	s.pendingCandidates = nil
	for _, c := range queued {
		s.applyCandidate(c)
	}
}

func (s *Session) applyCandidate(c webrtc.ICECandidateInit) {
	s.enqueue(op{
		name: "add-candidate",
		work: func() error { return s.transport.AddICECandidate(c) },
		done: func(err error) {
			if err != nil {
				s.race(core.RaceCandidate, err)
			}
		},
	})
}

func (s *Session) handleTransportState(st webrtc.PeerConnectionState) {
	if s.state == StateClosed {
		return
	}
	s.log.Debug().Stringer("transport", st).Msg("transport state")

	switch st {
	case webrtc.PeerConnectionStateConnecting:
		if s.state == StateFailed {
			s.stopGrace()
			s.setState(StateConnecting)
		}
	case webrtc.PeerConnectionStateConnected:
		s.stopGrace()
		if s.state != StateConnected {
			s.setState(StateConnected)
		}
	case webrtc.PeerConnectionStateFailed:
		s.fail()
	case webrtc.PeerConnectionStateClosed:
		s.closeWith(ErrTransportClosed)
	default:
		// disconnected is transient; ICE keeps checking
	}
}

func (s *Session) fail() {
	if s.state == StateFailed {
		return
	}
	s.setState(StateFailed)
	s.graceTimer = s.sched.AfterFunc(s.cfg.FailureGrace, func() {
		s.graceTimer = nil
		if s.state == StateFailed {
			s.closeWith(&core.TransportFailure{Peer: s.remote, Err: errICEFailed})
		}
	})
	if s.initiator {
		s.iceRestartPending = true
		s.maybeRenegotiate()
	}
}

func (s *Session) stopGrace() {
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
}

// Close tears the session down. It is idempotent and never surfaces an
// error to the caller.
func (s *Session) Close(reason error) { s.closeWith(reason) }

func (s *Session) closeWith(reason error) {
	if s.state == StateClosed {
		return
	}
	s.epoch++
	s.ops = nil
	s.pendingCandidates = nil
	s.clearPendingAnswer()
	s.stopGrace()
	s.setState(StateClosed)

	ev := s.log.Info()
	if reason != nil {
		ev = s.log.Warn().Err(reason)
	}
	ev.Msg("session closed")

	t := s.transport
	s.sched.Go(func() {
		if err := t.Close(); err != nil {
			log.Debug().Err(err).Str("module", "peer").Msg("transport close error")
		}
	}, func() {})

	if s.hooks.OnClosed != nil {
		s.hooks.OnClosed(s.remote, reason)
	}
}

func (s *Session) setState(to State) {
	from := s.state
	if from == to || from == StateClosed {
		return
	}
	s.state = to
	s.log.Info().Stringer("from", from).Stringer("to", to).Msg("state change")
	if s.hooks.OnStateChange != nil {
		s.hooks.OnStateChange(s.remote, from, to)
	}
	if to.Live() {
		s.maybeRenegotiate()
	}
}

func (s *Session) sendCandidate(c webrtc.ICECandidateInit) {
	if s.state == StateClosed {
		return
	}
	s.send(signaling.Candidate{Candidate: signaling.CandidateFromPion(c), To: s.remote})
}

func (s *Session) send(ev signaling.Event) {
	if err := s.relay.Send(ev); err != nil {
		s.log.Warn().Err(err).Str("type", string(ev.Type())).Msg("relay send failed")
	}
}

func (s *Session) race(kind core.RaceKind, err error) {
	s.log.Warn().
		Err(&core.SignalingRaceError{Peer: s.remote, Kind: kind, Err: err}).
		Stringer("phase", s.phase).
		Msg("signaling race")
}

// enqueue runs transport ops one at a time off the loop.
func (s *Session) enqueue(o op) {
	o.epoch = s.epoch
	s.ops = append(s.ops, o)
	if !s.busy {
		s.next()
	}
}

func (s *Session) next() {
	for len(s.ops) > 0 {
		o := s.ops[0]
		s.ops = s.ops[1:]
		if o.bound && o.epoch != s.epoch {
			s.log.Debug().Str("op", o.name).Msg("skipping superseded op")
			continue
		}
		s.busy = true
		var err error
		s.sched.Go(func() { err = o.work() }, func() {
			s.busy = false
			if s.state == StateClosed {
				s.race(core.RaceStaleCompletion, core.ErrSessionClosed)
				return
			}
			if o.bound && o.epoch != s.epoch {
				s.race(core.RaceStaleCompletion, errors.New(o.name+" superseded"))
			} else {
				o.done(err)
			}
			if !s.busy {
				s.next()
			}
		})
		return
	}
	s.busy = false
}

// answeredKinds is what our answer carries: an answer can only send on
// media sections the remote offer opened. An offer we cannot parse is taken
// to carry every attached track.
func (s *Session) answeredKinds(media map[webrtc.RTPCodecType]bool, parsed bool) map[domain.TrackKind]bool {
	kinds := make(map[domain.TrackKind]bool, len(s.tracks))
	for k := range s.tracks {
		if !parsed || media[codecType(k)] {
			kinds[k] = true
		}
	}
	return kinds
}

func mediaTypes(desc webrtc.SessionDescription) (map[webrtc.RTPCodecType]bool, bool) {
	parsed, err := desc.Unmarshal()
	if err != nil || len(parsed.MediaDescriptions) == 0 {
		return nil, false
	}
	media := make(map[webrtc.RTPCodecType]bool, len(parsed.MediaDescriptions))
	for _, m := range parsed.MediaDescriptions {
		media[webrtc.NewRTPCodecType(m.MediaName.Media)] = true
	}
	return media, true
}

func codecType(k domain.TrackKind) webrtc.RTPCodecType {
	if k == domain.TrackAudio {
		return webrtc.RTPCodecTypeAudio
	}
	return webrtc.RTPCodecTypeVideo
}
