package peer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/voicemesh/internal/core"
	"github.com/dkeye/voicemesh/internal/domain"
	"github.com/dkeye/voicemesh/internal/eventloop/looptest"
	"github.com/dkeye/voicemesh/internal/signaling"
)

type fakeTransport struct {
	mu     sync.Mutex
	calls  []string
	offers int
	closed int

	failSetRemote error
	failCandidate error

	onCandidate func(webrtc.ICECandidateInit)
	onState     func(webrtc.PeerConnectionState)
	onTrack     func(core.RemoteTrack)
}

func (f *fakeTransport) record(format string, args ...any) {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	f.mu.Unlock()
}

func (f *fakeTransport) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeTransport) count(call string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeTransport) CreateOffer(iceRestart bool) (webrtc.SessionDescription, error) {
	f.mu.Lock()
	f.offers++
	n := f.offers
	f.mu.Unlock()
	f.record("create-offer restart=%v", iceRestart)
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: fmt.Sprintf("offer-%d", n)}, nil
}

func (f *fakeTransport) CreateAnswer() (webrtc.SessionDescription, error) {
	f.record("create-answer")
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer"}, nil
}

func (f *fakeTransport) SetLocalDescription(d webrtc.SessionDescription) error {
	f.record("set-local %s %s", d.Type, label(d))
	return nil
}

func (f *fakeTransport) SetRemoteDescription(d webrtc.SessionDescription) error {
	f.record("set-remote %s %s", d.Type, label(d))
	return f.failSetRemote
}

func (f *fakeTransport) AddICECandidate(c webrtc.ICECandidateInit) error {
	f.record("add-candidate %s", c.Candidate)
	return f.failCandidate
}

func (f *fakeTransport) AddTrack(kind domain.TrackKind, _ webrtc.TrackLocal) error {
	f.record("add-track %s", kind)
	return nil
}

func (f *fakeTransport) RemoveTrack(kind domain.TrackKind) error {
	f.record("remove-track %s", kind)
	return nil
}

func (f *fakeTransport) OnICECandidate(fn func(webrtc.ICECandidateInit))             { f.onCandidate = fn }
func (f *fakeTransport) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) { f.onState = fn }
func (f *fakeTransport) OnTrack(fn func(core.RemoteTrack))                           { f.onTrack = fn }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	f.record("close")
	return nil
}

type fakeRelay struct {
	mu   sync.Mutex
	sent []signaling.Event
}

func (r *fakeRelay) Send(ev signaling.Event) error {
	r.mu.Lock()
	r.sent = append(r.sent, ev)
	r.mu.Unlock()
	return nil
}

func (r *fakeRelay) ofType(t signaling.Type) []signaling.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []signaling.Event
	for _, ev := range r.sent {
		if ev.Type() == t {
			out = append(out, ev)
		}
	}
	return out
}

type closeRecord struct {
	peer   domain.SessionID
	reason error
}

type harness struct {
	sched     *looptest.Scheduler
	transport *fakeTransport
	relay     *fakeRelay
	session   *Session
	states    []State
	closes    []closeRecord
	tracks    []core.RemoteTrack
}

// newHarness builds a session from local to remote. With local < remote the
// session is the initiator.
func newHarness(local, remote domain.SessionID) *harness {
	h := &harness{
		sched:     looptest.New(),
		transport: &fakeTransport{},
		relay:     &fakeRelay{},
	}
	h.session = New(Params{
		Local:      local,
		Remote:     remote,
		Generation: 1,
		Transport:  h.transport,
		Relay:      h.relay,
		Scheduler:  h.sched,
		Config:     DefaultConfig(),
		Hooks: Hooks{
			OnStateChange: func(_ domain.SessionID, _, to State) { h.states = append(h.states, to) },
			OnRemoteTrack: func(_ domain.SessionID, t core.RemoteTrack) { h.tracks = append(h.tracks, t) },
			OnClosed: func(p domain.SessionID, reason error) {
				h.closes = append(h.closes, closeRecord{peer: p, reason: reason})
			},
		},
	})
	return h
}

func (h *harness) transportState(st webrtc.PeerConnectionState) {
	h.transport.onState(st)
	h.sched.Drain()
}

// sessionSDP builds a minimal parseable description named name with one
// media section per entry of media ("audio", "video").
func sessionSDP(name string, media ...string) string {
	var b strings.Builder
	b.WriteString("v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\ns=" + name + "\r\nt=0 0\r\n")
	for i, m := range media {
		fmt.Fprintf(&b, "m=%s 9 UDP/TLS/RTP/SAVPF 96\r\na=mid:%d\r\n", m, i)
	}
	return b.String()
}

// label names a description in recorded calls: the session name when it
// parses, the raw text otherwise.
func label(d webrtc.SessionDescription) string {
	if parsed, err := d.Unmarshal(); err == nil && parsed.SessionName != "" {
		return string(parsed.SessionName)
	}
	return d.SDP
}

func offer(sdp string) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
}

func answer(sdp string) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
}

func cand(s string) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: s}
}

// connectInitiator drives an initiator session to connected.
func (h *harness) connectInitiator() {
	h.session.Connect()
	h.sched.Drain()
	h.session.HandleAnswer(answer("answer-1"))
	h.sched.Drain()
	h.transportState(webrtc.PeerConnectionStateConnected)
}
