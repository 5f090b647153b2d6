package mesh

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"
	"go.uber.org/mock/gomock"

	"github.com/dkeye/voicemesh/internal/core"
	"github.com/dkeye/voicemesh/internal/domain"
	"github.com/dkeye/voicemesh/internal/eventloop/looptest"
	"github.com/dkeye/voicemesh/internal/peer"
	"github.com/dkeye/voicemesh/internal/signaling"
)

type fakeTransport struct {
	mu     sync.Mutex
	calls  []string
	offers int
	closed int
	// failOffer makes every CreateOffer fail.
	failOffer error
	onState   func(webrtc.PeerConnectionState)
	onTrack   func(core.RemoteTrack)
}

func (f *fakeTransport) record(format string, args ...any) {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	f.mu.Unlock()
}

func (f *fakeTransport) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeTransport) index(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.calls {
		if c == call {
			return i
		}
	}
	return -1
}

func (f *fakeTransport) CreateOffer(iceRestart bool) (webrtc.SessionDescription, error) {
	f.mu.Lock()
	f.offers++
	n := f.offers
	f.mu.Unlock()
	f.record("create-offer restart=%v", iceRestart)
	if f.failOffer != nil {
		return webrtc.SessionDescription{}, f.failOffer
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: fmt.Sprintf("offer-%d", n)}, nil
}

func (f *fakeTransport) CreateAnswer() (webrtc.SessionDescription, error) {
	f.record("create-answer")
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer"}, nil
}

func (f *fakeTransport) SetLocalDescription(d webrtc.SessionDescription) error {
	f.record("set-local %s", d.Type)
	return nil
}

func (f *fakeTransport) SetRemoteDescription(d webrtc.SessionDescription) error {
	f.record("set-remote %s", d.Type)
	return nil
}

func (f *fakeTransport) AddICECandidate(c webrtc.ICECandidateInit) error {
	f.record("add-candidate %s", c.Candidate)
	return nil
}

func (f *fakeTransport) AddTrack(kind domain.TrackKind, _ webrtc.TrackLocal) error {
	f.record("add-track %s", kind)
	return nil
}

func (f *fakeTransport) RemoveTrack(kind domain.TrackKind) error {
	f.record("remove-track %s", kind)
	return nil
}

func (f *fakeTransport) OnICECandidate(func(webrtc.ICECandidateInit))                {}
func (f *fakeTransport) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) { f.onState = fn }
func (f *fakeTransport) OnTrack(fn func(core.RemoteTrack))                           { f.onTrack = fn }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return nil
}

type fakeRelay struct {
	sent []signaling.Event
}

func (r *fakeRelay) Send(ev signaling.Event) error {
	r.sent = append(r.sent, ev)
	return nil
}

func (r *fakeRelay) ofType(t signaling.Type) []signaling.Event {
	var out []signaling.Event
	for _, ev := range r.sent {
		if ev.Type() == t {
			out = append(out, ev)
		}
	}
	return out
}

func (r *fakeRelay) offersTo(sid domain.SessionID) int {
	n := 0
	for _, ev := range r.ofType(signaling.TypeOffer) {
		if ev.(signaling.Offer).To == sid {
			n++
		}
	}
	return n
}

type harness struct {
	t          *testing.T
	sched      *looptest.Scheduler
	relay      *fakeRelay
	local      *MockLocalMedia
	remote     *MockRemoteAudio
	coord      *Coordinator
	transports map[domain.SessionID][]*fakeTransport
	notes      []Notification
	// newTransport, when set, adjusts each transport as it is created.
	newTransport func(sid domain.SessionID, ft *fakeTransport)

	localSpeaking  func(bool)
	remoteSpeaking func(domain.SessionID, bool)
}

func newHarness(t *testing.T) *harness {
	ctrl := gomock.NewController(t)
	h := &harness{
		t:          t,
		sched:      looptest.New(),
		relay:      &fakeRelay{},
		local:      NewMockLocalMedia(ctrl),
		remote:     NewMockRemoteAudio(ctrl),
		transports: make(map[domain.SessionID][]*fakeTransport),
	}
	h.local.EXPECT().OnSpeakingChanged(gomock.Any()).Do(func(fn func(bool)) { h.localSpeaking = fn })
	mic, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "voicemesh")
	if err != nil {
		t.Fatalf("NewTrackLocalStaticSample: %v", err)
	}
	h.local.EXPECT().Track().Return(mic).AnyTimes()
	h.remote.EXPECT().OnSpeakingChanged(gomock.Any()).Do(func(fn func(domain.SessionID, bool)) { h.remoteSpeaking = fn })
	h.remote.EXPECT().Detach(gomock.Any()).AnyTimes()

	h.coord = New(Deps{
		Scheduler: h.sched,
		Relay:     h.relay,
		Transports: func(sid domain.SessionID) (core.MediaTransport, error) {
			ft := &fakeTransport{}
			if h.newTransport != nil {
				h.newTransport(sid, ft)
			}
			h.transports[sid] = append(h.transports[sid], ft)
			return ft, nil
		},
		Capture: h.local,
		Remote:  h.remote,
		User:    &domain.User{ID: "user-m", Username: "mallory"},
		Peer:    peer.DefaultConfig(),
	})
	h.coord.Subscribe(func(n Notification) { h.notes = append(h.notes, n) })
	return h
}

// join enters room "lobby" as session "m" with the given other members.
func (h *harness) join(members ...domain.SessionID) {
	h.t.Helper()
	h.local.EXPECT().Start(gomock.Any()).Return(nil, nil)
	if err := h.coord.Join(context.Background(), "lobby"); err != nil {
		h.t.Fatalf("Join: %v", err)
	}
	refs := []domain.ParticipantRef{{SessionID: "m", UserID: "user-m", Username: "mallory"}}
	for _, sid := range members {
		refs = append(refs, ref(sid))
	}
	h.handle(signaling.Roster{Self: "m", RoomID: "lobby", Members: refs})
}

func (h *harness) handle(ev signaling.Event) {
	h.coord.Handle(ev)
	h.sched.Drain()
}

// transport returns the latest transport created for sid.
func (h *harness) transport(sid domain.SessionID) *fakeTransport {
	ts := h.transports[sid]
	if len(ts) == 0 {
		h.t.Fatalf("no transport for %s", sid)
	}
	return ts[len(ts)-1]
}

func (h *harness) transportState(sid domain.SessionID, st webrtc.PeerConnectionState) {
	h.transport(sid).onState(st)
	h.sched.Drain()
}

func (h *harness) count(kind Kind, sid domain.SessionID) int {
	n := 0
	for _, note := range h.notes {
		if note.Kind == kind && note.Peer == sid {
			n++
		}
	}
	return n
}

func ref(sid domain.SessionID) domain.ParticipantRef {
	return domain.ParticipantRef{SessionID: sid, UserID: domain.UserID("user-" + sid), Username: string(sid)}
}

func answerFrom(sid domain.SessionID) signaling.Answer {
	return signaling.Answer{Description: signaling.Description{Type: "answer", SDP: "answer"}, To: "m", From: sid}
}

func offerFrom(sid domain.SessionID) signaling.Offer {
	return signaling.Offer{Description: signaling.Description{Type: "offer", SDP: "offer"}, To: "m", From: sid}
}

func candidateFrom(sid domain.SessionID, c string) signaling.Candidate {
	return signaling.Candidate{Candidate: signaling.ICECandidate{Candidate: c}, To: "m", From: sid}
}
