package core

import (
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/voicemesh/internal/domain"
)

// RemoteTrack is the read side of an incoming media track.
// *webrtc.TrackRemote satisfies it.
type RemoteTrack interface {
	ID() string
	Kind() webrtc.RTPCodecType
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// MediaTransport is the point-to-point media engine for one remote peer.
// Methods may block; callers must not invoke them on the event loop.
type MediaTransport interface {
	CreateOffer(iceRestart bool) (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// AddTrack attaches a local track; a second track of the same kind replaces the first.
	AddTrack(kind domain.TrackKind, track webrtc.TrackLocal) error
	RemoveTrack(kind domain.TrackKind) error

	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	OnConnectionStateChange(func(webrtc.PeerConnectionState))
	// OnTrack sets a callback that will be invoked when a new remote track arrives.
	OnTrack(func(RemoteTrack))

	// Close should stop all underlying media resources.
	Close() error
}

// TransportFactory builds a fresh transport for a remote session.
type TransportFactory func(remote domain.SessionID) (MediaTransport, error)
