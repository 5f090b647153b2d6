package mesh

import (
	"github.com/dkeye/voicemesh/internal/domain"
	"github.com/dkeye/voicemesh/internal/peer"
)

type Kind string

const (
	KindJoined        Kind = "joined"
	KindLeft          Kind = "left"
	KindPeerAdded     Kind = "peer_added"
	KindPeerRemoved   Kind = "peer_removed"
	KindPeerState     Kind = "peer_state"
	KindSpeaking      Kind = "speaking"
	KindLocalSpeaking Kind = "local_speaking"
	KindRemoteMuted   Kind = "remote_muted"
	KindRemoteSharing Kind = "remote_sharing"
	KindRelayLost     Kind = "relay_lost"
	KindRelayRestored Kind = "relay_restored"
	KindRelayTerminal Kind = "relay_terminal"
	KindRelayError    Kind = "relay_error"
)

// Notification reports a change in the mesh to the application.
type Notification struct {
	Kind  Kind
	Peer  domain.SessionID
	State peer.State
	Value bool
	Err   error
}

// Listener is called on the event loop and must not block.
type Listener func(Notification)

// Participant is one roster entry as presented to the application.
type Participant struct {
	domain.ParticipantRef
	State         peer.State `json:"state"`
	Speaking      bool       `json:"speaking"`
	Muted         bool       `json:"muted"`
	ScreenSharing bool       `json:"screenSharing"`
	Gain          float64    `json:"gain"`
}

type Status struct {
	Self          domain.SessionID `json:"self"`
	Room          domain.RoomID    `json:"room"`
	Joined        bool             `json:"joined"`
	Muted         bool             `json:"muted"`
	ScreenSharing bool             `json:"screenSharing"`
	LocalSpeaking bool             `json:"localSpeaking"`
	Participants  []Participant    `json:"participants"`
}
