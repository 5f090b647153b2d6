package domain

import "github.com/google/uuid"

// SessionID identifies one relay connection. It is assigned by the relay and
// never reused for a different simultaneous peer.
type SessionID string

func NewSessionID() SessionID { return SessionID(uuid.NewString()) }

// Less is the initiator tie-break: the lower id sends the offer.
func (s SessionID) Less(other SessionID) bool { return s < other }

// ParticipantRef is the identity attached to a remote session.
type ParticipantRef struct {
	SessionID SessionID `json:"sessionId"`
	UserID    UserID    `json:"userId"`
	Username  string    `json:"username"`
	AvatarRef string    `json:"avatarRef,omitempty"`
}

func RefFor(sid SessionID, u *User) ParticipantRef {
	return ParticipantRef{
		SessionID: sid,
		UserID:    u.ID,
		Username:  u.Username,
		AvatarRef: u.AvatarRef,
	}
}

type TrackKind string

const (
	TrackAudio  TrackKind = "audio"
	TrackScreen TrackKind = "screen"
)
