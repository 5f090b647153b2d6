// Package signaling defines the closed set of events carried over the relay.
//
// Every event travels as a flat JSON object whose "type" field selects the
// concrete payload: {"type":"session_offer","to":"...","description":{...}}.
package signaling

import (
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/voicemesh/internal/domain"
)

type Type string

const (
	TypeJoin               Type = "join"
	TypeLeave              Type = "leave"
	TypeRoster             Type = "roster"
	TypeMemberJoined       Type = "member_joined"
	TypeMemberLeft         Type = "member_left"
	TypeOffer              Type = "session_offer"
	TypeAnswer             Type = "session_answer"
	TypeCandidate          Type = "session_candidate"
	TypeMuteChanged        Type = "mute_changed"
	TypeScreenShareStarted Type = "screen_share_started"
	TypeScreenShareStopped Type = "screen_share_stopped"
	TypeError              Type = "error"
)

// Event is the sealed sum type of all signaling messages. Only types in this
// package implement it, so a type switch over Event can be checked for
// exhaustiveness.
type Event interface {
	Type() Type
	Validate() error
	sealed()
}

// Targeted events are delivered by the relay to exactly one session.
type Targeted interface {
	Event
	Target() domain.SessionID
	// Stamped returns a copy with From overwritten by the relay.
	Stamped(from domain.SessionID) Event
}

// Broadcast events are fanned out to the sender's room with the sender
// identity overwritten by the relay.
type Broadcast interface {
	Event
	Stamped(sid domain.SessionID, uid domain.UserID) Event
}

type Join struct {
	RoomID    domain.RoomID `json:"roomId"`
	UserID    domain.UserID `json:"userId,omitempty"`
	Username  string        `json:"username,omitempty"`
	AvatarRef string        `json:"avatarRef,omitempty"`
}

type Leave struct{}

type Roster struct {
	Self    domain.SessionID        `json:"self"`
	RoomID  domain.RoomID           `json:"roomId"`
	Members []domain.ParticipantRef `json:"members"`
}

type MemberJoined struct {
	domain.ParticipantRef
}

type MemberLeft struct {
	domain.ParticipantRef
}

// Description is a JSON-friendly SDP offer or answer.
type Description struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type Offer struct {
	Description Description      `json:"description"`
	To          domain.SessionID `json:"to"`
	From        domain.SessionID `json:"from,omitempty"`
}

type Answer struct {
	Description Description      `json:"description"`
	To          domain.SessionID `json:"to"`
	From        domain.SessionID `json:"from,omitempty"`
}

type ICECandidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

type Candidate struct {
	Candidate ICECandidate     `json:"candidate"`
	To        domain.SessionID `json:"to"`
	From      domain.SessionID `json:"from,omitempty"`
}

type MuteChanged struct {
	SessionID domain.SessionID `json:"sessionId,omitempty"`
	UserID    domain.UserID    `json:"userId,omitempty"`
	Value     bool             `json:"value"`
}

type ScreenShareStarted struct {
	SessionID domain.SessionID `json:"sessionId,omitempty"`
	UserID    domain.UserID    `json:"userId,omitempty"`
}

type ScreenShareStopped struct {
	SessionID domain.SessionID `json:"sessionId,omitempty"`
	UserID    domain.UserID    `json:"userId,omitempty"`
}

// Error is sent by the relay when it refuses a request.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (Join) Type() Type               { return TypeJoin }
func (Leave) Type() Type              { return TypeLeave }
func (Roster) Type() Type             { return TypeRoster }
func (MemberJoined) Type() Type       { return TypeMemberJoined }
func (MemberLeft) Type() Type         { return TypeMemberLeft }
func (Offer) Type() Type              { return TypeOffer }
func (Answer) Type() Type             { return TypeAnswer }
func (Candidate) Type() Type          { return TypeCandidate }
func (MuteChanged) Type() Type        { return TypeMuteChanged }
func (ScreenShareStarted) Type() Type { return TypeScreenShareStarted }
func (ScreenShareStopped) Type() Type { return TypeScreenShareStopped }
func (Error) Type() Type              { return TypeError }

func (Join) sealed()               {}
func (Leave) sealed()              {}
func (Roster) sealed()             {}
func (MemberJoined) sealed()       {}
func (MemberLeft) sealed()         {}
func (Offer) sealed()              {}
func (Answer) sealed()             {}
func (Candidate) sealed()          {}
func (MuteChanged) sealed()        {}
func (ScreenShareStarted) sealed() {}
func (ScreenShareStopped) sealed() {}
func (Error) sealed()              {}

func (o Offer) Target() domain.SessionID     { return o.To }
func (a Answer) Target() domain.SessionID    { return a.To }
func (c Candidate) Target() domain.SessionID { return c.To }

func (o Offer) Stamped(from domain.SessionID) Event     { o.From = from; return o }
func (a Answer) Stamped(from domain.SessionID) Event    { a.From = from; return a }
func (c Candidate) Stamped(from domain.SessionID) Event { c.From = from; return c }

func (m MuteChanged) Stamped(sid domain.SessionID, uid domain.UserID) Event {
	m.SessionID, m.UserID = sid, uid
	return m
}

func (s ScreenShareStarted) Stamped(sid domain.SessionID, uid domain.UserID) Event {
	s.SessionID, s.UserID = sid, uid
	return s
}

func (s ScreenShareStopped) Stamped(sid domain.SessionID, uid domain.UserID) Event {
	s.SessionID, s.UserID = sid, uid
	return s
}

func DescriptionFromPion(desc webrtc.SessionDescription) Description {
	return Description{Type: desc.Type.String(), SDP: desc.SDP}
}

func (d Description) ToPion() (webrtc.SessionDescription, error) {
	var t webrtc.SDPType
	switch d.Type {
	case "offer":
		t = webrtc.SDPTypeOffer
	case "answer":
		t = webrtc.SDPTypeAnswer
	default:
		return webrtc.SessionDescription{}, ErrInvalidSDPType
	}
	return webrtc.SessionDescription{Type: t, SDP: d.SDP}, nil
}

func CandidateFromPion(init webrtc.ICECandidateInit) ICECandidate {
	return ICECandidate{
		Candidate:        init.Candidate,
		SDPMid:           init.SDPMid,
		SDPMLineIndex:    init.SDPMLineIndex,
		UsernameFragment: init.UsernameFragment,
	}
}

func (c ICECandidate) ToPion() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}
