package core

import (
	"errors"
	"fmt"

	"github.com/dkeye/voicemesh/internal/domain"
)

var (
	ErrPermissionDenied  = errors.New("capture: permission denied")
	ErrDeviceUnavailable = errors.New("capture: device unavailable")
	ErrSessionClosed     = errors.New("peer: session closed")
	ErrNotInRoom         = errors.New("mesh: not in a room")
	ErrUnknownPeer       = errors.New("mesh: unknown peer")
)

// CaptureError is fatal to starting voice and is surfaced to the user.
type CaptureError struct {
	Err error
}

func (e *CaptureError) Error() string { return fmt.Sprintf("capture failed: %v", e.Err) }
func (e *CaptureError) Unwrap() error { return e.Err }

type RaceKind string

const (
	RaceStaleAnswer      RaceKind = "stale_answer"
	RaceUnexpectedAnswer RaceKind = "unexpected_answer"
	RaceCandidate        RaceKind = "candidate_rejected"
	RaceOfferCollision   RaceKind = "offer_collision"
	RaceStaleCompletion  RaceKind = "stale_completion"
	RaceDepartedPeer     RaceKind = "departed_peer"
)

// SignalingRaceError is logged and never surfaced; buffering or a later
// offer/answer cycle heals it.
type SignalingRaceError struct {
	Peer domain.SessionID
	Kind RaceKind
	Err  error
}

func (e *SignalingRaceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("signaling race with %s: %s", e.Peer, e.Kind)
	}
	return fmt.Sprintf("signaling race with %s: %s: %v", e.Peer, e.Kind, e.Err)
}

func (e *SignalingRaceError) Unwrap() error { return e.Err }

// TransportFailure is reported once the grace period for a failed session
// runs out.
type TransportFailure struct {
	Peer domain.SessionID
	Err  error
}

func (e *TransportFailure) Error() string {
	return fmt.Sprintf("transport to %s failed: %v", e.Peer, e.Err)
}

func (e *TransportFailure) Unwrap() error { return e.Err }

// RelayDisconnected tears down every session. Terminal is set once the
// reconnect window is exhausted.
type RelayDisconnected struct {
	Err      error
	Terminal bool
}

func (e *RelayDisconnected) Error() string {
	if e.Terminal {
		return fmt.Sprintf("relay unreachable: %v", e.Err)
	}
	return fmt.Sprintf("relay disconnected: %v", e.Err)
}

func (e *RelayDisconnected) Unwrap() error { return e.Err }
