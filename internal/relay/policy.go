package relay

import "github.com/dkeye/voicemesh/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a member whose send buffer is full.
type Policy interface {
	OnBackPressure(room domain.RoomID, member domain.SessionID) BackpressureAction
}

// KickSlowPolicy disconnects members that cannot keep up. Their peers see
// an ordinary member_left.
type KickSlowPolicy struct{}

func (KickSlowPolicy) OnBackPressure(domain.RoomID, domain.SessionID) BackpressureAction {
	return KickMember
}
