package peer

import "time"

// State is the lifecycle of one point-to-point session. Closed is terminal.
type State int

const (
	StateIdle State = iota
	StateOffering
	StateAnswering
	StateConnecting
	StateConnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOffering:
		return "offering"
	case StateAnswering:
		return "answering"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Live reports whether media can flow or is being set up.
func (s State) Live() bool { return s == StateConnecting || s == StateConnected }

// phase tracks the offer/answer exchange independently of State so that
// renegotiation can run over a connected session.
type phase int

const (
	phaseStable phase = iota
	phaseCreatingOffer
	phaseCommittingOffer
	phaseAwaitingAnswer
	phaseApplyingAnswer
	phaseApplyingOffer
	phaseAnswering
)

func (p phase) String() string {
	return [...]string{
		"stable",
		"creating-offer",
		"committing-offer",
		"awaiting-answer",
		"applying-answer",
		"applying-offer",
		"answering",
	}[p]
}

// localOfferOutstanding reports whether our own offer is in flight.
func (p phase) localOfferOutstanding() bool {
	switch p {
	case phaseCreatingOffer, phaseCommittingOffer, phaseAwaitingAnswer, phaseApplyingAnswer:
		return true
	}
	return false
}

const (
	DefaultFailureGrace     = 5 * time.Second
	DefaultAnswerStaleAfter = 15 * time.Second
)

type Config struct {
	FailureGrace     time.Duration `mapstructure:"failure_grace"`
	AnswerStaleAfter time.Duration `mapstructure:"answer_stale_after"`
}

func DefaultConfig() Config {
	return Config{FailureGrace: DefaultFailureGrace, AnswerStaleAfter: DefaultAnswerStaleAfter}
}

func (c Config) WithDefaults() Config {
	if c.FailureGrace <= 0 {
		c.FailureGrace = DefaultFailureGrace
	}
	if c.AnswerStaleAfter <= 0 {
		c.AnswerStaleAfter = DefaultAnswerStaleAfter
	}
	return c
}
