package signaling

import "fmt"

func (j Join) Validate() error {
	if j.RoomID == "" {
		return ErrMissingRoom
	}
	return nil
}

func (Leave) Validate() error { return nil }

func (r Roster) Validate() error {
	if r.Self == "" {
		return fmt.Errorf("roster: %w", ErrMissingSession)
	}
	for _, m := range r.Members {
		if m.SessionID == "" {
			return fmt.Errorf("roster member: %w", ErrMissingSession)
		}
	}
	return nil
}

func (m MemberJoined) Validate() error {
	if m.SessionID == "" {
		return fmt.Errorf("member_joined: %w", ErrMissingSession)
	}
	return nil
}

func (m MemberLeft) Validate() error {
	if m.SessionID == "" {
		return fmt.Errorf("member_left: %w", ErrMissingSession)
	}
	return nil
}

func (o Offer) Validate() error {
	if o.To == "" {
		return fmt.Errorf("session_offer: %w", ErrMissingTarget)
	}
	return o.Description.validate("offer")
}

func (a Answer) Validate() error {
	if a.To == "" {
		return fmt.Errorf("session_answer: %w", ErrMissingTarget)
	}
	return a.Description.validate("answer")
}

func (c Candidate) Validate() error {
	if c.To == "" {
		return fmt.Errorf("session_candidate: %w", ErrMissingTarget)
	}
	if c.Candidate.Candidate == "" && c.Candidate.SDPMid == nil && c.Candidate.SDPMLineIndex == nil {
		return fmt.Errorf("session_candidate: empty candidate")
	}
	return nil
}

func (MuteChanged) Validate() error        { return nil }
func (ScreenShareStarted) Validate() error { return nil }
func (ScreenShareStopped) Validate() error { return nil }

func (e Error) Validate() error {
	if e.Code == "" {
		return fmt.Errorf("error message missing code")
	}
	return nil
}

func (d Description) validate(want string) error {
	if d.Type != want {
		return fmt.Errorf("%w: %q", ErrInvalidSDPType, d.Type)
	}
	if d.SDP == "" {
		return ErrMissingSDP
	}
	return nil
}
