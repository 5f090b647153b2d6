package signaling

import (
	"bytes"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

var (
	ErrUnknownType    = errors.New("signaling: unknown event type")
	ErrInvalidSDPType = errors.New("signaling: invalid session description type")
	ErrMissingSDP     = errors.New("signaling: missing session description sdp")
	ErrMissingTarget  = errors.New("signaling: missing target session")
	ErrMissingRoom    = errors.New("signaling: missing room id")
	ErrMissingSession = errors.New("signaling: missing session id")
)

// Encode renders ev as a flat JSON object with a leading "type" field.
func Encode(ev Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Type(), err)
	}
	var buf bytes.Buffer
	buf.Grow(len(body) + 16)
	buf.WriteString(`{"type":`)
	typ, _ := json.Marshal(ev.Type())
	buf.Write(typ)
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Decode parses one relay frame into its concrete event and validates it.
func Decode(data []byte) (Event, error) {
	var env struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var ev Event
	var err error
	switch env.Type {
	case TypeJoin:
		ev, err = decodeAs[Join](data)
	case TypeLeave:
		ev, err = decodeAs[Leave](data)
	case TypeRoster:
		ev, err = decodeAs[Roster](data)
	case TypeMemberJoined:
		ev, err = decodeAs[MemberJoined](data)
	case TypeMemberLeft:
		ev, err = decodeAs[MemberLeft](data)
	case TypeOffer:
		ev, err = decodeAs[Offer](data)
	case TypeAnswer:
		ev, err = decodeAs[Answer](data)
	case TypeCandidate:
		ev, err = decodeAs[Candidate](data)
	case TypeMuteChanged:
		ev, err = decodeAs[MuteChanged](data)
	case TypeScreenShareStarted:
		ev, err = decodeAs[ScreenShareStarted](data)
	case TypeScreenShareStopped:
		ev, err = decodeAs[ScreenShareStopped](data)
	case TypeError:
		ev, err = decodeAs[Error](data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeAs[T Event](data []byte) (Event, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
