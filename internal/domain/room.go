package domain

type RoomID string

// Room is the relay-side view of a channel. It exists only while it has members.
type Room struct {
	ID RoomID
}
