package msg

import "github.com/google/uuid"

// Publisher is an interface for objects that allow subscription to their
// sample stream
type Publisher interface {
	Subscribe(uuid.UUID) <-chan Msg
	Unsubscribe(uuid.UUID)
}

// Msg is one published envelope
type Msg struct {
	sender  uuid.UUID
	payload interface{}
}

// New is the Msg factory function
func New(sender uuid.UUID, payload interface{}) Msg {
	return Msg{sender, payload}
}

// PID returns the sender's PID
func (m Msg) PID() uuid.UUID {
	return m.sender
}

// Payload returns the message data
func (m Msg) Payload() interface{} {
	return m.payload
}
