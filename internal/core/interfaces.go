package core

// Frame is a raw payload queued for one connection (a JSON text frame).
type Frame []byte

// ConnectionID identifies one live transport connection. It is opaque and
// never reused; a reconnecting client gets a fresh one.
type ConnectionID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend enqueues without blocking; a full queue is an error.
	TrySend(Frame) error
	Close()
}

// MemberSession binds a connection id and its transport endpoint.
// This is what the registry stores and the broadcaster fans out to.
type MemberSession interface {
	ID() ConnectionID
	Signal() SignalConnection
}
