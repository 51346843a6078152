package relay

import (
	"context"
	"encoding/json"
)

// Conn is one peer's channel as the registry sees it. The transport adapter
// in internal/ws implements it; tests use mocks.
type Conn interface {
	ID() string

	// Alive is the heartbeat flag: cleared by the sweep before each probe,
	// set again when a pong arrives.
	Alive() bool
	SetAlive(v bool)

	// IsOpen reports whether frames can still be delivered. Relay skips
	// members that are not open.
	IsOpen() bool

	// Send queues a frame for delivery. Best effort: a closed connection or
	// a full buffer returns an error and the frame is dropped.
	Send(data []byte) error

	// Ping queues a heartbeat probe.
	Ping() error

	// Terminate aborts the transport. The adapter's read loop exits and
	// drives the normal leave path.
	Terminate()
}

// HistoryStore is the external transcript store at its interface boundary.
type HistoryStore interface {
	Load(ctx context.Context, code string) (json.RawMessage, error)
	Append(ctx context.Context, code string, msg json.RawMessage) error
}
