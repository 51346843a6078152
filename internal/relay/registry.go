// Package relay holds the room registry, the broadcast engine, the presence
// notifier, and the liveness monitor.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"

	"pairlink/internal/message"
)

type room struct {
	members map[Conn]struct{}
}

// Registry maps room codes to rooms and fans inbound messages out to room
// members. All state lives on the Run goroutine and is reached only through
// the event channel, so joins, leaves, and relays for a room are processed
// in a single total order with no locks.
type Registry struct {
	rooms   map[string]*room
	codes   map[Conn]string
	events  chan event
	history HistoryStore
}

type event interface{}

type joinEvent struct {
	code string
	conn Conn
}

type leaveEvent struct {
	conn Conn
}

type relayEvent struct {
	sender Conn
	data   []byte
}

type sweepEvent struct{}

type statsEvent struct {
	reply chan [2]int
}

func NewRegistry(history HistoryStore) *Registry {
	return &Registry{
		rooms:   make(map[string]*room),
		codes:   make(map[Conn]string),
		events:  make(chan event),
		history: history,
	}
}

// Join places a connection into the room for code, creating the room on
// first use.
func (r *Registry) Join(code string, conn Conn) {
	r.events <- joinEvent{code: code, conn: conn}
}

// Leave removes a connection from its room and notifies the remaining
// members.
func (r *Registry) Leave(conn Conn) {
	r.events <- leaveEvent{conn: conn}
}

// Relay forwards a raw frame to every other open member of the sender's
// room.
func (r *Registry) Relay(sender Conn, data []byte) {
	r.events <- relayEvent{sender: sender, data: data}
}

// Sweep runs one liveness pass over every tracked connection.
func (r *Registry) Sweep() {
	r.events <- sweepEvent{}
}

// Stats reports current room and connection counts.
func (r *Registry) Stats() (rooms, clients int) {
	reply := make(chan [2]int, 1)
	r.events <- statsEvent{reply: reply}
	counts := <-reply
	return counts[0], counts[1]
}

// Run processes events until ctx is cancelled. It owns all registry state.
func (r *Registry) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.events:
			switch ev := ev.(type) {
			case joinEvent:
				r.handleJoin(ev.code, ev.conn)
			case leaveEvent:
				r.handleLeave(ev.conn)
			case relayEvent:
				r.handleRelay(ev.sender, ev.data)
			case sweepEvent:
				r.handleSweep()
			case statsEvent:
				ev.reply <- [2]int{len(r.rooms), len(r.codes)}
			}
		}
	}
}

func (r *Registry) handleJoin(code string, conn Conn) {
	rm, ok := r.rooms[code]
	if !ok {
		rm = &room{members: make(map[Conn]struct{})}
		r.rooms[code] = rm
	}
	rm.members[conn] = struct{}{}
	r.codes[conn] = code
	conn.SetAlive(true)

	slog.Info("client connected", "room", code, "connId", conn.ID(), "clients", len(rm.members))

	// Presence fires on the pairing transition only. A third join is
	// accepted silently.
	if len(rm.members) == 2 {
		for m := range rm.members {
			m.Send(message.PartnerConnected())
		}
		slog.Info("room paired", "room", code)
	}

	// Replay runs off the loop so a slow store never stalls other rooms.
	go r.replayHistory(code, conn)
}

func (r *Registry) replayHistory(code string, conn Conn) {
	stored, err := r.history.Load(context.Background(), code)
	if err != nil {
		slog.Error("history load failed", "room", code, "error", err)
		return
	}
	if stored == nil {
		return
	}
	frame, err := message.HistoryRestore(stored)
	if err != nil {
		slog.Error("history frame encode failed", "room", code, "error", err)
		return
	}
	if err := conn.Send(frame); err != nil {
		slog.Warn("history replay dropped", "room", code, "connId", conn.ID(), "error", err)
	}
}

func (r *Registry) handleLeave(conn Conn) {
	code, ok := r.codes[conn]
	if !ok {
		// Close path can race the sweep's terminate; only the first wins.
		return
	}
	delete(r.codes, conn)

	rm := r.rooms[code]
	delete(rm.members, conn)
	slog.Info("client disconnected", "room", code, "connId", conn.ID(), "clients", len(rm.members))

	for m := range rm.members {
		m.Send(message.PartnerDisconnected())
	}

	if len(rm.members) == 0 {
		delete(r.rooms, code)
		slog.Info("room removed", "room", code)
	}
}

func (r *Registry) handleRelay(sender Conn, data []byte) {
	code, ok := r.codes[sender]
	if !ok {
		return
	}

	// Broadcast first; persistence never delays delivery.
	for m := range r.rooms[code].members {
		if m == sender || !m.IsOpen() {
			continue
		}
		m.Send(data)
	}

	env, err := message.Parse(data)
	if err != nil {
		slog.Warn("unparseable frame not persisted", "room", code, "connId", sender.ID(), "error", err)
		return
	}
	if !env.Persistable() {
		return
	}

	go func() {
		if err := r.history.Append(context.Background(), code, json.RawMessage(data)); err != nil {
			slog.Error("history append failed", "room", code, "error", err)
		}
	}()
}

func (r *Registry) handleSweep() {
	for conn := range r.codes {
		if !conn.Alive() {
			slog.Info("terminating unresponsive client", "connId", conn.ID(), "room", r.codes[conn])
			conn.Terminate()
			continue
		}
		conn.SetAlive(false)
		conn.Ping()
	}
}
