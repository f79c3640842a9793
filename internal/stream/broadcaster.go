// Package stream provides WebSocket broadcasting of live leaderboard snapshots.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// SnapshotFunc produces the payload pushed to subscribers. It is called
// once per broadcast, never once per connection.
type SnapshotFunc func(ctx context.Context) (any, error)

// subscriber tracks per-connection state. The write mutex serializes
// all frames to the connection: gorilla/websocket supports at most one
// concurrent writer, and pushes from Run race the initial snapshot sent
// by the HTTP handler without it.
type subscriber struct {
	writeMu sync.Mutex
}

// Broadcaster fans leaderboard snapshots out to WebSocket subscribers.
// Deltas signal it through Notify; signals arriving while a push is in
// flight coalesce into a single follow-up push.
type Broadcaster struct {
	mu          sync.RWMutex
	connections map[*websocket.Conn]*subscriber

	snapshot SnapshotFunc
	notify   chan struct{}
	logger   *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger to use slog.Default.
func NewBroadcaster(snapshot SnapshotFunc, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		connections: make(map[*websocket.Conn]*subscriber),
		snapshot:    snapshot,
		notify:      make(chan struct{}, 1),
		logger:      logger,
	}
}

// Subscribe registers a WebSocket connection for snapshot pushes.
func (b *Broadcaster) Subscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connections[conn] = &subscriber{}
}

// Unsubscribe removes a WebSocket connection.
func (b *Broadcaster) Unsubscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.connections, conn)
}

// ConnectionCount returns the number of active subscribers.
func (b *Broadcaster) ConnectionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.connections)
}

// Notify schedules a snapshot push. Safe to call from any goroutine;
// never blocks.
func (b *Broadcaster) Notify() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Run pushes snapshots until ctx is cancelled. Call in its own goroutine.
func (b *Broadcaster) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.notify:
			b.push(ctx)
		}
	}
}

// SendSnapshot sends the current snapshot to a single connection,
// typically right after it subscribes. The write goes through the
// connection's write mutex, so it cannot interleave with a concurrent
// push.
func (b *Broadcaster) SendSnapshot(ctx context.Context, conn *websocket.Conn) error {
	payload, err := b.snapshot(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.mu.RLock()
	sub := b.connections[conn]
	b.mu.RUnlock()
	if sub == nil {
		// Not subscribed: the caller owns the only writer.
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	sub.writeMu.Lock()
	defer sub.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// push broadcasts one snapshot to every subscriber.
func (b *Broadcaster) push(ctx context.Context) {
	b.mu.RLock()
	subs := make(map[*websocket.Conn]*subscriber, len(b.connections))
	for conn, sub := range b.connections {
		subs[conn] = sub
	}
	b.mu.RUnlock()
	if len(subs) == 0 {
		return
	}

	payload, err := b.snapshot(ctx)
	if err != nil {
		b.logger.Warn("failed to build leaderboard snapshot", "error", err)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("failed to marshal leaderboard snapshot", "error", err)
		return
	}

	for conn, sub := range subs {
		sub.writeMu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		sub.writeMu.Unlock()
		if err != nil {
			// Dead connections are cleaned up by their read loop.
			b.logger.Warn("failed to push snapshot to subscriber", "error", err)
		}
	}
}
