// Package broadcast defines the port for broadcasting real-time events to connected clients.
package broadcast

import "context"

// Broadcaster sends real-time events to all connected observers.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to all connected observers.
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}

// Noop discards all events. Used when no observer surface is wired.
type Noop struct{}

// BroadcastEvent implements Broadcaster.
func (Noop) BroadcastEvent(context.Context, string, any) {}
