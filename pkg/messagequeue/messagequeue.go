// Package messagequeue publishes engine events (presence transitions,
// entitlement changes) for external consumers such as "who is online"
// displays. Publishing is always best-effort from the engine's point of view.
package messagequeue

// Queue names the engine publishes to.
const (
	PresenceQueue    = "presence.events"
	EntitlementQueue = "entitlement.events"
)

// MessageQueue defines the interface for message queue services.
type MessageQueue interface {
	Publish(queueName string, body []byte) error
	Close() error
}
