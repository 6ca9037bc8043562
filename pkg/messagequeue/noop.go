package messagequeue

// NoOpQueue discards all messages. Used when no broker is configured.
type NoOpQueue struct{}

// NewNoOpQueue creates a NoOpQueue.
func NewNoOpQueue() MessageQueue {
	return NoOpQueue{}
}

// Publish discards the message.
func (NoOpQueue) Publish(queueName string, body []byte) error { return nil }

// Close is a no-op.
func (NoOpQueue) Close() error { return nil }
