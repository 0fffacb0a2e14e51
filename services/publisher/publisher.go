package publisher

// Publisher feeds scraped records to downstream consumers
type Publisher interface {
	// Publish appends a message to the stream for the given district
	Publish(district string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams() error

	// Close closes the publisher connection
	Close() error
}
