package config

// NSQ topics used by the queued ingest mode.
const (
	// TopicIngest carries a document id whose chunking/embedding/persistence
	// is still pending.
	TopicIngest = "document.ingest"
)
