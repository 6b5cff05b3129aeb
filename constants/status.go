package constants

// IngestionStatus tracks a pending ingestion through its lifecycle.
type IngestionStatus string

// Stable values (these exact strings appear in logs and responses).
const (
	IngestionUploaded  IngestionStatus = "UPLOADED"  // file received, not yet extracted
	IngestionExtracted IngestionStatus = "EXTRACTED" // text extracted, analysis pending
	IngestionAnalyzed  IngestionStatus = "ANALYZED"  // staged, awaiting user confirmation
	IngestionConfirmed IngestionStatus = "CONFIRMED" // persisted as a structured record
	IngestionRejected  IngestionStatus = "REJECTED"  // discarded by the user
	IngestionExpired   IngestionStatus = "EXPIRED"   // discarded by the expiry timer
)
