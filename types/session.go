package types

// SessionMeta carries the identity of one download session.
// All log entries include these fields.
type SessionMeta struct {
	// SessionID identifies this invocation (for correlating logs).
	SessionID string
	// StartPart is the part number the cursor started from.
	StartPart int
	// SkipDownloaded records whether previously downloaded parts are skipped.
	SkipDownloaded bool
}
