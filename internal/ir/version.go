package ir

// Version constants for the persisted document format and the engine.
const (
	// DocumentVersion is the workflow document schema version.
	DocumentVersion = "1"

	// EngineVersion is the pinsync engine version.
	EngineVersion = "0.1.0"
)
