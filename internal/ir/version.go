package ir

// Version constants for stored documents.
const (
	// FormatVersion is the save document format version.
	FormatVersion = "1"

	// EngineVersion is the flowgrid engine version.
	EngineVersion = "0.1.0"
)
