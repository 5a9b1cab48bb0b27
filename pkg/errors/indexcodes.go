package errors

// Index-specific error codes extend the base taxonomy to the failure
// modes unique to keydir operations: missing keys, inconsistency between
// the index and the segments it points into, and structural corruption.
const (
	// ErrorCodeIndexKeyNotFound indicates a lookup found no entry for the
	// requested key.
	ErrorCodeIndexKeyNotFound ErrorCode = "INDEX_KEY_NOT_FOUND"

	// ErrorCodeIndexInvalidSegmentID indicates an index entry points at a
	// segment ID that no longer exists on disk.
	ErrorCodeIndexInvalidSegmentID ErrorCode = "INDEX_INVALID_SEGMENT_ID"

	// ErrorCodeIndexTimestampExtraction indicates a failure deriving
	// ordering information from a segment's filename.
	ErrorCodeIndexTimestampExtraction ErrorCode = "INDEX_TIMESTAMP_EXTRACTION_FAILED"

	// ErrorCodeIndexCorrupted indicates the index's internal data
	// structure is no longer consistent and requires a rebuild.
	ErrorCodeIndexCorrupted ErrorCode = "INDEX_CORRUPTED"
)
