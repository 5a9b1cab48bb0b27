package errors

import stdErrors "errors"

// Sentinel errors returned directly to callers of the public API. Unlike the
// structured StorageError/IndexError/ValidationError hierarchy above, these
// are meant to be compared with errors.Is at the call site, mirroring how
// the original engine exposes a fixed, enumerable set of failure reasons.
var (
	// Input errors.
	ErrKeyIsEmpty          = stdErrors.New("the key is empty")
	ErrExceedMaxBatchNum   = stdErrors.New("exceeded the maximum batch size")
	ErrDirPathIsEmpty      = stdErrors.New("database directory path is empty")
	ErrDataFileSizeTooSmall = stdErrors.New("data file size must be greater than zero")
	ErrInvalidMergeRatio   = stdErrors.New("invalid merge ratio, must be within [0, 1]")

	// Lookup errors.
	ErrKeyNotFound     = stdErrors.New("key not found in database")
	ErrDataFileNotFound = stdErrors.New("data file not found")

	// Filesystem errors.
	ErrFailedToOpenDataFile       = stdErrors.New("failed to open data file")
	ErrFailedToReadFromDataFile   = stdErrors.New("failed to read from data file")
	ErrFailedToWriteToDataFile    = stdErrors.New("failed to write to data file")
	ErrFailedToSyncToDataFile     = stdErrors.New("failed to sync data file")
	ErrFailedToCreateDatabaseDir  = stdErrors.New("failed to create database directory")
	ErrFailedToReadDatabaseDir    = stdErrors.New("failed to read database directory")

	// Integrity / framing errors.
	ErrInvalidLogRecordCRC  = stdErrors.New("invalid crc value, log record may be corrupted")
	ErrDataDirectoryCorrupted = stdErrors.New("the database directory maybe corrupted")

	// State errors.
	ErrIndexUpdateFailed    = stdErrors.New("failed to update the index")
	ErrDatabaseInUse        = stdErrors.New("the database directory is used by another process")
	ErrMergeInProgress      = stdErrors.New("a merge is already in progress, try again later")
	ErrMergeRatioUnreached  = stdErrors.New("the merge ratio has not been reached")
	ErrMergeNoEnoughSpace   = stdErrors.New("not enough free disk space to perform a merge")
	ErrUnableToUseWriteBatch = stdErrors.New("unable to use write batch, sequence number file does not exist")
	ErrBatchAlreadyCommitted = stdErrors.New("write batch has already been committed")
)
