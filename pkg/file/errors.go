package file

import "errors"

var (
	ErrInvalidKey    = errors.New("invalid object key")
	ErrEmptyObject   = errors.New("object body is empty")
	ErrFileNotFound  = errors.New("file not found")
	ErrInvalidConfig = errors.New("invalid configuration")

	ErrFailedToWriteFile       = errors.New("failed to write file")
	ErrFailedToDeleteFile      = errors.New("failed to delete file")
	ErrFailedToCreateDirectory = errors.New("failed to create directory")
	ErrFailedToLoadConfig      = errors.New("failed to load AWS config")

	ErrBucketNotFound     = errors.New("bucket not found")
	ErrAccessDenied       = errors.New("access denied")
	ErrRequestTimeout     = errors.New("request timed out")
	ErrServiceUnavailable = errors.New("service temporarily unavailable")

	ErrOperationTimeout  = errors.New("operation timed out")
	ErrOperationCanceled = errors.New("operation canceled")
)
