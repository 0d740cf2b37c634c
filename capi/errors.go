package capi

import "fmt"

// Error is the error type surfaced by every bridge operation.
type Error struct {
	Type ErrorType
	Op   string // operation or parameter name the error is about
	Msg  string
	Err  error // underlying cause, may be nil
}

// ErrorType classifies bridge errors.
type ErrorType int

const (
	ErrorTypeLibrary ErrorType = iota
	ErrorTypeInvalidParameter
	ErrorTypeNode
	ErrorTypeUpload
	ErrorTypeDownload
	ErrorTypeStorage
	ErrorTypeP2P
	ErrorTypeConfig
	ErrorTypeTimeout
	ErrorTypeCancelled
	ErrorTypeIO
	ErrorTypeSerialization
)

func (e *Error) Error() string {
	switch e.Type {
	case ErrorTypeLibrary:
		return fmt.Sprintf("Library error: %s", e.Msg)
	case ErrorTypeInvalidParameter:
		return fmt.Sprintf("Invalid parameter %s: %s", e.Op, e.Msg)
	case ErrorTypeNode:
		return fmt.Sprintf("Node error in %s: %s", e.Op, e.Msg)
	case ErrorTypeUpload:
		return fmt.Sprintf("Upload error: %s", e.Msg)
	case ErrorTypeDownload:
		return fmt.Sprintf("Download error: %s", e.Msg)
	case ErrorTypeStorage:
		return fmt.Sprintf("Storage error in %s: %s", e.Op, e.Msg)
	case ErrorTypeP2P:
		return fmt.Sprintf("P2P error: %s", e.Msg)
	case ErrorTypeConfig:
		return fmt.Sprintf("Config error: %s", e.Msg)
	case ErrorTypeTimeout:
		return fmt.Sprintf("Operation timed out: %s", e.Op)
	case ErrorTypeCancelled:
		return fmt.Sprintf("Operation cancelled: %s", e.Op)
	case ErrorTypeIO:
		return fmt.Sprintf("I/O error: %s", e.Msg)
	case ErrorTypeSerialization:
		return fmt.Sprintf("Serialization error: %s", e.Msg)
	default:
		return fmt.Sprintf("Unknown error: %s", e.Msg)
	}
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.Err }

// NewLibraryError reports an opaque engine-side terminal failure.
func NewLibraryError(msg string) *Error {
	return &Error{Type: ErrorTypeLibrary, Msg: msg}
}

// NewInvalidParameter reports a local validation failure. These are
// raised before the engine boundary or the completion registry is
// touched.
func NewInvalidParameter(param, msg string) *Error {
	return &Error{Type: ErrorTypeInvalidParameter, Op: param, Msg: msg}
}

// NewNodeError reports a failure of a node lifecycle or info operation.
func NewNodeError(op, msg string) *Error {
	return &Error{Type: ErrorTypeNode, Op: op, Msg: msg}
}

// NewUploadError reports an upload session failure.
func NewUploadError(msg string) *Error {
	return &Error{Type: ErrorTypeUpload, Msg: msg}
}

// NewDownloadError reports a download session failure.
func NewDownloadError(msg string) *Error {
	return &Error{Type: ErrorTypeDownload, Msg: msg}
}

// NewStorageError reports a storage query failure.
func NewStorageError(op, msg string) *Error {
	return &Error{Type: ErrorTypeStorage, Op: op, Msg: msg}
}

// NewP2PError reports a peer operation failure.
func NewP2PError(msg string) *Error {
	return &Error{Type: ErrorTypeP2P, Msg: msg}
}

// NewConfigError reports an invalid node configuration.
func NewConfigError(msg string, cause error) *Error {
	return &Error{Type: ErrorTypeConfig, Msg: msg, Err: cause}
}

// NewTimeoutError reports that the local wait for op was abandoned. The
// engine-side operation may still complete; its result will have no
// observer.
func NewTimeoutError(op string) *Error {
	return &Error{Type: ErrorTypeTimeout, Op: op}
}

// NewCancelledError reports that op was explicitly cancelled.
func NewCancelledError(op string) *Error {
	return &Error{Type: ErrorTypeCancelled, Op: op}
}

// NewIOError reports a local I/O failure.
func NewIOError(msg string, cause error) *Error {
	return &Error{Type: ErrorTypeIO, Msg: msg, Err: cause}
}

// NewSerializationError reports a local encode or decode failure.
func NewSerializationError(msg string, cause error) *Error {
	return &Error{Type: ErrorTypeSerialization, Msg: msg, Err: cause}
}
