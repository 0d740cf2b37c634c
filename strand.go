// Package strand is a Go client for a callback-based native content
// store engine. It layers a node API and a chunked-transfer session
// protocol over the completion bridge in the capi subpackage: every
// engine operation is issued synchronously under a global call lock,
// completes through a callback on an engine-owned thread, and is
// awaited as an ordinary context-aware Go call.
//
// The engine behind the boundary is anything implementing capi.Engine;
// the memengine subpackage ships an in-memory implementation used by
// the tests and examples.
package strand

import "github.com/machinefabric/strand-go/capi"

// Completion bridge types
type Status = capi.Status
type Callback = capi.Callback
type NodeRef = capi.NodeRef
type Engine = capi.Engine
type Future = capi.Future
type ProgressFunc = capi.ProgressFunc
type Limits = capi.Limits

// Error surface
type Error = capi.Error
type ErrorType = capi.ErrorType

// Status codes
const StatusOK = capi.StatusOK
const StatusError = capi.StatusError
const StatusMissingCallback = capi.StatusMissingCallback
const StatusProgress = capi.StatusProgress

// Error classifications
const ErrorTypeLibrary = capi.ErrorTypeLibrary
const ErrorTypeInvalidParameter = capi.ErrorTypeInvalidParameter
const ErrorTypeNode = capi.ErrorTypeNode
const ErrorTypeUpload = capi.ErrorTypeUpload
const ErrorTypeDownload = capi.ErrorTypeDownload
const ErrorTypeStorage = capi.ErrorTypeStorage
const ErrorTypeP2P = capi.ErrorTypeP2P
const ErrorTypeConfig = capi.ErrorTypeConfig
const ErrorTypeTimeout = capi.ErrorTypeTimeout
const ErrorTypeCancelled = capi.ErrorTypeCancelled
const ErrorTypeIO = capi.ErrorTypeIO
const ErrorTypeSerialization = capi.ErrorTypeSerialization

// Bridge entry points
var NewFuture = capi.NewFuture
var Trampoline = capi.Trampoline
var Issue = capi.Issue
var DefaultLimits = capi.DefaultLimits

// Error constructors
var NewLibraryError = capi.NewLibraryError
var NewInvalidParameter = capi.NewInvalidParameter
var NewNodeError = capi.NewNodeError
var NewUploadError = capi.NewUploadError
var NewDownloadError = capi.NewDownloadError
var NewStorageError = capi.NewStorageError
var NewP2PError = capi.NewP2PError
var NewConfigError = capi.NewConfigError
var NewTimeoutError = capi.NewTimeoutError
var NewCancelledError = capi.NewCancelledError
var NewIOError = capi.NewIOError
var NewSerializationError = capi.NewSerializationError
