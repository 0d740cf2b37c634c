// Package capi models the native engine boundary and the completion
// machinery that turns its issue-now-callback-later contract into
// awaitable results.
//
// Every long-running engine operation has the same shape: a synchronous
// issue call that returns a Status immediately, plus a Callback invoked
// later from a thread owned by the engine. A non-zero issue Status means
// the operation was rejected and no callback will ever fire. Otherwise
// the callback fires zero or more times with StatusProgress, followed by
// exactly one terminal invocation (StatusOK or StatusError).
//
// Callers never hand the engine a pointer. They create a Future, pass
// Trampoline as the callback together with the future's Token as the
// user-data value, and await the terminal result. The trampoline
// re-resolves the token through the completion registry on every
// delivery, so futures may be moved, closed, or collected while a call
// is still in flight.
package capi

// Status is the return and callback code used across the engine boundary.
type Status int32

const (
	// StatusOK marks an accepted issue call or a terminal success delivery.
	StatusOK Status = 0
	// StatusError marks a rejected issue call or a terminal failure delivery.
	StatusError Status = 1
	// StatusMissingCallback is returned by issue calls given a nil callback.
	StatusMissingCallback Status = 2
	// StatusProgress marks an intermediate progress delivery.
	StatusProgress Status = 3
)

// String returns a human-readable name for the status code.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	case StatusMissingCallback:
		return "missing-callback"
	case StatusProgress:
		return "progress"
	default:
		return "unknown"
	}
}

// Callback receives completion signals from the engine. payload carries
// the terminal message (UTF-8 session tokens, content ids, JSON
// documents) or raw progress bytes; it may be nil. token is the
// user-data value the issuer passed. Callbacks are invoked on
// engine-owned threads and must not block.
type Callback func(status Status, payload []byte, token uint64)

// NodeRef identifies an engine-side node instance. Zero is never a
// valid reference.
type NodeRef uint64

// Engine is the native content-store surface. Except where noted, each
// method is an issue call: it validates its arguments, schedules the
// work, and returns immediately. Results, including error text, arrive
// through cb.
//
// Session tokens and content identifiers are UTF-8 strings delivered as
// the terminal payload. Chunk payloads are raw bytes with explicit
// length; nothing is null-terminated.
type Engine interface {
	// NewNode creates a node from its JSON configuration. The reference
	// is returned synchronously (zero on failure); readiness is
	// confirmed by the terminal callback.
	NewNode(configJSON []byte, cb Callback, token uint64) (NodeRef, Status)
	StartNode(node NodeRef, cb Callback, token uint64) Status
	StopNode(node NodeRef, cb Callback, token uint64) Status
	// CloseNode flushes and shuts the node down; it must complete before
	// DestroyNode is called.
	CloseNode(node NodeRef, cb Callback, token uint64) Status
	// DestroyNode releases the node reference. Synchronous, no callback;
	// the return value is advisory.
	DestroyNode(node NodeRef) Status

	// Node info getters. The terminal payload is the string value.
	NodeVersion(node NodeRef, cb Callback, token uint64) Status
	NodeRevision(node NodeRef, cb Callback, token uint64) Status
	NodeRepo(node NodeRef, cb Callback, token uint64) Status
	NodeSPR(node NodeRef, cb Callback, token uint64) Status
	NodePeerID(node NodeRef, cb Callback, token uint64) Status

	// Upload session protocol. UploadInit delivers the session token;
	// UploadFinalize delivers the content id of the stored dataset.
	UploadInit(node NodeRef, filename string, chunkSize uint64, cb Callback, token uint64) Status
	UploadChunk(node NodeRef, session string, chunk []byte, cb Callback, token uint64) Status
	UploadFinalize(node NodeRef, session string, cb Callback, token uint64) Status
	UploadCancel(node NodeRef, session string, cb Callback, token uint64) Status

	// Download session protocol. DownloadInit delivers the session
	// token. DownloadChunk delivers the next chunk as a single progress
	// signal followed by an empty terminal success; a terminal success
	// with no preceding progress signals exhaustion. DownloadStream
	// delivers every remaining chunk as progress signals before its
	// terminal. DownloadFinalize delivers the content id served.
	DownloadInit(node NodeRef, cid string, cb Callback, token uint64) Status
	DownloadChunk(node NodeRef, session string, cb Callback, token uint64) Status
	DownloadStream(node NodeRef, session string, cb Callback, token uint64) Status
	DownloadFinalize(node NodeRef, session string, cb Callback, token uint64) Status
	DownloadCancel(node NodeRef, session string, cb Callback, token uint64) Status
	// DownloadManifest delivers the manifest JSON for a stored dataset.
	DownloadManifest(node NodeRef, cid string, cb Callback, token uint64) Status

	// Storage queries. Payloads are JSON documents.
	StorageExists(node NodeRef, cid string, cb Callback, token uint64) Status
	StorageFetch(node NodeRef, cid string, cb Callback, token uint64) Status
	StorageDelete(node NodeRef, cid string, cb Callback, token uint64) Status
	StorageList(node NodeRef, cb Callback, token uint64) Status
	StorageSpace(node NodeRef, cb Callback, token uint64) Status

	// Debug and peer operations. Payloads are JSON documents.
	Debug(node NodeRef, cb Callback, token uint64) Status
	SetLogLevel(node NodeRef, level string, cb Callback, token uint64) Status
	PeerDebug(node NodeRef, peerID string, cb Callback, token uint64) Status
	Connect(node NodeRef, peerID string, addrsJSON []byte, cb Callback, token uint64) Status
}
