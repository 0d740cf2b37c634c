package capi

import "sync"

// callMu serializes the issuing of engine calls process-wide. The
// engine cannot safely service two concurrent issue calls; completion
// deliveries are unaffected and arrive on engine threads at any time.
var callMu sync.Mutex

// Issue runs fn, an engine issue call, under the global call lock and
// returns its status. fn must return promptly and must never wait for
// a completion: the lock is held only across the synchronous issue
// boundary, never across an await, so long-running operations overlap
// freely once issued.
//
// When Issue reports a non-zero status the caller must Close the
// future it created for the call: the engine rejected the operation
// and no callback will ever fire.
func Issue(fn func() Status) Status {
	callMu.Lock()
	defer callMu.Unlock()
	return fn()
}
