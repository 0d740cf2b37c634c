package capi

import (
	"context"
	"sync"
)

// Future is the awaitable handle for one engine operation. Create one,
// issue the engine call with Trampoline and the future's Token, then
// Await the terminal result.
//
// A Future is safe for concurrent use. It holds no engine resources:
// closing it (or abandoning the wait) only removes the local registry
// entry and never signals the engine to stop work. Aborting
// engine-side work requires an explicit session cancel operation.
type Future struct {
	c         *completion
	closeOnce sync.Once
}

// NewFuture allocates a completion context and registers it.
func NewFuture() *Future {
	return &Future{c: registerCompletion()}
}

// Token returns the numeric id identifying this future's completion
// context, for use as the engine call's user-data argument. The engine
// hands the token back verbatim; the trampoline re-resolves it through
// the registry, so the token stays valid no matter what happens to the
// Future in the meantime.
func (f *Future) Token() uint64 { return f.c.id }

// SetProgress installs fn as the progress sink, replacing any previous
// one. fn is invoked once per progress delivery, on an engine-owned
// thread; it must not block.
func (f *Future) SetProgress(fn ProgressFunc) { f.c.setSink(fn) }

// Done returns a channel closed when the terminal result is set.
func (f *Future) Done() <-chan struct{} { return f.c.done }

// Result is a non-destructive read of the terminal result. ok reports
// whether the terminal delivery has happened; once it has, repeated
// calls return the same payload and error.
func (f *Future) Result() (payload []byte, terr error, ok bool) {
	return f.c.result()
}

// Await blocks until the terminal result arrives or ctx is done. A ctx
// expiry abandons only the local wait and yields a timeout error: the
// engine-side operation keeps running and its eventual result is
// dropped. The future is closed on return, whichever way it exits.
func (f *Future) Await(ctx context.Context) ([]byte, error) {
	defer f.Close()
	select {
	case <-f.c.done:
		payload, terr, _ := f.c.result()
		return payload, terr
	case <-ctx.Done():
		return nil, &Error{Type: ErrorTypeTimeout, Op: "callback wait", Err: ctx.Err()}
	}
}

// Close removes the completion context from the registry. Safe to call
// any number of times. Deliveries arriving after Close are dropped by
// the trampoline; results already delivered stay readable via Result.
//
// Close must also be called when an issue call fails (non-zero status):
// no callback will ever fire for the token, and the entry would
// otherwise stay registered forever.
func (f *Future) Close() {
	f.closeOnce.Do(func() {
		deregisterCompletion(f.c.id)
	})
}
