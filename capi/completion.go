package capi

import "sync"

// ProgressFunc consumes intermediate progress payloads. It is invoked
// on engine-owned threads: it must not block and should only hand the
// bytes off (buffer them or enqueue them) for a consumer elsewhere.
type ProgressFunc func(payload []byte)

// outcome is the terminal result of one operation: payload on success,
// err on failure. Exactly one outcome is ever stored per completion.
type outcome struct {
	payload []byte
	err     error
}

// completion is the per-operation state shared between the registry
// entry and the Future that created it. The engine never sees it; it
// only ever sees the numeric id.
type completion struct {
	id   uint64
	mu   sync.Mutex
	done chan struct{} // closed exactly once, when res is set
	res  *outcome      // nil until the terminal delivery
	sink ProgressFunc
}

// terminal stores the one terminal result and wakes waiters. Later
// terminal deliveries for the same completion are dropped.
func (c *completion) terminal(payload []byte, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.res != nil {
		return
	}
	c.res = &outcome{payload: payload, err: err}
	close(c.done)
}

// progress hands payload to the installed sink. It never touches the
// terminal slot and never wakes completion waiters; a delivery that
// arrives after the terminal result is dropped.
func (c *completion) progress(payload []byte) {
	c.mu.Lock()
	if c.res != nil {
		c.mu.Unlock()
		return
	}
	sink := c.sink
	c.mu.Unlock()
	if sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Uint64("token", c.id).
				Msg("progress sink panicked")
		}
	}()
	sink(payload)
}

func (c *completion) setSink(fn ProgressFunc) {
	c.mu.Lock()
	c.sink = fn
	c.mu.Unlock()
}

// result is a non-destructive read of the terminal slot. It can be
// observed any number of times and always yields the same value.
func (c *completion) result() (payload []byte, terr error, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.res == nil {
		return nil, nil, false
	}
	return c.res.payload, c.res.err, true
}
