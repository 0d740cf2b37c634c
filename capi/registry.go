package capi

import (
	"sync"
	"sync/atomic"
)

// The completion registry is the only place callback identity is
// established. Tokens are process-unique, handed out monotonically, and
// never reused; token 0 is reserved as the null token. Entries are
// inserted when a Future is created and removed when it is closed, so a
// late delivery for a closed token simply finds no entry.
var (
	registryMu sync.Mutex
	registry   = make(map[uint64]*completion)
	lastToken  atomic.Uint64 // first token handed out is 1
)

func registerCompletion() *completion {
	c := &completion{
		id:   lastToken.Add(1),
		done: make(chan struct{}),
	}
	registryMu.Lock()
	registry[c.id] = c
	registryMu.Unlock()
	return c
}

func lookupCompletion(token uint64) (*completion, bool) {
	registryMu.Lock()
	c, ok := registry[token]
	registryMu.Unlock()
	return c, ok
}

func deregisterCompletion(token uint64) {
	registryMu.Lock()
	delete(registry, token)
	registryMu.Unlock()
}

func registrySize() int {
	registryMu.Lock()
	defer registryMu.Unlock()
	return len(registry)
}
