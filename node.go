package strand

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/machinefabric/strand-go/capi"
)

// DefaultCallTimeout bounds the wait for a terminal callback when the
// caller's context carries no deadline of its own.
const DefaultCallTimeout = 60 * time.Second

// Node is a handle on one engine-side node instance. All methods are
// safe for concurrent use; operations overlap freely once issued, the
// global call lock only serializes the issue boundary itself.
type Node struct {
	eng    capi.Engine
	ref    capi.NodeRef
	limits capi.Limits
	log    zerolog.Logger

	mu        sync.Mutex
	started   bool
	destroyed bool
}

// New creates a node on eng from cfg and waits for it to become ready.
// The configuration is validated locally before anything is issued.
// Nodes start out stopped; call Start before moving data.
func New(eng capi.Engine, cfg Config) (*Node, error) {
	if eng == nil {
		return nil, capi.NewInvalidParameter("engine", "cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	doc, err := json.Marshal(cfg)
	if err != nil {
		return nil, capi.NewConfigError("marshal configuration", err)
	}

	fut := capi.NewFuture()
	var ref capi.NodeRef
	st := capi.Issue(func() capi.Status {
		var s capi.Status
		ref, s = eng.NewNode(doc, capi.Trampoline, fut.Token())
		return s
	})
	if st != capi.StatusOK {
		fut.Close()
		return nil, capi.NewNodeError("new", "engine rejected the configuration")
	}
	ctx, cancel := context.WithTimeout(context.Background(), DefaultCallTimeout)
	defer cancel()
	if _, err := fut.Await(ctx); err != nil {
		return nil, err
	}

	n := &Node{
		eng:    eng,
		ref:    ref,
		limits: capi.DefaultLimits(),
		log:    logger.With().Str("component", "node").Uint64("node", uint64(ref)).Logger(),
	}
	n.log.Debug().Msg("node ready")
	return n, nil
}

// callContext applies the default call timeout when ctx carries no
// deadline.
func callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, DefaultCallTimeout)
}

// call issues one engine operation under the global call lock and
// awaits its terminal payload. rejected is returned when the engine
// refuses the call at the issue boundary, in which case no callback
// will ever fire and the future is closed proactively. sink, when
// non-nil, receives the call's progress payloads.
func (n *Node) call(ctx context.Context, rejected *capi.Error, sink capi.ProgressFunc, issue func(cb capi.Callback, token uint64) capi.Status) ([]byte, error) {
	fut := capi.NewFuture()
	if sink != nil {
		fut.SetProgress(sink)
	}
	st := capi.Issue(func() capi.Status {
		return issue(capi.Trampoline, fut.Token())
	})
	if st != capi.StatusOK {
		fut.Close()
		n.log.Debug().Str("status", st.String()).Msg("engine rejected call")
		return nil, rejected
	}

	ctx, cancel := callContext(ctx)
	defer cancel()
	return fut.Await(ctx)
}

// Start brings the node online.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.started {
		n.mu.Unlock()
		return capi.NewNodeError("start", "node is already started")
	}
	n.mu.Unlock()

	_, err := n.call(ctx, capi.NewNodeError("start", "engine rejected the call"), nil, func(cb capi.Callback, token uint64) capi.Status {
		return n.eng.StartNode(n.ref, cb, token)
	})
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.started = true
	n.mu.Unlock()
	n.log.Debug().Msg("node started")
	return nil
}

// Stop takes the node offline. Open sessions are the engine's to
// refuse afterwards.
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	if !n.started {
		n.mu.Unlock()
		return capi.NewNodeError("stop", "node is not started")
	}
	n.mu.Unlock()

	_, err := n.call(ctx, capi.NewNodeError("stop", "engine rejected the call"), nil, func(cb capi.Callback, token uint64) capi.Status {
		return n.eng.StopNode(n.ref, cb, token)
	})
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.started = false
	n.mu.Unlock()
	n.log.Debug().Msg("node stopped")
	return nil
}

// Started reports whether Start has succeeded without a later Stop.
func (n *Node) Started() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.started
}

// Destroy closes the node and releases its engine reference. The node
// must be stopped first; the handle is unusable afterwards.
func (n *Node) Destroy(ctx context.Context) error {
	n.mu.Lock()
	switch {
	case n.destroyed:
		n.mu.Unlock()
		return capi.NewNodeError("destroy", "node is already destroyed")
	case n.started:
		n.mu.Unlock()
		return capi.NewNodeError("destroy", "node is still started")
	}
	n.mu.Unlock()

	_, err := n.call(ctx, capi.NewNodeError("destroy", "engine rejected the call"), nil, func(cb capi.Callback, token uint64) capi.Status {
		return n.eng.CloseNode(n.ref, cb, token)
	})
	if err != nil {
		return err
	}

	// The destroy itself is synchronous and its status advisory.
	if st := capi.Issue(func() capi.Status { return n.eng.DestroyNode(n.ref) }); st != capi.StatusOK {
		n.log.Debug().Str("status", st.String()).Msg("destroy reported non-ok")
	}
	n.mu.Lock()
	n.destroyed = true
	n.mu.Unlock()
	n.log.Debug().Msg("node destroyed")
	return nil
}

// infoString runs one of the engine's info getters and returns its
// terminal payload as a string.
func (n *Node) infoString(ctx context.Context, op string, issue func(capi.NodeRef, capi.Callback, uint64) capi.Status) (string, error) {
	payload, err := n.call(ctx, capi.NewNodeError(op, "engine rejected the call"), nil, func(cb capi.Callback, token uint64) capi.Status {
		return issue(n.ref, cb, token)
	})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// Version reports the engine library version.
func (n *Node) Version(ctx context.Context) (string, error) {
	return n.infoString(ctx, "version", n.eng.NodeVersion)
}

// Revision reports the engine library revision.
func (n *Node) Revision(ctx context.Context) (string, error) {
	return n.infoString(ctx, "revision", n.eng.NodeRevision)
}

// Repo reports the node's data directory.
func (n *Node) Repo(ctx context.Context) (string, error) {
	return n.infoString(ctx, "repo", n.eng.NodeRepo)
}

// SPR reports the node's signed peer record.
func (n *Node) SPR(ctx context.Context) (string, error) {
	return n.infoString(ctx, "spr", n.eng.NodeSPR)
}

// PeerID reports the node's peer id.
func (n *Node) PeerID(ctx context.Context) (string, error) {
	return n.infoString(ctx, "peer-id", n.eng.NodePeerID)
}
