// Package memengine is a self-contained, in-memory implementation of
// the capi.Engine surface. It honors the boundary contract exactly:
// issue calls validate synchronously and return a Status, results are
// delivered later through the callback from goroutines the engine owns,
// and every accepted operation produces exactly one terminal delivery.
//
// It backs the test suites and the example binaries, and doubles as the
// reference for how an engine is expected to behave behind the bridge.
package memengine

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/machinefabric/strand-go/capi"
)

// Engine identity reported by the info getters.
const (
	EngineVersion  = "0.4.2"
	EngineRevision = "8c1d5f2"
)

// Engine implements capi.Engine in memory.
type Engine struct {
	mu      sync.Mutex
	nodes   map[capi.NodeRef]*node
	lastRef atomic.Uint64
	log     zerolog.Logger
}

// New returns an empty engine.
func New() *Engine {
	return &Engine{
		nodes: make(map[capi.NodeRef]*node),
		log:   zerolog.Nop(),
	}
}

// SetLogger routes engine diagnostics to l. Call before issuing traffic.
func (e *Engine) SetLogger(l zerolog.Logger) {
	e.log = l
}

// node is one engine-side node instance.
type node struct {
	mu          sync.Mutex
	cfg         nodeConfig
	started     bool
	closed      bool
	peerID      string
	spr         string
	listenAddrs []string
	store       *store
	uploads     map[string]*uploadSession
	downloads   map[string]*downloadSession
	peers       map[string]*peerRecord
	logLevel    string
}

// nodeConfig is the subset of the configuration JSON the engine acts
// on. Unknown fields are ignored.
type nodeConfig struct {
	LogLevel     string   `json:"log-level"`
	LogFormat    string   `json:"log-format"`
	DataDir      string   `json:"data-dir"`
	ListenAddrs  []string `json:"listen-addrs"`
	DiscPort     uint16   `json:"disc-port"`
	Bootstrap    []string `json:"bootstrap-node"`
	MaxPeers     uint32   `json:"max-peers"`
	AgentString  string   `json:"agent-string"`
	RepoKind     string   `json:"repo-kind"`
	StorageQuota string   `json:"storage-quota"` // decimal string, bytes
	BlockTTL     uint32   `json:"block-ttl"`
}

func (c *nodeConfig) quotaBytes() (uint64, error) {
	if c.StorageQuota == "" {
		return DefaultQuota, nil
	}
	return strconv.ParseUint(c.StorageQuota, 10, 64)
}

func (e *Engine) node(ref capi.NodeRef) (*node, bool) {
	e.mu.Lock()
	n, ok := e.nodes[ref]
	e.mu.Unlock()
	return n, ok
}

// guard checks the preconditions shared by every async operation: a
// callback to deliver into and a node to operate on. A non-OK status
// means the issue call is rejected and no callback will fire.
func (e *Engine) guard(ref capi.NodeRef, cb capi.Callback) (*node, capi.Status) {
	if cb == nil {
		return nil, capi.StatusMissingCallback
	}
	n, ok := e.node(ref)
	if !ok {
		return nil, capi.StatusError
	}
	return n, capi.StatusOK
}

// notReady reports why the node cannot serve data operations; nil when
// it can.
func (n *node) notReady() []byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return []byte("node is closed")
	}
	if !n.started {
		return []byte("node is not started")
	}
	return nil
}

func newIdentity() (peerID, spr string) {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return raw, "spr:" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewNode parses the configuration, allocates the node, and returns its
// reference synchronously. Readiness is confirmed through the callback.
func (e *Engine) NewNode(configJSON []byte, cb capi.Callback, token uint64) (capi.NodeRef, capi.Status) {
	if cb == nil {
		return 0, capi.StatusMissingCallback
	}
	var cfg nodeConfig
	if err := json.Unmarshal(configJSON, &cfg); err != nil {
		return 0, capi.StatusError
	}
	quota, err := cfg.quotaBytes()
	if err != nil {
		return 0, capi.StatusError
	}

	peerID, spr := newIdentity()
	addrs := cfg.ListenAddrs
	if len(addrs) == 0 {
		addrs = []string{"/ip4/0.0.0.0/tcp/0"}
	}
	n := &node{
		cfg:         cfg,
		peerID:      peerID,
		spr:         spr,
		listenAddrs: addrs,
		store:       newStore(quota),
		uploads:     make(map[string]*uploadSession),
		downloads:   make(map[string]*downloadSession),
		peers:       make(map[string]*peerRecord),
		logLevel:    cfg.LogLevel,
	}
	if n.logLevel == "" {
		n.logLevel = "info"
	}

	ref := capi.NodeRef(e.lastRef.Add(1))
	e.mu.Lock()
	e.nodes[ref] = n
	e.mu.Unlock()
	e.log.Debug().Uint64("node", uint64(ref)).Str("peer", peerID).Msg("node created")

	go cb(capi.StatusOK, nil, token)
	return ref, capi.StatusOK
}

func (e *Engine) StartNode(ref capi.NodeRef, cb capi.Callback, token uint64) capi.Status {
	n, st := e.guard(ref, cb)
	if st != capi.StatusOK {
		return st
	}
	go func() {
		n.mu.Lock()
		switch {
		case n.closed:
			n.mu.Unlock()
			cb(capi.StatusError, []byte("node is closed"), token)
		case n.started:
			n.mu.Unlock()
			cb(capi.StatusError, []byte("node is already started"), token)
		default:
			n.started = true
			n.mu.Unlock()
			cb(capi.StatusOK, nil, token)
		}
	}()
	return capi.StatusOK
}

func (e *Engine) StopNode(ref capi.NodeRef, cb capi.Callback, token uint64) capi.Status {
	n, st := e.guard(ref, cb)
	if st != capi.StatusOK {
		return st
	}
	go func() {
		n.mu.Lock()
		if !n.started {
			n.mu.Unlock()
			cb(capi.StatusError, []byte("node is not started"), token)
			return
		}
		n.started = false
		n.mu.Unlock()
		cb(capi.StatusOK, nil, token)
	}()
	return capi.StatusOK
}

func (e *Engine) CloseNode(ref capi.NodeRef, cb capi.Callback, token uint64) capi.Status {
	n, st := e.guard(ref, cb)
	if st != capi.StatusOK {
		return st
	}
	go func() {
		n.mu.Lock()
		n.started = false
		n.closed = true
		n.mu.Unlock()
		cb(capi.StatusOK, nil, token)
	}()
	return capi.StatusOK
}

// DestroyNode drops the node reference. Synchronous and advisory, like
// the native call it mirrors: destroying an unknown reference is not an
// error.
func (e *Engine) DestroyNode(ref capi.NodeRef) capi.Status {
	e.mu.Lock()
	delete(e.nodes, ref)
	e.mu.Unlock()
	e.log.Debug().Uint64("node", uint64(ref)).Msg("node destroyed")
	return capi.StatusOK
}

// info delivers a static string through the callback path.
func (e *Engine) info(ref capi.NodeRef, cb capi.Callback, token uint64, value func(n *node) string) capi.Status {
	n, st := e.guard(ref, cb)
	if st != capi.StatusOK {
		return st
	}
	go cb(capi.StatusOK, []byte(value(n)), token)
	return capi.StatusOK
}

func (e *Engine) NodeVersion(ref capi.NodeRef, cb capi.Callback, token uint64) capi.Status {
	return e.info(ref, cb, token, func(*node) string { return EngineVersion })
}

func (e *Engine) NodeRevision(ref capi.NodeRef, cb capi.Callback, token uint64) capi.Status {
	return e.info(ref, cb, token, func(*node) string { return EngineRevision })
}

func (e *Engine) NodeRepo(ref capi.NodeRef, cb capi.Callback, token uint64) capi.Status {
	return e.info(ref, cb, token, func(n *node) string {
		if n.cfg.DataDir != "" {
			return n.cfg.DataDir
		}
		return "strand-data"
	})
}

func (e *Engine) NodeSPR(ref capi.NodeRef, cb capi.Callback, token uint64) capi.Status {
	return e.info(ref, cb, token, func(n *node) string { return n.spr })
}

func (e *Engine) NodePeerID(ref capi.NodeRef, cb capi.Callback, token uint64) capi.Status {
	return e.info(ref, cb, token, func(n *node) string { return n.peerID })
}
