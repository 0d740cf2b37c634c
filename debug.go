package strand

import (
	"context"
	"encoding/json"

	"github.com/machinefabric/strand-go/capi"
)

// DebugInfo is the node self-description returned by Debug.
type DebugInfo struct {
	Id                string         `json:"id"`
	Addrs             []string       `json:"addrs"`
	Spr               string         `json:"spr"`
	AnnounceAddresses []string       `json:"announceAddresses"`
	Table             DiscoveryTable `json:"table"`
}

// DiscoveryTable is the node's view of the discovery network.
type DiscoveryTable struct {
	LocalNode LocalNodeInfo   `json:"localNode"`
	Nodes     []LocalNodeInfo `json:"nodes"`
}

// LocalNodeInfo is one discovery table row.
type LocalNodeInfo struct {
	NodeId  string `json:"nodeId"`
	PeerId  string `json:"peerId"`
	Record  string `json:"record"`
	Address string `json:"address"`
	Seen    bool   `json:"seen"`
}

// PeerRecord describes one peer the node knows about.
type PeerRecord struct {
	Id        string   `json:"id"`
	Addresses []string `json:"addresses"`
	Connected bool     `json:"connected"`
	Direction string   `json:"direction"`
	LatencyMs uint64   `json:"latency_ms,omitempty"`
	Protocols []string `json:"protocols"`
	UserAgent string   `json:"user_agent"`
	LastSeen  string   `json:"last_seen"`
}

// Debug returns the node's debug document.
func (n *Node) Debug(ctx context.Context) (*DebugInfo, error) {
	payload, err := n.call(ctx, capi.NewNodeError("debug", "engine rejected the call"), nil, func(cb capi.Callback, token uint64) capi.Status {
		return n.eng.Debug(n.ref, cb, token)
	})
	if err != nil {
		return nil, err
	}
	var info DebugInfo
	if err := json.Unmarshal(payload, &info); err != nil {
		return nil, capi.NewSerializationError("decode debug info", err)
	}
	return &info, nil
}

// PeerDebug returns what the node knows about the peer peerID.
func (n *Node) PeerDebug(ctx context.Context, peerID string) (*PeerRecord, error) {
	if peerID == "" {
		return nil, capi.NewInvalidParameter("peer-id", "cannot be empty")
	}
	payload, err := n.call(ctx, capi.NewP2PError("failed to query peer"), nil, func(cb capi.Callback, token uint64) capi.Status {
		return n.eng.PeerDebug(n.ref, peerID, cb, token)
	})
	if err != nil {
		return nil, err
	}
	var rec PeerRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, capi.NewSerializationError("decode peer record", err)
	}
	return &rec, nil
}

// SetLogLevel switches the engine's log level at runtime.
func (n *Node) SetLogLevel(ctx context.Context, level LogLevel) error {
	if level == "" {
		return capi.NewInvalidParameter("level", "cannot be empty")
	}
	_, err := n.call(ctx, capi.NewNodeError("set-log-level", "engine rejected the call"), nil, func(cb capi.Callback, token uint64) capi.Status {
		return n.eng.SetLogLevel(n.ref, level.String(), cb, token)
	})
	return err
}

// Connect dials the peer peerID at the given addresses.
func (n *Node) Connect(ctx context.Context, peerID string, addrs []string) error {
	if peerID == "" {
		return capi.NewInvalidParameter("peer-id", "cannot be empty")
	}
	if len(addrs) == 0 {
		return capi.NewInvalidParameter("addresses", "cannot be empty")
	}
	doc, err := json.Marshal(addrs)
	if err != nil {
		return capi.NewSerializationError("encode addresses", err)
	}
	_, cerr := n.call(ctx, capi.NewP2PError("failed to connect to peer"), nil, func(cb capi.Callback, token uint64) capi.Status {
		return n.eng.Connect(n.ref, peerID, doc, cb, token)
	})
	return cerr
}
