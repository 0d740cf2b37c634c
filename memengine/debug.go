package memengine

import (
	"encoding/json"
	"time"

	"github.com/machinefabric/strand-go/capi"
)

// debugInfo is the diagnostics document. Key casing matches what node
// clients parse.
type debugInfo struct {
	Id                string         `json:"id"`
	Addrs             []string       `json:"addrs"`
	Spr               string         `json:"spr"`
	AnnounceAddresses []string       `json:"announceAddresses"`
	Table             discoveryTable `json:"table"`
}

type discoveryTable struct {
	LocalNode localNodeInfo   `json:"localNode"`
	Nodes     []localNodeInfo `json:"nodes"`
}

type localNodeInfo struct {
	NodeId  string `json:"nodeId"`
	PeerId  string `json:"peerId"`
	Record  string `json:"record"`
	Address string `json:"address"`
	Seen    bool   `json:"seen"`
}

// peerRecord is the per-peer diagnostics document, snake_case on the
// wire.
type peerRecord struct {
	Id        string   `json:"id"`
	Addresses []string `json:"addresses"`
	Connected bool     `json:"connected"`
	Direction string   `json:"direction"`
	LatencyMs uint64   `json:"latency_ms,omitempty"`
	Protocols []string `json:"protocols"`
	UserAgent string   `json:"user_agent"`
	LastSeen  string   `json:"last_seen"`
}

var logLevels = map[string]bool{
	"trace":  true,
	"debug":  true,
	"info":   true,
	"notice": true,
	"warn":   true,
	"error":  true,
	"fatal":  true,
}

// Debug reports node diagnostics. Available through the whole
// lifecycle, started or not.
func (e *Engine) Debug(ref capi.NodeRef, cb capi.Callback, token uint64) capi.Status {
	n, st := e.guard(ref, cb)
	if st != capi.StatusOK {
		return st
	}
	go func() {
		n.mu.Lock()
		addr := ""
		if len(n.listenAddrs) > 0 {
			addr = n.listenAddrs[0]
		}
		info := debugInfo{
			Id:                n.peerID,
			Addrs:             append([]string(nil), n.listenAddrs...),
			Spr:               n.spr,
			AnnounceAddresses: append([]string(nil), n.listenAddrs...),
			Table: discoveryTable{
				LocalNode: localNodeInfo{
					NodeId:  n.peerID,
					PeerId:  n.peerID,
					Record:  n.spr,
					Address: addr,
					Seen:    n.started,
				},
				Nodes: make([]localNodeInfo, 0, len(n.peers)),
			},
		}
		for id, p := range n.peers {
			remote := ""
			if len(p.Addresses) > 0 {
				remote = p.Addresses[0]
			}
			info.Table.Nodes = append(info.Table.Nodes, localNodeInfo{
				NodeId:  id,
				PeerId:  id,
				Address: remote,
				Seen:    p.Connected,
			})
		}
		n.mu.Unlock()

		doc, err := json.Marshal(&info)
		if err != nil {
			cb(capi.StatusError, []byte("failed to encode debug info: "+err.Error()), token)
			return
		}
		cb(capi.StatusOK, doc, token)
	}()
	return capi.StatusOK
}

func (e *Engine) SetLogLevel(ref capi.NodeRef, level string, cb capi.Callback, token uint64) capi.Status {
	n, st := e.guard(ref, cb)
	if st != capi.StatusOK {
		return st
	}
	if level == "" {
		return capi.StatusError
	}
	go func() {
		if !logLevels[level] {
			cb(capi.StatusError, []byte("invalid log level: "+level), token)
			return
		}
		n.mu.Lock()
		n.logLevel = level
		n.mu.Unlock()
		cb(capi.StatusOK, nil, token)
	}()
	return capi.StatusOK
}

func (e *Engine) PeerDebug(ref capi.NodeRef, peerID string, cb capi.Callback, token uint64) capi.Status {
	n, st := e.guard(ref, cb)
	if st != capi.StatusOK {
		return st
	}
	if peerID == "" {
		return capi.StatusError
	}
	go func() {
		n.mu.Lock()
		p, ok := n.peers[peerID]
		var rec peerRecord
		if ok {
			rec = *p
		}
		n.mu.Unlock()
		if !ok {
			cb(capi.StatusError, []byte("peer not found: "+peerID), token)
			return
		}
		doc, err := json.Marshal(&rec)
		if err != nil {
			cb(capi.StatusError, []byte("failed to encode peer record: "+err.Error()), token)
			return
		}
		cb(capi.StatusOK, doc, token)
	}()
	return capi.StatusOK
}

// Connect dials a peer by id. addrsJSON is a JSON array of multiaddr
// strings.
func (e *Engine) Connect(ref capi.NodeRef, peerID string, addrsJSON []byte, cb capi.Callback, token uint64) capi.Status {
	n, st := e.guard(ref, cb)
	if st != capi.StatusOK {
		return st
	}
	if peerID == "" {
		return capi.StatusError
	}
	go func() {
		if msg := n.notReady(); msg != nil {
			cb(capi.StatusError, msg, token)
			return
		}
		var addrs []string
		if err := json.Unmarshal(addrsJSON, &addrs); err != nil {
			cb(capi.StatusError, []byte("invalid addresses: "+err.Error()), token)
			return
		}
		if len(addrs) == 0 {
			cb(capi.StatusError, []byte("no addresses provided"), token)
			return
		}
		agent := n.cfg.AgentString
		if agent == "" {
			agent = "strand-node/" + EngineVersion
		}
		n.mu.Lock()
		n.peers[peerID] = &peerRecord{
			Id:        peerID,
			Addresses: append([]string(nil), addrs...),
			Connected: true,
			Direction: "outbound",
			Protocols: []string{"/strand/exchange/1.0.0"},
			UserAgent: agent,
			LastSeen:  time.Now().UTC().Format(time.RFC3339),
		}
		n.mu.Unlock()
		e.log.Debug().Str("peer", peerID).Msg("peer connected")
		cb(capi.StatusOK, nil, token)
	}()
	return capi.StatusOK
}
