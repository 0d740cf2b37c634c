package memengine

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinefabric/strand-go/capi"
)

// reply is one callback delivery captured by the test harness.
type reply struct {
	status  capi.Status
	payload []byte
}

// collect issues an operation and gathers its deliveries until the
// terminal one arrives. Progress payloads come back in order.
func collect(t *testing.T, issue func(cb capi.Callback) capi.Status) ([][]byte, reply) {
	t.Helper()
	ch := make(chan reply, 16)
	st := issue(func(status capi.Status, payload []byte, _ uint64) {
		ch <- reply{status, append([]byte(nil), payload...)}
	})
	require.Equal(t, capi.StatusOK, st, "issue call rejected")

	var progress [][]byte
	deadline := time.After(5 * time.Second)
	for {
		select {
		case r := <-ch:
			if r.status == capi.StatusProgress {
				progress = append(progress, r.payload)
				continue
			}
			return progress, r
		case <-deadline:
			t.Fatal("timed out waiting for terminal delivery")
		}
	}
}

// terminal is collect for operations that deliver no progress.
func terminal(t *testing.T, issue func(cb capi.Callback) capi.Status) reply {
	t.Helper()
	progress, term := collect(t, issue)
	require.Empty(t, progress, "unexpected progress deliveries")
	return term
}

func newNode(t *testing.T, e *Engine, config string) capi.NodeRef {
	t.Helper()
	ch := make(chan reply, 1)
	ref, st := e.NewNode([]byte(config), func(status capi.Status, payload []byte, _ uint64) {
		ch <- reply{status, append([]byte(nil), payload...)}
	}, 1)
	require.Equal(t, capi.StatusOK, st)
	require.NotZero(t, ref)
	select {
	case r := <-ch:
		require.Equal(t, capi.StatusOK, r.status)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for node readiness")
	}
	return ref
}

func startedNode(t *testing.T, e *Engine, config string) capi.NodeRef {
	t.Helper()
	ref := newNode(t, e, config)
	r := terminal(t, func(cb capi.Callback) capi.Status {
		return e.StartNode(ref, cb, 1)
	})
	require.Equal(t, capi.StatusOK, r.status)
	return ref
}

func TestNewNodeRejectsInvalidConfig(t *testing.T) {
	e := New()

	cb := func(capi.Status, []byte, uint64) {}

	ref, st := e.NewNode([]byte("{not json"), cb, 1)
	assert.Equal(t, capi.StatusError, st)
	assert.Zero(t, ref)

	ref, st = e.NewNode([]byte(`{"storage-quota":"not-a-number"}`), cb, 1)
	assert.Equal(t, capi.StatusError, st)
	assert.Zero(t, ref)
}

func TestNewNodeRequiresCallback(t *testing.T) {
	e := New()
	ref, st := e.NewNode([]byte(`{}`), nil, 1)
	assert.Equal(t, capi.StatusMissingCallback, st)
	assert.Zero(t, ref)
}

func TestNodeLifecycle(t *testing.T) {
	e := New()
	ref := newNode(t, e, `{}`)

	start := func() reply {
		return terminal(t, func(cb capi.Callback) capi.Status { return e.StartNode(ref, cb, 1) })
	}
	stop := func() reply {
		return terminal(t, func(cb capi.Callback) capi.Status { return e.StopNode(ref, cb, 1) })
	}

	require.Equal(t, capi.StatusOK, start().status)

	r := start()
	require.Equal(t, capi.StatusError, r.status)
	assert.Equal(t, "node is already started", string(r.payload))

	require.Equal(t, capi.StatusOK, stop().status)

	r = stop()
	require.Equal(t, capi.StatusError, r.status)
	assert.Equal(t, "node is not started", string(r.payload))

	require.Equal(t, capi.StatusOK, start().status)

	r = terminal(t, func(cb capi.Callback) capi.Status { return e.CloseNode(ref, cb, 1) })
	require.Equal(t, capi.StatusOK, r.status)

	r = start()
	require.Equal(t, capi.StatusError, r.status)
	assert.Equal(t, "node is closed", string(r.payload))
}

func TestUnknownNodeRejectedAtIssue(t *testing.T) {
	e := New()
	cb := func(capi.Status, []byte, uint64) {}

	assert.Equal(t, capi.StatusError, e.StartNode(42, cb, 1))
	assert.Equal(t, capi.StatusError, e.UploadInit(42, "f.txt", 1024, cb, 1))
	assert.Equal(t, capi.StatusError, e.Debug(42, cb, 1))
	assert.Equal(t, capi.StatusMissingCallback, e.StartNode(42, nil, 1))
}

func TestDestroyNodeIsAdvisory(t *testing.T) {
	e := New()
	assert.Equal(t, capi.StatusOK, e.DestroyNode(999))

	ref := newNode(t, e, `{}`)
	assert.Equal(t, capi.StatusOK, e.DestroyNode(ref))

	cb := func(capi.Status, []byte, uint64) {}
	assert.Equal(t, capi.StatusError, e.StartNode(ref, cb, 1))
}

func TestNodeInfoGetters(t *testing.T) {
	e := New()
	ref := newNode(t, e, `{"data-dir":"/tmp/strand-test"}`)

	r := terminal(t, func(cb capi.Callback) capi.Status { return e.NodeVersion(ref, cb, 1) })
	require.Equal(t, capi.StatusOK, r.status)
	assert.Equal(t, EngineVersion, string(r.payload))

	r = terminal(t, func(cb capi.Callback) capi.Status { return e.NodeRevision(ref, cb, 1) })
	require.Equal(t, capi.StatusOK, r.status)
	assert.Equal(t, EngineRevision, string(r.payload))

	r = terminal(t, func(cb capi.Callback) capi.Status { return e.NodeRepo(ref, cb, 1) })
	require.Equal(t, capi.StatusOK, r.status)
	assert.Equal(t, "/tmp/strand-test", string(r.payload))

	r = terminal(t, func(cb capi.Callback) capi.Status { return e.NodeSPR(ref, cb, 1) })
	require.Equal(t, capi.StatusOK, r.status)
	assert.True(t, strings.HasPrefix(string(r.payload), "spr:"))

	r = terminal(t, func(cb capi.Callback) capi.Status { return e.NodePeerID(ref, cb, 1) })
	require.Equal(t, capi.StatusOK, r.status)
	assert.NotEmpty(t, r.payload)
}

func TestNodeRepoDefault(t *testing.T) {
	e := New()
	ref := newNode(t, e, `{}`)

	r := terminal(t, func(cb capi.Callback) capi.Status { return e.NodeRepo(ref, cb, 1) })
	require.Equal(t, capi.StatusOK, r.status)
	assert.Equal(t, "strand-data", string(r.payload))
}

func TestDebugAvailableBeforeStart(t *testing.T) {
	e := New()
	ref := newNode(t, e, `{"listen-addrs":["/ip4/127.0.0.1/tcp/8070"]}`)

	r := terminal(t, func(cb capi.Callback) capi.Status { return e.Debug(ref, cb, 1) })
	require.Equal(t, capi.StatusOK, r.status)

	var info struct {
		Id    string   `json:"id"`
		Addrs []string `json:"addrs"`
		Spr   string   `json:"spr"`
		Table struct {
			LocalNode struct {
				PeerId string `json:"peerId"`
				Seen   bool   `json:"seen"`
			} `json:"localNode"`
			Nodes []json.RawMessage `json:"nodes"`
		} `json:"table"`
	}
	require.NoError(t, json.Unmarshal(r.payload, &info))
	assert.NotEmpty(t, info.Id)
	assert.Equal(t, []string{"/ip4/127.0.0.1/tcp/8070"}, info.Addrs)
	assert.True(t, strings.HasPrefix(info.Spr, "spr:"))
	assert.Equal(t, info.Id, info.Table.LocalNode.PeerId)
	assert.False(t, info.Table.LocalNode.Seen)
	assert.NotNil(t, info.Table.Nodes)
}

func TestSetLogLevel(t *testing.T) {
	e := New()
	ref := newNode(t, e, `{}`)

	r := terminal(t, func(cb capi.Callback) capi.Status { return e.SetLogLevel(ref, "trace", cb, 1) })
	assert.Equal(t, capi.StatusOK, r.status)

	r = terminal(t, func(cb capi.Callback) capi.Status { return e.SetLogLevel(ref, "loud", cb, 1) })
	require.Equal(t, capi.StatusError, r.status)
	assert.Equal(t, "invalid log level: loud", string(r.payload))

	cb := func(capi.Status, []byte, uint64) {}
	assert.Equal(t, capi.StatusError, e.SetLogLevel(ref, "", cb, 1))
}

func TestConnectAndPeerDebug(t *testing.T) {
	e := New()
	ref := startedNode(t, e, `{"agent-string":"strand-test/1.0"}`)

	addrs, err := json.Marshal([]string{"/ip4/192.0.2.7/tcp/8070"})
	require.NoError(t, err)

	r := terminal(t, func(cb capi.Callback) capi.Status {
		return e.Connect(ref, "peer-a", addrs, cb, 1)
	})
	require.Equal(t, capi.StatusOK, r.status)

	r = terminal(t, func(cb capi.Callback) capi.Status { return e.PeerDebug(ref, "peer-a", cb, 1) })
	require.Equal(t, capi.StatusOK, r.status)

	var rec struct {
		Id        string   `json:"id"`
		Addresses []string `json:"addresses"`
		Connected bool     `json:"connected"`
		Direction string   `json:"direction"`
		UserAgent string   `json:"user_agent"`
		LastSeen  string   `json:"last_seen"`
	}
	require.NoError(t, json.Unmarshal(r.payload, &rec))
	assert.Equal(t, "peer-a", rec.Id)
	assert.Equal(t, []string{"/ip4/192.0.2.7/tcp/8070"}, rec.Addresses)
	assert.True(t, rec.Connected)
	assert.Equal(t, "outbound", rec.Direction)
	assert.Equal(t, "strand-test/1.0", rec.UserAgent)
	_, perr := time.Parse(time.RFC3339, rec.LastSeen)
	assert.NoError(t, perr)

	// The connected peer shows up in the discovery table.
	r = terminal(t, func(cb capi.Callback) capi.Status { return e.Debug(ref, cb, 1) })
	require.Equal(t, capi.StatusOK, r.status)
	var info struct {
		Table struct {
			Nodes []struct {
				PeerId string `json:"peerId"`
				Seen   bool   `json:"seen"`
			} `json:"nodes"`
		} `json:"table"`
	}
	require.NoError(t, json.Unmarshal(r.payload, &info))
	require.Len(t, info.Table.Nodes, 1)
	assert.Equal(t, "peer-a", info.Table.Nodes[0].PeerId)
	assert.True(t, info.Table.Nodes[0].Seen)
}

func TestPeerDebugUnknownPeer(t *testing.T) {
	e := New()
	ref := startedNode(t, e, `{}`)

	r := terminal(t, func(cb capi.Callback) capi.Status { return e.PeerDebug(ref, "nobody", cb, 1) })
	require.Equal(t, capi.StatusError, r.status)
	assert.Equal(t, "peer not found: nobody", string(r.payload))
}

func TestConnectValidation(t *testing.T) {
	e := New()
	ref := startedNode(t, e, `{}`)
	cb := func(capi.Status, []byte, uint64) {}

	assert.Equal(t, capi.StatusError, e.Connect(ref, "", []byte(`[]`), cb, 1))

	r := terminal(t, func(c capi.Callback) capi.Status {
		return e.Connect(ref, "peer-b", []byte(`{bad`), c, 1)
	})
	require.Equal(t, capi.StatusError, r.status)
	assert.Contains(t, string(r.payload), "invalid addresses")

	r = terminal(t, func(c capi.Callback) capi.Status {
		return e.Connect(ref, "peer-b", []byte(`[]`), c, 1)
	})
	require.Equal(t, capi.StatusError, r.status)
	assert.Equal(t, "no addresses provided", string(r.payload))
}

func TestConnectRequiresStartedNode(t *testing.T) {
	e := New()
	ref := newNode(t, e, `{}`)

	r := terminal(t, func(cb capi.Callback) capi.Status {
		return e.Connect(ref, "peer-c", []byte(`["/ip4/192.0.2.9/tcp/1"]`), cb, 1)
	})
	require.Equal(t, capi.StatusError, r.status)
	assert.Equal(t, "node is not started", string(r.payload))
}
