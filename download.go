package strand

import (
	"context"
	"io"
	"sync"

	"github.com/machinefabric/strand-go/capi"
)

// DownloadSession is one chunked download in progress. Like uploads,
// the session keeps no local cursor; the engine tracks the read
// position and rejects calls against a closed session at the issue
// boundary.
type DownloadSession struct {
	node *Node
	id   string
	cid  string
}

// NewDownload opens a download session over the stored dataset cid.
func (n *Node) NewDownload(ctx context.Context, cid string) (*DownloadSession, error) {
	if cid == "" {
		return nil, capi.NewInvalidParameter("cid", "cannot be empty")
	}
	payload, err := n.call(ctx, capi.NewDownloadError("failed to initialize download"), nil, func(cb capi.Callback, token uint64) capi.Status {
		return n.eng.DownloadInit(n.ref, cid, cb, token)
	})
	if err != nil {
		return nil, err
	}
	s := &DownloadSession{node: n, id: string(payload), cid: cid}
	n.log.Debug().Str("session", s.id).Str("cid", cid).Msg("download session open")
	return s, nil
}

// ID returns the engine's session token.
func (s *DownloadSession) ID() string { return s.id }

// CID returns the content id the session reads.
func (s *DownloadSession) CID() string { return s.cid }

// Chunk returns the next piece of the dataset. The bytes arrive as
// progress deliveries ahead of the call's terminal; a terminal with no
// bytes in front of it means the dataset is exhausted, which Chunk
// reports as io.EOF. Exhaustion is never an engine error.
func (s *DownloadSession) Chunk(ctx context.Context) ([]byte, error) {
	var (
		mu  sync.Mutex
		buf []byte
	)
	sink := func(payload []byte) {
		mu.Lock()
		buf = append(buf, payload...)
		mu.Unlock()
	}
	_, err := s.node.call(ctx, capi.NewDownloadError("failed to download chunk"), sink, func(cb capi.Callback, token uint64) capi.Status {
		return s.node.eng.DownloadChunk(s.node.ref, s.id, cb, token)
	})
	if err != nil {
		return nil, err
	}
	mu.Lock()
	defer mu.Unlock()
	if len(buf) == 0 {
		return nil, io.EOF
	}
	return buf, nil
}

// Finalize closes the session and returns the content id it served.
func (s *DownloadSession) Finalize(ctx context.Context) (string, error) {
	payload, err := s.node.call(ctx, capi.NewDownloadError("failed to finalize download"), nil, func(cb capi.Callback, token uint64) capi.Status {
		return s.node.eng.DownloadFinalize(s.node.ref, s.id, cb, token)
	})
	if err != nil {
		return "", err
	}
	s.node.log.Debug().Str("session", s.id).Msg("download finalized")
	return string(payload), nil
}

// Cancel abandons the session.
func (s *DownloadSession) Cancel(ctx context.Context) error {
	_, err := s.node.call(ctx, capi.NewDownloadError("failed to cancel download"), nil, func(cb capi.Callback, token uint64) capi.Status {
		return s.node.eng.DownloadCancel(s.node.ref, s.id, cb, token)
	})
	if err != nil {
		return err
	}
	s.node.log.Debug().Str("session", s.id).Msg("download cancelled")
	return nil
}
