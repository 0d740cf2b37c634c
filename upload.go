package strand

import (
	"context"
	"fmt"

	"github.com/machinefabric/strand-go/capi"
)

// DefaultChunkSize is used when UploadOptions leaves ChunkSize zero
// (1 MiB).
const DefaultChunkSize uint64 = 1 << 20

// UploadOptions configures an upload session.
type UploadOptions struct {
	// Filename names the dataset in its manifest and drives mimetype
	// detection on the engine side.
	Filename string
	// ChunkSize is the granularity data is handed to the engine at.
	// Zero selects DefaultChunkSize.
	ChunkSize uint64
	// OnProgress, when set, is invoked by the upload helpers after each
	// stored chunk. Direct session Chunk calls do not report through it.
	OnProgress func(UploadProgress)
}

// UploadProgress is the client-side progress report. TotalBytes and
// TotalChunks are zero when the dataset size is unknown up front.
type UploadProgress struct {
	BytesUploaded uint64
	TotalBytes    uint64
	CurrentChunk  uint64
	TotalChunks   uint64
}

// normalized applies defaults and bounds-checks the options against the
// node's limits.
func (o UploadOptions) normalized(limits capi.Limits) (UploadOptions, error) {
	if o.Filename == "" {
		return o, capi.NewInvalidParameter("filename", "cannot be empty")
	}
	if o.ChunkSize == 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ChunkSize > uint64(limits.MaxChunk) {
		return o, capi.NewInvalidParameter("chunk-size", fmt.Sprintf("exceeds the %d byte chunk limit", limits.MaxChunk))
	}
	return o, nil
}

// UploadSession is one chunked upload in progress. The session holds no
// local state machine: ordering and state are the engine's to enforce,
// and calls against a finalized or cancelled session fail at the issue
// boundary.
type UploadSession struct {
	node *Node
	id   string
	opts UploadOptions
}

// NewUpload opens an upload session. Every session must be closed by
// Finalize or Cancel, or it stays open on the engine.
func (n *Node) NewUpload(ctx context.Context, opts UploadOptions) (*UploadSession, error) {
	opts, err := opts.normalized(n.limits)
	if err != nil {
		return nil, err
	}
	payload, err := n.call(ctx, capi.NewUploadError("failed to initialize upload"), nil, func(cb capi.Callback, token uint64) capi.Status {
		return n.eng.UploadInit(n.ref, opts.Filename, opts.ChunkSize, cb, token)
	})
	if err != nil {
		return nil, err
	}
	s := &UploadSession{node: n, id: string(payload), opts: opts}
	n.log.Debug().Str("session", s.id).Str("filename", opts.Filename).Msg("upload session open")
	return s, nil
}

// ID returns the engine's session token.
func (s *UploadSession) ID() string { return s.id }

// Chunk hands the next piece of the dataset to the engine. Empty and
// oversized chunks are rejected locally; the engine owns every other
// judgement. The engine copies the bytes during the issue call, so p
// may be reused as soon as Chunk returns.
func (s *UploadSession) Chunk(ctx context.Context, p []byte) error {
	if len(p) == 0 {
		return capi.NewInvalidParameter("chunk", "cannot be empty")
	}
	if len(p) > s.node.limits.MaxChunk {
		return capi.NewInvalidParameter("chunk", fmt.Sprintf("exceeds the %d byte chunk limit", s.node.limits.MaxChunk))
	}
	_, err := s.node.call(ctx, capi.NewUploadError("failed to upload chunk"), nil, func(cb capi.Callback, token uint64) capi.Status {
		return s.node.eng.UploadChunk(s.node.ref, s.id, p, cb, token)
	})
	return err
}

// Chunks stores a batch of chunks in order, stopping at the first
// failure.
func (s *UploadSession) Chunks(ctx context.Context, chunks [][]byte) error {
	for _, p := range chunks {
		if err := s.Chunk(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Finalize commits the session and returns the content id of the
// stored dataset.
func (s *UploadSession) Finalize(ctx context.Context) (string, error) {
	payload, err := s.node.call(ctx, capi.NewUploadError("failed to finalize upload"), nil, func(cb capi.Callback, token uint64) capi.Status {
		return s.node.eng.UploadFinalize(s.node.ref, s.id, cb, token)
	})
	if err != nil {
		return "", err
	}
	cid := string(payload)
	s.node.log.Debug().Str("session", s.id).Str("cid", cid).Msg("upload finalized")
	return cid, nil
}

// Cancel abandons the session and releases whatever the engine had
// buffered for it.
func (s *UploadSession) Cancel(ctx context.Context) error {
	_, err := s.node.call(ctx, capi.NewUploadError("failed to cancel upload"), nil, func(cb capi.Callback, token uint64) capi.Status {
		return s.node.eng.UploadCancel(s.node.ref, s.id, cb, token)
	})
	if err != nil {
		return err
	}
	s.node.log.Debug().Str("session", s.id).Msg("upload cancelled")
	return nil
}
