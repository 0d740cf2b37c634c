package strand

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/machinefabric/strand-go/capi"
)

// streamQueueDepth bounds the chunks in flight between the engine's
// callback thread and the writer goroutine in DownloadStream.
const streamQueueDepth = 16

// UploadBytes stores data as one dataset named name and returns its
// content id.
func (n *Node) UploadBytes(ctx context.Context, name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", capi.NewInvalidParameter("data", "cannot be empty")
	}
	return n.uploadFrom(ctx, bytes.NewReader(data), uint64(len(data)), UploadOptions{Filename: name})
}

// UploadReader streams r through an upload session in opts.ChunkSize
// pieces. The dataset size is unknown up front, so progress reports
// carry zero totals.
func (n *Node) UploadReader(ctx context.Context, r io.Reader, opts UploadOptions) (string, error) {
	return n.uploadFrom(ctx, r, 0, opts)
}

// UploadFile stores the file at path. When opts leaves Filename empty
// it defaults to the path's base name.
func (n *Node) UploadFile(ctx context.Context, path string, opts UploadOptions) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", capi.NewIOError(fmt.Sprintf("open %s", path), err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return "", capi.NewIOError(fmt.Sprintf("stat %s", path), err)
	}
	if opts.Filename == "" {
		opts.Filename = filepath.Base(path)
	}
	return n.uploadFrom(ctx, f, uint64(fi.Size()), opts)
}

// uploadFrom drives one upload session over r. total is the dataset
// size when known and zero otherwise; it only affects progress
// reporting. The session is cancelled on any failure along the way.
func (n *Node) uploadFrom(ctx context.Context, r io.Reader, total uint64, opts UploadOptions) (string, error) {
	s, err := n.NewUpload(ctx, opts)
	if err != nil {
		return "", err
	}
	chunkSize := s.opts.ChunkSize
	var totalChunks uint64
	if total > 0 {
		totalChunks = (total + chunkSize - 1) / chunkSize
	}

	buf := make([]byte, chunkSize)
	var sent, chunkNo uint64
	for {
		m, rerr := io.ReadFull(r, buf)
		if m > 0 {
			if err := s.Chunk(ctx, buf[:m]); err != nil {
				_ = s.Cancel(ctx)
				return "", err
			}
			sent += uint64(m)
			chunkNo++
			if opts.OnProgress != nil {
				opts.OnProgress(UploadProgress{
					BytesUploaded: sent,
					TotalBytes:    total,
					CurrentChunk:  chunkNo,
					TotalChunks:   totalChunks,
				})
			}
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			_ = s.Cancel(ctx)
			return "", capi.NewIOError("read upload data", rerr)
		}
	}
	return s.Finalize(ctx)
}

// DownloadBytes fetches a whole dataset into memory. Datasets larger
// than the node's MaxPayload limit are refused; stream those instead.
func (n *Node) DownloadBytes(ctx context.Context, cid string) ([]byte, error) {
	s, err := n.NewDownload(ctx, cid)
	if err != nil {
		return nil, err
	}
	var buf []byte
	for {
		chunk, err := s.Chunk(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			_ = s.Cancel(ctx)
			return nil, err
		}
		buf = append(buf, chunk...)
		if len(buf) > n.limits.MaxPayload {
			_ = s.Cancel(ctx)
			return nil, capi.NewDownloadError(fmt.Sprintf("dataset exceeds the %d byte in-memory limit", n.limits.MaxPayload))
		}
	}
	if _, err := s.Finalize(ctx); err != nil {
		return nil, err
	}
	return buf, nil
}

// DownloadStream copies a whole dataset into w and returns the number
// of bytes written. Chunks are handed from the engine's callback thread
// to a writer goroutine through a bounded queue, so the callback never
// performs I/O and never blocks on w.
func (n *Node) DownloadStream(ctx context.Context, cid string, w io.Writer) (int64, error) {
	s, err := n.NewDownload(ctx, cid)
	if err != nil {
		return 0, err
	}

	queue := make(chan []byte, streamQueueDepth)
	var (
		written  int64
		writeErr error
		done     = make(chan struct{})
	)
	go func() {
		defer close(done)
		for chunk := range queue {
			if writeErr != nil {
				continue // keep draining so the sink never stalls
			}
			m, err := w.Write(chunk)
			written += int64(m)
			if err != nil {
				writeErr = err
			}
		}
	}()

	// The queue is closed once the terminal has been observed (or the
	// wait abandoned); the closed flag keeps a late delivery, still in
	// flight at that instant, from hitting a closed channel.
	var (
		qmu     sync.Mutex
		qclosed bool
	)
	sink := func(payload []byte) {
		chunk := make([]byte, len(payload))
		copy(chunk, payload)
		qmu.Lock()
		if !qclosed {
			queue <- chunk
		}
		qmu.Unlock()
	}

	_, err = n.call(ctx, capi.NewDownloadError("failed to stream download"), sink, func(cb capi.Callback, token uint64) capi.Status {
		return n.eng.DownloadStream(n.ref, s.id, cb, token)
	})
	qmu.Lock()
	qclosed = true
	close(queue)
	qmu.Unlock()
	<-done

	if err != nil {
		_ = s.Cancel(ctx)
		return written, err
	}
	if writeErr != nil {
		_ = s.Cancel(ctx)
		return written, capi.NewIOError("write download data", writeErr)
	}
	if _, err := s.Finalize(ctx); err != nil {
		return written, err
	}
	return written, nil
}

// DownloadFile fetches a dataset into the file at path, creating or
// truncating it.
func (n *Node) DownloadFile(ctx context.Context, cid, path string) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, capi.NewIOError(fmt.Sprintf("create %s", path), err)
	}
	written, derr := n.DownloadStream(ctx, cid, f)
	if cerr := f.Close(); derr == nil && cerr != nil {
		return written, capi.NewIOError(fmt.Sprintf("close %s", path), cerr)
	}
	return written, derr
}

// Manifest fetches the manifest describing the stored dataset cid.
func (n *Node) Manifest(ctx context.Context, cid string) (Manifest, error) {
	if cid == "" {
		return Manifest{}, capi.NewInvalidParameter("cid", "cannot be empty")
	}
	payload, err := n.call(ctx, capi.NewDownloadError("failed to fetch manifest"), nil, func(cb capi.Callback, token uint64) capi.Status {
		return n.eng.DownloadManifest(n.ref, cid, cb, token)
	})
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(payload, &m); err != nil {
		return Manifest{}, capi.NewSerializationError("decode manifest", err)
	}
	return m, nil
}
