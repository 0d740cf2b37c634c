package memengine

import (
	"bytes"
	"mime"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/machinefabric/strand-go/capi"
)

type sessionState int

const (
	sessionOpen sessionState = iota
	sessionFinalized
	sessionCancelled
)

// uploadSession buffers chunks until finalize commits them as a
// dataset. The engine is the ordering and state authority: out-of-state
// calls are rejected at the issue boundary.
type uploadSession struct {
	id        string
	filename  string
	chunkSize uint64

	mu       sync.Mutex
	state    sessionState
	buf      bytes.Buffer
	reserved uint64
}

// downloadSession serves a stored dataset back in block-sized pieces.
type downloadSession struct {
	id        string
	cid       string
	blockSize int

	mu     sync.Mutex
	state  sessionState
	data   []byte
	offset int
}

func (n *node) upload(id string) (*uploadSession, bool) {
	n.mu.Lock()
	s, ok := n.uploads[id]
	n.mu.Unlock()
	return s, ok
}

func (n *node) download(id string) (*downloadSession, bool) {
	n.mu.Lock()
	s, ok := n.downloads[id]
	n.mu.Unlock()
	return s, ok
}

func (s *uploadSession) open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == sessionOpen
}

func (s *downloadSession) open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == sessionOpen
}

// mimeFromName infers a mime type from the filename extension, without
// parameters. Empty when unknown.
func mimeFromName(name string) string {
	mt := mime.TypeByExtension(filepath.Ext(name))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}

// =========================================================================
// Upload session protocol
// =========================================================================

func (e *Engine) UploadInit(ref capi.NodeRef, filename string, chunkSize uint64, cb capi.Callback, token uint64) capi.Status {
	n, st := e.guard(ref, cb)
	if st != capi.StatusOK {
		return st
	}
	if chunkSize == 0 {
		return capi.StatusError
	}
	go func() {
		if msg := n.notReady(); msg != nil {
			cb(capi.StatusError, msg, token)
			return
		}
		s := &uploadSession{
			id:        uuid.NewString(),
			filename:  filename,
			chunkSize: chunkSize,
		}
		n.mu.Lock()
		n.uploads[s.id] = s
		n.mu.Unlock()
		e.log.Debug().Str("session", s.id).Str("filename", filename).Msg("upload session opened")
		cb(capi.StatusOK, []byte(s.id), token)
	}()
	return capi.StatusOK
}

func (e *Engine) UploadChunk(ref capi.NodeRef, session string, chunk []byte, cb capi.Callback, token uint64) capi.Status {
	n, st := e.guard(ref, cb)
	if st != capi.StatusOK {
		return st
	}
	if session == "" || len(chunk) == 0 {
		return capi.StatusError
	}
	s, ok := n.upload(session)
	if !ok || !s.open() {
		return capi.StatusError
	}
	// The engine owns its copy: the caller may reuse the buffer the
	// moment the issue call returns.
	data := make([]byte, len(chunk))
	copy(data, chunk)

	go func() {
		if msg := n.notReady(); msg != nil {
			cb(capi.StatusError, msg, token)
			return
		}
		if err := n.store.reserve(uint64(len(data))); err != nil {
			cb(capi.StatusError, []byte(err.Error()), token)
			return
		}
		s.mu.Lock()
		if s.state != sessionOpen { // raced with cancel or finalize
			s.mu.Unlock()
			n.store.release(uint64(len(data)))
			cb(capi.StatusError, []byte("upload session is closed"), token)
			return
		}
		s.buf.Write(data)
		s.reserved += uint64(len(data))
		s.mu.Unlock()
		cb(capi.StatusOK, nil, token)
	}()
	return capi.StatusOK
}

func (e *Engine) UploadFinalize(ref capi.NodeRef, session string, cb capi.Callback, token uint64) capi.Status {
	n, st := e.guard(ref, cb)
	if st != capi.StatusOK {
		return st
	}
	if session == "" {
		return capi.StatusError
	}
	s, ok := n.upload(session)
	if !ok || !s.open() {
		return capi.StatusError
	}
	go func() {
		if msg := n.notReady(); msg != nil {
			cb(capi.StatusError, msg, token)
			return
		}
		s.mu.Lock()
		if s.state != sessionOpen {
			s.mu.Unlock()
			cb(capi.StatusError, []byte("upload session is closed"), token)
			return
		}
		if s.buf.Len() == 0 {
			s.state = sessionCancelled
			reserved := s.reserved
			s.reserved = 0
			s.mu.Unlock()
			n.store.release(reserved)
			cb(capi.StatusError, []byte("upload session is empty"), token)
			return
		}
		s.state = sessionFinalized
		content := s.buf.Bytes()
		reserved := s.reserved
		s.reserved = 0
		filename := s.filename
		s.mu.Unlock()

		cid, err := n.store.commit(content, filename, mimeFromName(filename), reserved)
		if err != nil {
			cb(capi.StatusError, []byte(err.Error()), token)
			return
		}
		e.log.Debug().Str("session", s.id).Str("cid", cid).Msg("upload finalized")
		cb(capi.StatusOK, []byte(cid), token)
	}()
	return capi.StatusOK
}

func (e *Engine) UploadCancel(ref capi.NodeRef, session string, cb capi.Callback, token uint64) capi.Status {
	n, st := e.guard(ref, cb)
	if st != capi.StatusOK {
		return st
	}
	if session == "" {
		return capi.StatusError
	}
	s, ok := n.upload(session)
	if !ok || !s.open() {
		return capi.StatusError
	}
	go func() {
		s.mu.Lock()
		if s.state != sessionOpen {
			s.mu.Unlock()
			cb(capi.StatusError, []byte("upload session is closed"), token)
			return
		}
		s.state = sessionCancelled
		reserved := s.reserved
		s.reserved = 0
		s.buf.Reset()
		s.mu.Unlock()
		n.store.release(reserved)
		e.log.Debug().Str("session", s.id).Msg("upload cancelled")
		cb(capi.StatusOK, nil, token)
	}()
	return capi.StatusOK
}

// =========================================================================
// Download session protocol
// =========================================================================

func (e *Engine) DownloadInit(ref capi.NodeRef, cid string, cb capi.Callback, token uint64) capi.Status {
	n, st := e.guard(ref, cb)
	if st != capi.StatusOK {
		return st
	}
	if cid == "" {
		return capi.StatusError
	}
	go func() {
		if msg := n.notReady(); msg != nil {
			cb(capi.StatusError, msg, token)
			return
		}
		content, m, ok := n.store.get(cid)
		if !ok {
			cb(capi.StatusError, []byte("dataset not found: "+cid), token)
			return
		}
		s := &downloadSession{
			id:        uuid.NewString(),
			cid:       cid,
			blockSize: int(m.BlockSize),
			data:      content,
		}
		if s.blockSize <= 0 {
			s.blockSize = BlockSize
		}
		n.mu.Lock()
		n.downloads[s.id] = s
		n.mu.Unlock()
		e.log.Debug().Str("session", s.id).Str("cid", cid).Msg("download session opened")
		cb(capi.StatusOK, []byte(s.id), token)
	}()
	return capi.StatusOK
}

// DownloadChunk serves the next block as one progress delivery followed
// by an empty terminal success. Exhaustion is the empty terminal with
// no progress in front of it.
func (e *Engine) DownloadChunk(ref capi.NodeRef, session string, cb capi.Callback, token uint64) capi.Status {
	n, st := e.guard(ref, cb)
	if st != capi.StatusOK {
		return st
	}
	if session == "" {
		return capi.StatusError
	}
	s, ok := n.download(session)
	if !ok || !s.open() {
		return capi.StatusError
	}
	go func() {
		s.mu.Lock()
		if s.state != sessionOpen {
			s.mu.Unlock()
			cb(capi.StatusError, []byte("download session is closed"), token)
			return
		}
		if s.offset >= len(s.data) {
			s.mu.Unlock()
			cb(capi.StatusOK, nil, token)
			return
		}
		end := s.offset + s.blockSize
		if end > len(s.data) {
			end = len(s.data)
		}
		block := s.data[s.offset:end]
		s.offset = end
		s.mu.Unlock()

		cb(capi.StatusProgress, block, token)
		cb(capi.StatusOK, nil, token)
	}()
	return capi.StatusOK
}

// DownloadStream serves every remaining block as progress deliveries
// followed by one terminal success.
func (e *Engine) DownloadStream(ref capi.NodeRef, session string, cb capi.Callback, token uint64) capi.Status {
	n, st := e.guard(ref, cb)
	if st != capi.StatusOK {
		return st
	}
	if session == "" {
		return capi.StatusError
	}
	s, ok := n.download(session)
	if !ok || !s.open() {
		return capi.StatusError
	}
	go func() {
		for {
			s.mu.Lock()
			if s.state != sessionOpen { // cancelled mid-stream
				s.mu.Unlock()
				cb(capi.StatusError, []byte("download session is closed"), token)
				return
			}
			if s.offset >= len(s.data) {
				s.mu.Unlock()
				break
			}
			end := s.offset + s.blockSize
			if end > len(s.data) {
				end = len(s.data)
			}
			block := s.data[s.offset:end]
			s.offset = end
			s.mu.Unlock()

			cb(capi.StatusProgress, block, token)
		}
		cb(capi.StatusOK, nil, token)
	}()
	return capi.StatusOK
}

func (e *Engine) DownloadFinalize(ref capi.NodeRef, session string, cb capi.Callback, token uint64) capi.Status {
	n, st := e.guard(ref, cb)
	if st != capi.StatusOK {
		return st
	}
	if session == "" {
		return capi.StatusError
	}
	s, ok := n.download(session)
	if !ok || !s.open() {
		return capi.StatusError
	}
	go func() {
		s.mu.Lock()
		if s.state != sessionOpen {
			s.mu.Unlock()
			cb(capi.StatusError, []byte("download session is closed"), token)
			return
		}
		s.state = sessionFinalized
		cid := s.cid
		s.mu.Unlock()
		cb(capi.StatusOK, []byte(cid), token)
	}()
	return capi.StatusOK
}

func (e *Engine) DownloadCancel(ref capi.NodeRef, session string, cb capi.Callback, token uint64) capi.Status {
	n, st := e.guard(ref, cb)
	if st != capi.StatusOK {
		return st
	}
	if session == "" {
		return capi.StatusError
	}
	s, ok := n.download(session)
	if !ok || !s.open() {
		return capi.StatusError
	}
	go func() {
		s.mu.Lock()
		if s.state != sessionOpen {
			s.mu.Unlock()
			cb(capi.StatusError, []byte("download session is closed"), token)
			return
		}
		s.state = sessionCancelled
		s.mu.Unlock()
		e.log.Debug().Str("session", s.id).Msg("download cancelled")
		cb(capi.StatusOK, nil, token)
	}()
	return capi.StatusOK
}
