package memengine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
)

const (
	// BlockSize is the storage granularity datasets are chunked to when
	// they are served back.
	BlockSize = 64 * 1024

	// DefaultQuota applies when the node configuration carries no
	// storage quota (20 GiB).
	DefaultQuota = 20 << 30
)

// contentID derives the address of a blob.
func contentID(data []byte) string {
	sum := sha256.Sum256(data)
	return "st1" + hex.EncodeToString(sum[:])
}

// store holds one node's datasets with quota accounting. Open upload
// sessions reserve quota; finalizing moves the reservation into used
// bytes, cancelling releases it.
type store struct {
	mu            sync.Mutex
	datasets      map[string][]byte // cid -> content
	blocks        map[string][]byte // cid -> CBOR manifest block
	manifests     map[string]*manifest
	quotaMax      uint64
	quotaUsed     uint64
	quotaReserved uint64
}

func newStore(quota uint64) *store {
	if quota == 0 {
		quota = DefaultQuota
	}
	return &store{
		datasets:  make(map[string][]byte),
		blocks:    make(map[string][]byte),
		manifests: make(map[string]*manifest),
		quotaMax:  quota,
	}
}

// reserve claims n bytes of quota for an open upload session.
func (s *store) reserve(n uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quotaUsed+s.quotaReserved+n > s.quotaMax {
		return fmt.Errorf("storage quota exceeded: %d of %d bytes in use",
			s.quotaUsed+s.quotaReserved, s.quotaMax)
	}
	s.quotaReserved += n
	return nil
}

// release returns reserved bytes to the pool.
func (s *store) release(n uint64) {
	s.mu.Lock()
	if n > s.quotaReserved {
		n = s.quotaReserved
	}
	s.quotaReserved -= n
	s.mu.Unlock()
}

// commit turns a finished upload into a stored dataset and returns its
// content id. reserved is the session's outstanding reservation; it is
// consumed whether or not the commit succeeds.
func (s *store) commit(content []byte, filename, mimetype string, reserved uint64) (string, error) {
	m := &manifest{
		TreeCid:     contentID(content),
		DatasetSize: uint64(len(content)),
		BlockSize:   BlockSize,
		Filename:    filename,
		Mimetype:    mimetype,
	}
	block, err := encodeManifestBlock(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest block: %w", err)
	}
	cid := contentID(block)

	s.mu.Lock()
	defer s.mu.Unlock()
	if reserved > s.quotaReserved {
		reserved = s.quotaReserved
	}
	s.quotaReserved -= reserved

	if _, exists := s.datasets[cid]; exists {
		// Same content already stored; nothing new to charge.
		return cid, nil
	}
	need := uint64(len(content)) + uint64(len(block))
	if s.quotaUsed+s.quotaReserved+need > s.quotaMax {
		return "", fmt.Errorf("storage quota exceeded: %d of %d bytes in use",
			s.quotaUsed+s.quotaReserved, s.quotaMax)
	}
	s.datasets[cid] = content
	s.blocks[cid] = block
	s.manifests[cid] = m
	s.quotaUsed += need
	return cid, nil
}

func (s *store) get(cid string) ([]byte, *manifest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.datasets[cid]
	if !ok {
		return nil, nil, false
	}
	return content, s.manifests[cid], true
}

func (s *store) exists(cid string) bool {
	s.mu.Lock()
	_, ok := s.datasets[cid]
	s.mu.Unlock()
	return ok
}

// remove deletes a dataset and frees its quota. Reports whether the cid
// was present.
func (s *store) remove(cid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.datasets[cid]
	if !ok {
		return false
	}
	freed := uint64(len(content)) + uint64(len(s.blocks[cid]))
	if freed > s.quotaUsed {
		freed = s.quotaUsed
	}
	s.quotaUsed -= freed
	delete(s.datasets, cid)
	delete(s.blocks, cid)
	delete(s.manifests, cid)
	return true
}

// manifestEntry is one element of the storage listing.
type manifestEntry struct {
	Cid      string    `json:"cid"`
	Manifest *manifest `json:"manifest"`
}

// list returns the stored manifests in stable cid order.
func (s *store) list() []manifestEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]manifestEntry, 0, len(s.manifests))
	for cid, m := range s.manifests {
		entries = append(entries, manifestEntry{Cid: cid, Manifest: m})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Cid < entries[j].Cid })
	return entries
}

// spaceInfo is the storage accounting document.
type spaceInfo struct {
	TotalBlocks        uint64 `json:"totalBlocks"`
	QuotaMaxBytes      uint64 `json:"quotaMaxBytes"`
	QuotaUsedBytes     uint64 `json:"quotaUsedBytes"`
	QuotaReservedBytes uint64 `json:"quotaReservedBytes"`
}

func (s *store) space() spaceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	var blocks uint64
	for _, m := range s.manifests {
		blocks++ // the manifest block itself
		if m.BlockSize > 0 {
			blocks += (m.DatasetSize + m.BlockSize - 1) / m.BlockSize
		}
	}
	return spaceInfo{
		TotalBlocks:        blocks,
		QuotaMaxBytes:      s.quotaMax,
		QuotaUsedBytes:     s.quotaUsed,
		QuotaReservedBytes: s.quotaReserved,
	}
}
