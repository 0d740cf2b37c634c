package strand

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/machinefabric/strand-go/capi"
)

// Manifest describes a stored dataset, as the engine reports it.
type Manifest struct {
	TreeCid     string `json:"treeCid"`
	DatasetSize uint64 `json:"datasetSize"`
	BlockSize   uint64 `json:"blockSize"`
	Filename    string `json:"filename,omitempty"`
	Mimetype    string `json:"mimetype,omitempty"`
	Protected   bool   `json:"protected"`
}

// ManifestEntry pairs a content id with its manifest in ListManifests
// results.
type ManifestEntry struct {
	Cid      string   `json:"cid"`
	Manifest Manifest `json:"manifest"`
}

// Space is the node's storage accounting.
type Space struct {
	TotalBlocks        uint64 `json:"totalBlocks"`
	QuotaMaxBytes      uint64 `json:"quotaMaxBytes"`
	QuotaUsedBytes     uint64 `json:"quotaUsedBytes"`
	QuotaReservedBytes uint64 `json:"quotaReservedBytes"`
}

// storageCall runs one storage query and returns its terminal payload.
func (n *Node) storageCall(ctx context.Context, op string, issue func(cb capi.Callback, token uint64) capi.Status) ([]byte, error) {
	return n.call(ctx, capi.NewStorageError(op, "engine rejected the call"), nil, issue)
}

// Exists reports whether the node stores the dataset cid.
func (n *Node) Exists(ctx context.Context, cid string) (bool, error) {
	if cid == "" {
		return false, capi.NewInvalidParameter("cid", "cannot be empty")
	}
	payload, err := n.storageCall(ctx, "exists", func(cb capi.Callback, token uint64) capi.Status {
		return n.eng.StorageExists(n.ref, cid, cb, token)
	})
	if err != nil {
		return false, err
	}
	v, perr := strconv.ParseBool(string(payload))
	if perr != nil {
		return false, capi.NewSerializationError("decode exists response", perr)
	}
	return v, nil
}

// FetchManifest returns the manifest stored for cid without opening a
// download session.
func (n *Node) FetchManifest(ctx context.Context, cid string) (Manifest, error) {
	if cid == "" {
		return Manifest{}, capi.NewInvalidParameter("cid", "cannot be empty")
	}
	payload, err := n.storageCall(ctx, "fetch", func(cb capi.Callback, token uint64) capi.Status {
		return n.eng.StorageFetch(n.ref, cid, cb, token)
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

// Delete removes the dataset cid and frees its quota.
func (n *Node) Delete(ctx context.Context, cid string) error {
	if cid == "" {
		return capi.NewInvalidParameter("cid", "cannot be empty")
	}
	_, err := n.storageCall(ctx, "delete", func(cb capi.Callback, token uint64) capi.Status {
		return n.eng.StorageDelete(n.ref, cid, cb, token)
	})
	return err
}

// ListManifests returns every dataset the node stores.
func (n *Node) ListManifests(ctx context.Context) ([]ManifestEntry, error) {
	payload, err := n.storageCall(ctx, "list", func(cb capi.Callback, token uint64) capi.Status {
		return n.eng.StorageList(n.ref, cb, token)
	})
	if err != nil {
		return nil, err
	}
	var entries []ManifestEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, capi.NewSerializationError("decode manifest list", err)
	}
	return entries, nil
}

// Space returns the node's quota accounting.
func (n *Node) Space(ctx context.Context) (Space, error) {
	payload, err := n.storageCall(ctx, "space", func(cb capi.Callback, token uint64) capi.Status {
		return n.eng.StorageSpace(n.ref, cb, token)
	})
	if err != nil {
		return Space{}, err
	}
	var sp Space
	if err := json.Unmarshal(payload, &sp); err != nil {
		return Space{}, capi.NewSerializationError("decode space report", err)
	}
	return sp, nil
}
