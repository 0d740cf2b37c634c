package memengine

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// manifest describes one stored dataset. The JSON field names are the
// document shape clients parse; the CBOR layout below is the block
// shape the store keeps.
type manifest struct {
	TreeCid     string `json:"treeCid"`
	DatasetSize uint64 `json:"datasetSize"`
	BlockSize   uint64 `json:"blockSize"`
	Filename    string `json:"filename,omitempty"`
	Mimetype    string `json:"mimetype,omitempty"`
	Protected   bool   `json:"protected"`
}

// Manifest block CBOR map keys. Integer keys keep blocks compact and
// the layout explicit.
const (
	blockKeyVersion     = 0 // format version (u8, always 1)
	blockKeyTreeCid     = 1 // tree cid (tstr)
	blockKeyDatasetSize = 2 // dataset size in bytes (u64)
	blockKeyBlockSize   = 3 // serving block size in bytes (u64)
	blockKeyFilename    = 4 // original filename (tstr, optional)
	blockKeyMimetype    = 5 // mime type (tstr, optional)
	blockKeyProtected   = 6 // erasure-protected flag (bool, optional)
)

const blockFormatVersion = 1

// blockEncMode applies RFC 8949 core deterministic encoding. Block
// bytes are hashed into the content id, so the same manifest must
// always encode to the same bytes.
var blockEncMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// encodeManifestBlock encodes a manifest into its CBOR block bytes
// using integer keys.
func encodeManifestBlock(m *manifest) ([]byte, error) {
	enc := map[int]interface{}{
		blockKeyVersion:     uint8(blockFormatVersion),
		blockKeyTreeCid:     m.TreeCid,
		blockKeyDatasetSize: m.DatasetSize,
		blockKeyBlockSize:   m.BlockSize,
	}
	if m.Filename != "" {
		enc[blockKeyFilename] = m.Filename
	}
	if m.Mimetype != "" {
		enc[blockKeyMimetype] = m.Mimetype
	}
	if m.Protected {
		enc[blockKeyProtected] = true
	}
	return blockEncMode.Marshal(enc)
}

// decodeManifestBlock decodes CBOR block bytes back into a manifest.
func decodeManifestBlock(data []byte) (*manifest, error) {
	var raw map[int]interface{}
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	// 0: version (required)
	verVal, ok := raw[blockKeyVersion]
	if !ok {
		return nil, errors.New("missing block version (key 0)")
	}
	ver, ok := verVal.(uint64)
	if !ok || ver != blockFormatVersion {
		return nil, fmt.Errorf("unsupported block version %v", verVal)
	}

	m := &manifest{}

	// 1: tree cid (required)
	if v, ok := raw[blockKeyTreeCid].(string); ok && v != "" {
		m.TreeCid = v
	} else {
		return nil, errors.New("missing tree cid (key 1)")
	}

	// 2: dataset size (required)
	if v, ok := raw[blockKeyDatasetSize].(uint64); ok {
		m.DatasetSize = v
	} else {
		return nil, errors.New("missing dataset size (key 2)")
	}

	// 3: block size (required)
	if v, ok := raw[blockKeyBlockSize].(uint64); ok {
		m.BlockSize = v
	} else {
		return nil, errors.New("missing block size (key 3)")
	}

	// 4: filename (optional)
	if v, ok := raw[blockKeyFilename].(string); ok {
		m.Filename = v
	}

	// 5: mimetype (optional)
	if v, ok := raw[blockKeyMimetype].(string); ok {
		m.Mimetype = v
	}

	// 6: protected (optional)
	if v, ok := raw[blockKeyProtected].(bool); ok {
		m.Protected = v
	}

	return m, nil
}
