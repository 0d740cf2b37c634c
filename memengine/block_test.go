package memengine

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestBlockRoundtrip(t *testing.T) {
	in := &manifest{
		TreeCid:     "st1aabbcc",
		DatasetSize: 123456,
		BlockSize:   65536,
		Filename:    "report.pdf",
		Mimetype:    "application/pdf",
		Protected:   true,
	}

	block, err := encodeManifestBlock(in)
	require.NoError(t, err)
	require.NotEmpty(t, block)

	out, err := decodeManifestBlock(block)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestManifestBlockOmitsEmptyOptionals(t *testing.T) {
	in := &manifest{
		TreeCid:     "st1ddeeff",
		DatasetSize: 10,
		BlockSize:   65536,
	}

	block, err := encodeManifestBlock(in)
	require.NoError(t, err)

	var raw map[int]interface{}
	require.NoError(t, cbor.Unmarshal(block, &raw))
	assert.NotContains(t, raw, blockKeyFilename)
	assert.NotContains(t, raw, blockKeyMimetype)
	assert.NotContains(t, raw, blockKeyProtected)

	out, err := decodeManifestBlock(block)
	require.NoError(t, err)
	assert.Empty(t, out.Filename)
	assert.Empty(t, out.Mimetype)
	assert.False(t, out.Protected)
}

func TestManifestBlockRejectsMissingKeys(t *testing.T) {
	cases := []struct {
		name string
		raw  map[int]interface{}
		want string
	}{
		{
			name: "no version",
			raw:  map[int]interface{}{blockKeyTreeCid: "st1x"},
			want: "missing block version (key 0)",
		},
		{
			name: "no tree cid",
			raw: map[int]interface{}{
				blockKeyVersion:     uint8(1),
				blockKeyDatasetSize: uint64(1),
				blockKeyBlockSize:   uint64(65536),
			},
			want: "missing tree cid (key 1)",
		},
		{
			name: "no dataset size",
			raw: map[int]interface{}{
				blockKeyVersion:   uint8(1),
				blockKeyTreeCid:   "st1x",
				blockKeyBlockSize: uint64(65536),
			},
			want: "missing dataset size (key 2)",
		},
		{
			name: "no block size",
			raw: map[int]interface{}{
				blockKeyVersion:     uint8(1),
				blockKeyTreeCid:     "st1x",
				blockKeyDatasetSize: uint64(1),
			},
			want: "missing block size (key 3)",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := cbor.Marshal(tc.raw)
			require.NoError(t, err)
			_, err = decodeManifestBlock(data)
			require.Error(t, err)
			assert.Equal(t, tc.want, err.Error())
		})
	}
}

func TestManifestBlockRejectsUnknownVersion(t *testing.T) {
	data, err := cbor.Marshal(map[int]interface{}{
		blockKeyVersion:     uint8(9),
		blockKeyTreeCid:     "st1x",
		blockKeyDatasetSize: uint64(1),
		blockKeyBlockSize:   uint64(65536),
	})
	require.NoError(t, err)

	_, err = decodeManifestBlock(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported block version")
}

func TestManifestBlockRejectsGarbage(t *testing.T) {
	_, err := decodeManifestBlock([]byte{0xff, 0x00, 0x13})
	assert.Error(t, err)
}

func TestManifestBlockEncodingIsDeterministic(t *testing.T) {
	in := &manifest{
		TreeCid:     "st1aabbcc",
		DatasetSize: 123456,
		BlockSize:   65536,
		Filename:    "report.pdf",
		Mimetype:    "application/pdf",
	}

	first, err := encodeManifestBlock(in)
	require.NoError(t, err)
	for i := 0; i < 32; i++ {
		again, err := encodeManifestBlock(in)
		require.NoError(t, err)
		require.Equal(t, first, again, "block bytes must not depend on map iteration order")
	}
}

func TestContentIDDeterministic(t *testing.T) {
	a := contentID([]byte("same input"))
	b := contentID([]byte("same input"))
	c := contentID([]byte("different input"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 3+64, "st1 prefix plus hex sha256")
}
