package strand

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinefabric/strand-go/memengine"
)

// storeDataset uploads data and returns its content id.
func storeDataset(t *testing.T, n *Node, name string, data []byte) string {
	t.Helper()
	cid, err := n.UploadBytes(context.Background(), name, data)
	require.NoError(t, err)
	return cid
}

func TestDownloadChunkSequenceEndsWithEOF(t *testing.T) {
	ctx := context.Background()
	n := startedNode(t)
	data := pattern(150_000) // 2 full blocks plus a short tail
	cid := storeDataset(t, n, "f.bin", data)

	s, err := n.NewDownload(ctx, cid)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, cid, s.CID())

	var got []byte
	var reads int
	for {
		chunk, err := s.Chunk(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.NotEmpty(t, chunk)
		got = append(got, chunk...)
		reads++
	}
	assert.Equal(t, 3, reads, "expected one read per stored block")
	require.True(t, bytes.Equal(data, got))

	// Exhaustion is stable: further reads keep reporting EOF.
	_, err = s.Chunk(ctx)
	assert.Equal(t, io.EOF, err)

	served, err := s.Finalize(ctx)
	require.NoError(t, err)
	assert.Equal(t, cid, served)
}

func TestDownloadChunksAreBlockSized(t *testing.T) {
	ctx := context.Background()
	n := startedNode(t)
	data := pattern(memengine.BlockSize + 100)
	cid := storeDataset(t, n, "f.bin", data)

	s, err := n.NewDownload(ctx, cid)
	require.NoError(t, err)

	first, err := s.Chunk(ctx)
	require.NoError(t, err)
	assert.Len(t, first, memengine.BlockSize)

	second, err := s.Chunk(ctx)
	require.NoError(t, err)
	assert.Len(t, second, 100)
}

func TestDownloadChunkAfterCancelFails(t *testing.T) {
	ctx := context.Background()
	n := startedNode(t)
	cid := storeDataset(t, n, "f.bin", pattern(1000))

	s, err := n.NewDownload(ctx, cid)
	require.NoError(t, err)
	require.NoError(t, s.Cancel(ctx))

	_, err = s.Chunk(ctx)
	e := requireErrorType(t, err, ErrorTypeDownload)
	assert.Equal(t, "failed to download chunk", e.Msg)
}

func TestDownloadUnknownCid(t *testing.T) {
	ctx := context.Background()
	n := startedNode(t)

	_, err := n.NewDownload(ctx, "st1deadbeef")
	e := requireErrorType(t, err, ErrorTypeLibrary)
	assert.Contains(t, e.Msg, "dataset not found")
}

func TestDownloadEmptyCidRejectedLocally(t *testing.T) {
	ctx := context.Background()
	n := startedNode(t)

	_, err := n.NewDownload(ctx, "")
	e := requireErrorType(t, err, ErrorTypeInvalidParameter)
	assert.Equal(t, "cid", e.Op)
}

func TestConcurrentDownloadSessionsKeepSeparateCursors(t *testing.T) {
	ctx := context.Background()
	n := startedNode(t)
	data := pattern(3 * memengine.BlockSize)
	cid := storeDataset(t, n, "f.bin", data)

	a, err := n.NewDownload(ctx, cid)
	require.NoError(t, err)
	b, err := n.NewDownload(ctx, cid)
	require.NoError(t, err)

	// Advance a by two blocks, b by one; each keeps its own position.
	_, err = a.Chunk(ctx)
	require.NoError(t, err)
	chunkA2, err := a.Chunk(ctx)
	require.NoError(t, err)
	chunkB1, err := b.Chunk(ctx)
	require.NoError(t, err)

	assert.Equal(t, data[memengine.BlockSize:2*memengine.BlockSize], chunkA2)
	assert.Equal(t, data[:memengine.BlockSize], chunkB1)
}
