package strand

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinefabric/strand-go/memengine"
)

func TestExistsReportsStoredDatasets(t *testing.T) {
	ctx := context.Background()
	n := startedNode(t)
	cid := storeDataset(t, n, "f.bin", pattern(1000))

	ok, err := n.Exists(ctx, cid)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = n.Exists(ctx, "st1unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = n.Exists(ctx, "")
	requireErrorType(t, err, ErrorTypeInvalidParameter)
}

func TestFetchManifestMatchesManifestQuery(t *testing.T) {
	ctx := context.Background()
	n := startedNode(t)
	cid := storeDataset(t, n, "f.txt", pattern(5000))

	viaStorage, err := n.FetchManifest(ctx, cid)
	require.NoError(t, err)
	viaDownload, err := n.Manifest(ctx, cid)
	require.NoError(t, err)
	assert.Equal(t, viaDownload, viaStorage)

	_, err = n.FetchManifest(ctx, "st1unknown")
	e := requireErrorType(t, err, ErrorTypeLibrary)
	assert.Contains(t, e.Msg, "dataset not found")
}

func TestDeleteRemovesDatasetAndFreesQuota(t *testing.T) {
	ctx := context.Background()
	n := startedNode(t)

	keep := storeDataset(t, n, "keep.bin", pattern(4000))
	drop := storeDataset(t, n, "drop.bin", pattern(9000))

	before, err := n.Space(ctx)
	require.NoError(t, err)

	require.NoError(t, n.Delete(ctx, drop))

	ok, err := n.Exists(ctx, drop)
	require.NoError(t, err)
	assert.False(t, ok)

	after, err := n.Space(ctx)
	require.NoError(t, err)
	assert.Less(t, after.QuotaUsedBytes, before.QuotaUsedBytes)

	entries, err := n.ListManifests(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, keep, entries[0].Cid)
	assert.Equal(t, "keep.bin", entries[0].Manifest.Filename)

	err = n.Delete(ctx, drop)
	e := requireErrorType(t, err, ErrorTypeLibrary)
	assert.Contains(t, e.Msg, "dataset not found")
}

func TestSpaceAccountsUploads(t *testing.T) {
	ctx := context.Background()
	n := startedNode(t)

	empty, err := n.Space(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalBlocks)
	assert.Zero(t, empty.QuotaUsedBytes)
	assert.Zero(t, empty.QuotaReservedBytes)
	assert.Equal(t, uint64(DefaultStorageQuota), empty.QuotaMaxBytes)

	data := pattern(2*memengine.BlockSize + 10)
	storeDataset(t, n, "f.bin", data)

	sp, err := n.Space(ctx)
	require.NoError(t, err)
	// Used bytes cover the content plus its manifest block.
	assert.GreaterOrEqual(t, sp.QuotaUsedBytes, uint64(len(data)))
	assert.Equal(t, uint64(4), sp.TotalBlocks, "three content blocks plus the manifest block")
	assert.Zero(t, sp.QuotaReservedBytes, "finalize must consume the reservation")
}

func TestQuotaExhaustionSurfacesEngineError(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.StorageQuota = 4096
	n, err := New(memengine.New(), cfg)
	require.NoError(t, err)
	require.NoError(t, n.Start(ctx))

	s, err := n.NewUpload(ctx, UploadOptions{Filename: "big.bin"})
	require.NoError(t, err)
	defer s.Cancel(ctx)

	err = s.Chunk(ctx, pattern(8192))
	e := requireErrorType(t, err, ErrorTypeLibrary)
	assert.Contains(t, e.Msg, "storage quota exceeded")
}

func TestCancelReleasesQuotaReservation(t *testing.T) {
	ctx := context.Background()
	n := startedNode(t)

	s, err := n.NewUpload(ctx, UploadOptions{Filename: "r.bin"})
	require.NoError(t, err)
	require.NoError(t, s.Chunk(ctx, pattern(5000)))

	sp, err := n.Space(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), sp.QuotaReservedBytes)

	require.NoError(t, s.Cancel(ctx))

	sp, err = n.Space(ctx)
	require.NoError(t, err)
	assert.Zero(t, sp.QuotaReservedBytes)
	assert.Zero(t, sp.QuotaUsedBytes)
}
