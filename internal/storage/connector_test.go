package storage

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/burnsync/burnsync/configs"
	"github.com/burnsync/burnsync/internal/common"
)

type connectorUnderTest struct {
	IHeaderStorage
	IChainStorage
}

func testConnectors(t *testing.T) map[string]connectorUnderTest {
	memory, err := NewMemoryConnector(&config.MemoryConfig{})
	require.NoError(t, err)

	badgerConn, err := NewBadgerConnector(&config.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { badgerConn.Close() })

	return map[string]connectorUnderTest{
		"memory": {IHeaderStorage: memory, IChainStorage: memory},
		"badger": {IHeaderStorage: badgerConn, IChainStorage: badgerConn},
	}
}

func testHash(height uint64) chainhash.Hash {
	var hash chainhash.Hash
	hash[0] = byte(height)
	hash[1] = byte(height >> 8)
	return hash
}

func testHeader(height uint64) common.BurnBlockHeader {
	header := common.BurnBlockHeader{
		Height: height,
		Hash:   testHash(height),
	}
	if height > 0 {
		header.ParentHash = testHash(height - 1)
	}
	return header
}

func TestHeaderStorageRoundTrip(t *testing.T) {
	for name, conn := range testConnectors(t) {
		t.Run(name, func(t *testing.T) {
			_, found, err := conn.GetHeadersHeight()
			require.NoError(t, err)
			assert.False(t, found)

			headers := []common.BurnBlockHeader{testHeader(0), testHeader(1), testHeader(2)}
			require.NoError(t, conn.PutHeaders(headers))

			height, found, err := conn.GetHeadersHeight()
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, uint64(2), height)

			header, err := conn.GetHeader(1)
			require.NoError(t, err)
			require.NotNil(t, header)
			assert.Equal(t, testHash(1), header.Hash)

			missing, err := conn.GetHeader(9)
			require.NoError(t, err)
			assert.Nil(t, missing)
		})
	}
}

func TestReadHeadersStopsAtGap(t *testing.T) {
	for name, conn := range testConnectors(t) {
		t.Run(name, func(t *testing.T) {
			// Height 2 is missing.
			require.NoError(t, conn.PutHeaders([]common.BurnBlockHeader{
				testHeader(0), testHeader(1), testHeader(3),
			}))

			headers, err := conn.ReadHeaders(0, 4)
			require.NoError(t, err)
			require.Len(t, headers, 2)
			assert.Equal(t, uint64(0), headers[0].Height)
			assert.Equal(t, uint64(1), headers[1].Height)
		})
	}
}

func TestDropHeaders(t *testing.T) {
	for name, conn := range testConnectors(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, conn.PutHeaders([]common.BurnBlockHeader{
				testHeader(0), testHeader(1), testHeader(2), testHeader(3),
			}))

			require.NoError(t, conn.DropHeaders(1))

			height, found, err := conn.GetHeadersHeight()
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, uint64(1), height)

			dropped, err := conn.GetHeader(2)
			require.NoError(t, err)
			assert.Nil(t, dropped)
		})
	}
}

func TestCommitBlockAdvancesTip(t *testing.T) {
	for name, conn := range testConnectors(t) {
		t.Run(name, func(t *testing.T) {
			tip, err := conn.GetCanonicalTip()
			require.NoError(t, err)
			assert.Nil(t, tip)

			for height := uint64(0); height < 3; height++ {
				header := testHeader(height)
				require.NoError(t, conn.CommitBlock(&common.BlockData{Header: header}))
			}

			tip, err = conn.GetCanonicalTip()
			require.NoError(t, err)
			require.NotNil(t, tip)
			assert.Equal(t, uint64(2), tip.Height)

			block, err := conn.GetBlock(1)
			require.NoError(t, err)
			require.NotNil(t, block)
			assert.Equal(t, testHash(1), block.Header.Hash)
		})
	}
}

func TestCommitBlockRejectsOutOfOrder(t *testing.T) {
	for name, conn := range testConnectors(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, conn.CommitBlock(&common.BlockData{Header: testHeader(0)}))

			err := conn.CommitBlock(&common.BlockData{Header: testHeader(2)})
			require.Error(t, err)

			tip, err := conn.GetCanonicalTip()
			require.NoError(t, err)
			require.NotNil(t, tip)
			assert.Equal(t, uint64(0), tip.Height)
		})
	}
}

func TestRollbackAbove(t *testing.T) {
	for name, conn := range testConnectors(t) {
		t.Run(name, func(t *testing.T) {
			for height := uint64(0); height < 5; height++ {
				require.NoError(t, conn.CommitBlock(&common.BlockData{Header: testHeader(height)}))
			}

			require.NoError(t, conn.RollbackAbove(2))

			tip, err := conn.GetCanonicalTip()
			require.NoError(t, err)
			require.NotNil(t, tip)
			assert.Equal(t, uint64(2), tip.Height)

			gone, err := conn.GetBlock(3)
			require.NoError(t, err)
			assert.Nil(t, gone)

			// Commits resume immediately above the rollback point.
			require.NoError(t, conn.CommitBlock(&common.BlockData{Header: testHeader(3)}))
		})
	}
}

func TestRollbackAboveToEmpty(t *testing.T) {
	for name, conn := range testConnectors(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, conn.CommitBlock(&common.BlockData{Header: testHeader(1)}))

			require.NoError(t, conn.RollbackAbove(0))

			tip, err := conn.GetCanonicalTip()
			require.NoError(t, err)
			assert.Nil(t, tip)
		})
	}
}
