package sync

import (
	"errors"
	"fmt"
	stdsync "sync"
	"sync/atomic"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/burnsync/burnsync/internal/common"
)

// hashAt builds a deterministic hash for a mock block height.
func hashAt(height uint64) chainhash.Hash {
	var hash chainhash.Hash
	hash[0] = byte(height)
	hash[1] = byte(height >> 8)
	hash[31] = 0xbb
	return hash
}

type mockBlock struct {
	height uint64
	hash   chainhash.Hash
	parent chainhash.Hash
}

func newMockChain(n uint64) map[uint64]mockBlock {
	blocks := make(map[uint64]mockBlock, n)
	for height := uint64(0); height < n; height++ {
		block := mockBlock{height: height, hash: hashAt(height)}
		if height > 0 {
			block.parent = hashAt(height - 1)
		}
		blocks[height] = block
	}
	return blocks
}

func (b mockBlock) header() common.BurnBlockHeader {
	return common.BurnBlockHeader{
		Height:     b.height,
		Hash:       b.hash,
		ParentHash: b.parent,
	}
}

// mockIndexer is a test double for the burnchain indexer with
// injectable failures per stage.
type mockIndexer struct {
	mu     stdsync.Mutex
	blocks map[uint64]mockBlock

	failDownloadAt *uint64
	failParseAt    *uint64
	failCommitAt   *uint64
	panicParseAt   *uint64

	// reorgAncestor, when set, is returned by FindChainReorg.
	reorgAncestor *uint64

	connectCalls        int
	downloadCalls       atomic.Int32
	processCalls        int
	committed           []uint64
	announceAfterCommit func()

	chainTip        *common.BurnBlockHeader
	droppedChainTo  *uint64
	droppedHeaderTo *uint64
}

var _ Indexer = (*mockIndexer)(nil)
var _ CoordinatorChannels = (*mockCoordinator)(nil)

func newMockIndexer(numBlocks uint64) *mockIndexer {
	return &mockIndexer{blocks: newMockChain(numBlocks)}
}

func (m *mockIndexer) tipHeight() uint64 {
	var max uint64
	for height := range m.blocks {
		if height > max {
			max = height
		}
	}
	return max
}

// preCommit seeds the committed chain up to and including height.
func (m *mockIndexer) preCommit(height uint64) {
	for h := uint64(0); h <= height; h++ {
		m.committed = append(m.committed, h)
	}
	tip := m.blocks[height].header()
	m.chainTip = &tip
}

func (m *mockIndexer) committedHeights() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uint64, len(m.committed))
	copy(out, m.committed)
	return out
}

func (m *mockIndexer) Connect() error {
	m.connectCalls++
	return nil
}

func (m *mockIndexer) GetHeadersHeight() (uint64, error) {
	return m.tipHeight(), nil
}

func (m *mockIndexer) GetHighestHeaderHeight() (uint64, error) {
	return m.tipHeight(), nil
}

func (m *mockIndexer) SyncHeaders(start uint64, end uint64) (uint64, error) {
	tip := m.tipHeight()
	if end != 0 && end < tip {
		return end, nil
	}
	return tip, nil
}

func (m *mockIndexer) FindChainReorg() (uint64, error) {
	if m.reorgAncestor != nil {
		return *m.reorgAncestor, nil
	}
	return m.tipHeight(), nil
}

func (m *mockIndexer) DropHeaders(newHeight uint64) error {
	m.droppedHeaderTo = &newHeight
	return nil
}

func (m *mockIndexer) ReadHeaders(start uint64, end uint64) ([]common.HeaderIPC, error) {
	headers := []common.HeaderIPC{}
	for height := start; height < end; height++ {
		block, ok := m.blocks[height]
		if !ok {
			break
		}
		headers = append(headers, common.HeaderIPC{Height: height, Hash: block.hash})
	}
	return headers, nil
}

func (m *mockIndexer) GetDownloader() Downloader {
	return &mockDownloader{indexer: m}
}

func (m *mockIndexer) GetBlockParser() BlockParser {
	return &mockParser{indexer: m}
}

func (m *mockIndexer) GetEpochs() common.EpochList {
	return common.DefaultEpochs(0)
}

func (m *mockIndexer) ProcessBlock(data *common.BlockData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processCalls++
	if m.failCommitAt != nil && data.Header.Height == *m.failCommitAt {
		return errors.New("chain state write failed")
	}
	m.committed = append(m.committed, data.Header.Height)
	tip := data.Header
	m.chainTip = &tip
	if m.announceAfterCommit != nil {
		m.announceAfterCommit()
	}
	return nil
}

func (m *mockIndexer) GetCanonicalChainTip() (*common.BurnBlockHeader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chainTip == nil {
		return nil, nil
	}
	tip := *m.chainTip
	return &tip, nil
}

func (m *mockIndexer) DropChainState(newHeight uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.droppedChainTo = &newHeight
	kept := []uint64{}
	for _, height := range m.committed {
		if height <= newHeight {
			kept = append(kept, height)
		}
	}
	m.committed = kept
	if block, ok := m.blocks[newHeight]; ok {
		tip := block.header()
		m.chainTip = &tip
	} else {
		m.chainTip = nil
	}
	return nil
}

type mockDownloader struct {
	indexer *mockIndexer
}

func (d *mockDownloader) Download(header common.HeaderIPC) (*common.BlockIPC, error) {
	d.indexer.downloadCalls.Add(1)
	if fail := d.indexer.failDownloadAt; fail != nil && header.Height == *fail {
		return nil, fmt.Errorf("connection reset fetching block %d", header.Height)
	}
	return &common.BlockIPC{
		Header:  header,
		Payload: []byte{byte(header.Height)},
	}, nil
}

type mockParser struct {
	indexer *mockIndexer
}

func (p *mockParser) Parse(block *common.BlockIPC, epoch common.EpochID) (*common.BlockData, error) {
	if at := p.indexer.panicParseAt; at != nil && block.Header.Height == *at {
		panic("boom")
	}
	if fail := p.indexer.failParseAt; fail != nil && block.Header.Height == *fail {
		return nil, fmt.Errorf("corrupt payload at height %d", block.Header.Height)
	}
	mock, ok := p.indexer.blocks[block.Header.Height]
	if !ok {
		return nil, fmt.Errorf("unknown block at height %d", block.Header.Height)
	}
	return &common.BlockData{Header: mock.header()}, nil
}

// mockCoordinator counts announcements and can simulate a closed
// downstream channel.
type mockCoordinator struct {
	announcements atomic.Int32
	closed        atomic.Bool
}

func (c *mockCoordinator) AnnounceNewBurnBlock() bool {
	if c.closed.Load() {
		return false
	}
	c.announcements.Add(1)
	return true
}

func uint64Ptr(v uint64) *uint64 {
	return &v
}
