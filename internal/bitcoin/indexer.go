package bitcoin

import (
	"fmt"

	"github.com/rs/zerolog/log"

	config "github.com/burnsync/burnsync/configs"
	"github.com/burnsync/burnsync/internal/common"
	"github.com/burnsync/burnsync/internal/storage"
	syncer "github.com/burnsync/burnsync/internal/sync"
)

const DEFAULT_MAGIC_BYTES = "X2"
const headerBatchSize = 100

// BitcoinIndexer binds the sync pipeline to a bitcoin burnchain node.
// It owns header persistence and reorg bookkeeping; the committed
// chain lives in chain storage and is written only through
// ProcessBlock.
type BitcoinIndexer struct {
	client           IBitcoinClient
	headers          storage.IHeaderStorage
	chain            storage.IChainStorage
	magic            [2]byte
	epochs           common.EpochList
	firstBlockHeight uint64
	connected        bool
}

func NewBitcoinIndexer(client IBitcoinClient, store storage.IStorage) *BitcoinIndexer {
	firstBlockHeight := config.Cfg.Burnchain.FirstBlockHeight

	magic := [2]byte{}
	magicStr := config.Cfg.Burnchain.MagicBytes
	if len(magicStr) != 2 {
		magicStr = DEFAULT_MAGIC_BYTES
	}
	copy(magic[:], magicStr)

	return &BitcoinIndexer{
		client:           client,
		headers:          store.HeaderStorage,
		chain:            store.ChainStorage,
		magic:            magic,
		epochs:           common.DefaultEpochs(firstBlockHeight),
		firstBlockHeight: firstBlockHeight,
	}
}

// Connect verifies the node is reachable. Idempotent; a no-op once the
// first probe succeeds.
func (i *BitcoinIndexer) Connect() error {
	if i.connected {
		return nil
	}
	height, err := i.client.GetBlockCount()
	if err != nil {
		return &common.DownloadError{Err: fmt.Errorf("connecting to bitcoin node: %w", err)}
	}
	log.Debug().Int64("node_height", height).Msg("Connected to bitcoin node")
	i.connected = true
	return nil
}

func (i *BitcoinIndexer) GetHeadersHeight() (uint64, error) {
	height, found, err := i.headers.GetHeadersHeight()
	if err != nil {
		return 0, &common.DBError{Err: err}
	}
	if !found {
		return i.firstBlockHeight, nil
	}
	return height, nil
}

func (i *BitcoinIndexer) GetHighestHeaderHeight() (uint64, error) {
	height, err := i.client.GetBlockCount()
	if err != nil {
		return 0, &common.DownloadError{Err: err}
	}
	return uint64(height), nil
}

// SyncHeaders advances the local header store to end, or to the node's
// tip when end is 0, and returns the new local height.
func (i *BitcoinIndexer) SyncHeaders(start uint64, end uint64) (uint64, error) {
	nodeTip, err := i.GetHighestHeaderHeight()
	if err != nil {
		return 0, err
	}
	if end == 0 || end > nodeTip {
		end = nodeTip
	}

	localHeight, found, err := i.headers.GetHeadersHeight()
	if err != nil {
		return 0, &common.DBError{Err: err}
	}
	from := i.firstBlockHeight
	if found {
		from = localHeight + 1
	}
	if from < start {
		from = start
	}

	if err := i.fetchHeaderRange(from, end); err != nil {
		return 0, err
	}

	newHeight, found, err := i.headers.GetHeadersHeight()
	if err != nil {
		return 0, &common.DBError{Err: err}
	}
	if !found {
		return i.firstBlockHeight, nil
	}
	return newHeight, nil
}

// fetchHeaderRange downloads and persists headers for [from, end].
func (i *BitcoinIndexer) fetchHeaderRange(from uint64, end uint64) error {
	batch := make([]common.BurnBlockHeader, 0, headerBatchSize)
	for height := from; height <= end; height++ {
		hash, err := i.client.GetBlockHash(int64(height))
		if err != nil {
			return &common.DownloadError{Err: fmt.Errorf("fetching block hash at height %d: %w", height, err)}
		}
		header, err := i.client.GetBlockHeader(hash)
		if err != nil {
			return &common.DownloadError{Err: fmt.Errorf("fetching header %s: %w", hash, err)}
		}
		batch = append(batch, common.BurnBlockHeader{
			Height:     height,
			Hash:       *hash,
			ParentHash: header.PrevBlock,
			Timestamp:  uint64(header.Timestamp.Unix()),
		})
		if len(batch) >= headerBatchSize {
			if err := i.headers.PutHeaders(batch); err != nil {
				return &common.DBError{Err: err}
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := i.headers.PutHeaders(batch); err != nil {
			return &common.DBError{Err: err}
		}
	}
	return nil
}

// FindChainReorg walks back from the local header tip comparing local
// hashes against the node's canonical branch and returns the deepest
// height still shared. Stale headers above the ancestor are replaced
// with the node's branch before returning.
func (i *BitcoinIndexer) FindChainReorg() (uint64, error) {
	localHeight, found, err := i.headers.GetHeadersHeight()
	if err != nil {
		return 0, &common.DBError{Err: err}
	}
	if !found {
		return i.firstBlockHeight, nil
	}

	nodeTip, err := i.GetHighestHeaderHeight()
	if err != nil {
		return 0, err
	}

	ancestor := i.firstBlockHeight
	probe := localHeight
	if probe > nodeTip {
		probe = nodeTip
	}
	for height := probe; ; height-- {
		local, err := i.headers.GetHeader(height)
		if err != nil {
			return 0, &common.DBError{Err: err}
		}
		nodeHash, err := i.client.GetBlockHash(int64(height))
		if err != nil {
			return 0, &common.DownloadError{Err: fmt.Errorf("fetching block hash at height %d: %w", height, err)}
		}
		if local != nil && local.Hash == *nodeHash {
			ancestor = height
			break
		}
		if height <= i.firstBlockHeight {
			break
		}
	}

	if ancestor < localHeight {
		log.Warn().
			Uint64("ancestor", ancestor).
			Uint64("local_height", localHeight).
			Msg("Header store diverged from node, replacing headers above ancestor")
		if err := i.headers.DropHeaders(ancestor); err != nil {
			return 0, &common.DBError{Err: err}
		}
		if err := i.fetchHeaderRange(ancestor+1, nodeTip); err != nil {
			return 0, err
		}
	}

	return ancestor, nil
}

func (i *BitcoinIndexer) DropHeaders(newHeight uint64) error {
	if err := i.headers.DropHeaders(newHeight); err != nil {
		return &common.DBError{Err: err}
	}
	return nil
}

func (i *BitcoinIndexer) ReadHeaders(start uint64, end uint64) ([]common.HeaderIPC, error) {
	headers, err := i.headers.ReadHeaders(start, end)
	if err != nil {
		return nil, &common.DBError{Err: err}
	}
	ipcs := make([]common.HeaderIPC, 0, len(headers))
	for _, header := range headers {
		ipcs = append(ipcs, header.IPC())
	}
	return ipcs, nil
}

func (i *BitcoinIndexer) GetDownloader() syncer.Downloader {
	return NewBlockDownloader(i.client)
}

func (i *BitcoinIndexer) GetBlockParser() syncer.BlockParser {
	return NewBlockParser(i.magic)
}

func (i *BitcoinIndexer) GetEpochs() common.EpochList {
	return i.epochs
}

// ProcessBlock commits a parsed block. Parent linkage against the
// current tip is enforced here; height continuity is enforced by the
// chain store itself.
func (i *BitcoinIndexer) ProcessBlock(data *common.BlockData) error {
	tip, err := i.chain.GetCanonicalTip()
	if err != nil {
		return &common.DBError{Err: err}
	}
	if tip != nil && data.Header.ParentHash != tip.Hash {
		return &common.DBError{Err: fmt.Errorf("block %d parent %s does not link to tip %s", data.Header.Height, data.Header.ParentHash, tip.Hash)}
	}
	if err := i.chain.CommitBlock(data); err != nil {
		return &common.DBError{Err: err}
	}
	return nil
}

func (i *BitcoinIndexer) GetCanonicalChainTip() (*common.BurnBlockHeader, error) {
	tip, err := i.chain.GetCanonicalTip()
	if err != nil {
		return nil, &common.DBError{Err: err}
	}
	return tip, nil
}

func (i *BitcoinIndexer) DropChainState(newHeight uint64) error {
	if err := i.chain.RollbackAbove(newHeight); err != nil {
		return &common.DBError{Err: err}
	}
	return nil
}
