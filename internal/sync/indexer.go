package sync

import (
	"github.com/burnsync/burnsync/internal/common"
)

// HeaderReader is the read-only view over locally persisted headers.
type HeaderReader interface {
	// GetHeadersHeight returns the height of the highest locally
	// persisted header.
	GetHeadersHeight() (uint64, error)
	// ReadHeaders returns the locally stored headers in [start, end).
	ReadHeaders(start uint64, end uint64) ([]common.HeaderIPC, error)
}

// Indexer abstracts the burnchain: it connects to the source chain,
// keeps the local header store current, detects reorgs, and commits
// processed blocks. The syncer is generic over this interface so test
// doubles can stand in for the real network and database.
type Indexer interface {
	HeaderReader

	// Connect is idempotent; a no-op when already connected.
	Connect() error

	// GetHighestHeaderHeight returns the burnchain node's current tip
	// height.
	GetHighestHeaderHeight() (uint64, error)
	// SyncHeaders advances the local header store to end (or the
	// node's tip when end is 0) and returns the new local height.
	SyncHeaders(start uint64, end uint64) (uint64, error)
	// FindChainReorg returns the height of the deepest header that is
	// still on the burnchain node's canonical branch.
	FindChainReorg() (uint64, error)
	// DropHeaders discards all local headers above newHeight.
	DropHeaders(newHeight uint64) error

	GetDownloader() Downloader
	GetBlockParser() BlockParser
	// GetEpochs returns the protocol epoch table consulted by the
	// parse stage.
	GetEpochs() common.EpochList

	// ProcessBlock commits a parsed block's derived state. Called
	// strictly in ascending height order.
	ProcessBlock(data *common.BlockData) error

	// GetCanonicalChainTip returns the highest committed block header,
	// or nil when nothing has been committed yet.
	GetCanonicalChainTip() (*common.BurnBlockHeader, error)

	// DropChainState invalidates committed chain-state above newHeight.
	// Called when a reorg ancestor falls below the committed tip.
	DropChainState(newHeight uint64) error
}

// Downloader fetches the full block payload for a header.
type Downloader interface {
	Download(header common.HeaderIPC) (*common.BlockIPC, error)
}

// BlockParser decodes a downloaded block under the parsing rules of
// the given epoch.
type BlockParser interface {
	Parse(block *common.BlockIPC, epoch common.EpochID) (*common.BlockData, error)
}
