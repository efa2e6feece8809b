package storage

import (
	"fmt"

	config "github.com/burnsync/burnsync/configs"
	"github.com/burnsync/burnsync/internal/common"
)

// IStorage bundles the two stores the sync pipeline touches. Header
// storage is owned by the indexer; chain storage holds the committed
// canonical chain and is written only by the commit stage.
type IStorage struct {
	HeaderStorage IHeaderStorage
	ChainStorage  IChainStorage
}

type IHeaderStorage interface {
	// GetHeadersHeight returns the height of the highest stored header.
	// The bool is false when no headers are stored yet.
	GetHeadersHeight() (uint64, bool, error)
	GetHeader(height uint64) (*common.BurnBlockHeader, error)
	PutHeaders(headers []common.BurnBlockHeader) error
	// ReadHeaders returns stored headers in [start, end) in ascending
	// height order, stopping early at the first gap.
	ReadHeaders(start uint64, end uint64) ([]common.BurnBlockHeader, error)
	// DropHeaders deletes all headers above newHeight.
	DropHeaders(newHeight uint64) error
	Close() error
}

type IChainStorage interface {
	// GetCanonicalTip returns nil when nothing has been committed.
	GetCanonicalTip() (*common.BurnBlockHeader, error)
	// CommitBlock appends a block to the canonical chain. The block's
	// height must be exactly one above the current tip, unless it is
	// the first commit.
	CommitBlock(data *common.BlockData) error
	GetBlock(height uint64) (*common.BlockData, error)
	// RollbackAbove removes all committed blocks above height.
	RollbackAbove(height uint64) error
	Close() error
}

func NewStorageConnector(cfg *config.StorageConfig) (IStorage, error) {
	var storage IStorage
	var err error

	storage.HeaderStorage, err = NewConnector[IHeaderStorage](&cfg.Headers)
	if err != nil {
		return IStorage{}, fmt.Errorf("failed to create header storage: %w", err)
	}

	storage.ChainStorage, err = NewConnector[IChainStorage](&cfg.Chain)
	if err != nil {
		return IStorage{}, fmt.Errorf("failed to create chain storage: %w", err)
	}

	return storage, nil
}

func NewConnector[T any](cfg *config.StorageConnectionConfig) (T, error) {
	var conn interface{}
	var err error
	if cfg.Badger != nil {
		conn, err = NewBadgerConnector(cfg.Badger)
	} else if cfg.Memory != nil {
		conn, err = NewMemoryConnector(cfg.Memory)
	} else {
		return *new(T), fmt.Errorf("no storage driver configured")
	}

	if err != nil {
		return *new(T), err
	}

	typedConn, ok := conn.(T)
	if !ok {
		return *new(T), fmt.Errorf("connector does not implement the required interface")
	}

	return typedConn, nil
}
