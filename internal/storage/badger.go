package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"

	config "github.com/burnsync/burnsync/configs"
	"github.com/burnsync/burnsync/internal/common"
)

// BadgerConnector persists headers and the committed chain in a
// Badger key-value store. Headers are keyed by big-endian height so
// iteration order matches height order.
type BadgerConnector struct {
	db *badger.DB
}

var (
	headerPrefix = []byte("hdr:")
	blockPrefix  = []byte("blk:")
	tipKey       = []byte("chain:tip")
)

func NewBadgerConnector(cfg *config.BadgerConfig) (*BadgerConnector, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db at %s: %w", cfg.Path, err)
	}
	log.Debug().Str("path", cfg.Path).Msg("Opened badger storage")
	return &BadgerConnector{db: db}, nil
}

func heightKey(prefix []byte, height uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], height)
	return key
}

func (bc *BadgerConnector) GetHeadersHeight() (uint64, bool, error) {
	var height uint64
	var found bool
	err := bc.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek to the end of the header keyspace and step back into it.
		seek := heightKey(headerPrefix, ^uint64(0))
		for it.Seek(seek); it.ValidForPrefix(headerPrefix); it.Next() {
			key := it.Item().Key()
			height = binary.BigEndian.Uint64(key[len(headerPrefix):])
			found = true
			return nil
		}
		return nil
	})
	return height, found, err
}

func (bc *BadgerConnector) GetHeader(height uint64) (*common.BurnBlockHeader, error) {
	var header *common.BurnBlockHeader
	err := bc.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(heightKey(headerPrefix, height))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			header = &common.BurnBlockHeader{}
			return json.Unmarshal(val, header)
		})
	})
	return header, err
}

func (bc *BadgerConnector) PutHeaders(headers []common.BurnBlockHeader) error {
	return bc.db.Update(func(txn *badger.Txn) error {
		for _, header := range headers {
			value, err := json.Marshal(header)
			if err != nil {
				return err
			}
			if err := txn.Set(heightKey(headerPrefix, header.Height), value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (bc *BadgerConnector) ReadHeaders(start uint64, end uint64) ([]common.BurnBlockHeader, error) {
	headers := []common.BurnBlockHeader{}
	err := bc.db.View(func(txn *badger.Txn) error {
		for height := start; height < end; height++ {
			item, err := txn.Get(heightKey(headerPrefix, height))
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return nil
				}
				return err
			}
			var header common.BurnBlockHeader
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &header)
			})
			if err != nil {
				return err
			}
			headers = append(headers, header)
		}
		return nil
	})
	return headers, err
}

func (bc *BadgerConnector) DropHeaders(newHeight uint64) error {
	return bc.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)

		toDelete := [][]byte{}
		for it.Seek(heightKey(headerPrefix, newHeight+1)); it.ValidForPrefix(headerPrefix); it.Next() {
			toDelete = append(toDelete, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, key := range toDelete {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (bc *BadgerConnector) GetCanonicalTip() (*common.BurnBlockHeader, error) {
	var tip *common.BurnBlockHeader
	err := bc.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(tipKey)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			tip = &common.BurnBlockHeader{}
			return json.Unmarshal(val, tip)
		})
	})
	return tip, err
}

func (bc *BadgerConnector) CommitBlock(data *common.BlockData) error {
	return bc.db.Update(func(txn *badger.Txn) error {
		tip, err := readTip(txn)
		if err != nil {
			return err
		}
		if tip != nil && data.Header.Height != tip.Height+1 {
			return fmt.Errorf("out-of-order commit: got height %d, tip is %d", data.Header.Height, tip.Height)
		}

		value, err := json.Marshal(data)
		if err != nil {
			return err
		}
		if err := txn.Set(heightKey(blockPrefix, data.Header.Height), value); err != nil {
			return err
		}
		tipValue, err := json.Marshal(data.Header)
		if err != nil {
			return err
		}
		return txn.Set(tipKey, tipValue)
	})
}

func readTip(txn *badger.Txn) (*common.BurnBlockHeader, error) {
	item, err := txn.Get(tipKey)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var tip common.BurnBlockHeader
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &tip)
	})
	if err != nil {
		return nil, err
	}
	return &tip, nil
}

func (bc *BadgerConnector) GetBlock(height uint64) (*common.BlockData, error) {
	var block *common.BlockData
	err := bc.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(heightKey(blockPrefix, height))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			block = &common.BlockData{}
			return json.Unmarshal(val, block)
		})
	})
	return block, err
}

func (bc *BadgerConnector) RollbackAbove(height uint64) error {
	return bc.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)

		toDelete := [][]byte{}
		for it.Seek(heightKey(blockPrefix, height+1)); it.ValidForPrefix(blockPrefix); it.Next() {
			toDelete = append(toDelete, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, key := range toDelete {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		// Reset the tip to the surviving block, if any.
		item, err := txn.Get(heightKey(blockPrefix, height))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return txn.Delete(tipKey)
			}
			return err
		}
		var block common.BlockData
		err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &block)
		})
		if err != nil {
			return err
		}
		tipValue, err := json.Marshal(block.Header)
		if err != nil {
			return err
		}
		return txn.Set(tipKey, tipValue)
	})
}

func (bc *BadgerConnector) Close() error {
	return bc.db.Close()
}
