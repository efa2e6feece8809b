package storage

import (
	"fmt"
	"sync"

	config "github.com/burnsync/burnsync/configs"
	"github.com/burnsync/burnsync/internal/common"
)

// MemoryConnector keeps headers and committed blocks in maps. It is
// the default driver for tests and ephemeral runs.
type MemoryConnector struct {
	mu      sync.RWMutex
	headers map[uint64]common.BurnBlockHeader
	blocks  map[uint64]common.BlockData
	tip     *common.BurnBlockHeader
}

func NewMemoryConnector(cfg *config.MemoryConfig) (*MemoryConnector, error) {
	return &MemoryConnector{
		headers: make(map[uint64]common.BurnBlockHeader),
		blocks:  make(map[uint64]common.BlockData),
	}, nil
}

func (m *MemoryConnector) GetHeadersHeight() (uint64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.headers) == 0 {
		return 0, false, nil
	}
	var max uint64
	for height := range m.headers {
		if height > max {
			max = height
		}
	}
	return max, true, nil
}

func (m *MemoryConnector) GetHeader(height uint64) (*common.BurnBlockHeader, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	header, ok := m.headers[height]
	if !ok {
		return nil, nil
	}
	return &header, nil
}

func (m *MemoryConnector) PutHeaders(headers []common.BurnBlockHeader) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, header := range headers {
		m.headers[header.Height] = header
	}
	return nil
}

func (m *MemoryConnector) ReadHeaders(start uint64, end uint64) ([]common.BurnBlockHeader, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	headers := []common.BurnBlockHeader{}
	for height := start; height < end; height++ {
		header, ok := m.headers[height]
		if !ok {
			break
		}
		headers = append(headers, header)
	}
	return headers, nil
}

func (m *MemoryConnector) DropHeaders(newHeight uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for height := range m.headers {
		if height > newHeight {
			delete(m.headers, height)
		}
	}
	return nil
}

func (m *MemoryConnector) GetCanonicalTip() (*common.BurnBlockHeader, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tip == nil {
		return nil, nil
	}
	tip := *m.tip
	return &tip, nil
}

func (m *MemoryConnector) CommitBlock(data *common.BlockData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tip != nil && data.Header.Height != m.tip.Height+1 {
		return fmt.Errorf("out-of-order commit: got height %d, tip is %d", data.Header.Height, m.tip.Height)
	}
	m.blocks[data.Header.Height] = *data
	tip := data.Header
	m.tip = &tip
	return nil
}

func (m *MemoryConnector) GetBlock(height uint64) (*common.BlockData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	block, ok := m.blocks[height]
	if !ok {
		return nil, nil
	}
	return &block, nil
}

func (m *MemoryConnector) RollbackAbove(height uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h := range m.blocks {
		if h > height {
			delete(m.blocks, h)
		}
	}
	if m.tip != nil && m.tip.Height > height {
		if block, ok := m.blocks[height]; ok {
			tip := block.Header
			m.tip = &tip
		} else {
			m.tip = nil
		}
	}
	return nil
}

func (m *MemoryConnector) Close() error {
	return nil
}
