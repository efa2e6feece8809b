package bitcoin

import (
	"bytes"
	"fmt"

	"github.com/burnsync/burnsync/internal/common"
)

// BlockDownloader fetches full block payloads from the bitcoin node.
type BlockDownloader struct {
	client IBitcoinClient
}

func NewBlockDownloader(client IBitcoinClient) *BlockDownloader {
	return &BlockDownloader{client: client}
}

func (d *BlockDownloader) Download(header common.HeaderIPC) (*common.BlockIPC, error) {
	hash := header.Hash
	msgBlock, err := d.client.GetBlock(&hash)
	if err != nil {
		return nil, &common.DownloadError{Err: fmt.Errorf("fetching block %s at height %d: %w", hash, header.Height, err)}
	}

	if got := msgBlock.BlockHash(); got != header.Hash {
		return nil, &common.DownloadError{Err: fmt.Errorf("node returned block %s for requested hash %s", got, header.Hash)}
	}

	var buf bytes.Buffer
	if err := msgBlock.Serialize(&buf); err != nil {
		return nil, &common.DownloadError{Err: fmt.Errorf("serializing block %s: %w", hash, err)}
	}

	return &common.BlockIPC{Header: header, Payload: buf.Bytes()}, nil
}
