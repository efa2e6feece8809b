package common

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// BurnBlockHeader is the persisted view of a burnchain block header.
// Headers are immutable once read from the indexer; Hash is unique per
// height on the canonical branch.
type BurnBlockHeader struct {
	Height     uint64
	Hash       chainhash.Hash
	ParentHash chainhash.Hash
	TxCount    uint32
	Timestamp  uint64
}

// HeaderIPC is the minimal header record passed between pipeline
// stages. It carries just enough to fetch the block.
type HeaderIPC struct {
	Height uint64
	Hash   chainhash.Hash
}

// BlockIPC is a downloaded-but-unparsed block moving from the download
// stage to the parse stage.
type BlockIPC struct {
	Header  HeaderIPC
	Payload []byte
}

// BlockData is what the commit stage hands to the indexer: the full
// header plus the burnchain operations decoded from the block.
type BlockData struct {
	Header BurnBlockHeader
	Ops    []Op
}

func (h *BurnBlockHeader) IPC() HeaderIPC {
	return HeaderIPC{Height: h.Height, Hash: h.Hash}
}
