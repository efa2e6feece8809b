package bitcoin

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"

	"github.com/burnsync/burnsync/internal/common"
)

// BlockParser decodes raw bitcoin blocks and extracts the burnchain
// operations carried in OP_RETURN outputs tagged with the configured
// magic bytes. Opcodes not yet active in the given epoch are ignored,
// not rejected: an old node must not choke on future operations.
type BlockParser struct {
	magic [2]byte
}

func NewBlockParser(magic [2]byte) *BlockParser {
	return &BlockParser{magic: magic}
}

func (p *BlockParser) Parse(blockIPC *common.BlockIPC, epoch common.EpochID) (*common.BlockData, error) {
	block, err := btcutil.NewBlockFromBytes(blockIPC.Payload)
	if err != nil {
		return nil, &common.ParseError{Err: fmt.Errorf("decoding block at height %d: %w", blockIPC.Header.Height, err)}
	}

	msgBlock := block.MsgBlock()
	if got := msgBlock.Header.BlockHash(); got != blockIPC.Header.Hash {
		return nil, &common.ParseError{Err: fmt.Errorf("payload hashes to %s, expected %s", got, blockIPC.Header.Hash)}
	}

	header := common.BurnBlockHeader{
		Height:     blockIPC.Header.Height,
		Hash:       blockIPC.Header.Hash,
		ParentHash: msgBlock.Header.PrevBlock,
		TxCount:    uint32(len(msgBlock.Transactions)),
		Timestamp:  uint64(msgBlock.Header.Timestamp.Unix()),
	}

	ops := []common.Op{}
	for txIndex, tx := range block.Transactions() {
		if op, ok := p.parseOp(tx, uint32(txIndex), blockIPC.Header.Height, epoch); ok {
			ops = append(ops, op)
		}
	}

	return &common.BlockData{Header: header, Ops: ops}, nil
}

// parseOp inspects a transaction's first output for a tagged OP_RETURN
// payload: magic (2 bytes), opcode (1 byte), opcode-specific data.
func (p *BlockParser) parseOp(tx *btcutil.Tx, txIndex uint32, height uint64, epoch common.EpochID) (common.Op, bool) {
	outs := tx.MsgTx().TxOut
	if len(outs) == 0 {
		return common.Op{}, false
	}
	script := outs[0].PkScript
	if len(script) == 0 || script[0] != txscript.OP_RETURN {
		return common.Op{}, false
	}

	pushed, err := txscript.PushedData(script)
	if err != nil || len(pushed) == 0 {
		return common.Op{}, false
	}
	payload := pushed[0]
	if len(payload) < 3 {
		return common.Op{}, false
	}
	if payload[0] != p.magic[0] || payload[1] != p.magic[1] {
		return common.Op{}, false
	}

	opcode := common.Opcode(payload[2])
	if !common.OpcodeValidIn(opcode, epoch) {
		return common.Op{}, false
	}

	data := make([]byte, len(payload)-3)
	copy(data, payload[3:])

	return common.Op{
		Opcode:      opcode,
		TxID:        *tx.Hash(),
		TxIndex:     txIndex,
		BlockHeight: height,
		Data:        data,
	}, true
}
