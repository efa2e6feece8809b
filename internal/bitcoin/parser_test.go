package bitcoin

import (
	"bytes"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burnsync/burnsync/internal/common"
)

var testMagic = [2]byte{'X', '2'}

// opReturnTx builds a transaction whose first output carries the given
// OP_RETURN payload.
func opReturnTx(t *testing.T, seed byte, payload []byte) *wire.MsgTx {
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddData(payload).
		Script()
	require.NoError(t, err)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 0xffffffff},
		SignatureScript:  []byte{seed},
		Sequence:         0xffffffff,
	})
	tx.AddTxOut(wire.NewTxOut(0, script))
	return tx
}

func plainTx(seed byte) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 0xffffffff},
		SignatureScript:  []byte{seed},
		Sequence:         0xffffffff,
	})
	tx.AddTxOut(wire.NewTxOut(0, []byte{txscript.OP_DUP}))
	return tx
}

func opPayload(opcode common.Opcode, data []byte) []byte {
	payload := []byte{testMagic[0], testMagic[1], byte(opcode)}
	return append(payload, data...)
}

// buildBlockIPC serializes a block holding the given transactions and
// returns it as the download stage would hand it to the parser.
func buildBlockIPC(t *testing.T, height uint64, txs ...*wire.MsgTx) *common.BlockIPC {
	msgBlock := wire.NewMsgBlock(&wire.BlockHeader{
		Version:   1,
		PrevBlock: chainhash.Hash{0x01},
		Timestamp: time.Unix(1717000000, 0),
		Bits:      0x1d00ffff,
	})
	for _, tx := range txs {
		require.NoError(t, msgBlock.AddTransaction(tx))
	}

	var buf bytes.Buffer
	require.NoError(t, msgBlock.Serialize(&buf))

	return &common.BlockIPC{
		Header: common.HeaderIPC{
			Height: height,
			Hash:   msgBlock.Header.BlockHash(),
		},
		Payload: buf.Bytes(),
	}
}

func TestParseExtractsTaggedOps(t *testing.T) {
	commitTx := opReturnTx(t, 1, opPayload(common.OpLeaderBlockCommit, []byte{0xde, 0xad}))
	blockIPC := buildBlockIPC(t, 7,
		plainTx(0),
		commitTx,
		opReturnTx(t, 2, opPayload(common.OpLeaderKeyRegister, nil)),
	)

	blockData, err := NewBlockParser(testMagic).Parse(blockIPC, common.Epoch20)

	require.NoError(t, err)
	assert.Equal(t, uint64(7), blockData.Header.Height)
	assert.Equal(t, blockIPC.Header.Hash, blockData.Header.Hash)
	assert.Equal(t, chainhash.Hash{0x01}, blockData.Header.ParentHash)
	assert.Equal(t, uint32(3), blockData.Header.TxCount)
	assert.Equal(t, uint64(1717000000), blockData.Header.Timestamp)

	require.Len(t, blockData.Ops, 2)
	assert.Equal(t, common.OpLeaderBlockCommit, blockData.Ops[0].Opcode)
	assert.Equal(t, []byte{0xde, 0xad}, blockData.Ops[0].Data)
	assert.Equal(t, uint32(1), blockData.Ops[0].TxIndex)
	assert.Equal(t, uint64(7), blockData.Ops[0].BlockHeight)
	assert.Equal(t, commitTx.TxHash(), blockData.Ops[0].TxID)
	assert.Equal(t, common.OpLeaderKeyRegister, blockData.Ops[1].Opcode)
	assert.Empty(t, blockData.Ops[1].Data)
}

func TestParseSkipsWrongMagic(t *testing.T) {
	payload := []byte{'Y', '9', byte(common.OpLeaderBlockCommit), 0x01}
	blockIPC := buildBlockIPC(t, 1, opReturnTx(t, 1, payload))

	blockData, err := NewBlockParser(testMagic).Parse(blockIPC, common.Epoch21)

	require.NoError(t, err)
	assert.Empty(t, blockData.Ops)
}

func TestParseSkipsOpcodesInactiveInEpoch(t *testing.T) {
	delegate := opReturnTx(t, 1, opPayload(common.OpDelegateStx, []byte{0x01}))

	// Delegation is not recognized before 2.1. The block itself still
	// parses cleanly.
	blockData, err := NewBlockParser(testMagic).Parse(buildBlockIPC(t, 1, delegate), common.Epoch20)
	require.NoError(t, err)
	assert.Empty(t, blockData.Ops)

	blockData, err = NewBlockParser(testMagic).Parse(buildBlockIPC(t, 1, delegate), common.Epoch21)
	require.NoError(t, err)
	require.Len(t, blockData.Ops, 1)
	assert.Equal(t, common.OpDelegateStx, blockData.Ops[0].Opcode)
}

func TestParseSkipsShortPayloads(t *testing.T) {
	blockIPC := buildBlockIPC(t, 1, opReturnTx(t, 1, []byte{testMagic[0], testMagic[1]}))

	blockData, err := NewBlockParser(testMagic).Parse(blockIPC, common.Epoch21)

	require.NoError(t, err)
	assert.Empty(t, blockData.Ops)
}

func TestParseRejectsHashMismatch(t *testing.T) {
	blockIPC := buildBlockIPC(t, 1, plainTx(0))
	blockIPC.Header.Hash = chainhash.Hash{0xff}

	_, err := NewBlockParser(testMagic).Parse(blockIPC, common.Epoch21)

	require.Error(t, err)
	assert.True(t, common.IsParseError(err))
}

func TestParseRejectsGarbagePayload(t *testing.T) {
	blockIPC := &common.BlockIPC{
		Header:  common.HeaderIPC{Height: 1},
		Payload: []byte{0x00, 0x01, 0x02},
	}

	_, err := NewBlockParser(testMagic).Parse(blockIPC, common.Epoch21)

	require.Error(t, err)
	assert.True(t, common.IsParseError(err))
}
