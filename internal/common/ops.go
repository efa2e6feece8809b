package common

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Opcode identifies a burnchain operation embedded in an OP_RETURN
// output. The byte values are part of the wire format.
type Opcode byte

const (
	OpLeaderKeyRegister Opcode = '^'
	OpLeaderBlockCommit Opcode = '['
	OpPreStx            Opcode = 'p'
	OpStackStx          Opcode = 'x'
	OpTransferStx       Opcode = '$'
	OpDelegateStx       Opcode = '#'
)

func (o Opcode) String() string {
	switch o {
	case OpLeaderKeyRegister:
		return "leader_key_register"
	case OpLeaderBlockCommit:
		return "leader_block_commit"
	case OpPreStx:
		return "pre_stx"
	case OpStackStx:
		return "stack_stx"
	case OpTransferStx:
		return "transfer_stx"
	case OpDelegateStx:
		return "delegate_stx"
	default:
		return "unknown"
	}
}

// Op is a single burnchain operation recognized in a block. Data is
// the opcode-specific payload that follows the magic and opcode bytes;
// its interpretation belongs to the consensus layer, not this pipeline.
type Op struct {
	Opcode      Opcode
	TxID        chainhash.Hash
	TxIndex     uint32
	BlockHeight uint64
	Data        []byte
}
