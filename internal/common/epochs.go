package common

import "math"

// EpochID names a range of burnchain heights during which a fixed set
// of parsing rules applies.
type EpochID uint32

const (
	Epoch10   EpochID = 1
	Epoch20   EpochID = 2
	Epoch2_05 EpochID = 3
	Epoch21   EpochID = 4
)

type Epoch struct {
	ID          EpochID
	StartHeight uint64
	EndHeight   uint64
}

// EpochList is an ordered, contiguous epoch table. The last entry is
// open-ended.
type EpochList []Epoch

// EpochAt returns the epoch active at the given burnchain height.
func (el EpochList) EpochAt(height uint64) Epoch {
	for i := len(el) - 1; i >= 0; i-- {
		if height >= el[i].StartHeight {
			return el[i]
		}
	}
	return el[0]
}

// DefaultEpochs builds the standard epoch table anchored at the
// chain's first block height. Activation offsets follow the mainnet
// schedule shape; custom tables come from config.
func DefaultEpochs(firstBlockHeight uint64) EpochList {
	return EpochList{
		{ID: Epoch10, StartHeight: 0, EndHeight: firstBlockHeight},
		{ID: Epoch20, StartHeight: firstBlockHeight, EndHeight: firstBlockHeight + 10000},
		{ID: Epoch2_05, StartHeight: firstBlockHeight + 10000, EndHeight: firstBlockHeight + 20000},
		{ID: Epoch21, StartHeight: firstBlockHeight + 20000, EndHeight: math.MaxUint64},
	}
}

// OpcodeValidIn reports whether an opcode may appear in a block parsed
// under the given epoch. Later epochs only ever add opcodes.
func OpcodeValidIn(op Opcode, epoch EpochID) bool {
	switch op {
	case OpLeaderKeyRegister, OpLeaderBlockCommit:
		return epoch >= Epoch20
	case OpPreStx, OpStackStx, OpTransferStx:
		return epoch >= Epoch2_05
	case OpDelegateStx:
		return epoch >= Epoch21
	default:
		return false
	}
}
