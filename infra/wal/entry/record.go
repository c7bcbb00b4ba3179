package entry

import "time"

type RecordType uint8

const (
	RecordDeploy RecordType = iota + 1
	RecordMint
	RecordApprove
	RecordTransfer
	RecordAddLiquidity
	RecordRemoveLiquidity
	RecordSwapAForB
	RecordSwapBForA
	RecordTransferOwnership
)

func (t RecordType) String() string {
	switch t {
	case RecordDeploy:
		return "deploy"
	case RecordMint:
		return "mint"
	case RecordApprove:
		return "approve"
	case RecordTransfer:
		return "transfer"
	case RecordAddLiquidity:
		return "add_liquidity"
	case RecordRemoveLiquidity:
		return "remove_liquidity"
	case RecordSwapAForB:
		return "swap_a_for_b"
	case RecordSwapBForA:
		return "swap_b_for_a"
	case RecordTransferOwnership:
		return "transfer_ownership"
	default:
		return "unknown"
	}
}

type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}
