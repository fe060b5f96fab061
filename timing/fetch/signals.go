package fetch

import "github.com/sarchlab/o3sim/insts"

// DecodeComm is the per-thread signal slot decode writes toward fetch.
type DecodeComm struct {
	Squash     bool
	SquashInst *DynInst
	DoneSeqNum InstSeqNum
	NextPC     *insts.PCState
}

// CommitComm is the per-thread signal slot commit writes toward fetch.
type CommitComm struct {
	Squash           bool
	SquashInst       *DynInst
	DoneSeqNum       InstSeqNum
	PC               *insts.PCState
	InterruptPending bool
	ClearInterrupt   bool
}

// IewComm carries the issue-queue and load/store-queue occupancy the SMT
// arbiter policies consult.
type IewComm struct {
	IQCount    int
	LdstqCount int
}

// TimeStruct is one cycle's worth of backward signals from the later
// pipeline stages. Fetch reads it through wires of stage-specific delays.
type TimeStruct struct {
	DecodeBlock   [MaxThreads]bool
	DecodeUnblock [MaxThreads]bool
	DecodeInfo    [MaxThreads]DecodeComm
	CommitInfo    [MaxThreads]CommitComm
	IewInfo       [MaxThreads]IewComm
}

// FetchStruct is one cycle's worth of instructions delivered to decode.
type FetchStruct struct {
	Insts [MaxWidth]*DynInst
	Size  int
}

// FetchComm is the per-thread resteer notification fetch sends to the
// branch-address calculator.
type FetchComm struct {
	Squash bool
	NextPC *insts.PCState
}

// BACStruct is one cycle's worth of signals from fetch to the BAC.
type BACStruct struct {
	FetchInfo [MaxThreads]FetchComm
}
