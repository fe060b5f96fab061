package fetch

import "github.com/sarchlab/o3sim/insts"

// FTState is the lifecycle state of a fetch target.
type FTState int

const (
	FTInitial FTState = iota
	FTTranslationInProgress
	FTTranslationReady
	FTTranslationFailed
	FTPrefetchInProgress
	FTReadyToFetch
)

func (s FTState) String() string {
	switch s {
	case FTInitial:
		return "Initial"
	case FTTranslationInProgress:
		return "TranslationInProgress"
	case FTTranslationReady:
		return "TranslationReady"
	case FTTranslationFailed:
		return "TranslationFailed"
	case FTPrefetchInProgress:
		return "PrefetchInProgress"
	case FTReadyToFetch:
		return "ReadyToFetch"
	}
	return "Unknown"
}

// FetchTarget is one FTQ entry: a cache-block-sized PC range the front-end
// intends to fetch, with per-target translation and prefetch status. The
// entry owns its attached request until PopReq.
type FetchTarget interface {
	State() FTState
	StartAddress() uint64
	BlkAddr() uint64
	Paddr() uint64
	HasPaddr() bool
	InRange(addr uint64) bool
	InRangeAligned(addr, align uint64) bool
	IsFallThrough() bool
	RequiresTranslation() bool
	TranslationReady() bool
	IsValid() bool
	Fault() *Fault
	Req() *Request
	PopReq() *Request
	MarkReady()
	PrefetchIssued()
	StartTranslation(req *Request)
	FinishTranslation(fault *Fault, req *Request, prefetch bool)
}

// FTQ is the fetch-target queue, one bounded queue per thread.
type FTQ interface {
	IsHeadReady(tid ThreadID) bool
	IsEmpty(tid ThreadID) bool
	IsValid(tid ThreadID) bool
	Size(tid ThreadID) int
	ReadHead(tid ThreadID) FetchTarget
	ReadNextHead(tid ThreadID) FetchTarget
	FindAfterHead(tid ThreadID, pred func(FetchTarget) bool) FetchTarget
	UpdateHead(tid ThreadID) bool
	Invalidate(tid ThreadID)
}

// BAC is the branch-address calculator. UpdatePC advances nextPC past inst,
// applying any prediction, and reports whether a taken branch was predicted.
// ft is the fetch target the instruction was fetched under, nil when the
// decoupled front-end is off.
type BAC interface {
	UpdatePC(inst *DynInst, nextPC *insts.PCState, ft FetchTarget) bool
}

// TranslationCallback receives the outcome of a timing translation. It
// fires exactly once, possibly synchronously from within TranslateTiming.
type TranslationCallback func(fault *Fault, req *Request)

// MMU translates virtual fetch addresses.
type MMU interface {
	TranslateTiming(req *Request, tid ThreadID, done TranslationCallback)
}

// IcachePort is the timing port into the instruction cache. SendTimingReq
// returns false on back-pressure, in which case the caller retains the
// packet and must wait for a retry callback.
type IcachePort interface {
	SendTimingReq(pkt *Packet) bool
}

// AddressChecker validates physical addresses against the memory map.
type AddressChecker interface {
	IsMemAddr(paddr uint64) bool
}

// CPU is the surface the fetch unit needs from the owning core: sequence
// numbers, the in-flight instruction list, activity tracking, and the
// clock.
type CPU interface {
	NextSeqNum() InstSeqNum
	AddInst(inst *DynInst)
	RemoveInstsNotInROB(tid ThreadID)
	RemoveInstsUntil(seq InstSeqNum, tid ThreadID)
	WakeCPU()
	ActivityThisCycle()
	ActivateStage()
	DeactivateStage()
	CurCycle() uint64
	ActiveThreads() []ThreadID
}
