// Package fetch implements the instruction fetch unit of an out-of-order,
// superscalar, SMT pipeline front-end. Each tick it ingests signals from
// the later stages, selects a thread, obtains and translates the next fetch
// address, issues timing instruction-cache accesses, decodes the returned
// bytes into micro-ops, and hands a bounded stream of dynamic instructions
// to decode. With the decoupled front-end enabled, it additionally walks
// the fetch-target queue to pre-translate and prefetch upcoming blocks.
package fetch

import (
	"math/rand"

	"github.com/sarchlab/o3sim/insts"
	"github.com/sarchlab/o3sim/timing/timebuffer"
)

type stageStatus int

const (
	stageInactive stageStatus = iota
	stageActive
)

type stalls struct {
	decode bool
	drain  bool
}

type pendingTrap struct {
	tid   ThreadID
	fault *Fault
}

// Fetch is the fetch stage. All mutation happens on the cooperative tick
// thread; completion callbacks from the MMU and the cache port are
// delivered on the same thread.
type Fetch struct {
	cpu CPU
	cfg Config

	mmu        MMU
	icachePort IcachePort
	ftq        FTQ
	bac        BAC
	addrCheck  AddressChecker

	// Per-thread state, indexed by ThreadID.
	fetchStatus          []ThreadStatus
	pc                   []*insts.PCState
	fetchOffset          []uint64
	macroop              []*insts.StaticInst
	delayedCommit        []bool
	memReq               []*Request
	fetchBuffer          [][]byte
	fetchBufferPC        []uint64
	fetchBufferValid     []bool
	stalls               []stalls
	lastIcacheStall      []uint64
	issuePipelinedIfetch []bool
	fetchQueue           [][]*DynInst
	decoder              []*insts.Decoder

	// Process-wide state.
	retryPkt                *Packet
	retryTid                ThreadID
	cacheBlocked            bool
	interruptPending        bool
	outstandingPrefetches   int
	outstandingTranslations int
	fetchesInProgress       map[uint64]struct{}
	priorityList            []ThreadID
	status                  stageStatus
	numInst                 int
	wroteToTimeBuffer       bool
	deferredTrap            *pendingTrap

	fromDecode timebuffer.Wire[TimeStruct]
	fromCommit timebuffer.Wire[TimeStruct]
	fromIEW    timebuffer.Wire[TimeStruct]
	toDecode   timebuffer.Wire[FetchStruct]
	toBAC      timebuffer.Wire[BACStruct]

	stats Statistics

	rng   *rand.Rand
	warnf func(format string, args ...any)
}

// New creates a fetch unit. Configuration violations panic; the unit is
// unusable until the collaborator setters have been called.
func New(cpu CPU, cfg Config, opts ...Option) *Fetch {
	cfg.validate()

	n := cfg.NumThreads
	f := &Fetch{
		cpu:                  cpu,
		cfg:                  cfg,
		fetchStatus:          make([]ThreadStatus, n),
		pc:                   make([]*insts.PCState, n),
		fetchOffset:          make([]uint64, n),
		macroop:              make([]*insts.StaticInst, n),
		delayedCommit:        make([]bool, n),
		memReq:               make([]*Request, n),
		fetchBuffer:          make([][]byte, n),
		fetchBufferPC:        make([]uint64, n),
		fetchBufferValid:     make([]bool, n),
		stalls:               make([]stalls, n),
		lastIcacheStall:      make([]uint64, n),
		issuePipelinedIfetch: make([]bool, n),
		fetchQueue:           make([][]*DynInst, n),
		decoder:              make([]*insts.Decoder, n),
		retryTid:             InvalidThreadID,
		fetchesInProgress:    make(map[uint64]struct{}),
		stats:                newStatistics(cfg.FetchWidth),
		rng:                  rand.New(rand.NewSource(1)),
		warnf:                defaultWarnf,
	}
	for tid := 0; tid < n; tid++ {
		f.fetchStatus[tid] = Running
		f.pc[tid] = insts.NewPCState(0)
		f.fetchBuffer[tid] = make([]byte, cfg.FetchBufferSize)
		f.decoder[tid] = insts.NewDecoder()
		f.priorityList = append(f.priorityList, ThreadID(tid))
	}

	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetMMU connects the translation collaborator.
func (f *Fetch) SetMMU(mmu MMU) { f.mmu = mmu }

// SetIcachePort connects the instruction-cache timing port.
func (f *Fetch) SetIcachePort(port IcachePort) { f.icachePort = port }

// SetAddressChecker connects the physical memory map.
func (f *Fetch) SetAddressChecker(c AddressChecker) { f.addrCheck = c }

// SetFTQ connects the fetch-target queue (decoupled front-end only).
func (f *Fetch) SetFTQ(ftq FTQ) { f.ftq = ftq }

// SetBAC connects the branch-address calculator.
func (f *Fetch) SetBAC(bac BAC) { f.bac = bac }

// SetBackendWires connects the delayed signal wires from the later stages.
func (f *Fetch) SetBackendWires(fromDecode, fromCommit, fromIEW timebuffer.Wire[TimeStruct]) {
	f.fromDecode = fromDecode
	f.fromCommit = fromCommit
	f.fromIEW = fromIEW
}

// SetToDecodeWire connects the instruction wire toward decode.
func (f *Fetch) SetToDecodeWire(w timebuffer.Wire[FetchStruct]) { f.toDecode = w }

// SetToBACWire connects the resteer wire toward the BAC.
func (f *Fetch) SetToBACWire(w timebuffer.Wire[BACStruct]) { f.toBAC = w }

// SetPC positions a thread's architectural PC, e.g. at program load.
func (f *Fetch) SetPC(tid ThreadID, pc *insts.PCState) {
	f.pc[tid] = pc.Clone()
}

// PC returns the thread's current architectural PC state.
func (f *Fetch) PC(tid ThreadID) *insts.PCState {
	return f.pc[tid]
}

// Status returns the thread's FSM state.
func (f *Fetch) Status(tid ThreadID) ThreadStatus {
	return f.fetchStatus[tid]
}

// Stats exposes the counters for reporting.
func (f *Fetch) Stats() *Statistics {
	return &f.stats
}

// FetchQueueLen returns the number of decoded instructions awaiting
// handoff to decode for tid.
func (f *Fetch) FetchQueueLen(tid ThreadID) int {
	return len(f.fetchQueue[tid])
}

// CacheBlocked reports whether a demand packet is awaiting a cache retry.
func (f *Fetch) CacheBlocked() bool {
	return f.cacheBlocked
}

// OutstandingPrefetches returns the prefetch semaphore's current value.
func (f *Fetch) OutstandingPrefetches() int {
	return f.outstandingPrefetches
}

// DrainStall asserts the drain stall for tid; the thread blocks once its
// outstanding accesses settle.
func (f *Fetch) DrainStall(tid ThreadID) {
	f.stalls[tid].drain = true
}

// ClearDrainStall releases the drain stall for tid.
func (f *Fetch) ClearDrainStall(tid ThreadID) {
	f.stalls[tid].drain = false
}

// WakeFromQuiesce resumes a thread halted by a quiesce instruction.
func (f *Fetch) WakeFromQuiesce(tid ThreadID) {
	if f.fetchStatus[tid] == QuiescePending {
		f.fetchStatus[tid] = Running
	}
}

func (f *Fetch) fetchBufferAlignPC(addr uint64) uint64 {
	return addr &^ (f.cfg.FetchBufferSize - 1)
}

func (f *Fetch) cacheBlockAlignPC(addr uint64) uint64 {
	return addr &^ (f.cfg.CacheBlkSize - 1)
}

func (f *Fetch) isDecoupledFrontEnd() bool {
	return f.cfg.DecoupledFrontEnd
}

// checkStall reports whether tid must hold in Blocked.
func (f *Fetch) checkStall(tid ThreadID) bool {
	return f.stalls[tid].drain
}

// updateFetchStatus recomputes the stage-level active flag from the
// per-thread states and notifies the CPU on transitions.
func (f *Fetch) updateFetchStatus() {
	for _, tid := range f.cpu.ActiveThreads() {
		switch f.fetchStatus[tid] {
		case Running, Squashing, IcacheAccessComplete:
			if f.status == stageInactive {
				f.cpu.ActivateStage()
			}
			f.status = stageActive
			return
		}
	}
	if f.status == stageActive {
		f.cpu.DeactivateStage()
	}
	f.status = stageInactive
}

// profileStall attributes one stall cycle for tid to exactly one reason.
func (f *Fetch) profileStall(tid ThreadID) {
	if f.stalls[tid].drain {
		f.stats.PendingDrainCycles++
		return
	}
	if len(f.cpu.ActiveThreads()) == 0 {
		f.stats.NoActiveThreadStallCycles++
		return
	}
	switch f.fetchStatus[tid] {
	case Blocked:
		f.stats.BlockedCycles++
	case Squashing:
		f.stats.SquashCycles++
	case IcacheWaitResponse:
		f.stats.IcacheStallCycles++
	case ItlbWait:
		f.stats.TlbCycles++
	case TrapPending:
		f.stats.PendingTrapStallCycles++
	case QuiescePending:
		f.stats.PendingQuiesceStallCycles++
	case IcacheWaitRetry:
		f.stats.IcacheWaitRetryStallCycles++
	case FTQEmpty:
		f.stats.FtqStallCycles++
	case Idle:
		f.stats.IdleCycles++
	default:
		f.stats.MiscStallCycles++
	}
}
