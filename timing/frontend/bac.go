package frontend

import (
	"github.com/sarchlab/o3sim/insts"
	"github.com/sarchlab/o3sim/timing/fetch"
	"github.com/sarchlab/o3sim/timing/timebuffer"
)

// BACConfig holds the branch-address calculator's structural parameters.
type BACConfig struct {
	NumThreads int

	// FetchTargetWidth is the byte span of each generated target. It must
	// match the fetch unit's fetch buffer size.
	FetchTargetWidth uint64

	// InsertWidth bounds how many targets a thread gains per cycle.
	InsertWidth int
}

// DefaultBACConfig returns a single-threaded calculator producing
// fetch-buffer-sized targets, two per cycle.
func DefaultBACConfig() BACConfig {
	return BACConfig{
		NumThreads:       1,
		FetchTargetWidth: 16,
		InsertWidth:      2,
	}
}

// BAC is the branch-address calculator. It runs ahead of fetch, filling the
// fetch-target queue with sequential next-line targets, and restarts its
// generation stream when fetch signals a resteer. It also serves as fetch's
// in-loop predictor through UpdatePC, using a backward-taken heuristic for
// direct branches.
type BAC struct {
	cfg BACConfig

	ftq       *FTQ
	fromFetch timebuffer.Wire[fetch.BACStruct]
	hasWire   bool

	// genPC is the address the next generated target starts at. The first
	// target after a restart begins mid-block when the resteer PC does.
	genPC      []uint64
	restarting []bool
}

// NewBAC builds a calculator feeding ftq. All threads start generating at
// address zero.
func NewBAC(cfg BACConfig, ftq *FTQ) *BAC {
	b := &BAC{
		cfg:        cfg,
		ftq:        ftq,
		genPC:      make([]uint64, cfg.NumThreads),
		restarting: make([]bool, cfg.NumThreads),
	}
	for tid := range b.restarting {
		b.restarting[tid] = true
	}
	return b
}

// SetFromFetchWire attaches the resteer signal wire written by the fetch
// unit.
func (b *BAC) SetFromFetchWire(w timebuffer.Wire[fetch.BACStruct]) {
	b.fromFetch = w
	b.hasWire = true
}

// Restart repositions a thread's generation stream, dropping its queued
// targets.
func (b *BAC) Restart(tid fetch.ThreadID, addr uint64) {
	b.ftq.Invalidate(tid)
	b.genPC[tid] = addr
	b.restarting[tid] = true
}

// Tick consumes resteer signals and tops up each thread's queue.
func (b *BAC) Tick() {
	if b.hasWire {
		in := b.fromFetch.Read()
		for tid := 0; tid < b.cfg.NumThreads; tid++ {
			info := in.FetchInfo[tid]
			if info.Squash && info.NextPC != nil {
				b.Restart(fetch.ThreadID(tid), info.NextPC.InstAddr())
			}
		}
	}

	for tid := 0; tid < b.cfg.NumThreads; tid++ {
		b.fill(fetch.ThreadID(tid))
	}
}

func (b *BAC) fill(tid fetch.ThreadID) {
	for i := 0; i < b.cfg.InsertWidth; i++ {
		if b.ftq.IsFull(tid) {
			return
		}
		ft := NewFetchTarget(b.genPC[tid], b.cfg.FetchTargetWidth, !b.restarting[tid])
		if !b.ftq.Enqueue(tid, ft) {
			return
		}
		b.restarting[tid] = false
		b.genPC[tid] = ft.BlkAddr() + b.cfg.FetchTargetWidth
	}
}

// UpdatePC advances nextPC past inst and reports whether a taken branch was
// predicted. Micro-ops advance within their macro-op; at macro boundaries
// direct branches follow the backward-taken, forward-not-taken rule and
// everything else falls through.
func (b *BAC) UpdatePC(inst *fetch.DynInst, nextPC *insts.PCState, ft fetch.FetchTarget) bool {
	si := inst.StaticInst
	if inst.Macroop != nil && !si.IsLastMicroop {
		nextPC.UAdvance()
		return false
	}

	if si.IsControl && si.IsDirectBranch {
		target := si.BranchTarget(nextPC.InstAddr())
		if target < nextPC.InstAddr() {
			nextPC.Set(target)
			return true
		}
	}

	nextPC.Advance()
	return false
}
