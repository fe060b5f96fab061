// Package core wires the front-end together: physical memory, MMU,
// instruction cache, fetch-target queue, branch-address calculator, signal
// buffers, and the fetch unit. It implements the fetch unit's CPU-facing
// hooks and drives the global tick. The back-end stages are represented by
// a sink that captures what fetch delivers to decode and by injection
// methods that place squash, stall, and interrupt signals on the backward
// wires.
package core

import (
	"math/rand"

	"github.com/sarchlab/o3sim/insts"
	"github.com/sarchlab/o3sim/mem"
	"github.com/sarchlab/o3sim/timing/fetch"
	"github.com/sarchlab/o3sim/timing/frontend"
	"github.com/sarchlab/o3sim/timing/icache"
	"github.com/sarchlab/o3sim/timing/mmu"
	"github.com/sarchlab/o3sim/timing/timebuffer"
)

// Config aggregates the front-end component configurations.
type Config struct {
	Fetch  fetch.Config
	BAC    frontend.BACConfig
	MMU    mmu.Config
	Icache icache.Config

	FTQSize int
	MemSize uint64
}

// DefaultConfig returns a single-threaded front-end over 1 MiB of memory.
func DefaultConfig() Config {
	fcfg := fetch.DefaultConfig()
	bcfg := frontend.DefaultBACConfig()
	bcfg.NumThreads = fcfg.NumThreads
	bcfg.FetchTargetWidth = fcfg.FetchBufferSize
	return Config{
		Fetch:   fcfg,
		BAC:     bcfg,
		MMU:     mmu.DefaultConfig(),
		Icache:  icache.DefaultConfig(),
		FTQSize: 8,
		MemSize: 1 << 20,
	}
}

// Core owns the front-end components and the simulated clock.
type Core struct {
	cfg Config

	memory *mem.Memory
	mmu    *mmu.MMU
	icache *icache.Cache
	ftq    *frontend.FTQ
	bac    *frontend.BAC
	fetch  *fetch.Fetch

	backBuf     *timebuffer.TimeBuffer[fetch.TimeStruct]
	toDecodeBuf *timebuffer.TimeBuffer[fetch.FetchStruct]
	toBACBuf    *timebuffer.TimeBuffer[fetch.BACStruct]
	sinkWire    timebuffer.Wire[fetch.FetchStruct]

	cycle         uint64
	seqNum        fetch.InstSeqNum
	activeThreads []fetch.ThreadID
	inflight      [][]*fetch.DynInst

	stageActive bool
	wakeCount   uint64
	activity    bool
	idleCycles  uint64

	delivered     []*fetch.DynInst
	lastDelivered []*fetch.DynInst
}

// New builds and wires a front-end. All threads start active at PC 0.
func New(cfg Config, opts ...fetch.Option) *Core {
	c := &Core{
		cfg:      cfg,
		memory:   mem.NewMemory(cfg.MemSize),
		inflight: make([][]*fetch.DynInst, cfg.Fetch.NumThreads),
	}
	for tid := 0; tid < cfg.Fetch.NumThreads; tid++ {
		c.activeThreads = append(c.activeThreads, fetch.ThreadID(tid))
	}

	c.mmu = mmu.New(cfg.MMU)
	c.icache = icache.New(cfg.Icache, c.memory)
	c.ftq = frontend.NewFTQ(cfg.Fetch.NumThreads, cfg.FTQSize)
	c.bac = frontend.NewBAC(cfg.BAC, c.ftq)

	depth := max(
		cfg.Fetch.DecodeToFetchDelay,
		cfg.Fetch.CommitToFetchDelay,
		cfg.Fetch.IewToFetchDelay,
	)
	c.backBuf = timebuffer.New[fetch.TimeStruct](depth)
	c.toDecodeBuf = timebuffer.New[fetch.FetchStruct](1)
	c.toBACBuf = timebuffer.New[fetch.BACStruct](1)
	c.sinkWire = c.toDecodeBuf.Wire(0)

	c.fetch = fetch.New(c, cfg.Fetch, opts...)
	c.fetch.SetMMU(c.mmu)
	c.fetch.SetIcachePort(c.icache)
	c.fetch.SetAddressChecker(c.memory)
	c.fetch.SetFTQ(c.ftq)
	c.fetch.SetBAC(c.bac)
	c.fetch.SetBackendWires(
		c.backBuf.Wire(cfg.Fetch.DecodeToFetchDelay),
		c.backBuf.Wire(cfg.Fetch.CommitToFetchDelay),
		c.backBuf.Wire(cfg.Fetch.IewToFetchDelay),
	)
	c.fetch.SetToDecodeWire(c.toDecodeBuf.Wire(0))
	c.fetch.SetToBACWire(c.toBACBuf.Wire(0))

	c.icache.SetPort(c.fetch)
	c.bac.SetFromFetchWire(c.toBACBuf.Wire(1))

	return c
}

// LoadProgram places an instruction image at base, identity-maps its pages,
// and points the thread's PC at it.
func (c *Core) LoadProgram(tid fetch.ThreadID, base uint64, image []byte) {
	c.memory.LoadImage(base, image)
	c.mmu.MapIdentity(base, uint64(len(image)))
	c.fetch.SetPC(tid, insts.NewPCState(base))
	if c.cfg.Fetch.DecoupledFrontEnd {
		c.bac.Restart(tid, base)
	}
}

// Tick runs one global cycle: collaborators first, then fetch, then the
// signal buffers advance.
func (c *Core) Tick() {
	c.activity = false

	c.mmu.Tick()
	c.icache.Tick()
	if c.cfg.Fetch.DecoupledFrontEnd {
		c.bac.Tick()
	}

	c.fetch.Tick()

	out := c.sinkWire.Read()
	c.lastDelivered = c.lastDelivered[:0]
	for i := 0; i < out.Size; i++ {
		c.lastDelivered = append(c.lastDelivered, out.Insts[i])
		c.delivered = append(c.delivered, out.Insts[i])
	}

	c.backBuf.Advance()
	c.toDecodeBuf.Advance()
	c.toBACBuf.Advance()

	if !c.activity {
		c.idleCycles++
	}
	c.cycle++
}

// Run executes n cycles.
func (c *Core) Run(n uint64) {
	for i := uint64(0); i < n; i++ {
		c.Tick()
	}
}

// NextSeqNum allocates the next global instruction sequence number.
func (c *Core) NextSeqNum() fetch.InstSeqNum {
	c.seqNum++
	return c.seqNum
}

// AddInst registers a fetched instruction as in flight.
func (c *Core) AddInst(inst *fetch.DynInst) {
	c.inflight[inst.Tid] = append(c.inflight[inst.Tid], inst)
}

// RemoveInstsNotInROB drops every in-flight instruction of tid. The
// front-end harness has no ROB, so a commit-level squash clears the list.
func (c *Core) RemoveInstsNotInROB(tid fetch.ThreadID) {
	c.inflight[tid] = nil
}

// RemoveInstsUntil drops in-flight instructions of tid younger than seq.
func (c *Core) RemoveInstsUntil(seq fetch.InstSeqNum, tid fetch.ThreadID) {
	kept := c.inflight[tid][:0]
	for _, inst := range c.inflight[tid] {
		if inst.SeqNum <= seq {
			kept = append(kept, inst)
		}
	}
	c.inflight[tid] = kept
}

// WakeCPU records a wake request from a stage.
func (c *Core) WakeCPU() {
	c.wakeCount++
}

// ActivityThisCycle marks the current cycle non-idle.
func (c *Core) ActivityThisCycle() {
	c.activity = true
}

// ActivateStage records that the fetch stage went active.
func (c *Core) ActivateStage() {
	c.stageActive = true
}

// DeactivateStage records that the fetch stage went inactive.
func (c *Core) DeactivateStage() {
	c.stageActive = false
}

// CurCycle returns the current simulated cycle.
func (c *Core) CurCycle() uint64 {
	return c.cycle
}

// ActiveThreads returns the currently active thread ids.
func (c *Core) ActiveThreads() []fetch.ThreadID {
	return c.activeThreads
}

// DeactivateThread removes tid from the active set.
func (c *Core) DeactivateThread(tid fetch.ThreadID) {
	kept := c.activeThreads[:0]
	for _, t := range c.activeThreads {
		if t != tid {
			kept = append(kept, t)
		}
	}
	c.activeThreads = kept
}

// ActivateThread returns tid to the active set.
func (c *Core) ActivateThread(tid fetch.ThreadID) {
	for _, t := range c.activeThreads {
		if t == tid {
			return
		}
	}
	c.activeThreads = append(c.activeThreads, tid)
}

// InjectCommitSquash places a commit-level squash for tid on the backward
// wire. It arrives at fetch after the commit-to-fetch delay.
func (c *Core) InjectCommitSquash(tid fetch.ThreadID, pc *insts.PCState) {
	info := &c.backBuf.Access(0).CommitInfo[tid]
	info.Squash = true
	info.PC = pc.Clone()
}

// InjectDecodeSquash places a decode-level squash for tid on the backward
// wire.
func (c *Core) InjectDecodeSquash(tid fetch.ThreadID, seq fetch.InstSeqNum,
	squashInst *fetch.DynInst, nextPC *insts.PCState) {
	info := &c.backBuf.Access(0).DecodeInfo[tid]
	info.Squash = true
	info.DoneSeqNum = seq
	info.SquashInst = squashInst
	info.NextPC = nextPC.Clone()
}

// InjectDecodeBlock asserts decode back-pressure for tid.
func (c *Core) InjectDecodeBlock(tid fetch.ThreadID) {
	c.backBuf.Access(0).DecodeBlock[tid] = true
}

// InjectDecodeUnblock releases decode back-pressure for tid.
func (c *Core) InjectDecodeUnblock(tid fetch.ThreadID) {
	c.backBuf.Access(0).DecodeUnblock[tid] = true
}

// InjectInterrupt signals a pending interrupt from commit.
func (c *Core) InjectInterrupt() {
	c.backBuf.Access(0).CommitInfo[0].InterruptPending = true
}

// InjectClearInterrupt clears the pending interrupt.
func (c *Core) InjectClearInterrupt() {
	c.backBuf.Access(0).CommitInfo[0].ClearInterrupt = true
}

// InjectIewCounts reports issue-queue and load/store-queue occupancy for
// tid, feeding the SMT arbiter policies.
func (c *Core) InjectIewCounts(tid fetch.ThreadID, iqCount, lsqCount int) {
	info := &c.backBuf.Access(0).IewInfo[tid]
	info.IQCount = iqCount
	info.LdstqCount = lsqCount
}

// Fetch returns the fetch unit.
func (c *Core) Fetch() *fetch.Fetch {
	return c.fetch
}

// Memory returns the physical memory model.
func (c *Core) Memory() *mem.Memory {
	return c.memory
}

// MMU returns the translation collaborator.
func (c *Core) MMU() *mmu.MMU {
	return c.mmu
}

// Icache returns the instruction cache.
func (c *Core) Icache() *icache.Cache {
	return c.icache
}

// FTQ returns the fetch-target queue.
func (c *Core) FTQ() *frontend.FTQ {
	return c.ftq
}

// BAC returns the branch-address calculator.
func (c *Core) BAC() *frontend.BAC {
	return c.bac
}

// Delivered returns every instruction handed to decode so far.
func (c *Core) Delivered() []*fetch.DynInst {
	return c.delivered
}

// LastDelivered returns the instructions handed to decode on the most
// recent tick.
func (c *Core) LastDelivered() []*fetch.DynInst {
	return c.lastDelivered
}

// IdleCycles returns the number of ticks with no front-end activity.
func (c *Core) IdleCycles() uint64 {
	return c.idleCycles
}

// StageActive reports whether the fetch stage considers itself active.
func (c *Core) StageActive() bool {
	return c.stageActive
}

// NewSeededRNG is a convenience for deterministic runs.
func NewSeededRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
