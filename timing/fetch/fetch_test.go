package fetch_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/o3sim/insts"
	"github.com/sarchlab/o3sim/timing/fetch"
)

var _ = Describe("Fetch", func() {
	var h *harness

	Context("with the coupled front-end", func() {
		BeforeEach(func() {
			h = newHarness(fetch.DefaultConfig())
		})

		It("fetches, decodes, and forwards a straight-line block", func() {
			out := h.tick()
			Expect(out).To(BeEmpty())
			Expect(h.port.sent).To(HaveLen(1))
			Expect(h.port.sent[0].Req.Vaddr).To(Equal(uint64(0)))
			Expect(h.f.Status(0)).To(Equal(fetch.IcacheWaitResponse))
			Expect(h.f.Stats().CacheLines).To(Equal(uint64(1)))
			Expect(h.f.Stats().IcacheStallCycles).To(Equal(uint64(1)))

			h.respond(h.port.sent[0], 1, aluWord, aluWord, aluWord, aluWord)
			Expect(h.f.Status(0)).To(Equal(fetch.IcacheAccessComplete))
			Expect(h.cpu.wakes).To(Equal(1))
			Expect(h.f.Stats().DemandMiss).To(Equal(uint64(1)))

			out = h.tick()
			Expect(out).To(HaveLen(4))
			for i, inst := range out {
				Expect(inst.SeqNum).To(Equal(fetch.InstSeqNum(i + 1)))
				Expect(inst.PC.InstAddr()).To(Equal(uint64(i * 4)))
			}
			Expect(h.cpu.added).To(HaveLen(4))

			// The next block's demand is issued in the same cycle the
			// current one drains.
			Expect(h.port.sent).To(HaveLen(2))
			Expect(h.port.sent[1].Req.Vaddr).To(Equal(uint64(0x10)))
			Expect(h.f.Status(0)).To(Equal(fetch.IcacheWaitResponse))
		})

		It("follows a predicted backward branch and refetches the loop body", func() {
			h.tick()
			h.respond(h.port.sent[0], 0, aluWord, aluWord, aluWord, branchWord(-12))
			Expect(h.f.Stats().DemandHit).To(Equal(uint64(1)))

			out := h.tick()
			Expect(out).To(HaveLen(4))
			Expect(h.f.Stats().PredictedBranches).To(Equal(uint64(1)))
			Expect(out[3].PC.InstAddr()).To(Equal(uint64(12)))
			Expect(out[3].PredPC.InstAddr()).To(Equal(uint64(0)))
			Expect(h.f.PC(0).InstAddr()).To(Equal(uint64(0)))

			// The loop body is still in the fetch buffer.
			out = h.tick()
			Expect(out).To(HaveLen(4))
			Expect(out[0].PC.InstAddr()).To(Equal(uint64(0)))
			Expect(h.f.Stats().PredictedBranches).To(Equal(uint64(2)))
			Expect(h.port.sent).To(HaveLen(1))
		})

		It("halts at a quiesce instruction until woken", func() {
			h.tick()
			h.respond(h.port.sent[0], 0, quiesceWord, aluWord, aluWord, aluWord)

			out := h.tick()
			Expect(out).To(HaveLen(1))
			Expect(h.f.Status(0)).To(Equal(fetch.QuiescePending))

			h.tick()
			Expect(h.f.Stats().PendingQuiesceStallCycles).To(Equal(uint64(1)))

			h.f.WakeFromQuiesce(0)
			Expect(h.f.Status(0)).To(Equal(fetch.Running))

			out = h.tick()
			Expect(out).To(HaveLen(3))
			Expect(out[0].PC.InstAddr()).To(Equal(uint64(4)))
		})

		It("delivers a fault-carrying placeholder on a translation fault", func() {
			h.mmu.fault = fetch.NewPageFault(0)

			out := h.tick()
			Expect(out).To(HaveLen(1))
			Expect(out[0].NotAnInst).To(BeTrue())
			Expect(out[0].Fault).NotTo(BeNil())
			Expect(out[0].Fault.Name).To(Equal("page fault"))
			Expect(h.f.Status(0)).To(Equal(fetch.TrapPending))
			Expect(h.cpu.added).To(BeEmpty(), "placeholders are not tracked")
			Expect(h.cpu.wakes).To(Equal(1))

			h.tick()
			Expect(h.f.Stats().PendingTrapStallCycles).To(Equal(uint64(1)))

			// Commit handles the fault and squashes to the trap vector.
			h.mmu.fault = nil
			h.back.Access(0).CommitInfo[0] = fetch.CommitComm{
				Squash: true,
				PC:     insts.NewPCState(0x40),
			}
			h.tick()
			h.tick()
			Expect(h.f.Status(0)).To(Equal(fetch.Squashing))

			h.tick()
			Expect(h.port.sent).To(HaveLen(1))
			Expect(h.port.sent[0].Req.Vaddr).To(Equal(uint64(0x40)))
		})

		It("retains the demand packet across cache back-pressure", func() {
			h.port.accept = false

			h.tick()
			Expect(h.f.Status(0)).To(Equal(fetch.IcacheWaitRetry))
			Expect(h.f.CacheBlocked()).To(BeTrue())
			Expect(h.port.sent).To(BeEmpty())

			h.tick()
			Expect(h.f.Stats().IcacheWaitRetryStallCycles).To(Equal(uint64(1)))

			h.port.accept = true
			h.f.RecvReqRetry()
			Expect(h.port.sent).To(HaveLen(1))
			Expect(h.f.Status(0)).To(Equal(fetch.IcacheWaitResponse))
			Expect(h.f.CacheBlocked()).To(BeFalse())

			h.respond(h.port.sent[0], 1, aluWord, aluWord, aluWord, aluWord)
			Expect(h.tick()).To(HaveLen(4))
		})

		It("stops fetching at an address outside physical memory", func() {
			h.checker.ok = false

			h.tick()
			Expect(h.f.Status(0)).To(Equal(fetch.NoGoodAddr))
			Expect(h.port.sent).To(BeEmpty())
			Expect(h.warns).To(HaveLen(1))
		})

		It("redirects on a commit squash and drops the stale response", func() {
			h.tick()
			h.respond(h.port.sent[0], 1, aluWord, aluWord, aluWord, aluWord)
			h.tick()
			Expect(h.port.sent).To(HaveLen(2))

			h.back.Access(0).CommitInfo[0] = fetch.CommitComm{
				Squash: true,
				PC:     insts.NewPCState(0x40),
			}
			h.tick()
			h.tick()
			Expect(h.f.Status(0)).To(Equal(fetch.Squashing))
			Expect(h.f.PC(0).InstAddr()).To(Equal(uint64(0x40)))
			Expect(h.cpu.removedNotInROB).To(Equal([]fetch.ThreadID{0}))
			Expect(h.f.Stats().SquashCycles).To(Equal(uint64(1)))

			// The pre-squash demand response no longer has a home.
			h.respond(h.port.sent[1], 1, aluWord, aluWord, aluWord, aluWord)
			Expect(h.f.Stats().IcacheSquashes).To(Equal(uint64(1)))

			h.tick()
			Expect(h.f.Status(0)).To(Equal(fetch.IcacheWaitResponse))
			Expect(h.port.sent).To(HaveLen(3))
			Expect(h.port.sent[2].Req.Vaddr).To(Equal(uint64(0x40)))
		})

		It("redirects on a decode squash and drops younger instructions", func() {
			h.tick()
			h.respond(h.port.sent[0], 1, aluWord, aluWord, aluWord, aluWord)
			h.tick()

			h.back.Access(0).DecodeInfo[0] = fetch.DecodeComm{
				Squash:     true,
				DoneSeqNum: 2,
				NextPC:     insts.NewPCState(0x8),
			}
			h.tick()
			h.tick()
			Expect(h.f.Status(0)).To(Equal(fetch.Squashing))
			Expect(h.f.PC(0).InstAddr()).To(Equal(uint64(0x8)))
			Expect(h.cpu.removedUntil).To(Equal([]fetch.InstSeqNum{2}))
		})

		It("keeps fetching into the queue while decode is blocked", func() {
			h.back.Access(0).DecodeBlock[0] = true
			h.tick()
			h.respond(h.port.sent[0], 1, aluWord, aluWord, aluWord, aluWord)

			out := h.tick()
			Expect(out).To(BeEmpty())
			Expect(h.f.FetchQueueLen(0)).To(Equal(4))

			out = h.tick()
			Expect(out).To(BeEmpty())

			h.back.Access(0).DecodeUnblock[0] = true
			h.tick()
			out = h.tick()
			Expect(out).To(HaveLen(4))
			Expect(h.f.FetchQueueLen(0)).To(Equal(0))
		})

		It("blocks for a drain and resumes when it clears", func() {
			h.f.DrainStall(0)

			h.tick()
			Expect(h.f.Status(0)).To(Equal(fetch.Blocked))
			Expect(h.f.Stats().PendingDrainCycles).To(Equal(uint64(1)))
			Expect(h.port.sent).To(BeEmpty())

			h.f.ClearDrainStall(0)
			h.tick()
			Expect(h.f.Status(0)).To(Equal(fetch.IcacheWaitResponse))
			Expect(h.port.sent).To(HaveLen(1))
		})
	})

	Context("in full-system mode", func() {
		BeforeEach(func() {
			cfg := fetch.DefaultConfig()
			cfg.FullSystem = true
			h = newHarness(cfg)
		})

		It("pauses fetch while an interrupt is pending", func() {
			h.back.Access(0).CommitInfo[0].InterruptPending = true
			h.tick()
			h.respond(h.port.sent[0], 1, aluWord, aluWord, aluWord, aluWord)

			Expect(h.tick()).To(BeEmpty())
			Expect(h.tick()).To(BeEmpty())

			h.back.Access(0).CommitInfo[0].ClearInterrupt = true
			Expect(h.tick()).To(BeEmpty())
			Expect(h.tick()).To(HaveLen(4))
		})
	})

	Context("with multiple hardware threads", func() {
		It("round-robins demand fetches across threads", func() {
			cfg := fetch.DefaultConfig()
			cfg.NumThreads = 2
			h = newHarness(cfg)

			h.tick()
			Expect(h.port.sent).To(HaveLen(1))
			Expect(h.port.sent[0].Req.Tid).To(Equal(fetch.ThreadID(0)))

			h.tick()
			Expect(h.port.sent).To(HaveLen(2))
			Expect(h.port.sent[1].Req.Tid).To(Equal(fetch.ThreadID(1)))

			h.respond(h.port.sent[0], 1, aluWord, aluWord, aluWord, aluWord)
			h.respond(h.port.sent[1], 1, aluWord, aluWord, aluWord, aluWord)

			out := h.tick()
			Expect(out).To(HaveLen(4))
			for _, inst := range out {
				Expect(inst.Tid).To(Equal(fetch.ThreadID(0)))
			}
			out = h.tick()
			Expect(out).To(HaveLen(4))
			for _, inst := range out {
				Expect(inst.Tid).To(Equal(fetch.ThreadID(1)))
			}
		})

		It("prefers the thread with the smallest issue queue", func() {
			cfg := fetch.DefaultConfig()
			cfg.NumThreads = 3
			cfg.SMTFetchPolicy = fetch.IQCount
			h = newHarness(cfg)

			h.back.Access(0).IewInfo[1].IQCount = 5
			h.back.Access(0).IewInfo[2].IQCount = 2

			h.tick()
			Expect(h.port.sent[0].Req.Tid).To(Equal(fetch.ThreadID(0)),
				"zero counts tie toward the lowest thread")

			h.tick()
			Expect(h.port.sent).To(HaveLen(2))
			Expect(h.port.sent[1].Req.Tid).To(Equal(fetch.ThreadID(2)))
		})
	})

	Context("with the decoupled front-end", func() {
		BeforeEach(func() {
			cfg := fetch.DefaultConfig()
			cfg.DecoupledFrontEnd = true
			h = newHarness(cfg)
		})

		It("stalls on an empty fetch-target queue", func() {
			h.tick()
			Expect(h.f.Status(0)).To(Equal(fetch.FTQEmpty))
			Expect(h.f.Stats().FtqStallCycles).To(Equal(uint64(1)))
			Expect(h.port.sent).To(BeEmpty())
		})

		It("prefetches ahead of the demand stream", func() {
			h.tick()
			h.bac.Tick()

			h.tick()
			Expect(h.port.sent).To(HaveLen(2), "demand plus one prefetch")
			Expect(h.port.sent[0].Req.Vaddr).To(Equal(uint64(0x00)))
			Expect(h.port.sent[1].Req.Vaddr).To(Equal(uint64(0x10)))
			Expect(h.f.Stats().PfIssued).To(Equal(uint64(1)))
			Expect(h.f.OutstandingPrefetches()).To(Equal(1))

			h.respond(h.port.sent[0], 1, aluWord, aluWord, aluWord, aluWord)
			h.respond(h.port.sent[1], 1, aluWord, aluWord, aluWord, aluWord)
			Expect(h.f.Stats().PfReceived).To(Equal(uint64(1)))
			Expect(h.f.OutstandingPrefetches()).To(Equal(0))

			out := h.tick()
			Expect(out).To(HaveLen(4))

			// Decode consumed the head target; the prefetched one now
			// serves the next demand without translation.
			Expect(h.f.Stats().FtReadyToFetch).To(Equal(uint64(1)))
			Expect(h.port.sent).To(HaveLen(3))
			Expect(h.port.sent[2].Req.Vaddr).To(Equal(uint64(0x10)))
			Expect(h.f.Status(0)).To(Equal(fetch.IcacheWaitResponse))
		})

		It("charges squashed prefetches to the squashing thread", func() {
			h.tick()
			h.bac.Tick()
			h.tick()
			Expect(h.f.OutstandingPrefetches()).To(Equal(1))

			h.back.Access(0).CommitInfo[0] = fetch.CommitComm{
				Squash: true,
				PC:     insts.NewPCState(0x100),
			}
			h.tick()
			h.tick()
			Expect(h.f.Stats().PfSquashed).To(Equal(uint64(1)))
			Expect(h.f.OutstandingPrefetches()).To(Equal(0))
			Expect(h.f.Status(0)).To(Equal(fetch.Squashing))
		})
	})
})

var _ = Describe("Config", func() {
	newWith := func(mutate func(*fetch.Config)) func() {
		return func() {
			cfg := fetch.DefaultConfig()
			mutate(&cfg)
			fetch.New(&fakeCPU{}, cfg)
		}
	}

	It("rejects widths beyond the compiled limits", func() {
		Expect(newWith(func(c *fetch.Config) { c.FetchWidth = 13 })).To(Panic())
		Expect(newWith(func(c *fetch.Config) { c.DecodeWidth = 13 })).To(Panic())
		Expect(newWith(func(c *fetch.Config) { c.NumThreads = 5 })).To(Panic())
	})

	It("rejects fetch buffers that do not tile the cache block", func() {
		Expect(newWith(func(c *fetch.Config) { c.FetchBufferSize = 128 })).To(Panic())
		Expect(newWith(func(c *fetch.Config) { c.FetchBufferSize = 24 })).To(Panic())
	})

	It("rejects unsupported front-end combinations", func() {
		Expect(newWith(func(c *fetch.Config) {
			c.SMTFetchPolicy = fetch.Branch
		})).To(Panic())
		Expect(newWith(func(c *fetch.Config) {
			c.DecoupledFrontEnd = true
			c.SMTNumFetchingThreads = 2
		})).To(Panic())
	})
})
