package frontend_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/o3sim/insts"
	"github.com/sarchlab/o3sim/timing/fetch"
	"github.com/sarchlab/o3sim/timing/frontend"
	"github.com/sarchlab/o3sim/timing/timebuffer"
)

func TestFrontend(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Frontend Suite")
}

var _ = Describe("FetchTarget", func() {
	It("covers the block containing its start address", func() {
		ft := frontend.NewFetchTarget(0x108, 16, true)
		Expect(ft.StartAddress()).To(Equal(uint64(0x108)))
		Expect(ft.BlkAddr()).To(Equal(uint64(0x100)))

		Expect(ft.InRange(0x108)).To(BeTrue())
		Expect(ft.InRange(0x10C)).To(BeTrue())
		Expect(ft.InRange(0x104)).To(BeFalse(), "before the start address")
		Expect(ft.InRange(0x110)).To(BeFalse(), "past the block")
	})

	It("checks aligned windows against the whole block", func() {
		ft := frontend.NewFetchTarget(0x108, 16, true)
		Expect(ft.InRangeAligned(0x100, 16)).To(BeTrue())
		Expect(ft.InRangeAligned(0x110, 16)).To(BeFalse())
	})

	It("starts in the initial state requiring translation", func() {
		ft := frontend.NewFetchTarget(0x100, 16, true)
		Expect(ft.State()).To(Equal(fetch.FTInitial))
		Expect(ft.RequiresTranslation()).To(BeTrue())
		Expect(ft.TranslationReady()).To(BeFalse())
		Expect(ft.HasPaddr()).To(BeFalse())
	})

	Describe("translation lifecycle", func() {
		var (
			ft  *frontend.FetchTarget
			req *fetch.Request
		)

		BeforeEach(func() {
			ft = frontend.NewFetchTarget(0x100, 16, true)
			req = fetch.NewRequest(0x100, 16, 0, 0x100)
			ft.StartTranslation(req)
		})

		It("tracks the in-flight translation", func() {
			Expect(ft.State()).To(Equal(fetch.FTTranslationInProgress))
			Expect(ft.Req()).To(BeIdenticalTo(req))
			Expect(ft.RequiresTranslation()).To(BeFalse())
		})

		It("captures the physical address on a prefetch-path completion", func() {
			req.SetPaddr(0x5100)
			ft.FinishTranslation(nil, req, true)

			Expect(ft.State()).To(Equal(fetch.FTTranslationReady))
			Expect(ft.TranslationReady()).To(BeTrue())
			Expect(ft.HasPaddr()).To(BeTrue())
			Expect(ft.Paddr()).To(Equal(uint64(0x5100)))
			Expect(ft.Req()).To(BeIdenticalTo(req), "prefetch path keeps the request")
		})

		It("releases the request on a demand-path completion", func() {
			req.SetPaddr(0x5100)
			ft.FinishTranslation(nil, req, false)

			Expect(ft.State()).To(Equal(fetch.FTTranslationReady))
			Expect(ft.Req()).To(BeNil())
		})

		It("records a fault", func() {
			fault := fetch.NewPageFault(0x100)
			ft.FinishTranslation(fault, req, true)

			Expect(ft.State()).To(Equal(fetch.FTTranslationFailed))
			Expect(ft.Fault()).To(BeIdenticalTo(fault))
			Expect(ft.Req()).To(BeNil())
		})
	})

	It("moves through the prefetch states", func() {
		ft := frontend.NewFetchTarget(0x100, 16, true)
		req := fetch.NewRequest(0x100, 16, 0, 0x100)
		req.SetPaddr(0x100)
		ft.StartTranslation(req)
		ft.FinishTranslation(nil, req, true)

		ft.PrefetchIssued()
		Expect(ft.State()).To(Equal(fetch.FTPrefetchInProgress))

		ft.MarkReady()
		Expect(ft.State()).To(Equal(fetch.FTReadyToFetch))
	})

	It("detaches the request exactly once", func() {
		ft := frontend.NewFetchTarget(0x100, 16, true)
		req := fetch.NewRequest(0x100, 16, 0, 0x100)
		ft.StartTranslation(req)

		Expect(ft.PopReq()).To(BeIdenticalTo(req))
		Expect(ft.Req()).To(BeNil())
		Expect(ft.PopReq()).To(BeNil())
	})
})

var _ = Describe("FTQ", func() {
	var q *frontend.FTQ

	BeforeEach(func() {
		q = frontend.NewFTQ(2, 4)
	})

	target := func(addr uint64) *frontend.FetchTarget {
		return frontend.NewFetchTarget(addr, 16, true)
	}

	It("starts empty and invalid", func() {
		Expect(q.IsEmpty(0)).To(BeTrue())
		Expect(q.IsValid(0)).To(BeFalse())
		Expect(q.IsHeadReady(0)).To(BeFalse())
		Expect(q.ReadHead(0)).To(BeNil())
	})

	It("serves the head after an enqueue", func() {
		ft := target(0x100)
		Expect(q.Enqueue(0, ft)).To(BeTrue())

		Expect(q.IsHeadReady(0)).To(BeTrue())
		Expect(q.ReadHead(0)).To(BeIdenticalTo(ft))
		Expect(q.Size(0)).To(Equal(1))
	})

	It("keeps threads independent", func() {
		Expect(q.Enqueue(0, target(0x100))).To(BeTrue())
		Expect(q.IsHeadReady(1)).To(BeFalse())
		Expect(q.Size(1)).To(Equal(0))
	})

	It("rejects enqueues at capacity", func() {
		for i := 0; i < 4; i++ {
			Expect(q.Enqueue(0, target(uint64(i)*16))).To(BeTrue())
		}
		Expect(q.IsFull(0)).To(BeTrue())
		Expect(q.Enqueue(0, target(0x400))).To(BeFalse())
	})

	It("exposes the entry past the head", func() {
		first := target(0x100)
		second := target(0x110)
		q.Enqueue(0, first)
		Expect(q.ReadNextHead(0)).To(BeNil())

		q.Enqueue(0, second)
		Expect(q.ReadNextHead(0)).To(BeIdenticalTo(second))
	})

	It("finds entries past the head by predicate", func() {
		q.Enqueue(0, target(0x100))
		q.Enqueue(0, target(0x110))
		q.Enqueue(0, target(0x120))

		found := q.FindAfterHead(0, func(ft fetch.FetchTarget) bool {
			return ft.StartAddress() == 0x120
		})
		Expect(found).NotTo(BeNil())
		Expect(found.StartAddress()).To(Equal(uint64(0x120)))

		none := q.FindAfterHead(0, func(ft fetch.FetchTarget) bool {
			return ft.StartAddress() == 0x100
		})
		Expect(none).To(BeNil(), "the head itself is not searched")
	})

	It("retires the head in order", func() {
		first := target(0x100)
		second := target(0x110)
		q.Enqueue(0, first)
		q.Enqueue(0, second)

		Expect(q.UpdateHead(0)).To(BeTrue())
		Expect(first.IsValid()).To(BeFalse())
		Expect(q.ReadHead(0)).To(BeIdenticalTo(second))

		Expect(q.UpdateHead(0)).To(BeTrue())
		Expect(q.UpdateHead(0)).To(BeFalse(), "nothing left to retire")
	})

	It("invalidates detached entries on a squash", func() {
		first := target(0x100)
		second := target(0x110)
		q.Enqueue(0, first)
		q.Enqueue(0, second)

		q.Invalidate(0)

		Expect(q.IsValid(0)).To(BeFalse())
		Expect(q.IsEmpty(0)).To(BeTrue())
		Expect(first.IsValid()).To(BeFalse())
		Expect(second.IsValid()).To(BeFalse())
	})
})

var _ = Describe("BAC", func() {
	var (
		q   *frontend.FTQ
		bac *frontend.BAC
		cfg frontend.BACConfig
	)

	BeforeEach(func() {
		cfg = frontend.DefaultBACConfig()
		q = frontend.NewFTQ(cfg.NumThreads, 6)
		bac = frontend.NewBAC(cfg, q)
	})

	It("fills the queue with sequential targets", func() {
		bac.Tick()
		Expect(q.Size(0)).To(Equal(cfg.InsertWidth))

		head := q.ReadHead(0)
		Expect(head.StartAddress()).To(Equal(uint64(0)))
		next := q.ReadNextHead(0)
		Expect(next.StartAddress()).To(Equal(cfg.FetchTargetWidth))
		Expect(next.IsFallThrough()).To(BeTrue())
	})

	It("stops filling at queue capacity", func() {
		for i := 0; i < 10; i++ {
			bac.Tick()
		}
		Expect(q.Size(0)).To(Equal(6))
	})

	It("restarts its stream on a resteer", func() {
		bac.Tick()
		bac.Restart(0, 0x204)
		Expect(q.IsEmpty(0)).To(BeTrue())

		bac.Tick()
		head := q.ReadHead(0)
		Expect(head.StartAddress()).To(Equal(uint64(0x204)))
		Expect(head.IsFallThrough()).To(BeFalse(), "first target after a resteer")

		next := q.ReadNextHead(0)
		Expect(next.StartAddress()).To(Equal(uint64(0x210)))
		Expect(next.IsFallThrough()).To(BeTrue())
	})

	It("consumes resteer signals from the wire", func() {
		buf := timebuffer.New[fetch.BACStruct](1)
		bac.SetFromFetchWire(buf.Wire(1))

		bac.Tick()
		Expect(q.ReadHead(0).StartAddress()).To(Equal(uint64(0)))

		out := buf.Access(0)
		out.FetchInfo[0].Squash = true
		out.FetchInfo[0].NextPC = insts.NewPCState(0x300)
		buf.Advance()

		bac.Tick()
		Expect(q.ReadHead(0).StartAddress()).To(Equal(uint64(0x300)))
	})

	Describe("UpdatePC", func() {
		simpleInst := func(si *insts.StaticInst) *fetch.DynInst {
			return &fetch.DynInst{StaticInst: si}
		}

		It("falls through plain instructions", func() {
			pc := insts.NewPCState(0x100)
			taken := bac.UpdatePC(simpleInst(&insts.StaticInst{Mnemonic: "addi"}), pc, nil)
			Expect(taken).To(BeFalse())
			Expect(pc.InstAddr()).To(Equal(uint64(0x104)))
		})

		It("predicts backward direct branches taken", func() {
			pc := insts.NewPCState(0x100)
			si := &insts.StaticInst{
				Mnemonic:       "b",
				IsControl:      true,
				IsDirectBranch: true,
				BranchDisp:     -0x40,
			}
			taken := bac.UpdatePC(simpleInst(si), pc, nil)
			Expect(taken).To(BeTrue())
			Expect(pc.InstAddr()).To(Equal(uint64(0xC0)))
		})

		It("predicts forward direct branches not taken", func() {
			pc := insts.NewPCState(0x100)
			si := &insts.StaticInst{
				Mnemonic:       "b",
				IsControl:      true,
				IsDirectBranch: true,
				BranchDisp:     0x40,
			}
			taken := bac.UpdatePC(simpleInst(si), pc, nil)
			Expect(taken).To(BeFalse())
			Expect(pc.InstAddr()).To(Equal(uint64(0x104)))
		})

		It("advances the micro-PC inside a macro-op", func() {
			pc := insts.NewPCState(0x100)
			macro := &insts.StaticInst{IsMacroop: true}
			uop := &insts.StaticInst{IsDelayedCommit: true}
			inst := &fetch.DynInst{StaticInst: uop, Macroop: macro}

			taken := bac.UpdatePC(inst, pc, nil)
			Expect(taken).To(BeFalse())
			Expect(pc.InstAddr()).To(Equal(uint64(0x100)))
			Expect(pc.MicroPC()).To(Equal(uint64(1)))
		})

		It("leaves the macro-op at its last micro-op", func() {
			pc := insts.NewPCState(0x100)
			macro := &insts.StaticInst{IsMacroop: true}
			uop := &insts.StaticInst{IsLastMicroop: true}
			inst := &fetch.DynInst{StaticInst: uop, Macroop: macro}

			taken := bac.UpdatePC(inst, pc, nil)
			Expect(taken).To(BeFalse())
			Expect(pc.InstAddr()).To(Equal(uint64(0x104)))
			Expect(pc.MicroPC()).To(Equal(uint64(0)))
		})
	})
})
