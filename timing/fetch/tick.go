package fetch

import "github.com/sarchlab/o3sim/insts"

// Tick runs one cycle of the fetch stage: signal ingestion, the per-thread
// decode loops, pipelined next-block issue, the FTQ prefetch scan, and
// forwarding to decode.
func (f *Fetch) Tick() {
	activeThreads := f.cpu.ActiveThreads()
	statusChange := false
	f.wroteToTimeBuffer = false

	for _, tid := range activeThreads {
		f.issuePipelinedIfetch[tid] = false
	}
	for _, tid := range activeThreads {
		statusChange = f.checkSignalsAndUpdate(tid) || statusChange
	}

	if f.cfg.FullSystem {
		commit := f.fromCommit.Read()
		if commit.CommitInfo[0].InterruptPending {
			f.interruptPending = true
		}
		if commit.CommitInfo[0].ClearInterrupt {
			f.interruptPending = false
		}
	}

	f.serviceDeferredTrap()

	for i := 0; i < f.cfg.SMTNumFetchingThreads; i++ {
		f.fetchInsts(&statusChange)
	}

	f.stats.NisnDist.Sample(f.numInst)

	if statusChange {
		f.updateFetchStatus()
	}

	for _, tid := range activeThreads {
		f.pipelineIcacheAccesses(tid)
	}

	if f.isDecoupledFrontEnd() {
		for _, tid := range activeThreads {
			f.processFTQ(tid)
		}
	}

	f.forwardToDecode(activeThreads)

	if f.wroteToTimeBuffer {
		f.cpu.ActivityThisCycle()
	}
	f.numInst = 0
}

// fetchInsts runs one sub-cycle: pick a thread, then decode from its fetch
// buffer until the width, the queue bound, a predicted branch, or a
// quiesce stops it.
func (f *Fetch) fetchInsts(statusChange *bool) {
	tid := f.getFetchingThread()
	if tid == InvalidThreadID {
		if f.cfg.NumThreads == 1 {
			f.profileStall(0)
		}
		return
	}

	thisPC := f.pc[tid]

	if f.fetchStatus[tid] == IcacheAccessComplete {
		f.fetchStatus[tid] = Running
		*statusChange = true
	}

	var ft FetchTarget
	if f.isDecoupledFrontEnd() {
		if !f.ftq.IsHeadReady(tid) {
			if f.fetchStatus[tid] == Running {
				f.fetchStatus[tid] = FTQEmpty
				*statusChange = true
			}
			f.stats.FtqStallCycles++
			return
		}
		ft = f.ftq.ReadHead(tid)
		if !ft.InRange(thisPC.InstAddr()) {
			f.resteerFromFetch(tid)
			return
		}
	}

	pcOffset := f.fetchOffset[tid]
	pcMask := f.decoder[tid].PCMask()
	fetchAddr := (thisPC.InstAddr() + pcOffset) & pcMask
	inRom := insts.IsRomMicroPC(thisPC.MicroPC())

	if f.fetchStatus[tid] == Running &&
		!(f.fetchBufferValid[tid] &&
			f.fetchBufferAlignPC(fetchAddr) == f.fetchBufferPC[tid]) &&
		!inRom && f.macroop[tid] == nil {
		f.fetchCacheLine(fetchAddr, tid, thisPC.InstAddr())
		switch f.fetchStatus[tid] {
		case IcacheWaitResponse:
			f.stats.IcacheStallCycles++
		case ItlbWait:
			f.stats.TlbCycles++
		default:
			f.stats.MiscStallCycles++
		}
		return
	} else if f.fetchStatus[tid] != Running {
		if f.fetchStatus[tid] == Idle {
			f.stats.IdleCycles++
		}
		return
	} else if f.interruptPending && !f.delayedCommit[tid] {
		f.stats.MiscStallCycles++
		return
	}

	f.stats.Cycles++

	dec := f.decoder[tid]
	curMacroop := f.macroop[tid]
	quiesce := false
	predictedBranch := false
	ftConsumed := false
	var staticInst *insts.StaticInst

	for f.numInst < f.cfg.FetchWidth &&
		len(f.fetchQueue[tid]) < f.cfg.FetchQueueSize &&
		!predictedBranch && !quiesce {

		fetchAddr = (thisPC.InstAddr() + pcOffset) & pcMask
		blockVaddr := f.fetchBufferAlignPC(fetchAddr)
		needMem := !inRom && curMacroop == nil && dec.NeedMoreBytes()

		if needMem {
			if !f.fetchBufferValid[tid] || blockVaddr != f.fetchBufferPC[tid] {
				break
			}
			blkOffset := fetchAddr - f.fetchBufferPC[tid]
			dec.MoreBytes(thisPC, fetchAddr,
				f.fetchBuffer[tid][blkOffset:blkOffset+insts.InstSize])
			if dec.NeedMoreBytes() {
				pcOffset += insts.InstSize
				continue
			}
		}

		// Drain as many micro-ops as the decoder or the current macro-op
		// can produce without touching memory again.
		for {
			if curMacroop == nil && !inRom {
				if !dec.InstReady() {
					break
				}
				staticInst = dec.Decode(thisPC)
				inRom = insts.IsRomMicroPC(thisPC.MicroPC())
				if staticInst.IsMacroop {
					curMacroop = staticInst
				} else {
					pcOffset = 0
				}
			}
			newMacro := false
			if curMacroop != nil || inRom {
				if inRom {
					staticInst = dec.FetchRomMicroop(thisPC.MicroPC())
				} else {
					staticInst = curMacroop.FetchMicroop(thisPC.MicroPC())
				}
				newMacro = staticInst.IsLastMicroop
			}

			instruction := f.buildInst(tid, staticInst, curMacroop, thisPC, true)
			f.numInst++

			nextPC := thisPC.Clone()
			if f.bac.UpdatePC(instruction, nextPC, ft) {
				predictedBranch = true
				f.stats.PredictedBranches++
			}
			instruction.SetPredTarg(nextPC)

			f.delayedCommit[tid] = staticInst.IsDelayedCommit

			newMacro = newMacro || thisPC.InstAddr() != nextPC.InstAddr()
			*thisPC = *nextPC
			inRom = insts.IsRomMicroPC(thisPC.MicroPC())

			if newMacro {
				pcOffset = 0
				curMacroop = nil
			}

			if staticInst.IsQuiesce {
				f.fetchStatus[tid] = QuiescePending
				*statusChange = true
				quiesce = true
				break
			}

			if ft != nil && !ft.InRange(thisPC.InstAddr()) {
				ftConsumed = true
				ft = nil
				break
			}

			if !((curMacroop != nil || inRom || dec.InstReady()) &&
				f.numInst < f.cfg.FetchWidth &&
				len(f.fetchQueue[tid]) < f.cfg.FetchQueueSize) {
				break
			}
		}

		// Let the consumed fetch target drain to decode before starting
		// on the next one.
		if ftConsumed && f.ftq.IsValid(tid) {
			break
		}
	}

	if f.numInst > 0 {
		f.wroteToTimeBuffer = true
	}

	f.macroop[tid] = curMacroop
	f.fetchOffset[tid] = pcOffset

	fetchAddr = (thisPC.InstAddr() + pcOffset) & pcMask
	nextBlock := f.fetchBufferAlignPC(fetchAddr)
	headReady := true
	if f.isDecoupledFrontEnd() {
		headReady = f.ftq.IsHeadReady(tid)
	}
	f.issuePipelinedIfetch[tid] = nextBlock != f.fetchBufferPC[tid] &&
		f.fetchStatus[tid] != IcacheWaitResponse &&
		f.fetchStatus[tid] != ItlbWait &&
		f.fetchStatus[tid] != FTQEmpty &&
		f.fetchStatus[tid] != IcacheWaitRetry &&
		f.fetchStatus[tid] != QuiescePending &&
		headReady &&
		curMacroop == nil

	if f.isDecoupledFrontEnd() && ftConsumed {
		if !f.ftq.UpdateHead(tid) {
			f.resteerFromFetch(tid)
		}
	}
}

// buildInst wraps a static instruction into a dynamic one, assigns its
// sequence number, registers it with the CPU, and queues it for decode.
func (f *Fetch) buildInst(tid ThreadID, staticInst, curMacroop *insts.StaticInst,
	thisPC *insts.PCState, trackInst bool) *DynInst {
	instruction := &DynInst{
		SeqNum:     f.cpu.NextSeqNum(),
		Tid:        tid,
		StaticInst: staticInst,
		Macroop:    curMacroop,
		PC:         thisPC.Clone(),
		PredPC:     thisPC.Clone(),
	}
	if trackInst {
		f.cpu.AddInst(instruction)
	}

	f.fetchQueue[tid] = append(f.fetchQueue[tid], instruction)
	if len(f.fetchQueue[tid]) > f.cfg.FetchQueueSize {
		panic("fetch: fetch queue overflow")
	}
	return instruction
}

// forwardToDecode drains the per-thread fetch queues into the decode wire,
// up to decodeWidth instructions, starting from a uniformly random active
// thread and skipping decode-stalled threads.
func (f *Fetch) forwardToDecode(activeThreads []ThreadID) {
	if len(activeThreads) == 0 {
		return
	}

	out := f.toDecode.Write()
	forwarded := 0
	start := f.rng.Intn(len(activeThreads))
	for i := 0; i < len(activeThreads) && forwarded < f.cfg.DecodeWidth; i++ {
		tid := activeThreads[(start+i)%len(activeThreads)]
		if f.stalls[tid].decode {
			continue
		}
		for len(f.fetchQueue[tid]) > 0 && forwarded < f.cfg.DecodeWidth {
			inst := f.fetchQueue[tid][0]
			f.fetchQueue[tid] = f.fetchQueue[tid][1:]
			out.Insts[out.Size] = inst
			out.Size++
			forwarded++
			f.wroteToTimeBuffer = true
		}
	}
}
