package fetch

import "github.com/sarchlab/o3sim/insts"

// processTrap surfaces a fetch-side fault to commit: a placeholder nop
// carrying the fault is queued, and the thread parks in TrapPending until
// commit squashes past it. When the fetch width or queue is exhausted the
// enqueue is deferred by one cycle through a single-slot event.
func (f *Fetch) processTrap(tid ThreadID, fault *Fault) {
	f.fetchStatus[tid] = TrapPending

	if f.numInst >= f.cfg.FetchWidth ||
		len(f.fetchQueue[tid]) >= f.cfg.FetchQueueSize {
		f.deferredTrap = &pendingTrap{tid: tid, fault: fault}
		return
	}
	f.enqueueTrap(tid, fault)
}

func (f *Fetch) enqueueTrap(tid ThreadID, fault *Fault) {
	thisPC := f.pc[tid]
	instruction := f.buildInst(tid, insts.NopInst, nil, thisPC, false)
	instruction.NotAnInst = true
	instruction.SetPredTarg(thisPC)
	instruction.Fault = fault

	f.wroteToTimeBuffer = true
	f.cpu.WakeCPU()
}

// serviceDeferredTrap retries a trap enqueue postponed from the previous
// cycle. Runs at the head of the tick, before new instructions can claim
// the width.
func (f *Fetch) serviceDeferredTrap() {
	if f.deferredTrap == nil {
		return
	}
	t := f.deferredTrap
	f.deferredTrap = nil

	if f.fetchStatus[t.tid] != TrapPending {
		// Squashed while deferred; commit no longer wants the fault.
		return
	}
	f.processTrap(t.tid, t.fault)
}
