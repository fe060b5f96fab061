package fetch

import "github.com/sarchlab/o3sim/insts"

// checkSignalsAndUpdate ingests one tick's worth of backward signals for
// tid and applies the resulting state transitions. Returns true if the
// thread's status changed. A squash from commit dominates one from decode.
func (f *Fetch) checkSignalsAndUpdate(tid ThreadID) bool {
	fromDecode := f.fromDecode.Read()
	fromCommit := f.fromCommit.Read()

	if fromDecode.DecodeBlock[tid] {
		f.stalls[tid].decode = true
	}
	if fromDecode.DecodeUnblock[tid] {
		f.stalls[tid].decode = false
	}

	if fromCommit.CommitInfo[tid].Squash {
		f.squash(fromCommit.CommitInfo[tid].PC,
			fromCommit.CommitInfo[tid].SquashInst, tid)
		return true
	}

	if fromDecode.DecodeInfo[tid].Squash && f.fetchStatus[tid] != Squashing {
		f.squashFromDecode(fromDecode.DecodeInfo[tid].NextPC,
			fromDecode.DecodeInfo[tid].SquashInst,
			fromDecode.DecodeInfo[tid].DoneSeqNum, tid)
		return true
	}

	if f.checkStall(tid) &&
		f.fetchStatus[tid] != IcacheWaitResponse &&
		f.fetchStatus[tid] != IcacheWaitRetry &&
		f.fetchStatus[tid] != ItlbWait &&
		f.fetchStatus[tid] != FTQEmpty &&
		f.fetchStatus[tid] != QuiescePending {
		f.fetchStatus[tid] = Blocked
		return true
	}

	if f.fetchStatus[tid] == Blocked || f.fetchStatus[tid] == Squashing {
		if f.isDecoupledFrontEnd() && f.ftq.IsEmpty(tid) {
			f.fetchStatus[tid] = FTQEmpty
		} else {
			f.fetchStatus[tid] = Running
		}
		return true
	}

	if f.fetchStatus[tid] == FTQEmpty && !f.ftq.IsEmpty(tid) {
		f.fetchStatus[tid] = Running
		return true
	}

	return false
}

// squash handles a squash ordered by commit: redirect, then drop every
// in-flight instruction for the thread that is no longer in the ROB.
func (f *Fetch) squash(newPC *insts.PCState, squashInst *DynInst, tid ThreadID) {
	f.doSquash(newPC, squashInst, tid)
	f.cpu.RemoveInstsNotInROB(tid)
}

// squashFromDecode handles a squash ordered by decode: redirect, then drop
// instructions younger than seq.
func (f *Fetch) squashFromDecode(newPC *insts.PCState, squashInst *DynInst,
	seq InstSeqNum, tid ThreadID) {
	f.doSquash(newPC, squashInst, tid)
	f.cpu.RemoveInstsUntil(seq, tid)
}

// doSquash redirects tid to newPC and cancels its in-flight fetch work.
// Completions that arrive later find no matching demand request and are
// counted as squashed. Outstanding prefetches are tracked process-wide, so
// the full count is attributed to the squashing thread.
func (f *Fetch) doSquash(newPC *insts.PCState, squashInst *DynInst, tid ThreadID) {
	f.pc[tid] = newPC.Clone()
	f.fetchOffset[tid] = 0

	if squashInst != nil &&
		squashInst.PC.InstAddr() == newPC.InstAddr() &&
		!squashInst.StaticInst.IsLastMicroop {
		f.macroop[tid] = squashInst.Macroop
	} else {
		f.macroop[tid] = nil
	}
	f.decoder[tid].Reset()

	if f.fetchStatus[tid] == IcacheWaitResponse ||
		f.fetchStatus[tid] == ItlbWait {
		f.memReq[tid] = nil
	}
	if f.fetchStatus[tid] == IcacheWaitRetry && f.retryTid == tid {
		f.retryPkt = nil
		f.retryTid = InvalidThreadID
		f.cacheBlocked = false
	}
	f.memReq[tid] = nil

	f.fetchQueue[tid] = f.fetchQueue[tid][:0]

	// Interrupts must stay deferred until the redirected stream proves
	// it is outside a serializing window.
	f.delayedCommit[tid] = true

	f.fetchStatus[tid] = Squashing

	f.stats.PfSquashed += uint64(f.outstandingPrefetches)
	f.outstandingPrefetches = 0

	if f.isDecoupledFrontEnd() {
		f.signalBACResteer(tid, newPC)
	}
}

// signalBACResteer tells the branch-address calculator to restart target
// generation at newPC.
func (f *Fetch) signalBACResteer(tid ThreadID, newPC *insts.PCState) {
	info := &f.toBAC.Write().FetchInfo[tid]
	info.Squash = true
	info.NextPC = newPC.Clone()
}

// resteerFromFetch recovers from a BAC/FTQ disagreement: the queued fetch
// targets no longer cover the PC, so invalidate them and redirect the BAC
// to the current PC.
func (f *Fetch) resteerFromFetch(tid ThreadID) {
	f.ftq.Invalidate(tid)
	f.signalBACResteer(tid, f.pc[tid])
}
