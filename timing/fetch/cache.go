package fetch

// makeRequest builds the demand request for the fetch-buffer block at
// vaddr. If ft already holds a request for the same address, that request
// is reclaimed and ft marked ready. If ft advertises a physical address for
// the matching cache block, the physical address is pre-populated and the
// request skips translation.
func (f *Fetch) makeRequest(vaddr uint64, tid ThreadID, pc uint64,
	ft FetchTarget) *Request {
	if ft != nil && ft.Req() != nil && ft.Req().Vaddr == vaddr {
		req := ft.PopReq()
		ft.MarkReady()
		return req
	}

	req := NewRequest(vaddr, f.cfg.FetchBufferSize, tid, pc)
	if ft != nil && ft.HasPaddr() &&
		ft.BlkAddr() == f.cacheBlockAlignPC(vaddr) {
		paddr := ft.Paddr() &^ (f.cfg.CacheBlkSize - 1)
		paddr += vaddr & (f.cfg.CacheBlkSize - 1)
		req.SetPaddr(paddr)
	}
	return req
}

// startTranslation issues req to the MMU, binding ft when given. The
// outstanding count is raised before the call because the MMU may complete
// synchronously.
func (f *Fetch) startTranslation(req *Request, tid ThreadID, ft FetchTarget) {
	f.outstandingTranslations++
	if ft != nil {
		ft.StartTranslation(req)
	}
	req.TransStart = f.cpu.CurCycle()
	f.mmu.TranslateTiming(req, tid, func(fault *Fault, r *Request) {
		f.finishTranslation(fault, r, ft)
	})
}

// finishTranslation dispatches a translation completion either to the
// bound fetch target (prefetch or stale demand) or to the demand fetch
// continuation.
func (f *Fetch) finishTranslation(fault *Fault, req *Request, ft FetchTarget) {
	f.outstandingTranslations--
	if f.outstandingTranslations < 0 {
		panic("fetch: outstanding translation count went negative")
	}

	tid := req.Tid
	lat := f.cpu.CurCycle() - req.TransStart

	if ft != nil && req != f.memReq[tid] {
		if !ft.IsValid() {
			f.stats.TlbSquashes++
			return
		}
		ft.FinishTranslation(fault, req, true)
		f.stats.TranslationLatency.Sample(log2Cycles(lat))
		return
	}

	if f.fetchStatus[tid] != ItlbWait || req != f.memReq[tid] {
		f.stats.TlbSquashes++
		return
	}

	if ft != nil && ft.IsValid() {
		ft.FinishTranslation(fault, req, false)
	}
	f.stats.TranslationLatency.Sample(log2Cycles(lat))

	if fault == nil {
		f.performCacheAccess(req.Vaddr, tid, req, false)
		return
	}

	f.memReq[tid] = nil
	f.processTrap(tid, fault)
}

// performCacheAccess issues a timing request to the instruction cache.
// Returns false when the access could not be sent: bad physical address,
// or back-pressure (demands transition to IcacheWaitRetry, prefetches are
// dropped).
func (f *Fetch) performCacheAccess(vaddr uint64, tid ThreadID, req *Request,
	prefetch bool) bool {
	if !f.addrCheck.IsMemAddr(req.Paddr()) {
		f.warnf("fetch: address %#x is outside of physical memory, stopping fetch",
			req.Paddr())
		f.fetchStatus[tid] = NoGoodAddr
		f.memReq[tid] = nil
		return false
	}

	pkt := NewPacket(req)
	pkt.SendCycle = f.cpu.CurCycle()

	if !prefetch {
		f.fetchBufferPC[tid] = vaddr
		f.fetchBufferValid[tid] = false
		f.stats.CacheLines++
	}

	if !f.icachePort.SendTimingReq(pkt) {
		if prefetch {
			return false
		}
		f.cacheBlocked = true
		f.retryPkt = pkt
		f.retryTid = tid
		f.fetchStatus[tid] = IcacheWaitRetry
		return false
	}

	f.fetchesInProgress[req.Paddr()] = struct{}{}
	f.stats.MemReqInFlight.Sample(len(f.fetchesInProgress))

	if !prefetch {
		f.lastIcacheStall[tid] = f.cpu.CurCycle()
		f.fetchStatus[tid] = IcacheWaitResponse
	}
	return true
}

// fetchCacheLine starts the demand fetch for the buffer block containing
// vaddr. With the decoupled front-end on, the fetch-target queue head
// decides the fast path: reuse a ready translation, promote an in-flight
// prefetch, join an in-flight translation, or take a recorded fault.
// Returns false when nothing was started this cycle.
func (f *Fetch) fetchCacheLine(vaddr uint64, tid ThreadID, pc uint64) bool {
	if f.cacheBlocked {
		return false
	}
	if f.interruptPending && !f.delayedCommit[tid] {
		return false
	}

	blockVaddr := f.fetchBufferAlignPC(vaddr)

	if f.isDecoupledFrontEnd() {
		ft := f.selectFetchTarget(tid, blockVaddr)
		if ft != nil {
			return f.fetchCacheLineFromFT(blockVaddr, tid, pc, ft)
		}
	}

	req := f.makeRequest(blockVaddr, tid, pc, nil)
	f.memReq[tid] = req
	if req.HasPaddr() {
		return f.performCacheAccess(blockVaddr, tid, req, false)
	}
	f.fetchStatus[tid] = ItlbWait
	f.startTranslation(req, tid, nil)
	return true
}

// selectFetchTarget picks the FTQ entry covering the demand block: the
// head, or the next head when the demand crosses into the next cache block
// off a fall-through target.
func (f *Fetch) selectFetchTarget(tid ThreadID, blockVaddr uint64) FetchTarget {
	if !f.ftq.IsValid(tid) || f.ftq.IsEmpty(tid) {
		return nil
	}
	ft := f.ftq.ReadHead(tid)
	if ft == nil {
		return nil
	}
	if ft.InRangeAligned(blockVaddr, f.cfg.FetchBufferSize) {
		return ft
	}

	f.stats.FtCrossCacheBlock++
	if ft.IsFallThrough() {
		next := f.ftq.ReadNextHead(tid)
		if next != nil && next.InRangeAligned(blockVaddr, f.cfg.FetchBufferSize) {
			return next
		}
	}
	f.stats.FtCrossCacheBlockNotNext++
	return nil
}

// fetchCacheLineFromFT drives the demand through the selected fetch
// target's lifecycle state.
func (f *Fetch) fetchCacheLineFromFT(blockVaddr uint64, tid ThreadID,
	pc uint64, ft FetchTarget) bool {
	switch ft.State() {
	case FTReadyToFetch:
		f.stats.FtReadyToFetch++
		req := f.makeRequest(blockVaddr, tid, pc, ft)
		f.memReq[tid] = req
		if req.HasPaddr() {
			return f.performCacheAccess(blockVaddr, tid, req, false)
		}
		f.fetchStatus[tid] = ItlbWait
		f.startTranslation(req, tid, ft)
		return true

	case FTTranslationReady:
		f.stats.FtTranslationReady++
		req := f.makeRequest(blockVaddr, tid, pc, ft)
		f.memReq[tid] = req
		if req.HasPaddr() {
			return f.performCacheAccess(blockVaddr, tid, req, false)
		}
		f.fetchStatus[tid] = ItlbWait
		f.startTranslation(req, tid, ft)
		return true

	case FTPrefetchInProgress:
		// Promote the in-flight prefetch to the demand. Its packet is
		// already on the way; when it returns it is recognized as the
		// thread's demand and fills the fetch buffer.
		f.stats.FtPrefetchInProgress++
		f.stats.PfLate++
		f.outstandingPrefetches--
		f.memReq[tid] = ft.PopReq()
		ft.MarkReady()
		f.fetchBufferPC[tid] = blockVaddr
		f.fetchBufferValid[tid] = false
		f.lastIcacheStall[tid] = f.cpu.CurCycle()
		f.fetchStatus[tid] = IcacheWaitResponse
		return true

	case FTTranslationInProgress:
		// Join the pre-issued translation: adopt its request as the
		// demand and wait; completion recognizes the match and
		// continues into the cache access.
		f.stats.FtTranslationInProgress++
		f.memReq[tid] = ft.Req()
		f.fetchStatus[tid] = ItlbWait
		return true

	case FTTranslationFailed:
		f.stats.FtTranslationFailed++
		f.processTrap(tid, ft.Fault())
		return true
	}

	// Initial: no pre-work to reuse, take the regular path.
	req := f.makeRequest(blockVaddr, tid, pc, nil)
	f.memReq[tid] = req
	if req.HasPaddr() {
		return f.performCacheAccess(blockVaddr, tid, req, false)
	}
	f.fetchStatus[tid] = ItlbWait
	f.startTranslation(req, tid, ft)
	return true
}

// RecvTimingResp delivers an instruction-cache response. Called by the
// cache port.
func (f *Fetch) RecvTimingResp(pkt *Packet) {
	f.processCacheCompletion(pkt)
}

func (f *Fetch) processCacheCompletion(pkt *Packet) {
	tid := pkt.Req.Tid
	delete(f.fetchesInProgress, pkt.Req.Paddr())

	if f.fetchStatus[tid] != IcacheWaitResponse || pkt.Req != f.memReq[tid] {
		if f.trySatisfyPrefetch(pkt) {
			return
		}
		f.stats.IcacheSquashes++
		return
	}

	copy(f.fetchBuffer[tid], pkt.Data)
	f.fetchBufferValid[tid] = true

	if pkt.AccessDepth == 0 {
		f.stats.DemandHit++
	} else {
		f.stats.DemandMiss++
	}
	f.stats.InstrAccessLatency.Sample(
		log2Cycles(f.cpu.CurCycle() - f.lastIcacheStall[tid]))

	f.cpu.WakeCPU()

	f.memReq[tid] = nil
	if f.checkStall(tid) {
		f.fetchStatus[tid] = Blocked
	} else {
		f.fetchStatus[tid] = IcacheAccessComplete
	}
}

// trySatisfyPrefetch matches a response that is not the demand against the
// FTQ's in-flight prefetches. A match marks the target ready so the demand
// loop later hits without another cache access.
func (f *Fetch) trySatisfyPrefetch(pkt *Packet) bool {
	if !f.isDecoupledFrontEnd() {
		return false
	}
	tid := pkt.Req.Tid
	if !f.ftq.IsValid(tid) || f.ftq.IsEmpty(tid) {
		return false
	}

	match := func(ft FetchTarget) bool {
		return ft.State() == FTPrefetchInProgress && ft.Req() == pkt.Req
	}
	ft := f.ftq.ReadHead(tid)
	if ft == nil || !match(ft) {
		ft = f.ftq.FindAfterHead(tid, match)
	}
	if ft == nil {
		return false
	}

	ft.MarkReady()
	f.outstandingPrefetches--
	f.stats.PfReceived++
	if pkt.AccessDepth == 0 {
		f.stats.PfInCache++
	}
	return true
}

// RecvReqRetry is raised by the cache when back-pressure clears. Resend
// the retained demand packet if it survived; a squash in the meantime
// leaves only the blocked flag to clear.
func (f *Fetch) RecvReqRetry() {
	if f.retryPkt == nil {
		f.cacheBlocked = false
		f.retryTid = InvalidThreadID
		return
	}

	tid := f.retryTid
	if !f.icachePort.SendTimingReq(f.retryPkt) {
		return
	}

	f.fetchesInProgress[f.retryPkt.Req.Paddr()] = struct{}{}
	f.stats.MemReqInFlight.Sample(len(f.fetchesInProgress))
	f.lastIcacheStall[tid] = f.cpu.CurCycle()
	f.fetchStatus[tid] = IcacheWaitResponse
	f.retryPkt = nil
	f.retryTid = InvalidThreadID
	f.cacheBlocked = false
}

// pipelineIcacheAccesses issues the next block's demand fetch at the end
// of a cycle in which decode consumed up to the block boundary, hiding the
// access latency behind the handoff.
func (f *Fetch) pipelineIcacheAccesses(tid ThreadID) {
	if !f.issuePipelinedIfetch[tid] {
		return
	}

	fetchAddr := (f.pc[tid].InstAddr() + f.fetchOffset[tid]) &
		f.decoder[tid].PCMask()
	blockVaddr := f.fetchBufferAlignPC(fetchAddr)
	if f.fetchBufferValid[tid] && blockVaddr == f.fetchBufferPC[tid] {
		return
	}
	f.fetchCacheLine(fetchAddr, tid, f.pc[tid].InstAddr())
}
