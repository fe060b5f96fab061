package fetch

// processFTQ walks the fetch-target queue beyond the head, pre-issuing
// translations and cache prefetches up to the configured limits. Runs once
// per thread per tick with the decoupled front-end on, and only when the
// queue is deep enough that there is something beyond the demand head.
func (f *Fetch) processFTQ(tid ThreadID) {
	if f.ftq.Size(tid) < 2 {
		return
	}

	f.preIssueTranslation(tid)
	f.issuePrefetch(tid)
}

func (f *Fetch) preIssueTranslation(tid ThreadID) {
	if f.outstandingTranslations >= f.cfg.MaxOutstandingTranslations {
		f.stats.PfTranslationLimitReached++
		return
	}

	ft := f.ftq.FindAfterHead(tid, func(ft FetchTarget) bool {
		return ft.RequiresTranslation()
	})
	if ft == nil {
		return
	}

	vaddr := f.fetchBufferAlignPC(ft.StartAddress())
	req := NewRequest(vaddr, f.cfg.FetchBufferSize, tid, ft.StartAddress())
	f.startTranslation(req, tid, ft)
}

func (f *Fetch) issuePrefetch(tid ThreadID) {
	if f.retryPkt != nil || f.cacheBlocked {
		return
	}
	if f.outstandingPrefetches >= f.cfg.MaxOutstandingPrefetches {
		f.stats.PfLimitReached++
		return
	}

	ft := f.ftq.FindAfterHead(tid, func(ft FetchTarget) bool {
		return ft.TranslationReady()
	})
	if ft == nil {
		return
	}

	req := ft.Req()
	if req == nil {
		return
	}

	// Another packet is already fetching this block; the target will be
	// served without its own access.
	if _, inFlight := f.fetchesInProgress[req.Paddr()]; inFlight {
		ft.MarkReady()
		return
	}

	if f.performCacheAccess(req.Vaddr, tid, req, true) {
		ft.PrefetchIssued()
		f.outstandingPrefetches++
		f.stats.PfIssued++
	}
}
