package fetch

// isFetchable reports whether the thread can enter the decode loop this
// sub-cycle.
func (f *Fetch) isFetchable(tid ThreadID) bool {
	switch f.fetchStatus[tid] {
	case Running, IcacheAccessComplete, Idle:
		return true
	}
	return false
}

// getFetchingThread applies the SMT fetch policy and returns the next
// thread to fetch from, or InvalidThreadID when nothing is fetchable.
func (f *Fetch) getFetchingThread() ThreadID {
	if f.cfg.NumThreads > 1 {
		switch f.cfg.SMTFetchPolicy {
		case RoundRobin:
			return f.roundRobin()
		case IQCount:
			return f.minCountThread(func(c IewComm) int { return c.IQCount })
		case LSQCount:
			return f.minCountThread(func(c IewComm) int { return c.LdstqCount })
		}
		panic("fetch: unsupported SMT fetch policy")
	}

	active := f.cpu.ActiveThreads()
	if len(active) == 0 {
		return InvalidThreadID
	}
	tid := active[0]
	if f.isFetchable(tid) {
		return tid
	}
	return InvalidThreadID
}

// roundRobin walks the priority list and rotates the chosen thread to the
// tail.
func (f *Fetch) roundRobin() ThreadID {
	for i, tid := range f.priorityList {
		if f.isFetchable(tid) {
			f.priorityList = append(f.priorityList[:i], f.priorityList[i+1:]...)
			f.priorityList = append(f.priorityList, tid)
			return tid
		}
	}
	return InvalidThreadID
}

// minCountThread picks the fetchable active thread with the smallest
// IEW-reported occupancy. Ties resolve to the lowest thread id.
func (f *Fetch) minCountThread(count func(IewComm) int) ThreadID {
	fromIEW := f.fromIEW.Read()

	best := InvalidThreadID
	bestCount := 0
	for _, tid := range f.cpu.ActiveThreads() {
		if !f.isFetchable(tid) {
			continue
		}
		c := count(fromIEW.IewInfo[tid])
		if best == InvalidThreadID || c < bestCount {
			best = tid
			bestCount = c
		}
	}
	return best
}
