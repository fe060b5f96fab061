// Package frontend implements the decoupled front-end: fetch targets, the
// per-thread fetch-target queue, and a branch-address calculator that keeps
// the queue filled and resteers on squashes from the fetch unit.
package frontend

import "github.com/sarchlab/o3sim/timing/fetch"

// FetchTarget is one queue entry: a block-aligned PC range the front-end
// intends to fetch, carrying its own translation and prefetch progress.
type FetchTarget struct {
	startAddr uint64
	width     uint64

	state       fetch.FTState
	valid       bool
	fallThrough bool

	req      *fetch.Request
	paddr    uint64
	hasPaddr bool
	fault    *fetch.Fault
}

// NewFetchTarget builds a target covering the width-sized block that
// contains startAddr. fallThrough marks sequentially generated targets.
func NewFetchTarget(startAddr, width uint64, fallThrough bool) *FetchTarget {
	return &FetchTarget{
		startAddr:   startAddr,
		width:       width,
		state:       fetch.FTInitial,
		valid:       true,
		fallThrough: fallThrough,
	}
}

// State returns the lifecycle state.
func (t *FetchTarget) State() fetch.FTState { return t.state }

// StartAddress returns the first instruction address the target covers.
func (t *FetchTarget) StartAddress() uint64 { return t.startAddr }

// BlkAddr returns the block-aligned base of the covered range.
func (t *FetchTarget) BlkAddr() uint64 { return t.startAddr &^ (t.width - 1) }

// Paddr returns the translated block physical address. Only valid after a
// successful translation.
func (t *FetchTarget) Paddr() uint64 { return t.paddr }

// HasPaddr reports whether the block physical address is known.
func (t *FetchTarget) HasPaddr() bool { return t.hasPaddr }

// InRange reports whether addr falls inside the covered block, at or past
// the start address.
func (t *FetchTarget) InRange(addr uint64) bool {
	return addr >= t.startAddr && addr < t.BlkAddr()+t.width
}

// InRangeAligned reports whether an align-sized window at addr lies wholly
// inside the covered block.
func (t *FetchTarget) InRangeAligned(addr, align uint64) bool {
	return addr >= t.BlkAddr() && addr+align <= t.BlkAddr()+t.width
}

// IsFallThrough reports whether the target continues its predecessor
// sequentially.
func (t *FetchTarget) IsFallThrough() bool { return t.fallThrough }

// RequiresTranslation reports whether the target still needs a translation
// issued for it.
func (t *FetchTarget) RequiresTranslation() bool {
	return t.valid && t.state == fetch.FTInitial && !t.hasPaddr
}

// TranslationReady reports whether the target is translated but not yet
// prefetched.
func (t *FetchTarget) TranslationReady() bool {
	return t.valid && t.state == fetch.FTTranslationReady
}

// IsValid reports whether the target still belongs to a live queue. A
// squash invalidates entries that may have in-flight work attached.
func (t *FetchTarget) IsValid() bool { return t.valid }

// Fault returns the translation fault, nil unless the state is
// TranslationFailed.
func (t *FetchTarget) Fault() *fetch.Fault { return t.fault }

// Req returns the attached request without transferring ownership.
func (t *FetchTarget) Req() *fetch.Request { return t.req }

// PopReq detaches and returns the attached request.
func (t *FetchTarget) PopReq() *fetch.Request {
	req := t.req
	t.req = nil
	return req
}

// MarkReady advances the target to ReadyToFetch. Ready targets never move
// backward.
func (t *FetchTarget) MarkReady() { t.state = fetch.FTReadyToFetch }

// PrefetchIssued records that a cache prefetch is in flight for the target.
func (t *FetchTarget) PrefetchIssued() { t.state = fetch.FTPrefetchInProgress }

// StartTranslation attaches req and records that its translation is in
// flight.
func (t *FetchTarget) StartTranslation(req *fetch.Request) {
	t.req = req
	t.state = fetch.FTTranslationInProgress
}

// FinishTranslation records the translation outcome. On success the block
// physical address is captured from req; a prefetch-path completion keeps
// the request attached for the later cache issue, while a demand-path
// completion leaves ownership with the fetch unit.
func (t *FetchTarget) FinishTranslation(fault *fetch.Fault, req *fetch.Request, prefetch bool) {
	if fault != nil {
		t.state = fetch.FTTranslationFailed
		t.fault = fault
		t.req = nil
		return
	}
	t.paddr = req.Paddr()
	t.hasPaddr = true
	t.state = fetch.FTTranslationReady
	if prefetch {
		t.req = req
	} else {
		t.req = nil
	}
}

// invalidate detaches the target from its queue.
func (t *FetchTarget) invalidate() { t.valid = false }
