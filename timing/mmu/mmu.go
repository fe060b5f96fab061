// Package mmu provides a linear-page-table instruction MMU with a
// configurable fixed translation latency.
package mmu

import "github.com/sarchlab/o3sim/timing/fetch"

// PageSize is the translation granule in bytes.
const PageSize uint64 = 4096

// Config holds the MMU's parameters.
type Config struct {
	// Latency is the number of cycles between TranslateTiming and the
	// completion callback. Zero completes synchronously inside the call.
	Latency int
}

// DefaultConfig returns a one-cycle MMU.
func DefaultConfig() Config {
	return Config{Latency: 1}
}

type pendingTranslation struct {
	req        *fetch.Request
	done       fetch.TranslationCallback
	cyclesLeft int
}

// MMU translates instruction-fetch virtual addresses through an explicit
// page map. Unmapped pages complete with a page fault. Each translation
// completes exactly once.
type MMU struct {
	cfg   Config
	pages map[uint64]uint64

	pending []*pendingTranslation
}

// New builds an MMU with an empty page map.
func New(cfg Config) *MMU {
	return &MMU{
		cfg:   cfg,
		pages: make(map[uint64]uint64),
	}
}

// Map installs a virtual-to-physical page mapping. Both addresses are
// truncated to their page base.
func (m *MMU) Map(vaddr, paddr uint64) {
	m.pages[vaddr/PageSize] = paddr / PageSize
}

// MapIdentity identity-maps the pages covering [base, base+size).
func (m *MMU) MapIdentity(base, size uint64) {
	for page := base / PageSize; page <= (base+size-1)/PageSize; page++ {
		m.pages[page] = page
	}
}

// TranslateTiming starts a translation for req. The callback fires after
// the configured latency, or synchronously when the latency is zero.
func (m *MMU) TranslateTiming(req *fetch.Request, tid fetch.ThreadID,
	done fetch.TranslationCallback) {
	if m.cfg.Latency <= 0 {
		m.complete(req, done)
		return
	}
	m.pending = append(m.pending, &pendingTranslation{
		req:        req,
		done:       done,
		cyclesLeft: m.cfg.Latency,
	})
}

// Tick ages in-flight translations and fires the ones that reach zero.
func (m *MMU) Tick() {
	remaining := m.pending[:0]
	var ready []*pendingTranslation
	for _, p := range m.pending {
		p.cyclesLeft--
		if p.cyclesLeft <= 0 {
			ready = append(ready, p)
		} else {
			remaining = append(remaining, p)
		}
	}
	m.pending = remaining

	for _, p := range ready {
		m.complete(p.req, p.done)
	}
}

// Pending returns the number of in-flight translations.
func (m *MMU) Pending() int {
	return len(m.pending)
}

func (m *MMU) complete(req *fetch.Request, done fetch.TranslationCallback) {
	ppage, ok := m.pages[req.Vaddr/PageSize]
	if !ok {
		done(fetch.NewPageFault(req.Vaddr), req)
		return
	}
	req.SetPaddr(ppage*PageSize + req.Vaddr%PageSize)
	done(nil, req)
}
