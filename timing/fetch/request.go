package fetch

import "github.com/rs/xid"

// Request is an instruction-fetch memory request. Requests are matched by
// pointer identity throughout the unit; the ID exists for logging and for
// collaborators that outlive the pointer.
type Request struct {
	ID        string
	Vaddr     uint64
	Size      uint64
	Tid       ThreadID
	ContextID int

	// PC is the instruction address that initiated the request. It may
	// differ from Vaddr, which is aligned to the fetch buffer.
	PC uint64

	paddr    uint64
	hasPaddr bool

	// TransStart is the cycle translation was issued, for latency
	// accounting.
	TransStart uint64
}

// NewRequest builds a fetch request for the fetch-buffer block at vaddr.
func NewRequest(vaddr, size uint64, tid ThreadID, pc uint64) *Request {
	return &Request{
		ID:        xid.New().String(),
		Vaddr:     vaddr,
		Size:      size,
		Tid:       tid,
		ContextID: int(tid),
		PC:        pc,
	}
}

// SetPaddr records the physical address. A request with a known physical
// address skips translation.
func (r *Request) SetPaddr(paddr uint64) {
	r.paddr = paddr
	r.hasPaddr = true
}

// Paddr returns the physical address. Only valid after SetPaddr.
func (r *Request) Paddr() uint64 {
	return r.paddr
}

// HasPaddr reports whether the physical address is known.
func (r *Request) HasPaddr() bool {
	return r.hasPaddr
}

// Packet is the unit of exchange with the instruction cache: a request plus
// the data buffer the cache fills.
type Packet struct {
	Req  *Request
	Data []byte

	// AccessDepth is how far down the hierarchy the access had to go:
	// 0 for a first-level hit, 1 otherwise.
	AccessDepth int

	// SendCycle is when the packet was issued to the cache.
	SendCycle uint64
}

// NewPacket wraps req with a data buffer of the request's size.
func NewPacket(req *Request) *Packet {
	return &Packet{
		Req:  req,
		Data: make([]byte, req.Size),
	}
}
