// Package insts provides the instruction capability layer for the timing
// front-end: program-counter state, static instruction descriptors, and a
// fixed-width decoder with macro-op expansion and a micro-op ROM.
//
// The ISA modeled here is deliberately narrow. It carries exactly the
// properties the pipeline needs to observe (control flow, macro-op
// boundaries, serialization, quiesce) without modeling execution semantics.
package insts

// InstSize is the fixed instruction encoding width in bytes.
const InstSize = 4

// RomMicroPCStart is the first micro-PC value that addresses the micro-op
// ROM rather than a macro-op's inline expansion.
const RomMicroPCStart uint64 = 1 << 15

// IsRomMicroPC reports whether upc selects the micro-op ROM.
func IsRomMicroPC(upc uint64) bool {
	return upc >= RomMicroPCStart
}

// PCState tracks the program counter of one instruction stream: the address
// of the current macro instruction, the micro-PC within its expansion, and
// the next values of both.
type PCState struct {
	addr uint64
	npc  uint64
	upc  uint64
	nupc uint64
}

// NewPCState returns a PCState positioned at addr with a fall-through next
// PC and a fresh micro-op sequence.
func NewPCState(addr uint64) *PCState {
	p := &PCState{}
	p.Set(addr)
	return p
}

// Clone returns an independent copy.
func (p *PCState) Clone() *PCState {
	q := *p
	return &q
}

// InstAddr returns the address of the current macro instruction.
func (p *PCState) InstAddr() uint64 {
	return p.addr
}

// MicroPC returns the micro-PC within the current macro-op expansion.
func (p *PCState) MicroPC() uint64 {
	return p.upc
}

// NPC returns the next macro instruction address.
func (p *PCState) NPC() uint64 {
	return p.npc
}

// SetNPC overrides the predicted next macro instruction address.
func (p *PCState) SetNPC(npc uint64) {
	p.npc = npc
}

// SetMicroPC repositions the micro-PC, keeping the macro address.
func (p *PCState) SetMicroPC(upc uint64) {
	p.upc = upc
	p.nupc = upc + 1
}

// Branching reports whether the stream leaves the fall-through path, either
// at the macro level or within a micro-op sequence.
func (p *PCState) Branching() bool {
	return p.npc != p.addr+InstSize || p.nupc != p.upc+1
}

// Set repositions the stream at addr, resetting the micro-op sequence and
// predicting fall-through.
func (p *PCState) Set(addr uint64) {
	p.addr = addr
	p.npc = addr + InstSize
	p.upc = 0
	p.nupc = 1
}

// Advance moves to the next macro instruction.
func (p *PCState) Advance() {
	p.addr = p.npc
	p.npc = p.addr + InstSize
	p.upc = 0
	p.nupc = 1
}

// UAdvance moves to the next micro-op within the current macro-op.
func (p *PCState) UAdvance() {
	p.upc = p.nupc
	p.nupc = p.upc + 1
}
