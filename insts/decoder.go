package insts

import (
	"encoding/binary"
	"fmt"
)

// Opcode classes, taken from bits [31:28] of the encoding word.
const (
	classALUImm  = 0x0
	classALUReg  = 0x1
	classBranch  = 0x2
	classBranchR = 0x3
	classMacro   = 0x4
	classQuiesce = 0x5
	classSerial  = 0x6
	classMacroRom = 0x7
)

// Decoder turns raw memory bytes into StaticInsts. It consumes fixed-width
// words fed in through MoreBytes and produces one macro instruction per
// Decode call; macro-op micro-ops are fetched from the returned StaticInst
// or, for microcoded macro-ops, from the decoder's ROM.
type Decoder struct {
	word      uint32
	haveWord  bool
	instReady bool
}

// NewDecoder returns an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// NeedMoreBytes reports whether the decoder wants another word before it can
// produce an instruction.
func (d *Decoder) NeedMoreBytes() bool {
	return !d.haveWord
}

// InstReady reports whether a decoded instruction is available.
func (d *Decoder) InstReady() bool {
	return d.instReady
}

// MoreBytesSize returns how many bytes each MoreBytes call consumes.
func (d *Decoder) MoreBytesSize() int {
	return InstSize
}

// PCMask aligns an address down to an instruction boundary.
func (d *Decoder) PCMask() uint64 {
	return ^uint64(InstSize - 1)
}

// MoreBytes feeds the decoder the instruction word at fetchAddr. The data
// slice must hold at least MoreBytesSize bytes. fetchAddr must equal the
// masked instruction address of pc.
func (d *Decoder) MoreBytes(pc *PCState, fetchAddr uint64, data []byte) {
	_ = pc
	_ = fetchAddr
	d.word = binary.LittleEndian.Uint32(data)
	d.haveWord = true
	d.instReady = true
}

// Reset discards buffered bytes and any pending instruction.
func (d *Decoder) Reset() {
	d.word = 0
	d.haveWord = false
	d.instReady = false
}

// Decode consumes the buffered word and returns its macro instruction.
// For microcoded macro-ops the micro-PC of pc is pointed into the ROM.
// Decode must only be called when InstReady reports true.
func (d *Decoder) Decode(pc *PCState) *StaticInst {
	if !d.instReady {
		panic("insts: Decode called with no instruction ready")
	}
	word := d.word
	d.haveWord = false
	d.instReady = false

	inst := decodeWord(word)
	if inst.IsMacroop && word>>28 == classMacroRom {
		pc.SetMicroPC(RomMicroPCStart)
	}
	return inst
}

// FetchRomMicroop returns the ROM micro-op at upc. upc must be in the ROM
// range; out-of-range values return a faulting placeholder.
func (d *Decoder) FetchRomMicroop(upc uint64) *StaticInst {
	idx := upc - RomMicroPCStart
	if !IsRomMicroPC(upc) || idx >= uint64(len(microRom)) {
		return badMicroop
	}
	return microRom[idx]
}

func decodeWord(word uint32) *StaticInst {
	if word == 0 {
		return NopInst
	}

	switch word >> 28 {
	case classALUImm:
		return &StaticInst{
			Mnemonic:      "addi",
			RawWord:       word,
			IsLastMicroop: true,
		}
	case classALUReg:
		return &StaticInst{
			Mnemonic:      "add",
			RawWord:       word,
			IsLastMicroop: true,
		}
	case classBranch:
		return &StaticInst{
			Mnemonic:       "b",
			RawWord:        word,
			IsControl:      true,
			IsDirectBranch: true,
			IsLastMicroop:  true,
			BranchDisp:     branchDisp(word),
		}
	case classBranchR:
		return &StaticInst{
			Mnemonic:      "br",
			RawWord:       word,
			IsControl:     true,
			IsLastMicroop: true,
		}
	case classMacro:
		return buildMacroop(word)
	case classQuiesce:
		return &StaticInst{
			Mnemonic:      "wfi",
			RawWord:       word,
			IsQuiesce:     true,
			IsLastMicroop: true,
		}
	case classSerial:
		return &StaticInst{
			Mnemonic:        "serial",
			RawWord:         word,
			IsDelayedCommit: true,
			IsLastMicroop:   true,
		}
	case classMacroRom:
		return &StaticInst{
			Mnemonic:  "mrom",
			RawWord:   word,
			IsMacroop: true,
		}
	default:
		return &StaticInst{
			Mnemonic:      "unimp",
			RawWord:       word,
			IsLastMicroop: true,
		}
	}
}

// buildMacroop expands an inline macro-op into 2-4 micro-ops selected by
// bits [25:24]. Every micro-op but the last carries the delayed-commit flag
// so interrupts cannot split the expansion.
func buildMacroop(word uint32) *StaticInst {
	n := int(word>>24&0x3)%3 + 2
	m := &StaticInst{
		Mnemonic:  "mop",
		RawWord:   word,
		IsMacroop: true,
	}
	for i := 0; i < n; i++ {
		u := &StaticInst{
			Mnemonic: fmt.Sprintf("mop.u%d", i),
			RawWord:  word,
		}
		if i == n-1 {
			u.IsLastMicroop = true
		} else {
			u.IsDelayedCommit = true
		}
		m.microops = append(m.microops, u)
	}
	return m
}

// branchDisp sign-extends the 24-bit word-offset field of a direct branch
// into a byte displacement.
func branchDisp(word uint32) int64 {
	off := int64(word & 0xFFFFFF)
	if off&0x800000 != 0 {
		off -= 0x1000000
	}
	return off << 2
}

// microRom is the microcoded expansion shared by all ROM macro-ops: a short
// serializing sequence ending in a regular micro-op.
var microRom = []*StaticInst{
	{Mnemonic: "urom.ser0", IsDelayedCommit: true},
	{Mnemonic: "urom.ser1", IsDelayedCommit: true},
	{Mnemonic: "urom.end", IsLastMicroop: true},
}
