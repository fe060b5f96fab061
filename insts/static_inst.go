package insts

// StaticInst is the decoded, PC-independent form of an instruction or
// micro-op. The pipeline only inspects the capability flags; it never
// executes the operation.
type StaticInst struct {
	Mnemonic string
	RawWord  uint32

	IsMacroop       bool
	IsLastMicroop   bool
	IsDelayedCommit bool
	IsControl       bool
	IsDirectBranch  bool
	IsQuiesce       bool
	IsNop           bool
	NotAnInst       bool

	// BranchDisp is the signed byte displacement of a direct branch,
	// relative to the branch's own address.
	BranchDisp int64

	microops []*StaticInst
}

// FetchMicroop returns the micro-op at upc within this macro-op's inline
// expansion. Calling it on a non-macro-op or past the expansion returns a
// faulting placeholder rather than nil so the pipeline can carry it.
func (s *StaticInst) FetchMicroop(upc uint64) *StaticInst {
	if !s.IsMacroop || upc >= uint64(len(s.microops)) {
		return badMicroop
	}
	return s.microops[upc]
}

// NumMicroops returns the inline expansion length, 0 for non-macro-ops.
func (s *StaticInst) NumMicroops() int {
	return len(s.microops)
}

// BranchTarget returns the target address of a direct branch located at pc.
func (s *StaticInst) BranchTarget(pc uint64) uint64 {
	return uint64(int64(pc) + s.BranchDisp)
}

// NopInst is a harmless placeholder instruction. The trap path attaches it
// to fault-carrying dynamic instructions.
var NopInst = &StaticInst{
	Mnemonic:      "nop",
	IsNop:         true,
	IsLastMicroop: true,
}

var badMicroop = &StaticInst{
	Mnemonic:      "badupc",
	NotAnInst:     true,
	IsLastMicroop: true,
}
