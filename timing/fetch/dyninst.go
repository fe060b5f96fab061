package fetch

import "github.com/sarchlab/o3sim/insts"

// DynInst is a dynamic instruction: one micro-op instance in flight, with
// its fetch-time PC, predicted next PC, and any fault attached on the way.
type DynInst struct {
	SeqNum     InstSeqNum
	Tid        ThreadID
	StaticInst *insts.StaticInst
	Macroop    *insts.StaticInst
	PC         *insts.PCState
	PredPC     *insts.PCState
	Fault      *Fault

	// NotAnInst marks a placeholder built only to carry a fault to
	// commit.
	NotAnInst bool
}

// SetPredTarg records the predicted next PC.
func (d *DynInst) SetPredTarg(pc *insts.PCState) {
	d.PredPC = pc.Clone()
}
