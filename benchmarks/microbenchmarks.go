// Package benchmarks provides front-end microbenchmarks: small synthetic
// instruction streams that each stress one fetch-path characteristic, and a
// harness that runs them through the full front-end and reports bandwidth.
package benchmarks

import (
	"encoding/binary"
	"time"

	"github.com/sarchlab/o3sim/timing/core"
	"github.com/sarchlab/o3sim/timing/fetch"
)

// Benchmark is one synthetic instruction stream.
type Benchmark struct {
	// Name identifies the benchmark.
	Name string

	// Description explains what the benchmark stresses.
	Description string

	// Program is the instruction image, little-endian.
	Program []byte

	// Cycles is how long to run the front-end.
	Cycles uint64
}

// Result holds the front-end metrics of a single run.
type Result struct {
	Name string

	Cycles    uint64
	Delivered uint64

	// Bandwidth is delivered instructions per cycle.
	Bandwidth float64

	PredictedBranches uint64
	IcacheHits        uint64
	IcacheMisses      uint64
	PrefetchesIssued  uint64

	WallTime time.Duration
}

// FrontEndBenchmarks returns the standard microbenchmark set.
func FrontEndBenchmarks() []Benchmark {
	return []Benchmark{
		straightLine(),
		tightLoop(),
		blockStriding(),
		branchDense(),
	}
}

// Run executes bench on a front-end built from cfg and collects the
// metrics.
func Run(bench Benchmark, cfg core.Config) Result {
	c := core.New(cfg, fetch.WithRNG(core.NewSeededRNG(1)))
	c.LoadProgram(0, 0, bench.Program)

	start := time.Now()
	c.Run(bench.Cycles)
	wall := time.Since(start)

	stats := c.Fetch().Stats()
	ic := c.Icache().Stats()
	delivered := uint64(len(c.Delivered()))

	r := Result{
		Name:              bench.Name,
		Cycles:            bench.Cycles,
		Delivered:         delivered,
		PredictedBranches: stats.PredictedBranches,
		IcacheHits:        ic.Hits,
		IcacheMisses:      ic.Misses,
		PrefetchesIssued:  stats.PfIssued,
		WallTime:          wall,
	}
	if bench.Cycles > 0 {
		r.Bandwidth = float64(delivered) / float64(bench.Cycles)
	}
	return r
}

// straightLine measures peak sequential fetch bandwidth: independent ALU
// words with no control flow.
func straightLine() Benchmark {
	return Benchmark{
		Name:        "straight_line",
		Description: "256 sequential ALU instructions, no branches",
		Program:     buildProgram(repeatWord(aluWord(1), 256)...),
		Cycles:      400,
	}
}

// tightLoop measures taken-branch handling: a short body that refetches
// from the fetch buffer every iteration.
func tightLoop() Benchmark {
	words := []uint32{aluWord(1), aluWord(2), aluWord(3), branchWord(-12)}
	return Benchmark{
		Name:        "tight_loop",
		Description: "3 ALU ops plus a backward branch, resident in one fetch buffer",
		Program:     buildProgram(words...),
		Cycles:      400,
	}
}

// blockStriding measures cache-block turnover: the stream spans many cache
// blocks so every few buffers miss to a new one.
func blockStriding() Benchmark {
	return Benchmark{
		Name:        "block_striding",
		Description: "2 KiB sequential stream crossing 32 cache blocks",
		Program:     buildProgram(repeatWord(aluWord(1), 512)...),
		Cycles:      1200,
	}
}

// branchDense runs eight straight-line words and then a backward branch, so
// fetch keeps redirecting into a six-instruction loop.
func branchDense() Benchmark {
	var words []uint32
	for i := 0; i < 8; i++ {
		words = append(words, aluWord(uint32(i)))
	}
	// Branch back over the last five words; the loop stays inside one block.
	words = append(words, branchWord(-20))
	return Benchmark{
		Name:        "branch_dense",
		Description: "short backward loop entered after a warmup run",
		Program:     buildProgram(words...),
		Cycles:      400,
	}
}

func aluWord(imm uint32) uint32 {
	return imm & 0x00FF_FFFF
}

func branchWord(disp int32) uint32 {
	return 0x2<<28 | (uint32(disp>>2) & 0xFFFFFF)
}

func repeatWord(w uint32, n int) []uint32 {
	ws := make([]uint32, n)
	for i := range ws {
		ws[i] = w
	}
	return ws
}

func buildProgram(words ...uint32) []byte {
	img := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(img[i*4:], w)
	}
	return img
}
