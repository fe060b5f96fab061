// Package main provides the entry point for the o3sim front-end runner.
// It loads a small instruction image, runs the fetch unit for a number of
// cycles, and prints the fetch statistics.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sarchlab/o3sim/loader"
	"github.com/sarchlab/o3sim/timing/core"
	"github.com/sarchlab/o3sim/timing/fetch"
)

var (
	cycles  = flag.Uint64("cycles", 1000, "Number of cycles to simulate")
	dfe     = flag.Bool("dfe", false, "Enable the decoupled front-end")
	threads = flag.Int("threads", 1, "Number of hardware threads")
	policy  = flag.String("policy", "roundrobin",
		"SMT fetch policy: roundrobin, iqcount, lsqcount")
	imagePath = flag.String("image", "",
		"Path to an instruction image: a .hex/.txt listing (one 32-bit word "+
			"per line) or a raw little-endian binary; "+
			"empty runs the built-in demo loop")
	seed    = flag.Int64("seed", 1, "RNG seed for the decode handoff")
	verbose = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	fetchPolicy, err := parsePolicy(*policy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "o3sim: %v\n", err)
		os.Exit(1)
	}

	prog, err := loadProgram(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "o3sim: %v\n", err)
		os.Exit(1)
	}

	cfg := core.DefaultConfig()
	cfg.Fetch.NumThreads = *threads
	cfg.Fetch.SMTFetchPolicy = fetchPolicy
	cfg.Fetch.DecoupledFrontEnd = *dfe
	cfg.BAC.NumThreads = *threads

	c := core.New(cfg, fetch.WithRNG(core.NewSeededRNG(*seed)))
	for tid := 0; tid < *threads; tid++ {
		c.LoadProgram(fetch.ThreadID(tid), prog.EntryPoint, prog.Image)
	}

	if *verbose {
		fmt.Printf("Image: %d instructions at %#x\n",
			len(prog.Image)/4, prog.EntryPoint)
		fmt.Printf("Threads: %d, policy: %s, decoupled front-end: %v\n",
			*threads, fetchPolicy, *dfe)
	}

	c.Run(*cycles)

	printStats(c)
}

func parsePolicy(name string) (fetch.FetchPolicy, error) {
	switch strings.ToLower(name) {
	case "roundrobin":
		return fetch.RoundRobin, nil
	case "iqcount":
		return fetch.IQCount, nil
	case "lsqcount":
		return fetch.LSQCount, nil
	}
	return 0, fmt.Errorf("unknown fetch policy %q", name)
}

// loadProgram reads the image at path, or the built-in demo loop when path
// is empty.
func loadProgram(path string) (*loader.Program, error) {
	if path == "" {
		return &loader.Program{Image: demoImage()}, nil
	}
	return loader.Load(path)
}

// demoImage is a 16-instruction loop: the zero word (a nop), fourteen
// immediate ALU ops, and a backward branch to the start.
func demoImage() []byte {
	var image []byte
	word := func(w uint32) {
		image = append(image, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	for i := 0; i < 15; i++ {
		word(uint32(i)) // addi; i == 0 gives the zero word, a nop
	}
	disp := int32(-15 * 4)
	word(0x2<<28 | (uint32(disp>>2) & 0xFFFFFF)) // b back to 0
	return image
}

func printStats(c *core.Core) {
	s := c.Fetch().Stats()

	fmt.Println("fetch statistics")
	fmt.Println("----------------")
	row := func(name string, v uint64) {
		fmt.Printf("  %-28s %12d\n", name, v)
	}
	row("cycles", s.Cycles)
	row("delivered", uint64(len(c.Delivered())))
	row("predictedBranches", s.PredictedBranches)
	row("cacheLines", s.CacheLines)
	row("squashCycles", s.SquashCycles)
	row("icacheStallCycles", s.IcacheStallCycles)
	row("icacheWaitRetryStallCycles", s.IcacheWaitRetryStallCycles)
	row("tlbCycles", s.TlbCycles)
	row("idleCycles", s.IdleCycles)
	row("blockedCycles", s.BlockedCycles)
	row("miscStallCycles", s.MiscStallCycles)
	row("icacheSquashes", s.IcacheSquashes)
	row("tlbSquashes", s.TlbSquashes)
	row("demandHit", s.DemandHit)
	row("demandMiss", s.DemandMiss)
	fmt.Printf("  %-28s %12.3f\n", "meanInstsPerCycle", s.NisnDist.Mean())

	if c.Fetch().Stats().PfIssued > 0 || *dfe {
		fmt.Println("decoupled front-end")
		fmt.Println("-------------------")
		row("ftqStallCycles", s.FtqStallCycles)
		row("ftCrossCacheBlock", s.FtCrossCacheBlock)
		row("pfIssued", s.PfIssued)
		row("pfReceived", s.PfReceived)
		row("pfSquashed", s.PfSquashed)
		row("pfLate", s.PfLate)
		row("pfInCache", s.PfInCache)
		row("pfLimitReached", s.PfLimitReached)
		row("pfTranslationLimitReached", s.PfTranslationLimitReached)
		fmt.Printf("  %-28s %12.3f\n", "prefetchAccuracy", s.PrefetchAccuracy())
		fmt.Printf("  %-28s %12.3f\n", "prefetchCoverage", s.PrefetchCoverage())
	}

	ic := c.Icache().Stats()
	fmt.Println("icache")
	fmt.Println("------")
	row("accesses", ic.Accesses)
	row("hits", ic.Hits)
	row("misses", ic.Misses)
	row("evictions", ic.Evictions)
	row("retries", ic.Retries)

	if *verbose {
		fmt.Printf("coreIdleCycles: %d\n", c.IdleCycles())
	}
}
