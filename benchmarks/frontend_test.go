package benchmarks_test

import (
	"testing"

	"github.com/sarchlab/o3sim/benchmarks"
	"github.com/sarchlab/o3sim/timing/core"
)

func TestFrontEndBenchmarksDeliver(t *testing.T) {
	for _, bench := range benchmarks.FrontEndBenchmarks() {
		t.Run(bench.Name, func(t *testing.T) {
			r := benchmarks.Run(bench, core.DefaultConfig())

			if r.Delivered == 0 {
				t.Fatal("no instructions delivered")
			}
			width := float64(core.DefaultConfig().Fetch.FetchWidth)
			if r.Bandwidth <= 0 || r.Bandwidth > width {
				t.Errorf("bandwidth = %.3f, want in (0, %.0f]", r.Bandwidth, width)
			}
			if r.IcacheMisses == 0 {
				t.Error("expected at least one cold icache miss")
			}
		})
	}
}

func TestTightLoopPredictsBranches(t *testing.T) {
	r := benchmarks.Run(benchmarks.FrontEndBenchmarks()[1], core.DefaultConfig())
	if r.PredictedBranches == 0 {
		t.Error("tight loop ran without predicted branches")
	}
	if r.IcacheMisses != 1 {
		t.Errorf("icache misses = %d, want 1 (loop stays in one block)", r.IcacheMisses)
	}
}

func TestDecoupledFrontEndPrefetches(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Fetch.DecoupledFrontEnd = true

	r := benchmarks.Run(benchmarks.FrontEndBenchmarks()[0], cfg)
	if r.PrefetchesIssued == 0 {
		t.Error("decoupled front-end issued no prefetches")
	}
	if r.Delivered == 0 {
		t.Error("no instructions delivered")
	}
}

func BenchmarkStraightLine(b *testing.B) {
	bench := benchmarks.FrontEndBenchmarks()[0]
	cfg := core.DefaultConfig()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		benchmarks.Run(bench, cfg)
	}
}

func BenchmarkTightLoop(b *testing.B) {
	bench := benchmarks.FrontEndBenchmarks()[1]
	cfg := core.DefaultConfig()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		benchmarks.Run(bench, cfg)
	}
}
