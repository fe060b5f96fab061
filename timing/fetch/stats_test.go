package fetch_test

import (
	"testing"

	"github.com/sarchlab/o3sim/timing/fetch"
)

func TestDistributionClampsSamples(t *testing.T) {
	d := fetch.NewDistribution(4)
	d.Sample(-1)
	d.Sample(0)
	d.Sample(4)
	d.Sample(9)

	if d.Samples != 4 {
		t.Fatalf("samples = %d, want 4", d.Samples)
	}
	if d.Buckets[0] != 2 {
		t.Errorf("bucket 0 = %d, want 2 (negative clamps to zero)", d.Buckets[0])
	}
	if d.Buckets[4] != 2 {
		t.Errorf("bucket 4 = %d, want 2 (overflow clamps to max)", d.Buckets[4])
	}
}

func TestDistributionMean(t *testing.T) {
	d := fetch.NewDistribution(8)
	if d.Mean() != 0 {
		t.Errorf("empty mean = %v, want 0", d.Mean())
	}
	for _, v := range []int{2, 4, 6} {
		d.Sample(v)
	}
	if got := d.Mean(); got != 4 {
		t.Errorf("mean = %v, want 4", got)
	}
}

func TestStatisticsRatios(t *testing.T) {
	var s fetch.Statistics

	if s.IdleRate() != 0 || s.PrefetchAccuracy() != 0 || s.PrefetchCoverage() != 0 {
		t.Fatal("zero-valued statistics must report zero ratios")
	}

	s.Cycles = 10
	s.IdleCycles = 2
	if got := s.IdleRate(); got != 0.2 {
		t.Errorf("IdleRate = %v, want 0.2", got)
	}

	s.PfIssued = 8
	s.PfSquashed = 2
	if got := s.PrefetchAccuracy(); got != 0.75 {
		t.Errorf("PrefetchAccuracy = %v, want 0.75", got)
	}

	s.DemandHit = 3
	s.DemandMiss = 1
	if got := s.PrefetchCoverage(); got != 0.75 {
		t.Errorf("PrefetchCoverage = %v, want 0.75", got)
	}
}
