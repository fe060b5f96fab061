package fetch

import "math/bits"

// Distribution is a bounded probability-density sample set: values are
// clamped into [0, max] buckets.
type Distribution struct {
	Buckets []uint64
	Samples uint64
}

// NewDistribution creates a distribution over [0, max].
func NewDistribution(max int) *Distribution {
	return &Distribution{
		Buckets: make([]uint64, max+1),
	}
}

// Sample records one value, clamped into range.
func (d *Distribution) Sample(v int) {
	if v < 0 {
		v = 0
	}
	if v >= len(d.Buckets) {
		v = len(d.Buckets) - 1
	}
	d.Buckets[v]++
	d.Samples++
}

// Mean returns the average sampled value.
func (d *Distribution) Mean() float64 {
	if d.Samples == 0 {
		return 0
	}
	var sum uint64
	for v, n := range d.Buckets {
		sum += uint64(v) * n
	}
	return float64(sum) / float64(d.Samples)
}

// log2Cycles buckets a latency for the logarithmic histograms.
func log2Cycles(lat uint64) int {
	if lat == 0 {
		return 0
	}
	return bits.Len64(lat) - 1
}

// Statistics aggregates the fetch unit's counters. Derived ratios are
// methods.
type Statistics struct {
	PredictedBranches uint64
	Cycles            uint64

	SquashCycles              uint64
	TlbCycles                 uint64
	FtqStallCycles            uint64
	IdleCycles                uint64
	BlockedCycles             uint64
	MiscStallCycles           uint64
	PendingDrainCycles        uint64
	NoActiveThreadStallCycles uint64
	PendingTrapStallCycles    uint64
	PendingQuiesceStallCycles uint64
	IcacheStallCycles         uint64
	IcacheWaitRetryStallCycles uint64

	CacheLines     uint64
	IcacheSquashes uint64
	TlbSquashes    uint64

	NisnDist           *Distribution
	InstrAccessLatency *Distribution
	TranslationLatency *Distribution
	MemReqInFlight     *Distribution

	FtReadyToFetch          uint64
	FtPrefetchInProgress    uint64
	FtTranslationInProgress uint64
	FtTranslationReady      uint64
	FtTranslationFailed     uint64
	FtCrossCacheBlock       uint64
	FtCrossCacheBlockNotNext uint64

	DemandHit                 uint64
	DemandMiss                uint64
	PfIssued                  uint64
	PfReceived                uint64
	PfLate                    uint64
	PfInCache                 uint64
	PfSquashed                uint64
	PfLimitReached            uint64
	PfTranslationLimitReached uint64
}

func newStatistics(fetchWidth int) Statistics {
	return Statistics{
		NisnDist:           NewDistribution(fetchWidth),
		InstrAccessLatency: NewDistribution(10),
		TranslationLatency: NewDistribution(10),
		MemReqInFlight:     NewDistribution(10),
	}
}

// IdleRate returns the fraction of accounted cycles spent idle.
func (s *Statistics) IdleRate() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.IdleCycles) / float64(s.Cycles)
}

// PrefetchAccuracy returns the fraction of issued prefetches that were not
// squashed.
func (s *Statistics) PrefetchAccuracy() float64 {
	if s.PfIssued == 0 {
		return 0
	}
	return float64(s.PfIssued-s.PfSquashed) / float64(s.PfIssued)
}

// PrefetchCoverage returns the fraction of demand accesses that hit,
// i.e. were covered by an earlier prefetch or reuse.
func (s *Statistics) PrefetchCoverage() float64 {
	total := s.DemandHit + s.DemandMiss
	if total == 0 {
		return 0
	}
	return float64(s.DemandHit) / float64(total)
}
