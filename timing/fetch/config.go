package fetch

import (
	"fmt"
	"log"
	"math/rand"
)

// Config holds the fetch unit's structural parameters.
type Config struct {
	NumThreads  int
	FetchWidth  int
	DecodeWidth int

	FetchBufferSize uint64
	CacheBlkSize    uint64
	FetchQueueSize  int

	SMTFetchPolicy        FetchPolicy
	SMTNumFetchingThreads int

	DecoupledFrontEnd          bool
	MaxOutstandingPrefetches   int
	MaxOutstandingTranslations int

	DecodeToFetchDelay int
	RenameToFetchDelay int
	IewToFetchDelay    int
	CommitToFetchDelay int

	// FullSystem enables interrupt ingestion from commit.
	FullSystem bool
}

// DefaultConfig returns a single-threaded 4-wide configuration with the
// decoupled front-end off.
func DefaultConfig() Config {
	return Config{
		NumThreads:                 1,
		FetchWidth:                 4,
		DecodeWidth:                4,
		FetchBufferSize:            16,
		CacheBlkSize:               64,
		FetchQueueSize:             8,
		SMTFetchPolicy:             RoundRobin,
		SMTNumFetchingThreads:      1,
		DecoupledFrontEnd:          false,
		MaxOutstandingPrefetches:   2,
		MaxOutstandingTranslations: 2,
		DecodeToFetchDelay:         1,
		RenameToFetchDelay:         1,
		IewToFetchDelay:            1,
		CommitToFetchDelay:         1,
	}
}

func (c Config) validate() {
	if c.NumThreads > MaxThreads {
		panic(fmt.Sprintf(
			"fetch: numThreads (%d) is larger than compiled limit (%d)",
			c.NumThreads, MaxThreads))
	}
	if c.FetchWidth > MaxWidth {
		panic(fmt.Sprintf(
			"fetch: fetchWidth (%d) is larger than compiled limit (%d)",
			c.FetchWidth, MaxWidth))
	}
	if c.DecodeWidth > MaxWidth {
		panic(fmt.Sprintf(
			"fetch: decodeWidth (%d) is larger than compiled limit (%d)",
			c.DecodeWidth, MaxWidth))
	}
	if c.FetchBufferSize > c.CacheBlkSize {
		panic(fmt.Sprintf(
			"fetch: fetch buffer size (%d B) is larger than the cache block (%d B)",
			c.FetchBufferSize, c.CacheBlkSize))
	}
	if c.CacheBlkSize%c.FetchBufferSize != 0 {
		panic(fmt.Sprintf(
			"fetch: cache block (%d B) is not a multiple of the fetch buffer (%d B)",
			c.CacheBlkSize, c.FetchBufferSize))
	}
	if c.SMTFetchPolicy == Branch {
		panic("fetch: branch-count fetch policy is unimplemented")
	}
	if c.DecoupledFrontEnd && c.SMTNumFetchingThreads != 1 {
		panic("fetch: the decoupled front-end requires a single fetching thread")
	}
}

// Option configures a Fetch beyond its Config.
type Option func(*Fetch)

// WithRNG injects the random source used when draining fetch queues to
// decode. Tests inject a seeded source for determinism.
func WithRNG(rng *rand.Rand) Option {
	return func(f *Fetch) {
		f.rng = rng
	}
}

// WithWarnf replaces the destination of fetch warnings (default
// log.Printf).
func WithWarnf(warnf func(format string, args ...any)) Option {
	return func(f *Fetch) {
		f.warnf = warnf
	}
}

var defaultWarnf = log.Printf
