// Package icache models a blocking-free instruction cache with a bounded
// MSHR pool. Tag and replacement state live in an Akita cache directory;
// fills come from the physical memory model.
package icache

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/o3sim/mem"
	"github.com/sarchlab/o3sim/timing/fetch"
)

// ResponsePort is the fetch-side surface the cache delivers into.
type ResponsePort interface {
	RecvTimingResp(pkt *fetch.Packet)
	RecvReqRetry()
}

// Config holds the cache's structural and timing parameters.
type Config struct {
	Size          int
	Associativity int
	BlockSize     int

	HitLatency  int
	MissLatency int

	// NumMSHRs bounds concurrent outstanding accesses. SendTimingReq
	// returns false when they are exhausted.
	NumMSHRs int
}

// DefaultConfig returns a 16 KiB two-way cache with 64 B blocks.
func DefaultConfig() Config {
	return Config{
		Size:          16 * 1024,
		Associativity: 2,
		BlockSize:     64,
		HitLatency:    1,
		MissLatency:   10,
		NumMSHRs:      4,
	}
}

func (c Config) validate() {
	if c.Size%(c.Associativity*c.BlockSize) != 0 {
		panic(fmt.Sprintf(
			"icache: size (%d B) is not divisible by assoc*blockSize (%d)",
			c.Size, c.Associativity*c.BlockSize))
	}
	if c.NumMSHRs < 1 {
		panic("icache: at least one MSHR is required")
	}
}

// Statistics counts cache-level events.
type Statistics struct {
	Accesses  uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Retries   uint64
}

type inflightAccess struct {
	pkt        *fetch.Packet
	depth      int
	cyclesLeft int
}

// Cache is the timing instruction cache. Accesses resolve their tag state
// at send time and deliver their response after the hit or miss latency.
type Cache struct {
	cfg Config

	directory *akitacache.DirectoryImpl
	dataStore [][]byte

	memory *mem.Memory
	port   ResponsePort

	inflight     []*inflightAccess
	retryPending bool

	stats Statistics
}

// New builds a cache backed by memory. The response port is attached
// separately, after the fetch side exists.
func New(cfg Config, memory *mem.Memory) *Cache {
	cfg.validate()
	numSets := cfg.Size / (cfg.Associativity * cfg.BlockSize)
	totalBlocks := numSets * cfg.Associativity

	dataStore := make([][]byte, totalBlocks)
	for i := range dataStore {
		dataStore[i] = make([]byte, cfg.BlockSize)
	}

	return &Cache{
		cfg: cfg,
		directory: akitacache.NewDirectory(
			numSets,
			cfg.Associativity,
			cfg.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		dataStore: dataStore,
		memory:    memory,
	}
}

// SetPort attaches the fetch-side response port.
func (c *Cache) SetPort(port ResponsePort) {
	c.port = port
}

// Stats returns the event counters.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// Outstanding returns the number of occupied MSHRs.
func (c *Cache) Outstanding() int {
	return len(c.inflight)
}

func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.cfg.Associativity + block.WayID
}

// SendTimingReq accepts an access, or returns false when every MSHR is
// busy. A rejected sender gets exactly one RecvReqRetry once an MSHR
// frees.
func (c *Cache) SendTimingReq(pkt *fetch.Packet) bool {
	if len(c.inflight) >= c.cfg.NumMSHRs {
		c.retryPending = true
		c.stats.Retries++
		return false
	}

	c.stats.Accesses++
	blockAddr := pkt.Req.Paddr() &^ uint64(c.cfg.BlockSize-1)

	block := c.directory.Lookup(0, blockAddr)
	depth := 0
	latency := c.cfg.HitLatency
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
	} else {
		c.stats.Misses++
		depth = 1
		latency = c.cfg.MissLatency
		block = c.fill(blockAddr)
	}

	offset := pkt.Req.Paddr() - blockAddr
	copy(pkt.Data, c.dataStore[c.blockIndex(block)][offset:])

	c.inflight = append(c.inflight, &inflightAccess{
		pkt:        pkt,
		depth:      depth,
		cyclesLeft: latency,
	})
	return true
}

// fill installs the block at blockAddr from memory, evicting the LRU way.
func (c *Cache) fill(blockAddr uint64) *akitacache.Block {
	victim := c.directory.FindVictim(blockAddr)
	if victim.IsValid {
		c.stats.Evictions++
	}

	data := c.dataStore[c.blockIndex(victim)]
	c.memory.Read(blockAddr, data)

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = false
	c.directory.Visit(victim)
	return victim
}

// Tick ages in-flight accesses, delivers the ones whose latency expired,
// and raises a retry when a rejection is pending and an MSHR has freed.
func (c *Cache) Tick() {
	remaining := c.inflight[:0]
	var ready []*inflightAccess
	for _, a := range c.inflight {
		a.cyclesLeft--
		if a.cyclesLeft <= 0 {
			ready = append(ready, a)
		} else {
			remaining = append(remaining, a)
		}
	}
	c.inflight = remaining

	for _, a := range ready {
		a.pkt.AccessDepth = a.depth
		c.port.RecvTimingResp(a.pkt)
	}

	if c.retryPending && len(c.inflight) < c.cfg.NumMSHRs {
		c.retryPending = false
		c.port.RecvReqRetry()
	}
}
