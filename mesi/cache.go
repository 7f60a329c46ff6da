package mesi

import "github.com/sarchlab/mesisim/tracelog"

// memoryLatencyCycles is the fixed main-memory round-trip charged on
// every line fill that main memory (rather than a peer cache) must
// service: unconditionally on a write miss, and on any read miss that
// finds no sharer.
const memoryLatencyCycles = 100

// Stats accumulates one core's cache-level counters for the run.
// ReadCount, WriteCount, ExecCycles, and IdleCycles are not touched by
// Read/Write themselves; the driver (package sim) owns them, since
// whether an access counts as idle or executing depends on the result
// code the driver dispatches on, not on anything the cache itself
// decides.
type Stats struct {
	ReadCount         uint64
	WriteCount        uint64
	HitCount          uint64
	MissCount         uint64
	EvictionCount     uint64
	WritebackCount    uint64
	InvalidationCount uint64
	BusTrafficBytes   uint64
	ExecCycles        uint64
	IdleCycles        uint64
}

// MissRatePercent returns 100*miss/(reads+writes), or 0 if no access
// has been recorded yet.
func (s Stats) MissRatePercent() float64 {
	total := s.ReadCount + s.WriteCount
	if total == 0 {
		return 0
	}
	return 100 * float64(s.MissCount) / float64(total)
}

// Cache is one core's private, set-associative L1 cache. It holds a
// non-owning handle to the shared Bus and to the driver's global cycle
// counter; see the package doc comment for why Cache and Bus share a
// package rather than importing each other.
type Cache struct {
	id     int
	config Config
	sets   []CacheSet

	bus         *Bus
	globalCycle *uint64

	Stats Stats

	// RunID is the identifier trace.LoadFile minted for the trace this
	// cache is replaying. It has no effect on simulation results; it is
	// only surfaced in report output and debug-log lines so multiple
	// loads in the same process are distinguishable.
	RunID string

	debug tracelog.Sink
}

// NewCache creates the cache for core id. globalCycle must be the same
// counter the driver and Bus observe; it is read, never written, by
// Cache.
func NewCache(id int, config Config, globalCycle *uint64) *Cache {
	if config.Associativity == 0 {
		panic("mesi: cache configured with zero associativity")
	}
	if config.NumSets() == 0 {
		panic("mesi: cache configured with zero sets")
	}

	sets := make([]CacheSet, config.NumSets())
	for i := range sets {
		sets[i] = newCacheSet(config.Associativity)
	}
	return &Cache{
		id:          id,
		config:      config,
		sets:        sets,
		globalCycle: globalCycle,
		debug:       tracelog.Noop(),
	}
}

// ID returns the core (and cache) index this cache belongs to.
func (c *Cache) ID() int { return c.id }

// AttachBus gives this cache its handle to the shared bus. Call once
// per cache before any Read/Write. It does not add the cache to the
// bus's snoop list; Bus.RegisterCache does that.
func (c *Cache) AttachBus(bus *Bus) {
	c.bus = bus
}

// SetRunID installs the run identifier minted for this cache's trace
// load. Defaults to "" (no identifier) until set.
func (c *Cache) SetRunID(id string) {
	c.RunID = id
}

// SetDebugSink installs a debug trace sink. Defaults to a no-op sink.
func (c *Cache) SetDebugSink(sink tracelog.Sink) {
	if sink == nil {
		sink = tracelog.Noop()
	}
	c.debug = sink
}

func (c *Cache) cycle() uint64 { return *c.globalCycle }

// Read services a load from address. A hit retires immediately; a miss
// selects a victim, broadcasts BusRd, and fills the line Exclusive (no
// sharer, memory charged) or Shared (a peer supplied the block).
func (c *Cache) Read(address uint32) Result {
	if c.bus.isBusyFor(c.id) {
		c.debug.Printf("[%s] core %d: read 0x%x blocked, bus busy for self", c.RunID, c.id, address)
		return BusBusySelf
	}

	setIdx := c.config.setIndex(address)
	tag := c.config.tag(address)
	set := &c.sets[setIdx]

	if way := set.find(tag); way >= 0 {
		c.Stats.HitCount++
		set.Lines[way].LastAccessTime = c.cycle()
		c.debug.Printf("[%s] core %d: read 0x%x HIT way %d state %s", c.RunID, c.id, address, way, set.Lines[way].State)
		return Hit
	}

	if c.bus.isBusyForOther(c.id) {
		c.debug.Printf("[%s] core %d: read 0x%x blocked, bus busy for core %d", c.RunID, c.id, address, c.bus.currentRequestingCore)
		return BusBusyOther
	}

	c.Stats.MissCount++
	way := set.findVictim()
	victim := &set.Lines[way]
	c.evictIfNeeded(setIdx, way)

	dataFromOtherCache := c.bus.broadcastTransaction(BusRd, address, c.id)
	if !dataFromOtherCache {
		c.bus.addRemainingCycles(memoryLatencyCycles, c.id)
		victim.State = Exclusive
	} else {
		victim.State = Shared
	}

	blockSize := uint64(c.config.BlockSize())
	c.Stats.BusTrafficBytes += blockSize
	c.bus.addTraffic(blockSize)

	victim.Tag = tag
	victim.Dirty = false
	victim.LastAccessTime = c.cycle()

	c.debug.Printf("[%s] core %d: read 0x%x MISS way %d filled state %s", c.RunID, c.id, address, way, victim.State)
	return MissIssued
}

// Write services a store to address. A hit on a non-Modified line
// upgrades it through BusUpgr; a miss broadcasts BusRdX and fills the
// victim Modified, charging memory latency even when a peer held the
// block.
func (c *Cache) Write(address uint32) Result {
	if c.bus.isBusyFor(c.id) {
		c.debug.Printf("[%s] core %d: write 0x%x blocked, bus busy for self", c.RunID, c.id, address)
		return BusBusySelf
	}

	setIdx := c.config.setIndex(address)
	tag := c.config.tag(address)
	set := &c.sets[setIdx]

	if way := set.find(tag); way >= 0 {
		line := &set.Lines[way]
		if line.State != Modified {
			if c.bus.IsBusyNow() {
				c.debug.Printf("[%s] core %d: write 0x%x upgrade blocked, bus busy", c.RunID, c.id, address)
				return BusBusyOther
			}
			if line.State == Shared {
				c.Stats.InvalidationCount++
			}
			c.bus.broadcastTransaction(BusUpgr, address, c.id)
			line.State = Modified
		}
		c.Stats.HitCount++
		line.Dirty = true
		line.LastAccessTime = c.cycle()
		c.debug.Printf("[%s] core %d: write 0x%x HIT way %d state %s", c.RunID, c.id, address, way, line.State)
		return Hit
	}

	if c.bus.isBusyForOther(c.id) {
		c.debug.Printf("[%s] core %d: write 0x%x blocked, bus busy for core %d", c.RunID, c.id, address, c.bus.currentRequestingCore)
		return BusBusyOther
	}

	c.Stats.MissCount++
	way := set.findVictim()
	victim := &set.Lines[way]
	c.evictIfNeeded(setIdx, way)

	if c.bus.broadcastTransaction(BusRdX, address, c.id) {
		c.Stats.InvalidationCount++
	}
	c.bus.addRemainingCycles(memoryLatencyCycles, c.id)

	blockSize := uint64(c.config.BlockSize())
	c.Stats.BusTrafficBytes += blockSize
	c.bus.addTraffic(blockSize)

	victim.Tag = tag
	victim.State = Modified
	victim.Dirty = true
	victim.LastAccessTime = c.cycle()

	c.debug.Printf("[%s] core %d: write 0x%x MISS way %d filled state %s", c.RunID, c.id, address, way, victim.State)
	return MissIssued
}

// evictIfNeeded writes back the victim line if it is dirty and counts
// the eviction if the line held any valid data. It does not clear or
// change the line's state; the caller overwrites it immediately after.
func (c *Cache) evictIfNeeded(setIdx uint32, way int) {
	line := &c.sets[setIdx].Lines[way]
	if line.State == Modified {
		c.writeBack(setIdx, way)
	}
	if line.State.Valid() {
		c.Stats.EvictionCount++
	}
}

// writeBack flushes a dirty line to memory. It charges memory latency
// on the bus (additive with anything already pending) and clears the
// dirty bit, but leaves the MESI state alone; the caller decides the
// line's next state.
func (c *Cache) writeBack(setIdx uint32, way int) {
	c.Stats.WritebackCount++
	blockSize := uint64(c.config.BlockSize())
	c.Stats.BusTrafficBytes += blockSize
	c.bus.addTraffic(blockSize)
	c.bus.addRemainingCycles(memoryLatencyCycles, c.id)
	c.sets[setIdx].Lines[way].Dirty = false
	c.debug.Printf("[%s] core %d: writeback set %d way %d", c.RunID, c.id, setIdx, way)
}

// processBusTransaction is the snoop path, called by the bus on every
// cache other than the requester. Snooped writes invalidate a held
// line (writing back first if Modified); snooped reads downgrade E/M
// to Shared and, when dataRequested, supply the block and charge the
// cache-to-cache transfer latency. Returns whether this cache held a
// valid copy.
func (c *Cache) processBusTransaction(address uint32, isWrite bool, requestingCore int, dataRequested bool) bool {
	if requestingCore == c.id {
		return false
	}

	setIdx := c.config.setIndex(address)
	tag := c.config.tag(address)
	set := &c.sets[setIdx]

	way := set.find(tag)
	if way < 0 {
		return false
	}
	line := &set.Lines[way]

	if isWrite {
		if line.State == Modified {
			c.writeBack(setIdx, way)
		}
		line.State = Invalid
		c.debug.Printf("[%s] core %d: snoop invalidate set %d way %d", c.RunID, c.id, setIdx, way)
		return true
	}

	if line.State == Exclusive || line.State == Modified {
		if line.State == Modified {
			c.writeBack(setIdx, way)
		}
		line.State = Shared
		c.debug.Printf("[%s] core %d: snoop downgrade to SHARED set %d way %d", c.RunID, c.id, setIdx, way)
	}
	if dataRequested {
		blockSize := uint64(c.config.BlockSize())
		c.Stats.BusTrafficBytes += blockSize
		c.bus.addRemainingCycles(2*(int(blockSize)/4), c.id)
	}
	return true
}
