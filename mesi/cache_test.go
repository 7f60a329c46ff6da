package mesi_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mesisim/mesi"
)

// smallConfig gives 2 sets, 2-way associative, 4-byte blocks: small
// enough to force collisions and evictions in a handful of addresses.
func smallConfig() mesi.Config {
	return mesi.Config{SetIndexBits: 1, Associativity: 2, BlockBits: 2}
}

// newSystem wires numCores caches onto one bus sharing one global cycle
// counter, registered in ascending core-id order.
func newSystem(numCores int, cfg mesi.Config) ([]*mesi.Cache, *mesi.Bus, *uint64) {
	cycle := new(uint64)
	bus := mesi.NewBus(cycle)
	caches := make([]*mesi.Cache, numCores)
	for i := 0; i < numCores; i++ {
		c := mesi.NewCache(i, cfg, cycle)
		c.AttachBus(bus)
		bus.RegisterCache(c)
		caches[i] = c
	}
	return caches, bus, cycle
}

// drainBus ticks the bus until it goes idle, standing in for the
// driver's per-cycle UpdateBusState call so a test can issue a second
// access from the same core without tripping its own self-busy gate.
func drainBus(bus *mesi.Bus) {
	for i := 0; i < 10000 && bus.IsBusyNow(); i++ {
		bus.UpdateBusState()
	}
}

var _ = Describe("Cache and Bus", func() {

	It("blocks a second core's miss handling while the bus services another core's miss", func() {
		caches, bus, _ := newSystem(2, smallConfig())

		res0 := caches[0].Read(0x40)
		Expect(res0).To(Equal(mesi.MissIssued))
		Expect(bus.IsBusyNow()).To(BeTrue())
		Expect(bus.CurrentRequestingCore()).To(Equal(0))

		res1 := caches[1].Read(0x80)
		Expect(res1).To(Equal(mesi.BusBusyOther))
		Expect(caches[1].Stats.MissCount).To(BeZero())
	})

	It("rejects re-entrant access from the core already owning the bus as BusBusySelf", func() {
		caches, bus, _ := newSystem(2, smallConfig())

		caches[0].Read(0x40)
		Expect(bus.IsBusyNow()).To(BeTrue())

		res := caches[0].Read(0x80)
		Expect(res).To(Equal(mesi.BusBusySelf))
	})

	It("evicts the first invalid way before any valid way, regardless of recency", func() {
		caches, bus, _ := newSystem(1, mesi.Config{SetIndexBits: 0, Associativity: 2, BlockBits: 2})

		// Both addresses alias to the single set (SetIndexBits=0) but
		// carry distinct tags, so the second miss must land in the
		// still-invalid second way rather than evicting the first.
		caches[0].Read(0x00)
		drainBus(bus)
		caches[0].Read(0x10)
		drainBus(bus)
		Expect(caches[0].Stats.EvictionCount).To(BeZero())

		// A third distinct-tag address now must evict one of the two
		// valid lines, exercising the LastAccessTime comparison rather
		// than the invalid-wins path.
		res := caches[0].Read(0x20)
		Expect(res).To(Equal(mesi.MissIssued))
		Expect(caches[0].Stats.EvictionCount).To(Equal(uint64(1)))
	})

	It("charges a writeback on evicting a Modified (dirty) line", func() {
		caches, bus, _ := newSystem(1, mesi.Config{SetIndexBits: 0, Associativity: 1, BlockBits: 2})

		caches[0].Write(0x00) // miss -> Modified, dirty
		Expect(caches[0].Stats.WritebackCount).To(BeZero())
		drainBus(bus)

		// The single-way set forces eviction of the dirty line.
		caches[0].Write(0x10)
		Expect(caches[0].Stats.WritebackCount).To(Equal(uint64(1)))
		Expect(caches[0].Stats.EvictionCount).To(Equal(uint64(1)))
	})

	It("computes MissRatePercent as 0 before any access and as a percentage afterward", func() {
		caches, _, _ := newSystem(1, smallConfig())
		Expect(caches[0].Stats.MissRatePercent()).To(Equal(0.0))

		caches[0].Stats.ReadCount = 1
		caches[0].Stats.MissCount = 1
		Expect(caches[0].Stats.MissRatePercent()).To(Equal(100.0))
	})

	It("direct-mapped (associativity=1) always evicts the sole way on a tag miss", func() {
		caches, bus, _ := newSystem(1, mesi.Config{SetIndexBits: 0, Associativity: 1, BlockBits: 2})

		caches[0].Read(0x00)
		drainBus(bus)
		res := caches[0].Read(0x10)
		Expect(res).To(Equal(mesi.MissIssued))
		Expect(caches[0].Stats.EvictionCount).To(Equal(uint64(1)))
	})

	It("reports cache geometry derived from Config", func() {
		cfg := mesi.Config{SetIndexBits: 5, Associativity: 2, BlockBits: 5}
		Expect(cfg.NumSets()).To(Equal(uint32(32)))
		Expect(cfg.BlockSize()).To(Equal(uint32(32)))
		Expect(cfg.CacheSizeBytes()).To(Equal(uint64(32 * 2 * 32)))
	})
})

var _ = Describe("State", func() {
	It("reports Invalid as the only non-valid state", func() {
		Expect(mesi.Invalid.Valid()).To(BeFalse())
		Expect(mesi.Shared.Valid()).To(BeTrue())
		Expect(mesi.Exclusive.Valid()).To(BeTrue())
		Expect(mesi.Modified.Valid()).To(BeTrue())
	})

	It("renders single-letter abbreviations", func() {
		Expect(mesi.Invalid.String()).To(Equal("I"))
		Expect(mesi.Shared.String()).To(Equal("S"))
		Expect(mesi.Exclusive.String()).To(Equal("E"))
		Expect(mesi.Modified.String()).To(Equal("M"))
	})
})
