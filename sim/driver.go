// Package sim drives a cycle-accurate, single-threaded simulation of
// one cache per trace load sharing one snooping bus, dispatching each core's
// trace entries in ascending core-id order every cycle.
package sim

import (
	"github.com/sarchlab/mesisim/mesi"
	"github.com/sarchlab/mesisim/trace"
	"github.com/sarchlab/mesisim/tracelog"
)

// Core bundles one core's cache with its trace and progress through it.
type Core struct {
	Cache *mesi.Cache

	entries []trace.Entry
	index   int

	TotalInstructions uint64
}

// Done reports whether this core has no remaining trace entries.
func (c *Core) Done() bool { return c.index >= len(c.entries) }

// Driver ties a Bus and its registered Cores together and steps them
// one global cycle at a time.
type Driver struct {
	Bus   *mesi.Bus
	Cores []*Core

	globalCycle *uint64
}

// NewDriver builds a driver with one Core per trace load, all sharing
// cfg, wiring
// every cache onto a freshly created bus in core-id order, the order
// the per-cycle dispatch relies on for its core-0-wins contention bias.
func NewDriver(cfg mesi.Config, loads []*trace.Load) *Driver {
	cycle := new(uint64)
	bus := mesi.NewBus(cycle)

	d := &Driver{Bus: bus, globalCycle: cycle}
	for i, load := range loads {
		cache := mesi.NewCache(i, cfg, cycle)
		cache.AttachBus(bus)
		cache.SetRunID(load.RunID)
		bus.RegisterCache(cache)
		d.Cores = append(d.Cores, &Core{Cache: cache, entries: load.Entries})
	}
	return d
}

// SetDebugSink installs cacheSink on every cache and busSink on the
// bus. They may be the same Sink or distinct ones opened in different
// modes (the cache sink truncates its file once per run while the bus
// sink appends), so the two are kept independent rather than forced to
// share one open mode.
func (d *Driver) SetDebugSink(cacheSink, busSink tracelog.Sink) {
	d.Bus.SetDebugSink(busSink)
	for _, c := range d.Cores {
		c.Cache.SetDebugSink(cacheSink)
	}
}

// GlobalCycle returns the number of cycles simulated so far.
func (d *Driver) GlobalCycle() uint64 { return *d.globalCycle }

// allDone reports whether every core has exhausted its trace.
func (d *Driver) allDone() bool {
	for _, c := range d.Cores {
		if !c.Done() {
			return false
		}
	}
	return true
}

// Run simulates cycles until every core's trace is exhausted.
func (d *Driver) Run() {
	for !d.allDone() {
		d.step()
	}
}

// step advances the simulation by exactly one global cycle.
func (d *Driver) step() {
	// A transaction with exactly one cycle left retires this cycle:
	// the owning core's instruction completes before UpdateBusState
	// clears the bus, so the final service cycle is billed as exec.
	if d.Bus.RemainingCycles() == 1 {
		owner := d.Bus.CurrentRequestingCore()
		core := d.Cores[owner]
		core.Cache.Stats.ExecCycles++
		core.TotalInstructions++
		core.index++
	}
	d.Bus.UpdateBusState()

	for _, core := range d.Cores {
		if core.Done() {
			continue
		}

		entry := core.entries[core.index]
		var result mesi.Result
		if entry.IsWrite {
			result = core.Cache.Write(entry.Address)
		} else {
			result = core.Cache.Read(entry.Address)
		}

		switch result {
		case mesi.Hit:
			core.Cache.Stats.ExecCycles++
			d.bumpAccessCount(core, entry)
			core.TotalInstructions++
			core.index++
		case mesi.MissIssued:
			core.Cache.Stats.ExecCycles++
			d.bumpAccessCount(core, entry)
		case mesi.BusBusyOther:
			core.Cache.Stats.IdleCycles++
		case mesi.BusBusySelf:
			core.Cache.Stats.ExecCycles++
		}
	}

	*d.globalCycle = *d.globalCycle + 1
}

func (d *Driver) bumpAccessCount(core *Core, entry trace.Entry) {
	if entry.IsWrite {
		core.Cache.Stats.WriteCount++
	} else {
		core.Cache.Stats.ReadCount++
	}
}
