// Package report renders a completed simulation run as text: a
// parameters header, one statistics block per core, the maximum
// execution-cycle count across cores, and a final bus-statistics
// block.
package report

import (
	"fmt"
	"io"

	"github.com/sarchlab/mesisim/mesi"
	"github.com/sarchlab/mesisim/sim"
)

// Params carries the run's configuration for the header block.
type Params struct {
	TracePrefix string
	Config      mesi.Config
}

// Write renders the full report for a completed driver run to w.
func Write(w io.Writer, params Params, d *sim.Driver) error {
	if err := writeHeader(w, params); err != nil {
		return err
	}

	var maxExecCycles uint64
	for i, core := range d.Cores {
		if err := writeCoreStats(w, i, core); err != nil {
			return err
		}
		if core.Cache.Stats.ExecCycles > maxExecCycles {
			maxExecCycles = core.Cache.Stats.ExecCycles
		}
	}

	if _, err := fmt.Fprintf(w, "Maximum Execution Cycles: %d\n", maxExecCycles); err != nil {
		return err
	}

	return writeBusStats(w, d.Bus.Stats)
}

func writeHeader(w io.Writer, p Params) error {
	cfg := p.Config
	_, err := fmt.Fprintf(w,
		"Simulation Parameters:\n"+
			"Trace Prefix: %s\n"+
			"Set Index Bits: %d\n"+
			"Associativity: %d\n"+
			"Block Bits: %d\n"+
			"Block Size (Bytes): %d\n"+
			"Number of Sets: %d\n"+
			"Cache Size (KB per core): %d\n"+
			"MESI Protocol: Enabled\n"+
			"Write Policy: Write-back, Write-allocate\n"+
			"Replacement Policy: LRU\n"+
			"Bus: Central snooping bus\n\n",
		p.TracePrefix,
		cfg.SetIndexBits,
		cfg.Associativity,
		cfg.BlockBits,
		cfg.BlockSize(),
		cfg.NumSets(),
		cfg.CacheSizeBytes()/1024,
	)
	return err
}

func writeCoreStats(w io.Writer, coreID int, core *sim.Core) error {
	s := core.Cache.Stats
	_, err := fmt.Fprintf(w,
		"Core %d Statistics:\n"+
			"Run ID: %s\n"+
			"Total Instructions: %d\n"+
			"Total Reads: %d\n"+
			"Total Writes: %d\n"+
			"Total Execution Cycles: %d\n"+
			"Total Idle Cycles: %d\n"+
			"Cache Hits: %d\n"+
			"Cache Misses: %d\n"+
			"Cache Miss Rate: %.2f%%\n"+
			"Cache Evictions: %d\n"+
			"Writebacks: %d\n"+
			"Bus Invalidations: %d\n"+
			"Data Traffic (Bytes): %d\n\n",
		coreID,
		core.Cache.RunID,
		core.TotalInstructions,
		s.ReadCount,
		s.WriteCount,
		s.ExecCycles,
		s.IdleCycles,
		s.HitCount,
		s.MissCount,
		s.MissRatePercent(),
		s.EvictionCount,
		s.WritebackCount,
		s.InvalidationCount,
		s.BusTrafficBytes,
	)
	return err
}

func writeBusStats(w io.Writer, s mesi.BusStats) error {
	_, err := fmt.Fprintf(w,
		"\nBus Statistics:\n"+
			"Total Transactions: %d\n"+
			"BusRd Transactions: %d\n"+
			"BusRdX Transactions: %d\n"+
			"BusUpgr Transactions: %d\n"+
			"Total Bus Traffic (Bytes): %d\n",
		s.TotalTransactions,
		s.BusRdTransactions,
		s.BusRdXTransactions,
		s.BusUpgrTransactions,
		s.TotalBusTraffic,
	)
	return err
}
