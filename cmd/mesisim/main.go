// Package main provides the entry point for mesisim, a cycle-accurate
// simulator of a multi-core L1 cache hierarchy coordinated by a
// snooping bus running the MESI coherence protocol.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/mesisim/mesi"
	"github.com/sarchlab/mesisim/report"
	"github.com/sarchlab/mesisim/sim"
	"github.com/sarchlab/mesisim/trace"
	"github.com/sarchlab/mesisim/tracelog"
)

// numCores is fixed by the simulated system: four per-core caches on
// one shared bus.
const numCores = 4

var (
	traceName     = flag.String("t", "", "name of parallel application (e.g. app1)")
	setIndexBits  = flag.Uint("s", 5, "number of set index bits")
	associativity = flag.Uint("E", 2, "associativity")
	blockBits     = flag.Uint("b", 5, "number of block bits")
	outFile       = flag.String("o", "", "output file for logging")
	debugPath     = flag.String("debug", "", "optional debug trace file")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: mesisim [options]\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	fmt.Fprintf(os.Stderr, "  -t <tracefile>  : name of parallel application (e.g. app1)\n")
	fmt.Fprintf(os.Stderr, "  -s <s>          : number of set index bits\n")
	fmt.Fprintf(os.Stderr, "  -E <E>          : associativity\n")
	fmt.Fprintf(os.Stderr, "  -b <b>          : number of block bits\n")
	fmt.Fprintf(os.Stderr, "  -o <outfile>    : output file for logging\n")
	fmt.Fprintf(os.Stderr, "  -debug <path>   : optional debug trace file\n")
	fmt.Fprintf(os.Stderr, "  -h              : print this help\n")
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *traceName == "" {
		fmt.Fprintln(os.Stderr, "Error: Base trace name not specified")
		usage()
		os.Exit(1)
	}
	if *outFile == "" {
		fmt.Fprintln(os.Stderr, "Error: Output file not specified")
		usage()
		os.Exit(1)
	}

	cfg := mesi.Config{
		SetIndexBits:  *setIndexBits,
		Associativity: *associativity,
		BlockBits:     *blockBits,
	}

	loads, err := loadTraces(*traceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	driver := sim.NewDriver(cfg, loads)

	if *debugPath != "" {
		cacheSink, err := tracelog.OpenTruncate(*debugPath, "cache")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = tracelog.Close(cacheSink) }()

		busSink, err := tracelog.OpenAppend(*debugPath, "bus")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = tracelog.Close(busSink) }()

		driver.SetDebugSink(cacheSink, busSink)
	}

	driver.Run()

	out, err := os.Create(*outFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Could not open output file %s\n", *outFile)
		os.Exit(1)
	}
	defer func() { _ = out.Close() }()

	params := report.Params{TracePrefix: *traceName, Config: cfg}
	if err := report.Write(out, params, driver); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
		os.Exit(1)
	}
}

func loadTraces(prefix string) ([]*trace.Load, error) {
	loads := make([]*trace.Load, numCores)
	for core := 0; core < numCores; core++ {
		load, err := trace.LoadFile(trace.FileName(prefix, core))
		if err != nil {
			return nil, err
		}
		loads[core] = load
	}
	return loads, nil
}
