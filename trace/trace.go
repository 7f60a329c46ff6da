// Package trace loads per-core memory-access traces: plain-text files
// of one "R"/"W" plus a hex address per line, named
// "<prefix>_proc<core>.trace".
package trace

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/akita/v4/sim"
)

// Entry is a single memory access: a read or a write to address.
type Entry struct {
	IsWrite bool
	Address uint32
}

// Load holds one core's parsed trace plus the run identifier minted for
// this load. RunID has no bearing on simulation results; it exists so
// multiple loads in the same process (as the test suite performs) are
// distinguishable in logs.
type Load struct {
	RunID   string
	Entries []Entry
}

var gen = sim.GetIDGenerator()

// LoadFile reads and parses the trace file at path. Lines that don't
// match "<R|W> <hex address>" are silently skipped: a malformed line
// is not a fatal error, it simply contributes no entry.
func LoadFile(path string) (*Load, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trace: could not open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	load := &Load{RunID: gen.Generate()}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		entry, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		load.Entries = append(load.Entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("trace: error reading %s: %w", path, err)
	}

	return load, nil
}

// FileName builds the "<prefix>_proc<core>.trace" name for one core's
// trace file.
func FileName(prefix string, core int) string {
	return fmt.Sprintf("%s_proc%d.trace", prefix, core)
}

func parseLine(line string) (Entry, bool) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Entry{}, false
	}

	var isWrite bool
	switch fields[0] {
	case "R":
		isWrite = false
	case "W":
		isWrite = true
	default:
		return Entry{}, false
	}

	addr, err := strconv.ParseUint(strings.TrimPrefix(fields[1], "0x"), 16, 32)
	if err != nil {
		return Entry{}, false
	}

	return Entry{IsWrite: isWrite, Address: uint32(addr)}, true
}
