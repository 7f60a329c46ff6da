package mesi

import "github.com/sarchlab/mesisim/tracelog"

// TransactionType identifies the kind of coherence transaction a cache
// broadcasts on the bus.
type TransactionType int

const (
	// BusRd requests a read-shared copy of a block.
	BusRd TransactionType = iota
	// BusRdX requests an exclusive (writable) copy, invalidating peers.
	BusRdX
	// BusUpgr upgrades a held S/E line to M without re-fetching data.
	BusUpgr
)

func (t TransactionType) String() string {
	switch t {
	case BusRd:
		return "BusRd"
	case BusRdX:
		return "BusRdX"
	case BusUpgr:
		return "BusUpgr"
	default:
		return "Unknown"
	}
}

// noCore is the sentinel for "no current owner" (currentRequestingCore
// when the bus is idle).
const noCore = -1

// BusStats accumulates bus-wide counters for the run.
type BusStats struct {
	TotalTransactions   uint64
	BusRdTransactions   uint64
	BusRdXTransactions  uint64
	BusUpgrTransactions uint64
	TotalBusTraffic     uint64
}

// snooper is the subset of Cache the bus needs to notify peers. It
// exists so Bus's broadcast loop reads as "notify every snooper",
// independent of Cache's own fields.
type snooper interface {
	processBusTransaction(address uint32, isWrite bool, requestingCore int, dataRequested bool) bool
}

// Bus is the single-transaction serializing snooping bus shared by all
// per-core caches in a run. At most one memory/transfer/writeback
// service is being billed at a time; callers gate their own behavior
// on isBusyNow/currentRequestingCore rather than the bus queuing work.
type Bus struct {
	caches []snooper

	globalCycle *uint64

	isBusy                bool
	remainingCycles       int64
	currentRequestingCore int

	Stats BusStats

	debug tracelog.Sink
}

// NewBus creates an idle bus observing the given shared cycle counter.
func NewBus(globalCycle *uint64) *Bus {
	return &Bus{
		globalCycle:           globalCycle,
		currentRequestingCore: noCore,
		debug:                 tracelog.Noop(),
	}
}

// SetDebugSink installs a debug trace sink. Defaults to a no-op sink.
func (b *Bus) SetDebugSink(sink tracelog.Sink) {
	if sink == nil {
		sink = tracelog.Noop()
	}
	b.debug = sink
}

// RegisterCache adds a cache to the bus's snoop list, in registration
// (core-id) order. Caches must be registered before any broadcast.
func (b *Bus) RegisterCache(c *Cache) {
	b.caches = append(b.caches, c)
}

// IsBusyNow reports whether a transaction is currently in flight.
func (b *Bus) IsBusyNow() bool { return b.isBusy }

// CurrentRequestingCore returns the owning core id, or -1 if idle.
func (b *Bus) CurrentRequestingCore() int { return b.currentRequestingCore }

// RemainingCycles returns the signed remaining-cycle counter. It may
// temporarily exceed a single transaction's natural length when a
// snoop-triggered writeback stacks additional cycles onto an in-flight
// transaction.
func (b *Bus) RemainingCycles() int64 { return b.remainingCycles }

func (b *Bus) isBusyFor(coreID int) bool {
	return b.isBusy && b.currentRequestingCore == coreID
}

func (b *Bus) isBusyForOther(coreID int) bool {
	return b.isBusy && b.currentRequestingCore != coreID
}

func (b *Bus) addTraffic(bytes uint64) {
	b.Stats.TotalBusTraffic += bytes
}

func (b *Bus) cycle() uint64 { return *b.globalCycle }

// broadcastTransaction claims the bus for requestingCore and notifies
// every other registered cache in registration order. It returns true
// iff any peer cache reported holding a valid copy of address. Only
// the first peer to respond is asked to supply data; later holders
// still transition state but are not billed for a transfer.
func (b *Bus) broadcastTransaction(t TransactionType, address uint32, requestingCore int) bool {
	if requestingCore < 0 || requestingCore >= len(b.caches) {
		panic("mesi: bus transaction requested by an out-of-range core id")
	}

	if b.isBusy && b.currentRequestingCore != requestingCore {
		b.debug.Printf("[cycle %d] bus: %s for core %d rejected, busy for core %d", b.cycle(), t, requestingCore, b.currentRequestingCore)
		return false
	}

	b.isBusy = true
	b.currentRequestingCore = requestingCore

	b.Stats.TotalTransactions++
	switch t {
	case BusRd:
		b.Stats.BusRdTransactions++
	case BusRdX:
		b.Stats.BusRdXTransactions++
	case BusUpgr:
		b.Stats.BusUpgrTransactions++
	}

	isWrite := t == BusRdX || t == BusUpgr
	dataRequested := !isWrite
	dataFromOtherCache := false

	for i, snoop := range b.caches {
		if i == requestingCore {
			continue
		}
		if snoop.processBusTransaction(address, isWrite, requestingCore, dataRequested) {
			dataFromOtherCache = true
			dataRequested = false
		}
	}

	b.debug.Printf("[cycle %d] bus: %s for core %d on 0x%x, peer supplied=%v", b.cycle(), t, requestingCore, address, dataFromOtherCache)
	return dataFromOtherCache
}

// addRemainingCycles bills cycles against the in-flight transaction,
// claiming the bus for coreID first if it was idle. When the bus is
// already busy the cycles stack under the existing owner, which is how
// a writeback triggered inside snoop processing extends the current
// transaction instead of starting a new one.
func (b *Bus) addRemainingCycles(cycles int, coreID int) {
	if cycles < 0 {
		panic("mesi: bus charged a negative cycle count")
	}
	b.remainingCycles += int64(cycles)
	if b.isBusy {
		return
	}
	b.isBusy = true
	b.currentRequestingCore = coreID
}

// UpdateBusState advances the in-flight transaction by one cycle,
// releasing the bus when the countdown runs out. The driver calls this
// once per cycle, before dispatching any core's Read/Write for that
// cycle.
func (b *Bus) UpdateBusState() {
	if !b.isBusy {
		return
	}
	if b.currentRequestingCore == noCore {
		panic("mesi: bus marked busy with no requesting core")
	}
	b.remainingCycles--
	if b.remainingCycles <= 0 {
		b.isBusy = false
		b.currentRequestingCore = noCore
		b.debug.Printf("[cycle %d] bus: transaction completed", b.cycle())
	}
}
