package report_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mesisim/mesi"
	"github.com/sarchlab/mesisim/report"
	"github.com/sarchlab/mesisim/sim"
	"github.com/sarchlab/mesisim/trace"
)

var _ = Describe("Write", func() {
	It("renders the parameters header with the exact field order and wording", func() {
		cfg := mesi.Config{SetIndexBits: 5, Associativity: 2, BlockBits: 5}
		d := sim.NewDriver(cfg, []*trace.Load{{}, {}, {}, {}})

		var buf bytes.Buffer
		Expect(report.Write(&buf, report.Params{TracePrefix: "app1", Config: cfg}, d)).To(Succeed())

		out := buf.String()
		Expect(out).To(HavePrefix("Simulation Parameters:\n"))
		Expect(out).To(ContainSubstring("Trace Prefix: app1\n"))
		Expect(out).To(ContainSubstring("Set Index Bits: 5\n"))
		Expect(out).To(ContainSubstring("Associativity: 2\n"))
		Expect(out).To(ContainSubstring("Block Bits: 5\n"))
		Expect(out).To(ContainSubstring("Block Size (Bytes): 32\n"))
		Expect(out).To(ContainSubstring("Number of Sets: 32\n"))
		Expect(out).To(ContainSubstring("Cache Size (KB per core): 2\n"))
		Expect(out).To(ContainSubstring("MESI Protocol: Enabled\n"))
		Expect(out).To(ContainSubstring("Bus: Central snooping bus\n"))
	})

	It("renders one Core N Statistics block per core, in core-id order", func() {
		cfg := mesi.Config{SetIndexBits: 0, Associativity: 1, BlockBits: 2}
		loads := []*trace.Load{
			{RunID: "run-0", Entries: []trace.Entry{{IsWrite: false, Address: 0x00}}},
			{RunID: "run-1"},
		}
		d := sim.NewDriver(cfg, loads)
		d.Run()

		var buf bytes.Buffer
		Expect(report.Write(&buf, report.Params{TracePrefix: "app1", Config: cfg}, d)).To(Succeed())

		out := buf.String()
		idx0 := strings.Index(out, "Core 0 Statistics:")
		idx1 := strings.Index(out, "Core 1 Statistics:")
		Expect(idx0).To(BeNumerically(">=", 0))
		Expect(idx1).To(BeNumerically(">", idx0))
		Expect(out).To(ContainSubstring("Total Instructions: 1\n"))
		Expect(out).To(ContainSubstring("Cache Misses: 1\n"))
		Expect(out).To(MatchRegexp(`Core 0 Statistics:\nRun ID: \S+\n`))
	})

	It("renders the Maximum Execution Cycles line before the Bus Statistics block", func() {
		cfg := mesi.DefaultConfig()
		d := sim.NewDriver(cfg, []*trace.Load{{}})

		var buf bytes.Buffer
		Expect(report.Write(&buf, report.Params{TracePrefix: "app1", Config: cfg}, d)).To(Succeed())

		out := buf.String()
		maxIdx := strings.Index(out, "Maximum Execution Cycles:")
		busIdx := strings.Index(out, "Bus Statistics:")
		Expect(maxIdx).To(BeNumerically(">=", 0))
		Expect(busIdx).To(BeNumerically(">", maxIdx))
		Expect(out).To(ContainSubstring("Total Transactions: 0\n"))
	})
})
