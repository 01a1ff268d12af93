package program

import (
	"testing"

	"github.com/mewmew/rop/bin"
	disx86 "github.com/mewmew/rop/disasm/x86"
	"github.com/mewmew/rop/format"
	"github.com/mewmew/rop/gadget"
)

// stubCPU recognizes 0x90 ("nop") and 0xc3 ("ret"), mirroring the gadget
// package's own engine tests.
type stubCPU struct{}

func (stubCPU) ClassName() string { return "stub" }

func (stubCPU) Decode(buffer []byte, offset int, baseVA bin.Addr) (gadget.Instruction, error) {
	if offset < 0 || offset >= len(buffer) {
		return gadget.Instruction{}, errDecode{}
	}
	var mnem string
	switch buffer[offset] {
	case 0x90:
		mnem = "nop"
	case 0xc3:
		mnem = "ret"
	default:
		return gadget.Instruction{}, errDecode{}
	}
	return gadget.Instruction{Mnemonic: mnem, Length: 1, Address: baseVA + bin.Addr(offset)}, nil
}

func (stubCPU) IsTerminator(buffer []byte, offset int) bool {
	return offset < len(buffer) && buffer[offset] == 0xc3
}
func (stubCPU) SeversChain(buffer []byte, offset int) bool {
	return offset < len(buffer) && buffer[offset] == 0xc3
}
func (stubCPU) MaxInstructionLen() int { return 1 }

type errDecode struct{}

func (errDecode) Error() string { return "decode error" }

// fakeFormat is a fixed, in-memory format.ExecutableFormat for exercising
// Program without touching ELF/PE parsing.
type fakeFormat struct {
	sections []bin.Section
	regions  []*bin.NamedRegion
}

func (f *fakeFormat) ExecutableSections(format.File) ([]bin.Section, error) { return f.sections, nil }
func (f *fakeFormat) NamedRegions(format.File) ([]*bin.NamedRegion, error)  { return f.regions, nil }
func (f *fakeFormat) CPU(format.File, disx86.Syntax) (gadget.CPU, error)    { return stubCPU{}, nil }
func (f *fakeFormat) ClassName() string                                    { return "fake" }
func (f *fakeFormat) DisplayInformation(format.File, format.Verbosity)     {}

func newTestProgram(t *testing.T, exfmt *fakeFormat) *Program {
	t.Helper()
	cpu, err := exfmt.CPU(nil, disx86.Intel)
	if err != nil {
		t.Fatalf("CPU: %v", err)
	}
	return &Program{
		file:    nil,
		exfmt:   exfmt,
		cpu:     cpu,
		fmtName: exfmt.ClassName(),
		cpuName: cpu.ClassName(),
	}
}

func TestFindGadgetsMergesAcrossSections(t *testing.T) {
	exfmt := &fakeFormat{
		sections: []bin.Section{
			bin.NewBasicSection(".text", 0x1000, []byte{0x90, 0xc3}),
			bin.NewBasicSection(".init", 0x2000, []byte{0x90, 0xc3}),
		},
	}
	p := newTestProgram(t, exfmt)
	set := p.FindGadgets(5)
	gadgets := set.Sorted()
	if len(gadgets) != 2 {
		t.Fatalf("got %d gadgets, want 2", len(gadgets))
	}
	nopRet := gadgets[0]
	if nopRet.Disassembly != "nop ; ret ; " {
		t.Fatalf("unexpected gadget: %q", nopRet.Disassembly)
	}
	if nopRet.NumOccurrences() != 2 {
		t.Fatalf("got %d occurrences, want 2", nopRet.NumOccurrences())
	}
}

func TestFindFGKASLRCompatibleGadgetsFiltersBlockedOccurrence(t *testing.T) {
	exfmt := &fakeFormat{
		sections: []bin.Section{
			bin.NewBasicSection(".text", 0x1000, []byte{0x90, 0xc3}),
		},
		regions: []*bin.NamedRegion{
			bin.NewNamedRegion(".text.foo", 0, 0x1000, 2),
		},
	}
	p := newTestProgram(t, exfmt)
	set := p.FindFGKASLRCompatibleGadgets(5)
	gadgets := set.Sorted()
	if len(gadgets) != 0 {
		t.Fatalf("got %d gadgets, want 0 (both should be blocked)", len(gadgets))
	}
}

func TestFindFGKASLRCompatibleGadgetsNoNamedRegionsWarns(t *testing.T) {
	exfmt := &fakeFormat{
		sections: []bin.Section{
			bin.NewBasicSection(".text", 0x1000, []byte{0xc3}),
		},
	}
	p := newTestProgram(t, exfmt)
	set := p.FindFGKASLRCompatibleGadgets(5)
	if set.Len() != 0 {
		t.Fatalf("got %d gadgets, want 0", set.Len())
	}
}

func TestFindFGKASLRSubsetOfStandard(t *testing.T) {
	exfmt := &fakeFormat{
		sections: []bin.Section{
			bin.NewBasicSection(".text", 0x1000, []byte{0x90, 0xc3, 0x90, 0xc3}),
		},
		regions: []*bin.NamedRegion{
			bin.NewNamedRegion(".text.foo", 0, 0x1000, 2),
		},
	}
	p := newTestProgram(t, exfmt)
	standard := p.FindGadgets(5).Sorted()
	fgkaslr := p.FindFGKASLRCompatibleGadgets(5).Sorted()
	standardKeys := make(map[string]bool)
	for _, g := range standard {
		standardKeys[g.Disassembly] = true
	}
	for _, g := range fgkaslr {
		if !standardKeys[g.Disassembly] {
			t.Errorf("fgkaslr gadget %q not present in standard result", g.Disassembly)
		}
	}
}
