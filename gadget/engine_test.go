package gadget

import (
	"testing"

	"github.com/mewmew/rop/bin"
)

// stubCPU is a minimal CPU back-end for engine tests: it recognizes only
// two one-byte "instructions", 0x90 ("nop") and 0xc3 ("ret"), the latter
// being the only terminator. Anything else fails to decode.
type stubCPU struct{}

func (stubCPU) ClassName() string { return "stub" }

func (stubCPU) Decode(buffer []byte, offset int, baseVA bin.Addr) (Instruction, error) {
	if offset < 0 || offset >= len(buffer) {
		return Instruction{}, errDecode("out of range")
	}
	b := buffer[offset]
	var mnem string
	switch b {
	case 0x90:
		mnem = "nop"
	case 0xc3:
		mnem = "ret"
	default:
		return Instruction{}, errDecode("unknown byte")
	}
	return Instruction{
		Mnemonic: mnem,
		Length:   1,
		Bytes:    buffer[offset : offset+1],
		Address:  baseVA + bin.Addr(offset),
	}, nil
}

func (stubCPU) IsTerminator(buffer []byte, offset int) bool {
	return offset < len(buffer) && buffer[offset] == 0xc3
}
func (stubCPU) SeversChain(buffer []byte, offset int) bool {
	return offset < len(buffer) && buffer[offset] == 0xc3
}
func (stubCPU) MaxInstructionLen() int { return 1 }

type errDecode string

func (e errDecode) Error() string { return string(e) }

func TestScanSingleRet(t *testing.T) {
	e := NewEngine(stubCPU{})
	set := e.Scan([]byte{0xc3}, 0x1000, 0)
	gadgets := set.Sorted()
	if len(gadgets) != 1 {
		t.Fatalf("got %d gadgets, want 1", len(gadgets))
	}
	g := gadgets[0]
	if g.Disassembly != "ret ; " {
		t.Errorf("disassembly = %q, want %q", g.Disassembly, "ret ; ")
	}
	if g.NumOccurrences() != 1 || g.Offsets[0] != 0 || g.VASections[0] != 0x1000 {
		t.Errorf("unexpected occurrence: %+v", g)
	}
}

func TestScanNopRet(t *testing.T) {
	e := NewEngine(stubCPU{})
	set := e.Scan([]byte{0x90, 0xc3}, 0x1000, 5)
	gadgets := set.Sorted()
	if len(gadgets) != 2 {
		t.Fatalf("got %d gadgets, want 2: %+v", len(gadgets), gadgets)
	}
	// Sorted ascending by disassembly: "nop ; ret ; " < "ret ; "
	if gadgets[0].Disassembly != "nop ; ret ; " {
		t.Errorf("gadgets[0] = %q", gadgets[0].Disassembly)
	}
	if gadgets[0].Offsets[0] != 0 {
		t.Errorf("nop;ret offset = %d, want 0", gadgets[0].Offsets[0])
	}
	if gadgets[1].Disassembly != "ret ; " {
		t.Errorf("gadgets[1] = %q", gadgets[1].Disassembly)
	}
	if gadgets[1].Offsets[0] != 1 {
		t.Errorf("ret offset = %d, want 1", gadgets[1].Offsets[0])
	}
}

func TestScanOverlappingTerminatorsMerge(t *testing.T) {
	e := NewEngine(stubCPU{})
	set := e.Scan([]byte{0xc3, 0xc3}, 0x1000, 0)
	gadgets := set.Sorted()
	if len(gadgets) != 1 {
		t.Fatalf("got %d gadgets, want 1", len(gadgets))
	}
	g := gadgets[0]
	if g.NumOccurrences() != 2 {
		t.Fatalf("got %d occurrences, want 2", g.NumOccurrences())
	}
	if g.Offsets[0] != 0 || g.Offsets[1] != 1 {
		t.Errorf("unexpected offsets: %v", g.Offsets)
	}
}

func TestScanTwoSectionsMergeAcrossOrchestrator(t *testing.T) {
	e := NewEngine(stubCPU{})
	set1 := e.Scan([]byte{0x90, 0xc3}, 0x1000, 5)
	set2 := e.Scan([]byte{0x90, 0xc3}, 0x2000, 5)
	merged := NewSet()
	merged.Merge(set1)
	merged.Merge(set2)
	gadgets := merged.Sorted()
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
	if nopRet.VASections[0] != 0x1000 || nopRet.VASections[1] != 0x2000 {
		t.Errorf("unexpected va_sections: %v", nopRet.VASections)
	}
}

func TestScanNoTerminatorMatch(t *testing.T) {
	e := NewEngine(stubCPU{})
	set := e.Scan([]byte{0xff}, 0x1000, 5)
	if set.Len() != 0 {
		t.Fatalf("got %d gadgets, want 0", set.Len())
	}
}

func TestScanTerminatorAtOffsetZeroSkipsPreamble(t *testing.T) {
	e := NewEngine(stubCPU{})
	set := e.Scan([]byte{0xc3, 0x90}, 0x1000, 5)
	gadgets := set.Sorted()
	if len(gadgets) != 1 {
		t.Fatalf("got %d gadgets, want 1: %+v", len(gadgets), gadgets)
	}
	if gadgets[0].Disassembly != "ret ; " {
		t.Errorf("got %q", gadgets[0].Disassembly)
	}
}

// absorbingCPU models the x86 case buffer = {0x00, 0xc3}: 0xc3 alone is a
// one-byte "ret" terminator, but 0x00 followed by 0xc3 decodes as a single
// two-byte non-terminator instruction ("absorb") that consumes the
// terminator's own byte. A window must not accept a preamble instruction
// that swallows the terminator byte this way.
type absorbingCPU struct{}

func (absorbingCPU) ClassName() string { return "absorbing" }

func (absorbingCPU) Decode(buffer []byte, offset int, baseVA bin.Addr) (Instruction, error) {
	if offset < 0 || offset >= len(buffer) {
		return Instruction{}, errDecode("out of range")
	}
	switch {
	case buffer[offset] == 0xc3:
		return Instruction{Mnemonic: "ret", Length: 1, Address: baseVA + bin.Addr(offset)}, nil
	case buffer[offset] == 0x00 && offset+1 < len(buffer) && buffer[offset+1] == 0xc3:
		return Instruction{Mnemonic: "absorb", Length: 2, Address: baseVA + bin.Addr(offset)}, nil
	default:
		return Instruction{}, errDecode("unknown byte")
	}
}

func (absorbingCPU) IsTerminator(buffer []byte, offset int) bool {
	return offset < len(buffer) && buffer[offset] == 0xc3
}
func (absorbingCPU) SeversChain(buffer []byte, offset int) bool {
	return offset < len(buffer) && buffer[offset] == 0xc3
}
func (absorbingCPU) MaxInstructionLen() int { return 2 }

func TestScanRejectsWindowWhereTerminatorByteIsAbsorbed(t *testing.T) {
	e := NewEngine(absorbingCPU{})
	set := e.Scan([]byte{0x00, 0xc3}, 0x1000, 1)
	gadgets := set.Sorted()
	if len(gadgets) != 1 {
		t.Fatalf("got %d gadgets, want 1: %+v", len(gadgets), gadgets)
	}
	if gadgets[0].Disassembly != "ret ; " {
		t.Fatalf("got %q, want %q (the absorbing preamble must be rejected)", gadgets[0].Disassembly, "ret ; ")
	}
	if gadgets[0].Offsets[0] != 1 {
		t.Errorf("ret offset = %d, want 1", gadgets[0].Offsets[0])
	}
}
