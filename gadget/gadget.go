package gadget

import (
	"strings"

	"github.com/mewmew/rop/bin"
)

// Gadget is a non-empty sequence of instructions ending in a terminator,
// together with every (section-base-VA, file-relative-offset) pair at
// which that exact instruction sequence was found (§3).
//
// Two Gadgets are the "same" gadget, for dedup purposes, iff their
// Disassembly strings are byte-for-byte equal (invariant 4 of §3); such
// Gadgets are never both kept in a result set (invariant 2) — see Merge.
type Gadget struct {
	// Instructions is the ordered, non-empty instruction sequence; the
	// last element is a terminator (invariant 3).
	Instructions []Instruction
	// Disassembly is the canonical textual form: instructions joined by
	// " ; " and terminated by " ; ". It is both the dedup key and the
	// sort key.
	Disassembly string
	// Offsets is the ordered sequence of file-relative byte offsets
	// within their respective section.
	Offsets []uint64
	// VASections is the ordered sequence of section base virtual
	// addresses, len(VASections) == len(Offsets) (invariant 1). The pair
	// (VASections[i], Offsets[i]) identifies the i-th occurrence.
	VASections []bin.Addr
}

// disassemblyOf renders insts in the canonical "mnem ops ; mnem ops ; "
// form used as both Gadget.Disassembly and the dedup/sort key.
func disassemblyOf(insts []Instruction) string {
	var b strings.Builder
	for _, inst := range insts {
		b.WriteString(inst.String())
		b.WriteString(" ; ")
	}
	return b.String()
}

// New returns a freshly discovered Gadget: insts ending in a terminator,
// found at file offset offset within the section based at vaSection.
func New(insts []Instruction, offset uint64, vaSection bin.Addr) *Gadget {
	return &Gadget{
		Instructions: insts,
		Disassembly:  disassemblyOf(insts),
		Offsets:      []uint64{offset},
		VASections:   []bin.Addr{vaSection},
	}
}

// SortKey returns the Gadget's dedup/sort key: its Disassembly string.
func (g *Gadget) SortKey() string {
	return g.Disassembly
}

// Merge appends other's occurrences onto g, preserving arrival order. It
// requires g.Disassembly == other.Disassembly; callers (the engine and
// orchestrator merge step) are responsible for only merging gadgets that
// share a dedup key.
func (g *Gadget) Merge(other *Gadget) {
	g.Offsets = append(g.Offsets, other.Offsets...)
	g.VASections = append(g.VASections, other.VASections...)
}

// NumOccurrences returns the number of (VASection, Offset) occurrences
// recorded for g.
func (g *Gadget) NumOccurrences() int {
	return len(g.Offsets)
}

// occurrenceVA returns the absolute virtual address of the i-th
// occurrence: VASections[i] + Offsets[i].
func (g *Gadget) occurrenceVA(i int) bin.Addr {
	return g.VASections[i] + bin.Addr(g.Offsets[i])
}

// Occurrence returns the absolute virtual address of the i-th occurrence,
// for callers (the CLI's gadget display) that only need the final address
// and not the section/offset pair it was derived from.
func (g *Gadget) Occurrence(i int) bin.Addr {
	return g.occurrenceVA(i)
}

// FilterOccurrences retains only the occurrences for which blocked
// reports false, in place. It may leave the Gadget with zero occurrences;
// callers (FGKASLR filtering, §4.5) must check NumOccurrences() and
// discard empty gadgets before inserting them into a result set.
func (g *Gadget) FilterOccurrences(blocked func(addr bin.Addr) bool) {
	offsets := g.Offsets[:0]
	vaSections := g.VASections[:0]
	for i := range g.Offsets {
		addr := g.occurrenceVA(i)
		if blocked(addr) {
			continue
		}
		offsets = append(offsets, g.Offsets[i])
		vaSections = append(vaSections, g.VASections[i])
	}
	g.Offsets = offsets
	g.VASections = vaSections
}
