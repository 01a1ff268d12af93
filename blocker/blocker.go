// Package blocker implements the FGKASLR address filter (§4.5, §9): a
// dense set of blocked virtual addresses derived from named sub-regions
// whose name begins with the literal prefix ".text." — the Linux kernel
// convention for per-function sections produced by -ffunction-sections.
//
// The reference implementation (original_source/program.cpp) keys a
// std::map<u64,bool> by every individual blocked address, which the
// specification's design notes (§9) flag as correct but too dense.
// Blocker instead stores the regions as a sorted, non-overlapping
// interval list and answers membership with a binary search: O(log n)
// instead of O(1)-but-enormous, for the same semantics.
package blocker

import (
	"sort"

	"github.com/mewmew/rop/bin"
)

// interval is a half-open address range [lo, hi).
type interval struct {
	lo, hi bin.Addr
}

// Blocker answers point-membership queries against the union of every
// ".text.*" named region's address range. It is read-only after Build
// and safe for concurrent readers (§5).
type Blocker struct {
	intervals []interval
}

// textDotPrefix is the literal prefix a named region's name must start
// with to be folded into the blocked set. A region named exactly ".text"
// (no trailing dot-qualifier) does not match, preserving the Open
// Question resolution documented in DESIGN.md and spec.md §9.
const textDotPrefix = ".text."

// NamedRegion is the minimal view of bin.NamedRegion the blocker needs:
// a name, a base virtual address, and a size in bytes.
type NamedRegion interface {
	Name() string
	Vaddr() bin.Addr
	Size() uint64
}

// Build constructs a Blocker from regions, retaining only those whose
// name begins with ".text." (§4.5 step 1) and marking every address in
// [vaddr, vaddr+size) as blocked (§4.5 step 2).
func Build(regions []NamedRegion) *Blocker {
	b := &Blocker{}
	for _, r := range regions {
		if !hasTextDotPrefix(r.Name()) {
			continue
		}
		if r.Size() == 0 {
			continue
		}
		b.intervals = append(b.intervals, interval{
			lo: r.Vaddr(),
			hi: r.Vaddr() + bin.Addr(r.Size()),
		})
	}
	sort.Slice(b.intervals, func(i, j int) bool {
		return b.intervals[i].lo < b.intervals[j].lo
	})
	b.intervals = coalesce(b.intervals)
	return b
}

// coalesce merges adjacent/overlapping sorted intervals into the minimal
// equivalent non-overlapping set, so binary search in Blocked sees a
// strictly increasing sequence of disjoint ranges.
func coalesce(sorted []interval) []interval {
	if len(sorted) == 0 {
		return sorted
	}
	out := make([]interval, 0, len(sorted))
	cur := sorted[0]
	for _, iv := range sorted[1:] {
		if iv.lo <= cur.hi {
			if iv.hi > cur.hi {
				cur.hi = iv.hi
			}
			continue
		}
		out = append(out, cur)
		cur = iv
	}
	out = append(out, cur)
	return out
}

// hasTextDotPrefix reports whether name begins with the literal ".text."
// prefix.
func hasTextDotPrefix(name string) bool {
	if len(name) < len(textDotPrefix) {
		return false
	}
	return name[:len(textDotPrefix)] == textDotPrefix
}

// Blocked reports whether addr falls within any retained named region.
func (b *Blocker) Blocked(addr bin.Addr) bool {
	// Find the last interval whose lo <= addr.
	i := sort.Search(len(b.intervals), func(i int) bool {
		return b.intervals[i].lo > addr
	})
	if i == 0 {
		return false
	}
	iv := b.intervals[i-1]
	return addr < iv.hi
}

// Empty reports whether the blocker has no blocked regions at all, e.g.
// because none of the regions passed to Build has a ".text." name. The
// orchestrator's "no named regions => warn and return empty" check (§4.5)
// looks at the region list itself, not at Empty.
func (b *Blocker) Empty() bool {
	return len(b.intervals) == 0
}
