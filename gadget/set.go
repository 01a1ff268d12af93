package gadget

import "sort"

// Set is the deduplicated multiset of Gadgets produced by a scan or a
// merge of several scans (§4.2, invariant 2): at most one Gadget per
// distinct Disassembly key, with occurrence lists concatenated across
// insertions that share a key. Raw-pointer multiset inserts in the
// reference implementation become a map keyed by value, not identity.
type Set struct {
	byKey map[string]*Gadget
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{byKey: make(map[string]*Gadget)}
}

// Insert adds g to the set. If a Gadget with the same Disassembly already
// exists, g's occurrences are merged into it (in scan/arrival order) and g
// is discarded; otherwise g is inserted as a new entry.
func (s *Set) Insert(g *Gadget) {
	if existing, ok := s.byKey[g.Disassembly]; ok {
		existing.Merge(g)
		return
	}
	s.byKey[g.Disassembly] = g
}

// Len returns the number of distinct gadgets currently in the set.
func (s *Set) Len() int {
	return len(s.byKey)
}

// Merge inserts every gadget of other into s, via Insert. The call itself
// does not modify other's gadgets: occurrences of a gadget whose key is
// already in s are appended to s's gadget. A gadget whose key is new to s
// is stored by pointer, so it is then shared by both sets and later merges
// into s also change it as seen from other.
func (s *Set) Merge(other *Set) {
	for _, g := range other.byKey {
		s.Insert(g)
	}
}

// Sorted returns every gadget in s ordered ascending by Disassembly
// (byte-wise lexicographic), satisfying the sort-order testable property
// of §8. Gadgets left with zero occurrences (e.g. by FGKASLR filtering)
// are omitted.
func (s *Set) Sorted() []*Gadget {
	out := make([]*Gadget, 0, len(s.byKey))
	for _, g := range s.byKey {
		if g.NumOccurrences() == 0 {
			continue
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Disassembly < out[j].Disassembly
	})
	return out
}
