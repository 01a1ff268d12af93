package main

import (
	"fmt"
	"io"

	"github.com/mewmew/rop/gadget"
)

// gadgetSet is gadget.Set with a CLI-facing rendering method; gadget output
// formatting is explicitly the CLI's concern, not the engine's (the core
// only guarantees the sorted, deduplicated Disassembly/occurrence data).
type gadgetSet gadget.Set

// display prints every gadget in ascending Disassembly order, one line per
// occurrence: "<address>: <disassembly>", mirroring the dbg-logged
// address/pattern lines of program.SearchAndDisplay.
func (s *gadgetSet) display(w io.Writer) {
	set := (*gadget.Set)(s)
	gadgets := set.Sorted()
	for _, g := range gadgets {
		for i := 0; i < g.NumOccurrences(); i++ {
			fmt.Fprintf(w, "%v: %s\n", g.Occurrence(i), g.Disassembly)
		}
	}
}
