// Package format declares the ExecutableFormat contract of §6 — the
// external collaborator every concrete binary parser (ELF, PE, Raw)
// implements, and that Program consumes to obtain executable sections,
// named regions and the appropriate CPU back-end. Per §1 the parsers
// themselves are out of scope for the gadget-discovery core; only this
// contract, and thin stdlib-backed adapters satisfying it, live here.
package format

import (
	"io"

	"github.com/mewmew/rop/bin"
	disx86 "github.com/mewmew/rop/disasm/x86"
	"github.com/mewmew/rop/gadget"
)

// File is the minimal random-access file handle the format parsers need:
// enough for debug/elf and debug/pe to read section headers and content
// on demand.
type File interface {
	io.ReaderAt
	io.Reader
	io.Seeker
}

// Verbosity selects how much detail DisplayInformation prints.
type Verbosity int

const (
	// Quiet prints nothing.
	Quiet Verbosity = iota
	// Normal prints a one-line summary.
	Normal
	// Verbose additionally lists sections and named regions.
	Verbose
	// VeryVerbose additionally pretty-prints the parsed structures.
	VeryVerbose
)

// ExecutableFormat is the contract implemented by each concrete binary
// parser (§6): it turns a File into the executable Sections and
// NamedRegions the gadget engine and FGKASLR blocker consume, and
// resolves the file's native CPU back-end.
type ExecutableFormat interface {
	// ExecutableSections returns every section of file that is mapped
	// executable.
	ExecutableSections(file File) ([]bin.Section, error)
	// NamedRegions returns every named sub-region of file (e.g. ELF
	// sections), independent of the top-level executable sections.
	// Implementations that cannot produce named regions return a nil
	// slice and no error; the orchestrator treats that as "FGKASLR not
	// applicable" (§4.5), not a failure.
	NamedRegions(file File) ([]*bin.NamedRegion, error)
	// CPU resolves the architecture-specific gadget.CPU back-end for
	// file, rendering decoded instructions under syntax.
	CPU(file File, syntax disx86.Syntax) (gadget.CPU, error)
	// ClassName identifies the format, e.g. "ELF", "PE", "Raw".
	ClassName() string
	// DisplayInformation prints format-specific details of file at the
	// requested verbosity.
	DisplayInformation(file File, v Verbosity)
}
