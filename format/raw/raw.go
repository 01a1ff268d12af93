// Package raw implements the format.ExecutableFormat contract for raw
// (headerless) binaries: the whole file is treated as a single
// executable section mapped at a caller-supplied base address, and the
// CPU architecture is whatever the caller already knows it to be (there
// is no magic to sniff), exactly as original_source/program.cpp's
// constructor takes arch != CPU_UNKNOWN as a signal to build a Raw
// ExecutableFormat directly instead of probing file contents.
package raw

import (
	"io"

	"github.com/mewmew/rop/bin"
	disx86 "github.com/mewmew/rop/disasm/x86"
	"github.com/mewmew/rop/format"
	"github.com/mewmew/rop/gadget"
	"github.com/pkg/errors"

	cpux64 "github.com/mewmew/rop/cpu/x64"
	cpux86 "github.com/mewmew/rop/cpu/x86"
)

// Arch identifies the CPU architecture of a raw file, supplied by the
// caller (CLI --raw flag) since raw files carry no format header.
type Arch int

const (
	// ArchX86 selects the 32-bit x86 back-end.
	ArchX86 Arch = iota
	// ArchX64 selects the 64-bit x86 back-end.
	ArchX64
)

// Format implements format.ExecutableFormat for raw binaries.
type Format struct {
	// Arch is the CPU architecture to disassemble as.
	Arch Arch
	// BaseVA is the virtual address at which the file's first byte is
	// mapped.
	BaseVA bin.Addr
}

// New returns a raw Format for the given architecture, mapped at baseVA.
func New(arch Arch, baseVA bin.Addr) *Format {
	return &Format{Arch: arch, BaseVA: baseVA}
}

// ClassName implements format.ExecutableFormat.
func (f *Format) ClassName() string { return "Raw" }

// ExecutableSections implements format.ExecutableFormat: the entire file
// content, as a single section named ".raw".
func (f *Format) ExecutableSections(file format.File) ([]bin.Section, error) {
	data, err := io.ReadAll(readerFrom(file))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return []bin.Section{bin.NewBasicSection(".raw", f.BaseVA, data)}, nil
}

// NamedRegions implements format.ExecutableFormat. Raw files carry no
// symbolic sub-region metadata, so there is nothing to return; per §4.5
// the orchestrator treats a nil, error-free result as "FGKASLR filtering
// is not applicable" and warns instead of failing.
func (f *Format) NamedRegions(file format.File) ([]*bin.NamedRegion, error) {
	return nil, nil
}

// CPU implements format.ExecutableFormat: the architecture is whatever
// the caller configured f.Arch to, not detected from file content.
func (f *Format) CPU(file format.File, syntax disx86.Syntax) (gadget.CPU, error) {
	switch f.Arch {
	case ArchX86:
		return cpux86.New(syntax), nil
	case ArchX64:
		return cpux64.New(syntax), nil
	default:
		return nil, errors.Errorf("unsupported raw architecture %v", f.Arch)
	}
}

// DisplayInformation implements format.ExecutableFormat.
func (f *Format) DisplayInformation(file format.File, v format.Verbosity) {
	// Nothing beyond ClassName/Arch to report for a raw file; Program
	// already prints those via its own startup banner (§4).
}

// readerFrom rewinds file to its start and returns it as an io.Reader,
// since ExecutableSections is the only consumer and may be called after
// other format methods have read from file.
func readerFrom(file format.File) io.Reader {
	_, _ = file.Seek(0, io.SeekStart)
	return file
}
