// Package pe implements the format.ExecutableFormat contract for PE
// binaries, built on the standard library's debug/pe — the same package
// the teacher (mewmew/x, cmd/x/pe.go) used to classify executable
// sections via the IMAGE_SCN_MEM_EXECUTE characteristic bit.
package pe

import (
	stdpe "debug/pe"
	"log"
	"os"

	"github.com/kr/pretty"
	"github.com/mewkiz/pkg/term"
	"github.com/mewmew/rop/bin"
	disx86 "github.com/mewmew/rop/disasm/x86"
	"github.com/mewmew/rop/format"
	"github.com/mewmew/rop/gadget"
	"github.com/pkg/errors"

	cpux64 "github.com/mewmew/rop/cpu/x64"
	cpux86 "github.com/mewmew/rop/cpu/x86"
)

var (
	dbg  = log.New(os.Stderr, term.MagentaBold("pe:")+" ", 0)
	warn = log.New(os.Stderr, term.RedBold("warning:")+" ", 0)
)

// codeMask is IMAGE_SCN_MEM_EXECUTE, the PE section-characteristics bit
// marking a section as containing executable code. Grounded on the
// teacher's isExec (cmd/x/pe.go).
const codeMask = 0x00000020

// Format implements format.ExecutableFormat for PE binaries.
type Format struct{}

// New returns a PE Format.
func New() *Format { return &Format{} }

// ClassName implements format.ExecutableFormat.
func (f *Format) ClassName() string { return "PE" }

// imageBase returns the configured load address of file, supporting both
// 32- and 64-bit optional headers.
func imageBase(file *stdpe.File) (bin.Addr, error) {
	switch hdr := file.OptionalHeader.(type) {
	case *stdpe.OptionalHeader32:
		return bin.Addr(hdr.ImageBase), nil
	case *stdpe.OptionalHeader64:
		return bin.Addr(hdr.ImageBase), nil
	default:
		return 0, errors.New("unrecognized PE optional header")
	}
}

// isExec reports whether sect is marked executable, per the teacher's
// isExec helper.
func isExec(sect *stdpe.Section) bool {
	return sect.Characteristics&codeMask != 0
}

// ExecutableSections implements format.ExecutableFormat.
func (f *Format) ExecutableSections(file format.File) ([]bin.Section, error) {
	pf, err := stdpe.NewFile(file)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer pf.Close()
	base, err := imageBase(pf)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var sections []bin.Section
	for _, sect := range pf.Sections {
		if !isExec(sect) {
			continue
		}
		data, err := sect.Data()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		vaddr := base + bin.Addr(sect.VirtualAddress)
		dbg.Printf("executable section %q @ %#x (%d bytes)", sect.Name, uint64(vaddr), len(data))
		sections = append(sections, bin.NewBasicSection(sect.Name, vaddr, data))
	}
	return sections, nil
}

// NamedRegions implements format.ExecutableFormat: every PE section,
// named and addressed. PE does not have an equivalent of ELF's
// -ffunction-sections ".text.foo" convention, so this rarely yields
// anything a ".text." prefix match retains; FGKASLR filtering is
// primarily an ELF/kernel-image feature (§4.5, §9).
func (f *Format) NamedRegions(file format.File) ([]*bin.NamedRegion, error) {
	pf, err := stdpe.NewFile(file)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer pf.Close()
	base, err := imageBase(pf)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var regions []*bin.NamedRegion
	for _, sect := range pf.Sections {
		vaddr := base + bin.Addr(sect.VirtualAddress)
		regions = append(regions, bin.NewNamedRegion(sect.Name, uint64(sect.Offset), vaddr, uint64(sect.Size)))
	}
	return regions, nil
}

// CPU implements format.ExecutableFormat: resolves the x86/x64 back-end
// from the PE header's machine field.
func (f *Format) CPU(file format.File, syntax disx86.Syntax) (gadget.CPU, error) {
	pf, err := stdpe.NewFile(file)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer pf.Close()
	switch pf.Machine {
	case stdpe.IMAGE_FILE_MACHINE_I386:
		return cpux86.New(syntax), nil
	case stdpe.IMAGE_FILE_MACHINE_AMD64:
		return cpux64.New(syntax), nil
	default:
		return nil, errors.Errorf("unsupported PE machine type %#x", pf.Machine)
	}
}

// DisplayInformation implements format.ExecutableFormat.
func (f *Format) DisplayInformation(file format.File, v format.Verbosity) {
	if v < format.Normal {
		return
	}
	pf, err := stdpe.NewFile(file)
	if err != nil {
		warn.Printf("unable to parse PE header: %v", err)
		return
	}
	defer pf.Close()
	dbg.Printf("PE machine=%#x sections=%d", pf.Machine, len(pf.Sections))
	if v < format.Verbose {
		return
	}
	for _, sect := range pf.Sections {
		dbg.Printf("  section %-20s va=%#x size=%d characteristics=%#x", sect.Name, sect.VirtualAddress, sect.Size, sect.Characteristics)
	}
	if v >= format.VeryVerbose {
		for _, sect := range pf.Sections {
			dbg.Printf("%# v", pretty.Formatter(sect))
		}
	}
}
