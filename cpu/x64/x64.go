// Package x64 is the 64-bit x86 CPU back-end: it satisfies gadget.CPU by
// driving disasm/x86 in 64-bit mode.
package x64

import (
	"github.com/mewmew/rop/bin"
	disx86 "github.com/mewmew/rop/disasm/x86"
	"github.com/mewmew/rop/gadget"
	"golang.org/x/arch/x86/x86asm"
)

// CPU is the 64-bit x86 gadget.CPU implementation.
type CPU struct {
	// Syntax selects Intel or AT&T rendering of decoded instructions.
	Syntax disx86.Syntax
}

// New returns a 64-bit x86 CPU back-end rendering instructions under
// syntax.
func New(syntax disx86.Syntax) *CPU {
	return &CPU{Syntax: syntax}
}

// ClassName implements gadget.CPU.
func (c *CPU) ClassName() string { return "x64" }

// Decode implements gadget.Disassembler.
func (c *CPU) Decode(buffer []byte, offset int, baseVA bin.Addr) (gadget.Instruction, error) {
	return disx86.Decode(buffer, offset, baseVA, x86asm.Mode64, c.Syntax)
}

// IsTerminator implements gadget.CPU.
func (c *CPU) IsTerminator(buffer []byte, offset int) bool {
	return disx86.IsTerminator(buffer, offset, x86asm.Mode64)
}

// SeversChain implements gadget.CPU.
func (c *CPU) SeversChain(buffer []byte, offset int) bool {
	return disx86.SeversChain(buffer, offset, x86asm.Mode64)
}

// MaxInstructionLen implements gadget.CPU. x86-64 instructions are at most
// 15 bytes long, the ISA-wide bound referenced in §3.
func (c *CPU) MaxInstructionLen() int { return 15 }
