// Package gadget implements the gadget-discovery core of the ROP finder:
// the Instruction/Gadget data model (§3 of the specification), the
// per-CPU scanning engine (§4.3), and the sort/dedup contract tools rely
// on. It is deliberately CPU-agnostic; concrete architectures live under
// the sibling cpu/ packages and satisfy the Disassembler/CPU interfaces
// declared here.
package gadget

import (
	"fmt"

	"github.com/mewmew/rop/bin"
)

// Instruction is an immutable disassembled instruction: mnemonic, operand
// text, byte length, raw bytes and the virtual address at which it would
// execute. It is produced once by a Disassembler and never mutated
// afterwards (§4.1).
type Instruction struct {
	// Mnemonic is the short instruction name, e.g. "ret", "mov".
	Mnemonic string
	// Operands is the textual operand list, e.g. "eax, 4".
	Operands string
	// Length is the instruction's encoded length in bytes.
	Length int
	// Bytes is the raw encoding of the instruction.
	Bytes []byte
	// Address is the virtual address at which the instruction begins.
	Address bin.Addr
}

// String returns the canonical textual form of the instruction: mnemonic
// followed by operands, space separated. It is the unit joined by the
// Gadget's disassembly dedup key.
func (inst Instruction) String() string {
	if inst.Operands == "" {
		return inst.Mnemonic
	}
	return fmt.Sprintf("%s %s", inst.Mnemonic, inst.Operands)
}

// Disassembler decodes exactly one instruction starting at offset within
// buffer, whose first byte corresponds to virtual address baseVA. It must
// be deterministic and pure: no observable side effect other than the
// returned Instruction. Decoding failure is local and non-fatal (§7,
// DecodeError) and is reported through the error return, never a panic.
type Disassembler interface {
	Decode(buffer []byte, offset int, baseVA bin.Addr) (Instruction, error)
}

// CPU is a per-architecture back-end: a Disassembler plus the
// architecture's notion of which instructions terminate a gadget (§4.3).
type CPU interface {
	Disassembler
	// ClassName identifies the back-end, e.g. "x86", "x64".
	ClassName() string
	// IsTerminator reports whether the instruction starting at offset is a
	// terminator: one that may legally end a gadget (ret, int, syscall,
	// jmp/call through a register, ...). At most the final instruction of
	// a Gadget may answer true here. It inspects the same (buffer, offset)
	// Decode would, rather than the generic Instruction, because
	// classification needs the architecture's native opcode/operand
	// encoding, which the CPU-agnostic Instruction deliberately discards.
	IsTerminator(buffer []byte, offset int) bool
	// SeversChain reports whether the instruction starting at offset would
	// break a straight-line preamble: any control-transfer instruction,
	// terminator or not (conditional/unconditional jumps, calls, loops,
	// returns, interrupts, syscalls). Only the final instruction of a
	// Gadget may be one of these, and then only if IsTerminator also
	// holds.
	SeversChain(buffer []byte, offset int) bool
	// MaxInstructionLen is the longest instruction this back-end can
	// decode. Engine does not consult it; its windows are bounded by the
	// scan depth in bytes.
	MaxInstructionLen() int
}
