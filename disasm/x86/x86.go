// Package x86 implements a disassembler for the x86 and x64 architectures,
// adapting golang.org/x/arch/x86/x86asm to the single-instruction decode
// contract of §4.1: Decode(buffer, offset, baseVA) → Instruction. Grounded
// on the teacher package of the same name (decodeInst, isTerm), rewritten
// around that contract instead of a forward basic-block/function lifter.
package x86

import (
	"log"
	"os"

	"github.com/mewkiz/pkg/term"
	"github.com/mewmew/rop/bin"
	"github.com/mewmew/rop/gadget"
	"github.com/pkg/errors"
	"golang.org/x/arch/x86/x86asm"
)

var (
	// dbg is a logger which logs debug messages with "x86:" prefix to
	// standard error.
	dbg = log.New(os.Stderr, term.MagentaBold("x86:")+" ", 0)
	// warn is a logger which logs warning messages with "warning:" prefix
	// to standard error.
	warn = log.New(os.Stderr, term.RedBold("warning:")+" ", 0)
)

// Syntax selects the assembly syntax used when rendering decoded
// instructions. It does not affect terminator classification, only the
// text that ends up in a Gadget's Disassembly dedup key (§4.1).
type Syntax int

const (
	// Intel syntax, e.g. "mov eax, ebx".
	Intel Syntax = iota
	// ATT syntax, e.g. "mov %ebx, %eax".
	ATT
)

// Decode decodes the leading instruction of buffer[offset:] as an x86 or
// x64 instruction (mode is x86asm.Mode32 or x86asm.Mode64), annotates it
// with address baseVA+offset, and renders it under syntax. On failure the
// bytes at offset do not begin a legal instruction under mode; the error
// is a local DecodeError (§7) that callers (the gadget engine) must treat
// as non-fatal.
func Decode(buffer []byte, offset int, baseVA bin.Addr, mode int, syntax Syntax) (gadget.Instruction, error) {
	if offset < 0 || offset >= len(buffer) {
		return gadget.Instruction{}, errors.Errorf("offset %d out of range [0, %d)", offset, len(buffer))
	}
	src := buffer[offset:]
	inst, err := x86asm.Decode(src, mode)
	if err != nil {
		return gadget.Instruction{}, errors.WithStack(err)
	}
	mnem, ops := render(inst, syntax)
	return gadget.Instruction{
		Mnemonic: mnem,
		Operands: ops,
		Length:   inst.Len,
		Bytes:    append([]byte(nil), src[:inst.Len]...),
		Address:  baseVA + bin.Addr(offset),
	}, nil
}

// render splits the textual form of inst, under syntax, into a mnemonic
// and an operand string.
func render(inst x86asm.Inst, syntax Syntax) (mnemonic, operands string) {
	var full string
	switch syntax {
	case ATT:
		full = x86asm.GNUSyntax(inst, 0, nil)
	default:
		full = x86asm.IntelSyntax(inst, 0, nil)
	}
	for i, r := range full {
		if r == ' ' {
			return full[:i], full[i+1:]
		}
	}
	return full, ""
}

// IsTerminator reports whether the instruction starting at buffer[offset:],
// decoded under mode, is one of the patterns that may legally end a ROP
// gadget: near or far ret, int, syscall, sysenter, or an indirect jmp/call
// through a register (§4.3, minimum required terminator set includes
// retf). A decode failure at offset reports false, exactly as an
// instruction that plainly isn't a terminator would.
func IsTerminator(buffer []byte, offset int, mode int) bool {
	inst, ok := decodeAt(buffer, offset, mode)
	if !ok {
		return false
	}
	switch inst.Op {
	// Near and far returns.
	case x86asm.RET, x86asm.LRET:
		return true
	case x86asm.INT, x86asm.SYSCALL, x86asm.SYSENTER:
		return true
	case x86asm.JMP, x86asm.CALL:
		return isRegisterOperand(inst)
	}
	return false
}

// SeversChain reports whether the instruction starting at buffer[offset:],
// decoded under mode, is any control-transfer instruction — terminator or
// not — that would break a straight-line preamble if it appeared anywhere
// but the final position of a gadget window (§4.3, "any non-final
// instruction is itself a terminator or an unconditional control-transfer
// that would sever the chain"). Grounded on the teacher's isTerm, which
// classified the same opcode set for basic-block splitting purposes.
func SeversChain(buffer []byte, offset int, mode int) bool {
	inst, ok := decodeAt(buffer, offset, mode)
	if !ok {
		return false
	}
	switch inst.Op {
	// Loop terminators.
	case x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE:
		return true
	// Conditional jump terminators.
	case x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JCXZ, x86asm.JE, x86asm.JECXZ, x86asm.JG, x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JNE, x86asm.JNO, x86asm.JNP, x86asm.JNS, x86asm.JO, x86asm.JP, x86asm.JRCXZ, x86asm.JS:
		return true
	// Unconditional control transfers.
	case x86asm.JMP, x86asm.CALL, x86asm.RET, x86asm.LRET, x86asm.INT, x86asm.INT3, x86asm.SYSCALL, x86asm.SYSENTER:
		return true
	}
	return false
}

// decodeAt decodes the instruction at buffer[offset:] under mode, for
// classification purposes only; it discards the operand/length rendering
// Decode produces. ok is false if offset is out of range or the bytes do
// not form a legal instruction.
func decodeAt(buffer []byte, offset int, mode int) (x86asm.Inst, bool) {
	if offset < 0 || offset >= len(buffer) {
		return x86asm.Inst{}, false
	}
	inst, err := x86asm.Decode(buffer[offset:], mode)
	if err != nil {
		return x86asm.Inst{}, false
	}
	return inst, true
}

// isRegisterOperand reports whether inst's first argument is a bare
// register (as opposed to a relative offset or a memory operand), the
// form required for an indirect jmp/call terminator.
func isRegisterOperand(inst x86asm.Inst) bool {
	if len(inst.Args) == 0 || inst.Args[0] == nil {
		return false
	}
	_, ok := inst.Args[0].(x86asm.Reg)
	return ok
}
