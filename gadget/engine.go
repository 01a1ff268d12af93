package gadget

import "github.com/mewmew/rop/bin"

// Engine scans a section's bytes for gadgets, driving a CPU back-end
// through backwards-growing windows that end at a terminator, per §4.3 of
// the specification. An Engine is stateless and safe to reuse across
// sections and across goroutines, provided the underlying CPU is (the CPU
// contract requires per-worker instantiation if it holds mutable scratch
// state, §5).
type Engine struct {
	CPU CPU
}

// NewEngine returns an Engine driven by cpu.
func NewEngine(cpu CPU) *Engine {
	return &Engine{CPU: cpu}
}

// Scan discovers every gadget in buffer, a section's bytes mapped at
// baseVA, up to depth bytes of preamble before each terminator. It
// returns the section-local deduplicated Set; the orchestrator merges
// this across sections (§4.4).
func (e *Engine) Scan(buffer []byte, baseVA bin.Addr, depth int) *Set {
	result := NewSet()
	maxInstructions := depth + 1
	size := len(buffer)
	for t := 0; t < size; t++ {
		if !e.CPU.IsTerminator(buffer, t) {
			continue
		}
		term, err := e.CPU.Decode(buffer, t, baseVA)
		if err != nil {
			// DecodeError: local, non-fatal (§7). Not a legal instruction
			// start; move on to the next offset.
			continue
		}
		tEnd := t + term.Length
		if tEnd > size {
			continue
		}
		for preLen := 0; preLen <= depth; preLen++ {
			start := t - preLen
			if start < 0 {
				break
			}
			insts, ok := e.decodeWindow(buffer, start, t, tEnd, baseVA, maxInstructions)
			if !ok {
				continue
			}
			result.Insert(New(insts, uint64(start), baseVA))
		}
	}
	return result
}

// decodeWindow attempts to fully disassemble buffer[start:end] as a
// sequence of instructions ending exactly at end, with no non-final
// instruction severing the chain, and no more than maxInstructions total
// (§4.3 step 6). The final instruction must begin exactly at termStart —
// the terminator offset the caller already confirmed IsTerminator true
// for — otherwise a preceding instruction could absorb the terminator's
// bytes and still land exactly on end without termStart ever being an
// instruction boundary, producing a gadget whose last instruction isn't
// actually a terminator. It returns ok == false for any rejected window;
// the caller tries the next preamble length.
func (e *Engine) decodeWindow(buffer []byte, start, termStart, end int, baseVA bin.Addr, maxInstructions int) ([]Instruction, bool) {
	var insts []Instruction
	pos := start
	for pos < end {
		if len(insts) >= maxInstructions {
			return nil, false
		}
		inst, err := e.CPU.Decode(buffer, pos, baseVA)
		if err != nil {
			return nil, false
		}
		next := pos + inst.Length
		if next > end {
			// Decoded past the terminator boundary: misaligned window.
			return nil, false
		}
		isFinal := next == end
		if isFinal {
			if pos != termStart {
				// This instruction absorbed the terminator's bytes instead
				// of landing on it: termStart is not an instruction
				// boundary in this window.
				return nil, false
			}
		} else if e.CPU.SeversChain(buffer, pos) {
			// A preamble instruction may not itself sever control flow
			// (terminator or otherwise).
			return nil, false
		}
		insts = append(insts, inst)
		pos = next
	}
	if pos != end || len(insts) == 0 {
		return nil, false
	}
	return insts, true
}
