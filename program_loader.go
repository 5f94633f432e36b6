// program_loader.go - Materializes a resolved AE32 program into machine memory

/*
Armlet Engine - AE32: an ARM-flavoured 32-bit virtual machine

(c) 2025 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/ArmletEngine
License: GPLv3 or later
*/

/*
program_loader.go - Program Loader

The loader takes a fully parsed program (instructions and directives with
addresses already resolved by the front-end, plus a symbol table) and
materializes it into machine memory as concrete bytes: encoded instruction
words, literal data, and the literal constant pool. It then establishes the
entry point for execution.

Four phases, strictly ordered:

  1. Segment preparation - registers a low-memory segment when the entry point
     falls below the standard code segment base.
  2. Directive materialization - writes literal bytes/words/strings or reserves
     space, tracking the highest address touched (maxAddr).
  3. Instruction encoding pass - encodes each instruction via the encoder and
     writes the 32-bit word at its parser-assigned address.
  4. Literal pool commit - flushes pool entries accumulated during encoding and
     derives pool-capacity warnings.

Parser-assigned addresses are ground truth: the loader never recomputes
layout, and overlapping writes in a malformed program silently overwrite.
Failure at any phase aborts the load; completed writes are not rolled back and
the only recovery is reloading from scratch.
*/

package main

import (
	"fmt"
	"os"

	"github.com/xyproto/env/v2"
)

// verboseDiagnostics gates operator-facing advisory output such as
// literal-pool capacity warnings.
func verboseDiagnostics() bool {
	return env.Bool("ARMLET_VERBOSE")
}

// ProgramLoader materializes one Program into the machine. It borrows the
// bus, CPU and encoder for the duration of a Load call and keeps no state of
// its own across loads; callers create a fresh encoder per load.
type ProgramLoader struct {
	bus *MachineBus
	cpu *AE32CPU
	enc *InstructionEncoder
}

// NewProgramLoader creates a loader over the given collaborators.
func NewProgramLoader(bus *MachineBus, cpu *AE32CPU, enc *InstructionEncoder) *ProgramLoader {
	return &ProgramLoader{bus: bus, cpu: cpu, enc: enc}
}

// Load runs the four loader phases and finalizes the entry point. On failure
// memory may be partially written; the caller discards the machine state and
// reloads.
func (ld *ProgramLoader) Load(prog *Program, entry uint32) error {
	if err := ld.prepareSegments(entry); err != nil {
		return err
	}

	maxAddr, err := ld.materializeDirectives(prog, entry)
	if err != nil {
		return err
	}

	// The fallback pool origin is fixed before any instruction is encoded:
	// the highest materialized address rounded up to a word boundary.
	ld.enc.SetLiteralPoolStart((maxAddr + 3) &^ 3)

	if err := ld.encodeInstructions(prog, &maxAddr); err != nil {
		return err
	}

	if err := ld.commitLiteralPool(); err != nil {
		return err
	}

	ld.cpu.SetEntryPoint(entry)
	ld.cpu.SetPC(entry)
	return nil
}

// prepareSegments ensures a writable, executable region covers the entry
// point. Entry points at or above CODE_BASE are already covered by the
// standard text segment; anything below gets a dedicated low-memory segment
// spanning [0, CODE_BASE). A reload finds the segment from the previous load
// already in place and leaves it alone.
func (ld *ProgramLoader) prepareSegments(entry uint32) error {
	if entry >= CODE_BASE {
		return nil
	}
	if ld.bus.SegmentAt(entry) != nil {
		return nil
	}
	if err := ld.bus.AddSegment("lowmem", 0, CODE_BASE, PermRWX); err != nil {
		return fmt.Errorf("loader: low-memory segment for entry 0x%08X: %w", entry, err)
	}
	return nil
}

// materializeDirectives interprets each directive's effect on memory in
// address order and returns the highest address touched. maxAddr starts at
// the entry point and never decreases.
func (ld *ProgramLoader) materializeDirectives(prog *Program, entry uint32) (uint32, error) {
	maxAddr := entry

	touch := func(addr uint32) {
		if addr > maxAddr {
			maxAddr = addr
		}
	}

	for _, d := range prog.Directives {
		cursor := d.Addr

		switch d.Name {
		case ".org", ".align", ".balign":
			// Layout already happened in the parser; nothing to write.

		case ".ltorg":
			// Pool entries land here during the commit phase; the site only
			// matters for layout, which the parser already accounted for.

		case ".word":
			for _, arg := range d.Args {
				value, kind := resolveValue(arg, prog.Symbols)
				if kind == ValueInvalid {
					return 0, fmt.Errorf("loader: .word at 0x%08X (line %d): unresolvable operand %q", cursor, d.Line, arg)
				}
				if !ld.bus.Write32WithFault(cursor, value) {
					return 0, fmt.Errorf("loader: .word at 0x%08X: address outside any writable segment", cursor)
				}
				cursor += 4
				touch(cursor)
			}

		case ".byte":
			for _, arg := range d.Args {
				var value uint32
				if isCharLiteral(arg) {
					b, err := parseCharLiteral(arg)
					if err != nil {
						return 0, fmt.Errorf("loader: .byte at 0x%08X (line %d): %v", cursor, d.Line, err)
					}
					value = uint32(b)
				} else {
					v, kind := resolveValue(arg, prog.Symbols)
					if kind == ValueInvalid {
						return 0, fmt.Errorf("loader: .byte at 0x%08X (line %d): unresolvable operand %q", cursor, d.Line, arg)
					}
					value = v
				}
				if !ld.bus.Write8WithFault(cursor, uint8(value)) {
					return 0, fmt.Errorf("loader: .byte at 0x%08X: address outside any writable segment", cursor)
				}
				cursor++
				touch(cursor)
			}

		case ".ascii", ".asciz", ".string":
			for _, arg := range d.Args {
				s, err := unescapeString(arg)
				if err != nil {
					return 0, fmt.Errorf("loader: %s at 0x%08X (line %d): %v", d.Name, cursor, d.Line, err)
				}
				if d.Name != ".ascii" {
					s += "\x00"
				}
				for i := 0; i < len(s); i++ {
					if !ld.bus.Write8WithFault(cursor, s[i]) {
						return 0, fmt.Errorf("loader: %s at 0x%08X: address outside any writable segment", d.Name, cursor)
					}
					cursor++
				}
				touch(cursor)
			}

		case ".space", ".skip":
			// Reservation only: no bytes are written. An unparseable size
			// degrades to a no-op rather than failing the load.
			if len(d.Args) == 1 {
				if size, kind := resolveValue(d.Args[0], nil); kind != ValueInvalid {
					touch(cursor + size)
				}
			}

		default:
			return 0, fmt.Errorf("loader: unknown directive %s at 0x%08X (line %d)", d.Name, cursor, d.Line)
		}
	}

	return maxAddr, nil
}

// encodeInstructions walks all instructions in parser-assigned address order,
// encodes each via the encoder, and writes the 32-bit word at its address.
func (ld *ProgramLoader) encodeInstructions(prog *Program, maxAddr *uint32) error {
	for _, ins := range prog.Instructions {
		word, err := ld.enc.EncodeInstruction(ins)
		if err != nil {
			return fmt.Errorf("loader: %s at 0x%08X (line %d): %w", ins.Mnemonic, ins.Addr, ins.Line, err)
		}
		if !ld.bus.Write32WithFault(ins.Addr, word) {
			return fmt.Errorf("loader: %s at 0x%08X: address outside any writable segment", ins.Mnemonic, ins.Addr)
		}
		if end := ins.Addr + 4; end > *maxAddr {
			*maxAddr = end
		}
	}
	return nil
}

// commitLiteralPool writes every pool entry accumulated during encoding. Pool
// slot addresses were assigned by the encoder and are trusted here. Capacity
// validation runs afterwards; its warnings are advisory and surface only when
// the operator opted into verbose diagnostics.
func (ld *ProgramLoader) commitLiteralPool() error {
	for addr, value := range ld.enc.LiteralPool() {
		if !ld.bus.Write32WithFault(addr, value) {
			return fmt.Errorf("loader: literal pool entry at 0x%08X: address outside any writable segment", addr)
		}
	}
	ld.enc.ValidatePoolCapacity()
	if ld.enc.HasPoolWarnings() && verboseDiagnostics() {
		for _, w := range ld.enc.PoolWarnings() {
			fmt.Fprintf(os.Stderr, "loader: warning: %s\n", w)
		}
	}
	return nil
}
