// cpu_ae32.go - AE32 CPU core for the Armlet Engine

/*
Armlet Engine - AE32: an ARM-flavoured 32-bit virtual machine

(c) 2025 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/ArmletEngine
License: GPLv3 or later
*/

/*
cpu_ae32.go - AE32 Execution Core

Sixteen 32-bit registers (r13 = sp, r14 = lr, r15 = pc), NZCV condition flags,
and conditional execution on every instruction word. The core executes the
instruction subset produced by the AE32 encoder: the data-processing group,
load/store with immediate offset, branches, branch-exchange, and software
interrupts.

Register reads of r15 observe the classic pipeline value PC+8; the encoder's
PC-relative offsets assume the same convention.

Software interrupts:
    swi 0 - halt
    swi 1 - write low byte of r0 to the terminal (TERM_OUT)
    swi 2 - read one character from the terminal (TERM_IN) into r0
*/

package main

import (
	"fmt"
	"os"
)

// SWI service numbers
const (
	SWI_HALT = 0
	SWI_PUTC = 1
	SWI_GETC = 2
)

// AE32CPU is the AE32 execution core.
type AE32CPU struct {
	R [16]uint32 // r13 = sp, r14 = lr, r15 = pc

	// Condition flags
	N, Z, C, V bool

	Running bool
	Trace   bool

	entryPoint uint32
	steps      uint64
	bus        *MachineBus
}

// NewAE32CPU creates a core with the stack pointer at the top of the stack
// segment and the program counter at the code segment base.
func NewAE32CPU(bus *MachineBus) *AE32CPU {
	cpu := &AE32CPU{bus: bus}
	cpu.R[13] = STACK_TOP
	cpu.R[15] = CODE_BASE
	cpu.entryPoint = CODE_BASE
	return cpu
}

// PC returns the program counter.
func (cpu *AE32CPU) PC() uint32 {
	return cpu.R[15]
}

// SetPC sets the program counter.
func (cpu *AE32CPU) SetPC(addr uint32) {
	cpu.R[15] = addr
}

// EntryPoint returns the recorded entry point, the canonical reset target.
func (cpu *AE32CPU) EntryPoint() uint32 {
	return cpu.entryPoint
}

// SetEntryPoint records the entry point established by the loader. It is kept
// independent of the program counter so that Reset always returns to the
// loaded program's start regardless of where execution wandered.
func (cpu *AE32CPU) SetEntryPoint(addr uint32) {
	cpu.entryPoint = addr
}

// Steps returns the number of instructions executed since the last Reset.
func (cpu *AE32CPU) Steps() uint64 {
	return cpu.steps
}

// Reset clears registers and flags and restarts at the recorded entry point.
// Memory contents are left alone.
func (cpu *AE32CPU) Reset() {
	cpu.R = [16]uint32{}
	cpu.R[13] = STACK_TOP
	cpu.R[15] = cpu.entryPoint
	cpu.N, cpu.Z, cpu.C, cpu.V = false, false, false, false
	cpu.Running = false
	cpu.steps = 0
}

// regRead returns the register value as seen by an executing instruction:
// r15 reads as the current instruction's address plus 8.
func (cpu *AE32CPU) regRead(n, pc uint32) uint32 {
	if n == 15 {
		return pc + 8
	}
	return cpu.R[n]
}

// condPassed evaluates a condition-code field against the flags.
func (cpu *AE32CPU) condPassed(cond uint32) bool {
	switch cond {
	case condEQ:
		return cpu.Z
	case condNE:
		return !cpu.Z
	case condCS:
		return cpu.C
	case condCC:
		return !cpu.C
	case condMI:
		return cpu.N
	case condPL:
		return !cpu.N
	case condVS:
		return cpu.V
	case condVC:
		return !cpu.V
	case condHI:
		return cpu.C && !cpu.Z
	case condLS:
		return !cpu.C || cpu.Z
	case condGE:
		return cpu.N == cpu.V
	case condLT:
		return cpu.N != cpu.V
	case condGT:
		return !cpu.Z && cpu.N == cpu.V
	case condLE:
		return cpu.Z || cpu.N != cpu.V
	default:
		return true // AL and the unused 0xF slot
	}
}

// Step fetches, decodes and executes one instruction.
func (cpu *AE32CPU) Step() error {
	pc := cpu.R[15]
	word, ok := cpu.bus.FetchWithFault(pc)
	if !ok {
		return fmt.Errorf("prefetch abort at 0x%08X", pc)
	}
	if cpu.Trace {
		fmt.Fprintf(os.Stderr, "%08X  %08X  %s\n", pc, word, DisassembleAE32(word, pc))
	}
	cpu.steps++

	if !cpu.condPassed(word >> 28) {
		cpu.R[15] = pc + 4
		return nil
	}

	switch (word >> 26) & 3 {
	case 0:
		if word&0x0FFFFFF0 == 0x012FFF10 {
			cpu.R[15] = cpu.regRead(word&0xF, pc) &^ 1
			return nil
		}
		return cpu.execDataProc(word, pc)
	case 1:
		return cpu.execLoadStore(word, pc)
	case 2:
		return cpu.execBranch(word, pc)
	default:
		if (word>>24)&0xF == 0xF {
			return cpu.execSWI(word, pc)
		}
		return fmt.Errorf("undefined instruction 0x%08X at 0x%08X", word, pc)
	}
}

func (cpu *AE32CPU) execDataProc(word, pc uint32) error {
	op := (word >> 21) & 0xF
	sBit := word&(1<<20) != 0
	rn := (word >> 16) & 0xF
	rd := (word >> 12) & 0xF

	var op2 uint32
	if word&(1<<25) != 0 {
		rot := (word >> 8) & 0xF
		op2 = ror32(word&0xFF, uint(rot*2))
	} else {
		op2 = cpu.regRead(word&0xF, pc)
	}
	a := cpu.regRead(rn, pc)

	var res uint32
	writeback := true
	arith := false
	var carry, overflow bool

	switch op {
	case 0x0: // and
		res = a & op2
	case 0x1: // eor
		res = a ^ op2
	case 0x2: // sub
		res = a - op2
		carry, overflow, arith = a >= op2, subOverflows(a, op2, res), true
	case 0x3: // rsb
		res = op2 - a
		carry, overflow, arith = op2 >= a, subOverflows(op2, a, res), true
	case 0x4: // add
		res = a + op2
		carry, overflow, arith = res < a, addOverflows(a, op2, res), true
	case 0x5: // adc
		cin := uint32(0)
		if cpu.C {
			cin = 1
		}
		res = a + op2 + cin
		carry = uint64(a)+uint64(op2)+uint64(cin) > 0xFFFFFFFF
		overflow, arith = addOverflows(a, op2, res), true
	case 0x8: // tst
		res = a & op2
		writeback = false
	case 0x9: // teq
		res = a ^ op2
		writeback = false
	case 0xA: // cmp
		res = a - op2
		carry, overflow, arith = a >= op2, subOverflows(a, op2, res), true
		writeback = false
	case 0xB: // cmn
		res = a + op2
		carry, overflow, arith = res < a, addOverflows(a, op2, res), true
		writeback = false
	case 0xC: // orr
		res = a | op2
	case 0xD: // mov
		res = op2
	case 0xE: // bic
		res = a &^ op2
	case 0xF: // mvn
		res = ^op2
	default:
		return fmt.Errorf("undefined data-processing opcode %X at 0x%08X", op, pc)
	}

	if sBit {
		cpu.N = res&0x80000000 != 0
		cpu.Z = res == 0
		if arith {
			cpu.C = carry
			cpu.V = overflow
		}
	}
	if writeback {
		if rd == 15 {
			cpu.R[15] = res
			return nil
		}
		cpu.R[rd] = res
	}
	cpu.R[15] = pc + 4
	return nil
}

func addOverflows(a, b, res uint32) bool {
	return (a^b)&0x80000000 == 0 && (a^res)&0x80000000 != 0
}

func subOverflows(a, b, res uint32) bool {
	return (a^b)&0x80000000 != 0 && (a^res)&0x80000000 != 0
}

func (cpu *AE32CPU) execLoadStore(word, pc uint32) error {
	up := word&(1<<23) != 0
	byteAccess := word&(1<<22) != 0
	load := word&(1<<20) != 0
	rn := (word >> 16) & 0xF
	rd := (word >> 12) & 0xF
	off := word & 0xFFF

	addr := cpu.regRead(rn, pc)
	if up {
		addr += off
	} else {
		addr -= off
	}

	if load {
		var value uint32
		var ok bool
		if byteAccess {
			var b uint8
			b, ok = cpu.bus.Read8WithFault(addr)
			value = uint32(b)
		} else {
			value, ok = cpu.bus.Read32WithFault(addr)
		}
		if !ok {
			return fmt.Errorf("data abort: load from 0x%08X at 0x%08X", addr, pc)
		}
		if rd == 15 {
			cpu.R[15] = value
			return nil
		}
		cpu.R[rd] = value
	} else {
		value := cpu.regRead(rd, pc)
		var ok bool
		if byteAccess {
			ok = cpu.bus.Write8WithFault(addr, uint8(value))
		} else {
			ok = cpu.bus.Write32WithFault(addr, value)
		}
		if !ok {
			return fmt.Errorf("data abort: store to 0x%08X at 0x%08X", addr, pc)
		}
	}
	cpu.R[15] = pc + 4
	return nil
}

func (cpu *AE32CPU) execBranch(word, pc uint32) error {
	off := int32(word<<8) >> 6 // sign-extend offset24 and convert to bytes
	if word&(1<<24) != 0 {
		cpu.R[14] = pc + 4
	}
	cpu.R[15] = uint32(int64(pc) + 8 + int64(off))
	return nil
}

func (cpu *AE32CPU) execSWI(word, pc uint32) error {
	switch word & 0xFFFFFF {
	case SWI_HALT:
		cpu.Running = false
		cpu.R[15] = pc + 4
		return nil
	case SWI_PUTC:
		cpu.bus.Write32(TERM_OUT, cpu.R[0]&0xFF)
	case SWI_GETC:
		cpu.R[0] = cpu.bus.Read32(TERM_IN)
	default:
		return fmt.Errorf("unknown swi %d at 0x%08X", word&0xFFFFFF, pc)
	}
	cpu.R[15] = pc + 4
	return nil
}

// Run executes until the program halts or an error occurs. A positive
// maxSteps bounds execution for runaway programs; zero means no limit.
func (cpu *AE32CPU) Run(maxSteps uint64) error {
	cpu.Running = true
	executed := uint64(0)
	for cpu.Running {
		if err := cpu.Step(); err != nil {
			cpu.Running = false
			return err
		}
		executed++
		if maxSteps > 0 && executed >= maxSteps && cpu.Running {
			cpu.Running = false
			return fmt.Errorf("step limit of %d reached at 0x%08X", maxSteps, cpu.R[15])
		}
	}
	return nil
}
