// machine.go - Default AE32 machine wiring: bus, segments, terminal, CPU

package main

import (
	"fmt"
	"os"
)

// Machine bundles an AE32 core, its bus with the standard segment layout, and
// the terminal device.
type Machine struct {
	Bus  *MachineBus
	CPU  *AE32CPU
	Term *TerminalMMIO

	enc *InstructionEncoder // encoder from the most recent load, for listings
}

// NewMachine wires up a machine with the standard segments (text, stack,
// mmio) and the terminal MMIO device.
func NewMachine() (*Machine, error) {
	bus := NewMachineBus()

	if err := bus.AddSegment("text", CODE_BASE, TEXT_LIMIT-CODE_BASE, PermRWX); err != nil {
		return nil, err
	}
	if err := bus.AddSegment("stack", STACK_BASE, STACK_TOP-STACK_BASE, PermRW); err != nil {
		return nil, err
	}
	if err := bus.AddSegment("mmio", MMIO_BASE, MMIO_LIMIT-MMIO_BASE, PermRW); err != nil {
		return nil, err
	}

	term := NewTerminalMMIO()
	bus.MapIO(TERM_OUT, TERM_CTRL, term.HandleRead, term.HandleWrite)

	return &Machine{
		Bus:  bus,
		CPU:  NewAE32CPU(bus),
		Term: term,
	}, nil
}

// LoadSource assembles source text and loads the resulting program, returning
// the loaded Program for listings and inspection. A fresh encoder is created
// for the load. The entry point comes from the program (_start or the first
// instruction).
func (m *Machine) LoadSource(source string) (*Program, error) {
	prog, err := NewAssemblyParser().Parse(source)
	if err != nil {
		return nil, err
	}
	return prog, m.LoadProgram(prog, prog.EntryPoint())
}

// LoadProgram loads an already-parsed program at the given entry point.
func (m *Machine) LoadProgram(prog *Program, entry uint32) error {
	enc := NewInstructionEncoder(prog)
	m.enc = enc
	return NewProgramLoader(m.Bus, m.CPU, enc).Load(prog, entry)
}

// LiteralPool exposes the literal pool from the most recent load, keyed by
// address. Nil before the first load.
func (m *Machine) LiteralPool() map[uint32]uint32 {
	if m.enc == nil {
		return nil
	}
	return m.enc.LiteralPool()
}

// LoadSourceFile reads and loads an assembly source file.
func (m *Machine) LoadSourceFile(filename string) (*Program, error) {
	source, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	return m.LoadSource(string(source))
}
