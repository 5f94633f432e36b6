// main.go - Armlet Engine entry point

/*
Armlet Engine - AE32: an ARM-flavoured 32-bit virtual machine

(c) 2025 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/ArmletEngine
License: GPLv3 or later
*/

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
)

func main() {
	var (
		listMode    bool
		traceMode   bool
		interactive bool
		entryAddr   string
		maxSteps    uint64
	)

	flagSet := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.BoolVar(&listMode, "list", false, "Print an assembly listing instead of running")
	flagSet.BoolVar(&traceMode, "trace", false, "Trace executed instructions to stderr")
	flagSet.BoolVar(&interactive, "interactive", false, "Feed raw stdin to the terminal device")
	flagSet.StringVar(&entryAddr, "entry", "", "Entry point override (hex or decimal)")
	flagSet.Uint64Var(&maxSteps, "steps", 0, "Stop after this many instructions (0 = no limit)")

	flagSet.Usage = func() {
		flagSet.SetOutput(os.Stdout)
		fmt.Println("Usage: ./armlet [-list] [-trace] [-interactive] [-entry 0x8000] [-steps n] program.s")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	filename := flagSet.Arg(0)
	if filename == "" {
		flagSet.Usage()
		os.Exit(1)
	}

	machine, err := NewMachine()
	if err != nil {
		fmt.Printf("Failed to initialize machine: %v\n", err)
		os.Exit(1)
	}

	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Printf("Error reading %s: %v\n", filename, err)
		os.Exit(1)
	}

	prog, err := NewAssemblyParser().Parse(string(source))
	if err != nil {
		fmt.Printf("%s: %v\n", filename, err)
		os.Exit(1)
	}

	entry := prog.EntryPoint()
	if entryAddr != "" {
		v, kind := resolveValue(entryAddr, prog.Symbols)
		if kind == ValueInvalid {
			fmt.Printf("Error: invalid entry address %q\n", entryAddr)
			os.Exit(1)
		}
		entry = v
	}

	if err := machine.LoadProgram(prog, entry); err != nil {
		fmt.Printf("%s: %v\n", filename, err)
		os.Exit(1)
	}

	if listMode {
		printListing(machine, prog)
		return
	}

	machine.CPU.Trace = traceMode

	machine.Term.SetCharOutputCallback(func(b byte) {
		os.Stdout.Write([]byte{b})
	})

	if interactive {
		host := NewTerminalHost(machine.Term)
		host.Start()
		defer host.Stop()
	}

	if err := machine.CPU.Run(maxSteps); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", filename, err)
		os.Exit(1)
	}
	if verboseDiagnostics() {
		fmt.Fprintf(os.Stderr, "halted at 0x%08X after %d instructions\n", machine.CPU.PC(), machine.CPU.Steps())
	}
}

// printListing disassembles every loaded instruction and dumps the literal
// pool, in address order.
func printListing(machine *Machine, prog *Program) {
	for _, ins := range prog.Instructions {
		word := machine.Bus.Read32(ins.Addr)
		fmt.Printf("%08X  %08X  %s\n", ins.Addr, word, DisassembleAE32(word, ins.Addr))
	}

	pool := make([]uint32, 0)
	for addr := range machine.LiteralPool() {
		pool = append(pool, addr)
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i] < pool[j] })
	for _, addr := range pool {
		fmt.Printf("%08X  %08X  ; literal\n", addr, machine.Bus.Read32(addr))
	}
}
