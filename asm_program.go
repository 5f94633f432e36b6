// asm_program.go - Resolved program representation shared by the AE32 assembler pipeline

package main

// SymbolTable maps source-level label names to resolved memory addresses.
// It is built by the parser and read-only to everything downstream.
type SymbolTable map[string]uint32

// Lookup returns the address bound to name.
func (st SymbolTable) Lookup(name string) (uint32, bool) {
	addr, ok := st[name]
	return addr, ok
}

// Instruction is one machine instruction with its parser-assigned address.
// The address is authoritative: the loader and encoder never recompute layout.
type Instruction struct {
	Mnemonic string
	Operands []string
	Addr     uint32
	Line     int
	Raw      string
}

// Directive is one non-instruction statement (.word, .ascii, .org, ...) with
// its parser-assigned address and raw argument strings. Arguments keep their
// source spelling; numeric-vs-symbolic interpretation happens at load time.
type Directive struct {
	Name string
	Args []string
	Addr uint32
	Line int
	Raw  string
}

// PoolSite is an explicit literal-pool insertion point recorded at an .ltorg
// directive. Capacity is the number of bytes the parser reserved there.
type PoolSite struct {
	Addr     uint32
	Capacity uint32
}

// Program is the immutable result of parsing: instructions and directives in
// address order, the symbol table, and any explicit literal-pool sites.
type Program struct {
	Instructions []Instruction
	Directives   []Directive
	Symbols      SymbolTable
	PoolSites    []PoolSite
}
