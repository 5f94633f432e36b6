// asm_parser.go - AE32 assembly front-end: tokenizing, labels, address layout

/*
Armlet Engine - AE32: an ARM-flavoured 32-bit virtual machine

(c) 2025 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/ArmletEngine
License: GPLv3 or later

Assembler Syntax (case-insensitive mnemonics/registers, case-sensitive labels):

  Directives:
    .org addr             - set origin (numeric)
    .align n              - align to 2^n byte boundary
    .balign n             - align to n byte boundary
    .word v,...           - 32-bit LE data (hex, decimal or symbol)
    .byte v,...           - byte data (char literal, hex or decimal)
    .ascii "str"          - string bytes, no terminator
    .asciz "str"          - string bytes plus a zero byte (.string is an alias)
    .space n              - reserve n bytes (.skip is an alias)
    .ltorg                - flush pending literal-pool entries here

  Labels:
    name:                 - bound to the current address

  Comments: ';' or '@' to end of line.

The parser computes every statement's final address, including alignment and
literal-pool interleaving effects. Downstream phases treat these addresses as
ground truth and never recompute layout.
*/

package main

import (
	"fmt"
	"strings"
)

const instrSize = 4

// AssemblyParser builds a resolved Program from source text. It owns address
// layout: every instruction and directive gets its final address here,
// including the space reserved at .ltorg sites for literals that encoding
// will place there later.
type AssemblyParser struct {
	symbols SymbolTable
	origin  uint32
}

// NewAssemblyParser creates a parser with the origin at the standard code
// segment base.
func NewAssemblyParser() *AssemblyParser {
	return &AssemblyParser{
		symbols: make(SymbolTable),
		origin:  CODE_BASE,
	}
}

// stripComment removes ';' and '@' comments, respecting quoted strings and
// character literals.
func stripComment(line string) string {
	inStr := false
	inChar := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inStr:
			if c == '\\' {
				i++
			} else if c == '"' {
				inStr = false
			}
		case inChar:
			if c == '\\' {
				i++
			} else if c == '\'' {
				inChar = false
			}
		case c == '"':
			inStr = true
		case c == '\'':
			inChar = true
		case c == ';' || c == '@':
			return line[:i]
		}
	}
	return line
}

// splitArgs splits s on commas that are outside quotes, character literals
// and bracketed address operands. A trailing comma contributes no argument.
func splitArgs(s string) []string {
	var args []string
	depth := 0
	inStr := false
	inChar := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inStr:
			if c == '\\' {
				i++
			} else if c == '"' {
				inStr = false
			}
		case inChar:
			if c == '\\' {
				i++
			} else if c == '\'' {
				inChar = false
			}
		case c == '"':
			inStr = true
		case c == '\'':
			inChar = true
		case c == '[':
			depth++
		case c == ']':
			depth--
		case c == ',' && depth == 0:
			args = append(args, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" {
		args = append(args, tail)
	}
	return args
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '.' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// splitStatement splits a statement into its first token and the remainder,
// on any run of spaces or tabs.
func splitStatement(line string) (head, rest string) {
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimSpace(line[i+1:])
}

// splitLabel splits a leading "name:" off the statement, if present.
func splitLabel(line string) (label, rest string) {
	if len(line) == 0 || !isIdentStart(line[0]) {
		return "", line
	}
	i := 1
	for i < len(line) && isIdentChar(line[i]) {
		i++
	}
	if i < len(line) && line[i] == ':' {
		return line[:i], strings.TrimSpace(line[i+1:])
	}
	return "", line
}

func alignUp(v, align uint32) uint32 {
	if align == 0 {
		return v
	}
	return (v + align - 1) / align * align
}

// movImmediateOperand returns the immediate token of a mov/mvn instruction,
// if it has one.
func movImmediateOperand(mnemonic string, ops []string) (string, bool) {
	if mnemonic != "mov" && mnemonic != "mvn" {
		return "", false
	}
	if len(ops) != 2 || !strings.HasPrefix(ops[1], "#") {
		return "", false
	}
	return ops[1][1:], true
}

// pendingLiteralBytes estimates the pool bytes an instruction will consume.
// Symbolic immediates are unknown during layout, so they count conservatively;
// unused reservations are harmless slack in the .ltorg site.
func pendingLiteralBytes(mnemonic string, ops []string) uint32 {
	if mnemonic == "ldr" && len(ops) >= 2 && strings.HasPrefix(ops[1], "=") {
		return 4
	}
	if tok, ok := movImmediateOperand(mnemonic, ops); ok {
		if isCharLiteral(tok) {
			return 0 // a byte always fits the rotated form
		}
		if v, kind := resolveValue(tok, nil); kind != ValueInvalid {
			if movNeedsPool(v) {
				return 4
			}
			return 0
		}
		return 4 // symbol value unknown at layout time
	}
	return 0
}

// Parse tokenizes source, binds labels, and computes every statement's final
// address. The returned Program is immutable from the caller's point of view.
func (p *AssemblyParser) Parse(source string) (*Program, error) {
	prog := &Program{Symbols: p.symbols}
	cursor := p.origin
	pending := uint32(0)

	for lineNum, rawLine := range strings.Split(source, "\n") {
		line := strings.TrimSpace(stripComment(rawLine))

		for {
			label, rest := splitLabel(line)
			if label == "" {
				break
			}
			if _, exists := p.symbols[label]; exists {
				return nil, fmt.Errorf("line %d: duplicate label %q", lineNum+1, label)
			}
			p.symbols[label] = cursor
			line = rest
		}
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") {
			next, err := p.layoutDirective(prog, line, cursor, &pending, lineNum+1)
			if err != nil {
				return nil, err
			}
			cursor = next
			continue
		}

		head, rest := splitStatement(line)
		mnemonic := strings.ToLower(head)
		var ops []string
		if rest != "" {
			ops = splitArgs(rest)
		}
		if cursor&3 != 0 {
			return nil, fmt.Errorf("line %d: instruction %q at unaligned address 0x%08X", lineNum+1, mnemonic, cursor)
		}
		prog.Instructions = append(prog.Instructions, Instruction{
			Mnemonic: mnemonic,
			Operands: ops,
			Addr:     cursor,
			Line:     lineNum + 1,
			Raw:      line,
		})
		pending += pendingLiteralBytes(mnemonic, ops)
		cursor += instrSize
	}

	return prog, nil
}

// layoutDirective records the directive and returns the cursor after its
// layout effect.
func (p *AssemblyParser) layoutDirective(prog *Program, line string, cursor uint32, pending *uint32, lineNum int) (uint32, error) {
	head, rest := splitStatement(line)
	name := strings.ToLower(head)
	args := splitArgs(rest)

	record := func(addr uint32) {
		prog.Directives = append(prog.Directives, Directive{
			Name: name,
			Args: args,
			Addr: addr,
			Line: lineNum,
			Raw:  line,
		})
	}

	switch name {
	case ".org":
		if len(args) != 1 {
			return 0, fmt.Errorf("line %d: .org expects one address", lineNum)
		}
		v, kind := resolveValue(args[0], nil)
		if kind == ValueInvalid {
			return 0, fmt.Errorf("line %d: invalid .org address %q", lineNum, args[0])
		}
		record(v)
		return v, nil

	case ".align":
		if len(args) != 1 {
			return 0, fmt.Errorf("line %d: .align expects one argument", lineNum)
		}
		v, kind := resolveValue(args[0], nil)
		if kind == ValueInvalid || v > 16 {
			return 0, fmt.Errorf("line %d: invalid .align argument %q", lineNum, args[0])
		}
		next := alignUp(cursor, 1<<v)
		record(next)
		return next, nil

	case ".balign":
		if len(args) != 1 {
			return 0, fmt.Errorf("line %d: .balign expects one argument", lineNum)
		}
		v, kind := resolveValue(args[0], nil)
		if kind == ValueInvalid || v == 0 {
			return 0, fmt.Errorf("line %d: invalid .balign argument %q", lineNum, args[0])
		}
		next := alignUp(cursor, v)
		record(next)
		return next, nil

	case ".word":
		record(cursor)
		return cursor + 4*uint32(len(args)), nil

	case ".byte":
		record(cursor)
		return cursor + uint32(len(args)), nil

	case ".ascii", ".asciz", ".string":
		size := uint32(0)
		for _, arg := range args {
			s, err := unescapeString(arg)
			if err != nil {
				return 0, fmt.Errorf("line %d: %s: %v", lineNum, name, err)
			}
			size += uint32(len(s))
			if name != ".ascii" {
				size++
			}
		}
		record(cursor)
		return cursor + size, nil

	case ".space", ".skip":
		size := uint32(0)
		if len(args) == 1 {
			if v, kind := resolveValue(args[0], nil); kind != ValueInvalid {
				size = v
			}
		}
		record(cursor)
		return cursor + size, nil

	case ".ltorg":
		// Pool slots are words; align the site before reserving.
		site := alignUp(cursor, 4)
		record(site)
		prog.PoolSites = append(prog.PoolSites, PoolSite{Addr: site, Capacity: *pending})
		next := site + *pending
		*pending = 0
		return next, nil

	default:
		return 0, fmt.Errorf("line %d: unknown directive %s", lineNum, name)
	}
}

// EntryPoint picks the entry address for prog: the _start label when defined,
// otherwise the first instruction's address, otherwise the code segment base.
func (prog *Program) EntryPoint() uint32 {
	if addr, ok := prog.Symbols.Lookup("_start"); ok {
		return addr
	}
	if len(prog.Instructions) > 0 {
		return prog.Instructions[0].Addr
	}
	return CODE_BASE
}
