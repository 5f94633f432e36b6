// asm_encoder.go - AE32 instruction encoder and literal pool

/*
Armlet Engine - AE32: an ARM-flavoured 32-bit virtual machine

(c) 2025 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/ArmletEngine
License: GPLv3 or later

AE32 Instruction Encoding (32 bits, ARM-style):

  Data processing   cond(31:28) 00 I opcode(24:21) S rn(19:16) rd(15:12) operand2(11:0)
                    I=1: operand2 = rot(11:8) imm8(7:0), value = imm8 ror (rot*2)
                    I=0: operand2 = rm(3:0)
  Load/store        cond(31:28) 01 0 P U B W L rn(19:16) rd(15:12) imm12(11:0)
                    P=1 W=0 always; U = offset sign; B = byte access; L = load
  Branch            cond(31:28) 101 L offset24 (word offset from PC+8)
  Branch exchange   cond(31:28) 0001 0010 1111 1111 1111 0001 rm(3:0)
  Software interrupt cond(31:28) 1111 imm24

Immediates that do not fit the 8-bit rotated form are placed in a literal pool
and loaded PC-relative; pool slots come from explicit .ltorg sites or from the
fallback region past the highest materialized address.
*/

package main

import (
	"fmt"
	"sort"
	"strings"
)

// Condition codes
const (
	condEQ = 0x0
	condNE = 0x1
	condCS = 0x2
	condCC = 0x3
	condMI = 0x4
	condPL = 0x5
	condVS = 0x6
	condVC = 0x7
	condHI = 0x8
	condLS = 0x9
	condGE = 0xA
	condLT = 0xB
	condGT = 0xC
	condLE = 0xD
	condAL = 0xE
)

var branchConds = map[string]uint32{
	"eq": condEQ, "ne": condNE, "cs": condCS, "cc": condCC,
	"mi": condMI, "pl": condPL, "vs": condVS, "vc": condVC,
	"hi": condHI, "ls": condLS, "ge": condGE, "lt": condLT,
	"gt": condGT, "le": condLE, "al": condAL,
}

// Data-processing opcodes (bits 24:21)
var dataProcOps = map[string]uint32{
	"and": 0x0, "eor": 0x1, "sub": 0x2, "rsb": 0x3,
	"add": 0x4, "adc": 0x5, "tst": 0x8, "teq": 0x9,
	"cmp": 0xA, "cmn": 0xB, "orr": 0xC, "mov": 0xD,
	"bic": 0xE, "mvn": 0xF,
}

// Maximum byte offset reachable by a PC-relative load.
const maxLiteralOffset = 4095

// parseAE32Register parses r0-r15 plus the sp/lr/pc aliases.
func parseAE32Register(name string) (uint32, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "sp":
		return 13, true
	case "lr":
		return 14, true
	case "pc":
		return 15, true
	}
	if strings.HasPrefix(name, "r") {
		n := 0
		body := name[1:]
		if body == "" || len(body) > 2 {
			return 0, false
		}
		for i := 0; i < len(body); i++ {
			if body[i] < '0' || body[i] > '9' {
				return 0, false
			}
			n = n*10 + int(body[i]-'0')
		}
		if n <= 15 {
			return uint32(n), true
		}
	}
	return 0, false
}

func rol32(v uint32, n uint) uint32 {
	n &= 31
	if n == 0 {
		return v
	}
	return (v << n) | (v >> (32 - n))
}

func ror32(v uint32, n uint) uint32 {
	return rol32(v, 32-(n&31))
}

// armImmediate attempts to express v as an 8-bit value rotated right by an
// even amount, returning the 12-bit operand2 field.
func armImmediate(v uint32) (uint32, bool) {
	for rot := uint(0); rot < 32; rot += 2 {
		if imm8 := rol32(v, rot); imm8 <= 0xFF {
			return (uint32(rot) / 2 << 8) | imm8, true
		}
	}
	return 0, false
}

// movNeedsPool reports whether a mov immediate is too wide for the rotated
// form (directly or complemented) and must come from a literal pool. The
// parser uses this to reserve .ltorg capacity.
func movNeedsPool(value uint32) bool {
	if _, ok := armImmediate(value); ok {
		return false
	}
	if _, ok := armImmediate(^value); ok {
		return false
	}
	return true
}

type poolSlotSite struct {
	base     uint32
	capacity uint32
	used     uint32
}

type poolUse struct {
	instrAddr uint32
	slotAddr  uint32
	mnemonic  string
}

// InstructionEncoder converts one instruction plus its address into a 32-bit
// AE32 machine word. It owns the literal pool populated as a side effect of
// encoding wide immediates: explicit .ltorg sites come from the parser, and
// the fallback origin is set by the loader once directive materialization has
// fixed the highest used address. A fresh encoder is expected per load.
type InstructionEncoder struct {
	symbols SymbolTable

	poolStart uint32
	poolNext  uint32
	sites     []poolSlotSite
	pool      map[uint32]uint32
	slotFor   map[uint32]uint32
	uses      []poolUse
	warnings  []string
}

// NewInstructionEncoder creates an encoder for one load of prog.
func NewInstructionEncoder(prog *Program) *InstructionEncoder {
	enc := &InstructionEncoder{
		symbols: prog.Symbols,
		pool:    make(map[uint32]uint32),
		slotFor: make(map[uint32]uint32),
	}
	for _, site := range prog.PoolSites {
		enc.sites = append(enc.sites, poolSlotSite{base: site.Addr, capacity: site.Capacity})
	}
	return enc
}

// SetLiteralPoolStart fixes the fallback literal-pool origin. The loader calls
// this after directive materialization and before the encoding pass.
func (enc *InstructionEncoder) SetLiteralPoolStart(addr uint32) {
	enc.poolStart = addr
	enc.poolNext = addr
}

// LiteralPoolStart returns the fallback pool origin.
func (enc *InstructionEncoder) LiteralPoolStart() uint32 {
	return enc.poolStart
}

// LiteralPool returns the accumulated address -> value pool entries.
func (enc *InstructionEncoder) LiteralPool() map[uint32]uint32 {
	return enc.pool
}

// PoolEnd returns one past the highest pool slot in the fallback region.
func (enc *InstructionEncoder) PoolEnd() uint32 {
	return enc.poolNext
}

// allocLiteral records value in the pool and returns its slot address.
// Identical values share a slot. New slots come from the first .ltorg site at
// or past the referencing instruction with spare capacity, falling back to the
// region past the highest materialized address.
func (enc *InstructionEncoder) allocLiteral(value, instrAddr uint32, mnemonic string) uint32 {
	if slot, ok := enc.slotFor[value]; ok {
		enc.uses = append(enc.uses, poolUse{instrAddr: instrAddr, slotAddr: slot, mnemonic: mnemonic})
		return slot
	}
	var slot uint32
	placed := false
	for i := range enc.sites {
		site := &enc.sites[i]
		if site.base >= instrAddr && site.used < site.capacity {
			slot = site.base + site.used
			site.used += 4
			placed = true
			break
		}
	}
	if !placed {
		slot = enc.poolNext
		enc.poolNext += 4
	}
	enc.pool[slot] = value
	enc.slotFor[value] = slot
	enc.uses = append(enc.uses, poolUse{instrAddr: instrAddr, slotAddr: slot, mnemonic: mnemonic})
	return slot
}

// ValidatePoolCapacity derives advisory warnings after all instructions have
// been encoded: pool references beyond the reachable PC-relative offset range
// and .ltorg sites whose reserved capacity was exceeded. Warnings never block
// a load.
func (enc *InstructionEncoder) ValidatePoolCapacity() {
	for _, use := range enc.uses {
		dist := int64(use.slotAddr) - int64(use.instrAddr+8)
		if dist < 0 {
			dist = -dist
		}
		if dist > maxLiteralOffset {
			enc.warnings = append(enc.warnings,
				fmt.Sprintf("literal at 0x%08X is out of range of %s at 0x%08X (offset %d exceeds %d)",
					use.slotAddr, use.mnemonic, use.instrAddr, dist, maxLiteralOffset))
		}
	}
	for _, site := range enc.sites {
		if site.used > site.capacity {
			enc.warnings = append(enc.warnings,
				fmt.Sprintf("literal pool at 0x%08X overflowed its reserved capacity (%d of %d bytes)",
					site.base, site.used, site.capacity))
		}
	}
	sort.Strings(enc.warnings)
}

// HasPoolWarnings reports whether ValidatePoolCapacity produced warnings.
func (enc *InstructionEncoder) HasPoolWarnings() bool {
	return len(enc.warnings) > 0
}

// PoolWarnings returns the advisory warnings.
func (enc *InstructionEncoder) PoolWarnings() []string {
	return enc.warnings
}

// resolveImmediate resolves an immediate token (without the '#') to a value:
// character literal, then hex, then decimal, then symbol lookup.
func (enc *InstructionEncoder) resolveImmediate(tok string) (uint32, error) {
	if isCharLiteral(tok) {
		b, err := parseCharLiteral(tok)
		if err != nil {
			return 0, err
		}
		return uint32(b), nil
	}
	v, kind := resolveValue(tok, enc.symbols)
	if kind == ValueInvalid {
		return 0, fmt.Errorf("unresolvable operand %q", tok)
	}
	return v, nil
}

// encodeLiteralLoad emits LDR rd, [pc, #off] referencing a pool slot holding value.
func (enc *InstructionEncoder) encodeLiteralLoad(rd, value, instrAddr uint32, mnemonic string) uint32 {
	slot := enc.allocLiteral(value, instrAddr, mnemonic)
	return enc.encodePCRelativeLoad(rd, slot, instrAddr)
}

// encodePCRelativeLoad emits LDR rd, [pc, #off] for a pool slot address.
// Out-of-range offsets are truncated to the 12-bit field; the capacity
// validation pass reports them as advisory warnings.
func (enc *InstructionEncoder) encodePCRelativeLoad(rd, target, instrAddr uint32) uint32 {
	off := int64(target) - int64(instrAddr+8)
	u := uint32(1)
	if off < 0 {
		u = 0
		off = -off
	}
	return uint32(condAL)<<28 | 1<<26 | 1<<24 | u<<23 | 1<<20 | 15<<16 | rd<<12 | uint32(off)&0xFFF
}

// EncodeInstruction encodes ins at its parser-assigned address. Failure is
// fatal to a load; the error names the offending token.
func (enc *InstructionEncoder) EncodeInstruction(ins Instruction) (uint32, error) {
	mnemonic := strings.ToLower(ins.Mnemonic)
	ops := ins.Operands

	switch mnemonic {
	case "nop":
		return uint32(condAL)<<28 | 0xD<<21, nil // mov r0, r0

	case "swi":
		if len(ops) != 1 {
			return 0, fmt.Errorf("swi expects 1 operand, got %d", len(ops))
		}
		tok := strings.TrimPrefix(ops[0], "#")
		v, kind := resolveValue(tok, enc.symbols)
		if kind == ValueInvalid {
			return 0, fmt.Errorf("unresolvable operand %q", ops[0])
		}
		if v > 0xFFFFFF {
			return 0, fmt.Errorf("swi number %d exceeds 24 bits", v)
		}
		return uint32(condAL)<<28 | 0xF<<24 | v, nil

	case "bx":
		if len(ops) != 1 {
			return 0, fmt.Errorf("bx expects 1 operand, got %d", len(ops))
		}
		rm, ok := parseAE32Register(ops[0])
		if !ok {
			return 0, fmt.Errorf("invalid register %q", ops[0])
		}
		return uint32(condAL)<<28 | 0x012FFF10 | rm, nil

	case "ldr", "str", "ldrb", "strb":
		return enc.encodeLoadStore(mnemonic, ins)
	}

	if op, ok := dataProcOps[mnemonic]; ok {
		return enc.encodeDataProc(mnemonic, op, ins)
	}

	if word, ok, err := enc.encodeBranch(mnemonic, ins); ok {
		return word, err
	}

	return 0, fmt.Errorf("unknown mnemonic %q", ins.Mnemonic)
}

// encodeBranch handles b, bl and the condition-suffixed branch forms.
func (enc *InstructionEncoder) encodeBranch(mnemonic string, ins Instruction) (uint32, bool, error) {
	cond := uint32(condAL)
	link := uint32(0)
	switch {
	case mnemonic == "b":
	case mnemonic == "bl":
		link = 1
	case len(mnemonic) == 3 && mnemonic[0] == 'b':
		c, ok := branchConds[mnemonic[1:]]
		if !ok {
			return 0, false, nil
		}
		cond = c
	default:
		return 0, false, nil
	}

	if len(ins.Operands) != 1 {
		return 0, true, fmt.Errorf("%s expects 1 operand, got %d", mnemonic, len(ins.Operands))
	}
	tok := ins.Operands[0]
	target, kind := resolveValue(tok, enc.symbols)
	if kind == ValueInvalid {
		return 0, true, fmt.Errorf("unresolvable branch target %q", tok)
	}
	off := int64(target) - int64(ins.Addr+8)
	if off&3 != 0 {
		return 0, true, fmt.Errorf("branch target 0x%08X is not word aligned", target)
	}
	off >>= 2
	if off < -(1<<23) || off >= 1<<23 {
		return 0, true, fmt.Errorf("branch target 0x%08X out of range from 0x%08X", target, ins.Addr)
	}
	return cond<<28 | 0x5<<25 | link<<24 | uint32(off)&0xFFFFFF, true, nil
}

// encodeDataProc handles the data-processing group. MOV with an immediate that
// does not fit the rotated 8-bit form becomes a PC-relative literal load.
func (enc *InstructionEncoder) encodeDataProc(mnemonic string, op uint32, ins Instruction) (uint32, error) {
	ops := ins.Operands
	var rd, rn uint32
	var op2tok string
	sBit := uint32(0)

	switch mnemonic {
	case "mov", "mvn":
		if len(ops) != 2 {
			return 0, fmt.Errorf("%s expects 2 operands, got %d", mnemonic, len(ops))
		}
		r, ok := parseAE32Register(ops[0])
		if !ok {
			return 0, fmt.Errorf("invalid register %q", ops[0])
		}
		rd, op2tok = r, ops[1]
	case "cmp", "cmn", "tst", "teq":
		if len(ops) != 2 {
			return 0, fmt.Errorf("%s expects 2 operands, got %d", mnemonic, len(ops))
		}
		r, ok := parseAE32Register(ops[0])
		if !ok {
			return 0, fmt.Errorf("invalid register %q", ops[0])
		}
		rn, op2tok = r, ops[1]
		sBit = 1
	default:
		if len(ops) != 3 {
			return 0, fmt.Errorf("%s expects 3 operands, got %d", mnemonic, len(ops))
		}
		r, ok := parseAE32Register(ops[0])
		if !ok {
			return 0, fmt.Errorf("invalid register %q", ops[0])
		}
		n, ok := parseAE32Register(ops[1])
		if !ok {
			return 0, fmt.Errorf("invalid register %q", ops[1])
		}
		rd, rn, op2tok = r, n, ops[2]
	}

	base := uint32(condAL)<<28 | op<<21 | sBit<<20 | rn<<16 | rd<<12

	if strings.HasPrefix(op2tok, "#") {
		value, err := enc.resolveImmediate(op2tok[1:])
		if err != nil {
			return 0, err
		}
		if imm12, ok := armImmediate(value); ok {
			return base | 1<<25 | imm12, nil
		}
		// mov and mvn are interchangeable when the complemented value fits.
		if mnemonic == "mov" || mnemonic == "mvn" {
			if imm12, ok := armImmediate(^value); ok {
				flipped := op ^ 0x2
				return uint32(condAL)<<28 | flipped<<21 | rn<<16 | rd<<12 | 1<<25 | imm12, nil
			}
		}
		if mnemonic == "mov" {
			return enc.encodeLiteralLoad(rd, value, ins.Addr, ins.Mnemonic), nil
		}
		return 0, fmt.Errorf("immediate 0x%08X not encodable for %s", value, mnemonic)
	}

	rm, ok := parseAE32Register(op2tok)
	if !ok {
		return 0, fmt.Errorf("invalid operand %q", op2tok)
	}
	return base | rm, nil
}

// encodeLoadStore handles ldr/str/ldrb/strb in their register-offset,
// literal (=value) and label-relative forms.
func (enc *InstructionEncoder) encodeLoadStore(mnemonic string, ins Instruction) (uint32, error) {
	ops := ins.Operands
	if len(ops) < 2 {
		return 0, fmt.Errorf("%s expects 2 operands, got %d", mnemonic, len(ops))
	}
	rd, ok := parseAE32Register(ops[0])
	if !ok {
		return 0, fmt.Errorf("invalid register %q", ops[0])
	}
	load := strings.HasPrefix(mnemonic, "ldr")
	byteAccess := strings.HasSuffix(mnemonic, "b")

	addrTok := strings.Join(ops[1:], ",")

	// ldr rd, =value : literal-pool load
	if strings.HasPrefix(addrTok, "=") {
		if !load || byteAccess {
			return 0, fmt.Errorf("%s cannot take a literal operand", mnemonic)
		}
		value, err := enc.resolveImmediate(addrTok[1:])
		if err != nil {
			return 0, err
		}
		return enc.encodeLiteralLoad(rd, value, ins.Addr, ins.Mnemonic), nil
	}

	// [rn] / [rn, #imm]
	if strings.HasPrefix(addrTok, "[") {
		if !strings.HasSuffix(addrTok, "]") {
			return 0, fmt.Errorf("malformed address operand %q", addrTok)
		}
		inner := addrTok[1 : len(addrTok)-1]
		parts := strings.Split(inner, ",")
		rn, ok := parseAE32Register(parts[0])
		if !ok {
			return 0, fmt.Errorf("invalid base register %q", parts[0])
		}
		off := int64(0)
		if len(parts) == 2 {
			imm := strings.TrimSpace(parts[1])
			if !strings.HasPrefix(imm, "#") {
				return 0, fmt.Errorf("malformed offset %q", parts[1])
			}
			imm = imm[1:]
			neg := strings.HasPrefix(imm, "-")
			imm = strings.TrimPrefix(imm, "-")
			v, kind := resolveValue(imm, enc.symbols)
			if kind == ValueInvalid {
				return 0, fmt.Errorf("unresolvable offset %q", parts[1])
			}
			off = int64(v)
			if neg {
				off = -off
			}
		} else if len(parts) > 2 {
			return 0, fmt.Errorf("malformed address operand %q", addrTok)
		}
		u := uint32(1)
		if off < 0 {
			u = 0
			off = -off
		}
		if off > maxLiteralOffset {
			return 0, fmt.Errorf("offset %d exceeds 12 bits", off)
		}
		word := uint32(condAL)<<28 | 1<<26 | 1<<24 | u<<23 | rn<<16 | rd<<12 | uint32(off)
		if byteAccess {
			word |= 1 << 22
		}
		if load {
			word |= 1 << 20
		}
		return word, nil
	}

	// Bare label or address: PC-relative access to that location. Unlike pool
	// slots, label targets are fixed by the parser, so out-of-range ones are
	// hard errors rather than advisory warnings.
	target, kind := resolveValue(addrTok, enc.symbols)
	if kind == ValueInvalid {
		return 0, fmt.Errorf("unresolvable operand %q", addrTok)
	}
	off := int64(target) - int64(ins.Addr+8)
	u := uint32(1)
	if off < 0 {
		u = 0
		off = -off
	}
	if off > maxLiteralOffset {
		return 0, fmt.Errorf("%s target 0x%08X out of PC-relative range", mnemonic, target)
	}
	word := uint32(condAL)<<28 | 1<<26 | 1<<24 | u<<23 | 15<<16 | rd<<12 | uint32(off)
	if byteAccess {
		word |= 1 << 22
	}
	if load {
		word |= 1 << 20
	}
	return word, nil
}
