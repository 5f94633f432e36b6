// debug_disasm_ae32.go - AE32 disassembler for listings and trace output

package main

import "fmt"

var ae32RegNames = [16]string{
	"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7",
	"r8", "r9", "r10", "r11", "r12", "sp", "lr", "pc",
}

var ae32CondNames = [16]string{
	"eq", "ne", "cs", "cc", "mi", "pl", "vs", "vc",
	"hi", "ls", "ge", "lt", "gt", "le", "", "nv",
}

var ae32DataProcNames = [16]string{
	"and", "eor", "sub", "rsb", "add", "adc", "sbc", "rsc",
	"tst", "teq", "cmp", "cmn", "orr", "mov", "bic", "mvn",
}

// DisassembleAE32 renders one instruction word at addr as assembly text.
// Unrecognized words render as a .word directive.
func DisassembleAE32(word, addr uint32) string {
	cond := ae32CondNames[word>>28]

	switch (word >> 26) & 3 {
	case 0:
		if word&0x0FFFFFF0 == 0x012FFF10 {
			return fmt.Sprintf("bx%s %s", cond, ae32RegNames[word&0xF])
		}
		return disasmDataProc(word, cond)
	case 1:
		return disasmLoadStore(word, addr, cond)
	case 2:
		mnemonic := "b"
		if word&(1<<24) != 0 {
			mnemonic = "bl"
		}
		off := int32(word<<8) >> 6
		target := uint32(int64(addr) + 8 + int64(off))
		return fmt.Sprintf("%s%s 0x%08X", mnemonic, cond, target)
	default:
		if (word>>24)&0xF == 0xF {
			return fmt.Sprintf("swi%s %d", cond, word&0xFFFFFF)
		}
		return fmt.Sprintf(".word 0x%08X", word)
	}
}

func disasmDataProc(word uint32, cond string) string {
	op := (word >> 21) & 0xF
	rn := ae32RegNames[(word>>16)&0xF]
	rd := ae32RegNames[(word>>12)&0xF]
	name := ae32DataProcNames[op]

	var op2 string
	if word&(1<<25) != 0 {
		rot := (word >> 8) & 0xF
		op2 = fmt.Sprintf("#0x%X", ror32(word&0xFF, uint(rot*2)))
	} else {
		op2 = ae32RegNames[word&0xF]
	}

	switch op {
	case 0xD, 0xF: // mov, mvn
		if word == 0xE1A00000 {
			return "nop"
		}
		return fmt.Sprintf("%s%s %s, %s", name, cond, rd, op2)
	case 0x8, 0x9, 0xA, 0xB: // tst, teq, cmp, cmn
		return fmt.Sprintf("%s%s %s, %s", name, cond, rn, op2)
	default:
		return fmt.Sprintf("%s%s %s, %s, %s", name, cond, rd, rn, op2)
	}
}

func disasmLoadStore(word, addr uint32, cond string) string {
	rn := (word >> 16) & 0xF
	rd := ae32RegNames[(word>>12)&0xF]
	off := int64(word & 0xFFF)
	if word&(1<<23) == 0 {
		off = -off
	}

	name := "str"
	if word&(1<<20) != 0 {
		name = "ldr"
	}
	if word&(1<<22) != 0 {
		name += "b"
	}

	// PC-relative accesses resolve to the absolute target for readability.
	if rn == 15 {
		target := uint32(int64(addr) + 8 + off)
		return fmt.Sprintf("%s%s %s, 0x%08X", name, cond, rd, target)
	}
	if off == 0 {
		return fmt.Sprintf("%s%s %s, [%s]", name, cond, rd, ae32RegNames[rn])
	}
	return fmt.Sprintf("%s%s %s, [%s, #%d]", name, cond, rd, ae32RegNames[rn], off)
}
