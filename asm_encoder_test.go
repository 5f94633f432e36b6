// asm_encoder_test.go - Tests for AE32 instruction encoding and the literal pool

package main

import (
	"strings"
	"testing"
)

func encodeOne(t *testing.T, enc *InstructionEncoder, mnemonic string, addr uint32, ops ...string) uint32 {
	t.Helper()
	word, err := enc.EncodeInstruction(Instruction{Mnemonic: mnemonic, Operands: ops, Addr: addr})
	if err != nil {
		t.Fatalf("EncodeInstruction(%s %v): %v", mnemonic, ops, err)
	}
	return word
}

func newTestEncoder(syms SymbolTable) *InstructionEncoder {
	prog := &Program{Symbols: syms}
	if prog.Symbols == nil {
		prog.Symbols = make(SymbolTable)
	}
	return NewInstructionEncoder(prog)
}

// TestArmImmediate verifies the 8-bit rotated immediate encoding.
func TestArmImmediate(t *testing.T) {
	cases := []struct {
		value uint32
		want  uint32
		ok    bool
	}{
		{0, 0x000, true},
		{0xFF, 0x0FF, true},
		{0x100, 0xC01, true},      // 1 ror 24
		{0xFF000000, 0x4FF, true}, // 0xFF ror 8
		{0x104, 0, false},
		{0x12345678, 0, false},
		{0xFFFFFFFF, 0, false},
	}
	for _, c := range cases {
		got, ok := armImmediate(c.value)
		if ok != c.ok {
			t.Errorf("armImmediate(0x%08X) ok=%v, expected %v", c.value, ok, c.ok)
			continue
		}
		if ok && got != c.want {
			t.Errorf("armImmediate(0x%08X) = 0x%03X, expected 0x%03X", c.value, got, c.want)
		}
	}
}

// TestEncodeDataProc checks exact machine words for the data-processing group.
func TestEncodeDataProc(t *testing.T) {
	enc := newTestEncoder(nil)

	cases := []struct {
		mnemonic string
		ops      []string
		want     uint32
	}{
		{"mov", []string{"r0", "#5"}, 0xE3A00005},
		{"mov", []string{"r1", "r2"}, 0xE1A01002},
		{"mvn", []string{"r0", "#0"}, 0xE3E00000},
		{"add", []string{"r1", "r1", "#1"}, 0xE2811001},
		{"add", []string{"r0", "r1", "r2"}, 0xE0810002},
		{"sub", []string{"r0", "r0", "#1"}, 0xE2400001},
		{"cmp", []string{"r0", "#0"}, 0xE3500000},
		{"tst", []string{"r1", "r2"}, 0xE1110002},
		{"orr", []string{"r3", "r3", "#0xFF"}, 0xE38330FF},
		{"nop", nil, 0xE1A00000},
	}
	for _, c := range cases {
		got := encodeOne(t, enc, c.mnemonic, CODE_BASE, c.ops...)
		if got != c.want {
			t.Errorf("%s %v = 0x%08X, expected 0x%08X", c.mnemonic, c.ops, got, c.want)
		}
	}
}

// TestEncodeMovComplement verifies that mov and mvn flip to each other when
// only the complemented immediate fits the rotated form.
func TestEncodeMovComplement(t *testing.T) {
	enc := newTestEncoder(nil)

	// 0xFFFFFFFF does not fit, its complement 0 does: mov becomes mvn #0.
	if got := encodeOne(t, enc, "mov", CODE_BASE, "r0", "#0xFFFFFFFF"); got != 0xE3E00000 {
		t.Fatalf("mov r0, #0xFFFFFFFF = 0x%08X, expected mvn form 0xE3E00000", got)
	}
	// 0xFFFFFF00 complements to 0xFF: mvn r0, #0xFF.
	if got := encodeOne(t, enc, "mov", CODE_BASE, "r0", "#0xFFFFFF00"); got != 0xE3E000FF {
		t.Fatalf("mov r0, #0xFFFFFF00 = 0x%08X, expected mvn form 0xE3E000FF", got)
	}
}

// TestEncodeMovWideUsesPool verifies that a mov immediate too wide for either
// rotated form becomes a PC-relative literal load.
func TestEncodeMovWideUsesPool(t *testing.T) {
	enc := newTestEncoder(nil)
	enc.SetLiteralPoolStart(CODE_BASE + 0x100)

	word := encodeOne(t, enc, "mov", CODE_BASE, "r0", "#0x12345678")
	// ldr r0, [pc, #0xF8]: pool slot at CODE_BASE+0x100, PC reads as +8.
	if word != 0xE59F00F8 {
		t.Fatalf("Wide mov = 0x%08X, expected 0xE59F00F8", word)
	}
	pool := enc.LiteralPool()
	if got := pool[CODE_BASE+0x100]; got != 0x12345678 {
		t.Fatalf("Pool slot holds 0x%08X, expected 0x12345678", got)
	}
}

// TestEncodeBranch checks branch words, the link bit and condition suffixes.
func TestEncodeBranch(t *testing.T) {
	enc := newTestEncoder(SymbolTable{"loop": CODE_BASE, "fwd": CODE_BASE + 0x10})

	cases := []struct {
		mnemonic string
		addr     uint32
		target   string
		want     uint32
	}{
		{"b", CODE_BASE, "loop", 0xEAFFFFFE},       // offset -8 -> -2 words
		{"b", CODE_BASE, "fwd", 0xEA000002},        // offset +8 -> +2 words
		{"bl", CODE_BASE, "fwd", 0xEB000002},       // link bit set
		{"bne", CODE_BASE + 8, "loop", 0x1AFFFFFC}, // cond NE, offset -16
		{"beq", CODE_BASE, "fwd", 0x0A000002},
	}
	for _, c := range cases {
		got := encodeOne(t, enc, c.mnemonic, c.addr, c.target)
		if got != c.want {
			t.Errorf("%s %s at 0x%08X = 0x%08X, expected 0x%08X",
				c.mnemonic, c.target, c.addr, got, c.want)
		}
	}

	if _, err := enc.EncodeInstruction(Instruction{Mnemonic: "b", Operands: []string{"0x8002"}, Addr: CODE_BASE}); err == nil {
		t.Fatal("Branch to unaligned target accepted")
	}
	if _, err := enc.EncodeInstruction(Instruction{Mnemonic: "b", Operands: []string{"0x4000000"}, Addr: CODE_BASE}); err == nil {
		t.Fatal("Branch beyond the 24-bit word offset accepted")
	}
}

// TestEncodeLoadStore checks register-offset and literal addressing forms.
func TestEncodeLoadStore(t *testing.T) {
	enc := newTestEncoder(SymbolTable{"buf": CODE_BASE + 0x20})

	cases := []struct {
		mnemonic string
		ops      []string
		want     uint32
	}{
		{"ldr", []string{"r0", "[r1]"}, 0xE5910000},
		{"ldr", []string{"r0", "[r1, #4]"}, 0xE5910004},
		{"ldr", []string{"r0", "[r1, #-4]"}, 0xE5110004},
		{"str", []string{"r2", "[r3, #8]"}, 0xE5832008},
		{"ldrb", []string{"r0", "[r1]"}, 0xE5D10000},
		{"strb", []string{"r4", "[r5]"}, 0xE5C54000},
		// PC-relative label access: buf is 0x18 past PC+8.
		{"ldr", []string{"r0", "buf"}, 0xE59F0018},
		{"ldrb", []string{"r0", "buf"}, 0xE5DF0018},
		{"str", []string{"r0", "buf"}, 0xE58F0018},
	}
	for _, c := range cases {
		got := encodeOne(t, enc, c.mnemonic, CODE_BASE, c.ops...)
		if got != c.want {
			t.Errorf("%s %v = 0x%08X, expected 0x%08X", c.mnemonic, c.ops, got, c.want)
		}
	}

	if _, err := enc.EncodeInstruction(Instruction{Mnemonic: "str", Operands: []string{"r0", "=5"}, Addr: CODE_BASE}); err == nil {
		t.Fatal("str with a literal operand accepted")
	}
	if _, err := enc.EncodeInstruction(Instruction{Mnemonic: "ldr", Operands: []string{"r0", "[r1, #5000]"}, Addr: CODE_BASE}); err == nil {
		t.Fatal("Offset beyond 12 bits accepted")
	}
}

// TestEncodeLoadStoreLabelRange verifies that a label target beyond the
// PC-relative reach is a hard error for loads and stores alike.
func TestEncodeLoadStoreLabelRange(t *testing.T) {
	enc := newTestEncoder(SymbolTable{"far": CODE_BASE + 0x2000})

	for _, mnemonic := range []string{"ldr", "ldrb", "str", "strb"} {
		_, err := enc.EncodeInstruction(Instruction{Mnemonic: mnemonic, Operands: []string{"r0", "far"}, Addr: CODE_BASE})
		if err == nil {
			t.Errorf("%s to a target 8KB away accepted", mnemonic)
			continue
		}
		if !strings.Contains(err.Error(), "PC-relative range") {
			t.Errorf("%s error %q does not describe the range problem", mnemonic, err)
		}
	}
}

// TestEncodeLiteralPoolSharing verifies that identical literal values share
// one pool slot and distinct values get their own.
func TestEncodeLiteralPoolSharing(t *testing.T) {
	enc := newTestEncoder(nil)
	enc.SetLiteralPoolStart(CODE_BASE + 0x40)

	encodeOne(t, enc, "ldr", CODE_BASE, "r0", "=0x11111111")
	encodeOne(t, enc, "ldr", CODE_BASE+4, "r1", "=0x11111111")
	encodeOne(t, enc, "ldr", CODE_BASE+8, "r2", "=0x22222222")

	pool := enc.LiteralPool()
	if len(pool) != 2 {
		t.Fatalf("Pool has %d entries, expected 2", len(pool))
	}
	if pool[CODE_BASE+0x40] != 0x11111111 || pool[CODE_BASE+0x44] != 0x22222222 {
		t.Fatalf("Pool layout wrong: %v", pool)
	}
	if got := enc.PoolEnd(); got != CODE_BASE+0x48 {
		t.Fatalf("PoolEnd() = 0x%08X, expected 0x%08X", got, CODE_BASE+0x48)
	}
}

// TestEncodeLtorgSitePreferred verifies that literals land in a reserved
// .ltorg site past the referencing instruction before the fallback region.
func TestEncodeLtorgSitePreferred(t *testing.T) {
	prog := &Program{
		Symbols:   make(SymbolTable),
		PoolSites: []PoolSite{{Addr: CODE_BASE + 0x10, Capacity: 4}},
	}
	enc := NewInstructionEncoder(prog)
	enc.SetLiteralPoolStart(CODE_BASE + 0x1000)

	encodeOne(t, enc, "ldr", CODE_BASE, "r0", "=0x12345678")
	// Site is full now; the next literal falls back past the pool start.
	encodeOne(t, enc, "ldr", CODE_BASE+4, "r1", "=0x0BADF00D")

	pool := enc.LiteralPool()
	if pool[CODE_BASE+0x10] != 0x12345678 {
		t.Fatalf("First literal not placed in the .ltorg site: %v", pool)
	}
	if pool[CODE_BASE+0x1000] != 0x0BADF00D {
		t.Fatalf("Overflow literal not placed in the fallback region: %v", pool)
	}
}

// TestValidatePoolCapacityWarnings verifies the advisory out-of-range warning
// for literals beyond the PC-relative offset reach.
func TestValidatePoolCapacityWarnings(t *testing.T) {
	enc := newTestEncoder(nil)
	enc.SetLiteralPoolStart(CODE_BASE + 0x2000) // 8KB past the instruction

	encodeOne(t, enc, "ldr", CODE_BASE, "r0", "=0x12345678")
	enc.ValidatePoolCapacity()

	if !enc.HasPoolWarnings() {
		t.Fatal("Out-of-range literal produced no warning")
	}
	if w := enc.PoolWarnings()[0]; !strings.Contains(w, "out of range") {
		t.Fatalf("Warning %q does not describe the range problem", w)
	}
}

// TestEncodeSystem covers swi and bx words.
func TestEncodeSystem(t *testing.T) {
	enc := newTestEncoder(nil)

	if got := encodeOne(t, enc, "swi", CODE_BASE, "0"); got != 0xEF000000 {
		t.Fatalf("swi 0 = 0x%08X, expected 0xEF000000", got)
	}
	if got := encodeOne(t, enc, "swi", CODE_BASE, "#1"); got != 0xEF000001 {
		t.Fatalf("swi #1 = 0x%08X, expected 0xEF000001", got)
	}
	if got := encodeOne(t, enc, "bx", CODE_BASE, "lr"); got != 0xE12FFF1E {
		t.Fatalf("bx lr = 0x%08X, expected 0xE12FFF1E", got)
	}

	if _, err := enc.EncodeInstruction(Instruction{Mnemonic: "swi", Operands: []string{"0x1000000"}}); err == nil {
		t.Fatal("swi beyond 24 bits accepted")
	}
	if _, err := enc.EncodeInstruction(Instruction{Mnemonic: "frobnicate"}); err == nil {
		t.Fatal("Unknown mnemonic accepted")
	}
}
