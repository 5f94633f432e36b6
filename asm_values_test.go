// asm_values_test.go - Tests for literal parsing and the value resolution order

package main

import "testing"

// TestResolveValueOrder verifies the fixed fallback order: hex literal, then
// decimal literal, then symbol lookup.
func TestResolveValueOrder(t *testing.T) {
	syms := SymbolTable{"data": 0x8010, "count": 3}

	cases := []struct {
		tok  string
		want uint32
		kind ValueKind
	}{
		{"0x10", 0x10, ValueHex},
		{"0X10", 0x10, ValueHex},
		{"$FF", 0xFF, ValueHex},
		{"16", 16, ValueDecimal},
		{"0", 0, ValueDecimal},
		{"-1", 0xFFFFFFFF, ValueDecimal},
		{"-2147483648", 0x80000000, ValueDecimal},
		{"data", 0x8010, ValueSymbol},
		{"count", 3, ValueSymbol},
		{"nosuchsym", 0, ValueInvalid},
		{"0x", 0, ValueInvalid},
		{"0xGG", 0, ValueInvalid},
		{"4294967296", 0, ValueInvalid},
	}
	for _, c := range cases {
		got, kind := resolveValue(c.tok, syms)
		if got != c.want || kind != c.kind {
			t.Errorf("resolveValue(%q) = (0x%X, %v), expected (0x%X, %v)",
				c.tok, got, kind, c.want, c.kind)
		}
	}
}

// TestResolveValueNilSymbols verifies numeric-only resolution when no symbol
// table is supplied (directive sizes, .org addresses).
func TestResolveValueNilSymbols(t *testing.T) {
	if v, kind := resolveValue("0x100", nil); v != 0x100 || kind != ValueHex {
		t.Fatalf("resolveValue(0x100, nil) = (0x%X, %v)", v, kind)
	}
	if _, kind := resolveValue("label", nil); kind != ValueInvalid {
		t.Fatalf("resolveValue(label, nil) resolved, expected invalid")
	}
}

// TestParseCharLiteral covers plain characters and the escape forms .byte
// accepts.
func TestParseCharLiteral(t *testing.T) {
	cases := []struct {
		tok  string
		want byte
	}{
		{"'A'", 'A'},
		{"' '", ' '},
		{`'\n'`, '\n'},
		{`'\t'`, '\t'},
		{`'\r'`, '\r'},
		{`'\0'`, 0},
		{`'\\'`, '\\'},
		{`'\''`, '\''},
		{`'\x41'`, 0x41},
		{`'\101'`, 65},
	}
	for _, c := range cases {
		got, err := parseCharLiteral(c.tok)
		if err != nil {
			t.Errorf("parseCharLiteral(%s): %v", c.tok, err)
			continue
		}
		if got != c.want {
			t.Errorf("parseCharLiteral(%s) = 0x%02X, expected 0x%02X", c.tok, got, c.want)
		}
	}

	for _, bad := range []string{"''", "'ab'", "'a", `'\q'`, `'\x'`} {
		if _, err := parseCharLiteral(bad); err == nil {
			t.Errorf("parseCharLiteral(%s) succeeded, expected error", bad)
		}
	}
}

// TestUnescapeString verifies quoted-string decoding for .ascii/.asciz.
func TestUnescapeString(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{`"hello"`, "hello"},
		{`"hi\n"`, "hi\n"},
		{`"a\tb"`, "a\tb"},
		{`"say \"hi\""`, `say "hi"`},
		{`"\x41\x42"`, "AB"},
		{`""`, ""},
	}
	for _, c := range cases {
		got, err := unescapeString(c.raw)
		if err != nil {
			t.Errorf("unescapeString(%s): %v", c.raw, err)
			continue
		}
		if got != c.want {
			t.Errorf("unescapeString(%s) = %q, expected %q", c.raw, got, c.want)
		}
	}

	if _, err := unescapeString("unquoted"); err == nil {
		t.Fatal("unescapeString accepted an unquoted token")
	}
	if _, err := unescapeString(`"bad\q"`); err == nil {
		t.Fatal("unescapeString accepted an unknown escape")
	}
}
