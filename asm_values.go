// asm_values.go - Numeric, character and string literal parsing for the AE32 pipeline

package main

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueKind tags the grammar that successfully parsed a directive or operand
// argument. The ordering contract is fixed: hex literal, then decimal literal,
// then symbol lookup. Quoted character literals are only tried where the
// directive allows them (.byte).
type ValueKind int

const (
	ValueHex ValueKind = iota
	ValueDecimal
	ValueSymbol
	ValueChar
	ValueInvalid
)

func (k ValueKind) String() string {
	switch k {
	case ValueHex:
		return "hex"
	case ValueDecimal:
		return "decimal"
	case ValueSymbol:
		return "symbol"
	case ValueChar:
		return "char"
	default:
		return "invalid"
	}
}

// parseHex parses a 0x/0X-prefixed or $-prefixed hexadecimal literal.
func parseHex(tok string) (uint32, bool) {
	body := ""
	switch {
	case strings.HasPrefix(tok, "0x"), strings.HasPrefix(tok, "0X"):
		body = tok[2:]
	case strings.HasPrefix(tok, "$"):
		body = tok[1:]
	default:
		return 0, false
	}
	if body == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(body, 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

// parseDecimal parses a signed decimal literal. Negative values wrap to their
// two's-complement uint32 representation.
func parseDecimal(tok string) (uint32, bool) {
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil || v > 0xFFFFFFFF || v < -0x80000000 {
		return 0, false
	}
	return uint32(v), true
}

// resolveValue applies the ordered fallback hex -> decimal -> symbol to tok.
// The first grammar that parses wins; a symbol is only consulted when the
// token is not a valid numeric literal.
func resolveValue(tok string, syms SymbolTable) (uint32, ValueKind) {
	if v, ok := parseHex(tok); ok {
		return v, ValueHex
	}
	if v, ok := parseDecimal(tok); ok {
		return v, ValueDecimal
	}
	if syms != nil {
		if addr, ok := syms.Lookup(tok); ok {
			return addr, ValueSymbol
		}
	}
	return 0, ValueInvalid
}

// isCharLiteral reports whether tok is single-quoted.
func isCharLiteral(tok string) bool {
	return len(tok) >= 2 && tok[0] == '\''
}

// parseCharLiteral parses a single-quoted character literal with escape
// sequences: \n \t \r \b \f \v \0 \\ \' \" , hex \xNN, and octal \NNN.
func parseCharLiteral(tok string) (byte, error) {
	if len(tok) < 3 || tok[0] != '\'' || tok[len(tok)-1] != '\'' {
		return 0, fmt.Errorf("malformed character literal %s", tok)
	}
	body := tok[1 : len(tok)-1]
	if body[0] != '\\' {
		if len(body) != 1 {
			return 0, fmt.Errorf("malformed character literal %s", tok)
		}
		return body[0], nil
	}
	b, rest, err := decodeEscape(body[1:])
	if err != nil {
		return 0, fmt.Errorf("malformed character literal %s: %v", tok, err)
	}
	if rest != "" {
		return 0, fmt.Errorf("malformed character literal %s", tok)
	}
	return b, nil
}

// decodeEscape decodes one escape sequence body (the text after the
// backslash) and returns the byte plus any unconsumed remainder.
func decodeEscape(s string) (byte, string, error) {
	if s == "" {
		return 0, "", fmt.Errorf("truncated escape")
	}
	switch s[0] {
	case 'n':
		return '\n', s[1:], nil
	case 't':
		return '\t', s[1:], nil
	case 'r':
		return '\r', s[1:], nil
	case 'b':
		return '\b', s[1:], nil
	case 'f':
		return '\f', s[1:], nil
	case 'v':
		return '\v', s[1:], nil
	case '\\':
		return '\\', s[1:], nil
	case '\'':
		return '\'', s[1:], nil
	case '"':
		return '"', s[1:], nil
	case 'x':
		hex := s[1:]
		n := 0
		for n < 2 && n < len(hex) && isHexDigit(hex[n]) {
			n++
		}
		if n == 0 {
			return 0, "", fmt.Errorf("invalid hex escape \\x%s", hex)
		}
		v, _ := strconv.ParseUint(hex[:n], 16, 8)
		return byte(v), hex[n:], nil
	default:
		if s[0] >= '0' && s[0] <= '7' {
			n := 0
			for n < 3 && n < len(s) && s[n] >= '0' && s[n] <= '7' {
				n++
			}
			v, err := strconv.ParseUint(s[:n], 8, 16)
			if err != nil || v > 0xFF {
				return 0, "", fmt.Errorf("invalid octal escape \\%s", s[:n])
			}
			return byte(v), s[n:], nil
		}
		return 0, "", fmt.Errorf("unknown escape \\%c", s[0])
	}
}

// unescapeString strips the surrounding double quotes from raw and processes
// escape sequences, returning the byte content written by .ascii/.asciz.
func unescapeString(raw string) (string, error) {
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return "", fmt.Errorf("string literal %s is not quoted", raw)
	}
	body := raw[1 : len(raw)-1]
	var out []byte
	for i := 0; i < len(body); {
		c := body[i]
		if c != '\\' {
			out = append(out, c)
			i++
			continue
		}
		b, rest, err := decodeEscape(body[i+1:])
		if err != nil {
			return "", err
		}
		out = append(out, b)
		i = len(body) - len(rest)
	}
	return string(out), nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
