package ir

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParseType parses the textual spelling of a type, e.g. i32, i8*,
// [4 x i32], { i32, i8* } or i32 (i8*, i64).
func ParseType(s string) (*Type, error) {
	p := &typeParser{src: s}
	t, err := p.parse()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("unexpected %q in type %q", p.src[p.pos:], s)
	}
	return t, nil
}

type typeParser struct {
	src string
	pos int
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *typeParser) expect(c byte) error {
	if p.peek() != c {
		return fmt.Errorf("expected %q at offset %d of %q", c, p.pos, p.src)
	}
	p.pos++
	return nil
}

func (p *typeParser) word() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := rune(p.src[p.pos])
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *typeParser) parse() (*Type, error) {
	t, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			t = PtrTo(t)
		case '(':
			p.pos++
			params, err := p.list(')')
			if err != nil {
				return nil, err
			}
			t = FuncOf(t, params...)
		default:
			return t, nil
		}
	}
}

func (p *typeParser) parsePrimary() (*Type, error) {
	switch p.peek() {
	case '[', '<':
		closing := byte(']')
		if p.src[p.pos] == '<' {
			closing = '>'
		}
		p.pos++
		n, err := strconv.Atoi(p.word())
		if err != nil {
			return nil, fmt.Errorf("bad element count in %q", p.src)
		}
		if p.word() != "x" {
			return nil, fmt.Errorf("expected 'x' in %q", p.src)
		}
		elem, err := p.parse()
		if err != nil {
			return nil, err
		}
		if err := p.expect(closing); err != nil {
			return nil, err
		}
		if closing == '>' {
			return VectorOf(elem, n), nil
		}
		return ArrayOf(elem, n), nil
	case '{':
		p.pos++
		fields, err := p.list('}')
		if err != nil {
			return nil, err
		}
		return StructOf(fields...), nil
	}

	w := p.word()
	switch w {
	case "void":
		return Void, nil
	case "float":
		return Float, nil
	case "double":
		return Double, nil
	case "label":
		return Label, nil
	case "metadata":
		return Metadata, nil
	case "token":
		return &Type{Kind: TokenTy}, nil
	case "x86_mmx":
		return &Type{Kind: X86MMXTy}, nil
	case "ptr":
		return PtrTo(nil), nil
	}
	if bits, ok := strings.CutPrefix(w, "i"); ok {
		n, err := strconv.Atoi(bits)
		if err == nil && n > 0 {
			return IntType(n), nil
		}
	}
	return nil, fmt.Errorf("unknown type %q in %q", w, p.src)
}

// list parses comma-separated types up to closing.
func (p *typeParser) list(closing byte) ([]*Type, error) {
	var ts []*Type
	if p.peek() == closing {
		p.pos++
		return ts, nil
	}
	for {
		t, err := p.parse()
		if err != nil {
			return nil, err
		}
		ts = append(ts, t)
		switch p.peek() {
		case ',':
			p.pos++
		case closing:
			p.pos++
			return ts, nil
		default:
			return nil, fmt.Errorf("expected ',' or %q in %q", closing, p.src)
		}
	}
}
