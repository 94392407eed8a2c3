package extract

import (
	"strconv"
	"strings"
)

// textLines interprets the text-showing operators of a decoded page
// content stream and returns the visible lines in stream order.
func textLines(stream string) []string {
	p := &csParser{src: stream}
	var (
		lines    []string
		cur      strings.Builder
		operands []csToken
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			lines = append(lines, squash(s))
		}
		cur.Reset()
	}

	for {
		tok, ok := p.next()
		if !ok {
			break
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}

		switch tok.text {
		case "Tj":
			if s, ok := lastString(operands); ok {
				cur.WriteString(s)
			}
		case "'", `"`:
			flush()
			if s, ok := lastString(operands); ok {
				cur.WriteString(s)
			}
		case "TJ":
			if n := len(operands); n > 0 && operands[n-1].kind == tokArray {
				for _, el := range operands[n-1].items {
					switch el.kind {
					case tokString:
						cur.WriteString(el.text)
					case tokNumber:
						// Large negative kerning is a word gap.
						if v, err := strconv.ParseFloat(el.text, 64); err == nil && v < -200 {
							cur.WriteByte(' ')
						}
					}
				}
			}
		case "T*", "ET", "Tm":
			flush()
		case "Td", "TD":
			if n := len(operands); n >= 2 {
				ty, _ := strconv.ParseFloat(operands[n-1].text, 64)
				tx, _ := strconv.ParseFloat(operands[n-2].text, 64)
				switch {
				case ty != 0:
					flush()
				case tx > 0 && cur.Len() > 0:
					cur.WriteByte(' ')
				}
			}
		case "BI":
			p.skipInlineImage()
		}
		operands = operands[:0]
	}
	flush()
	return lines
}

type tokKind int

const (
	tokOperator tokKind = iota
	tokNumber
	tokString
	tokName
	tokArray
	tokOther
)

type csToken struct {
	kind  tokKind
	text  string
	items []csToken
}

func lastString(ops []csToken) (string, bool) {
	if n := len(ops); n > 0 && ops[n-1].kind == tokString {
		return ops[n-1].text, true
	}
	return "", false
}

type csParser struct {
	src string
	pos int
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isDelim(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

func (p *csParser) skipSpace() {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case isSpace(c):
			p.pos++
		case c == '%':
			for p.pos < len(p.src) && p.src[p.pos] != '\n' && p.src[p.pos] != '\r' {
				p.pos++
			}
		default:
			return
		}
	}
}

func (p *csParser) next() (csToken, bool) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return csToken{}, false
	}
	c := p.src[p.pos]
	switch {
	case c == '(':
		return csToken{kind: tokString, text: p.literal()}, true
	case c == '<' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '<':
		p.skipDict()
		return csToken{kind: tokOther}, true
	case c == '<':
		return csToken{kind: tokString, text: p.hex()}, true
	case c == '[':
		p.pos++
		var items []csToken
		for {
			p.skipSpace()
			if p.pos >= len(p.src) {
				break
			}
			if p.src[p.pos] == ']' {
				p.pos++
				break
			}
			t, ok := p.next()
			if !ok {
				break
			}
			items = append(items, t)
		}
		return csToken{kind: tokArray, items: items}, true
	case c == '/':
		p.pos++
		return csToken{kind: tokName, text: p.word()}, true
	case c == ']' || c == '>' || c == ')' || c == '{' || c == '}':
		p.pos++
		return csToken{kind: tokOther}, true
	}

	w := p.word()
	if w == "" {
		p.pos++
		return csToken{kind: tokOther}, true
	}
	if _, err := strconv.ParseFloat(w, 64); err == nil {
		return csToken{kind: tokNumber, text: w}, true
	}
	return csToken{kind: tokOperator, text: w}, true
}

func (p *csParser) word() string {
	start := p.pos
	for p.pos < len(p.src) && !isSpace(p.src[p.pos]) && !isDelim(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *csParser) literal() string {
	p.pos++ // (
	var b strings.Builder
	depth := 1
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		p.pos++
		switch c {
		case '\\':
			if p.pos >= len(p.src) {
				return b.String()
			}
			e := p.src[p.pos]
			p.pos++
			switch e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b', 'f':
			case '\r', '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					oct := string(e)
					for i := 0; i < 2 && p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '7'; i++ {
						oct += string(p.src[p.pos])
						p.pos++
					}
					v, _ := strconv.ParseUint(oct, 8, 8)
					b.WriteByte(byte(v))
				} else {
					b.WriteByte(e)
				}
			}
		case '(':
			depth++
			b.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return b.String()
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func (p *csParser) hex() string {
	p.pos++ // <
	end := strings.IndexByte(p.src[p.pos:], '>')
	if end < 0 {
		p.pos = len(p.src)
		return ""
	}
	digits := strings.Map(func(r rune) rune {
		if isSpace(byte(r)) {
			return -1
		}
		return r
	}, p.src[p.pos:p.pos+end])
	p.pos += end + 1
	if len(digits)%2 == 1 {
		digits += "0"
	}

	var b strings.Builder
	for i := 0; i+1 < len(digits); i += 2 {
		v, err := strconv.ParseUint(digits[i:i+2], 16, 8)
		if err != nil {
			continue
		}
		// Two-byte CID encodings put a zero high byte before ASCII.
		if v != 0 {
			b.WriteByte(byte(v))
		}
	}
	return b.String()
}

func (p *csParser) skipDict() {
	depth := 0
	for p.pos+1 < len(p.src) {
		switch {
		case p.src[p.pos] == '<' && p.src[p.pos+1] == '<':
			depth++
			p.pos += 2
		case p.src[p.pos] == '>' && p.src[p.pos+1] == '>':
			depth--
			p.pos += 2
			if depth == 0 {
				return
			}
		case p.src[p.pos] == '(':
			p.literal()
		default:
			p.pos++
		}
	}
	p.pos = len(p.src)
}

// skipInlineImage moves past BI ... ID <binary> EI.
func (p *csParser) skipInlineImage() {
	i := strings.Index(p.src[p.pos:], "EI")
	for i >= 0 {
		at := p.pos + i
		before := at == 0 || isSpace(p.src[at-1])
		after := at+2 >= len(p.src) || isSpace(p.src[at+2])
		if before && after {
			p.pos = at + 2
			return
		}
		next := strings.Index(p.src[at+2:], "EI")
		if next < 0 {
			break
		}
		i = at + 2 + next - p.pos
	}
	p.pos = len(p.src)
}
