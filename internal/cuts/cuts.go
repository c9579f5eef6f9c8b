// Package cuts compiles row-filter expressions over the canonical event
// columns and evaluates them into per-row keep masks. Expressions use
// comparisons against numeric literals combined with boolean operators,
// e.g. "gammaness > 0.8 && event_energy >= 50".
package cuts

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/vheastro/bkgdata/internal/events"
)

// Expr is a compiled row-filter expression. A nil *Expr keeps all rows.
type Expr struct {
	root node
	src  string
}

// Compile parses a filter expression. An empty or all-whitespace source
// means "no row exclusion" and compiles to nil.
func Compile(src string) (*Expr, error) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return nil, nil
	}

	p := &parser{toks: lex(trimmed)}
	root, err := p.parseOr()
	if err != nil {
		return nil, fmt.Errorf("invalid cuts expression %q: %w", src, err)
	}
	if !p.eof() {
		return nil, fmt.Errorf("invalid cuts expression %q: unexpected %q", src, p.peek())
	}

	return &Expr{root: root, src: trimmed}, nil
}

// String returns the source the expression was compiled from.
func (e *Expr) String() string {
	if e == nil {
		return ""
	}
	return e.src
}

// Mask evaluates the expression against the columns and returns the
// per-row keep mask. Referencing a column the source file did not
// populate is an error.
func (e *Expr) Mask(cols events.Columns) ([]bool, error) {
	n := cols.NumRows()
	if e == nil {
		mask := make([]bool, n)
		for i := range mask {
			mask[i] = true
		}
		return mask, nil
	}
	return e.root.mask(cols, n)
}

type node interface {
	mask(cols events.Columns, n int) ([]bool, error)
}

type boolNode struct {
	and         bool
	left, right node
}

func (b *boolNode) mask(cols events.Columns, n int) ([]bool, error) {
	left, err := b.left.mask(cols, n)
	if err != nil {
		return nil, err
	}
	right, err := b.right.mask(cols, n)
	if err != nil {
		return nil, err
	}

	out := make([]bool, n)
	for i := range out {
		if b.and {
			out[i] = left[i] && right[i]
		} else {
			out[i] = left[i] || right[i]
		}
	}
	return out, nil
}

type cmpNode struct {
	col string
	op  string
	val float64
}

func (c *cmpNode) mask(cols events.Columns, n int) ([]bool, error) {
	col, ok := cols[c.col]
	if !ok || len(col) == 0 {
		return nil, fmt.Errorf("cuts reference column %q not populated by this file", c.col)
	}

	out := make([]bool, n)
	for i, v := range col {
		switch c.op {
		case ">":
			out[i] = v > c.val
		case ">=":
			out[i] = v >= c.val
		case "<":
			out[i] = v < c.val
		case "<=":
			out[i] = v <= c.val
		case "==":
			out[i] = v == c.val
		case "!=":
			out[i] = v != c.val
		}
	}
	return out, nil
}

// lex splits the source into identifier, number, operator and
// parenthesis tokens.
func lex(src string) []string {
	var toks []string
	i := 0
	for i < len(src) {
		ch := rune(src[i])
		switch {
		case unicode.IsSpace(ch):
			i++
		case ch == '(' || ch == ')':
			toks = append(toks, string(ch))
			i++
		case strings.ContainsRune("<>=!&|", ch):
			j := i + 1
			for j < len(src) && strings.ContainsRune("<>=!&|", rune(src[j])) {
				j++
			}
			toks = append(toks, src[i:j])
			i = j
		default:
			j := i
			for j < len(src) && !unicode.IsSpace(rune(src[j])) &&
				!strings.ContainsRune("()<>=!&|", rune(src[j])) {
				j++
			}
			toks = append(toks, src[i:j])
			i = j
		}
	}
	return toks
}

type parser struct {
	toks []string
	pos  int
}

func (p *parser) eof() bool {
	return p.pos >= len(p.toks)
}

func (p *parser) peek() string {
	if p.eof() {
		return ""
	}
	return p.toks[p.pos]
}

func (p *parser) next() string {
	tok := p.peek()
	p.pos++
	return tok
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek() == "||" || p.peek() == "or" {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &boolNode{and: false, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.peek() == "&&" || p.peek() == "and" {
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &boolNode{and: true, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (node, error) {
	if p.peek() == "(" {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.next() != ")" {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		return inner, nil
	}
	return p.parseCmp()
}

func (p *parser) parseCmp() (node, error) {
	col := p.next()
	if col == "" {
		return nil, fmt.Errorf("expected column name")
	}

	op := p.next()
	switch op {
	case ">", ">=", "<", "<=", "==", "!=":
	default:
		return nil, fmt.Errorf("expected comparison operator after %q, got %q", col, op)
	}

	lit := p.next()
	val, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return nil, fmt.Errorf("expected numeric literal after %q %s, got %q", col, op, lit)
	}

	return &cmpNode{col: col, op: op, val: val}, nil
}
