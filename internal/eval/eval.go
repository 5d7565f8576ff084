// Package eval evaluates the integer arithmetic found in HDL width
// expressions: + - * / %, parentheses, ** and the clog2 builtin, over a flat
// scope of macro values.
package eval

import (
	"math/bits"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// Builtin is a named integer function callable from expressions.
type Builtin func(args []int64) (int64, bool)

// Evaluator evaluates expressions. The zero value has no builtins; use New.
type Evaluator struct {
	builtins map[string]Builtin
}

// New returns an Evaluator with the clog2 and pow builtins registered.
func New() *Evaluator {
	e := &Evaluator{builtins: make(map[string]Builtin)}
	e.Register("clog2", func(args []int64) (int64, bool) {
		if len(args) != 1 {
			return 0, false
		}
		return Clog2(args[0]), true
	})
	e.Register("pow", func(args []int64) (int64, bool) {
		if len(args) != 2 {
			return 0, false
		}
		return Pow(args[0], args[1]), true
	})
	return e
}

// Register adds or replaces a builtin.
func (e *Evaluator) Register(name string, fn Builtin) {
	if e.builtins == nil {
		e.builtins = make(map[string]Builtin)
	}
	e.builtins[name] = fn
}

// Clog2 is ceil(log2(n)), 0 for n <= 1.
func Clog2(n int64) int64 {
	if n <= 1 {
		return 0
	}
	return int64(bits.Len64(uint64(n - 1)))
}

// Pow raises base to exp; negative exponents yield 0.
func Pow(base, exp int64) int64 {
	if exp < 0 {
		return 0
	}
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

// Scope is a flat variable scope. Later bindings shadow earlier ones.
type Scope struct {
	names  []string
	values []int64
}

// Push binds name to v.
func (s *Scope) Push(name string, v int64) {
	s.names = append(s.names, name)
	s.values = append(s.values, v)
}

// Lookup returns the most recent binding of name.
func (s *Scope) Lookup(name string) (int64, bool) {
	if s == nil {
		return 0, false
	}
	for i := len(s.names) - 1; i >= 0; i-- {
		if s.names[i] == name {
			return s.values[i], true
		}
	}
	return 0, false
}

// Len returns the number of bindings.
func (s *Scope) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Define evaluates text in the current scope and binds the result to name.
// It reports whether the binding was made.
func (s *Scope) Define(e *Evaluator, name, text string) bool {
	v, ok := e.Eval(text, s)
	if !ok {
		return false
	}
	s.Push(name, v)
	return true
}

// Preprocess applies literal normalization and the syntax rewrites the
// parser expects: system-function call forms become plain builtin calls.
func Preprocess(expr string) string {
	s := NormalizeLiterals(expr)
	s = strings.ReplaceAll(s, "$clog2", "clog2")
	s = strings.ReplaceAll(s, "$pow", "pow")
	return s
}

// Eval evaluates expr in scope. ok is false when the expression is
// malformed, references an unknown identifier or divides by zero.
func (e *Evaluator) Eval(expr string, scope *Scope) (int64, bool) {
	toks, ok := tokenize(Preprocess(expr))
	if !ok || len(toks) == 0 {
		return 0, false
	}
	p := &exprParser{e: e, scope: scope, toks: toks}
	v, ok := p.additive()
	if !ok || p.pos != len(p.toks) {
		return 0, false
	}
	return v, true
}

type exprParser struct {
	e     *Evaluator
	scope *Scope
	toks  []lexer.Token
	pos   int
}

func (p *exprParser) peek() (lexer.Token, bool) {
	if p.pos >= len(p.toks) {
		return lexer.Token{}, false
	}
	return p.toks[p.pos], true
}

func (p *exprParser) accept(value string) bool {
	if t, ok := p.peek(); ok && t.Type != tokIdent && t.Type != tokNumber && t.Value == value {
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) additive() (int64, bool) {
	left, ok := p.multiplicative()
	if !ok {
		return 0, false
	}
	for {
		switch {
		case p.accept("+"):
			right, ok := p.multiplicative()
			if !ok {
				return 0, false
			}
			left += right
		case p.accept("-"):
			right, ok := p.multiplicative()
			if !ok {
				return 0, false
			}
			left -= right
		default:
			return left, true
		}
	}
}

func (p *exprParser) multiplicative() (int64, bool) {
	left, ok := p.power()
	if !ok {
		return 0, false
	}
	for {
		var op string
		switch {
		case p.accept("*"):
			op = "*"
		case p.accept("/"):
			op = "/"
		case p.accept("%"):
			op = "%"
		default:
			return left, true
		}
		right, ok := p.power()
		if !ok {
			return 0, false
		}
		switch op {
		case "*":
			left *= right
		case "/":
			if right == 0 {
				return 0, false
			}
			left /= right
		case "%":
			if right == 0 {
				return 0, false
			}
			left %= right
		}
	}
}

// a ** b is evaluated as a call to the pow builtin; left associative.
func (p *exprParser) power() (int64, bool) {
	left, ok := p.unary()
	if !ok {
		return 0, false
	}
	for p.accept("**") {
		right, ok := p.unary()
		if !ok {
			return 0, false
		}
		left, ok = p.call("pow", []int64{left, right})
		if !ok {
			return 0, false
		}
	}
	return left, true
}

func (p *exprParser) unary() (int64, bool) {
	switch {
	case p.accept("-"):
		v, ok := p.unary()
		return -v, ok
	case p.accept("+"):
		return p.unary()
	}
	return p.primary()
}

func (p *exprParser) primary() (int64, bool) {
	t, ok := p.peek()
	if !ok {
		return 0, false
	}
	switch {
	case t.Type == tokNumber:
		p.pos++
		v, err := strconv.ParseInt(strings.ReplaceAll(t.Value, "_", ""), 10, 64)
		return v, err == nil
	case t.Type == tokIdent:
		p.pos++
		if p.accept("(") {
			args, ok := p.arguments()
			if !ok {
				return 0, false
			}
			return p.call(t.Value, args)
		}
		return p.scope.Lookup(t.Value)
	case p.accept("("):
		v, ok := p.additive()
		if !ok || !p.accept(")") {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

func (p *exprParser) arguments() ([]int64, bool) {
	var args []int64
	if p.accept(")") {
		return args, true
	}
	for {
		v, ok := p.additive()
		if !ok {
			return nil, false
		}
		args = append(args, v)
		if p.accept(")") {
			return args, true
		}
		if !p.accept(",") {
			return nil, false
		}
	}
}

func (p *exprParser) call(name string, args []int64) (int64, bool) {
	fn, ok := p.e.builtins[name]
	if !ok {
		return 0, false
	}
	return fn(args)
}
