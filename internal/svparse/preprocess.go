package svparse

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/robert-at-pretension-io/sv2chisel/internal/logging"
	"github.com/robert-at-pretension-io/sv2chisel/internal/syntax"
)

const maxIncludeDepth = 16

var (
	errUnbalancedConditional = errors.New("unbalanced `ifdef/`endif")
	errMissingMacroName      = errors.New("conditional directive without a macro name")
)

// Directives that take the rest of their line as arguments.
var lineDirectives = map[string]bool{
	"`timescale":         true,
	"`default_nettype":   true,
	"`line":              true,
	"`pragma":            true,
	"`begin_keywords":    true,
	"`unconnected_drive": true,
}

// Directives without arguments.
var bareDirectives = map[string]bool{
	"`resetall":            true,
	"`celldefine":          true,
	"`endcelldefine":       true,
	"`nounconnected_drive": true,
	"`undefineall":         true,
	"`end_keywords":        true,
}

type condFrame struct {
	parentActive bool
	active       bool
	taken        bool
}

// preprocessor applies conditional compilation to a token stream and
// harvests macros from included headers.
type preprocessor struct {
	defined  map[string]bool
	includes []string
	harvest  []syntax.Macro
	visited  map[string]bool
	log      logging.Logger
}

func newPreprocessor(defines map[string]string, includes []string, log logging.Logger) *preprocessor {
	pp := &preprocessor{
		defined:  make(map[string]bool, len(defines)),
		includes: includes,
		visited:  make(map[string]bool),
		log:      log,
	}
	for name := range defines {
		pp.defined[name] = true
	}
	return pp
}

// run returns the tokens of the active regions with directives removed.
// `define tokens are kept in the output when keepDefines is set, otherwise
// they are harvested as predefined macros.
func (pp *preprocessor) run(path string, src []byte, toks []token, keepDefines bool, depth int) ([]token, error) {
	out := make([]token, 0, len(toks))
	var stack []condFrame
	active := func() bool {
		return len(stack) == 0 || stack[len(stack)-1].active
	}

	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.typ == tokDefine {
			if !active() {
				continue
			}
			parts, ok := splitDefine(t)
			if !ok {
				continue
			}
			name := t.val[parts.nameStart:parts.nameEnd]
			pp.defined[name] = true
			if keepDefines {
				out = append(out, t)
			} else {
				pp.harvest = append(pp.harvest, syntax.Macro{Name: name, Value: parts.text(t)})
			}
			continue
		}
		if t.typ != tokTick {
			if active() {
				out = append(out, t)
			}
			continue
		}

		switch t.val {
		case "`ifdef", "`ifndef", "`elsif":
			if i+1 >= len(toks) || !toks[i+1].isIdent() {
				return nil, fmt.Errorf("offset %d: %w", t.start, errMissingMacroName)
			}
			i++
			cond := pp.defined[toks[i].val]
			if t.val == "`ifndef" {
				cond = !cond
			}
			if t.val != "`elsif" {
				parent := active()
				stack = append(stack, condFrame{parentActive: parent, active: parent && cond, taken: cond})
				continue
			}
			if len(stack) == 0 {
				return nil, fmt.Errorf("offset %d: `elsif: %w", t.start, errUnbalancedConditional)
			}
			top := &stack[len(stack)-1]
			top.active = top.parentActive && !top.taken && cond
			top.taken = top.taken || cond
		case "`else":
			if len(stack) == 0 {
				return nil, fmt.Errorf("offset %d: `else: %w", t.start, errUnbalancedConditional)
			}
			top := &stack[len(stack)-1]
			top.active = top.parentActive && !top.taken
			top.taken = true
		case "`endif":
			if len(stack) == 0 {
				return nil, fmt.Errorf("offset %d: `endif: %w", t.start, errUnbalancedConditional)
			}
			stack = stack[:len(stack)-1]
		case "`undef":
			if i+1 < len(toks) && toks[i+1].isIdent() {
				i++
				if active() {
					delete(pp.defined, toks[i].val)
				}
			}
		case "`include":
			if i+1 < len(toks) && toks[i+1].typ == tokString {
				i++
				if active() {
					pp.include(path, strings.Trim(toks[i].val, `"`), depth)
				}
			}
		default:
			switch {
			case lineDirectives[t.val]:
				for i+1 < len(toks) && !strings.Contains(string(src[t.end():toks[i+1].start]), "\n") {
					i++
				}
			case bareDirectives[t.val]:
			default:
				// macro usage
				if active() {
					out = append(out, t)
				}
			}
		}
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("%d open conditional(s): %w", len(stack), errUnbalancedConditional)
	}
	return out, nil
}

// include harvests the macros of an included header. Problems with the
// header are logged and otherwise ignored.
func (pp *preprocessor) include(from, name string, depth int) {
	if depth >= maxIncludeDepth {
		pp.log.Warn("include depth exceeded", slog.String("file", from), slog.String("include", name))
		return
	}
	path, ok := pp.resolve(from, name)
	if !ok {
		pp.log.Warn("include not found", slog.String("file", from), slog.String("include", name))
		return
	}
	if pp.visited[path] {
		return
	}
	pp.visited[path] = true

	src, err := os.ReadFile(path)
	if err != nil {
		pp.log.Warn("reading include", slog.String("include", path), slog.String("error", err.Error()))
		return
	}
	toks, err := lex(path, src)
	if err == nil {
		_, err = pp.run(path, src, toks, false, depth+1)
	}
	if err != nil {
		pp.log.Warn("preprocessing include", slog.String("include", path), slog.String("error", err.Error()))
		return
	}
	pp.log.Debug("included header", slog.String("include", path), slog.Int("macros", len(pp.harvest)))
}

// resolve looks for name next to the including file, then in each include
// directory in order.
func (pp *preprocessor) resolve(from, name string) (string, bool) {
	if filepath.IsAbs(name) {
		return name, fileExists(name)
	}
	candidates := append([]string{filepath.Dir(from)}, pp.includes...)
	for _, dir := range candidates {
		p := filepath.Join(dir, name)
		if fileExists(p) {
			return p, true
		}
	}
	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// defineParts locates the pieces of a `define token, as offsets into its
// text.
type defineParts struct {
	nameStart, nameEnd int
	textStart, textEnd int
}

func (d defineParts) text(t token) string {
	return t.val[d.textStart:d.textEnd]
}

func splitDefine(t token) (defineParts, bool) {
	s := t.val
	i := len("`define")
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\\' || s[i] == '\r' || s[i] == '\n') {
		i++
	}
	var d defineParts
	d.nameStart = i
	for i < len(s) && isIdentByte(s[i]) {
		i++
	}
	d.nameEnd = i
	if d.nameEnd == d.nameStart {
		return d, false
	}
	// Formal arguments follow the name without whitespace.
	if i < len(s) && s[i] == '(' {
		depth := 0
		for ; i < len(s); i++ {
			if s[i] == '(' {
				depth++
			} else if s[i] == ')' {
				depth--
				if depth == 0 {
					i++
					break
				}
			}
		}
	}
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	d.textStart = i
	end := len(s)
	if c := lineComment(s[i:]); c >= 0 {
		end = i + c
	}
	for end > i && strings.ContainsRune(" \t\r\n\\", rune(s[end-1])) {
		end--
	}
	d.textEnd = end
	return d, true
}

// lineComment returns the offset of a // comment outside string literals,
// or -1.
func lineComment(s string) int {
	inString := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '"':
			inString = !inString
		case s[i] == '\\' && inString:
			i++
		case !inString && s[i] == '/' && i+1 < len(s) && s[i+1] == '/':
			return i
		}
	}
	return -1
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
