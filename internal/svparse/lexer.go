package svparse

import (
	"fmt"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/robert-at-pretension-io/sv2chisel/internal/syntax"
)

// svLexer splits SystemVerilog source into the tokens the header parser
// needs. Rule order matters: the first matching rule wins. The final Other
// rule accepts any single character so lexing never fails.
var svLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\r\n\f]+`},
	{Name: "Comment", Pattern: `//[^\n]*|/\*(?s:.*?)\*/`},
	{Name: "Attribute", Pattern: `\(\*\s*[a-zA-Z_](?s:.*?)\*\)`},
	{Name: "Define", Pattern: "`define\\b(?:[^\\n\\\\]|\\\\\\r?\\n|\\\\[^\\n])*"},
	{Name: "Tick", Pattern: "`[a-zA-Z_][a-zA-Z0-9_$]*"},
	{Name: "String", Pattern: `"(?:[^"\\\n]|\\.)*"`},
	{Name: "Based", Pattern: `(?:[0-9][0-9_]*)?'[sS]?[dDhHoObB][0-9a-fA-FxXzZ?_]+`},
	{Name: "Number", Pattern: `[0-9][0-9_]*(?:\.[0-9_]+)?`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_$]*`},
	{Name: "Escaped", Pattern: `\\[^ \t\r\n]+`},
	{Name: "System", Pattern: `\$[a-zA-Z_][a-zA-Z0-9_$]*`},
	{Name: "Punct", Pattern: `\*\*|<<<|>>>|<<|>>|<=|>=|===|!==|==|!=|&&|\|\||->|::|\+:|-:|[-+*/%()\[\]{}:;,.#=@?!~&|^<>'$]`},
	{Name: "Other", Pattern: `.`},
})

var (
	tokWhitespace = svLexer.Symbols()["Whitespace"]
	tokComment    = svLexer.Symbols()["Comment"]
	tokAttribute  = svLexer.Symbols()["Attribute"]
	tokDefine     = svLexer.Symbols()["Define"]
	tokTick       = svLexer.Symbols()["Tick"]
	tokString     = svLexer.Symbols()["String"]
	tokBased      = svLexer.Symbols()["Based"]
	tokNumber     = svLexer.Symbols()["Number"]
	tokIdent      = svLexer.Symbols()["Ident"]
	tokEscaped    = svLexer.Symbols()["Escaped"]
	tokSystem     = svLexer.Symbols()["System"]
	tokPunct      = svLexer.Symbols()["Punct"]
)

// token is a significant lexeme with its byte offset into the source.
type token struct {
	typ   lexer.TokenType
	val   string
	start int
}

func (t token) end() int { return t.start + len(t.val) }

func (t token) span() syntax.Span { return syntax.Span{Start: t.start, End: t.end()} }

func (t token) is(punct string) bool { return t.typ == tokPunct && t.val == punct }

func (t token) keyword(kw string) bool { return t.typ == tokIdent && t.val == kw }

func (t token) isIdent() bool { return t.typ == tokIdent || t.typ == tokEscaped }

// lex returns the significant tokens of src: whitespace, comments and
// attributes are dropped.
func lex(path string, src []byte) ([]token, error) {
	l, err := svLexer.LexString(path, string(src))
	if err != nil {
		return nil, fmt.Errorf("lexing: %w", err)
	}
	all, err := lexer.ConsumeAll(l)
	if err != nil {
		return nil, fmt.Errorf("lexing: %w", err)
	}
	toks := make([]token, 0, len(all))
	for _, t := range all {
		if t.EOF() {
			continue
		}
		switch t.Type {
		case tokWhitespace, tokComment, tokAttribute:
			continue
		}
		toks = append(toks, token{typ: t.Type, val: t.Value, start: t.Pos.Offset})
	}
	return toks, nil
}
