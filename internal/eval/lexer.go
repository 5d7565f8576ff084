package eval

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// exprLexer tokenizes width expressions after literal normalization.
// Characters outside these rules are a lex error, which the evaluator
// reports as "no result".
var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
	{Name: "Number", Pattern: `[0-9][0-9_]*`},
	{Name: "Ident", Pattern: `\$?[a-zA-Z_][a-zA-Z0-9_$]*`},
	{Name: "Pow", Pattern: `\*\*`},
	{Name: "Punct", Pattern: `[-+*/%(),]`},
})

var (
	tokWhitespace = exprLexer.Symbols()["Whitespace"]
	tokNumber     = exprLexer.Symbols()["Number"]
	tokIdent      = exprLexer.Symbols()["Ident"]
)

// tokenize returns the significant tokens of s, or false on a lex error.
func tokenize(s string) ([]lexer.Token, bool) {
	lex, err := exprLexer.LexString("", s)
	if err != nil {
		return nil, false
	}
	all, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil, false
	}
	toks := make([]lexer.Token, 0, len(all))
	for _, t := range all {
		if t.EOF() || t.Type == tokWhitespace {
			continue
		}
		toks = append(toks, t)
	}
	return toks, true
}
