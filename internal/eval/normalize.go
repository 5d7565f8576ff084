package eval

import (
	"regexp"
	"strconv"
	"strings"
)

// Unknown replaces literals that cannot be converted. It is not a valid
// identifier in any scope, so evaluation of text containing it fails.
const Unknown = "unknown"

// <size>'<base><digits>; the base may carry a signedness flag ('sd, 'sh).
var sizedLiteral = regexp.MustCompile(`(?i)(\d+)?'(s?[dhbo]|s)([0-9a-f_xz?]+)`)

// NormalizeLiterals rewrites every sized literal in text to its decimal value.
// Literals with don't-care digits (x, z, ?) become Unknown.
func NormalizeLiterals(text string) string {
	return sizedLiteral.ReplaceAllStringFunc(text, func(lit string) string {
		m := sizedLiteral.FindStringSubmatch(lit)
		base := strings.ToLower(m[2])
		base = base[len(base)-1:]
		digits := strings.ReplaceAll(m[3], "_", "")

		var radix int
		switch base {
		case "h":
			radix = 16
		case "b":
			radix = 2
		case "o":
			radix = 8
		case "d", "s":
			radix = 10
		default:
			return Unknown
		}
		v, err := strconv.ParseInt(digits, radix, 64)
		if err != nil {
			return Unknown
		}
		return strconv.FormatInt(v, 10)
	})
}
