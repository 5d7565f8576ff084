package symtab

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Width is a port's bit width: either a resolved bit count (>= 1) or the
// symbolic expression text that could not be evaluated.
//
// Resolved widths serialize as numbers, symbolic ones as strings.
type Width struct {
	bits int64
	expr string
}

// Bits returns a resolved width.
func Bits(n int64) Width {
	return Width{bits: n}
}

// Symbolic returns an unresolved width carrying expr.
func Symbolic(expr string) Width {
	return Width{expr: expr}
}

// Resolved returns the bit count and whether the width was resolved.
func (w Width) Resolved() (int64, bool) {
	return w.bits, w.bits > 0
}

// String returns the decimal bit count or the symbolic text.
func (w Width) String() string {
	if w.bits > 0 {
		return strconv.FormatInt(w.bits, 10)
	}
	return w.expr
}

func (w Width) MarshalJSON() ([]byte, error) {
	if n, ok := w.Resolved(); ok {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(w.expr)
}

func (w *Width) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		return w.setBits(n)
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("width must be a number or a string: %w", err)
	}
	w.setText(s)
	return nil
}

func (w Width) MarshalYAML() (interface{}, error) {
	if n, ok := w.Resolved(); ok {
		return n, nil
	}
	return w.expr, nil
}

func (w *Width) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("width must be a scalar, line %d", value.Line)
	}
	if value.Tag == "!!int" {
		n, err := strconv.ParseInt(value.Value, 0, 64)
		if err != nil {
			return fmt.Errorf("width: %w", err)
		}
		return w.setBits(n)
	}
	w.setText(value.Value)
	return nil
}

func (w *Width) setBits(n int64) error {
	if n < 1 {
		return fmt.Errorf("width must be >= 1, got %d", n)
	}
	*w = Bits(n)
	return nil
}

// Numeric strings are accepted for hand-edited snapshots.
func (w *Width) setText(s string) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n >= 1 {
		*w = Bits(n)
		return
	}
	*w = Symbolic(s)
}
