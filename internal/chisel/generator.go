// Package chisel renders modules of the symbol table as Chisel BlackBox
// declarations.
package chisel

import (
	"fmt"
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/sv2chisel/internal/symtab"
)

// BundleSuffix is appended to the module name to name the split layout's
// bundle class.
const BundleSuffix = "_Bundle"

// Layout selects how the port bundle is declared.
type Layout int

const (
	// LayoutInline declares the bundle anonymously inside the BlackBox.
	LayoutInline Layout = iota
	// LayoutSplit declares a named bundle class next to the BlackBox.
	LayoutSplit
)

func (l Layout) String() string {
	if l == LayoutSplit {
		return "split"
	}
	return "inline"
}

// ParseLayouts maps "inline", "split" or "both" to layouts.
func ParseLayouts(s string) ([]Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "inline":
		return []Layout{LayoutInline}, nil
	case "split":
		return []Layout{LayoutSplit}, nil
	case "both":
		return []Layout{LayoutInline, LayoutSplit}, nil
	}
	return nil, fmt.Errorf("unknown layout %q (want inline, split or both)", s)
}

// Options controls generation.
type Options struct {
	// Package, when set, adds a package clause.
	Package string
	// AnnotateUnresolved appends a comment to fields whose width is still
	// symbolic. The width itself is emitted verbatim either way.
	AnnotateUnresolved bool
}

// Generator renders modules. It is stateless and safe for concurrent use.
type Generator struct {
	opts Options
}

// NewGenerator creates a Generator.
func NewGenerator(opts Options) *Generator {
	return &Generator{opts: opts}
}

// Generate returns the Scala source for m in the given layout.
func (g *Generator) Generate(m symtab.Module, layout Layout) string {
	var b strings.Builder
	g.header(&b, m)
	fields := g.Fields(m)
	if layout == LayoutSplit {
		bundle := m.Name + BundleSuffix
		fmt.Fprintf(&b, "class %s extends Bundle {\n", bundle)
		writeIndented(&b, fields, 4)
		b.WriteString("}\n\n")
		fmt.Fprintf(&b, "class %s extends BlackBox {\n", m.Name)
		fmt.Fprintf(&b, "    val io = IO(new %s)\n", bundle)
		b.WriteString("}\n")
		return b.String()
	}
	fmt.Fprintf(&b, "class %s extends BlackBox {\n", m.Name)
	b.WriteString("    val io = IO(new Bundle {\n")
	writeIndented(&b, fields, 8)
	b.WriteString("    })\n")
	b.WriteString("}\n")
	return b.String()
}

// Fields renders one field declaration per port, in port order. Both
// layouts use this list unchanged.
func (g *Generator) Fields(m symtab.Module) []string {
	out := make([]string, len(m.Ports))
	for i, p := range m.Ports {
		out[i] = Field(p)
		if _, ok := p.Width.Resolved(); !ok && g.opts.AnnotateUnresolved {
			out[i] += " // unresolved width: " + p.Width.String()
		}
	}
	return out
}

// Field renders a single port. Inputs and outputs become directed UInts;
// anything else is an Analog wire.
func Field(p symtab.Port) string {
	name := ScalaName(p.Name)
	w := p.Width.String()
	switch p.Direction {
	case symtab.DirInput:
		return fmt.Sprintf("val %s = Input(UInt(%s.W))", name, w)
	case symtab.DirOutput:
		return fmt.Sprintf("val %s = Output(UInt(%s.W))", name, w)
	}
	return fmt.Sprintf("val %s = Analog(%s.W)", name, w)
}

func (g *Generator) header(b *strings.Builder, m symtab.Module) {
	if g.opts.Package != "" {
		fmt.Fprintf(b, "package %s\n\n", g.opts.Package)
	}
	b.WriteString("import chisel3._\n")
	if needsAnalog(m) {
		b.WriteString("import chisel3.experimental.Analog\n")
	}
	b.WriteString("\n")
}

func needsAnalog(m symtab.Module) bool {
	for _, p := range m.Ports {
		if p.Direction != symtab.DirInput && p.Direction != symtab.DirOutput {
			return true
		}
	}
	return false
}

func writeIndented(b *strings.Builder, lines []string, n int) {
	pad := strings.Repeat(" ", n)
	for _, l := range lines {
		b.WriteString(pad)
		b.WriteString(l)
		b.WriteByte('\n')
	}
}

var scalaReserved = map[string]bool{
	"abstract": true, "case": true, "catch": true, "class": true, "def": true,
	"do": true, "else": true, "extends": true, "false": true, "final": true,
	"finally": true, "for": true, "forSome": true, "if": true, "implicit": true,
	"import": true, "lazy": true, "match": true, "new": true, "null": true,
	"object": true, "override": true, "package": true, "private": true,
	"protected": true, "return": true, "sealed": true, "super": true,
	"this": true, "throw": true, "trait": true, "true": true, "try": true,
	"type": true, "val": true, "var": true, "while": true, "with": true,
	"yield": true,
}

// ReservedNames returns the Scala keywords in sorted order.
func ReservedNames() []string {
	out := make([]string, 0, len(scalaReserved))
	for w := range scalaReserved {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// IsReserved reports whether name is a Scala keyword.
func IsReserved(name string) bool {
	return scalaReserved[name]
}

// ScalaName quotes name with back-ticks when it is a Scala keyword.
func ScalaName(name string) string {
	if scalaReserved[name] {
		return "`" + name + "`"
	}
	return name
}
