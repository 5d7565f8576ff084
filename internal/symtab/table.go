// Package symtab holds the structural model extracted from HDL sources:
// macro defines and modules with their ordered ports.
package symtab

// Port directions.
const (
	DirInput  = "input"
	DirOutput = "output"
	DirInout  = "inout"
)

// Port types that are not taken from a source keyword.
const (
	TypeWire    = "wire"
	TypeUnknown = "unknown"
)

// Port is one signal crossing a module boundary.
type Port struct {
	Name      string `json:"name" yaml:"name"`
	Direction string `json:"direction" yaml:"direction"`
	Type      string `json:"type" yaml:"type"`
	Width     Width  `json:"width" yaml:"width"`
	// Expression is the original range text, set whenever Width came from
	// a packed range.
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// Define is a text macro with its raw, unevaluated replacement text.
type Define struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
	File  string `json:"file,omitempty" yaml:"file,omitempty"`
}

// Module is a design unit with its ports in declaration order.
type Module struct {
	Name  string `json:"name" yaml:"name"`
	File  string `json:"file,omitempty" yaml:"file,omitempty"`
	Ports []Port `json:"ports" yaml:"ports"`
}

// Table is the accumulated model of one or more files.
// Same-named modules from different files stay distinct entries.
type Table struct {
	Defines []Define `json:"defines" yaml:"defines"`
	Modules []Module `json:"modules" yaml:"modules"`
}

// New returns an empty table.
func New() *Table {
	return &Table{
		Defines: []Define{},
		Modules: []Module{},
	}
}

// AddDefine appends d. Redefinitions are kept.
func (t *Table) AddDefine(d Define) {
	t.Defines = append(t.Defines, d)
}

// AddModule opens a new module; subsequent ports are appended to it.
func (t *Table) AddModule(name, file string) {
	t.Modules = append(t.Modules, Module{Name: name, File: file, Ports: []Port{}})
}

// AddPort appends p to the most recently opened module. It reports false,
// dropping the port, when no module has been opened.
func (t *Table) AddPort(p Port) bool {
	if len(t.Modules) == 0 {
		return false
	}
	last := &t.Modules[len(t.Modules)-1]
	last.Ports = append(last.Ports, p)
	return true
}

// Merge appends every define and module of other, in order.
func (t *Table) Merge(other *Table) {
	if other == nil {
		return
	}
	t.Defines = append(t.Defines, other.Defines...)
	for _, m := range other.Modules {
		m.Ports = append([]Port{}, m.Ports...)
		t.Modules = append(t.Modules, m)
	}
}

// ModulesNamed returns every module entry called name.
func (t *Table) ModulesNamed(name string) []Module {
	var out []Module
	for _, m := range t.Modules {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// PortCount returns the number of ports across all modules.
func (t *Table) PortCount() int {
	n := 0
	for _, m := range t.Modules {
		n += len(m.Ports)
	}
	return n
}

// UnresolvedPorts returns the number of ports whose width stayed symbolic.
func (t *Table) UnresolvedPorts() int {
	n := 0
	for _, m := range t.Modules {
		for _, p := range m.Ports {
			if _, ok := p.Width.Resolved(); !ok {
				n++
			}
		}
	}
	return n
}
