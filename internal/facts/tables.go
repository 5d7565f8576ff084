// Package facts flattens a symbol table into relational rows so runs can be
// diffed, filtered and fed to the lint policy as plain tables.
package facts

import (
	"sort"

	"github.com/robert-at-pretension-io/sv2chisel/internal/symtab"
)

// Tables is the relational fact model. Each slice is a relation with flat rows.
type Tables struct {
	Files   []FileRow   `json:"files"`
	Defines []DefineRow `json:"defines"`
	Modules []ModuleRow `json:"modules"`
	Ports   []PortRow   `json:"ports"`
}

type FileRow struct {
	Path    string `json:"path"`
	Modules int    `json:"modules"`
	Defines int    `json:"defines"`
}

type DefineRow struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	File  string `json:"file"`
	// Ordinal is the position among all defines; redefinitions keep theirs.
	Ordinal int `json:"ordinal"`
}

type ModuleRow struct {
	Name  string `json:"name"`
	File  string `json:"file"`
	Ports int    `json:"ports"`
}

type PortRow struct {
	Module     string `json:"module"`
	Name       string `json:"name"`
	Direction  string `json:"direction"`
	Type       string `json:"type"`
	Width      string `json:"width"`
	Resolved   bool   `json:"resolved"`
	Expression string `json:"expression"`
	File       string `json:"file"`
	Position   int    `json:"position"`
}

// BuildTables converts a symbol table into the relational model. Module and
// port rows keep table order; file rows are sorted by path.
func BuildTables(tbl *symtab.Table) Tables {
	tables := emptyTables()
	if tbl == nil {
		return tables
	}

	files := make(map[string]*FileRow)
	file := func(path string) *FileRow {
		if r, ok := files[path]; ok {
			return r
		}
		r := &FileRow{Path: path}
		files[path] = r
		return r
	}

	for i, d := range tbl.Defines {
		tables.Defines = append(tables.Defines, DefineRow{
			Name:    d.Name,
			Value:   d.Value,
			File:    d.File,
			Ordinal: i,
		})
		file(d.File).Defines++
	}

	for _, m := range tbl.Modules {
		tables.Modules = append(tables.Modules, ModuleRow{
			Name:  m.Name,
			File:  m.File,
			Ports: len(m.Ports),
		})
		file(m.File).Modules++

		for i, p := range m.Ports {
			_, resolved := p.Width.Resolved()
			tables.Ports = append(tables.Ports, PortRow{
				Module:     m.Name,
				Name:       p.Name,
				Direction:  p.Direction,
				Type:       p.Type,
				Width:      p.Width.String(),
				Resolved:   resolved,
				Expression: p.Expression,
				File:       m.File,
				Position:   i,
			})
		}
	}

	for _, r := range files {
		tables.Files = append(tables.Files, *r)
	}
	sort.Slice(tables.Files, func(i, j int) bool { return tables.Files[i].Path < tables.Files[j].Path })

	return tables
}

func emptyTables() Tables {
	return Tables{
		Files:   []FileRow{},
		Defines: []DefineRow{},
		Modules: []ModuleRow{},
		Ports:   []PortRow{},
	}
}
