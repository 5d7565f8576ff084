// Package validator checks persisted data against embedded CUE schemas.
//
// A snapshot that does not match the schema is rejected on write and on
// read. Generating Chisel from a malformed table would silently emit broken
// stubs; failing here names the offending field instead.
package validator

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/robert-at-pretension-io/sv2chisel/internal/facts"
	"github.com/robert-at-pretension-io/sv2chisel/internal/symtab"
)

//go:embed snapshot_schema.cue
var snapshotSchema []byte

//go:embed facts_schema.cue
var factsSchema []byte

// schema is a compiled CUE file with the definitions it exposes.
type schema struct {
	ctx   *cue.Context
	value cue.Value
}

func compile(name string, src []byte) (*schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(name))
	if v.Err() != nil {
		return nil, fmt.Errorf("compiling %s: %w", name, v.Err())
	}
	return &schema{ctx: ctx, value: v}, nil
}

func (s *schema) unify(def string, data []byte) (cue.Value, error) {
	dataValue := s.ctx.CompileBytes(data)
	if dataValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("compiling JSON as CUE: %w", dataValue.Err())
	}
	d := s.value.LookupPath(cue.ParsePath(def))
	if d.Err() != nil {
		return cue.Value{}, fmt.Errorf("looking up %s definition: %w", def, d.Err())
	}
	return d.Unify(dataValue), nil
}

func (s *schema) validateJSON(def string, data []byte) error {
	unified, err := s.unify(def, data)
	if err != nil {
		return err
	}
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func (s *schema) validate(def string, data any) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling data to JSON: %w", err)
	}
	return s.validateJSON(def, jsonBytes)
}

// Validator validates symbol table snapshots against #Snapshot.
type Validator struct {
	s *schema
}

// New creates a Validator with the embedded snapshot schema.
func New() (*Validator, error) {
	s, err := compile("snapshot_schema.cue", snapshotSchema)
	if err != nil {
		return nil, err
	}
	return &Validator{s: s}, nil
}

// ValidateSnapshot checks the JSON encoding of t. YAML snapshots decode
// into the same table, so one schema covers both formats.
func (v *Validator) ValidateSnapshot(t *symtab.Table) error {
	if t == nil {
		return fmt.Errorf("schema validation failed: nil snapshot")
	}
	return v.s.validate("#Snapshot", t)
}

// ValidateJSON validates raw snapshot JSON.
func (v *Validator) ValidateJSON(data []byte) error {
	return v.s.validateJSON("#Snapshot", data)
}

// ValidationErrors returns one message per schema violation in t, or nil.
func (v *Validator) ValidationErrors(t *symtab.Table) []string {
	jsonBytes, err := json.Marshal(t)
	if err != nil {
		return []string{fmt.Sprintf("marshal error: %v", err)}
	}
	unified, err := v.s.unify("#Snapshot", jsonBytes)
	if err != nil {
		return []string{err.Error()}
	}
	err = unified.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}
	var msgs []string
	for _, e := range errors.Errors(err) {
		msgs = append(msgs, strings.Join(e.Path(), ".")+": "+e.Error())
	}
	return msgs
}

// FactsValidator validates relational fact tables and deltas.
type FactsValidator struct {
	s *schema
}

// NewFactsValidator creates a validator for the facts schema.
func NewFactsValidator() (*FactsValidator, error) {
	s, err := compile("facts_schema.cue", factsSchema)
	if err != nil {
		return nil, err
	}
	return &FactsValidator{s: s}, nil
}

// Validate checks tables against #FactTables.
func (v *FactsValidator) Validate(tables facts.Tables) error {
	return v.s.validate("#FactTables", tables)
}

// ValidateDelta checks delta against #FactDelta.
func (v *FactsValidator) ValidateDelta(delta facts.Delta) error {
	return v.s.validate("#FactDelta", delta)
}
