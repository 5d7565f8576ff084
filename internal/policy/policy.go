// Package policy evaluates interface lint rules, written in Rego, over the
// relational facts of a run. The rules flag tables that would produce stubs
// needing manual attention; they never change generation.
package policy

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/robert-at-pretension-io/sv2chisel/internal/chisel"
	"github.com/robert-at-pretension-io/sv2chisel/internal/facts"
	"github.com/robert-at-pretension-io/sv2chisel/internal/logging"
)

//go:embed lint.rego
var builtinPolicy string

// Rule names.
const (
	RuleUnresolvedWidth = "unresolved_width"
	RuleDuplicateModule = "duplicate_module"
	RuleEmptyModule     = "empty_module"
	RuleReservedName    = "reserved_name"
	RuleUnknownType     = "unknown_type"
)

// Severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
	SeverityOff     = "off"
)

// Rules lists every built-in rule with its default severity.
var Rules = map[string]string{
	RuleUnresolvedWidth: SeverityWarning,
	RuleDuplicateModule: SeverityError,
	RuleEmptyModule:     SeverityInfo,
	RuleReservedName:    SeverityWarning,
	RuleUnknownType:     SeverityInfo,
}

const (
	violationsQuery = "data.sv2chisel.lint.all_violations"
	summaryQuery    = "data.sv2chisel.lint.summary"
)

// Violation is one rule hit.
type Violation struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	File     string `json:"file"`
	Module   string `json:"module"`
	Message  string `json:"message"`
}

func (v Violation) String() string {
	loc := v.File
	if loc == "" {
		loc = "<unknown>"
	}
	return fmt.Sprintf("%s: %s [%s] %s", loc, v.Severity, v.Rule, v.Message)
}

// Summary provides aggregate counts.
type Summary struct {
	TotalViolations int `json:"total_violations"`
	Errors          int `json:"errors"`
	Warnings        int `json:"warnings"`
	Info            int `json:"info"`
}

// Result contains the evaluation results.
type Result struct {
	Violations []Violation `json:"violations"`
	Summary    Summary     `json:"summary"`
}

// HasErrors reports whether any violation has error severity.
func (r *Result) HasErrors() bool {
	return r.Summary.Errors > 0
}

// Input is the document the rules see as input.
type Input struct {
	facts.Tables
	ScalaReserved []string    `json:"scala_reserved"`
	Config        InputConfig `json:"config"`
}

// InputConfig carries the configured rule severities.
type InputConfig struct {
	Severities map[string]string `json:"severities"`
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	dir string
	log *slog.Logger
}

// WithPolicyDir loads every .rego file of dir in addition to the built-in
// rules. Extra modules may add to data.sv2chisel.lint.violations.
func WithPolicyDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// WithLogger sets the logger for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// Engine evaluates prepared lint queries. It is safe for concurrent use.
type Engine struct {
	violations rego.PreparedEvalQuery
	summary    rego.PreparedEvalQuery
	version    string
	log        logging.Logger
}

// Version is a hash of every loaded rule module.
func (e *Engine) Version() string {
	return e.version
}

// New compiles the built-in rules and any extra policy modules.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	modules := []func(*rego.Rego){rego.Module("lint.rego", builtinPolicy)}
	h := sha256.New()
	h.Write([]byte(builtinPolicy))
	if o.dir != "" {
		files, err := filepath.Glob(filepath.Join(o.dir, "*.rego"))
		if err != nil {
			return nil, fmt.Errorf("finding policy files: %w", err)
		}
		for _, f := range files {
			content, err := os.ReadFile(f)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", f, err)
			}
			modules = append(modules, rego.Module(f, string(content)))
			h.Write([]byte{0})
			h.Write(content)
		}
	}

	prepare := func(query string) (rego.PreparedEvalQuery, error) {
		args := append(append([]func(*rego.Rego){}, modules...), rego.Query(query))
		q, err := rego.New(args...).PrepareForEval(ctx)
		if err != nil {
			return rego.PreparedEvalQuery{}, fmt.Errorf("preparing %s: %w", query, err)
		}
		return q, nil
	}

	e := &Engine{
		version: hex.EncodeToString(h.Sum(nil)),
		log:     logging.Component(o.log, "policy"),
	}
	var err error
	if e.violations, err = prepare(violationsQuery); err != nil {
		return nil, err
	}
	if e.summary, err = prepare(summaryQuery); err != nil {
		return nil, err
	}
	return e, nil
}

// NewInput builds the rule input from tables and the configured severities.
// Severities for rules the built-in policy does not know are passed through
// for extra policy modules.
func NewInput(tables facts.Tables, severities map[string]string) Input {
	sev := make(map[string]string, len(severities))
	for k, v := range severities {
		sev[k] = v
	}
	return Input{
		Tables:        tables,
		ScalaReserved: chisel.ReservedNames(),
		Config:        InputConfig{Severities: sev},
	}
}

// Evaluate runs the rules against input.
func (e *Engine) Evaluate(ctx context.Context, input Input) (*Result, error) {
	inputMap, err := structToMap(input)
	if err != nil {
		return nil, fmt.Errorf("converting input: %w", err)
	}

	result := &Result{Violations: []Violation{}}

	rs, err := e.violations.Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating violations: %w", err)
	}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		if items, ok := rs[0].Expressions[0].Value.([]interface{}); ok {
			for _, item := range items {
				vmap, ok := item.(map[string]interface{})
				if !ok {
					continue
				}
				result.Violations = append(result.Violations, Violation{
					Rule:     getString(vmap, "rule"),
					Severity: getString(vmap, "severity"),
					File:     getString(vmap, "file"),
					Module:   getString(vmap, "module"),
					Message:  getString(vmap, "message"),
				})
			}
		}
	}

	rs, err = e.summary.Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating summary: %w", err)
	}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		if smap, ok := rs[0].Expressions[0].Value.(map[string]interface{}); ok {
			result.Summary = Summary{
				TotalViolations: getInt(smap, "total_violations"),
				Errors:          getInt(smap, "errors"),
				Warnings:        getInt(smap, "warnings"),
				Info:            getInt(smap, "info"),
			}
		}
	}

	e.log.Debug("evaluated",
		slog.Int("violations", result.Summary.TotalViolations),
		slog.Int("errors", result.Summary.Errors))
	return result, nil
}

func structToMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	err = json.Unmarshal(data, &result)
	return result, err
}

func getString(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func getInt(m map[string]interface{}, key string) int {
	switch n := m[key].(type) {
	case int:
		return n
	case float64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	}
	return 0
}
