package spectemplate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
)

var (
	envOnce sync.Once
	ruleEnv *cel.Env
	envErr  error
)

func env() (*cel.Env, error) {
	envOnce.Do(func() {
		ruleEnv, envErr = cel.NewEnv(
			cel.Variable("value", cel.DynType),
			cel.Variable("specs", cel.MapType(cel.StringType, cel.DynType)),
			cel.CrossTypeNumericComparisons(true),
		)
	})
	return ruleEnv, envErr
}

func compile(expr string) (cel.Program, error) {
	e, err := env()
	if err != nil {
		return nil, err
	}
	ast, iss := e.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	out := ast.OutputType()
	if !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("rule must evaluate to bool, got %s", out)
	}
	return e.Program(ast)
}

// CheckRule reports whether expr compiles to a boolean rule.
func CheckRule(expr string) error {
	_, err := compile(expr)
	return err
}

// RuleSet evaluates the required flags and rules of a template against an
// asset's specification values.
type RuleSet struct {
	fields   []Field
	programs map[string]cel.Program
}

// CompileRules prepares every field rule. It fails on the first bad rule.
func CompileRules(fields []Field) (*RuleSet, error) {
	rs := &RuleSet{fields: cloneFields(fields), programs: make(map[string]cel.Program)}
	for _, f := range fields {
		if strings.TrimSpace(f.Rule) == "" {
			continue
		}
		p, err := compile(f.Rule)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.ID, err)
		}
		rs.programs[f.ID] = p
	}
	return rs, nil
}

// Check returns the ids of fields that are required but empty, or whose
// rule does not evaluate to true. Rules of empty optional fields are skipped.
func (rs *RuleSet) Check(specs map[string]any) []string {
	vars := make(map[string]any, len(specs))
	for k, v := range specs {
		vars[k] = celValue(v)
	}
	for _, f := range rs.fields {
		if v, ok := vars[f.ID]; ok && f.Type == TypeNumber {
			vars[f.ID] = toNumber(v)
		}
	}

	var failed []string
	for _, f := range rs.fields {
		raw, ok := specs[f.ID]
		if !ok || isBlank(raw) {
			if f.Required {
				failed = append(failed, f.ID)
			}
			continue
		}
		p, ok := rs.programs[f.ID]
		if !ok {
			continue
		}
		out, _, err := p.Eval(map[string]any{"value": vars[f.ID], "specs": vars})
		if err != nil {
			failed = append(failed, f.ID)
			continue
		}
		if b, ok := out.Value().(bool); !ok || !b {
			failed = append(failed, f.ID)
		}
	}
	return failed
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

// celValue converts decoded JSON into types the CEL runtime accepts.
func celValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = celValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = celValue(e)
		}
		return out
	}
	return v
}

// toNumber parses numeric strings entered in number fields.
func toNumber(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return v
}
