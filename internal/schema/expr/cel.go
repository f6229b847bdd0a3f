package expr

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// RuleEvaluator compiles and evaluates custom validation-rule expressions.
// Unlike the comparator grammar, rule expressions are full CEL programs with
// access to the current field value (`value`) and the form values snapshot
// (`values`). Programs are compiled once and cached by source text.
type RuleEvaluator struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewRuleEvaluator creates an evaluator with the standard environment.
func NewRuleEvaluator() (*RuleEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("value", cel.DynType),
		cel.Variable("values", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create rule environment: %w", err)
	}
	return &RuleEvaluator{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Check compiles the expression without evaluating, reporting compile errors.
// Used by the validator to surface broken rule expressions as warnings.
func (e *RuleEvaluator) Check(src string) error {
	_, err := e.program(src)
	return err
}

// EvaluateBool runs the expression against a field value and a form values
// snapshot. Non-boolean results are an error.
func (e *RuleEvaluator) EvaluateBool(src string, value any, values map[string]any) (bool, error) {
	prg, err := e.program(src)
	if err != nil {
		return false, err
	}
	if values == nil {
		values = map[string]any{}
	}
	out, _, err := prg.Eval(map[string]any{
		"value":  value,
		"values": values,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate rule %q: %w", src, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule %q: expected boolean result, got %T", src, out.Value())
	}
	return b, nil
}

func (e *RuleEvaluator) program(src string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[src]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, iss := e.env.Compile(src)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile rule %q: %w", src, iss.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build rule program %q: %w", src, err)
	}

	e.mu.Lock()
	e.programs[src] = prg
	e.mu.Unlock()
	return prg, nil
}
