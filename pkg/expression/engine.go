// Package expression evaluates boolean conditions and data transforms over the
// execution scope using expr-lang expressions.
package expression

import (
	"context"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Engine compiles and evaluates expressions against a scope snapshot.
// Compiled programs are cached and reused across goroutines.
type Engine struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewEngine creates an expression engine with an empty program cache.
func NewEngine() *Engine {
	return &Engine{
		cache: make(map[string]*vm.Program),
	}
}

// Evaluate compiles (or retrieves from cache) an expression and runs it with
// the scope map as its environment, making every key a top-level variable.
func (e *Engine) Evaluate(ctx context.Context, expression string, env map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if expression == "" {
		return nil, fmt.Errorf("empty expression")
	}

	program, err := e.getOrCompile(expression)
	if err != nil {
		return nil, err
	}

	if env == nil {
		env = map[string]any{}
	}

	out, err := vm.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("expression %q failed: %w", expression, err)
	}

	return out, nil
}

// EvaluateBool evaluates an expression and requires a boolean result.
func (e *Engine) EvaluateBool(ctx context.Context, expression string, env map[string]any) (bool, error) {
	out, err := e.Evaluate(ctx, expression, env)
	if err != nil {
		return false, err
	}

	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q returned %T, expected bool", expression, out)
	}

	return result, nil
}

func (e *Engine) getOrCompile(expression string) (*vm.Program, error) {
	e.mu.RLock()
	program, exists := e.cache[expression]
	e.mu.RUnlock()

	if exists {
		return program, nil
	}

	// Compile without a typed environment so scope keys stay dynamic.
	program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression %q: %w", expression, err)
	}

	e.mu.Lock()
	e.cache[expression] = program
	e.mu.Unlock()

	return program, nil
}
