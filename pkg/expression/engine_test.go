package expression

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Evaluate(t *testing.T) {
	engine := NewEngine()
	ctx := context.Background()

	testCases := []struct {
		name       string
		expression string
		env        map[string]any
		expected   any
	}{
		{
			name:       "arithmetic",
			expression: "amount * 2",
			env:        map[string]any{"amount": 21},
			expected:   42,
		},
		{
			name:       "string comparison",
			expression: `status == "active"`,
			env:        map[string]any{"status": "active"},
			expected:   true,
		},
		{
			name:       "collection filter",
			expression: `filter(tasks, .priority == "high")`,
			env: map[string]any{
				"tasks": []map[string]any{
					{"id": "t1", "priority": "high"},
					{"id": "t2", "priority": "low"},
				},
			},
			expected: []any{map[string]any{"id": "t1", "priority": "high"}},
		},
		{
			name:       "undefined variable is nil",
			expression: "missing == nil",
			env:        map[string]any{},
			expected:   true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := engine.Evaluate(ctx, tc.expression, tc.env)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, out)
		})
	}
}

func TestEngine_EvaluateBool(t *testing.T) {
	engine := NewEngine()
	ctx := context.Background()

	result, err := engine.EvaluateBool(ctx, "count > 10", map[string]any{"count": 11})
	require.NoError(t, err)
	assert.True(t, result)

	_, err = engine.EvaluateBool(ctx, "count + 1", map[string]any{"count": 1})
	assert.Error(t, err, "non-boolean result must be rejected")
}

func TestEngine_CompileErrors(t *testing.T) {
	engine := NewEngine()

	_, err := engine.Evaluate(context.Background(), "1 +", nil)
	assert.Error(t, err)

	_, err = engine.Evaluate(context.Background(), "", nil)
	assert.Error(t, err)
}

func TestEngine_CacheReuse(t *testing.T) {
	engine := NewEngine()
	ctx := context.Background()

	for range 3 {
		out, err := engine.Evaluate(ctx, "n + 1", map[string]any{"n": 1})
		require.NoError(t, err)
		assert.Equal(t, 2, out)
	}

	engine.mu.RLock()
	defer engine.mu.RUnlock()
	assert.Len(t, engine.cache, 1)
}
