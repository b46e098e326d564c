package mdtemplate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalExpr(t *testing.T, exprText, dataJSON string) bool {
	t.Helper()
	e, err := ParseConstraintExpression(exprText)
	require.NoError(t, err, "parse %q", exprText)
	data := jsonData(t, dataJSON)
	ok, err := e.Evaluate(data, NewScope())
	require.NoError(t, err, "evaluate %q", exprText)
	return ok
}

func TestConstraint_Truthiness(t *testing.T) {
	tests := []struct {
		expr string
		data string
		want bool
	}{
		{"active", `{"active":"yes"}`, true},
		{"active", `{"active":""}`, false},
		{"active", `{"active":"0"}`, false},
		{"active", `{"active":"false"}`, false},
		{"active", `{"active":true}`, true},
		{"active", `{"active":false}`, false},
		{"active", `{}`, false},
		{"count", `{"count":0}`, false},
		{"count", `{"count":3}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr+" "+tt.data, func(t *testing.T) {
			assert.Equal(t, tt.want, evalExpr(t, tt.expr, tt.data))
		})
	}
}

func TestConstraint_Comparisons(t *testing.T) {
	tests := []struct {
		expr string
		data string
		want bool
	}{
		{`price < 50`, `{"price":25}`, true},
		{`price < 50`, `{"price":999}`, false},
		{`price <= 25`, `{"price":25}`, true},
		{`price >= 100`, `{"price":99.5}`, false},
		{`price > 10`, `{"price":"12"}`, true},
		{`name == "John"`, `{"name":"John"}`, true},
		{`name != "John"`, `{"name":"Jane"}`, true},
		{`name > "a"`, `{"name":"b"}`, true},
		{`stock == true`, `{"stock":true}`, true},
		// Absent operands: absent == absent holds, ordered comparisons
		// involving an absent side are false.
		{`missing < 50`, `{}`, false},
		{`missing > 50`, `{}`, false},
		{`missing != "x"`, `{}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr+" "+tt.data, func(t *testing.T) {
			assert.Equal(t, tt.want, evalExpr(t, tt.expr, tt.data))
		})
	}
}

func TestConstraint_DottedPaths(t *testing.T) {
	assert.True(t, evalExpr(t, `author.name == "Jane"`, `{"author":{"name":"Jane"}}`))
	assert.False(t, evalExpr(t, `author.name == "Jane"`, `{"author":{"name":"John"}}`))
}

func TestConstraint_LogicalOperators(t *testing.T) {
	tests := []struct {
		expr string
		data string
		want bool
	}{
		{`price < 50 && stock > 0`, `{"price":25,"stock":3}`, true},
		{`price < 50 && stock > 0`, `{"price":25,"stock":0}`, false},
		{`price < 50 || stock > 0`, `{"price":80,"stock":3}`, true},
		{`price < 50 || stock > 0`, `{"price":80,"stock":0}`, false},
		{`a && b && c`, `{"a":1,"b":1,"c":1}`, true},
		{`a && b && c`, `{"a":1,"b":1,"c":0}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, evalExpr(t, tt.expr, tt.data))
		})
	}
}

func TestConstraint_IDReference(t *testing.T) {
	e, err := ParseConstraintExpression(`@author`)
	require.NoError(t, err)

	scope := NewScope()
	ok, err := e.Evaluate(jsonData(t, `{}`), scope)
	require.NoError(t, err)
	assert.False(t, ok, "unregistered @id should be falsy")

	scope.RegisterID("author", jsonData(t, `{"name":"Jane"}`))
	ok, err = e.Evaluate(jsonData(t, `{}`), scope)
	require.NoError(t, err)
	assert.True(t, ok, "registered @id should be truthy")
}

func TestConstraint_RejectedShapes(t *testing.T) {
	for _, expr := range []string{
		"",
		"price + 1 > 2",
		"len(items) > 0",
		"a ? b : c",
		"items | filter(true)",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseConstraintExpression(expr)
			var e *Error
			require.Error(t, err)
			require.True(t, errors.As(err, &e))
			assert.Equal(t, ConstraintError, e.Kind)
		})
	}
}

func TestConstraint_NumericFallsBackToStringOrder(t *testing.T) {
	// "abc" is not numeric, so the comparison is code-point order.
	assert.True(t, evalExpr(t, `name < "b"`, `{"name":"abc"}`))
	assert.False(t, evalExpr(t, `name < "a"`, `{"name":"abc"}`))
}
