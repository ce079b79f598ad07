package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/relay/internal/graph"
)

type stepID int64

func TestBuildQueryNoParams(t *testing.T) {
	q, err := graph.BuildQuery("MATCH (s) RETURN s", nil)
	assert.NoError(t, err)
	assert.Equal(t, "MATCH (s) RETURN s", q)
}

func TestBuildQuerySortsParams(t *testing.T) {
	q, err := graph.BuildQuery("RETURN $b, $a", graph.Params{
		"b": 2,
		"a": "x",
	})
	assert.NoError(t, err)
	assert.Equal(t, `CYPHER a="x" b=2 RETURN $b, $a`, q)
}

func TestBuildQueryInvalidName(t *testing.T) {
	_, err := graph.BuildQuery("RETURN 1", graph.Params{"bad-name": 1})
	assert.ErrorIs(t, err, graph.ErrInvalidParamName)
}

func TestLiteral(t *testing.T) {
	text := "say \"hi\"\n\tC:\\tmp"
	var none *string

	tests := []struct {
		name     string
		value    any
		expected string
	}{
		{"nil", nil, "null"},
		{"nil pointer", none, "null"},
		{"pointer", &text, `"say \"hi\"\n\tC:\\tmp"`},
		{"string", "echo hello", `"echo hello"`},
		{"escapes", text, `"say \"hi\"\n\tC:\\tmp"`},
		{"bool", true, "true"},
		{"int", 42, "42"},
		{"named int", stepID(7), "7"},
		{"negative", int64(-3), "-3"},
		{"uint", uint8(9), "9"},
		{"float", 1.5, "1.5"},
		{"list", []any{1, "a", nil}, `[1, "a", null]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lit, err := graph.Literal(tt.value)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, lit)
		})
	}
}

func TestLiteralUnsupported(t *testing.T) {
	_, err := graph.Literal(map[string]int{"a": 1})
	assert.ErrorIs(t, err, graph.ErrUnsupportedParam)

	_, err = graph.BuildQuery("RETURN $f", graph.Params{"f": func() {}})
	assert.ErrorIs(t, err, graph.ErrUnsupportedParam)
}
