package executor

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestToStarlark(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want starlark.Value
	}{
		{name: "nil", in: nil, want: starlark.None},
		{name: "bool", in: true, want: starlark.True},
		{name: "string", in: "x", want: starlark.String("x")},
		{name: "integral float", in: float64(3), want: starlark.MakeInt(3)},
		{name: "fractional float", in: 2.5, want: starlark.Float(2.5)},
		{name: "json int", in: json.Number("7"), want: starlark.MakeInt(7)},
		{name: "json float", in: json.Number("1.25"), want: starlark.Float(1.25)},
		{name: "int", in: 9, want: starlark.MakeInt(9)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := toStarlark(tt.in)
			require.NoError(t, err)

			eq, err := starlark.Equal(tt.want, got)
			require.NoError(t, err)
			assert.True(t, eq, "got %v, want %v", got, tt.want)
		})
	}
}

func TestToStarlark_Nested(t *testing.T) {
	t.Parallel()

	dict, err := toStarlarkDict(map[string]any{
		"b": []any{"x", float64(1)},
		"a": map[string]any{"inner": true},
	})
	require.NoError(t, err)

	keys := dict.Keys()
	require.Len(t, keys, 2)
	assert.Equal(t, starlark.String("a"), keys[0])

	got, err := fromStarlark(dict)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"b": []any{"x", int64(1)},
		"a": map[string]any{"inner": true},
	}, got)
}

func TestToStarlark_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := toStarlarkDict(map[string]any{"ch": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"ch"`)
}

func TestFromStarlark_Fallbacks(t *testing.T) {
	t.Parallel()

	big, err := starlark.Call(&starlark.Thread{}, starlark.Universe["int"], starlark.Tuple{starlark.String("123456789012345678901234567890")}, nil)
	require.NoError(t, err)

	set := starlark.NewSet(1)
	require.NoError(t, set.Insert(starlark.String("only")))

	tests := []struct {
		name string
		in   starlark.Value
		want any
	}{
		{name: "big int", in: big, want: "123456789012345678901234567890"},
		{name: "function", in: starlark.Universe["len"], want: "<built-in function len>"},
		{name: "set", in: set, want: []any{"only"}},
		{name: "nan", in: starlark.Float(math.NaN()), want: "nan"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := fromStarlark(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromStarlark_Cycles(t *testing.T) {
	t.Parallel()

	selfList := starlark.NewList(nil)
	require.NoError(t, selfList.Append(selfList))

	selfDict := starlark.NewDict(1)
	require.NoError(t, selfDict.SetKey(starlark.String("me"), starlark.NewList([]starlark.Value{selfDict})))

	_, err := fromStarlark(selfList)
	require.ErrorIs(t, err, errResultCycle)

	_, err = fromStarlark(selfDict)
	require.ErrorIs(t, err, errResultCycle)

	// The same container twice side by side is not a cycle.
	shared := starlark.NewList([]starlark.Value{starlark.MakeInt(1)})
	got, err := fromStarlark(starlark.NewList([]starlark.Value{shared, shared}))
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{int64(1)}, []any{int64(1)}}, got)
}

func TestFromStarlark_Depth(t *testing.T) {
	t.Parallel()

	var v starlark.Value = starlark.None
	for range maxResultDepth + 1 {
		v = starlark.NewList([]starlark.Value{v})
	}

	_, err := fromStarlark(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nested")
}

func TestNormalizeGo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      any
		want    any
		wantErr bool
	}{
		{name: "nil", in: nil, want: ""},
		{name: "int", in: 5, want: 5},
		{name: "map", in: map[string]any{"a": 1}, want: map[string]any{"a": 1}},
		{name: "nan", in: math.NaN(), want: "NaN"},
		{name: "infinity", in: math.Inf(1), want: "+Inf"},
		{name: "nested nan", in: []any{math.NaN()}, wantErr: true},
		{name: "channel", in: make(chan int), wantErr: true},
		{name: "func", in: func() {}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := normalizeGo(tt.in)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
