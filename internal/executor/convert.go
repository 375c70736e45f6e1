package executor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"

	"go.starlark.net/starlark"
)

// toStarlark converts a decoded JSON value into a Starlark value.
//
// Integral numbers become ints so that scripts can index and count with them;
// everything else keeps its JSON shape.
func toStarlark(v any) (starlark.Value, error) {
	switch x := v.(type) {
	case nil:
		return starlark.None, nil
	case starlark.Value:
		return x, nil
	case bool:
		return starlark.Bool(x), nil
	case string:
		return starlark.String(x), nil
	case int:
		return starlark.MakeInt(x), nil
	case int64:
		return starlark.MakeInt64(x), nil
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return starlark.MakeInt64(int64(x)), nil
		}

		return starlark.Float(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return starlark.MakeInt64(i), nil
		}

		if bi, ok := new(big.Int).SetString(x.String(), 10); ok {
			return starlark.MakeBigInt(bi), nil
		}

		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("convert number %q: %w", x, err)
		}

		return starlark.Float(f), nil
	case []any:
		elems := make([]starlark.Value, 0, len(x))

		for _, e := range x {
			sv, err := toStarlark(e)
			if err != nil {
				return nil, err
			}

			elems = append(elems, sv)
		}

		return starlark.NewList(elems), nil
	case []string:
		elems := make([]starlark.Value, 0, len(x))
		for _, e := range x {
			elems = append(elems, starlark.String(e))
		}

		return starlark.NewList(elems), nil
	case map[string]any:
		return toStarlarkDict(x)
	default:
		return nil, fmt.Errorf("convert argument: unsupported type %T", v)
	}
}

// toStarlarkDict builds a dict with keys inserted in sorted order, so that
// iteration inside a script is deterministic.
func toStarlarkDict(m map[string]any) (*starlark.Dict, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	dict := starlark.NewDict(len(m))

	for _, k := range keys {
		sv, err := toStarlark(m[k])
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", k, err)
		}

		if err := dict.SetKey(starlark.String(k), sv); err != nil {
			return nil, err
		}
	}

	return dict, nil
}

// maxResultDepth bounds how deeply nested a script result may be.
const maxResultDepth = 256

// errResultCycle is returned for a result that contains itself.
var errResultCycle = errors.New("result contains a reference cycle")

// fromStarlark converts a script result into plain Go values suitable for
// JSON encoding. Values with no JSON counterpart are rendered with str().
func fromStarlark(v starlark.Value) (any, error) {
	c := resultConverter{active: make(map[starlark.Value]struct{})}

	return c.convert(v, 0)
}

// resultConverter tracks the mutable containers on the current path so that
// self-referencing results fail instead of recursing forever.
type resultConverter struct {
	active map[starlark.Value]struct{}
}

func (c *resultConverter) enter(v starlark.Value) error {
	if _, seen := c.active[v]; seen {
		return errResultCycle
	}

	c.active[v] = struct{}{}

	return nil
}

func (c *resultConverter) leave(v starlark.Value) {
	delete(c.active, v)
}

func (c *resultConverter) convert(v starlark.Value, depth int) (any, error) {
	if depth > maxResultDepth {
		return nil, fmt.Errorf("result is nested more than %d levels deep", maxResultDepth)
	}

	switch x := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(x), nil
	case starlark.String:
		return string(x), nil
	case starlark.Bytes:
		return string(x), nil
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return i, nil
		}

		return x.String(), nil
	case starlark.Float:
		f := float64(x)
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return x.String(), nil
		}

		return f, nil
	case *starlark.List:
		if err := c.enter(x); err != nil {
			return nil, err
		}
		defer c.leave(x)

		out := make([]any, 0, x.Len())

		for i := range x.Len() {
			e, err := c.convert(x.Index(i), depth+1)
			if err != nil {
				return nil, err
			}

			out = append(out, e)
		}

		return out, nil
	case starlark.Tuple:
		out := make([]any, 0, len(x))

		for _, e := range x {
			ev, err := c.convert(e, depth+1)
			if err != nil {
				return nil, err
			}

			out = append(out, ev)
		}

		return out, nil
	case *starlark.Set:
		out := make([]any, 0, x.Len())

		iter := x.Iterate()
		defer iter.Done()

		var e starlark.Value
		for iter.Next(&e) {
			ev, err := c.convert(e, depth+1)
			if err != nil {
				return nil, err
			}

			out = append(out, ev)
		}

		return out, nil
	case *starlark.Dict:
		if err := c.enter(x); err != nil {
			return nil, err
		}
		defer c.leave(x)

		out := make(map[string]any, x.Len())

		for _, item := range x.Items() {
			ev, err := c.convert(item[1], depth+1)
			if err != nil {
				return nil, err
			}

			out[keyString(item[0])] = ev
		}

		return out, nil
	case starlark.HasAttrs:
		out := make(map[string]any)

		for _, name := range x.AttrNames() {
			attr, err := x.Attr(name)
			if err != nil || attr == nil {
				continue
			}

			if _, callable := attr.(starlark.Callable); callable {
				continue
			}

			ev, err := c.convert(attr, depth+1)
			if err != nil {
				return nil, err
			}

			out[name] = ev
		}

		if len(out) == 0 {
			return x.String(), nil
		}

		return out, nil
	default:
		return v.String(), nil
	}
}

func keyString(k starlark.Value) string {
	if s, ok := starlark.AsString(k); ok {
		return s
	}

	return k.String()
}

// normalizeGo shapes a built-in handler's return value the same way script
// results are shaped. Non-finite floats become strings; any other value JSON
// cannot encode is an error.
func normalizeGo(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return strconv.FormatFloat(x, 'g', -1, 64), nil
		}
	case float32:
		if f := float64(x); math.IsInf(f, 0) || math.IsNaN(f) {
			return strconv.FormatFloat(f, 'g', -1, 32), nil
		}
	}

	if _, err := json.Marshal(v); err != nil {
		return nil, fmt.Errorf("result cannot be encoded as JSON: %w", err)
	}

	return v, nil
}
