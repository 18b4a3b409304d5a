package expr

import (
	"math"
	"reflect"
	"strings"
)

func (n *literal) eval(map[string]any) (any, error) {
	return n.value, nil
}

func (n *ident) eval(env map[string]any) (any, error) {
	v, ok := env[n.name]
	if !ok {
		return nil, evalErrorf("unknown identifier %q", n.name)
	}
	return normalize(v), nil
}

// Missing fields resolve to nil so optional context keys can be tested.
func (n *member) eval(env map[string]any) (any, error) {
	obj, err := n.object.eval(env)
	if err != nil {
		return nil, err
	}
	return field(obj, n.name)
}

func (n *index) eval(env map[string]any) (any, error) {
	obj, err := n.object.eval(env)
	if err != nil {
		return nil, err
	}
	key, err := n.key.eval(env)
	if err != nil {
		return nil, err
	}
	switch k := key.(type) {
	case string:
		return field(obj, k)
	case float64:
		return element(obj, k)
	}
	return nil, evalErrorf("invalid index of type %T", key)
}

func (n *listLit) eval(env map[string]any) (any, error) {
	out := make([]any, len(n.elems))
	for i, el := range n.elems {
		v, err := el.eval(env)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (n *unary) eval(env map[string]any) (any, error) {
	x, err := n.x.eval(env)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "!":
		b, ok := x.(bool)
		if !ok {
			return nil, evalErrorf("operator ! requires a boolean, got %T", x)
		}
		return !b, nil
	case "-":
		f, ok := x.(float64)
		if !ok {
			return nil, evalErrorf("operator - requires a number, got %T", x)
		}
		return -f, nil
	}
	return nil, evalErrorf("unknown unary operator %q", n.op)
}

func (n *logical) eval(env map[string]any) (any, error) {
	l, err := n.left.eval(env)
	if err != nil {
		return nil, err
	}
	lb, ok := l.(bool)
	if !ok {
		return nil, evalErrorf("operator %s requires booleans, got %T", n.op, l)
	}
	if n.op == "&&" && !lb {
		return false, nil
	}
	if n.op == "||" && lb {
		return true, nil
	}
	r, err := n.right.eval(env)
	if err != nil {
		return nil, err
	}
	rb, ok := r.(bool)
	if !ok {
		return nil, evalErrorf("operator %s requires booleans, got %T", n.op, r)
	}
	return rb, nil
}

func (n *binary) eval(env map[string]any) (any, error) {
	l, err := n.left.eval(env)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(env)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "==":
		return Equal(l, r), nil
	case "!=":
		return !Equal(l, r), nil
	case "in":
		return contains(r, l)
	case "<", "<=", ">", ">=":
		return compare(n.op, l, r)
	case "+":
		if ls, ok := l.(string); ok {
			if rs, ok := r.(string); ok {
				return ls + rs, nil
			}
		}
	}

	lf, lok := l.(float64)
	rf, rok := r.(float64)
	if !lok || !rok {
		return nil, evalErrorf("operator %s requires numbers, got %T and %T", n.op, l, r)
	}
	switch n.op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, evalErrorf("division by zero")
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, evalErrorf("modulo by zero")
		}
		return math.Mod(lf, rf), nil
	}
	return nil, evalErrorf("unknown operator %q", n.op)
}

func compare(op string, l, r any) (bool, error) {
	var c int
	switch lv := l.(type) {
	case float64:
		rv, ok := r.(float64)
		if !ok {
			return false, evalErrorf("cannot compare number with %T", r)
		}
		switch {
		case lv < rv:
			c = -1
		case lv > rv:
			c = 1
		}
	case string:
		rv, ok := r.(string)
		if !ok {
			return false, evalErrorf("cannot compare string with %T", r)
		}
		c = strings.Compare(lv, rv)
	default:
		return false, evalErrorf("operator %s requires numbers or strings, got %T", op, l)
	}
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	default:
		return c >= 0, nil
	}
}

func contains(container, item any) (bool, error) {
	switch c := container.(type) {
	case []any:
		for _, el := range c {
			if Equal(el, item) {
				return true, nil
			}
		}
		return false, nil
	case map[string]any:
		key, ok := item.(string)
		if !ok {
			return false, evalErrorf("map membership requires a string key, got %T", item)
		}
		_, found := c[key]
		return found, nil
	case string:
		sub, ok := item.(string)
		if !ok {
			return false, evalErrorf("substring membership requires a string, got %T", item)
		}
		return strings.Contains(c, sub), nil
	case nil:
		return false, nil
	}
	return false, evalErrorf("operator in requires a list, map or string, got %T", container)
}

func field(obj any, name string) (any, error) {
	switch o := obj.(type) {
	case map[string]any:
		return normalize(o[name]), nil
	case nil:
		return nil, evalErrorf("cannot read field %q of null", name)
	}
	return nil, evalErrorf("cannot read field %q of %T", name, obj)
}

func element(obj any, idx float64) (any, error) {
	list, ok := obj.([]any)
	if !ok {
		return nil, evalErrorf("cannot index %T with a number", obj)
	}
	i := int(idx)
	if float64(i) != idx || i < 0 || i >= len(list) {
		return nil, evalErrorf("index %v out of range", idx)
	}
	return normalize(list[i]), nil
}

// normalize folds numeric kinds into float64 and generic maps/slices into
// map[string]any and []any so the evaluator deals with a closed set of types.
func normalize(v any) any {
	switch x := v.(type) {
	case nil, bool, string, float64, map[string]any, []any:
		return v
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case int32:
		return float64(x)
	case float32:
		return float64(x)
	case uint:
		return float64(x)
	case uint64:
		return float64(x)
	case uint32:
		return float64(x)
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(x))
		for k, s := range x {
			out[k] = s
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out
	case reflect.Int8, reflect.Int16:
		return float64(rv.Int())
	case reflect.Uint8, reflect.Uint16:
		return float64(rv.Uint())
	}
	return v
}

// Equal reports whether two values are equal under the expression language's
// typing rules: numbers compare by value regardless of their Go type, and
// lists and maps compare element-wise.
func Equal(a, b any) bool {
	a, b = normalize(a), normalize(b)
	switch av := a.(type) {
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, found := bv[k]
			if !found || !Equal(v, w) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}
