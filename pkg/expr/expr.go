package expr

import "fmt"

// Program is a compiled expression, safe for concurrent evaluation.
type Program struct {
	src  string
	root node
}

// Compile parses src into a reusable Program.
func Compile(src string) (*Program, error) {
	root, err := parse(src)
	if err != nil {
		return nil, err
	}
	return &Program{src: src, root: root}, nil
}

// Source returns the expression text the program was compiled from.
func (p *Program) Source() string {
	return p.src
}

// Eval evaluates the program against env. Numbers in the result are float64.
func (p *Program) Eval(env map[string]any) (any, error) {
	if env == nil {
		env = map[string]any{}
	}
	return p.root.eval(env)
}

// EvalBool evaluates the program and requires a boolean result.
func (p *Program) EvalBool(env map[string]any) (bool, error) {
	v, err := p.Eval(env)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, evalErrorf("expression %q produced %T, want bool", p.src, v)
	}
	return b, nil
}

// Eval compiles and evaluates src in one call.
func Eval(src string, env map[string]any) (any, error) {
	p, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return p.Eval(env)
}

// EvalBool compiles src and evaluates it as a condition.
func EvalBool(src string, env map[string]any) (bool, error) {
	p, err := Compile(src)
	if err != nil {
		return false, err
	}
	return p.EvalBool(env)
}

func (p *Program) String() string {
	return fmt.Sprintf("expr(%s)", p.src)
}
