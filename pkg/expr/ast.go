package expr

import "fmt"

// SyntaxError reports a malformed expression.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d: %s", e.Pos, e.Msg)
}

// EvalError reports a failure while evaluating a well-formed expression.
type EvalError struct {
	Msg string
}

func (e *EvalError) Error() string {
	return "eval error: " + e.Msg
}

func evalErrorf(format string, args ...any) error {
	return &EvalError{Msg: fmt.Sprintf(format, args...)}
}

type node interface {
	eval(env map[string]any) (any, error)
}

type literal struct {
	value any
}

type ident struct {
	name string
}

type member struct {
	object node
	name   string
}

type index struct {
	object node
	key    node
}

type listLit struct {
	elems []node
}

type unary struct {
	op string
	x  node
}

type binary struct {
	op          string
	left, right node
}

// logical nodes short-circuit, so they are kept apart from binary.
type logical struct {
	op          string
	left, right node
}
