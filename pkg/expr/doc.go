/*
Package expr implements the sandboxed expression language used for rule
conditions, fact patterns and data transforms.

Expressions are parsed into an AST and interpreted; there is no function call
syntax and no way to reach Go code from an expression.

	score > 0.7 && user.role in ["admin", "owner"]
	input.first + " " + input.last
	not (attempts >= 3)

Numbers are float64. Logical operators require booleans, ordering comparisons
require two numbers or two strings, and referencing an unknown identifier is
an error. Reading a missing field of a map yields null.
*/
package expr
