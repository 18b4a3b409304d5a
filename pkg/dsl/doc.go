/*
Package dsl provides a fluent builder for workflow steps and rule sets.

It allows developers to define workflows in Go instead of YAML or JSON files,
which is useful for dynamic workflows, unit tests and IDE type-checking.

Example usage:

	steps := dsl.New()
	steps.Add("verify").
		Do("verify_content").
		Ref("content", "input.body").
		Then("decide").
		Do("make_decision").
		With("condition", "verify.authentic == true").
		ContinueOnError()

	defs, err := steps.Build()
	// ... engine.DefineSteps(ctx, workflowID, defs)

	rules := dsl.NewRules().
		When("high", "score > 0.7", "approve", 10).
		Otherwise("review").
		Build()
*/
package dsl
