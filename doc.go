/*
Package arbiter runs multi-step agent workflows and makes rule-based decisions on top of a shared State Store.

Two components do the work. The Workflow Engine executes an ordered list of steps, each step naming an
action handler from a registry, and keeps pause, resume and cancel responsive while a handler is in flight.
The Decision Framework evaluates prioritized rules against a context, plans action sequences toward a goal,
learns from rewarded experiences and draws inferences from facts. Everything either component remembers
lives in the State Store as sessions, memories and execution records.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/arbiter"
		"github.com/aretw0/arbiter/pkg/domain"
		"github.com/aretw0/arbiter/pkg/dsl"
	)

	func main() {
		arb, err := arbiter.New()
		if err != nil {
			log.Fatal(err)
		}
		defer arb.Close()

		b := dsl.New()
		b.Add("verify").Do("verify_content").With("content", "Breaking news!").
			Then("decide").Do("make_decision").With("condition", "verify.confidence > 0.5")

		ctx := context.Background()
		res, err := arb.Run(ctx, "agent-1", "moderation", domain.WorkflowConfig{}, b.MustBuild())
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(res.Status, res.StepsExecuted)
	}

# Persistence

The default store is in-process. Use WithStore with pkg/adapters/redis or pkg/adapters/file for state that
outlives the process, and pkg/persistence/middleware to add retries and logging around any store.
*/
package arbiter
