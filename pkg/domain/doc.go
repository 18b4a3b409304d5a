/*
Package domain contains the core domain models of the Arbiter orchestration core.

It defines the workflow lifecycle, the decision framework's value types and the
records exchanged with the State Store. This package is kept pure and free of
external dependencies like I/O or persistence, following Hexagonal Architecture
principles.

# Key Entities

  - Workflow: An ordered sequence of Steps executed for one agent within one session.
  - Step: One unit of work bound to a named action handler.
  - Rule, Decision: Inputs and outcome of rule evaluation.
  - Action, Plan: Planner operators and the sequence found toward a goal state.
  - Memory, Session, Execution: Records persisted by the State Store.
*/
package domain
