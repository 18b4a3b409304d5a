// Package decision implements rule evaluation, greedy goal planning,
// reward-driven learning and fact-based inference for agents.
//
// The Framework keeps no state of its own. Past decisions, plans, experiences
// and knowledge are written to and read back from the State Store as memories,
// so two frameworks sharing a store share what they have learned.
package decision
