// Package orchestrator implements the leader of a research project.
//
// The leader plans each phase, hands the plan to the lifecycle manager,
// cross-validates what comes back, and persists every step to the
// project's memory document. It never performs a task itself. After the
// last phase it scores the final report and decides whether the report
// clears the quality gate.
package orchestrator
