// Package research defines the domain types shared by the phase pipeline:
// executor types and the static phase table, executor results, the Tier 2
// validation envelope and the Tier 3 score set.
//
// The package has no behavior beyond small helpers so that the memory,
// quality, lifecycle and orchestrator packages can depend on it without
// depending on each other.
package research
