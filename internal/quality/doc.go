// Package quality implements the three validation tiers of the phase
// pipeline.
//
// Tier 1, SelfChecker, annotates a single executor output with warnings
// about citation count, inverted numeric ranges and missing source
// attribution. It never rejects output.
//
// Tier 2, CrossValidator, compares the outputs of one phase with each other
// and reports numeric and claim contradictions in a ValidationEnvelope.
//
// Tier 3, Scorer, computes the six IAM-SDAI dimension scores of the final
// report and the pass/fail verdict against a threshold.
//
// All three are deterministic heuristics over text. Their constants are
// exported as defaults and can be overridden through options.
package quality
