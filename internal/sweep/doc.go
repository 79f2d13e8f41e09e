// Package sweep runs independent Ising simulations in parallel.
//
// A [Grid] expands into an ordered list of [Task] values; a [Pool] of fixed
// capacity executes them, each task building its own lattice, spin state and
// random source, and returns one [Outcome] per task in submission order
// regardless of completion order. A failing task is reported as a
// [TaskError] in its own slot and never affects its siblings.
package sweep
