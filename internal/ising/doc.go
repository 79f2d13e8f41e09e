// Package ising provides the Metropolis sampling engine for the 2D Ising model.
//
// The package defines the lattice, spin configuration and Monte Carlo
// primitives:
//
//   - [Lattice]: periodic L×L topology with a precomputed neighbor table
//   - [State]: row-major ±1 spin configuration
//   - [Engine]: energy, magnetization and flip cost for a coupling J and field h
//   - [Chain]: a single Metropolis chain at one temperature
//   - [Result]: per-temperature energy/magnetization series of a run
//
// # Example
//
//	lat, _ := ising.NewLattice(20)
//	s0, _ := lat.Ordered(ising.Up)
//	eng := ising.NewEngine(lat, 1.0, 0.0)
//	res, _ := eng.Simulate(s0, []float64{2.27}, 20000, 42)
//
// # Thread Safety
//
// A Lattice is immutable and may be shared by concurrent simulations.
// Chains and States are owned by a single goroutine.
package ising
