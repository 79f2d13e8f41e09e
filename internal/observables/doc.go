// Package observables reduces Metropolis step series into thermodynamic
// observables.
//
//   - [Mean]: arithmetic mean over a full series
//   - [HeatCapacity]: energy fluctuation (<E²>-<E>²)/(kB T²)
//   - [Susceptibility]: magnetization fluctuation (<M²>-<M>²)/(kB T)
//   - [Reduce]: all of the above for one (L, T) run
//   - [Table]: aggregates of a sweep keyed by (L, T)
//
// Reductions use the whole series as produced by the engine; no burn-in is
// discarded.
package observables
