package ising

import "fmt"

// MinSize is the smallest side length with a defined periodic 4-neighborhood.
const MinSize = 2

// Neighbor slots within a site's entry of the neighbor table.
const (
	East = iota
	South
	West
	North
)

// Lattice is an L×L periodic square lattice with a precomputed neighbor table.
// It is never mutated after construction.
type Lattice struct {
	l   int
	n   int
	nbr [][4]int
}

// NewLattice builds the neighbor table for an l×l periodic lattice.
func NewLattice(l int) (*Lattice, error) {
	if l < MinSize {
		return nil, fmt.Errorf("lattice size must be at least %d, got %d: %w", MinSize, l, ErrConfiguration)
	}

	n := l * l
	nbr := make([][4]int, n)
	for i := 0; i < n; i++ {
		row, col := i/l, i%l
		nbr[i] = [4]int{
			East:  row*l + (col+1)%l,
			South: (i + l) % n,
			West:  row*l + (col-1+l)%l,
			North: (i - l + n) % n,
		}
	}

	return &Lattice{l: l, n: n, nbr: nbr}, nil
}

func (lat *Lattice) Size() int  { return lat.l }
func (lat *Lattice) Sites() int { return lat.n }

// Neighbors returns the east, south, west and north neighbors of site i,
// where south is the next row.
func (lat *Lattice) Neighbors(i int) [4]int { return lat.nbr[i] }

// Degenerate reports whether wraparound makes some neighbors of a site
// coincide (L=2: east and west, north and south are the same site).
func (lat *Lattice) Degenerate() bool { return lat.l < 3 }
