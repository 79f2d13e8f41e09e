package observables

import (
	"fmt"
	"sort"
)

// Quantity selects one column of a Table.
type Quantity string

const (
	QuantityEnergy         Quantity = "energy"
	QuantityMagnetization  Quantity = "magnetization"
	QuantityHeatCapacity   Quantity = "heat_capacity"
	QuantitySusceptibility Quantity = "susceptibility"
	QuantityAcceptance     Quantity = "acceptance"
	QuantityDuration       Quantity = "duration"
)

var Quantities = []Quantity{
	QuantityEnergy,
	QuantityMagnetization,
	QuantityHeatCapacity,
	QuantitySusceptibility,
	QuantityAcceptance,
	QuantityDuration,
}

func ParseQuantity(name string) (Quantity, error) {
	for _, q := range Quantities {
		if string(q) == name {
			return q, nil
		}
	}
	return "", fmt.Errorf("unknown quantity: %s (available: %v)", name, Quantities)
}

func (a Aggregate) Value(q Quantity) float64 {
	switch q {
	case QuantityEnergy:
		return a.MeanEnergy
	case QuantityMagnetization:
		return a.MeanMagnetization
	case QuantityHeatCapacity:
		return a.HeatCapacity
	case QuantitySusceptibility:
		return a.Susceptibility
	case QuantityAcceptance:
		return a.Acceptance
	case QuantityDuration:
		return a.Duration.Seconds()
	}
	return 0
}

type key struct {
	l int
	t float64
}

// Table collects aggregates keyed by (L, T). Adding an existing key replaces it.
type Table struct {
	rows map[key]Aggregate
}

func NewTable() *Table {
	return &Table{rows: make(map[key]Aggregate)}
}

func (t *Table) Add(a Aggregate) {
	t.rows[key{a.L, a.T}] = a
}

func (t *Table) Len() int { return len(t.rows) }

func (t *Table) Lookup(l int, temp float64) (Aggregate, bool) {
	a, ok := t.rows[key{l, temp}]
	return a, ok
}

// Rows returns every aggregate ordered by L, then T.
func (t *Table) Rows() []Aggregate {
	rows := make([]Aggregate, 0, len(t.rows))
	for _, a := range t.rows {
		rows = append(rows, a)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].L != rows[j].L {
			return rows[i].L < rows[j].L
		}
		return rows[i].T < rows[j].T
	})
	return rows
}

func (t *Table) Sizes() []int {
	seen := make(map[int]bool)
	sizes := make([]int, 0)
	for k := range t.rows {
		if !seen[k.l] {
			seen[k.l] = true
			sizes = append(sizes, k.l)
		}
	}
	sort.Ints(sizes)
	return sizes
}

func (t *Table) Temperatures(l int) []float64 {
	temps := make([]float64, 0)
	for k := range t.rows {
		if k.l == l {
			temps = append(temps, k.t)
		}
	}
	sort.Float64s(temps)
	return temps
}

// Column returns q for lattice size l in ascending temperature order.
func (t *Table) Column(l int, q Quantity) []float64 {
	temps := t.Temperatures(l)
	col := make([]float64, len(temps))
	for i, temp := range temps {
		col[i] = t.rows[key{l, temp}].Value(q)
	}
	return col
}
