package export

import (
	"fmt"
	"math"
	"strings"
)

// Point is one sample of a curve.
type Point struct{ X, Y float64 }

// Curve is a labeled line, e.g. one lattice size of an observable vs T.
type Curve struct {
	Label  string
	Points []Point
}

var palette = []string{"#00ccff", "#ff4488", "#00ff88", "#ffaa00", "#aa66ff", "#ff6633", "#66ffee", "#dddd44"}

// LatticeToSVG renders an L×L spin grid, up spins light and down spins dark.
func LatticeToSVG(grid [][]int8, cell float64) string {
	if len(grid) == 0 {
		return ""
	}

	rows, cols := len(grid), len(grid[0])
	width := float64(cols) * cell
	height := float64(rows) * cell

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g fill="#e8e8f0">
`, width, height, width, height))

	for r, row := range grid {
		for c, spin := range row {
			if spin <= 0 {
				continue
			}
			sb.WriteString(fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f"/>
`, float64(c)*cell, float64(r)*cell, cell, cell))
		}
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// CurvesToSVG plots curves on shared axes with a 10% margin around their bounds.
func CurvesToSVG(curves []Curve, width, height int) string {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, c := range curves {
		for _, p := range c.Points {
			minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
			minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		}
	}
	if math.IsInf(minX, 1) {
		return ""
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	for i, c := range curves {
		if len(c.Points) == 0 {
			continue
		}
		color := palette[i%len(palette)]
		sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5" d="M`, color))
		for j, p := range c.Points {
			x := (p.X - minX) / rangeX * float64(width)
			y := float64(height) - (p.Y-minY)/rangeY*float64(height)
			if j == 0 {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
			}
		}
		sb.WriteString("\"/>\n")
		if c.Label != "" {
			sb.WriteString(fmt.Sprintf(`<text x="10" y="%d" fill="%s" font-family="monospace" font-size="12">%s</text>
`, 18+14*i, color, c.Label))
		}
	}

	sb.WriteString("</svg>")
	return sb.String()
}
