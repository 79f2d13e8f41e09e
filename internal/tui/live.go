package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/isingsim/internal/ising"
	"github.com/san-kum/isingsim/internal/sweep"
)

const (
	frameInterval = 50 * time.Millisecond
	historyLen    = 60
	tempStep      = 0.1
	minTemp       = 0.1
	maxRows       = 32
	maxCols       = 64
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
)

// Model drives one Metropolis chain, a configurable number of sweeps per
// frame, and renders the lattice with its running observables.
type Model struct {
	task     sweep.Task
	chain    *ising.Chain
	lattice  *ising.Lattice
	perFrame int
	paused   bool
	history  []float64
	err      error
}

// New builds the chain for task. perFrame < 1 means one sweep per frame.
func New(task sweep.Task, perFrame int) (Model, error) {
	chain, err := task.Chain()
	if err != nil {
		return Model{}, err
	}
	lat, err := ising.NewLattice(task.L)
	if err != nil {
		return Model{}, err
	}
	if perFrame < 1 {
		perFrame = 1
	}
	return Model{
		task:     task,
		chain:    chain,
		lattice:  lat,
		perFrame: perFrame,
		history:  make([]float64, 0, historyLen),
	}, nil
}

// Run starts the interactive program and blocks until the user quits.
func Run(task sweep.Task, perFrame int) error {
	m, err := New(task, perFrame)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

type tickMsg struct{}

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tickMsg:
		if !m.paused {
			m.advance()
		}
		return m, tick()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case " ":
		m.paused = !m.paused
	case "s":
		if m.paused {
			m.advance()
		}
	case "+", "=", "up":
		m.setTemperature(m.chain.Temperature() + tempStep)
	case "-", "down":
		m.setTemperature(m.chain.Temperature() - tempStep)
	case "r":
		if c, err := m.task.Chain(); err == nil {
			m.chain = c
			m.history = m.history[:0]
		} else {
			m.err = err
		}
	}
	return m, nil
}

func (m *Model) setTemperature(t float64) {
	if t < minTemp {
		t = minTemp
	}
	m.task.T = t
	m.err = m.chain.SetTemperature(t)
}

func (m *Model) advance() {
	for i := 0; i < m.perFrame; i++ {
		m.chain.Sweep()
	}
	m.history = append(m.history, m.magnetizationPerSite())
	if len(m.history) > historyLen {
		m.history = m.history[1:]
	}
}

func (m Model) magnetizationPerSite() float64 {
	return float64(m.chain.Magnetization()) / float64(m.lattice.Sites())
}

func (m Model) View() string {
	var b strings.Builder

	status := green.Render("running")
	if m.paused {
		status = yellow.Render("paused")
	}
	b.WriteString(cyan.Render("ising") + dim.Render(fmt.Sprintf("  L=%d J=%g h=%g  ", m.task.L, m.task.J, m.task.H)) + status + "\n\n")

	b.WriteString(m.renderLattice())
	b.WriteString("\n")

	n := float64(m.lattice.Sites())
	acc := 0.0
	if m.chain.Steps() > 0 {
		acc = float64(m.chain.Accepted()) / float64(m.chain.Steps())
	}
	b.WriteString(white.Render(fmt.Sprintf("T=%.3f  E/N=%+.4f  M/N=%+.4f  acc=%.3f  sweeps=%d",
		m.chain.Temperature(), m.chain.Energy()/n, m.magnetizationPerSite(), acc, m.chain.Steps()/m.lattice.Sites())))
	b.WriteString("\n\n")

	if len(m.history) > 1 {
		b.WriteString(magenta.Render(asciigraph.Plot(m.history,
			asciigraph.Height(6),
			asciigraph.Width(historyLen),
			asciigraph.LowerBound(-1),
			asciigraph.UpperBound(1),
			asciigraph.Caption("M/N"),
		)))
		b.WriteString("\n\n")
	}

	if m.err != nil {
		b.WriteString(yellow.Render(m.err.Error()) + "\n")
	}
	b.WriteString(dim.Render("space pause  s step  +/- temperature  r reset  q quit"))
	return b.String()
}

// renderLattice draws up spins as blocks; large lattices are cropped to the
// top-left corner.
func (m Model) renderLattice() string {
	grid, err := m.lattice.Reshape(m.chain.Spins())
	if err != nil {
		return ""
	}

	var b strings.Builder
	for r, row := range grid {
		if r >= maxRows {
			break
		}
		for c, spin := range row {
			if c >= maxCols {
				break
			}
			if spin == ising.Up {
				b.WriteRune('█')
			} else {
				b.WriteRune('·')
			}
		}
		b.WriteString("\n")
	}
	return cyan.Render(b.String())
}
