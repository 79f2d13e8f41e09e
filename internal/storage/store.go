package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/isingsim/internal/ising"
	"github.com/san-kum/isingsim/internal/observables"
	"github.com/san-kum/isingsim/internal/sweep"
)

const (
	metadataFile    = "metadata.json"
	observablesFile = "observables.csv"
	timingsFile     = "timings.csv"
	seriesFile      = "series.csv"
	finalStateFile  = "final_state.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type Kind string

const (
	KindRun   Kind = "run"
	KindSweep Kind = "sweep"
)

type RunMetadata struct {
	ID           string        `json:"id"`
	Kind         Kind          `json:"kind"`
	Name         string        `json:"name"`
	Timestamp    time.Time     `json:"timestamp"`
	Seed         int64         `json:"seed"`
	J            float64       `json:"j"`
	H            float64       `json:"h"`
	Sizes        []int         `json:"sizes"`
	Temperatures []float64     `json:"temperatures"`
	Steps        int           `json:"steps,omitempty"`
	StepScale    int           `json:"step_scale,omitempty"`
	Start        string        `json:"start"`
	Workers      int           `json:"workers,omitempty"`
	Elapsed      time.Duration `json:"elapsed"`
	Failures     []string      `json:"failures,omitempty"`
}

// Run is everything persisted for a single (L, T) simulation.
type Run struct {
	Meta      RunMetadata
	Series    ising.Series
	Final     ising.State
	Aggregate observables.Aggregate
}

func newID(kind Kind) string {
	return fmt.Sprintf("%s_%s", kind, uuid.NewString()[:8])
}

func (s *Store) create(meta *RunMetadata) (string, error) {
	meta.ID = newID(meta.Kind)
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}
	return runDir, nil
}

// SaveRun stores a single simulation: metadata, its step series, the final
// configuration and its observables row.
func (s *Store) SaveRun(run *Run) (string, error) {
	run.Meta.Kind = KindRun
	runDir, err := s.create(&run.Meta)
	if err != nil {
		return "", err
	}

	if err := writeSeries(filepath.Join(runDir, seriesFile), run.Series); err != nil {
		return "", err
	}
	if len(run.Final) > 0 {
		if err := writeState(filepath.Join(runDir, finalStateFile), run.Final); err != nil {
			return "", err
		}
	}

	tbl := observables.NewTable()
	tbl.Add(run.Aggregate)
	if err := writeTable(filepath.Join(runDir, observablesFile), tbl); err != nil {
		return "", err
	}
	return run.Meta.ID, nil
}

// SaveSweep stores the observables table and per-size timings of a sweep.
func (s *Store) SaveSweep(meta RunMetadata, tbl *observables.Table, timings []sweep.SizeTiming) (string, error) {
	meta.Kind = KindSweep
	runDir, err := s.create(&meta)
	if err != nil {
		return "", err
	}

	if err := writeTable(filepath.Join(runDir, observablesFile), tbl); err != nil {
		return "", err
	}
	if err := writeTimings(filepath.Join(runDir, timingsFile), timings); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// SaveSeries adds the raw series of one sweep point to an existing run.
func (s *Store) SaveSeries(runID string, l int, series ising.Series) error {
	name := fmt.Sprintf("series_L%d_T%s.csv", l, strconv.FormatFloat(series.Temperature, 'f', -1, 64))
	return writeSeries(filepath.Join(s.baseDir, runID, name), series)
}

func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func seconds(v float64) time.Duration {
	return time.Duration(math.Round(v * float64(time.Second)))
}

var tableHeader = []string{"L", "T", "mean_energy", "mean_magnetization", "heat_capacity", "susceptibility", "duration_s", "acceptance"}

func writeTable(path string, tbl *observables.Table) error {
	rows := make([][]string, 0, tbl.Len())
	for _, a := range tbl.Rows() {
		rows = append(rows, []string{
			strconv.Itoa(a.L),
			formatFloat(a.T),
			formatFloat(a.MeanEnergy),
			formatFloat(a.MeanMagnetization),
			formatFloat(a.HeatCapacity),
			formatFloat(a.Susceptibility),
			formatFloat(a.Duration.Seconds()),
			formatFloat(a.Acceptance),
		})
	}
	return writeCSV(path, tableHeader, rows)
}

func writeTimings(path string, timings []sweep.SizeTiming) error {
	rows := make([][]string, 0, len(timings))
	for _, t := range timings {
		rows = append(rows, []string{
			strconv.Itoa(t.L),
			strconv.Itoa(t.Tasks),
			formatFloat(t.MeanInternal.Seconds()),
			formatFloat(t.External.Seconds()),
		})
	}
	return writeCSV(path, []string{"L", "tasks", "internal_s", "external_s"}, rows)
}

func writeSeries(path string, series ising.Series) error {
	rows := make([][]string, 0, len(series.Energy))
	for i := range series.Energy {
		rows = append(rows, []string{
			strconv.Itoa(i),
			formatFloat(series.Energy[i]),
			strconv.Itoa(series.Magnetization[i]),
		})
	}
	return writeCSV(path, []string{"step", "energy", "magnetization"}, rows)
}

func writeState(path string, state ising.State) error {
	rows := make([][]string, 0, len(state))
	for i, v := range state {
		rows = append(rows, []string{strconv.Itoa(i), strconv.Itoa(int(v))})
	}
	return writeCSV(path, []string{"site", "spin"}, rows)
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) readCSV(runID, name string) ([][]string, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, name))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: missing header", name)
	}
	return records[1:], nil
}

func (s *Store) LoadTable(runID string) (*observables.Table, error) {
	records, err := s.readCSV(runID, observablesFile)
	if err != nil {
		return nil, err
	}

	tbl := observables.NewTable()
	for i, rec := range records {
		if len(rec) != len(tableHeader) {
			return nil, fmt.Errorf("%s row %d: expected %d fields, got %d", observablesFile, i+1, len(tableHeader), len(rec))
		}
		l, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", observablesFile, i+1, err)
		}
		vals := make([]float64, len(rec)-1)
		for j := range vals {
			if vals[j], err = strconv.ParseFloat(rec[j+1], 64); err != nil {
				return nil, fmt.Errorf("%s row %d: %w", observablesFile, i+1, err)
			}
		}
		tbl.Add(observables.Aggregate{
			L:                 l,
			T:                 vals[0],
			MeanEnergy:        vals[1],
			MeanMagnetization: vals[2],
			HeatCapacity:      vals[3],
			Susceptibility:    vals[4],
			Duration:          seconds(vals[5]),
			Acceptance:        vals[6],
		})
	}
	return tbl, nil
}

func (s *Store) LoadTimings(runID string) ([]sweep.SizeTiming, error) {
	records, err := s.readCSV(runID, timingsFile)
	if err != nil {
		return nil, err
	}

	timings := make([]sweep.SizeTiming, 0, len(records))
	for i, rec := range records {
		if len(rec) != 4 {
			return nil, fmt.Errorf("%s row %d: expected 4 fields, got %d", timingsFile, i+1, len(rec))
		}
		l, err1 := strconv.Atoi(rec[0])
		tasks, err2 := strconv.Atoi(rec[1])
		internal, err3 := strconv.ParseFloat(rec[2], 64)
		external, err4 := strconv.ParseFloat(rec[3], 64)
		for _, err := range []error{err1, err2, err3, err4} {
			if err != nil {
				return nil, fmt.Errorf("%s row %d: %w", timingsFile, i+1, err)
			}
		}
		timings = append(timings, sweep.SizeTiming{
			L:            l,
			Tasks:        tasks,
			MeanInternal: seconds(internal),
			External:     seconds(external),
		})
	}
	return timings, nil
}

// LoadSeries reads the step series of a single run.
func (s *Store) LoadSeries(runID string) (ising.Series, error) {
	records, err := s.readCSV(runID, seriesFile)
	if err != nil {
		return ising.Series{}, err
	}

	series := ising.Series{
		Energy:        make([]float64, 0, len(records)),
		Magnetization: make([]int, 0, len(records)),
	}
	for i, rec := range records {
		if len(rec) != 3 {
			return ising.Series{}, fmt.Errorf("%s row %d: expected 3 fields, got %d", seriesFile, i+1, len(rec))
		}
		e, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return ising.Series{}, fmt.Errorf("%s row %d: %w", seriesFile, i+1, err)
		}
		m, err := strconv.Atoi(rec[2])
		if err != nil {
			return ising.Series{}, fmt.Errorf("%s row %d: %w", seriesFile, i+1, err)
		}
		series.Energy = append(series.Energy, e)
		series.Magnetization = append(series.Magnetization, m)
	}

	if meta, err := s.Load(runID); err == nil && len(meta.Temperatures) == 1 {
		series.Temperature = meta.Temperatures[0]
	}
	return series, nil
}

func (s *Store) LoadFinalState(runID string) (ising.State, error) {
	records, err := s.readCSV(runID, finalStateFile)
	if err != nil {
		return nil, err
	}

	state := make(ising.State, len(records))
	for i, rec := range records {
		if len(rec) != 2 {
			return nil, fmt.Errorf("%s row %d: expected 2 fields, got %d", finalStateFile, i+1, len(rec))
		}
		v, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", finalStateFile, i+1, err)
		}
		if v != int(ising.Up) && v != int(ising.Down) {
			return nil, fmt.Errorf("%s row %d: spin %d: %w", finalStateFile, i+1, v, ising.ErrConfiguration)
		}
		state[i] = int8(v)
	}
	if err := state.Validate(len(state)); err != nil {
		return nil, err
	}
	return state, nil
}
