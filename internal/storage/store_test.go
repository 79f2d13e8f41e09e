package storage

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/san-kum/isingsim/internal/ising"
	"github.com/san-kum/isingsim/internal/observables"
	"github.com/san-kum/isingsim/internal/sweep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	st := New(dir)
	require.NoError(t, st.Init())
	return st, dir
}

func sampleRun() *Run {
	return &Run{
		Meta: RunMetadata{
			Name:         "single",
			Seed:         42,
			J:            1,
			Sizes:        []int{2},
			Temperatures: []float64{2.5},
			Steps:        3,
			Start:        "ordered",
		},
		Series: ising.Series{
			Temperature:   2.5,
			Energy:        []float64{-8, -8, 0, -8},
			Magnetization: []int{4, 4, 2, 4},
			Accepted:      2,
		},
		Final: ising.State{1, 1, 1, 1},
		Aggregate: observables.Aggregate{
			L: 2, T: 2.5, MeanEnergy: -6, MeanMagnetization: 3.5,
			HeatCapacity: 1.92, Susceptibility: 0.3, Acceptance: 2.0 / 3, Duration: 250 * time.Millisecond,
		},
	}
}

func TestStoreSaveRun(t *testing.T) {
	st, dir := newStore(t)

	runID, err := st.SaveRun(sampleRun())
	require.NoError(t, err)
	assert.NotEmpty(t, runID)
	assert.Contains(t, runID, "run_")

	for _, name := range []string{metadataFile, seriesFile, finalStateFile, observablesFile} {
		_, err := os.Stat(filepath.Join(dir, runID, name))
		assert.NoError(t, err, "%s not created", name)
	}

	meta, err := st.Load(runID)
	require.NoError(t, err)
	assert.Equal(t, KindRun, meta.Kind)
	assert.Equal(t, int64(42), meta.Seed)
	assert.Equal(t, []float64{2.5}, meta.Temperatures)
	assert.False(t, meta.Timestamp.IsZero())

	series, err := st.LoadSeries(runID)
	require.NoError(t, err)
	assert.Equal(t, []float64{-8, -8, 0, -8}, series.Energy)
	assert.Equal(t, []int{4, 4, 2, 4}, series.Magnetization)
	assert.Equal(t, 2.5, series.Temperature)

	final, err := st.LoadFinalState(runID)
	require.NoError(t, err)
	assert.Equal(t, ising.State{1, 1, 1, 1}, final)

	tbl, err := st.LoadTable(runID)
	require.NoError(t, err)
	agg, ok := tbl.Lookup(2, 2.5)
	require.True(t, ok)
	assert.Equal(t, -6.0, agg.MeanEnergy)
	assert.InDelta(t, 2.0/3, agg.Acceptance, 1e-12)
	assert.Equal(t, 250*time.Millisecond, agg.Duration)
}

func TestStoreSaveSweep(t *testing.T) {
	st, _ := newStore(t)

	tbl := observables.NewTable()
	tbl.Add(observables.Aggregate{L: 4, T: 1, MeanEnergy: -32, MeanMagnetization: 16})
	tbl.Add(observables.Aggregate{L: 4, T: 3, MeanEnergy: -10, HeatCapacity: 0.7})
	tbl.Add(observables.Aggregate{L: 8, T: 1, MeanEnergy: -128, Susceptibility: 0.01})

	timings := []sweep.SizeTiming{
		{L: 4, Tasks: 2, MeanInternal: 10 * time.Millisecond, External: 30 * time.Millisecond},
		{L: 8, Tasks: 1, MeanInternal: 40 * time.Millisecond, External: 45 * time.Millisecond},
	}

	meta := RunMetadata{Name: "grid", Sizes: []int{4, 8}, Temperatures: []float64{1, 3}, StepScale: 1000, Workers: 2}
	runID, err := st.SaveSweep(meta, tbl, timings)
	require.NoError(t, err)

	loaded, err := st.LoadTable(runID)
	require.NoError(t, err)
	assert.Equal(t, tbl.Rows(), loaded.Rows())

	gotTimings, err := st.LoadTimings(runID)
	require.NoError(t, err)
	assert.Equal(t, timings, gotTimings)

	_, err = st.LoadSeries(runID)
	assert.Error(t, err)
}

func TestStoreSaveSeries(t *testing.T) {
	st, dir := newStore(t)

	runID, err := st.SaveSweep(RunMetadata{Name: "grid"}, observables.NewTable(), nil)
	require.NoError(t, err)

	err = st.SaveSeries(runID, 8, ising.Series{Temperature: 2.25, Energy: []float64{-1}, Magnetization: []int{1}})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, runID, "series_L8_T2.25.csv"))
	assert.NoError(t, err)
}

func TestLoadFinalState_RejectsOutOfRangeSpin(t *testing.T) {
	st, dir := newStore(t)

	runID, err := st.SaveRun(sampleRun())
	require.NoError(t, err)

	path := filepath.Join(dir, runID, finalStateFile)
	require.NoError(t, os.WriteFile(path, []byte("site,spin\n0,1\n1,257\n2,1\n3,-1\n"), 0644))

	_, err = st.LoadFinalState(runID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ising.ErrConfiguration)
	assert.Contains(t, err.Error(), "257")
}

func TestStoreList(t *testing.T) {
	st, _ := newStore(t)

	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)

	_, err = st.SaveRun(sampleRun())
	require.NoError(t, err)
	_, err = st.SaveSweep(RunMetadata{Name: "grid"}, observables.NewTable(), nil)
	require.NoError(t, err)

	runs, err = st.List()
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestStoreList_MissingDir(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "absent"))
	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestExport(t *testing.T) {
	st, _ := newStore(t)

	runID, err := st.SaveRun(sampleRun())
	require.NoError(t, err)

	data, err := st.Export(runID)
	require.NoError(t, err)
	require.NotNil(t, data.Series)
	assert.Len(t, data.Series.Energy, 4)
	assert.Equal(t, []int8{1, 1, 1, 1}, data.Series.FinalState)
	assert.Len(t, data.Observables, 1)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, data))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "metadata")
	assert.Contains(t, decoded, "series")
}

func TestExportSweep(t *testing.T) {
	st, dir := newStore(t)

	timings := []sweep.SizeTiming{{L: 4, Tasks: 1, MeanInternal: time.Second, External: 2 * time.Second}}
	runID, err := st.SaveSweep(RunMetadata{Name: "grid"}, observables.NewTable(), timings)
	require.NoError(t, err)

	data, err := st.Export(runID)
	require.NoError(t, err)
	assert.Nil(t, data.Series)
	require.Len(t, data.Timings, 1)
	assert.Equal(t, 2.0, data.Timings[0].ExternalS)

	path := filepath.Join(dir, "export.json")
	require.NoError(t, ExportJSONFile(path, data))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
