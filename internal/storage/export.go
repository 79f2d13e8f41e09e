package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/isingsim/internal/observables"
)

type TimingData struct {
	L         int     `json:"l"`
	Tasks     int     `json:"tasks"`
	InternalS float64 `json:"internal_s"`
	ExternalS float64 `json:"external_s"`
}

type SeriesData struct {
	Energy        []float64 `json:"energy"`
	Magnetization []int     `json:"magnetization"`
	FinalState    []int8    `json:"final_state,omitempty"`
}

type ExportData struct {
	Metadata    RunMetadata             `json:"metadata"`
	Observables []observables.Aggregate `json:"observables"`
	Timings     []TimingData            `json:"timings,omitempty"`
	Series      *SeriesData             `json:"series,omitempty"`
}

// Export gathers everything stored for a run.
func (s *Store) Export(runID string) (*ExportData, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	tbl, err := s.LoadTable(runID)
	if err != nil {
		return nil, err
	}

	data := &ExportData{Metadata: *meta, Observables: tbl.Rows()}

	if meta.Kind == KindSweep {
		timings, err := s.LoadTimings(runID)
		if err != nil {
			return nil, err
		}
		for _, t := range timings {
			data.Timings = append(data.Timings, TimingData{
				L:         t.L,
				Tasks:     t.Tasks,
				InternalS: t.MeanInternal.Seconds(),
				ExternalS: t.External.Seconds(),
			})
		}
		return data, nil
	}

	series, err := s.LoadSeries(runID)
	if err != nil {
		return nil, err
	}
	data.Series = &SeriesData{Energy: series.Energy, Magnetization: series.Magnetization}
	if final, err := s.LoadFinalState(runID); err == nil {
		data.Series.FinalState = final
	}
	return data, nil
}

func WriteJSON(w io.Writer, data *ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func ExportJSONFile(path string, data *ExportData) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, data)
}
