package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/san-kum/odesweep/internal/engine"
)

const (
	SteadyFile       = "steady.csv"
	StatusFile       = "status.csv"
	TrajectoriesFile = "trajectories.csv"
	MetadataFile     = "metadata.json"
	ResultsFile      = "results.json"
)

type Metadata struct {
	Model      string    `json:"model"`
	Species    []string  `json:"species"`
	Params     []string  `json:"params"`
	Samples    int       `json:"samples"`
	TimePoints int       `json:"time_points"`
	Times      []float64 `json:"times"`
	Seed       uint64    `json:"seed,omitempty"`
	Failed     int       `json:"failed"`
	Elapsed    string    `json:"elapsed"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewMetadata describes res for the named model.
func NewMetadata(model string, species, params []string, res *engine.Result) Metadata {
	return Metadata{
		Model:      model,
		Species:    species,
		Params:     params,
		Samples:    res.Samples,
		TimePoints: res.TimePoints,
		Times:      res.Times,
		Seed:       res.Seed,
		Failed:     len(res.Failed()),
		Elapsed:    res.Elapsed.String(),
		Timestamp:  time.Now(),
	}
}

type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) Dir() string { return w.dir }

func (w *Writer) Init() error {
	return os.MkdirAll(w.dir, 0755)
}

// Write stores metadata, steady states, status flags and, when present,
// trajectories as separate files.
func (w *Writer) Write(res *engine.Result, meta Metadata) error {
	if err := w.Init(); err != nil {
		return err
	}
	if err := w.writeMetadata(meta); err != nil {
		return err
	}
	if err := w.writeCSV(SteadyFile, func(cw *csv.Writer) error {
		return writeSteady(cw, res, meta.Species)
	}); err != nil {
		return err
	}
	if err := w.writeCSV(StatusFile, func(cw *csv.Writer) error {
		return writeStatus(cw, res)
	}); err != nil {
		return err
	}
	if res.Trajectories == nil {
		return nil
	}
	return w.writeCSV(TrajectoriesFile, func(cw *csv.Writer) error {
		return writeTrajectories(cw, res, meta.Species)
	})
}

// WriteJSON stores the whole result as one JSON document.
func (w *Writer) WriteJSON(res *engine.Result, meta Metadata) error {
	if err := w.Init(); err != nil {
		return err
	}
	file, err := os.Create(filepath.Join(w.dir, ResultsFile))
	if err != nil {
		return err
	}
	defer file.Close()
	return EncodeJSON(file, res, meta)
}

type sampleJSON struct {
	Index      int         `json:"index"`
	Status     string      `json:"status"`
	Flag       int         `json:"flag"`
	Attempts   int         `json:"attempts"`
	Steady     []float64   `json:"steady"`
	Trajectory [][]float64 `json:"trajectory,omitempty"`
}

type resultJSON struct {
	Metadata
	Results []sampleJSON `json:"results"`
}

func EncodeJSON(out io.Writer, res *engine.Result, meta Metadata) error {
	doc := resultJSON{Metadata: meta, Results: make([]sampleJSON, res.Samples)}
	for k := range doc.Results {
		doc.Results[k] = sampleJSON{
			Index:      k,
			Status:     res.Status[k].String(),
			Flag:       int(res.Status[k]),
			Attempts:   res.Attempts[k],
			Steady:     res.SteadyState(k),
			Trajectory: res.Trajectory(k),
		}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func (w *Writer) writeMetadata(meta Metadata) error {
	file, err := os.Create(filepath.Join(w.dir, MetadataFile))
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func (w *Writer) writeCSV(name string, fill func(*csv.Writer) error) error {
	file, err := os.Create(filepath.Join(w.dir, name))
	if err != nil {
		return err
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	if err := fill(cw); err != nil {
		return fmt.Errorf("export: %s: %w", name, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: %s: %w", name, err)
	}
	return file.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeSteady(cw *csv.Writer, res *engine.Result, species []string) error {
	if err := cw.Write(append([]string{"sample"}, species...)); err != nil {
		return err
	}
	row := make([]string, 1+res.Species)
	for k := 0; k < res.Samples; k++ {
		row[0] = strconv.Itoa(k)
		for j, v := range res.SteadyState(k) {
			row[1+j] = formatFloat(v)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func writeStatus(cw *csv.Writer, res *engine.Result) error {
	if err := cw.Write([]string{"sample", "flag", "status", "attempts"}); err != nil {
		return err
	}
	for k, f := range res.Status {
		row := []string{strconv.Itoa(k), strconv.Itoa(int(f)), f.String(), strconv.Itoa(res.Attempts[k])}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func writeTrajectories(cw *csv.Writer, res *engine.Result, species []string) error {
	header := append([]string{"sample", "time"}, species...)
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, 2+res.Species)
	for k := 0; k < res.Samples; k++ {
		row[0] = strconv.Itoa(k)
		for ti, state := range res.Trajectory(k) {
			row[1] = formatFloat(res.Times[ti])
			for j, v := range state {
				row[2+j] = formatFloat(v)
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	return nil
}
