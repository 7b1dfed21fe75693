package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/san-kum/odesweep/internal/layout"
)

// ReadMatrix reads a CSV file of samples × values. A first row that does
// not parse as numbers is returned as the header.
func ReadMatrix(path string) (layout.Matrix, []string, error) {
	records, err := readRecords(path)
	if err != nil {
		return layout.Matrix{}, nil, err
	}
	if len(records) == 0 {
		return layout.Matrix{}, nil, nil
	}

	var header []string
	if _, err := parseRow(records[0]); err != nil {
		header = records[0]
		records = records[1:]
	}

	rows := make([][]float64, 0, len(records))
	for i, rec := range records {
		row, err := parseRow(rec)
		if err != nil {
			return layout.Matrix{}, nil, fmt.Errorf("export: %s row %d: %w", path, i+1, err)
		}
		rows = append(rows, row)
	}
	m, err := layout.FromRows(rows)
	if err != nil {
		return layout.Matrix{}, nil, fmt.Errorf("export: %s: %w", path, err)
	}
	if len(rows) == 0 && header != nil {
		m = layout.NewMatrix(0, len(header), layout.RowMajor)
	}
	return m, header, nil
}

// Trajectory is one sample read back from trajectories.csv.
type Trajectory struct {
	Species []string
	Times   []float64
	States  [][]float64
}

func (t *Trajectory) Column(j int) []float64 {
	out := make([]float64, len(t.States))
	for i, s := range t.States {
		out[i] = s[j]
	}
	return out
}

// LoadTrajectory reads the rows of one sample from a result directory.
func LoadTrajectory(dir string, sample int) (*Trajectory, error) {
	records, err := readRecords(filepath.Join(dir, TrajectoriesFile))
	if err != nil {
		return nil, err
	}
	if len(records) < 1 || len(records[0]) < 2 {
		return nil, fmt.Errorf("export: %s has no header", TrajectoriesFile)
	}

	traj := &Trajectory{Species: records[0][2:]}
	for i, rec := range records[1:] {
		k, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("export: %s row %d: %w", TrajectoriesFile, i+1, err)
		}
		if k != sample {
			continue
		}
		values, err := parseRow(rec[1:])
		if err != nil {
			return nil, fmt.Errorf("export: %s row %d: %w", TrajectoriesFile, i+1, err)
		}
		traj.Times = append(traj.Times, values[0])
		traj.States = append(traj.States, values[1:])
	}
	if len(traj.Times) == 0 {
		return nil, fmt.Errorf("export: sample %d not found in %s", sample, dir)
	}
	return traj, nil
}

func LoadMetadata(dir string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func readRecords(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.Comment = '#'
	r.TrimLeadingSpace = true
	return r.ReadAll()
}

func parseRow(rec []string) ([]float64, error) {
	out := make([]float64, len(rec))
	for i, s := range rec {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
