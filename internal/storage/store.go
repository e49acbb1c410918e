package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/starfield/internal/dynamo"
)

const (
	metadataFile = "metadata.json"
	seriesFile   = "series.csv"
	snapshotFile = "snapshot.csv"
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

type RunMetadata struct {
	ID        string             `json:"id"`
	Model     string             `json:"model"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      uint64             `json:"seed"`
	NumBodies int                `json:"num_bodies"`
	Timestep  float64            `json:"timestep"`
	Duration  float64            `json:"duration"`
	Steps     int                `json:"steps"`
	Strategy  string             `json:"strategy"`
	Collide   string             `json:"collide"`
	Backend   string             `json:"backend"`
	Pivot     int                `json:"pivot"`
	Anomalies int                `json:"anomalies"`
	Elapsed   time.Duration      `json:"elapsed_ns"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Run is everything persisted for one simulation run.
type Run struct {
	Meta      RunMetadata
	Times     []float64
	Series    map[string][]float64
	Snapshot  dynamo.Buffer
	Spectator dynamo.Tracking
}

// Save writes the run into its own directory and returns the run ID.
func (s *Store) Save(run Run) (string, error) {
	meta := run.Meta
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	meta.ID = fmt.Sprintf("%s_%d", meta.Model, meta.Timestamp.UnixNano())
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeFile(filepath.Join(runDir, metadataFile), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}); err != nil {
		return "", err
	}

	if err := writeFile(filepath.Join(runDir, seriesFile), func(w io.Writer) error {
		return WriteSeriesCSV(w, run.Times, run.Series)
	}); err != nil {
		return "", err
	}

	if run.Snapshot.Len() > 0 {
		if err := writeFile(filepath.Join(runDir, snapshotFile), func(w io.Writer) error {
			return WriteSnapshotCSV(w, run.Snapshot)
		}); err != nil {
			return "", err
		}
	}

	return meta.ID, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// List returns every readable run, oldest first.
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
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadSeries reads the per-step metric series of a run.
func (s *Store) LoadSeries(runID string) ([]float64, map[string][]float64, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, seriesFile))
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}

	series := make(map[string][]float64)
	if len(records) < 2 {
		return []float64{}, series, nil
	}

	header := records[0]
	times := make([]float64, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) == 0 {
			continue
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}
		times = append(times, t)

		for j := 1; j < len(record) && j < len(header); j++ {
			val, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				continue
			}
			series[header[j]] = append(series[header[j]], val)
		}
	}
	return times, series, nil
}

// LoadSnapshot reads the final body state of a run.
func (s *Store) LoadSnapshot(runID string) (dynamo.Buffer, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, snapshotFile))
	if err != nil {
		return dynamo.Buffer{}, err
	}
	defer file.Close()
	return ReadSnapshotCSV(file)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteSeriesCSV writes one row per step: time followed by each metric in
// name order.
func WriteSeriesCSV(w io.Writer, times []float64, series map[string][]float64) error {
	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"time"}, names...)); err != nil {
		return err
	}
	for i, t := range times {
		row := []string{formatFloat(t)}
		for _, name := range names {
			if i < len(series[name]) {
				row = append(row, formatFloat(series[name][i]))
			} else {
				row = append(row, "")
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var snapshotHeader = []string{"index", "x", "y", "z", "size", "vx", "vy", "vz"}

func WriteSnapshotCSV(w io.Writer, b dynamo.Buffer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(snapshotHeader); err != nil {
		return err
	}
	for i := range b.Positions {
		p, v := b.Positions[i], b.Velocities[i]
		row := []string{strconv.Itoa(i)}
		for _, c := range []float32{p[0], p[1], p[2], p[3], v[0], v[1], v[2]} {
			row = append(row, strconv.FormatFloat(float64(c), 'g', -1, 32))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ReadSnapshotCSV(r io.Reader) (dynamo.Buffer, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return dynamo.Buffer{}, err
	}
	if len(records) == 0 {
		return dynamo.Buffer{}, fmt.Errorf("snapshot: missing header")
	}

	b := dynamo.NewBuffer(0, len(records)-1)
	for i, record := range records[1:] {
		if len(record) != len(snapshotHeader) {
			return dynamo.Buffer{}, fmt.Errorf("snapshot row %d: %d fields, want %d", i+1, len(record), len(snapshotHeader))
		}
		var vals [7]float32
		for k := range vals {
			f, err := strconv.ParseFloat(record[k+1], 32)
			if err != nil {
				return dynamo.Buffer{}, fmt.Errorf("snapshot row %d: %w", i+1, err)
			}
			vals[k] = float32(f)
		}
		b.Positions[i] = mgl32.Vec4{vals[0], vals[1], vals[2], vals[3]}
		b.Velocities[i] = mgl32.Vec4{vals[4], vals[5], vals[6], 0}
	}
	return b, nil
}
