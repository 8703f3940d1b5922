package memo

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/venus-lab/venusml/pkg/errors"
	"github.com/venus-lab/venusml/pkg/log"
)

// CSVStore appends records to a plain CSV file. The header is written only
// when the file is absent or empty.
type CSVStore struct {
	mu     sync.Mutex
	path   string
	logger log.Logger
}

// NewCSVStore returns a store over path. The parent directory is created on
// the first Append.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{
		path:   path,
		logger: log.GetLoggerWithName("memo.csv").With(log.StoreKey, path),
	}
}

// Path returns the file the store writes.
func (s *CSVStore) Path() string { return s.path }

// Has compares key against the leading fields of every line, header
// included.
func (s *CSVStore) Has(_ context.Context, key []string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "open %s", s.path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	for {
		row, err := r.Read()
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, errors.Wrapf(err, "read %s", s.path)
		}
		if len(row) > 0 && hasPrefix(row, key) {
			return true, nil
		}
	}
}

func hasPrefix(row, key []string) bool {
	if len(row) < len(key) {
		return false
	}
	for i, k := range key {
		if row[i] != k {
			return false
		}
	}
	return true
}

// Append writes rec as one line: parameter values then one Label,MSE,MAE,MAPE,N
// group per row.
func (s *CSVStore) Append(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := true
	if info, err := os.Stat(s.path); err == nil && info.Size() > 0 {
		fresh = false
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "create results directory")
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open %s", s.path)
	}

	w := csv.NewWriter(f)
	if fresh {
		header := rec.Params.Names()
		for range rec.Rows {
			header = append(header, resultColumns...)
		}
		if err := w.Write(header); err != nil {
			f.Close()
			return errors.Wrap(err, "write header")
		}
	}
	line := rec.Params.Key()
	for _, r := range rec.Rows {
		line = append(line, r.fields()...)
	}
	if err := w.Write(line); err != nil {
		f.Close()
		return errors.Wrap(err, "write record")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return errors.Wrap(err, "flush record")
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", s.path)
	}
	s.logger.Info("Experiment recorded", log.ParamsKey, ParameterString(rec.Params), "header", fresh)
	return nil
}

// Close is a no-op; the file is opened per call.
func (s *CSVStore) Close() error { return nil }
