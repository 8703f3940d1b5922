package table

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/ulikunitz/xz"

	"github.com/venus-lab/venusml/pkg/errors"
	"github.com/venus-lab/venusml/pkg/log"
)

// Supported file extensions.
const (
	ExtCSV     = ".csv"
	ExtCSVXZ   = ".csv.xz"
	ExtParquet = ".parquet"
)

// pandasIndexPrefix marks index columns written by pandas.to_parquet.
const pandasIndexPrefix = "__index_level_"

// SupportedExtensions lists the extensions Load accepts.
func SupportedExtensions() []string {
	return []string{ExtCSV, ExtCSVXZ, ExtParquet}
}

// Load reads a tabular file into a Table. The format is chosen by the file
// extension. Columns that cannot be read as numbers are dropped with a warning.
func Load(path string) (*Table, error) {
	logger := log.GetLoggerWithName("table.Load")

	var (
		t   *Table
		err error
	)
	switch {
	case strings.HasSuffix(path, ExtCSV):
		t, err = loadCSV(path, false)
	case strings.HasSuffix(path, ExtCSVXZ):
		t, err = loadCSV(path, true)
	case strings.HasSuffix(path, ExtParquet):
		t, err = loadParquet(path)
	default:
		return nil, errors.NewUnsupportedFileFormatError(path, SupportedExtensions()...)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("Table loaded",
		log.OperationKey, log.OperationLoad,
		log.PathKey, path,
		log.SamplesKey, t.Len(),
		log.FeaturesKey, t.NumColumns(),
	)
	return t, nil
}

func loadCSV(path string, compressed bool) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var r io.Reader = f
	if compressed {
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "xz %s", path)
		}
		r = xr
	}
	return ReadCSV(r, path)
}

// ReadCSV parses CSV with a header row. name is used in warnings and errors.
func ReadCSV(r io.Reader, name string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.Wrapf(errors.ErrEmptyData, "read %s", name)
		}
		return nil, errors.Wrapf(err, "read header of %s", name)
	}
	columns := make([]string, len(header))
	for j, h := range header {
		columns[j] = strings.TrimSpace(h)
	}
	// The first header cell may carry a UTF-8 byte order mark.
	if len(columns) > 0 {
		columns[0] = strings.TrimPrefix(columns[0], "\ufeff")
	}

	numeric := make([]bool, len(columns))
	for j := range numeric {
		numeric[j] = true
	}
	var data []float64
	rows := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", name)
		}
		for j, cell := range record {
			v, ok := parseCell(cell)
			if !ok {
				numeric[j] = false
			}
			data = append(data, v)
		}
		rows++
	}
	return keepNumeric(name, columns, numeric, data, rows)
}

// parseCell converts a CSV cell. Empty cells and the usual missing-value
// markers become NaN. ok is false when the cell is not a number.
func parseCell(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	switch s {
	case "", "NaN", "nan", "NA", "N/A", "null", "NULL", "None":
		return math.NaN(), true
	case "True", "true":
		return 1, true
	case "False", "false":
		return 0, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN(), false
	}
	return v, true
}

func loadParquet(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	return ReadParquet(f, info.Size(), path)
}

// ReadParquet reads a flat parquet file. name is used in warnings and errors.
func ReadParquet(r io.ReaderAt, size int64, name string) (*Table, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, errors.Wrapf(err, "open parquet %s", name)
	}

	paths := pf.Schema().Columns()
	columns := make([]string, len(paths))
	numeric := make([]bool, len(paths))
	for j, p := range paths {
		columns[j] = strings.Join(p, ".")
		numeric[j] = true
	}

	ncols := len(columns)
	nrows := int(pf.NumRows())
	data := make([]float64, nrows*ncols)
	for i := range data {
		data[i] = math.NaN()
	}

	row := 0
	buf := make([]parquet.Row, 128)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, values := range buf[:n] {
				if row >= nrows {
					break
				}
				for _, v := range values {
					c := v.Column()
					if c < 0 || c >= ncols {
						continue
					}
					x, ok := parquetValue(v)
					if !ok {
						numeric[c] = false
					}
					data[row*ncols+c] = x
				}
				row++
			}
			if err != nil {
				if err == io.EOF {
					break
				}
				rows.Close()
				return nil, errors.Wrapf(err, "read parquet %s", name)
			}
		}
		if err := rows.Close(); err != nil {
			return nil, errors.Wrapf(err, "close parquet rows %s", name)
		}
	}

	for j, c := range columns {
		if strings.HasPrefix(c, pandasIndexPrefix) {
			numeric[j] = false
		}
	}
	return keepNumeric(name, columns, numeric, data[:row*ncols], row)
}

func parquetValue(v parquet.Value) (float64, bool) {
	if v.IsNull() {
		return math.NaN(), true
	}
	switch v.Kind() {
	case parquet.Boolean:
		if v.Boolean() {
			return 1, true
		}
		return 0, true
	case parquet.Int32:
		return float64(v.Int32()), true
	case parquet.Int64:
		return float64(v.Int64()), true
	case parquet.Float:
		return float64(v.Float()), true
	case parquet.Double:
		return v.Double(), true
	default:
		return math.NaN(), false
	}
}

// keepNumeric drops the columns flagged as non-numeric and warns about each.
func keepNumeric(name string, columns []string, numeric []bool, data []float64, rows int) (*Table, error) {
	all, err := newTable(columns, data, rows)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", name)
	}
	var dropped []string
	for j, ok := range numeric {
		if !ok {
			dropped = append(dropped, columns[j])
			if !strings.HasPrefix(columns[j], pandasIndexPrefix) {
				errors.Warn(errors.NewDroppedColumnWarning(name, columns[j], "non-numeric values"))
			}
		}
	}
	if len(dropped) == 0 {
		return all, nil
	}
	return all.Drop(dropped...), nil
}
