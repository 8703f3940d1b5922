package memo

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
)

// Row is one labelled metric group of a record.
type Row struct {
	Label string  `json:"label"`
	MSE   float64 `json:"mse"`
	MAE   float64 `json:"mae"`
	MAPE  float64 `json:"mape"`
	N     int     `json:"n"`
}

// rowJSON is the JSON form of Row. JSON has no NaN, so an undefined MAPE
// is null.
type rowJSON struct {
	Label string   `json:"label"`
	MSE   float64  `json:"mse"`
	MAE   float64  `json:"mae"`
	MAPE  *float64 `json:"mape"`
	N     int      `json:"n"`
}

func (r Row) MarshalJSON() ([]byte, error) {
	j := rowJSON{Label: r.Label, MSE: r.MSE, MAE: r.MAE, N: r.N}
	if !math.IsNaN(r.MAPE) {
		j.MAPE = &r.MAPE
	}
	return json.Marshal(j)
}

func (r *Row) UnmarshalJSON(data []byte) error {
	var j rowJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*r = Row{Label: j.Label, MSE: j.MSE, MAE: j.MAE, MAPE: math.NaN(), N: j.N}
	if j.MAPE != nil {
		r.MAPE = *j.MAPE
	}
	return nil
}

// Record is one experiment: its parameters and one Row per fold, aggregate
// first.
type Record struct {
	Params Params
	Rows   []Row
}

// Store persists experiment records.
type Store interface {
	// Has reports whether a record whose leading values equal key exists.
	Has(ctx context.Context, key []string) (bool, error)

	// Append adds rec to the store.
	Append(ctx context.Context, rec Record) error

	Close() error
}

// Store backends.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

var resultColumns = []string{"Label", "MSE", "MAE", "MAPE", "N"}

func (r Row) fields() []string {
	return []string{
		r.Label,
		strconv.FormatFloat(r.MSE, 'g', -1, 64),
		strconv.FormatFloat(r.MAE, 'g', -1, 64),
		strconv.FormatFloat(r.MAPE, 'g', -1, 64),
		strconv.Itoa(r.N),
	}
}
