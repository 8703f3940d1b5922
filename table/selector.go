package table

import (
	"math"
	"strconv"
	"strings"

	"github.com/venus-lab/venusml/pkg/errors"
)

// RunIDColumn is the column that identifies which run a row belongs to.
const RunIDColumn = "run_id"

// RunSelector chooses rows by run identifier. The zero value selects every
// row. A selector built from one identifier keeps rows equal to it, one
// built from several keeps rows whose identifier is any of them.
//
// *RunSelector implements flag.Value.
type RunSelector struct {
	ids []float64
}

// SingleRun selects the rows of run id.
func SingleRun(id float64) RunSelector {
	return RunSelector{ids: []float64{id}}
}

// RunSet selects the rows of any of the runs ids. An empty set selects
// every row.
func RunSet(ids ...float64) RunSelector {
	out := make([]float64, len(ids))
	copy(out, ids)
	return RunSelector{ids: out}
}

// ParseRunSelector parses "3" or "1,2,5". An empty string yields the zero
// selector.
func ParseRunSelector(s string) (RunSelector, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return RunSelector{}, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return RunSelector{}, errors.NewInvalidRunSelectorError(s, "empty run id")
		}
		id, err := strconv.ParseFloat(p, 64)
		if err != nil || math.IsNaN(id) || math.IsInf(id, 0) {
			return RunSelector{}, errors.NewInvalidRunSelectorError(s, "run id "+strconv.Quote(p)+" is not a number")
		}
		ids = append(ids, id)
	}
	return RunSelector{ids: ids}, nil
}

// IsZero reports whether the selector keeps every row.
func (s RunSelector) IsZero() bool { return len(s.ids) == 0 }

// IDs returns a copy of the selected run identifiers.
func (s RunSelector) IDs() []float64 {
	out := make([]float64, len(s.ids))
	copy(out, s.ids)
	return out
}

// Matches reports whether a row with run identifier id is selected.
func (s RunSelector) Matches(id float64) bool {
	if len(s.ids) == 0 {
		return true
	}
	for _, want := range s.ids {
		if id == want {
			return true
		}
	}
	return false
}

func (s RunSelector) String() string {
	parts := make([]string, len(s.ids))
	for i, id := range s.ids {
		parts[i] = strconv.FormatFloat(id, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

// Set implements flag.Value.
func (s *RunSelector) Set(v string) error {
	parsed, err := ParseRunSelector(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// SelectRuns keeps the rows whose value in column is matched by sel. An
// empty column name means RunIDColumn. The zero selector returns the table
// unchanged and does not require the column to exist.
func (t *Table) SelectRuns(sel RunSelector, column string) (*Table, error) {
	if sel.IsZero() {
		return t, nil
	}
	if column == "" {
		column = RunIDColumn
	}
	j, ok := t.index[column]
	if !ok {
		return nil, errors.NewInvalidRunSelectorError(sel.String(), "table has no column "+column)
	}
	return t.Filter(func(i int) bool { return sel.Matches(t.At(i, j)) }), nil
}
