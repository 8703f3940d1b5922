// Package memo records cross-validation results keyed by experiment
// parameters so that a repeated experiment can be skipped.
package memo

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Param is one named, already rendered experiment parameter.
type Param struct {
	Name  string
	Value string
}

// Params is the ordered parameter list of an experiment. Order is part of
// the key.
type Params []Param

// Add appends name with its value rendered by FormatValue.
func (p *Params) Add(name string, value any) {
	*p = append(*p, Param{Name: name, Value: FormatValue(value)})
}

// Names returns the parameter names in order.
func (p Params) Names() []string {
	out := make([]string, len(p))
	for i, q := range p {
		out[i] = q.Name
	}
	return out
}

// Key returns the rendered values in order.
func (p Params) Key() []string {
	out := make([]string, len(p))
	for i, q := range p {
		out[i] = q.Value
	}
	return out
}

// FormatValue renders v deterministically. Floats use the shortest
// representation that round-trips, so 1.0 renders as "1" and a value written
// as 1 or 1.0 on the command line yields the same key.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case []float64:
		parts := make([]string, len(x))
		for i, f := range x {
			parts[i] = FormatValue(f)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case []int:
		parts := make([]string, len(x))
		for i, n := range x {
			parts[i] = strconv.Itoa(n)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case []string:
		return "[" + strings.Join(x, " ") + "]"
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

var runLabel = regexp.MustCompile(`watch_data_(.*?)_processed`)

// FileLabel shortens a data file path to its run label: the part between
// "watch_data_" and "_processed" when present, otherwise the base name
// without extensions.
func FileLabel(path string) string {
	if m := runLabel.FindStringSubmatch(path); m != nil {
		return m[1]
	}
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

// FilesLabel joins the labels of paths with "_".
func FilesLabel(paths []string) string {
	labels := make([]string, len(paths))
	for i, p := range paths {
		labels[i] = FileLabel(p)
	}
	return strings.Join(labels, "_")
}

// ResultsPath is the CSV file that collects every experiment over the same
// files, model type and predicted columns.
func ResultsPath(dir string, files []string, model string, predictColumns []string) string {
	name := FilesLabel(files) + "_model_" + model + "_cols_" + strings.Join(predictColumns, "_") + ".csv"
	return filepath.Join(dir, name)
}

// ParameterString renders params as "name:value;" pairs.
func ParameterString(params Params) string {
	var b strings.Builder
	for _, p := range params {
		b.WriteString(p.Name)
		b.WriteByte(':')
		b.WriteString(p.Value)
		b.WriteByte(';')
	}
	return b.String()
}
