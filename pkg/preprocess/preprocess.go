// Package preprocess turns raw tabular records into the fixed-schema numeric
// feature matrix consumed by every model. The column layout is discovered on
// the first fit and frozen for the lifetime of the preprocessor.
package preprocess

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/sentrasec/sentra/pkg/errs"
)

// Record is one raw observation: feature name to value (float64 or string),
// plus an optional ground-truth label used only during training.
type Record struct {
	Fields map[string]any
	Label  string
}

// Matrix is a fixed-width numeric encoding of a batch of records.
type Matrix struct {
	Data    [][]float64
	Columns []string
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return len(m.Data) }

// RowMean returns the mean of row i. It is the scalar summary fed to the
// drift monitor.
func (m *Matrix) RowMean(i int) float64 {
	row := m.Data[i]
	if len(row) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range row {
		sum += v
	}
	return sum / float64(len(row))
}

// categoricalMaxDistinct is the discovery heuristic: a column whose fit batch
// holds fewer distinct values than this is treated as categorical even when
// every value parses as a number.
const categoricalMaxDistinct = 10

// NumericColumn holds the frozen scaling statistics of one numeric column.
type NumericColumn struct {
	Name string
	Mean float64
	Std  float64
}

// CategoricalColumn holds the frozen one-hot table of one categorical column.
type CategoricalColumn struct {
	Name       string
	Categories []string // frozen order; unseen values encode to all-zero

	index map[string]int // process-local lookup; not persisted, see Reindex
}

// Preprocessor fits column statistics on a training batch and reapplies them
// to every subsequent batch. Safe for concurrent Transform calls after fit.
type Preprocessor struct {
	mu sync.RWMutex

	IsFitted    bool
	Numeric     []NumericColumn
	Categorical []CategoricalColumn
	OutColumns  []string // full frozen output layout
}

// New returns an unfitted preprocessor.
func New() *Preprocessor {
	return &Preprocessor{}
}

// Reindex rebuilds the category lookup tables under the write lock. The
// tables are not serialized, so callers restoring a preprocessor from a
// persisted artifact call this once before sharing it across goroutines.
func (p *Preprocessor) Reindex() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.Categorical {
		p.Categorical[i].buildIndex()
	}
}

// Fitted reports whether FitTransform has run.
func (p *Preprocessor) Fitted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.IsFitted
}

// Columns returns the frozen output column layout.
func (p *Preprocessor) Columns() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.OutColumns))
	copy(out, p.OutColumns)
	return out
}

// classifyColumn is the explicit discovery policy: categorical iff any value
// is non-numeric or the column shows fewer than categoricalMaxDistinct
// distinct values in the fit batch.
func classifyColumn(values []any) (categorical bool) {
	distinct := make(map[float64]struct{})
	for _, v := range values {
		switch t := v.(type) {
		case float64:
			distinct[t] = struct{}{}
		case int:
			distinct[float64(t)] = struct{}{}
		default:
			return true
		}
	}
	return len(distinct) < categoricalMaxDistinct
}

// FitTransform discovers the column schema from the batch, fits scaling
// statistics and category tables, and returns the encoded matrix together
// with the per-row labels.
func (p *Preprocessor) FitTransform(records []Record) (*Matrix, []string, error) {
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("preprocess: empty fit batch")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Column names in sorted order so the layout depends on neither row
	// order nor map iteration order.
	nameSet := make(map[string]struct{})
	for _, r := range records {
		for name := range r.Fields {
			nameSet[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(nameSet))
	for name := range nameSet {
		names = append(names, name)
	}
	sort.Strings(names)

	p.Numeric = p.Numeric[:0]
	p.Categorical = p.Categorical[:0]

	for _, name := range names {
		values := make([]any, 0, len(records))
		for _, r := range records {
			if v, ok := r.Fields[name]; ok {
				values = append(values, v)
			}
		}
		if classifyColumn(values) {
			p.Categorical = append(p.Categorical, fitCategorical(name, values))
		} else {
			p.Numeric = append(p.Numeric, fitNumeric(name, values))
		}
	}

	p.OutColumns = p.OutColumns[:0]
	for _, c := range p.Numeric {
		p.OutColumns = append(p.OutColumns, c.Name)
	}
	for _, c := range p.Categorical {
		for _, cat := range c.Categories {
			p.OutColumns = append(p.OutColumns, c.Name+"="+cat)
		}
	}

	p.IsFitted = true

	m := p.transformLocked(records)
	labels := make([]string, len(records))
	for i, r := range records {
		labels[i] = r.Label
	}
	return m, labels, nil
}

// Transform encodes a batch with the frozen schema. Unseen categorical values
// encode to an all-zero group; calling before any fit is a programming error.
func (p *Preprocessor) Transform(records []Record) (*Matrix, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.IsFitted {
		return nil, &errs.NotFittedError{Component: "preprocessor"}
	}
	return p.transformLocked(records), nil
}

func (p *Preprocessor) transformLocked(records []Record) *Matrix {
	data := make([][]float64, len(records))
	width := len(p.OutColumns)
	for i, r := range records {
		row := make([]float64, 0, width)
		for _, c := range p.Numeric {
			row = append(row, c.encode(r.Fields[c.Name]))
		}
		for j := range p.Categorical {
			row = append(row, p.Categorical[j].encode(r.Fields[p.Categorical[j].Name])...)
		}
		data[i] = row
	}
	cols := make([]string, width)
	copy(cols, p.OutColumns)
	return &Matrix{Data: data, Columns: cols}
}

func fitNumeric(name string, values []any) NumericColumn {
	col := NumericColumn{Name: name}
	n := len(values)
	for _, v := range values {
		col.Mean += toFloat(v)
	}
	if n > 0 {
		col.Mean /= float64(n)
	}
	for _, v := range values {
		d := toFloat(v) - col.Mean
		col.Std += d * d
	}
	if n > 0 {
		col.Std = math.Sqrt(col.Std / float64(n))
	}
	if col.Std == 0 {
		col.Std = 1 // constant column scales to zero
	}
	return col
}

func (c NumericColumn) encode(v any) float64 {
	if v == nil {
		return 0 // missing value sits at the column mean after scaling
	}
	return (toFloat(v) - c.Mean) / c.Std
}

func fitCategorical(name string, values []any) CategoricalColumn {
	seen := make(map[string]struct{})
	for _, v := range values {
		seen[categoryKey(v)] = struct{}{}
	}
	cats := make([]string, 0, len(seen))
	for cat := range seen {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	col := CategoricalColumn{Name: name, Categories: cats}
	col.buildIndex()
	return col
}

func (c *CategoricalColumn) buildIndex() {
	c.index = make(map[string]int, len(c.Categories))
	for i, cat := range c.Categories {
		c.index[cat] = i
	}
}

// encode never mutates the column, so concurrent Transform calls stay safe
// even on a freshly deserialized column whose index was not rebuilt yet.
func (c *CategoricalColumn) encode(v any) []float64 {
	out := make([]float64, len(c.Categories))
	if v == nil {
		return out
	}
	key := categoryKey(v)
	if c.index != nil {
		if i, ok := c.index[key]; ok {
			out[i] = 1
		}
		return out
	}
	for i, cat := range c.Categories {
		if cat == key {
			out[i] = 1
			break
		}
	}
	return out
}

func categoryKey(v any) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	default:
		return 0
	}
}
