package modeling

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"covidlag/internal/frame"
	"covidlag/pkg/contracts/domain"
)

// Design is the complete-case view of a frame for one model.
type Design struct {
	X        *mat.Dense
	Y        []float64
	Entities []string
	// Rows are the frame indices backing each design row.
	Rows []int
	// Excluded counts rows missing a predictor or the response.
	Excluded int
}

// N returns the number of usable rows.
func (d Design) N() int { return len(d.Y) }

// BuildDesign applies the model row filter to f: a row is kept only when
// every predictor and the response are present. Columns absent from f are an
// error, not a reason to drop every row.
func BuildDesign(f *frame.Frame, spec domain.ModelSpec) (Design, error) {
	for _, c := range spec.Columns() {
		if !f.IsNumeric(c) {
			if f.HasColumn(c) {
				return Design{}, fmt.Errorf("column %s is not numeric", c)
			}
			return Design{}, fmt.Errorf("unknown column %s", c)
		}
	}

	columns := spec.Columns()
	var d Design
	for i := 0; i < f.Len(); i++ {
		if !f.Complete(i, columns) {
			d.Excluded++
			continue
		}
		d.Rows = append(d.Rows, i)
	}

	p := len(spec.Predictors)
	d.Y = make([]float64, len(d.Rows))
	d.Entities = make([]string, len(d.Rows))
	if len(d.Rows) > 0 {
		d.X = mat.NewDense(len(d.Rows), p, nil)
	}
	for r, i := range d.Rows {
		for j, name := range spec.Predictors {
			d.X.Set(r, j, f.Value(name, i))
		}
		d.Y[r] = f.Value(spec.Response, i)
		d.Entities[r] = f.Entity(i)
	}
	return d, nil
}
