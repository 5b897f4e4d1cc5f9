package exporter

import (
	"covidlag/internal/frame"
	"covidlag/pkg/contracts/domain"
)

// Table is a header plus rows of cells, shared by the CSV and XLSX writers.
type Table struct {
	Headers []string
	Rows    [][]string
}

// SummaryTable has one row per configured model.
func SummaryTable(res *Results) Table {
	t := Table{Headers: []string{
		"model", "status", "rank", "predictors", "train_n", "train_excluded",
		"r_squared", "adj_r_squared", "residual_std_error", "train_rmse",
		"holdout_n", "holdout_excluded", "global_rmse", "failure_reason",
	}}
	for _, m := range res.Models {
		row := []string{m.Spec.Name, m.Status(), "", formatInt(len(m.Spec.Predictors))}
		if m.Rank > 0 {
			row[2] = formatInt(m.Rank)
		}
		if m.Model != nil {
			row = append(row,
				formatInt(m.Model.N),
				formatInt(m.Model.Excluded),
				formatFloat(m.Model.RSquared),
				formatFloat(m.Model.AdjRSquared),
				formatFloat(m.Model.Residuals.StandardError),
				formatFloat(m.Model.Residuals.RMSE),
			)
		} else {
			n := ""
			if m.Failure != nil {
				n = formatInt(m.Failure.N)
			}
			row = append(row, n, "", "", "", "", "")
		}
		if m.Evaluation != nil {
			row = append(row,
				formatInt(m.Evaluation.N),
				formatInt(m.Evaluation.Excluded),
				formatFloat(m.Evaluation.GlobalRMSE),
			)
		} else {
			row = append(row, "", "", "")
		}
		reason := ""
		if m.Failure != nil {
			reason = m.Failure.Reason
		}
		t.Rows = append(t.Rows, append(row, reason))
	}
	return t
}

// CoefficientsTable lists every estimate of every fitted model.
func CoefficientsTable(res *Results) Table {
	t := Table{Headers: []string{"model", "term", "intercept", "estimate", "std_error", "t_stat", "p_value"}}
	for _, m := range res.Models {
		if m.Model == nil {
			continue
		}
		for _, c := range m.Model.Coefficients {
			t.Rows = append(t.Rows, []string{
				m.Spec.Name,
				c.Name,
				formatBool(c.Intercept),
				formatFloat(c.Estimate),
				formatFloat(c.StdError),
				formatFloat(c.TStat),
				formatFloat(c.PValue),
			})
		}
	}
	return t
}

// EntityRMSETable lists per-entity holdout error in population order.
func EntityRMSETable(eval *domain.ModelEvaluation) Table {
	t := Table{Headers: []string{"entity", "location", "population", "n", "rmse"}}
	for _, e := range eval.PerEntity {
		t.Rows = append(t.Rows, []string{
			e.Entity,
			e.Location,
			formatFloat(e.Population),
			formatInt(e.N),
			formatFloat(e.RMSE),
		})
	}
	return t
}

// SnapshotTable dumps the snapshot frame, keys first then every column.
func SnapshotTable(f *frame.Frame) Table {
	cols := f.Columns()
	t := Table{Headers: append([]string{"iso_code", "date"}, cols...)}
	for i := 0; i < f.Len(); i++ {
		row := make([]string, 0, len(cols)+2)
		row = append(row, f.Entity(i), f.Date(i).Format(frame.DateLayout))
		for _, c := range cols {
			if f.IsNumeric(c) {
				row = append(row, formatFloat(f.Value(c, i)))
			} else {
				row = append(row, f.String(c, i))
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// FailuresTable lists models that could not be fitted.
func FailuresTable(res *Results) Table {
	t := Table{Headers: []string{"model", "n", "p", "reason"}}
	for _, m := range res.Models {
		if m.Failure == nil {
			continue
		}
		t.Rows = append(t.Rows, []string{
			m.Failure.Model,
			formatInt(m.Failure.N),
			formatInt(m.Failure.P),
			m.Failure.Reason,
		})
	}
	return t
}
