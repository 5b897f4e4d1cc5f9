package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "covidlag/internal/errors"
	"covidlag/internal/frame"
	"covidlag/pkg/contracts/domain"
)

// StageSplit is the report name of the train/holdout split.
const StageSplit = "split"

// Window is an inclusive date range.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether d falls inside the window.
func (w Window) Contains(d time.Time) bool { return frame.InWindow(d, w.From, w.To) }

// Overlaps reports whether the two windows share a day.
func (w Window) Overlaps(o Window) bool {
	return !w.To.Before(o.From) && !o.To.Before(w.From)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s]", w.From.Format(frame.DateLayout), w.To.Format(frame.DateLayout))
}

// Partitions holds the two disjoint outputs of Split.
type Partitions struct {
	Train   *frame.Frame
	Holdout *frame.Frame
}

// Split copies rows dated inside train and holdout into two new frames.
// Overlapping windows are rejected. Rows outside both are counted.
func Split(ctx context.Context, in *frame.Frame, train, holdout Window, logger *slog.Logger) (Partitions, domain.StageReport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	report := domain.NewStageReport(StageSplit, in.Len())
	if train.To.Before(train.From) || holdout.To.Before(holdout.From) {
		return Partitions{}, report, apperrors.NewAppValidationError("split window ends before it starts").
			WithContext("train", train.String()).
			WithContext("holdout", holdout.String())
	}
	if train.Overlaps(holdout) {
		return Partitions{}, report, apperrors.NewAppValidationError("training and holdout windows overlap").
			WithContext("train", train.String()).
			WithContext("holdout", holdout.String())
	}

	var trainIdx, holdoutIdx []int
	for i := 0; i < in.Len(); i++ {
		switch d := in.Date(i); {
		case train.Contains(d):
			trainIdx = append(trainIdx, i)
		case holdout.Contains(d):
			holdoutIdx = append(holdoutIdx, i)
		}
	}
	parts := Partitions{
		Train:   in.Take(trainIdx),
		Holdout: in.Take(holdoutIdx),
	}
	report.RowsOut = parts.Train.Len() + parts.Holdout.Len()
	report.Exclude(domain.ReasonOutsideWindow, in.Len()-report.RowsOut)

	logger.InfoContext(ctx, "partitions built",
		"train_window", train.String(),
		"holdout_window", holdout.String(),
		"train_rows", parts.Train.Len(),
		"holdout_rows", parts.Holdout.Len(),
		"outside", in.Len()-report.RowsOut,
	)
	return parts, report, nil
}
