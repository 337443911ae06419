// Package period rolls a chronological run of data tables into
// per-period metrics with trends and period-over-period deltas. The
// result doubles as a synthetic table so downstream bindings treat a
// historical report exactly like a single-snapshot import.
package period

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/TurtleWithGlasses/deckgen/internal/mapper"
	"github.com/TurtleWithGlasses/deckgen/pkg/deckerr"
	"github.com/TurtleWithGlasses/deckgen/pkg/table"
)

// Metric names one figure to compute per period: a source column plus
// an aggregation operator (sum, mean, count, min, max).
type Metric struct {
	Name   string `json:"name" validate:"required"`
	Column string `json:"column" validate:"required"`
	Op     string `json:"op" validate:"required,oneof=sum mean count min max"`
}

// Period is one historical snapshot. Callers supply periods oldest
// first; the aggregator preserves that order everywhere.
type Period struct {
	Label string
	Start time.Time
	End   time.Time
	Table *table.Table
}

// MetricSet holds the computed values for one period.
type MetricSet struct {
	Label  string             `json:"label"`
	Start  time.Time          `json:"start"`
	End    time.Time          `json:"end"`
	Values map[string]float64 `json:"values"`
}

// Trend directions.
const (
	TrendUp        = "up"
	TrendDown      = "down"
	TrendFlat      = "flat"
	TrendUndefined = "undefined"
)

// Trend is a signed direction plus a least-squares slope normalized by
// the mean absolute value over the window. Direction is undefined when
// fewer than two periods are available.
type Trend struct {
	Direction string  `json:"direction"`
	Slope     float64 `json:"slope"`
}

// Delta compares the two most recent periods for one metric.
type Delta struct {
	Delta        float64 `json:"delta"`
	DeltaPercent float64 `json:"deltaPercent"`
}

// Diagnostic records a non-fatal gap found during aggregation.
type Diagnostic struct {
	PeriodLabel string       `json:"periodLabel"`
	Metric      string       `json:"metric"`
	Code        deckerr.Code `json:"code"`
	Message     string       `json:"message"`
}

// Result is a full aggregation pass. Table is the synthetic view:
// period_label as the category column plus one numeric column per
// metric, one row per period in chronological order.
type Result struct {
	Sets        []MetricSet      `json:"sets"`
	Trends      map[string]Trend `json:"trends"`
	Deltas      map[string]Delta `json:"deltas"`
	Diagnostics []Diagnostic     `json:"diagnostics"`
	Table       *table.Table     `json:"-"`
}

// Aggregator computes period metrics. Stateless between calls.
type Aggregator struct {
	log zerolog.Logger
}

// NewAggregator constructs an Aggregator with the given logger.
func NewAggregator(log zerolog.Logger) *Aggregator {
	return &Aggregator{log: log}
}

// flatEpsilon bounds the normalized slope considered "flat".
const flatEpsilon = 1e-9

// Aggregate computes one MetricSet per period, per-metric trends over
// the window, and deltas between the two most recent periods. A period
// missing a metric column yields 0 for that metric plus an
// AGGREGATION_GAP diagnostic instead of failing the whole pass. Zero
// periods or zero metrics is an input error.
func (a *Aggregator) Aggregate(periods []Period, metrics []Metric) (*Result, error) {
	if len(periods) == 0 {
		return nil, deckerr.E(deckerr.Validation, "at least one period is required")
	}
	if len(metrics) == 0 {
		return nil, deckerr.E(deckerr.Validation, "at least one metric is required")
	}
	for _, m := range metrics {
		if m.Name == "" || m.Column == "" {
			return nil, deckerr.E(deckerr.Validation, "metric name and column are required")
		}
	}

	res := &Result{
		Trends: make(map[string]Trend, len(metrics)),
		Deltas: make(map[string]Delta, len(metrics)),
	}

	for _, p := range periods {
		set := MetricSet{
			Label:  p.Label,
			Start:  p.Start,
			End:    p.End,
			Values: make(map[string]float64, len(metrics)),
		}
		for _, m := range metrics {
			v, ok := mapper.ReduceColumn(p.Table, m.Column, m.Op)
			if !ok {
				set.Values[m.Name] = 0
				res.Diagnostics = append(res.Diagnostics, Diagnostic{
					PeriodLabel: p.Label,
					Metric:      m.Name,
					Code:        deckerr.AggregationGap,
					Message:     fmt.Sprintf("period %q has no column %q; %s defaulted to 0", p.Label, m.Column, m.Name),
				})
				a.log.Warn().
					Str("period", p.Label).
					Str("metric", m.Name).
					Str("column", m.Column).
					Msg("metric column missing, defaulting to 0")
				continue
			}
			set.Values[m.Name] = v
		}
		res.Sets = append(res.Sets, set)
	}

	for _, m := range metrics {
		series := make([]float64, len(res.Sets))
		for i, set := range res.Sets {
			series[i] = set.Values[m.Name]
		}
		res.Trends[m.Name] = trendOf(series)
		res.Deltas[m.Name] = deltaOf(series)
	}

	tbl, err := syntheticTable(res.Sets, metrics)
	if err != nil {
		return nil, err
	}
	res.Table = tbl
	return res, nil
}

// trendOf fits a least-squares line over the series and normalizes the
// slope by the mean absolute value, so a metric in the millions and one
// in single digits report comparable magnitudes.
func trendOf(series []float64) Trend {
	if len(series) < 2 {
		return Trend{Direction: TrendUndefined}
	}

	n := float64(len(series))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range series {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return Trend{Direction: TrendUndefined}
	}
	slope := (n*sumXY - sumX*sumY) / denom

	meanAbs := 0.0
	for _, y := range series {
		meanAbs += math.Abs(y)
	}
	meanAbs /= n
	if meanAbs > 0 {
		slope /= meanAbs
	}

	switch {
	case slope > flatEpsilon:
		return Trend{Direction: TrendUp, Slope: slope}
	case slope < -flatEpsilon:
		return Trend{Direction: TrendDown, Slope: slope}
	default:
		return Trend{Direction: TrendFlat, Slope: 0}
	}
}

// deltaOf compares the two most recent values. previous == 0 reports a
// 0 percent change rather than dividing by zero.
func deltaOf(series []float64) Delta {
	if len(series) < 2 {
		return Delta{}
	}
	prev := series[len(series)-2]
	cur := series[len(series)-1]
	d := Delta{Delta: cur - prev}
	if prev != 0 {
		d.DeltaPercent = d.Delta / prev * 100
	}
	return d
}

// syntheticTable builds the downstream-facing view: period_label as a
// categorical column plus one numeric column per metric.
func syntheticTable(sets []MetricSet, metrics []Metric) (*table.Table, error) {
	cols := make([]table.Column, 0, len(metrics)+1)
	cols = append(cols, table.Column{Name: "period_label", Type: table.Categorical})
	for _, m := range metrics {
		cols = append(cols, table.Column{Name: m.Name, Type: table.Numeric})
	}

	rows := make([][]table.Value, 0, len(sets))
	for _, set := range sets {
		row := make([]table.Value, 0, len(cols))
		row = append(row, table.String(set.Label))
		for _, m := range metrics {
			row = append(row, table.Number(set.Values[m.Name]))
		}
		rows = append(rows, row)
	}
	return table.New("periods", cols, rows)
}
