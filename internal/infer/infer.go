// Package infer classifies raw tabular columns into semantic types and
// normalizes their values, producing typed tables for the composition
// pipeline. Classification is heuristic and best-effort: a column that
// resists coercion stays text and logs a warning, it never aborts a load.
package infer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/TurtleWithGlasses/deckgen/config"
	"github.com/TurtleWithGlasses/deckgen/pkg/table"
)

// Options tune the classification heuristics. Zero values fall back to
// the config defaults, so callers may override a single knob per template
// without restating the rest.
type Options struct {
	// CurrencyThreshold is the magnitude at or above which an unmarked
	// numeric column is classified as currency.
	CurrencyThreshold float64

	// CategoricalRatio is the distinct/total ratio below which a text
	// column is classified as categorical.
	CategoricalRatio float64

	// DateFraction is the fraction of non-null values that must parse as
	// dates for a column to be classified as date.
	DateFraction float64
}

func (o Options) withDefaults() Options {
	if o.CurrencyThreshold <= 0 {
		o.CurrencyThreshold = config.DefaultCurrencyThreshold
	}
	if o.CategoricalRatio <= 0 {
		o.CategoricalRatio = config.DefaultCategoricalRatio
	}
	if o.DateFraction <= 0 {
		o.DateFraction = config.DefaultDateFraction
	}
	return o
}

// Classifier infers column types and normalizes values.
type Classifier struct {
	opts Options
	log  zerolog.Logger
}

// New constructs a Classifier with the given options and logger.
func New(opts Options, logger zerolog.Logger) *Classifier {
	return &Classifier{opts: opts.withDefaults(), log: logger}
}

// dateLayouts are tried in order when parsing date-like strings.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"1/2/06",
	"Jan-2006",
	"Jan 2006",
	"2006-01",
}

// currencyMarkers are symbols stripped from currency values.
const currencyMarkers = "$€£¥₹"

// scan is the per-cell parse result captured during observation so
// normalization never reparses.
type scan struct {
	raw     string
	null    bool
	isNum   bool
	num     float64
	pctMark bool
	curMark bool
	isDate  bool
	date    time.Time
}

func observe(cell string) scan {
	s := scan{raw: strings.TrimSpace(cell)}
	if s.raw == "" {
		s.null = true
		return s
	}

	v := s.raw
	if strings.HasSuffix(v, "%") {
		v = strings.TrimSpace(strings.TrimSuffix(v, "%"))
		s.pctMark = true
	}
	if strings.ContainsAny(v, currencyMarkers) {
		s.curMark = true
	}
	clean := strings.Map(func(r rune) rune {
		if r == ',' || strings.ContainsRune(currencyMarkers, r) {
			return -1
		}
		return r
	}, v)
	clean = strings.TrimSpace(clean)
	// "(1,234)" accounting negatives
	if strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")") {
		clean = "-" + strings.Trim(clean, "()")
	}
	if f, err := strconv.ParseFloat(clean, 64); err == nil {
		s.isNum = true
		s.num = f
		return s
	}
	s.pctMark = false
	s.curMark = false

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s.raw); err == nil {
			s.isDate = true
			s.date = t
			return s
		}
	}
	return s
}

// classify applies the ordered heuristics from the column's cell scans.
func (c *Classifier) classify(scans []scan) table.Type {
	nonNull := 0
	nums, dates := 0, 0
	pctMarks, curMarks := 0, 0
	within1, within100, positive := true, true, true
	maxAbs := 0.0
	distinct := map[string]struct{}{}

	for _, s := range scans {
		if s.null {
			continue
		}
		nonNull++
		distinct[s.raw] = struct{}{}
		if s.isNum {
			nums++
			if s.pctMark {
				pctMarks++
			}
			if s.curMark {
				curMarks++
			}
			if s.num < 0 || s.num > 1 {
				within1 = false
			}
			if s.num < 0 || s.num > 100 {
				within100 = false
			}
			if s.num < 0 {
				positive = false
			}
			if a := math.Abs(s.num); a > maxAbs {
				maxAbs = a
			}
		}
		if s.isDate {
			dates++
		}
	}
	if nonNull == 0 {
		return table.Text
	}

	// 1. Numeric family: every non-null value parses as a number.
	if nums == nonNull {
		switch {
		case pctMarks == nums:
			return table.Percentage
		case within1:
			return table.Percentage
		case within100 && pctMarks > 0:
			return table.Percentage
		case curMarks > 0:
			return table.Currency
		case positive && maxAbs >= c.opts.CurrencyThreshold:
			return table.Currency
		default:
			return table.Numeric
		}
	}

	// 2. Date: all values parse, or a high fraction of them do.
	if dates == nonNull || float64(dates)/float64(nonNull) >= c.opts.DateFraction {
		return table.Date
	}

	// 3. Categorical: low distinct/total ratio.
	if float64(len(distinct))/float64(nonNull) < c.opts.CategoricalRatio {
		return table.Categorical
	}

	return table.Text
}

// normalize converts one scanned cell per the column's classified type.
func normalize(s scan, t table.Type) table.Value {
	if s.null {
		return table.NullValue()
	}
	switch t {
	case table.Percentage:
		if !s.isNum {
			return table.NullValue()
		}
		f := s.num
		// Per-value rescale: marked or 0-100 scale values divide by 100,
		// already-fractional values pass through.
		if s.pctMark || f > 1 {
			f /= 100
		}
		return table.Value{Raw: s.raw, Num: f}
	case table.Numeric, table.Currency:
		if !s.isNum {
			return table.NullValue()
		}
		return table.Value{Raw: s.raw, Num: s.num}
	case table.Date:
		if !s.isDate {
			return table.NullValue()
		}
		return table.Value{Raw: s.raw, Time: s.date}
	default:
		return table.Value{Raw: s.raw}
	}
}

// Table classifies and normalizes a raw grid into a typed table. The first
// grid row holds headers; fully-empty rows and columns are dropped before
// classification. Unnamed surviving columns get positional names.
func (c *Classifier) Table(name string, grid [][]string) (*table.Table, error) {
	if len(grid) == 0 {
		return nil, fmt.Errorf("infer: table %q: empty grid", name)
	}
	headers := grid[0]
	width := len(headers)
	for _, row := range grid[1:] {
		if len(row) > width {
			width = len(row)
		}
	}
	if width == 0 {
		return nil, fmt.Errorf("infer: table %q: no columns", name)
	}

	cellAt := func(row []string, i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	// Drop fully-empty rows first so they never skew missing-value ratios.
	var dataRows [][]string
	for _, row := range grid[1:] {
		empty := true
		for i := 0; i < width; i++ {
			if cellAt(row, i) != "" {
				empty = false
				break
			}
		}
		if !empty {
			dataRows = append(dataRows, row)
		}
	}

	// Scan surviving cells column by column, dropping fully-empty columns.
	var keep []int
	scans := make([][]scan, 0, width)
	for i := 0; i < width; i++ {
		col := make([]scan, len(dataRows))
		empty := cellAt(headers, i) == ""
		for r, row := range dataRows {
			col[r] = observe(cellAt(row, i))
			if !col[r].null {
				empty = false
			}
		}
		if empty {
			continue
		}
		keep = append(keep, i)
		scans = append(scans, col)
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("infer: table %q: all columns empty", name)
	}

	cols := make([]table.Column, len(keep))
	for ci, i := range keep {
		colName := cellAt(headers, i)
		if colName == "" {
			colName = fmt.Sprintf("column_%d", i+1)
		}
		colType := c.classify(scans[ci])
		cols[ci] = table.Column{Name: colName, Type: colType}

		if dropped := unparseable(scans[ci], colType); dropped > 0 {
			c.log.Warn().
				Str("table", name).
				Str("column", colName).
				Str("type", string(colType)).
				Int("unparseable", dropped).
				Msg("column has values that resist coercion; kept as nulls")
		}
	}

	rows := make([][]table.Value, len(dataRows))
	for r := range dataRows {
		row := make([]table.Value, len(keep))
		for ci := range keep {
			row[ci] = normalize(scans[ci][r], cols[ci].Type)
		}
		rows[r] = row
	}
	return table.New(name, cols, rows)
}

// unparseable counts non-null cells that do not fit the classified type.
func unparseable(col []scan, t table.Type) int {
	n := 0
	for _, s := range col {
		if s.null {
			continue
		}
		switch t {
		case table.Numeric, table.Currency, table.Percentage:
			if !s.isNum {
				n++
			}
		case table.Date:
			if !s.isDate {
				n++
			}
		}
	}
	return n
}
