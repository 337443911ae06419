package mapper

import (
	"strconv"
	"strings"

	"github.com/TurtleWithGlasses/deckgen/pkg/deck"
	"github.com/TurtleWithGlasses/deckgen/pkg/table"
)

// Formatting is the final resolution step and is purely presentational:
// it derives display strings from normalized values and never feeds back
// into filter or sort semantics.

// FormatValue renders one cell for display according to its column type
// and the effective format. Decimals == 0 selects per-type defaults
// (currency 2, percentage 1, numeric as-written).
func FormatValue(v table.Value, t table.Type, f deck.Format) string {
	if v.Null {
		return ""
	}
	switch t {
	case table.Numeric:
		decimals := -1
		if f.Decimals > 0 {
			decimals = f.Decimals
		}
		return formatNumber(v.Num, decimals, f.ThousandsSep)
	case table.Currency:
		symbol := f.CurrencySymbol
		if symbol == "" {
			symbol = "$"
		}
		decimals := 2
		if f.Decimals > 0 {
			decimals = f.Decimals
		}
		return symbol + formatNumber(v.Num, decimals, true)
	case table.Percentage:
		decimals := 1
		if f.Decimals > 0 {
			decimals = f.Decimals
		}
		return formatNumber(v.Num*100, decimals, false) + "%"
	case table.Date:
		layout := f.DateFormat
		if layout == "" {
			layout = "2006-01-02"
		}
		return v.Time.Format(layout)
	default:
		return v.Raw
	}
}

func formatSlice(s *Slice, f deck.Format) [][]string {
	out := make([][]string, len(s.Rows))
	for r, row := range s.Rows {
		line := make([]string, len(row))
		for c, v := range row {
			line[c] = FormatValue(v, s.Columns[c].Type, f)
		}
		out[r] = line
	}
	return out
}

// formatNumber renders a float with fixed decimals (-1 for shortest) and
// an optional thousands separator on the integer part.
func formatNumber(v float64, decimals int, thousands bool) string {
	s := strconv.FormatFloat(v, 'f', decimals, 64)
	if !thousands {
		return s
	}
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	out := b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}
