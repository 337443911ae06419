// Package xlsxio loads workbooks into typed in-memory tables and manages
// their lifecycle: uuid handles, idle TTL eviction, and an open-dataset
// capacity gate.
package xlsxio

import (
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/TurtleWithGlasses/deckgen/internal/infer"
	"github.com/TurtleWithGlasses/deckgen/pkg/deckerr"
	"github.com/TurtleWithGlasses/deckgen/pkg/table"
)

// Loader turns workbook sheets into typed tables via column inference.
type Loader struct {
	classifier *infer.Classifier
	log        zerolog.Logger
}

// NewLoader constructs a Loader around an inference classifier.
func NewLoader(c *infer.Classifier, log zerolog.Logger) *Loader {
	return &Loader{classifier: c, log: log}
}

// LoadFile opens the workbook at path and converts every sheet into a
// typed table. Sheets that end up empty after inference are skipped.
func (l *Loader) LoadFile(path string) (map[string]*table.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, deckerr.Wrap(deckerr.OpenFailed, err, "open workbook")
	}
	defer func() { _ = f.Close() }()
	return l.LoadWorkbook(f)
}

// LoadWorkbook converts all sheets of an already-open workbook. The
// caller keeps ownership of the file.
func (l *Loader) LoadWorkbook(f *excelize.File) (map[string]*table.Table, error) {
	tables := make(map[string]*table.Table)
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, deckerr.Wrap(deckerr.OpenFailed, err, "read sheet "+sheet)
		}
		if len(rows) == 0 {
			l.log.Debug().Str("sheet", sheet).Msg("skipping empty sheet")
			continue
		}
		tbl, err := l.classifier.Table(sheet, rows)
		if err != nil {
			return nil, err
		}
		tables[sheet] = tbl
	}
	if len(tables) == 0 {
		return nil, deckerr.E(deckerr.OpenFailed, "workbook contains no usable sheets")
	}
	return tables, nil
}
