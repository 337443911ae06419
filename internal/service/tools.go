package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/TurtleWithGlasses/deckgen/config"
	"github.com/TurtleWithGlasses/deckgen/internal/compose"
	"github.com/TurtleWithGlasses/deckgen/internal/component"
	"github.com/TurtleWithGlasses/deckgen/internal/mapper"
	"github.com/TurtleWithGlasses/deckgen/internal/period"
	"github.com/TurtleWithGlasses/deckgen/internal/runtime"
	"github.com/TurtleWithGlasses/deckgen/internal/telemetry"
	"github.com/TurtleWithGlasses/deckgen/internal/xlsxdeck"
	"github.com/TurtleWithGlasses/deckgen/internal/xlsxio"
	"github.com/TurtleWithGlasses/deckgen/pkg/deck"
	"github.com/TurtleWithGlasses/deckgen/pkg/deckerr"
	"github.com/TurtleWithGlasses/deckgen/pkg/pagination"
	"github.com/TurtleWithGlasses/deckgen/pkg/surface"
	"github.com/TurtleWithGlasses/deckgen/pkg/table"
)

// PathValidator abstracts output path validation for rendered decks.
type PathValidator interface {
	ValidateWritePath(path string) (string, error)
}

// Service implements the tool handlers over the dataset manager and the
// composition pipeline. Handlers are plain methods so tests can call
// them without an MCP transport.
type Service struct {
	mgr        *xlsxio.Manager
	limits     runtime.Limits
	writer     PathValidator
	agg        *period.Aggregator
	hooks      *telemetry.Hooks
	log        zerolog.Logger
	bounds     surface.Bounds
	components *component.Registry
}

// NewService wires the tool surface. Writer may be nil when deck writing
// is disabled; bounds fall back to the configured default surface.
func NewService(mgr *xlsxio.Manager, limits runtime.Limits, writer PathValidator, log zerolog.Logger) *Service {
	return &Service{
		mgr:    mgr,
		limits: limits,
		writer: writer,
		agg:    period.NewAggregator(log),
		hooks:  telemetry.NewHooks(log),
		log:    log,
		bounds: surface.Bounds{
			Width:  config.DefaultSurfaceWidth,
			Height: config.DefaultSurfaceHeight,
		},
		components: component.Builtin(),
	}
}

// --- open_dataset / close_dataset ---

// OpenDatasetInput defines parameters for opening a dataset.
type OpenDatasetInput struct {
	Path string `json:"path" validate:"required,filepath_ext" jsonschema_description:"Allowed path to an Excel workbook (.xlsx, .xlsm, .xltx, .xltm)"`
}

// OpenDatasetOutput documents the response fields for open_dataset.
type OpenDatasetOutput struct {
	DatasetID       string   `json:"dataset_id" jsonschema_description:"Server-assigned dataset handle ID"`
	Sheets          []string `json:"sheets" jsonschema_description:"Usable sheet names, sorted"`
	PreviewRowLimit int      `json:"previewRowLimit" jsonschema_description:"Default row limit for previews"`
}

// OpenDataset loads a workbook into typed tables and returns its handle.
func (s *Service) OpenDataset(ctx context.Context, in OpenDatasetInput) (*OpenDatasetOutput, error) {
	id, err := s.mgr.Open(ctx, in.Path)
	if err != nil {
		return nil, err
	}
	out := &OpenDatasetOutput{DatasetID: id, PreviewRowLimit: s.limits.PreviewRowLimit}
	_ = s.mgr.WithTables(id, func(tables map[string]*table.Table) error {
		for name := range tables {
			out.Sheets = append(out.Sheets, name)
		}
		return nil
	})
	sort.Strings(out.Sheets)
	return out, nil
}

// CloseDatasetInput defines parameters for closing a dataset.
type CloseDatasetInput struct {
	DatasetID string `json:"dataset_id" validate:"required" jsonschema_description:"Dataset handle ID to close"`
}

// CloseDatasetOutput reports the close outcome.
type CloseDatasetOutput struct {
	Success bool `json:"success" jsonschema_description:"True when the handle was closed"`
}

// CloseDataset drops a dataset handle and releases its capacity slot.
func (s *Service) CloseDataset(ctx context.Context, in CloseDatasetInput) (*CloseDatasetOutput, error) {
	if err := s.mgr.CloseHandle(in.DatasetID); err != nil {
		return nil, deckerr.Wrap(deckerr.InvalidHandle, err, in.DatasetID)
	}
	return &CloseDatasetOutput{Success: true}, nil
}

// --- list_structure ---

// ColumnInfo describes one typed column.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type" jsonschema_description:"Inferred type: numeric, currency, percentage, date, categorical, text"`
}

// SheetInfo summarizes one typed table.
type SheetInfo struct {
	Name     string       `json:"name"`
	RowCount int          `json:"rowCount"`
	Columns  []ColumnInfo `json:"columns"`
}

// ListStructureInput defines parameters for structure discovery.
type ListStructureInput struct {
	DatasetID string `json:"dataset_id" validate:"required" jsonschema_description:"Dataset handle ID"`
}

// ListStructureOutput summarizes dataset structure.
type ListStructureOutput struct {
	DatasetID string      `json:"dataset_id"`
	Sheets    []SheetInfo `json:"sheets"`
}

// ListStructure reports each sheet's typed columns and row count.
func (s *Service) ListStructure(ctx context.Context, in ListStructureInput) (*ListStructureOutput, error) {
	out := &ListStructureOutput{DatasetID: in.DatasetID}
	err := s.mgr.WithTables(in.DatasetID, func(tables map[string]*table.Table) error {
		for name, tbl := range tables {
			info := SheetInfo{Name: name, RowCount: tbl.NumRows()}
			for _, col := range tbl.Columns() {
				info.Columns = append(info.Columns, ColumnInfo{Name: col.Name, Type: string(col.Type)})
			}
			out.Sheets = append(out.Sheets, info)
		}
		return nil
	})
	if err != nil {
		return nil, deckerr.Wrap(deckerr.InvalidHandle, err, in.DatasetID)
	}
	sort.Slice(out.Sheets, func(i, j int) bool { return out.Sheets[i].Name < out.Sheets[j].Name })
	return out, nil
}

// --- preview_table ---

// PreviewTableInput defines parameters for previewing a typed table.
// Cursor takes precedence over dataset_id and sheet when provided.
type PreviewTableInput struct {
	DatasetID string `json:"dataset_id,omitempty" jsonschema_description:"Dataset handle ID"`
	Sheet     string `json:"sheet,omitempty" jsonschema_description:"Sheet name to preview"`
	Rows      int    `json:"rows,omitempty" jsonschema_description:"Max rows per page (bounded)"`
	Cursor    string `json:"cursor,omitempty" validate:"omitempty,cursor" jsonschema_description:"Opaque resume token from a previous page"`
}

// PageMeta captures paging metadata.
type PageMeta struct {
	Total      int    `json:"total"`
	Returned   int    `json:"returned"`
	Truncated  bool   `json:"truncated"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// PreviewTableOutput carries one page of formatted rows.
type PreviewTableOutput struct {
	DatasetID string     `json:"dataset_id"`
	Sheet     string     `json:"sheet"`
	Headers   []string   `json:"headers"`
	Rows      [][]string `json:"rows" jsonschema_description:"Formatted, presentation-ready cell strings"`
	Meta      PageMeta   `json:"meta"`
}

// PreviewTable returns one formatted page of a typed table with an
// opaque resume cursor.
func (s *Service) PreviewTable(ctx context.Context, in PreviewTableInput) (*PreviewTableOutput, error) {
	datasetID, sheet, offset := in.DatasetID, in.Sheet, 0
	pageSize := in.Rows
	if in.Cursor != "" {
		cur, err := pagination.Decode(in.Cursor)
		if err != nil {
			return nil, deckerr.Wrap(deckerr.CursorInvalid, err, "")
		}
		datasetID, sheet, offset, pageSize = cur.Did, cur.S, cur.Off, cur.Ps
	}
	if pageSize <= 0 || pageSize > s.limits.PreviewPageRows {
		pageSize = s.limits.PreviewRowLimit
	}
	if datasetID == "" || sheet == "" {
		return nil, deckerr.E(deckerr.Validation, "dataset_id and sheet are required without a cursor")
	}

	out := &PreviewTableOutput{DatasetID: datasetID, Sheet: sheet}
	err := s.mgr.WithTables(datasetID, func(tables map[string]*table.Table) error {
		tbl, ok := tables[sheet]
		if !ok {
			return deckerr.Errorf(deckerr.InvalidSheet, "sheet %q not found", sheet)
		}
		total := tbl.NumRows()
		out.Meta.Total = total
		for _, col := range tbl.Columns() {
			out.Headers = append(out.Headers, col.Name)
		}
		for r := offset; r < total && r < offset+pageSize; r++ {
			row := make([]string, tbl.NumCols())
			for c := 0; c < tbl.NumCols(); c++ {
				row[c] = mapper.FormatValue(tbl.Value(r, c), tbl.Column(c).Type, deck.Format{})
			}
			out.Rows = append(out.Rows, row)
		}
		out.Meta.Returned = len(out.Rows)
		next := pagination.NextOffset(offset, len(out.Rows))
		if next < total {
			out.Meta.Truncated = true
			token, err := pagination.Encode(pagination.Cursor{
				Did: datasetID, S: sheet, Off: next, Ps: pageSize,
			})
			if err != nil {
				return err
			}
			out.Meta.NextCursor = token
		}
		return nil
	})
	if err != nil {
		if deckerr.CodeOf(err) != "" {
			return nil, err
		}
		return nil, deckerr.Wrap(deckerr.InvalidHandle, err, datasetID)
	}
	return out, nil
}

// --- profile_columns ---

// ColumnProfile summarizes a column's values.
type ColumnProfile struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	NonNull int      `json:"nonNull"`
	Nulls   int      `json:"nulls"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Mean    *float64 `json:"mean,omitempty"`
}

// ProfileColumnsInput defines parameters for column profiling.
type ProfileColumnsInput struct {
	DatasetID string `json:"dataset_id" validate:"required" jsonschema_description:"Dataset handle ID"`
	Sheet     string `json:"sheet" validate:"required" jsonschema_description:"Sheet name to profile"`
}

// ProfileColumnsOutput lists per-column profiles.
type ProfileColumnsOutput struct {
	DatasetID string          `json:"dataset_id"`
	Sheet     string          `json:"sheet"`
	Columns   []ColumnProfile `json:"columns"`
}

// ProfileColumns reports null counts and numeric summaries per column.
func (s *Service) ProfileColumns(ctx context.Context, in ProfileColumnsInput) (*ProfileColumnsOutput, error) {
	out := &ProfileColumnsOutput{DatasetID: in.DatasetID, Sheet: in.Sheet}
	err := s.mgr.WithTables(in.DatasetID, func(tables map[string]*table.Table) error {
		tbl, ok := tables[in.Sheet]
		if !ok {
			return deckerr.Errorf(deckerr.InvalidSheet, "sheet %q not found", in.Sheet)
		}
		for ci, col := range tbl.Columns() {
			p := ColumnProfile{Name: col.Name, Type: string(col.Type)}
			for r := 0; r < tbl.NumRows(); r++ {
				if tbl.Value(r, ci).Null {
					p.Nulls++
				} else {
					p.NonNull++
				}
			}
			switch col.Type {
			case table.Numeric, table.Currency, table.Percentage:
				if min, ok := mapper.ReduceColumn(tbl, col.Name, mapper.AggMin); ok && p.NonNull > 0 {
					max, _ := mapper.ReduceColumn(tbl, col.Name, mapper.AggMax)
					mean, _ := mapper.ReduceColumn(tbl, col.Name, mapper.AggMean)
					p.Min, p.Max, p.Mean = &min, &max, &mean
				}
			}
			out.Columns = append(out.Columns, p)
		}
		return nil
	})
	if err != nil {
		if deckerr.CodeOf(err) != "" {
			return nil, err
		}
		return nil, deckerr.Wrap(deckerr.InvalidHandle, err, in.DatasetID)
	}
	return out, nil
}

// --- validate_template ---

// ValidateTemplateInput defines parameters for template pre-flight.
type ValidateTemplateInput struct {
	Template deck.Template `json:"template" jsonschema_description:"Declarative deck template"`
	Width    float64       `json:"width,omitempty" jsonschema_description:"Surface width in surface units (default 720)"`
	Height   float64       `json:"height,omitempty" jsonschema_description:"Surface height in surface units (default 540)"`
}

// ValidateTemplateOutput lists structural defects. Empty means renderable.
type ValidateTemplateOutput struct {
	Valid   bool     `json:"valid"`
	Defects []string `json:"defects,omitempty"`
}

// ValidateTemplate runs the structural pre-flight without rendering.
func (s *Service) ValidateTemplate(ctx context.Context, in ValidateTemplateInput) (*ValidateTemplateOutput, error) {
	bounds := s.boundsFor(in.Width, in.Height)
	eng := compose.New(s.components, compose.WithLogger(s.log))
	defects := eng.Validate(&in.Template, bounds)
	return &ValidateTemplateOutput{Valid: len(defects) == 0, Defects: defects}, nil
}

// --- render_deck ---

// RenderDeckInput defines parameters for a full render pass.
type RenderDeckInput struct {
	DatasetID  string            `json:"dataset_id" validate:"required" jsonschema_description:"Dataset handle ID supplying the bound tables"`
	Template   deck.Template     `json:"template" jsonschema_description:"Declarative deck template"`
	OutputPath string            `json:"output_path" validate:"required,filepath_ext" jsonschema_description:"Allowed path for the rendered workbook"`
	Vars       map[string]string `json:"vars,omitempty" jsonschema_description:"Extra placeholder variables for text components"`
	Width      float64           `json:"width,omitempty"`
	Height     float64           `json:"height,omitempty"`
}

// RenderDiagnostic mirrors a composition diagnostic for the tool surface.
type RenderDiagnostic struct {
	SlideIndex     int    `json:"slideIndex"`
	ComponentIndex int    `json:"componentIndex"`
	Severity       string `json:"severity"`
	Code           string `json:"code"`
	Message        string `json:"message"`
}

// RenderDeckOutput reports the completed pass and its diagnostics.
type RenderDeckOutput struct {
	PassID      string             `json:"pass_id"`
	Slides      int                `json:"slides"`
	OutputPath  string             `json:"output_path"`
	Diagnostics []RenderDiagnostic `json:"diagnostics,omitempty"`
}

// RenderDeck resolves bindings, renders every slide, and writes the deck.
func (s *Service) RenderDeck(ctx context.Context, in RenderDeckInput) (*RenderDeckOutput, error) {
	if s.writer == nil {
		return nil, deckerr.E(deckerr.PermissionDenied, "deck writing is disabled")
	}
	outPath, err := s.writer.ValidateWritePath(in.OutputPath)
	if err != nil {
		return nil, deckerr.Wrap(deckerr.PermissionDenied, err, in.OutputPath)
	}

	bounds := s.boundsFor(in.Width, in.Height)
	started := time.Now()
	var result *compose.Result

	err = s.mgr.WithTables(in.DatasetID, func(tables map[string]*table.Table) error {
		w, err := xlsxdeck.NewWriter(bounds)
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()

		eng := compose.New(s.components,
			compose.WithLogger(s.log),
			compose.WithVars(in.Vars),
		)
		result, err = eng.Render(&in.Template, tables, w)
		if err != nil {
			return err
		}
		return w.SaveAs(outPath)
	})
	if err != nil {
		if deckerr.CodeOf(err) != "" {
			return nil, err
		}
		return nil, deckerr.Wrap(deckerr.InvalidHandle, err, in.DatasetID)
	}

	s.hooks.OnRenderPass(result.PassID, result.Slides, len(result.Diagnostics), time.Since(started))

	out := &RenderDeckOutput{PassID: result.PassID, Slides: result.Slides, OutputPath: outPath}
	for _, d := range result.Diagnostics {
		out.Diagnostics = append(out.Diagnostics, RenderDiagnostic{
			SlideIndex:     d.SlideIndex,
			ComponentIndex: d.ComponentIndex,
			Severity:       string(d.Severity),
			Code:           string(d.Code),
			Message:        d.Message,
		})
	}
	return out, nil
}

// --- aggregate_periods ---

// PeriodInput names one historical snapshot, oldest first.
type PeriodInput struct {
	Label     string `json:"label" validate:"required" jsonschema_description:"Period label, e.g. 2026-Q1"`
	DatasetID string `json:"dataset_id" validate:"required" jsonschema_description:"Dataset handle holding the period's data"`
	Sheet     string `json:"sheet" validate:"required" jsonschema_description:"Sheet within the dataset"`
	Start     string `json:"start,omitempty" jsonschema_description:"Period start date (RFC 3339 or 2006-01-02)"`
	End       string `json:"end,omitempty" jsonschema_description:"Period end date"`
}

// AggregatePeriodsInput defines parameters for cross-period aggregation.
type AggregatePeriodsInput struct {
	Periods []PeriodInput   `json:"periods" validate:"required,min=1,dive" jsonschema_description:"Chronological snapshots, oldest first"`
	Metrics []period.Metric `json:"metrics" validate:"required,min=1,dive" jsonschema_description:"Named metric formulas: column + aggregation op"`
}

// AggregatePeriodsOutput exposes the aggregation as a new dataset plus
// per-metric trends and latest deltas.
type AggregatePeriodsOutput struct {
	DatasetID   string                  `json:"dataset_id" jsonschema_description:"Handle of the synthetic period table"`
	Sheet       string                  `json:"sheet"`
	Sets        []period.MetricSet      `json:"sets"`
	Trends      map[string]period.Trend `json:"trends"`
	Deltas      map[string]period.Delta `json:"deltas"`
	Diagnostics []period.Diagnostic     `json:"diagnostics,omitempty"`
}

// AggregatePeriods computes metrics, trends, and deltas across the given
// snapshots and adopts the synthetic table as a new dataset handle.
func (s *Service) AggregatePeriods(ctx context.Context, in AggregatePeriodsInput) (*AggregatePeriodsOutput, error) {
	periods := make([]period.Period, 0, len(in.Periods))
	for _, pi := range in.Periods {
		p := period.Period{Label: pi.Label}
		var perr error
		if p.Start, perr = parseDate(pi.Start); perr != nil {
			return nil, deckerr.Errorf(deckerr.Validation, "period %q: bad start date %q", pi.Label, pi.Start)
		}
		if p.End, perr = parseDate(pi.End); perr != nil {
			return nil, deckerr.Errorf(deckerr.Validation, "period %q: bad end date %q", pi.Label, pi.End)
		}
		err := s.mgr.WithTables(pi.DatasetID, func(tables map[string]*table.Table) error {
			tbl, ok := tables[pi.Sheet]
			if !ok {
				return deckerr.Errorf(deckerr.InvalidSheet, "period %q: sheet %q not found", pi.Label, pi.Sheet)
			}
			p.Table = tbl
			return nil
		})
		if err != nil {
			if deckerr.CodeOf(err) != "" {
				return nil, err
			}
			return nil, deckerr.Wrap(deckerr.InvalidHandle, err, pi.DatasetID)
		}
		periods = append(periods, p)
	}

	res, err := s.agg.Aggregate(periods, in.Metrics)
	if err != nil {
		return nil, err
	}

	id, err := s.mgr.Adopt(ctx, map[string]*table.Table{res.Table.Name(): res.Table})
	if err != nil {
		return nil, err
	}
	return &AggregatePeriodsOutput{
		DatasetID:   id,
		Sheet:       res.Table.Name(),
		Sets:        res.Sets,
		Trends:      res.Trends,
		Deltas:      res.Deltas,
		Diagnostics: res.Diagnostics,
	}, nil
}

func (s *Service) boundsFor(w, h float64) surface.Bounds {
	b := s.bounds
	if w > 0 {
		b.Width = w
	}
	if h > 0 {
		b.Height = h
	}
	return b
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", v)
}
