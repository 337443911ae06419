package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/TurtleWithGlasses/deckgen/pkg/deckerr"
	"github.com/TurtleWithGlasses/deckgen/pkg/validation"
)

// RegisterTools defines the tool schemas and binds them to the Service
// handlers. Every handler validates its typed input, maps pipeline
// errors to coded tool errors, and attaches a concise text summary for
// clients that ignore structured output.
func RegisterTools(s *server.MCPServer, reg *Registry, svc *Service) {
	openTool := mcp.NewTool(
		"open_dataset",
		mcp.WithDescription("Open an Excel workbook, infer column types per sheet, and return a dataset handle. Sheets become typed tables (numeric, currency, percentage, date, categorical, text) usable by previews, profiling, and deck rendering."),
		mcp.WithInputSchema[OpenDatasetInput](),
		mcp.WithOutputSchema[OpenDatasetOutput](),
	)
	s.AddTool(openTool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in OpenDatasetInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		out, err := svc.OpenDataset(ctx, in)
		if err != nil {
			return deckerr.FromError(err), nil
		}
		summary := fmt.Sprintf("dataset_id=%s sheets=%s", out.DatasetID, strings.Join(out.Sheets, ","))
		return structured(out, summary), nil
	}))
	reg.Register(openTool)

	closeTool := mcp.NewTool(
		"close_dataset",
		mcp.WithDescription("Close a previously opened dataset handle and release its capacity slot."),
		mcp.WithInputSchema[CloseDatasetInput](),
		mcp.WithOutputSchema[CloseDatasetOutput](),
	)
	s.AddTool(closeTool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in CloseDatasetInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		out, err := svc.CloseDataset(ctx, in)
		if err != nil {
			return deckerr.FromError(err), nil
		}
		return structured(out, "closed"), nil
	}))
	reg.Register(closeTool)

	structureTool := mcp.NewTool(
		"list_structure",
		mcp.WithDescription("List every sheet of an open dataset with its row count and typed columns. Use this to ground template bindings before rendering."),
		mcp.WithInputSchema[ListStructureInput](),
		mcp.WithOutputSchema[ListStructureOutput](),
	)
	s.AddTool(structureTool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in ListStructureInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		out, err := svc.ListStructure(ctx, in)
		if err != nil {
			return deckerr.FromError(err), nil
		}
		return structured(out, fmt.Sprintf("sheets=%d", len(out.Sheets))), nil
	}))
	reg.Register(structureTool)

	previewTool := mcp.NewTool(
		"preview_table",
		mcp.WithDescription("Return one formatted page of a typed table. Cursor-first pagination: pass the returned nextCursor to resume; the cursor binds dataset, sheet, offset, and page size."),
		mcp.WithInputSchema[PreviewTableInput](),
		mcp.WithOutputSchema[PreviewTableOutput](),
	)
	s.AddTool(previewTool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in PreviewTableInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		out, err := svc.PreviewTable(ctx, in)
		if err != nil {
			return deckerr.FromError(err), nil
		}
		summary := fmt.Sprintf("rows=%d/%d truncated=%v", out.Meta.Returned, out.Meta.Total, out.Meta.Truncated)
		return structured(out, summary), nil
	}))
	reg.Register(previewTool)

	profileTool := mcp.NewTool(
		"profile_columns",
		mcp.WithDescription("Profile a sheet's columns: inferred type, null counts, and min/max/mean for numeric-like columns."),
		mcp.WithInputSchema[ProfileColumnsInput](),
		mcp.WithOutputSchema[ProfileColumnsOutput](),
	)
	s.AddTool(profileTool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in ProfileColumnsInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		out, err := svc.ProfileColumns(ctx, in)
		if err != nil {
			return deckerr.FromError(err), nil
		}
		return structured(out, fmt.Sprintf("columns=%d", len(out.Columns))), nil
	}))
	reg.Register(profileTool)

	validateTool := mcp.NewTool(
		"validate_template",
		mcp.WithDescription("Run the structural pre-flight on a deck template without rendering: schema violations, duplicate slide indices, unknown component kinds, and out-of-bounds geometry. Returns every defect found."),
		mcp.WithInputSchema[ValidateTemplateInput](),
		mcp.WithOutputSchema[ValidateTemplateOutput](),
	)
	s.AddTool(validateTool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in ValidateTemplateInput) (*mcp.CallToolResult, error) {
		out, err := svc.ValidateTemplate(ctx, in)
		if err != nil {
			return deckerr.FromError(err), nil
		}
		summary := "valid"
		if !out.Valid {
			summary = fmt.Sprintf("defects=%d", len(out.Defects))
		}
		res := structured(out, summary)
		if len(out.Defects) > 0 {
			res.Content = []mcp.Content{mcp.NewTextContent(summary + "\n- " + strings.Join(out.Defects, "\n- "))}
		}
		return res, nil
	}))
	reg.Register(validateTool)

	renderTool := mcp.NewTool(
		"render_deck",
		mcp.WithDescription("Render a deck template against an open dataset and write the result. Structural defects fail the pass before any rendering; data and surface faults are isolated per component and returned as diagnostics alongside the completed document."),
		mcp.WithInputSchema[RenderDeckInput](),
		mcp.WithOutputSchema[RenderDeckOutput](),
	)
	s.AddTool(renderTool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in RenderDeckInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		out, err := svc.RenderDeck(ctx, in)
		if err != nil {
			return deckerr.FromError(err), nil
		}
		summary := fmt.Sprintf("pass_id=%s slides=%d diagnostics=%d", out.PassID, out.Slides, len(out.Diagnostics))
		return structured(out, summary), nil
	}))
	reg.Register(renderTool)

	aggTool := mcp.NewTool(
		"aggregate_periods",
		mcp.WithDescription("Aggregate metrics across chronological dataset snapshots: per-period values, trend direction with normalized slope, and latest period-over-period deltas. The result is adopted as a synthetic dataset so templates can bind it like any other table."),
		mcp.WithInputSchema[AggregatePeriodsInput](),
		mcp.WithOutputSchema[AggregatePeriodsOutput](),
	)
	s.AddTool(aggTool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in AggregatePeriodsInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		out, err := svc.AggregatePeriods(ctx, in)
		if err != nil {
			return deckerr.FromError(err), nil
		}
		summary := fmt.Sprintf("dataset_id=%s periods=%d gaps=%d", out.DatasetID, len(out.Sets), len(out.Diagnostics))
		return structured(out, summary), nil
	}))
	reg.Register(aggTool)
}

func structured(out any, summary string) *mcp.CallToolResult {
	res := mcp.NewToolResultStructured(out, summary)
	res.Content = []mcp.Content{mcp.NewTextContent(summary)}
	return res
}
