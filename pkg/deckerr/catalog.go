package deckerr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Code defines a canonical error code used across the composition pipeline
// and the MCP tool surface.
type Code string

const (
	// Template & Binding
	Structural         Code = "STRUCTURAL"
	UnsatisfiedBinding Code = "UNSATISFIED_BINDING"
	RenderSurface      Code = "RENDER_SURFACE"
	AggregationGap     Code = "AGGREGATION_GAP"

	// Validation & Input
	Validation    Code = "VALIDATION"
	InvalidHandle Code = "INVALID_HANDLE"
	InvalidSheet  Code = "INVALID_SHEET"
	CursorInvalid Code = "CURSOR_INVALID"

	// Resource & Limits
	BusyResource Code = "BUSY_RESOURCE"
	Timeout      Code = "TIMEOUT"

	// IO & Formats
	OpenFailed        Code = "OPEN_FAILED"
	RenderFailed      Code = "RENDER_FAILED"
	WriteFailed       Code = "WRITE_FAILED"
	UnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	PermissionDenied  Code = "PERMISSION_DENIED"
)

// Entry documents a code's standard message, fatality, and next steps.
// Fatal codes abort a render pass before any output is produced; non-fatal
// codes become per-component diagnostics and the pass continues.
type Entry struct {
	Code      Code
	Message   string
	Fatal     bool
	NextSteps []string
}

var catalog = map[Code]Entry{
	Structural:         {Code: Structural, Message: "template failed structural validation", Fatal: true, NextSteps: []string{"Fix the listed defects and re-render", "Run validate_template for the full defect list"}},
	UnsatisfiedBinding: {Code: UnsatisfiedBinding, Message: "data binding references a column missing from the bound table", Fatal: false, NextSteps: []string{"Check binding column names against the table headers", "Re-import the data or update the template binding"}},
	RenderSurface:      {Code: RenderSurface, Message: "output surface rejected a draw instruction", Fatal: false, NextSteps: []string{"Verify surface bounds and backend capabilities", "Retry the whole pass if the backend fault was transient"}},
	AggregationGap:     {Code: AggregationGap, Message: "a metric column is missing from one historical period", Fatal: false, NextSteps: []string{"The period value was defaulted to zero", "Check the source table for that period"}},

	Validation:    {Code: Validation, Message: "invalid inputs", Fatal: true, NextSteps: []string{"Correct the inputs per schema and retry"}},
	InvalidHandle: {Code: InvalidHandle, Message: "dataset handle not found or expired", Fatal: true, NextSteps: []string{"Reopen the dataset via path and retry"}},
	InvalidSheet:  {Code: InvalidSheet, Message: "sheet not found", Fatal: true, NextSteps: []string{"Call list_structure to verify sheet names", "Check case and spacing"}},
	CursorInvalid: {Code: CursorInvalid, Message: "cursor is invalid for current context", Fatal: true, NextSteps: []string{"Restart pagination from the first page"}},

	BusyResource: {Code: BusyResource, Message: "concurrent request limit reached", Fatal: true, NextSteps: []string{"Retry after a short delay"}},
	Timeout:      {Code: Timeout, Message: "operation exceeded configured time limit", Fatal: true, NextSteps: []string{"Reduce template or data size, or increase the timeout"}},

	OpenFailed:        {Code: OpenFailed, Message: "failed to open dataset", Fatal: true, NextSteps: []string{"Verify path, permissions, and format"}},
	RenderFailed:      {Code: RenderFailed, Message: "render pass failed", Fatal: true, NextSteps: []string{"Inspect the returned defects or diagnostics"}},
	WriteFailed:       {Code: WriteFailed, Message: "failed to write output document", Fatal: true, NextSteps: []string{"Verify the output path is in an allowed directory"}},
	UnsupportedFormat: {Code: UnsupportedFormat, Message: "unsupported workbook format", Fatal: true, NextSteps: []string{"Convert to .xlsx and retry"}},
	PermissionDenied:  {Code: PermissionDenied, Message: "insufficient permissions to access path", Fatal: true, NextSteps: []string{"Choose a path inside an allowed directory"}},
}

// Error is the coded error type carried through the pipeline. Defects holds
// the full list of structural defects when Code is STRUCTURAL.
type Error struct {
	Code    Code
	Message string
	Defects []string
	cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		if entry, ok := catalog[e.Code]; ok {
			msg = entry.Message
		}
	}
	if len(e.Defects) > 0 {
		return fmt.Sprintf("%s: %s (%s)", e.Code, msg, strings.Join(e.Defects, "; "))
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error { return e.cause }

// E constructs a coded error with a message override.
func E(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf constructs a coded error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a coded error.
func Wrap(code Code, cause error, message string) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// WithDefects constructs a coded error carrying a defect list.
func WithDefects(code Code, defects []string) *Error {
	return &Error{Code: code, Defects: defects}
}

// CodeOf extracts the code from an error chain, or empty when uncoded.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsFatal reports whether a code aborts a render pass per the catalog.
// Unknown codes are treated as fatal.
func IsFatal(code Code) bool {
	if entry, ok := catalog[code]; ok {
		return entry.Fatal
	}
	return true
}

// normalize builds a standard error string including next steps for MCP
// clients that surface only a message string. Format: "CODE: message"
// followed by a guidance tail.
func normalize(code Code, msg string) string {
	base := strings.TrimSpace(msg)
	e, ok := catalog[code]
	if !ok {
		if base == "" {
			return string(code)
		}
		return fmt.Sprintf("%s: %s", string(code), base)
	}
	if base == "" {
		base = e.Message
	}
	guidance := ""
	if len(e.NextSteps) > 0 {
		guidance = " | nextSteps: " + strings.Join(e.NextSteps, "; ")
	}
	return fmt.Sprintf("%s: %s%s", e.Code, base, guidance)
}

// Result returns an MCP error result for a given code and optional message override.
func Result(code Code, message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, message))
}

// Resultf formats details and returns an MCP error result for the code.
func Resultf(code Code, format string, args ...any) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, fmt.Sprintf(format, args...)))
}

// FromError maps a coded pipeline error to an MCP error result, falling
// back to VALIDATION for uncoded errors.
func FromError(err error) *mcp.CallToolResult {
	if err == nil {
		return mcp.NewToolResultError(normalize(Validation, ""))
	}
	var e *Error
	if errors.As(err, &e) {
		msg := e.Message
		if len(e.Defects) > 0 {
			msg = strings.TrimSpace(msg + " " + strings.Join(e.Defects, "; "))
		}
		return mcp.NewToolResultError(normalize(e.Code, msg))
	}
	return mcp.NewToolResultError(normalize(Validation, err.Error()))
}
