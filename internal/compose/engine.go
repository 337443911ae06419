// Package compose walks a template, resolves each component's data
// binding, and renders the assembled document against a target surface.
// A render pass moves through Loaded → Validated → Rendering →
// Completed | Failed: structural defects fail the whole pass before any
// rendering, while runtime data and surface faults are isolated to the
// owning component and reported as diagnostics.
package compose

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TurtleWithGlasses/deckgen/internal/component"
	"github.com/TurtleWithGlasses/deckgen/internal/mapper"
	"github.com/TurtleWithGlasses/deckgen/pkg/deck"
	"github.com/TurtleWithGlasses/deckgen/pkg/deckerr"
	"github.com/TurtleWithGlasses/deckgen/pkg/surface"
	"github.com/TurtleWithGlasses/deckgen/pkg/table"
	"github.com/TurtleWithGlasses/deckgen/pkg/validation"
)

// Severity grades a diagnostic. A completed pass only carries warnings;
// fatal problems abort before rendering and never become diagnostics.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic records one isolated problem from a render pass.
// ComponentIndex is -1 for slide-level entries.
type Diagnostic struct {
	SlideIndex     int          `json:"slideIndex"`
	ComponentIndex int          `json:"componentIndex"`
	Severity       Severity     `json:"severity"`
	Code           deckerr.Code `json:"code"`
	Message        string       `json:"message"`
}

// Result pairs a completed pass with its diagnostics list. The rendered
// document lives on the surface the caller supplied.
type Result struct {
	PassID      string       `json:"passId"`
	Slides      int          `json:"slides"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a logger for per-component diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithRules sets processing defaults applied to every binding.
func WithRules(r mapper.Rules) Option {
	return func(e *Engine) { e.rules = r }
}

// WithClock fixes the clock used for the {date} substitution variable,
// keeping repeated renders bit-identical in tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithVars adds caller substitution variables (e.g. a period label from
// the aggregator) available to text components.
func WithVars(vars map[string]string) Option {
	return func(e *Engine) {
		for k, v := range vars {
			e.vars[k] = v
		}
	}
}

// Engine renders templates. It holds no per-pass state: independent
// render requests may run in parallel on separate engines or the same
// one, since the template and tables are only borrowed for one pass.
type Engine struct {
	registry *component.Registry
	resolver *mapper.Resolver
	rules    mapper.Rules
	vars     map[string]string
	log      zerolog.Logger
	now      func() time.Time
}

// New constructs an Engine around an explicit component registry.
func New(reg *component.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry: reg,
		vars:     map[string]string{},
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.resolver = mapper.NewResolver(e.log)
	return e
}

// Validate runs the pre-flight structural check and returns every defect
// found: schema violations, duplicate slide indices, unknown component
// kinds, and out-of-bounds geometry. An empty list means the template
// may render.
func (e *Engine) Validate(tpl *deck.Template, bounds surface.Bounds) []string {
	var defects []string
	if msg := validation.ValidateStruct(tpl); msg != "" {
		defects = append(defects, msg)
	}

	seen := map[int]bool{}
	for _, slide := range tpl.Slides {
		if seen[slide.Index] {
			defects = append(defects, fmt.Sprintf("slide index %d is duplicated", slide.Index))
		}
		seen[slide.Index] = true

		for ci, cfg := range slide.Components {
			factory, ok := e.registry.Lookup(cfg.Kind)
			if !ok {
				defects = append(defects, fmt.Sprintf("slide %d component %d: unknown kind %q", slide.Index, ci, cfg.Kind))
				continue
			}
			inst, err := factory(cfg, component.Env{Branding: tpl.Branding})
			if err != nil {
				defects = append(defects, fmt.Sprintf("slide %d component %d: %v", slide.Index, ci, err))
				continue
			}
			for _, d := range inst.Validate(bounds) {
				defects = append(defects, fmt.Sprintf("slide %d component %d: %s", slide.Index, ci, d))
			}
		}
	}
	return defects
}

// Render performs one full pass. The template and tables are read-only
// borrows; the engine retains neither beyond the call. On structural
// failure it returns a STRUCTURAL error carrying the full defect list
// and draws nothing. A completed pass always returns the diagnostics
// alongside the document, so the caller decides whether "succeeded with
// warnings" is acceptable.
func (e *Engine) Render(tpl *deck.Template, tables map[string]*table.Table, sfc surface.Surface) (*Result, error) {
	// Loaded → Validated
	if defects := e.Validate(tpl, sfc.Bounds()); len(defects) > 0 {
		return nil, deckerr.WithDefects(deckerr.Structural, defects)
	}

	// Validated → Rendering. Slides render in index order; diagnostics
	// order follows render order and is observable, so no reordering
	// after this point.
	slides := append([]deck.Slide(nil), tpl.Slides...)
	sort.SliceStable(slides, func(i, j int) bool { return slides[i].Index < slides[j].Index })

	result := &Result{PassID: uuid.NewString(), Slides: len(slides)}
	for _, slide := range slides {
		if err := sfc.BeginSlide(slide.Index, slide.Title, slide.Layout); err != nil {
			result.Diagnostics = append(result.Diagnostics, Diagnostic{
				SlideIndex:     slide.Index,
				ComponentIndex: -1,
				Severity:       SeverityWarning,
				Code:           deckerr.RenderSurface,
				Message:        fmt.Sprintf("begin slide: %v", err),
			})
			continue
		}
		env := component.Env{
			Branding: tpl.Branding,
			Vars:     e.slideVars(tpl, slide),
		}
		for ci, cfg := range slide.Components {
			if diag := e.renderComponent(cfg, env, tables, sfc); diag != nil {
				d := *diag
				d.SlideIndex = slide.Index
				d.ComponentIndex = ci
				result.Diagnostics = append(result.Diagnostics, d)
				e.log.Warn().
					Int("slide", slide.Index).
					Int("component", ci).
					Str("kind", cfg.Kind).
					Str("code", string(d.Code)).
					Msg(d.Message)
			}
		}
	}

	// Rendering → Completed
	return result, nil
}

// renderComponent resolves and renders one component, converting every
// failure into a diagnostic so the slide continues.
func (e *Engine) renderComponent(cfg deck.ComponentConfig, env component.Env, tables map[string]*table.Table, sfc surface.Surface) *Diagnostic {
	factory, _ := e.registry.Lookup(cfg.Kind)
	inst, err := factory(cfg, env)
	if err != nil {
		return &Diagnostic{Severity: SeverityWarning, Code: deckerr.RenderFailed, Message: err.Error()}
	}

	var slice *mapper.Slice
	if !cfg.Binding.IsZero() {
		tbl, err := pickTable(cfg.Binding, tables)
		if err != nil {
			return &Diagnostic{Severity: SeverityWarning, Code: deckerr.UnsatisfiedBinding, Message: err.Error()}
		}
		slice, err = e.resolver.Resolve(cfg.Binding, tbl, e.rules)
		if err != nil {
			code := deckerr.CodeOf(err)
			if code == "" {
				code = deckerr.UnsatisfiedBinding
			}
			return &Diagnostic{Severity: SeverityWarning, Code: code, Message: err.Error()}
		}
	}

	if err := inst.Render(sfc, slice); err != nil {
		return &Diagnostic{Severity: SeverityWarning, Code: deckerr.RenderSurface, Message: err.Error()}
	}
	return nil
}

// pickTable selects the bound table: an explicit sheet name, or the sole
// supplied table when the binding leaves it implicit.
func pickTable(b deck.Binding, tables map[string]*table.Table) (*table.Table, error) {
	if b.Sheet != "" {
		tbl, ok := tables[b.Sheet]
		if !ok {
			return nil, fmt.Errorf("binding names sheet %q which was not supplied", b.Sheet)
		}
		return tbl, nil
	}
	if len(tables) == 1 {
		for _, tbl := range tables {
			return tbl, nil
		}
	}
	return nil, fmt.Errorf("binding must name a sheet when %d tables are supplied", len(tables))
}

func (e *Engine) slideVars(tpl *deck.Template, slide deck.Slide) map[string]string {
	vars := map[string]string{
		"report_name": tpl.Name,
		"slide_title": slide.Title,
		"date":        e.now().Format("2006-01-02"),
	}
	for k, v := range e.vars {
		vars[k] = v
	}
	return vars
}
