// Package component holds the renderable component kinds (table, chart,
// text, image, summary) and the registry that dispatches them by the
// string tag stored in a component configuration. A component validates
// its own configuration and renders an already-resolved data slice
// against a target surface; it never touches raw tables.
package component

import (
	"fmt"
	"sort"
	"sync"

	"github.com/TurtleWithGlasses/deckgen/internal/mapper"
	"github.com/TurtleWithGlasses/deckgen/pkg/deck"
	"github.com/TurtleWithGlasses/deckgen/pkg/surface"
)

// Env carries the render-pass context a component may draw defaults
// from: shared branding, and deterministic substitution variables
// (report_name, slide_title, date, period, row_count).
type Env struct {
	Branding deck.Branding
	Vars     map[string]string
}

// Component is the uniform capability set every kind implements.
// Validate returns human-readable defects and never panics; Render is
// deterministic for identical inputs against a fresh surface.
type Component interface {
	Validate(bounds surface.Bounds) []string
	Render(s surface.Surface, data *mapper.Slice) error
}

// Factory builds a component instance from its configuration and the
// render-pass environment.
type Factory func(cfg deck.ComponentConfig, env Env) (Component, error)

// Registry maps kind tags to factories. It is an explicit object passed
// into the composition engine at construction, so tests can run isolated
// registries and third parties can add kinds without touching the engine.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register stores a factory under a kind tag, replacing any previous one.
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[kind] = f
}

// Lookup resolves a kind tag when registered.
func (r *Registry) Lookup(kind string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[kind]
	return f, ok
}

// Kinds returns a stable-sorted list of registered kind tags.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Builtin returns a registry pre-populated with the built-in kinds.
func Builtin() *Registry {
	r := NewRegistry()
	r.Register("table", NewTable)
	r.Register("chart", NewChart)
	r.Register("text", NewText)
	r.Register("image", NewImage)
	r.Register("summary", NewSummary)
	return r
}

// rect converts a configured position into a surface rectangle.
func rect(p deck.Position) surface.Rect {
	return surface.Rect{Left: p.Left, Top: p.Top, Width: p.Width, Height: p.Height}
}

// positionDefects returns geometry defects shared by every kind: values
// must be non-negative and the rectangle must fit the surface bounds.
// Violations are reported, never clamped.
func positionDefects(kind string, p deck.Position, b surface.Bounds) []string {
	var defects []string
	if p.Left < 0 || p.Top < 0 {
		defects = append(defects, fmt.Sprintf("%s: position offsets must be non-negative (left=%g top=%g)", kind, p.Left, p.Top))
	}
	if p.Width <= 0 || p.Height <= 0 {
		defects = append(defects, fmt.Sprintf("%s: position extent must be positive (width=%g height=%g)", kind, p.Width, p.Height))
	}
	if p.Left+p.Width > b.Width || p.Top+p.Height > b.Height {
		defects = append(defects, fmt.Sprintf("%s: position %gx%g at (%g,%g) exceeds surface bounds %gx%g",
			kind, p.Width, p.Height, p.Left, p.Top, b.Width, b.Height))
	}
	return defects
}

// brandColor returns the nth branding color, or empty when unset.
func brandColor(b deck.Branding, i int) string {
	if i < len(b.Colors) {
		return b.Colors[i]
	}
	return ""
}
