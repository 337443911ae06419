// Package deck defines the declarative template model consumed by the
// composition engine: ordered slides holding positioned, data-bound
// component configurations plus shared branding. The types are plain
// values with no behavior; field names and nesting form the stable
// contract external template editors must honor.
package deck

// Template is the reusable document definition. ID is unique and stable
// across edits; slide order defines output page order.
type Template struct {
	ID       string   `json:"id" validate:"required"`
	Name     string   `json:"name" validate:"required"`
	Branding Branding `json:"branding"`
	Slides   []Slide  `json:"slides" validate:"dive"`
}

// Branding carries shared styling applied across all slides.
type Branding struct {
	Colors []string `json:"colors,omitempty" validate:"omitempty,dive,hexcolor"`
	Fonts  Fonts    `json:"fonts"`
	Logo   string   `json:"logo,omitempty"`
}

// Fonts names the heading and body typefaces.
type Fonts struct {
	Heading string `json:"heading,omitempty"`
	Body    string `json:"body,omitempty"`
}

// Slide is one output page. Index is unique within a template and defines
// render order; a slide with zero components renders an empty page.
type Slide struct {
	Index      int               `json:"index" validate:"gte=0"`
	Title      string            `json:"title"`
	Layout     string            `json:"layout,omitempty"`
	Components []ComponentConfig `json:"components" validate:"dive"`
}

// ComponentConfig declares one renderable unit on a slide. Kind selects a
// registered component implementation; Options carries kind-specific
// settings (chart_type, text content, image path, summary mode) and Style
// carries visual styling.
type ComponentConfig struct {
	Kind     string            `json:"kind" validate:"required"`
	Position Position          `json:"position"`
	Binding  Binding           `json:"data_binding"`
	Options  map[string]string `json:"options,omitempty"`
	Style    map[string]string `json:"style,omitempty"`
}

// Position places a component on the target surface in surface units.
// Values are non-negative and the rectangle must fit the surface bounds;
// violations are validation errors, never silently clamped.
type Position struct {
	Left   float64 `json:"left" validate:"gte=0"`
	Top    float64 `json:"top" validate:"gte=0"`
	Width  float64 `json:"width" validate:"gt=0"`
	Height float64 `json:"height" validate:"gt=0"`
}

// Binding maps a component's logical data roles to column names in a
// bound Data Table. Every referenced column must exist at render time or
// the binding is unsatisfied.
type Binding struct {
	Sheet     string   `json:"sheet,omitempty"`
	Columns   []string `json:"columns,omitempty"`
	XAxis     string   `json:"x_axis,omitempty"`
	YAxis     []string `json:"y_axis,omitempty"`
	SortBy    string   `json:"sort_by,omitempty"`
	SortDir   string   `json:"sort_direction,omitempty" validate:"omitempty,oneof=ascending descending"`
	Filters   []Filter `json:"filters,omitempty" validate:"dive"`
	GroupBy   string   `json:"group_by,omitempty"`
	Aggregate string   `json:"aggregate,omitempty" validate:"omitempty,oneof=sum mean count min max"`
	Format    Format   `json:"format"`
}

// Filter is one predicate in a binding's AND-combined filter chain.
// Expression predicates carry an expr-lang expression instead of a
// column/value pair.
type Filter struct {
	Column     string `json:"column,omitempty"`
	Op         string `json:"op" validate:"required,oneof=equals not_equals greater_than less_than contains expression"`
	Value      string `json:"value,omitempty"`
	Expression string `json:"expression,omitempty"`
}

// Format controls purely presentational rendering of resolved values. It
// never alters sort or filter semantics, which operate on normalized data.
type Format struct {
	Decimals       int    `json:"decimals,omitempty" validate:"gte=0,lte=9"`
	ThousandsSep   bool   `json:"thousands_separator,omitempty"`
	CurrencySymbol string `json:"currency_symbol,omitempty"`
	DateFormat     string `json:"date_format,omitempty"`
}

// IsZero reports whether the binding declares no data requirements at
// all, as with purely static text or image components.
func (b Binding) IsZero() bool {
	return b.Sheet == "" && len(b.Columns) == 0 && b.XAxis == "" && len(b.YAxis) == 0 &&
		b.SortBy == "" && len(b.Filters) == 0 && b.GroupBy == "" && b.Aggregate == ""
}

// ReferencedColumns lists every column name the binding mentions, in role
// order. Expression filters reference columns inside the expression text
// and are resolved at evaluation time instead.
func (b Binding) ReferencedColumns() []string {
	var names []string
	names = append(names, b.Columns...)
	if b.XAxis != "" {
		names = append(names, b.XAxis)
	}
	names = append(names, b.YAxis...)
	if b.SortBy != "" {
		names = append(names, b.SortBy)
	}
	if b.GroupBy != "" {
		names = append(names, b.GroupBy)
	}
	for _, f := range b.Filters {
		if f.Op != "expression" && f.Column != "" {
			names = append(names, f.Column)
		}
	}
	return names
}
