package component

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/TurtleWithGlasses/deckgen/internal/mapper"
	"github.com/TurtleWithGlasses/deckgen/pkg/deck"
	"github.com/TurtleWithGlasses/deckgen/pkg/surface"
)

var placeholderRe = regexp.MustCompile(`\{[a-z_]+\}`)

// Text renders static or templated text. Placeholders like
// {report_name}, {slide_title}, {date}, {period}, and {row_count} are
// substituted from the render-pass environment by strict map lookup;
// unresolved placeholders are stripped. There is no free-form generation.
type Text struct {
	cfg deck.ComponentConfig
	env Env
}

// NewText is the factory for the "text" kind.
func NewText(cfg deck.ComponentConfig, env Env) (Component, error) {
	return &Text{cfg: cfg, env: env}, nil
}

func (c *Text) Validate(bounds surface.Bounds) []string {
	defects := positionDefects("text", c.cfg.Position, bounds)
	if strings.TrimSpace(c.cfg.Options["text"]) == "" {
		defects = append(defects, "text: options.text must carry the content")
	}
	return defects
}

func (c *Text) Render(s surface.Surface, data *mapper.Slice) error {
	content := c.cfg.Options["text"]
	vars := make(map[string]string, len(c.env.Vars)+1)
	for k, v := range c.env.Vars {
		vars[k] = v
	}
	if data != nil {
		vars["row_count"] = fmt.Sprintf("%d", data.NumRows())
	}
	for k, v := range vars {
		content = strings.ReplaceAll(content, "{"+k+"}", v)
	}
	content = strings.TrimSpace(placeholderRe.ReplaceAllString(content, ""))

	size := 18.0
	bold := false
	if c.cfg.Style["role"] == "heading" {
		size = 28.0
		bold = true
	}
	font := c.env.Branding.Fonts.Body
	if bold && c.env.Branding.Fonts.Heading != "" {
		font = c.env.Branding.Fonts.Heading
	}

	return s.DrawText(rect(c.cfg.Position),
		[]surface.TextRun{{Text: content, Bold: bold, Size: size}},
		surface.TextStyle{
			FontFamily: font,
			Color:      c.cfg.Style["color"],
			Align:      c.cfg.Style["align"],
		})
}
