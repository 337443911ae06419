package component

import (
	"strings"

	"github.com/TurtleWithGlasses/deckgen/internal/mapper"
	"github.com/TurtleWithGlasses/deckgen/pkg/deck"
	"github.com/TurtleWithGlasses/deckgen/pkg/surface"
)

// Image places a picture referenced by path. The special path "{logo}"
// resolves to the template branding logo.
type Image struct {
	cfg deck.ComponentConfig
	env Env
}

// NewImage is the factory for the "image" kind.
func NewImage(cfg deck.ComponentConfig, env Env) (Component, error) {
	return &Image{cfg: cfg, env: env}, nil
}

func (c *Image) path() string {
	p := strings.TrimSpace(c.cfg.Options["path"])
	if p == "{logo}" {
		return c.env.Branding.Logo
	}
	return p
}

func (c *Image) Validate(bounds surface.Bounds) []string {
	defects := positionDefects("image", c.cfg.Position, bounds)
	if c.path() == "" {
		defects = append(defects, "image: options.path must reference a picture (or {logo} with branding.logo set)")
	}
	return defects
}

func (c *Image) Render(s surface.Surface, _ *mapper.Slice) error {
	return s.DrawImage(rect(c.cfg.Position), surface.ImageSpec{
		Path:    c.path(),
		AltText: c.cfg.Options["alt_text"],
	})
}
