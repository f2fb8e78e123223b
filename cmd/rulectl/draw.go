package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/inamate/tripwire/internal/editor"
	"github.com/inamate/tripwire/internal/export"
	"github.com/inamate/tripwire/internal/geometry"
	"github.com/inamate/tripwire/internal/rules"
)

// drawCmd places points by replaying clicks through an editor session, then
// saves the shape, which redeploys the camera's rule.
type drawCmd struct {
	*root
	fs     *flag.FlagSet
	mode   string
	size   sizeFlag
	camera string
	points []geometry.Point
}

func (c *drawCmd) Program() string { return c.subcommand("draw") }
func (c *drawCmd) Usage() string {
	return "<camera-id> x,y x,y ...\nPoints are pixels on a surface of -size."
}
func (c *drawCmd) FlagSet() *flag.FlagSet { return c.fs }

func parseDrawCmd(args []string, r *root) (*drawCmd, error) {
	c := &drawCmd{root: r, fs: newFlagSet("draw"), size: sizeFlag{W: export.DefaultWidth, H: export.DefaultHeight}}
	c.fs.StringVar(&c.mode, "mode", "polygon", "shape to draw: polygon or line")
	c.fs.Var(&c.size, "size", "surface size the points refer to")
	if err := c.fs.Parse(args); err != nil {
		return nil, &UsageError{of: c, reason: err.Error()}
	}
	if _, err := editor.ParseMode(c.mode); err != nil {
		return nil, &UsageError{of: c, reason: err.Error()}
	}
	if c.fs.NArg() < 1 {
		return nil, &UsageError{of: c, reason: "camera id is required"}
	}
	c.camera = c.fs.Arg(0)
	for _, arg := range c.fs.Args()[1:] {
		p, err := parsePoint(arg)
		if err != nil {
			return nil, &UsageError{of: c, reason: err.Error()}
		}
		c.points = append(c.points, p)
	}
	return c, nil
}

func (c *drawCmd) Run() error {
	api, err := c.client()
	if err != nil {
		return err
	}
	mode, _ := editor.ParseMode(c.mode)
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	s, err := rules.Open(ctx, api, c.camera, mode, c.size.Size())
	if err != nil {
		return err
	}
	ed := s.Editor()
	ed.Reset()
	for _, p := range c.points {
		ed.Handle(editor.Click{At: p})
	}

	if _, err := s.Save(ctx); err != nil {
		if rules.Persisted(err) {
			return fmt.Errorf("%s saved but not activated: %w", mode, err)
		}
		return err
	}

	fmt.Fprintf(c.out, "Saved %s for %s and redeployed\n", mode, c.camera)
	if missing := s.Rule().Missing(); len(missing) > 0 {
		fmt.Fprintf(c.out, "Still missing: %v\n", missing)
	}
	return nil
}
