package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/inamate/tripwire/internal/export"
	"github.com/inamate/tripwire/internal/render"
	"github.com/inamate/tripwire/internal/rules"
)

// previewCmd renders a camera's stored rule locally, as PNG or PDF by the
// output extension.
type previewCmd struct {
	*root
	fs     *flag.FlagSet
	size   sizeFlag
	frame  string
	output string
	camera string
}

func (c *previewCmd) Program() string        { return c.subcommand("preview") }
func (c *previewCmd) Usage() string          { return "<camera-id>" }
func (c *previewCmd) FlagSet() *flag.FlagSet { return c.fs }

func parsePreviewCmd(args []string, r *root) (*previewCmd, error) {
	c := &previewCmd{root: r, fs: newFlagSet("preview")}
	c.fs.Var(&c.size, "size", "output size (defaults to the frame size, else 1280x720)")
	c.fs.StringVar(&c.frame, "frame", "", "PNG or JPEG to draw under the rule")
	c.fs.StringVar(&c.output, "o", "", "output file, .png or .pdf (default <camera-id>.png)")
	if err := c.fs.Parse(args); err != nil {
		return nil, &UsageError{of: c, reason: err.Error()}
	}
	if c.fs.NArg() != 1 {
		return nil, &UsageError{of: c, reason: "expected one camera id"}
	}
	c.camera = c.fs.Arg(0)
	if c.output == "" {
		c.output = c.camera + ".png"
	}
	switch strings.ToLower(filepath.Ext(c.output)) {
	case ".png", ".pdf":
	default:
		return nil, &UsageError{of: c, reason: "output must end in .png or .pdf"}
	}
	return c, nil
}

func (c *previewCmd) Run() error {
	api, err := c.client()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	cam, err := api.GetCamera(ctx, c.camera)
	if err != nil {
		return fmt.Errorf("get camera: %w", err)
	}

	var bg image.Image
	if c.frame != "" {
		if bg, err = loadImage(c.frame); err != nil {
			return err
		}
	}
	w, h := c.size.W, c.size.H
	if w == 0 {
		w, h = export.DefaultWidth, export.DefaultHeight
		if bg != nil {
			w, h = bg.Bounds().Dx(), bg.Bounds().Dy()
		}
	}
	o, err := export.Resolve(rules.ParseRuleState(cam), w, h)
	if err != nil {
		return err
	}

	f, err := os.Create(c.output)
	if err != nil {
		return err
	}
	renderer := render.NewRenderer(render.DefaultStyle())
	if strings.EqualFold(filepath.Ext(c.output), ".pdf") {
		err = export.WritePDF(f, renderer, o, bg, cam.Name)
	} else {
		err = export.WritePNG(f, renderer, o, bg)
	}
	closeErr := f.Close()
	if err != nil {
		return fmt.Errorf("render preview: %w", err)
	}
	if closeErr != nil {
		return closeErr
	}
	fmt.Fprintf(c.out, "Wrote %s (%dx%d)\n", c.output, w, h)
	return nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
