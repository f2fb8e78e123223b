package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/inamate/tripwire/internal/client"
	"github.com/inamate/tripwire/internal/rules"
)

type camerasCmd struct {
	*root
}

func (c *camerasCmd) Run() error {
	api, err := c.client()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	cameras, err := api.ListCameras(ctx)
	if err != nil {
		return fmt.Errorf("list cameras: %w", err)
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tRULE")
	for _, cam := range cameras {
		status := "ready"
		if missing := rules.ParseRuleState(cam).Missing(); len(missing) > 0 {
			status = "missing " + strings.Join(missing, ", ")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", cam.ID, cam.Name, status)
	}
	return tw.Flush()
}

type showCmd struct {
	*root
	fs     *flag.FlagSet
	camera string
	active bool
}

func (c *showCmd) Program() string        { return c.subcommand("show") }
func (c *showCmd) Usage() string          { return "<camera-id>" }
func (c *showCmd) FlagSet() *flag.FlagSet { return c.fs }

func parseShowCmd(args []string, r *root) (*showCmd, error) {
	c := &showCmd{root: r, fs: newFlagSet("show")}
	c.fs.BoolVar(&c.active, "active", false, "also print the active configuration")
	if err := c.fs.Parse(args); err != nil {
		return nil, &UsageError{of: c}
	}
	if c.fs.NArg() != 1 {
		return nil, &UsageError{of: c, reason: "expected one camera id"}
	}
	c.camera = c.fs.Arg(0)
	return c, nil
}

func (c *showCmd) Run() error {
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
	rs := rules.ParseRuleState(cam)

	fmt.Fprintf(c.out, "Camera  %s (%s)\n", cam.Name, cam.ID)
	if cam.URL != "" {
		fmt.Fprintf(c.out, "Stream  %s\n", cam.URL)
	}
	if rs.Zone != nil {
		pts := make([]string, len(rs.Zone.Points))
		for i, p := range rs.Zone.Points {
			pts[i] = fmt.Sprintf("(%.3f, %.3f)", p.X, p.Y)
		}
		fmt.Fprintf(c.out, "Zone    %s\n", strings.Join(pts, " "))
	} else {
		fmt.Fprintln(c.out, "Zone    not set")
	}
	if rs.Line != nil {
		fmt.Fprintf(c.out, "Line    (%.3f, %.3f) -> (%.3f, %.3f)\n", rs.Line.P1.X, rs.Line.P1.Y, rs.Line.P2.X, rs.Line.P2.Y)
	} else {
		fmt.Fprintln(c.out, "Line    not set")
	}
	if missing := rs.Missing(); len(missing) > 0 {
		fmt.Fprintf(c.out, "Missing %s\n", strings.Join(missing, ", "))
	}

	if !c.active {
		return nil
	}
	raw, err := api.ActiveConfig(ctx, c.camera)
	switch {
	case client.IsNotFound(err):
		fmt.Fprintln(c.out, "Active  none")
		return nil
	case err != nil:
		return fmt.Errorf("active config: %w", err)
	}
	fmt.Fprintf(c.out, "Active  %s\n", raw)
	return nil
}
