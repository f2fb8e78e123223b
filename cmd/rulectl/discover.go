package main

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/inamate/tripwire/internal/discovery"
)

var browse = discovery.Browse

type discoverCmd struct {
	*root
	fs   *flag.FlagSet
	wait time.Duration
}

func (c *discoverCmd) Program() string        { return c.subcommand("discover") }
func (c *discoverCmd) Usage() string          { return "" }
func (c *discoverCmd) FlagSet() *flag.FlagSet { return c.fs }

func parseDiscoverCmd(args []string, r *root) (*discoverCmd, error) {
	c := &discoverCmd{root: r, fs: newFlagSet("discover")}
	c.fs.DurationVar(&c.wait, "wait", 2*time.Second, "how long to listen for answers")
	if err := c.fs.Parse(args); err != nil {
		return nil, &UsageError{of: c, reason: err.Error()}
	}
	return c, nil
}

func (c *discoverCmd) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.wait+time.Second)
	defer cancel()

	found, err := browse(ctx, c.wait)
	if err != nil {
		return fmt.Errorf("browse: %w", err)
	}
	if len(found) == 0 {
		fmt.Fprintln(c.out, "No rule services found")
		return nil
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tURL\tHOST")
	for _, inst := range found {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", inst.Name, inst.URL(), inst.Host)
	}
	return tw.Flush()
}
