package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

type HelpData interface {
	Program() string
	Usage() string
	FlagSet() *flag.FlagSet
}

// UsageError reports bad arguments; its message is the command's help.
type UsageError struct {
	of     HelpData
	reason string
}

func (e *UsageError) Error() string {
	var b strings.Builder
	if e.reason != "" {
		fmt.Fprintf(&b, "%s: %s\n\n", e.of.Program(), e.reason)
	}
	fmt.Fprintf(&b, "Usage: %s [flags]", e.of.Program())
	if u := e.of.Usage(); u != "" {
		synopsis, detail, _ := strings.Cut(u, "\n")
		fmt.Fprintf(&b, " %s", synopsis)
		if detail != "" {
			fmt.Fprintf(&b, "\n\n%s", detail)
		}
	}
	if fs := e.of.FlagSet(); fs != nil {
		first := true
		fs.VisitAll(func(f *flag.Flag) {
			if first {
				b.WriteString("\n\nFlags:")
				first = false
			}
			fmt.Fprintf(&b, "\n  -%s\t%s", f.Name, f.Usage)
			if f.DefValue != "" && f.DefValue != "false" {
				fmt.Fprintf(&b, " (default %s)", f.DefValue)
			}
		})
	}
	return b.String()
}

// newFlagSet builds a subcommand flag set that reports errors as usage.
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}
