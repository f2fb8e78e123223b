// Command rulectl is the operator CLI for the tripwire rule service.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/inamate/tripwire/internal/client"
	"github.com/inamate/tripwire/internal/credentials"
	applog "github.com/inamate/tripwire/internal/log"
)

type runnable interface{ Run() error }

type root struct {
	fs      *flag.FlagSet
	program string
	server  string
	timeout time.Duration
	verbose bool
	creds   *credentials.Store
	out     io.Writer
}

func (r *root) Program() string        { return r.program }
func (r *root) FlagSet() *flag.FlagSet { return r.fs }
func (r *root) Usage() string {
	return `<command> [args]
Commands:
  login      sign in and store the token in the OS keyring
  logout     forget the stored login
  cameras    list cameras
  show       print a camera's stored rule
  draw       place points through the editor and save the rule
  preview    render a camera's rule to a PNG
  discover   find rule services on the local network`
}

func newRoot(creds *credentials.Store, out io.Writer) *root {
	r := &root{
		fs:      flag.NewFlagSet("rulectl", flag.ContinueOnError),
		program: "rulectl",
		creds:   creds,
		out:     out,
	}
	r.fs.SetOutput(io.Discard)
	r.fs.StringVar(&r.server, "server", "", "rule service URL (defaults to the logged in server)")
	r.fs.DurationVar(&r.timeout, "timeout", 15*time.Second, "request timeout")
	r.fs.BoolVar(&r.verbose, "v", false, "debug logging")
	return r
}

func (r *root) subcommand(name string) string {
	return strings.TrimSpace(r.program + " " + name)
}

// client returns an API client for the stored login. -server overrides the
// stored server; the stored token is only used for the server it was issued by.
func (r *root) client() (*client.Client, error) {
	profile, token, err := r.creds.Load()
	if err != nil && !errors.Is(err, credentials.ErrNotLoggedIn) {
		return nil, err
	}
	server := profile.Server
	if r.server != "" && r.server != server {
		server, token = r.server, ""
	}
	if server == "" {
		return nil, credentials.ErrNotLoggedIn
	}
	return client.New(server, client.WithToken(token)), nil
}

func (r *root) Run(args []string) error {
	if err := r.fs.Parse(args); err != nil {
		return &UsageError{of: r}
	}
	if r.fs.NArg() < 1 {
		return &UsageError{of: r}
	}
	level := "warn"
	if r.verbose {
		level = "debug"
	}
	applog.Init(applog.Options{Level: level})

	name := r.fs.Arg(0)
	sub := r.fs.Args()[1:]

	var (
		cmd runnable
		err error
	)
	switch name {
	case "login":
		cmd, err = parseLoginCmd(sub, r)
	case "logout":
		cmd = &logoutCmd{root: r}
	case "cameras":
		cmd = &camerasCmd{root: r}
	case "show":
		cmd, err = parseShowCmd(sub, r)
	case "draw":
		cmd, err = parseDrawCmd(sub, r)
	case "preview":
		cmd, err = parsePreviewCmd(sub, r)
	case "discover":
		cmd, err = parseDiscoverCmd(sub, r)
	default:
		err = &UsageError{of: r}
	}
	if err != nil {
		return err
	}
	return cmd.Run()
}

func main() {
	path, err := credentials.ProfilePath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	r := newRoot(credentials.NewStore(path), os.Stdout)
	if err := r.Run(os.Args[1:]); err != nil {
		var uerr *UsageError
		if errors.As(err, &uerr) {
			fmt.Fprintln(os.Stderr, uerr.Error())
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "rulectl:", err)
		os.Exit(1)
	}
}
