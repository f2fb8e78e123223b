package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/inamate/tripwire/internal/client"
	"github.com/inamate/tripwire/internal/credentials"
)

type loginCmd struct {
	*root
	fs       *flag.FlagSet
	server   string
	username string
	password string
}

func (c *loginCmd) Program() string        { return c.subcommand("login") }
func (c *loginCmd) Usage() string          { return "" }
func (c *loginCmd) FlagSet() *flag.FlagSet { return c.fs }

func parseLoginCmd(args []string, r *root) (*loginCmd, error) {
	c := &loginCmd{root: r, fs: newFlagSet("login")}
	c.fs.StringVar(&c.server, "server", r.server, "rule service URL")
	c.fs.StringVar(&c.username, "user", "", "operator username")
	c.fs.StringVar(&c.password, "password", "", "operator password (or RULECTL_PASSWORD)")
	if err := c.fs.Parse(args); err != nil {
		return nil, &UsageError{of: c}
	}
	if c.password == "" {
		c.password = os.Getenv("RULECTL_PASSWORD")
	}
	switch {
	case c.server == "":
		return nil, &UsageError{of: c, reason: "-server is required"}
	case c.username == "":
		return nil, &UsageError{of: c, reason: "-user is required"}
	case c.password == "":
		return nil, &UsageError{of: c, reason: "-password or RULECTL_PASSWORD is required"}
	}
	return c, nil
}

func (c *loginCmd) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	res, err := client.New(c.server).Login(ctx, c.username, c.password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := c.creds.Save(credentials.Profile{Server: c.server, Username: c.username}, res.Token); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Logged in to %s as %s\n", c.server, res.Operator.DisplayName)
	return nil
}

type logoutCmd struct {
	*root
}

func (c *logoutCmd) Run() error {
	if err := c.creds.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Logged out")
	return nil
}
