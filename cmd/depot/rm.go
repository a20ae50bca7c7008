package main

import (
	"context"
	"flag"

	"github.com/pkg/errors"

	"github.com/depotpm/depot/internal/depot"
)

type rmCmd struct {
	preview bool
}

func (*rmCmd) Name() string      { return "rm" }
func (*rmCmd) Args() string      { return "<name>" }
func (*rmCmd) ShortHelp() string { return "remove a direct dependency and resolve with preservation `all`" }

func (c *rmCmd) Register(fs *flag.FlagSet) {
	fs.BoolVar(&c.preview, "preview", false, "show what would change without writing Manifest.toml/Project.toml")
}

func (c *rmCmd) Run(ctx context.Context, dc *depot.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("rm requires exactly one package name")
	}
	dc.Preview = c.preview
	return dc.Remove(args[0])
}
