package main

import (
	"context"
	"flag"

	"github.com/depotpm/depot/internal/depot"
	"github.com/depotpm/depot/internal/resolve"
)

type resolveCmd struct {
	preview bool
}

func (*resolveCmd) Name() string      { return "resolve" }
func (*resolveCmd) Args() string      { return "" }
func (*resolveCmd) ShortHelp() string { return "solve the current Project against the Manifest, trying looser preservation tiers on failure" }

func (c *resolveCmd) Register(fs *flag.FlagSet) {
	fs.BoolVar(&c.preview, "preview", false, "show what would change without writing Manifest.toml/Project.toml")
}

func (c *resolveCmd) Run(ctx context.Context, dc *depot.Context, args []string) error {
	dc.Preview = c.preview
	return dc.Resolve(resolve.Tiered)
}
