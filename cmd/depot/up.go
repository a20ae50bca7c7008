package main

import (
	"context"
	"flag"

	"github.com/pkg/errors"

	"github.com/depotpm/depot/internal/depot"
	"github.com/depotpm/depot/internal/resolve"
)

type upCmd struct {
	level   string
	preview bool
}

func (*upCmd) Name() string { return "up" }
func (*upCmd) Args() string { return "" }
func (*upCmd) ShortHelp() string {
	return "re-resolve at the given preservation level (default semver), moving deps forward"
}

func (c *upCmd) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.level, "preservation", "semver", "one of all, direct, semver, none, tiered")
	fs.BoolVar(&c.preview, "preview", false, "show what would change without writing Manifest.toml/Project.toml")
}

func (c *upCmd) Run(ctx context.Context, dc *depot.Context, args []string) error {
	level := resolve.Preservation(c.level)
	switch level {
	case resolve.All, resolve.Direct, resolve.Semver, resolve.None, resolve.Tiered:
	default:
		return errors.Errorf("unknown preservation level %q", c.level)
	}
	dc.Preview = c.preview
	return dc.Up(level)
}
