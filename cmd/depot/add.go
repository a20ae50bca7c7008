package main

import (
	"context"
	"flag"

	"github.com/pkg/errors"

	"github.com/depotpm/depot/internal/depot"
	"github.com/depotpm/depot/pkg/semver"
)

type addCmd struct {
	spec    string
	preview bool
}

func (*addCmd) Name() string      { return "add" }
func (*addCmd) Args() string      { return "<name>" }
func (*addCmd) ShortHelp() string { return "add a direct dependency and resolve with preservation `direct`" }

func (c *addCmd) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.spec, "compat", "", "SemverSpec constraint to record for this dependency")
	fs.BoolVar(&c.preview, "preview", false, "show what would change without writing Manifest.toml/Project.toml")
}

func (c *addCmd) Run(ctx context.Context, dc *depot.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("add requires exactly one package name")
	}
	var spec semver.Spec
	if c.spec != "" {
		var err error
		spec, err = semver.ParseSpec(c.spec)
		if err != nil {
			return err
		}
	}
	dc.Preview = c.preview
	return dc.Add(args[0], spec)
}
