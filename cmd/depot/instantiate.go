package main

import (
	"context"
	"flag"

	"github.com/depotpm/depot/internal/depot"
)

type instantiateCmd struct{}

func (*instantiateCmd) Name() string      { return "instantiate" }
func (*instantiateCmd) Args() string      { return "" }
func (*instantiateCmd) ShortHelp() string { return "materialize every Manifest entry into the package store" }

func (*instantiateCmd) Register(fs *flag.FlagSet) {}

func (*instantiateCmd) Run(ctx context.Context, dc *depot.Context, args []string) error {
	stores, err := depot.OpenStores(dc.Config)
	if err != nil {
		return err
	}
	defer stores.Close()
	return dc.Instantiate(ctx, stores)
}
