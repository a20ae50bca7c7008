package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/depotpm/depot/internal/depot"
)

type statusCmd struct{}

func (*statusCmd) Name() string      { return "status" }
func (*statusCmd) Args() string      { return "" }
func (*statusCmd) ShortHelp() string { return "print the current Project's direct deps and their resolved Manifest versions" }

func (*statusCmd) Register(fs *flag.FlagSet) {}

func (*statusCmd) Run(ctx context.Context, dc *depot.Context, args []string) error {
	names := make([]string, 0, len(dc.Project.Deps))
	for name := range dc.Project.Deps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		id := dc.Project.Deps[name]
		e, ok := dc.Manifest.Entries[id]
		switch {
		case !ok:
			fmt.Fprintf(os.Stdout, "%s: unresolved\n", name)
		case e.Version != nil:
			fmt.Fprintf(os.Stdout, "%s %s\n", name, e.Version.String())
		default:
			fmt.Fprintf(os.Stdout, "%s (no version, e.g. stdlib)\n", name)
		}
	}
	return nil
}
