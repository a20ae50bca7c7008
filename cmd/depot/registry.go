package main

import (
	"context"
	"flag"
	"os/exec"
	"strings"

	"github.com/pkg/errors"

	"github.com/depotpm/depot/internal/depot"
	"github.com/depotpm/depot/internal/depoterr"
	"github.com/depotpm/depot/internal/registry"
)

// registryCmd implements `depot registry up`: fast-forward every
// reachable registry clone, refusing any clone that is dirty or has a
// detached HEAD rather than guessing what the caller wants.
type registryCmd struct{}

func (*registryCmd) Name() string      { return "registry" }
func (*registryCmd) Args() string      { return "up" }
func (*registryCmd) ShortHelp() string { return "pull every reachable registry clone up to date" }

func (*registryCmd) Register(fs *flag.FlagSet) {}

func (*registryCmd) Run(ctx context.Context, dc *depot.Context, args []string) error {
	if len(args) != 1 || args[0] != "up" {
		return errors.New("usage: depot registry up")
	}
	if dc.Config.Offline {
		return depoterr.NetworkRequired("registry up")
	}

	for _, r := range dc.Registries {
		if err := updateRegistry(ctx, r); err != nil {
			return errors.Wrapf(err, "registry %s", r.Name)
		}
	}
	return nil
}

func updateRegistry(ctx context.Context, r *registry.Registry) error {
	if clean, err := isClean(ctx, r.Root); err != nil {
		return err
	} else if !clean {
		return depoterr.RegistryDirty(r.Root)
	}
	if onBranch, err := isOnBranch(ctx, r.Root); err != nil {
		return err
	} else if !onBranch {
		return depoterr.RegistryDetached(r.Root)
	}

	unlock, err := registry.Lock(r.Root)
	if err != nil {
		return err
	}
	defer unlock()

	return runGit(ctx, r.Root, "pull", "--ff-only")
}

func isClean(ctx context.Context, dir string) (bool, error) {
	out, err := gitOutput(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "", nil
}

func isOnBranch(ctx context.Context, dir string) (bool, error) {
	out, err := gitOutput(ctx, dir, "symbolic-ref", "-q", "HEAD")
	if err != nil {
		return false, nil
	}
	return strings.TrimSpace(out) != "", nil
}

func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "git %s: %s", strings.Join(args, " "), out)
	}
	return nil
}

func gitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}
