package main

import (
	"context"
	"testing"
)

// These validate each subcommand's argument/flag checks, which all run
// before touching the *depot.Context — so a nil Context is safe here.

func TestAddRequiresExactlyOneArg(t *testing.T) {
	c := &addCmd{}
	for _, args := range [][]string{{}, {"A", "B"}} {
		if err := c.Run(context.Background(), nil, args); err == nil {
			t.Errorf("add with args %v should fail", args)
		}
	}
}

func TestAddRejectsBadCompatSpec(t *testing.T) {
	c := &addCmd{spec: "not a valid spec??"}
	if err := c.Run(context.Background(), nil, []string{"X"}); err == nil {
		t.Error("add with an unparseable -compat spec should fail before touching the context")
	}
}

func TestRmRequiresExactlyOneArg(t *testing.T) {
	c := &rmCmd{}
	for _, args := range [][]string{{}, {"A", "B"}} {
		if err := c.Run(context.Background(), nil, args); err == nil {
			t.Errorf("rm with args %v should fail", args)
		}
	}
}

func TestUpRejectsUnknownPreservationLevel(t *testing.T) {
	c := &upCmd{level: "not-a-level"}
	if err := c.Run(context.Background(), nil, nil); err == nil {
		t.Error("up with an unknown preservation level should fail")
	}
}

func TestRegistryRequiresUpSubcommand(t *testing.T) {
	c := &registryCmd{}
	for _, args := range [][]string{{}, {"down"}, {"up", "extra"}} {
		if err := c.Run(context.Background(), nil, args); err == nil {
			t.Errorf("registry with args %v should fail", args)
		}
	}
}

func TestCommandNamesArgsAndHelpAreNonEmpty(t *testing.T) {
	for _, c := range commands() {
		if c.Name() == "" {
			t.Errorf("%T has an empty Name()", c)
		}
		if c.ShortHelp() == "" {
			t.Errorf("%T has an empty ShortHelp()", c)
		}
	}
}
