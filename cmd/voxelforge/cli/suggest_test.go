// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"convert", "", 7},
		{"convert", "convert", 0},
		{"covnert", "convert", 2},
		{"verfy", "verify", 1},
		{"kitten", "sitting", 3},
	}
	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestSuggestCommand(t *testing.T) {
	commands := []*Command{
		{Name: "convert"},
		{Name: "verify"},
		{Name: "info"},
		{Name: "version"},
	}

	if got := suggestCommand("covnert", commands); got != "convert" {
		t.Errorf("suggestCommand(covnert) = %q, want convert", got)
	}
	if got := suggestCommand("verfy", commands); got != "verify" {
		t.Errorf("suggestCommand(verfy) = %q, want verify", got)
	}
	if got := suggestCommand("completely-unrelated", commands); got != "" {
		t.Errorf("suggestCommand for distant input = %q, want no suggestion", got)
	}
}

func TestSuggestFlag(t *testing.T) {
	flags := func() *pflag.FlagSet {
		flagSet := pflag.NewFlagSet("convert", pflag.ContinueOnError)
		flagSet.Int("workers", 0, "")
		flagSet.Int("gzip-level", 9, "")
		flagSet.Bool("dry-run", false, "")
		return flagSet
	}

	if got := suggestFlag([]string{"--wokers", "4"}, flags()); got != "--workers" {
		t.Errorf("suggestFlag(--wokers) = %q, want --workers", got)
	}
	if got := suggestFlag([]string{"--gzip-lvl=5"}, flags()); got != "--gzip-level" {
		t.Errorf("suggestFlag(--gzip-lvl=5) = %q, want --gzip-level", got)
	}
	// Known flags never trigger a suggestion.
	if got := suggestFlag([]string{"--workers", "4"}, flags()); got != "" {
		t.Errorf("suggestFlag(--workers) = %q, want none", got)
	}
	if got := suggestFlag([]string{"--zzzzzzzz"}, flags()); got != "" {
		t.Errorf("suggestFlag for distant input = %q, want none", got)
	}
}

func TestCommandExecute_Dispatch(t *testing.T) {
	var ran []string
	root := &Command{
		Name: "voxelforge",
		Subcommands: []*Command{
			{
				Name: "convert",
				Run: func(args []string) error {
					ran = args
					return nil
				},
			},
		},
	}

	if err := root.Execute([]string{"convert", "src", "dst"}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(ran) != 2 || ran[0] != "src" || ran[1] != "dst" {
		t.Errorf("subcommand args %v, want [src dst]", ran)
	}
}

func TestCommandExecute_UnknownSubcommand(t *testing.T) {
	root := &Command{
		Name:        "voxelforge",
		Subcommands: []*Command{{Name: "convert"}, {Name: "verify"}},
	}

	err := root.Execute([]string{"covnert"})
	if err == nil {
		t.Fatal("expected error for unknown subcommand")
	}
	if !strings.Contains(err.Error(), `did you mean "convert"`) {
		t.Errorf("error %q carries no suggestion", err)
	}
}

func TestCommandExecute_FlagParsing(t *testing.T) {
	var workers int
	command := &Command{
		Name: "verify",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("verify", pflag.ContinueOnError)
			flagSet.IntVar(&workers, "workers", 1, "")
			return flagSet
		},
		Run: func(args []string) error { return nil },
	}

	if err := command.Execute([]string{"--workers", "8", "dataset"}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if workers != 8 {
		t.Errorf("workers = %d, want 8", workers)
	}

	err := command.Execute([]string{"--wokers", "8"})
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
	if !strings.Contains(err.Error(), "--workers") {
		t.Errorf("error %q carries no flag suggestion", err)
	}
}
