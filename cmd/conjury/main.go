// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Command conjury is the CLI front end for the build engine: it parses
// the flags and positional targets of spec.md §6 and drives
// engine.Execute.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gitpan/conjury/internal/engine"
	"github.com/gitpan/conjury/internal/execaction"
	"github.com/gitpan/conjury/internal/loader"
	"github.com/gitpan/conjury/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := engine.NewOptions()
	var defines []string
	var topDir string
	var currentDir string

	cmd := &cobra.Command{
		Use:   "conjury [targets...]",
		Short: "A hierarchical, content-addressed build engine",
		Long: "conjury interprets build descriptions scattered across a source\n" +
			"tree, assembles a dependency graph of spells, and invokes only those\n" +
			"whose signature has changed since the last run.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, kv := range defines {
				if err := opts.SetDefine(kv); err != nil {
					return err
				}
			}
			return runConjury(opts, topDir, currentDir, args)
		},
	}

	cmd.Flags().BoolVar(&opts.Verbose, "verbose", false, "emit progress and diagnostic lines")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "treat every spell as out-of-date")
	cmd.Flags().BoolVar(&opts.Preview, "preview", false, "compute decisions but perform no side effects")
	cmd.Flags().BoolVar(&opts.Undo, "undo", false, "replace product-creating actions with unlink actions")
	cmd.Flags().StringArrayVar(&defines, "define", nil, "NAME=VALUE, populates the user-visible variable map")
	cmd.Flags().StringVar(&topDir, "top-dir", "", "root directory for the build (defaults to the current directory)")
	cmd.Flags().StringVar(&currentDir, "current-dir", "", "directory whose name table resolves targets (spec.md §4.7; defaults to the current directory)")

	return cmd
}

func runConjury(opts *engine.Options, topDir, currentDir string, targets []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}
	if topDir == "" {
		topDir = cwd
	}
	topDir, err = filepath.Abs(topDir)
	if err != nil {
		return fmt.Errorf("resolving top directory: %w", err)
	}

	if currentDir == "" {
		currentDir = cwd
	}
	currentDir, err = filepath.Abs(currentDir)
	if err != nil {
		return fmt.Errorf("resolving current directory: %w", err)
	}

	cfgPath := filepath.Join(topDir, engine.DefaultConfigFile)
	cfg, err := engine.LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	opts.ApplyConfig(cfg)

	log := logging.New(opts.Verbose)
	defer log.Sync()

	reg := engine.NewRegistry(opts, log, execaction.New())

	if err := engine.Execute(reg, topDir, currentDir, loader.Load, targets); err != nil {
		log.Error("", "%v", err)
		return err
	}
	return nil
}
