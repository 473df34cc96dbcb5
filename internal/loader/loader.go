// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package loader implements the concrete description-file loader spec.md
// §6 specifies as an external collaborator: a directory maps to a YAML
// description file that registers spells, stages, deferrals, and file
// copies against the currently-pushed context.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/gitpan/conjury/internal/engine"
)

// descriptionCandidates lists the case variants spec.md §6 specifies:
// case-sensitive filesystems look for "conjury.yaml" then "Conjury.yaml";
// if both exist, the loader warns and uses the last match in this order.
var descriptionCandidates = []string{"conjury.yaml", "Conjury.yaml"}

// description is the top-level shape of a description file.
type description struct {
	Stage      *stageSpec     `yaml:"stage"`
	Defers     []deferSpec    `yaml:"defers"`
	FileCopies []fileCopySpec `yaml:"filecopies"`
	Spells     []spellSpec    `yaml:"spells"`
}

type stageSpec struct {
	Dir string `yaml:"dir"`
}

type deferSpec struct {
	Name      string   `yaml:"name"`
	Dirs      []string `yaml:"dirs"`
	Targets   []string `yaml:"targets"`
	IfPresent bool     `yaml:"if_present"`
}

type fileCopySpec struct {
	Name       string   `yaml:"name"`
	Directory  string   `yaml:"directory"`
	Files      []string `yaml:"files"`
	Permission string   `yaml:"permission"` // octal, e.g. "0644"
	Owner      string   `yaml:"owner"`
	Group      string   `yaml:"group"`
}

type spellSpec struct {
	Name     string      `yaml:"name"`
	Factors  []string    `yaml:"factors"`
	Products []string    `yaml:"products"`
	Profile  string      `yaml:"profile"`
	Action   *actionSpec `yaml:"action"`
}

type actionSpec struct {
	Shell string   `yaml:"shell"`
	Argv  []string `yaml:"argv"`
}

// Load implements engine.Loader: it locates and parses dir's description
// file and registers everything it declares against the currently-pushed
// context.
func Load(reg *engine.Registry, dir string) error {
	path, err := findDescriptionFile(dir, reg)
	if err != nil {
		return err
	}
	if path == "" {
		// No description file is not an error at the engine-loader
		// boundary: a directory may be a pure deferral leaf with nothing
		// of its own to register.
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	var desc description
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if desc.Stage != nil {
		stageDir := desc.Stage.Dir
		if stageDir == "" {
			stageDir = dir
		}
		if _, err := engine.NewStage(reg, stageDir, nil, reg.Log); err != nil {
			return err
		}
	}

	for _, d := range desc.Defers {
		if _, err := engine.Defer(reg, engine.DeferOptions{
			Name:      d.Name,
			Dirs:      resolveDirs(dir, d.Dirs),
			Targets:   d.Targets,
			IfPresent: d.IfPresent,
			Load:      Load,
		}); err != nil {
			return err
		}
	}

	for _, fc := range desc.FileCopies {
		perm, err := parsePermission(fc.Permission)
		if err != nil {
			return fmt.Errorf("%s: filecopy %s: %w", path, fc.Name, err)
		}
		if _, err := engine.FileCopy(reg, engine.FileCopyOptions{
			Name:       fc.Name,
			Directory:  fc.Directory,
			Files:      fc.Files,
			Permission: perm,
			Owner:      fc.Owner,
			Group:      fc.Group,
		}); err != nil {
			return err
		}
	}

	for _, s := range desc.Spells {
		if err := registerSpell(reg, s); err != nil {
			return fmt.Errorf("%s: spell %s: %w", path, s.Name, err)
		}
	}

	return nil
}

func registerSpell(reg *engine.Registry, s spellSpec) error {
	factors := make([]engine.Factor, 0, len(s.Factors))
	for _, f := range s.Factors {
		factors = append(factors, engine.NameFactor(f))
	}

	opts := engine.SpellOptions{
		Name:     s.Name,
		Factors:  factors,
		Products: s.Products,
	}
	if s.Profile != "" {
		opts.Profile = engine.StaticProfile(s.Profile)
	}
	if s.Action != nil {
		switch {
		case s.Action.Shell != "":
			opts.Action = engine.ActionSpec{Shell: s.Action.Shell}
		case len(s.Action.Argv) > 0:
			opts.Action = engine.ActionSpec{Argv: s.Action.Argv}
		}
	}

	_, err := engine.NewSpell(reg, opts)
	return err
}

func resolveDirs(base string, dirs []string) []string {
	out := make([]string, len(dirs))
	for i, d := range dirs {
		if filepath.IsAbs(d) {
			out[i] = d
		} else {
			out[i] = filepath.Join(base, d)
		}
	}
	return out
}

func parsePermission(s string) (os.FileMode, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid permission %q: %w", s, err)
	}
	return os.FileMode(v), nil
}

// findDescriptionFile applies spec.md §6's discovery rule: case-sensitive
// filesystems try "conjury.yaml" then "Conjury.yaml", warning and using
// the last match if both exist. Go cannot distinguish case-preserving or
// case-insensitive filesystems from os.Stat alone, so this always applies
// the case-sensitive-filesystem rule.
func findDescriptionFile(dir string, reg *engine.Registry) (string, error) {
	var found string
	var matchCount int
	for _, name := range descriptionCandidates {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			found = p
			matchCount++
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("checking %s: %w", p, err)
		}
	}
	if matchCount > 1 && reg.Log != nil {
		reg.Log.Warn(dir, "both conjury.yaml and Conjury.yaml present; using %s", found)
	}
	return found, nil
}
