// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package engine

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the optional per-run settings file consulted by the
// driver before CLI flags are applied (SPEC_FULL.md §A.3).
const DefaultConfigFile = "conjury.yaml"

// Options holds the per-run switches of spec.md §6.
type Options struct {
	Verbose bool
	Force   bool
	Preview bool
	Undo    bool
	Defines map[string]string

	// JournalBasename, set via ApplyConfig from conjury.yaml, overrides
	// defaultJournalBasename() for every Stage constructed against this
	// Registry (SPEC_FULL.md §A.3).
	JournalBasename string

	// PreloadDirs, set via ApplyConfig from conjury.yaml, lists directories
	// whose contexts Execute constructs before resolving targets
	// (SPEC_FULL.md §A.3).
	PreloadDirs []string
}

// NewOptions returns zero-value Options with an initialized Defines map.
func NewOptions() *Options {
	return &Options{Defines: make(map[string]string)}
}

// SetDefine parses "NAME=VALUE" and records it, per --define in spec.md §6.
func (o *Options) SetDefine(kv string) error {
	name, value, ok := strings.Cut(kv, "=")
	if !ok || name == "" {
		return &UsageError{Field: "--define", Msg: fmt.Sprintf("expected NAME=VALUE, got %q", kv)}
	}
	if o.Defines == nil {
		o.Defines = make(map[string]string)
	}
	o.Defines[name] = value
	return nil
}

// Config is the optional conjury.yaml settings file (SPEC_FULL.md §A.3):
// stable, project-level defaults that are awkward to repeat as flags.
// CLI flags always override values loaded from Config.
type Config struct {
	// JournalBasename overrides the platform default journal filename
	// (spec.md §6 table) for every Stage in this run.
	JournalBasename string `yaml:"journal_basename"`

	// PreloadDirs lists directories whose contexts are constructed (and so
	// whose description files are loaded) before targets are resolved,
	// even if no spell references them directly.
	PreloadDirs []string `yaml:"preload_dirs"`

	// Defines seeds Options.Defines; entries named on the command line
	// with --define take precedence over these.
	Defines map[string]string `yaml:"defines"`
}

// LoadConfig reads and parses a conjury.yaml file. A missing file is not
// an error: it returns a zero-value Config.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyConfig merges cfg's defaults into o wherever o does not already
// have an explicit value (CLI flags win).
func (o *Options) ApplyConfig(cfg Config) {
	if o.Defines == nil {
		o.Defines = make(map[string]string)
	}
	for k, v := range cfg.Defines {
		if _, set := o.Defines[k]; !set {
			o.Defines[k] = v
		}
	}
	if o.JournalBasename == "" {
		o.JournalBasename = cfg.JournalBasename
	}
	if len(o.PreloadDirs) == 0 {
		o.PreloadDirs = cfg.PreloadDirs
	}
}
