// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gitpan/conjury/internal/engine"
	"github.com/gitpan/conjury/internal/logging"
)

type fakeExecutor struct {
	argvCalls [][]string
}

func (f *fakeExecutor) SpawnShell(command string) (int, error) { return 0, nil }
func (f *fakeExecutor) SpawnArgv(argv []string) (int, error) {
	f.argvCalls = append(f.argvCalls, argv)
	return 0, nil
}

func newTestRegistry() *engine.Registry {
	return engine.NewRegistry(engine.NewOptions(), logging.Nop(), &fakeExecutor{})
}

const sampleYAML = `
stage:
  dir: .
spells:
  - name: build
    factors: [a.txt]
    products: [out.txt]
    action:
      argv: ["touch", "out.txt"]
  - profile: default
`

func writeDescription(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_ParsesSpellsFromYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeDescription(t, dir, "conjury.yaml", sampleYAML)

	reg := newTestRegistry()
	ctx, err := engine.NewContext(reg, dir, Load)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}

	build := ctx.FetchSpells("build")
	if len(build) != 1 {
		t.Fatalf("expected one 'build' spell, got %d", len(build))
	}
	if defaults := ctx.DefaultSpells(); len(defaults) != 1 {
		t.Fatalf("expected one default spell, got %d", len(defaults))
	}
}

func TestLoad_MissingDescriptionFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	reg := newTestRegistry()
	if _, err := engine.NewContext(reg, dir, Load); err != nil {
		t.Fatalf("expected no error for a directory with no description file, got %v", err)
	}
}

func TestLoad_RegistersStageAndFileCopy(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src")
	if err := os.Mkdir(srcDir, 0o755); err != nil {
		t.Fatal(err)
	}
	srcFile := filepath.Join(srcDir, "f.txt")
	if err := os.WriteFile(srcFile, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	yamlContent := `
stage:
  dir: stagedir
filecopies:
  - directory: dest
    files: ["` + srcFile + `"]
    permission: "0644"
`
	writeDescription(t, dir, "conjury.yaml", yamlContent)

	reg := newTestRegistry()
	ctx, err := engine.NewContext(reg, dir, Load)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if info, err := os.Stat(filepath.Join(dir, "stagedir")); err != nil || !info.IsDir() {
		t.Fatalf("expected the stage directory to be created: %v", err)
	}
	defaults := ctx.DefaultSpells()
	if len(defaults) != 1 {
		t.Fatalf("expected the filecopy spell to register as a default spell, got %d", len(defaults))
	}
	if _, err := defaults[0].Invoke(reg); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "dest", "f.txt")); err != nil {
		t.Fatalf("expected copied file to exist: %v", err)
	}
}

func TestLoad_BadPermissionIsAnError(t *testing.T) {
	dir := t.TempDir()
	yamlContent := `
filecopies:
  - directory: dest
    files: ["a.txt"]
    permission: "not-octal"
`
	writeDescription(t, dir, "conjury.yaml", yamlContent)

	reg := newTestRegistry()
	if _, err := engine.NewContext(reg, dir, Load); err == nil {
		t.Fatal("expected an error for an invalid permission string")
	}
}

func TestLoad_BothCaseVariantsWarnAndUseLast(t *testing.T) {
	dir := t.TempDir()
	writeDescription(t, dir, "conjury.yaml", "spells:\n  - name: lower\n")
	writeDescription(t, dir, "Conjury.yaml", "spells:\n  - name: upper\n")

	reg := newTestRegistry()
	ctx, err := engine.NewContext(reg, dir, Load)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if spells := ctx.FetchSpells("upper"); len(spells) != 1 {
		t.Fatal("expected the last-checked candidate (Conjury.yaml) to win")
	}
}

func TestLoad_DeferResolvesSiblingDirectory(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeDescription(t, sub, "conjury.yaml", "spells:\n  - name: leaf\n")
	writeDescription(t, root, "conjury.yaml", `
defers:
  - dirs: ["sub"]
`)

	reg := newTestRegistry()
	ctx, err := engine.NewContext(reg, root, Load)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defaults := ctx.DefaultSpells()
	if len(defaults) != 1 {
		t.Fatalf("expected one deferral spell registered as a default, got %d", len(defaults))
	}
}
