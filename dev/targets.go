//go:build targ

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/akedrou/textdiff"
	"github.com/toejough/go-reorder"
	"github.com/toejough/targ"
	"github.com/toejough/targ/file"
	"github.com/toejough/targ/sh"
)

const minimumFunctionCoverage = 80.0

// Build builds the local behavegen binary.
func Build() error {
	fmt.Println("Building behavegen...")

	if err := os.MkdirAll("bin", 0o755); err != nil {
		return fmt.Errorf("failed to create bin directory: %w", err)
	}

	return sh.Run("go", "build", "-o", "bin/behavegen", "./behavegen")
}

// Check runs every fix and check, cheapest first.
func Check() error {
	fmt.Println("Checking...")

	return targ.Deps(
		Tidy,
		FixImports,
		ReorderDecls,
		CheckCoverage,
		Lint,
	)
}

// CheckCoverage fails when any function is below the coverage floor.
func CheckCoverage() error {
	fmt.Println("Checking coverage...")

	if err := targ.Deps(Test); err != nil {
		return err
	}

	out, err := output("go", "tool", "cover", "-func=coverage.out")
	if err != nil {
		return err
	}

	type funcCoverage struct {
		line    string
		percent float64
	}

	var funcs []funcCoverage

	percentPattern := regexp.MustCompile(`\d+\.\d`)

	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "total:") || strings.Contains(line, "main.go") || strings.Contains(line, "generated_") {
			continue
		}

		percent, err := strconv.ParseFloat(percentPattern.FindString(line), 64)
		if err != nil {
			return fmt.Errorf("unexpected coverage line %q: %w", line, err)
		}

		funcs = append(funcs, funcCoverage{line, percent})
	}

	if len(funcs) == 0 {
		return nil
	}

	slices.SortStableFunc(funcs, func(a, b funcCoverage) int {
		switch {
		case a.percent < b.percent:
			return -1
		case a.percent > b.percent:
			return 1
		default:
			return 0
		}
	})

	if lowest := funcs[0]; lowest.percent < minimumFunctionCoverage {
		return fmt.Errorf("function coverage was less than the limit of %.1f:\n  %s", minimumFunctionCoverage, lowest.line)
	}

	return nil
}

// CheckForFail runs the checks that can fail without fixing anything.
func CheckForFail() error {
	fmt.Println("Checking...")

	return targ.Deps(
		ReorderDeclsCheck,
		GenerateCheck,
		LintForFail,
		TestForFail,
	)
}

// Clean removes build and coverage output.
func Clean() {
	fmt.Println("Cleaning...")

	_ = os.Remove("coverage.out")
	_ = os.RemoveAll("bin")
}

// FixImports formats imports.
func FixImports() error {
	fmt.Println("Fixing imports...")
	return sh.Run("goimports", "-w", ".")
}

// Generate expands the UAT templates with the local behavegen.
func Generate() error {
	fmt.Println("Generating...")

	if err := targ.Deps(Build); err != nil {
		return err
	}

	return sh.Run(filepath.Join("bin", "behavegen"), "generate", "./UAT/...")
}

// GenerateCheck fails when the committed UAT output is stale.
func GenerateCheck() error {
	fmt.Println("Checking generated files...")

	if err := targ.Deps(Build); err != nil {
		return err
	}

	return sh.Run(filepath.Join("bin", "behavegen"), "generate", "--check", "./UAT/...")
}

// Lint runs golangci-lint and fixes what it can.
func Lint() error {
	fmt.Println("Linting...")
	return sh.Run("golangci-lint", "run", "--fix", "./...")
}

// LintForFail runs golangci-lint without fixing anything.
func LintForFail() error {
	fmt.Println("Linting for failure...")
	return sh.Run("golangci-lint", "run", "./...")
}

// Mutate runs the mutation tests.
func Mutate() error {
	fmt.Println("Running mutation tests...")

	if err := targ.Deps(TestForFail); err != nil {
		return err
	}

	return sh.Run("go", "test", "-timeout=6000s", "-tags=mutation", "-ooze.v", ".", "-run=TestMutation")
}

// ReorderDecls puts the declarations of every hand-written Go file in order.
func ReorderDecls() error {
	fmt.Println("Reordering declarations...")

	files, err := sourceFiles(".")
	if err != nil {
		return err
	}

	count := 0

	for _, path := range files {
		content, reordered, err := reorderFile(path)
		if err != nil {
			fmt.Printf("Warning: %v\n", err)

			continue
		}

		if content == reordered {
			continue
		}

		err = os.WriteFile(path, []byte(reordered), 0o600)
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}

		fmt.Printf("  Reordered: %s\n", path)

		count++
	}

	fmt.Printf("Reordered %d file(s).\n", count)

	return nil
}

// ReorderDeclsCheck prints a diff for every file whose declarations are out of order.
func ReorderDeclsCheck() error {
	fmt.Println("Checking declaration order...")

	files, err := sourceFiles(".")
	if err != nil {
		return err
	}

	stale := 0

	for _, path := range files {
		content, reordered, err := reorderFile(path)
		if err != nil {
			fmt.Printf("Warning: %v\n", err)

			continue
		}

		if content != reordered {
			stale++

			fmt.Printf("\n%s\n", textdiff.Unified(path+" (current)", path+" (reordered)", content, reordered))
		}
	}

	if stale > 0 {
		return fmt.Errorf("%d file(s) need reordering; run 'targ reorder-decls'", stale)
	}

	fmt.Printf("All %d files are correctly ordered.\n", len(files))

	return nil
}

// Test runs the tests with the race detector and writes coverage.out.
func Test() error {
	fmt.Println("Running unit tests...")

	if err := targ.Deps(Generate); err != nil {
		return err
	}

	return sh.Run(
		"go", "test",
		"-timeout=2m",
		"-race",
		"-count=1",
		"-coverprofile=coverage.out",
		"-coverpkg=./behavegen/...,./internal/...,.",
		"./...",
	)
}

// TestForFail runs the tests only to find out whether any fail.
func TestForFail() error {
	fmt.Println("Running unit tests for overall pass/fail...")

	if err := targ.Deps(Generate); err != nil {
		return err
	}

	return sh.Run("go", "test", "-timeout=30s", "-failfast", "./...")
}

// Tidy tidies go.mod.
func Tidy() error {
	fmt.Println("Tidying go.mod...")
	return sh.Run("go", "mod", "tidy")
}

// Watch reruns Check on every relevant change.
func Watch(ctx context.Context) error {
	fmt.Println("Watching...")

	patterns := []string{"**/*.go", "**/*.behave", "**/*.toml"}

	return file.Watch(ctx, patterns, file.WatchOptions{}, func(changes file.ChangeSet) error {
		if !hasRelevantChanges(changes) {
			return nil
		}

		fmt.Println("Change detected...")

		targ.ResetDeps()

		if err := Check(); err != nil {
			fmt.Println("continuing to watch after check failure (see errors above)")
		} else {
			fmt.Println("continuing to watch after all checks passed!")
		}

		return nil
	})
}

func hasRelevantChanges(changes file.ChangeSet) bool {
	for _, path := range slices.Concat(changes.Added, changes.Removed, changes.Modified) {
		if !strings.Contains(path, "generated_") && !strings.HasSuffix(path, "coverage.out") {
			return true
		}
	}

	return false
}

func isGeneratedFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, 200)

	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return bytes.Contains(head[:n], []byte("DO NOT EDIT")), nil
}

// output runs a command and returns its stdout.
func output(command string, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd := exec.Command(command, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = buf
	cmd.Stderr = os.Stderr
	err := cmd.Run()

	return strings.TrimSuffix(buf.String(), "\n"), err
}

func reorderFile(path string) (string, string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	reordered, err := reorder.Source(string(content))
	if err != nil {
		return "", "", fmt.Errorf("failed to reorder %s: %w", path, err)
	}

	return string(content), reordered, nil
}

// sourceFiles lists the hand-written Go files under dir.
func sourceFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		name := entry.Name()

		if entry.IsDir() {
			if path != dir && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor") {
				return filepath.SkipDir
			}

			return nil
		}

		if filepath.Ext(name) != ".go" || strings.HasPrefix(name, "generated_") {
			return nil
		}

		generated, err := isGeneratedFile(path)
		if err != nil {
			return err
		}

		if !generated {
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find Go files: %w", err)
	}

	return files, nil
}
