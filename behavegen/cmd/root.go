// Package cmd provides the root command and CLI setup for behavegen.
package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/toejough/behave/behavegen/run"
)

const pathPatternsHelp = `Directories default to the current one and support Go-style patterns:
  - ./...          every package under the current directory
  - ./pkg/...      every package under pkg
  - ./a ./b        several directories`

const rootLongDescription = `behavegen expands behaviour templates (*.behave) into Go tests and writes
the mocks they request.

A template is Go test source using three macros:
  new_mock!(pkg.Iface[T] for Name)    creates a mock of //behave:mockable interfaces
  given! { ... }                      stubs calls
  expect_interactions! { ... }        declares expected calls

Running behavegen without a command generates.

` + pathPatternsHelp

// app holds what the commands share: the settings and where they came from.
type app struct {
	v          *viper.Viper
	configFile string
}

// Execute runs behavegen and exits non-zero on failure.
// This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		_, _ = color.New(color.FgRed).Fprintln(os.Stderr, "behavegen:", err)

		stop()
		os.Exit(1) //nolint:gocritic // stop has run
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: newConfig()}

	root := &cobra.Command{
		Use:           "behavegen [dirs...]",
		Short:         "Generate behaviour mocks from templates",
		Long:          rootLongDescription,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ArbitraryArgs,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return readConfig(a.v, a.configFile)
		},
		RunE: a.generate,
	}

	a.configureRootFlags(root)

	root.AddCommand(
		a.newGenerateCmd(),
		a.newListCmd(),
		a.newParseCmd(),
		a.newWatchCmd(),
		newVersionCmd(),
	)

	return root
}

func (a *app) configureRootFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.StringVar(&a.configFile, "config", "", "config file (default ./behave.yaml)")

	flags.Bool("check", false, "fail with a diff instead of writing when generated files are stale")
	bindFlagToConfig(a.v, flags.Lookup("check"), checkKey)

	flags.Int("parallel", 0, "packages generated at once (0 for no limit)")
	bindFlagToConfig(a.v, flags.Lookup("parallel"), parallelKey)

	flags.String("template-ext", run.DefaultConfig().TemplateExt, "template file extension")
	bindFlagToConfig(a.v, flags.Lookup("template-ext"), templateExtKey)

	flags.String("mocks-file", run.DefaultConfig().MocksFile, "name of the generated mocks file")
	bindFlagToConfig(a.v, flags.Lookup("mocks-file"), mocksFileKey)

	flags.String("reporter", run.DefaultConfig().Reporter, "expression mocks report failures to")
	bindFlagToConfig(a.v, flags.Lookup("reporter"), reporterKey)

	flags.String("runtime-import", run.DefaultConfig().RuntimeImport, "import path of the behave runtime")
	bindFlagToConfig(a.v, flags.Lookup("runtime-import"), runtimeImportKey)

	flags.StringSlice("mockable", nil, "extra packages to scan for mockable interfaces (can be repeated)")
	bindFlagToConfig(a.v, flags.Lookup("mockable"), mockablePackagesKey)

	flags.String("dump", "", "write every generated file to stdout or to this path")
	bindFlagToConfig(a.v, flags.Lookup("dump"), debugDumpKey)

	flags.String("log-level", defaultLogLevel, "debug, info, warn or error")
	bindFlagToConfig(a.v, flags.Lookup("log-level"), logLevelKey)

	flags.String("log-file", "", "also log as JSON to this rotated file")
	bindFlagToConfig(a.v, flags.Lookup("log-file"), logFileKey)
}

// logger builds the logger of one command run.
func (a *app) logger(cmd *cobra.Command) (*zap.Logger, error) {
	return newLogger(a.v, cmd.ErrOrStderr())
}

// packageDirs expands directory arguments, "./..." patterns included.
func packageDirs(args []string) ([]string, error) {
	if len(args) == 0 {
		args = []string{"."}
	}

	seen := make(map[string]bool)

	var dirs []string

	add := func(dir string) {
		dir = filepath.Clean(dir)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	for _, arg := range args {
		base, recursive := strings.CutSuffix(arg, "...")
		if !recursive {
			add(arg)

			continue
		}

		if base == "" {
			base = "."
		}

		err := filepath.WalkDir(base, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if !entry.IsDir() {
				return nil
			}

			name := entry.Name()
			if filepath.Clean(path) != filepath.Clean(base) &&
				(strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "testdata" || name == "vendor") {
				return filepath.SkipDir
			}

			add(path)

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to expand %s: %w", arg, err)
		}
	}

	sort.Strings(dirs)

	return dirs, nil
}
