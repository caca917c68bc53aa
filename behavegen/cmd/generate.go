package cmd

import (
	"github.com/spf13/cobra"

	"github.com/toejough/behave/behavegen/run"
)

const generateLongDescription = `Expand the templates of each directory into generated_<name>_test.go files
and write the directory's mocks file. With --check nothing is written and
stale files are reported as a diff.

` + pathPatternsHelp

func (a *app) newGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate [dirs...]",
		Short: "Expand templates and write mocks",
		Long:  generateLongDescription,
		RunE:  a.generate,
	}
}

func (a *app) generate(cmd *cobra.Command, args []string) error {
	log, err := a.logger(cmd)
	if err != nil {
		return err
	}

	defer func() { _ = log.Sync() }()

	dirs, err := packageDirs(args)
	if err != nil {
		return err
	}

	cfg := runConfig(a.v)

	dump, closeDump, err := openDump(a.v, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	defer closeDump()

	cfg.Dump = dump

	return run.Run(cmd.Context(), dirs, cfg, run.OSFileSystem{}, log, cmd.OutOrStdout())
}
