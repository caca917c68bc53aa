package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/toejough/behave/behavegen/run"
)

const listLongDescription = `List the interfaces each directory's templates can mock and the numbered
interface usages they create, without writing anything.

` + pathPatternsHelp

func (a *app) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [dirs...]",
		Short: "List mockable interfaces and usages",
		Long:  listLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := a.logger(cmd)
			if err != nil {
				return err
			}

			dirs, err := packageDirs(args)
			if err != nil {
				return err
			}

			cfg := runConfig(a.v)

			for _, dir := range dirs {
				listing, err := run.List(dir, cfg, run.OSFileSystem{}, log)
				if err != nil {
					return err
				}

				renderListing(cmd.OutOrStdout(), listing)
			}

			return nil
		},
	}
}

func renderListing(out io.Writer, listing run.Listing) {
	_, _ = fmt.Fprintf(out, "%s\n\n", listing.Dir)

	interfaces := tablewriter.NewWriter(out)
	interfaces.SetHeader([]string{"Interface", "Type Params", "Methods", "Declared At"})
	interfaces.SetBorder(false)
	interfaces.SetCenterSeparator("")

	for _, info := range listing.Interfaces {
		params := make([]string, 0, len(info.TypeParams))
		for _, param := range info.TypeParams {
			params = append(params, param.Name)
		}

		interfaces.Append([]string{info.Key, strings.Join(params, ", "), strconv.Itoa(len(info.Methods)), info.Pos})
	}

	interfaces.Render()

	if len(listing.Usages) == 0 {
		_, _ = fmt.Fprintln(out)

		return
	}

	_, _ = fmt.Fprintln(out)

	usages := tablewriter.NewWriter(out)
	usages.SetHeader([]string{"ID", "Usage", "Mocks"})
	usages.SetBorder(false)
	usages.SetCenterSeparator("")
	usages.SetColumnAlignment([]int{tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})

	for _, usage := range listing.Usages {
		usages.Append([]string{strconv.Itoa(usage.ID), usage.Type, strings.Join(usage.Mocks, ", ")})
	}

	usages.Render()
	_, _ = fmt.Fprintln(out)
}
