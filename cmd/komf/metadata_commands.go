package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"komf/internal/api"
	"komf/internal/identification"
	"komf/internal/provider"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	matchCmd := &cobra.Command{
		Use:   "match",
		Short: "Auto-match series against the configured providers",
	}

	var follow bool
	seriesCmd := &cobra.Command{
		Use:   "series <series-id>",
		Short: "Match one series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				jobID, err := client.MatchSeries(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return reportLaunched(cmd, client, jobID, follow)
			})
		},
	}
	seriesCmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream job events until the job completes")

	libraryCmd := &cobra.Command{
		Use:   "library <library-id>",
		Short: "Match every series of a library in the background",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if err := client.MatchLibrary(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Library scan started for %s\n", args[0])
				return nil
			})
		},
	}

	matchCmd.AddCommand(seriesCmd, libraryCmd)
	return matchCmd
}

func newIdentifyCommand(ctx *commandContext) *cobra.Command {
	var edition string
	var follow bool
	cmd := &cobra.Command{
		Use:   "identify <series-id> <provider> <provider-series-id>",
		Short: "Apply metadata from an explicitly chosen provider series",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := identification.IdentifyRequest{
				SeriesID:         args[0],
				Provider:         provider.ParseName(args[1]),
				ProviderSeriesID: args[2],
				Edition:          strings.TrimSpace(edition),
			}
			return ctx.withClient(func(client *api.Client) error {
				jobID, err := client.Identify(cmd.Context(), req)
				if err != nil {
					return err
				}
				return reportLaunched(cmd, client, jobID, follow)
			})
		},
	}
	cmd.Flags().StringVar(&edition, "edition", "", "Provider edition to take books from")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream job events until the job completes")
	return cmd
}

func reportLaunched(cmd *cobra.Command, client *api.Client, jobID string, follow bool) error {
	fmt.Fprintf(cmd.OutOrStdout(), "Job %s started\n", jobID)
	if !follow {
		return nil
	}
	return followJob(cmd, client, jobID)
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear metadata written by komf",
	}

	seriesCmd := &cobra.Command{
		Use:   "series <series-id>",
		Short: "Reset one series and its books",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if err := client.ResetSeries(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Series %s reset\n", args[0])
				return nil
			})
		},
	}

	libraryCmd := &cobra.Command{
		Use:   "library <library-id>",
		Short: "Reset every series of a library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				failed, err := client.ResetLibrary(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if failed > 0 {
					fmt.Fprintf(out, "Library %s reset; %d series failed\n", args[0], failed)
					return nil
				}
				fmt.Fprintf(out, "Library %s reset\n", args[0])
				return nil
			})
		},
	}

	resetCmd.AddCommand(seriesCmd, libraryCmd)
	return resetCmd
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var libraryID string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search <name>",
		Short: "Search every enabled provider for a series name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")
			return ctx.withClient(func(client *api.Client) error {
				results, err := client.Search(cmd.Context(), name, strings.TrimSpace(libraryID))
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, results)
				}
				out := cmd.OutOrStdout()
				if len(results) == 0 {
					fmt.Fprintln(out, "No results")
					return nil
				}
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					rows = append(rows, []string{string(r.Provider), r.ResultID, r.Title})
				}
				fmt.Fprintln(out, renderTable([]column{
					{Header: "Provider"},
					{Header: "ID"},
					{Header: "Title", MaxWidth: 60},
				}, rows))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&libraryID, "library", "", "Library the series belongs to")
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newProvidersCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List registered metadata providers in priority order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				providers, err := client.Providers(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, providers)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderProviders(providers))
				return nil
			})
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func renderProviders(providers []api.ProviderInfo) string {
	rows := make([][]string, 0, len(providers))
	for _, p := range providers {
		rows = append(rows, []string{p.Name, fmt.Sprintf("%d", p.Priority), yesNo(p.Enabled)})
	}
	return renderTable([]column{
		{Header: "Provider"},
		{Header: "Priority", Align: alignRight},
		{Header: "Enabled"},
	}, rows)
}
