package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search downloaded media",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "captions <term>",
		Short: "Search caption transcripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiClient(ctx)
			if err != nil {
				return err
			}
			result, err := client.SearchCaptions(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("daemon unreachable: %w", err)
			}
			if len(result.Passages) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matches.")
				return nil
			}

			rows := make([][]string, 0, len(result.Passages))
			for _, passage := range result.Passages {
				rows = append(rows, []string{
					fmt.Sprintf("%d", passage.MediaID),
					fmt.Sprintf("%.1fs", passage.Start),
					fmt.Sprintf("%.1fs", passage.End),
					passage.Text,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Media", "Start", "End", "Passage"}, rows, 1, 2, 3))
			fmt.Fprintln(out, "Items: "+strings.Join(result.IDs, ", "))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "titles <term>",
		Short: "Search item titles via the fetch tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiClient(ctx)
			if err != nil {
				return err
			}
			titles, err := client.SearchTitles(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("daemon unreachable: %w", err)
			}
			if len(titles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matches.")
				return nil
			}
			for _, title := range titles {
				fmt.Fprintln(cmd.OutOrStdout(), title)
			}
			return nil
		},
	})

	return cmd
}
