package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/iiab/tubeshelf/internal/api"
)

const clientTimeout = 10 * time.Second

func apiClient(ctx *commandContext) (*api.Client, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return api.NewClient(cfg.Paths.APIBind, clientTimeout), nil
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiClient(ctx)
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("daemon unreachable: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Running:  %v (pid %d)\n", status.Running, status.PID)
			fmt.Fprintf(out, "Workers:  %d\n", status.Workers)
			fmt.Fprintf(out, "Database: %s\n", status.DatabasePath)
			fmt.Fprintf(out, "Lock:     %s\n", status.LockFilePath)
			if len(status.TaskCounts) > 0 {
				keys := make([]string, 0, len(status.TaskCounts))
				for key := range status.TaskCounts {
					keys = append(keys, key)
				}
				sort.Strings(keys)
				parts := make([]string, 0, len(keys))
				for _, key := range keys {
					parts = append(parts, fmt.Sprintf("%s=%d", key, status.TaskCounts[key]))
				}
				fmt.Fprintf(out, "Tasks:    %s\n", strings.Join(parts, " "))
			}
			return nil
		},
	}
}

func newTasksCommand(ctx *commandContext) *cobra.Command {
	var userFlag string

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List pipeline tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiClient(ctx)
			if err != nil {
				return err
			}
			views, err := client.Tasks(cmd.Context(), userFlag)
			if err != nil {
				return fmt.Errorf("daemon unreachable: %w", err)
			}
			if len(views) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tasks.")
				return nil
			}

			rows := make([][]string, 0, len(views))
			for _, view := range views {
				rows = append(rows, []string{
					shortID(view.ID),
					view.User,
					view.Name,
					view.Status,
					fmt.Sprintf("%3.0f%%", view.Progress*100),
					flattenMessage(view.Message),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "User", "Task", "Status", "Progress", "Message"},
				rows,
				5,
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&userFlag, "user", "", "Only show tasks for this user")

	cmd.AddCommand(&cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Cancel a waiting or running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiClient(ctx)
			if err != nil {
				return err
			}
			cancelled, err := client.Cancel(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("daemon unreachable: %w", err)
			}
			if !cancelled {
				return fmt.Errorf("task %s could not be cancelled", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cancellation requested.")
			return nil
		},
	})

	cmd.AddCommand(newSubmitCommand(ctx))
	return cmd
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var notifyFlag, userFlag string

	cmd := &cobra.Command{
		Use:   "add <media-url>",
		Short: "Submit a URL for acquisition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiClient(ctx)
			if err != nil {
				return err
			}
			resp, err := client.Submit(cmd.Context(), api.SubmitRequest{
				MediaURL:  args[0],
				NotifyURL: notifyFlag,
				User:      userFlag,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Task "+resp.TaskID)
			return nil
		},
	}
	cmd.Flags().StringVar(&notifyFlag, "notify-url", "", "Collaborator callback URL")
	cmd.Flags().StringVar(&userFlag, "user", "", "Submitting user name")
	_ = cmd.MarkFlagRequired("notify-url")
	return cmd
}

// shortID trims UUIDs for terminal display; piped output keeps them whole.
func shortID(id string) string {
	if isTerminal() && len(id) > 8 {
		return id[:8]
	}
	return id
}

func isTerminal() bool {
	return isatty.IsTerminal(stdoutFd()) || isatty.IsCygwinTerminal(stdoutFd())
}

func flattenMessage(message string) string {
	message = strings.ReplaceAll(message, "<br>", " ")
	message = strings.ReplaceAll(message, "\n", " ")
	message = stripHTML(message)
	if len(message) > 72 {
		return message[:69] + "..."
	}
	return message
}
