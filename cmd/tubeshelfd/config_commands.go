package main

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/iiab/tubeshelf/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			encoded, err := toml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	})

	var forcePath string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := forcePath
			if path == "" {
				path = config.DefaultPath()
			}
			if err := config.WriteSample(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Wrote "+path)
			return nil
		},
	}
	initCmd.Flags().StringVar(&forcePath, "path", "", "Destination path (defaults to the standard location)")
	cmd.AddCommand(initCmd)

	return cmd
}
