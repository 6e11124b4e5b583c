package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/video-uploader/internal/config"
)

func newAccountCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the YAML account file",
	}

	var path string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the current database and object store settings to an account file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if path == "" {
				path = cfg.System.AccountFile
			}
			if path == "" {
				return fmt.Errorf("no account file given; use --path or ACCOUNT_FILE")
			}
			if err := config.WriteAccountFile(path, cfg.Account()); err != nil {
				return report(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().StringVar(&path, "path", "", "Account file to write")
	cmd.AddCommand(initCmd)

	return cmd
}
