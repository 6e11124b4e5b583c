package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var envFile string
	var accountFile string

	ctx := newCommandContext(&envFile, &accountFile)

	rootCmd := &cobra.Command{
		Use:           "uploader",
		Short:         "Upload videos with bilingual subtitles and catalogue them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")
	rootCmd.PersistentFlags().StringVar(&accountFile, "account", "", "YAML account file with DB_INFO and OSS_INFO")

	rootCmd.AddCommand(newSubmitCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newRetryCommand(ctx))
	rootCmd.AddCommand(newDiscardCommand(ctx))
	rootCmd.AddCommand(newReconcileCommand(ctx))
	rootCmd.AddCommand(newCategoryCommand(ctx))
	rootCmd.AddCommand(newAccountCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))

	return rootCmd
}
