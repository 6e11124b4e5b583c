package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newCategoryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage catalog categories",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "delete CATEGORY_ID",
		Short: "Delete a category together with its sub-categories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid category id %q", args[0])
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Catalog.DeleteCategoryCascade(cmd.Context(), id); err != nil {
				return report(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted category %d\n", id)
			return nil
		},
	})
	return cmd
}
