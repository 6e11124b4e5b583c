package main

import (
	"fmt"
	"strconv"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/video-uploader/internal/app"
	"github.com/MimeLyc/video-uploader/internal/reconcile"
	"github.com/MimeLyc/video-uploader/pkg/log"
)

func parseItemID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", raw)
	}
	return id, nil
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry ITEM_ID",
		Short: "Write the catalog rows of an uploaded item again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			entry, err := a.Ledger.Get(itemID)
			if err != nil {
				return report(err)
			}
			updated, err := a.Reconcile.Retry(cmd.Context(), entry)
			if err != nil {
				return report(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Item %d: %s\n", updated.ItemID, updated.Status)
			return nil
		},
	}
}

func newDiscardCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "discard ITEM_ID",
		Short: "Delete the remote objects of a failed item and drop it from the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			entry, err := a.Ledger.Get(itemID)
			if err != nil {
				return report(err)
			}
			if !yes {
				fmt.Fprintf(cmd.OutOrStdout(), "Would delete:\n  %s\n  %s\nRe-run with --yes to discard item %d\n",
					entry.VideoURL, entry.SubtitleURL, itemID)
				return nil
			}
			if err := a.Reconcile.Discard(cmd.Context(), entry); err != nil {
				return report(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Discarded item %d\n", itemID)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Delete without asking")
	return cmd
}

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var schedule string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Retry every catalog failure in the ledger",
		Long: "Retry every catalog failure in the ledger once, or with --schedule keep running\n" +
			"and sweep on a standard 5-field cron expression until interrupted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if schedule == "" {
				schedule = a.Config.Reconcile.CronExpr
			}
			if schedule == "" {
				rep, err := a.Reconcile.RetryAll(cmd.Context())
				if err != nil {
					return report(err)
				}
				printReport(cmd, rep)
				return nil
			}

			c := cron.New()
			if _, err := a.Reconcile.Schedule(cmd.Context(), c, schedule); err != nil {
				return err
			}
			if next, err := app.NextSweepInfo(schedule); err == nil {
				log.Info("Next reconcile sweep at %s", next)
			}
			c.Start()
			<-cmd.Context().Done()
			<-c.Stop().Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron expression; keep running and sweep on this schedule")
	return cmd
}

func printReport(cmd *cobra.Command, rep reconcile.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Retried %d item(s)\n", len(rep.Retried))
	for id, msg := range rep.Failed {
		fmt.Fprintf(out, "  %d still failing: %s\n", id, msg)
	}
}
