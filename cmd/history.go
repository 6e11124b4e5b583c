package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/video-uploader/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var failedOnly bool
	var format string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the upload ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			entries, err := ledger.New(cfg.Ledger.File).LoadAll()
			if err != nil {
				return report(err)
			}
			if failedOnly {
				entries = discardable(entries)
			}

			switch format {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			case "table":
				writeHistoryTable(cmd.OutOrStdout(), entries, time.Now())
				return nil
			default:
				return fmt.Errorf("invalid format: %s (valid values: table, json)", format)
			}
		},
	}

	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only show entries that still need retry or discard")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}

func discardable(entries []ledger.Entry) []ledger.Entry {
	ret := make([]ledger.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Status.Discardable() {
			ret = append(ret, e)
		}
	}
	return ret
}

func writeHistoryTable(w io.Writer, entries []ledger.Entry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "Ledger is empty")
		return
	}
	fmt.Fprintln(w, renderHistoryTable(entries, now, isTerminal(w)))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
