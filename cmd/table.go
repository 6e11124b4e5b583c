package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/MimeLyc/video-uploader/internal/ledger"
)

var statusColors = map[ledger.Status]text.Colors{
	ledger.StatusCatalogued:    {text.FgGreen},
	ledger.StatusCatalogFailed: {text.FgYellow},
	ledger.StatusUploadFailed:  {text.FgRed, text.Bold},
}

// renderHistoryTable lays out ledger entries one per row. With color set the
// STATUS cell is tinted by outcome.
func renderHistoryTable(entries []ledger.Entry, now time.Time, color bool) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"ITEM", "CREATED", "CATEGORY", "STATUS", "ERROR"})

	for _, e := range entries {
		tw.AppendRow(table.Row{
			e.ItemID,
			humanize.RelTime(time.Unix(e.CreatedAt, 0), now, "ago", "from now"),
			fmt.Sprintf("%d/%d", e.CategoryID, e.SubCategoryID),
			e.Status,
			truncate(e.Error, 60),
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Name: "ITEM", Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Name: "STATUS", Transformer: statusTransformer(color)},
	})
	return tw.Render()
}

func statusTransformer(color bool) text.Transformer {
	return func(val any) string {
		status, ok := val.(ledger.Status)
		if !ok {
			return fmt.Sprint(val)
		}
		colors, known := statusColors[status]
		if !color || !known {
			return status.String()
		}
		// text.Colors.Sprint honours a process-wide switch, so escape directly
		return text.Escape(status.String(), colors.EscapeSeq())
	}
}
