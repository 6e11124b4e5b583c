package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/video-uploader/internal/objectstore"
	"github.com/MimeLyc/video-uploader/internal/pipeline"
	"github.com/MimeLyc/video-uploader/pkg/file"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var categoryID int
	var subCategoryID int

	cmd := &cobra.Command{
		Use:   "submit VIDEO [SUBTITLE]",
		Short: "Upload a video and its bilingual subtitle, then catalogue them",
		Long: "Upload a video and its bilingual SRT subtitle to the object store and write the catalog rows.\n" +
			"When SUBTITLE is omitted the .srt file next to the video is used.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := pipeline.UploadRequest{
				VideoPath:     args[0],
				SubtitlePath:  file.ReplaceExt(args[0], objectstore.SubtitleExt),
				CategoryID:    categoryID,
				SubCategoryID: subCategoryID,
			}
			if len(args) == 2 {
				req.SubtitlePath = args[1]
			}

			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}

			h, err := a.Pipeline.Submit(cmd.Context(), req)
			if err != nil {
				return report(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Uploading %s (%s) as item %d\n", req.VideoPath, fileSize(req.VideoPath), h.ItemID)

			watchCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			renderProgress(watchCtx, out, a.Monitor)

			snap, err := h.Wait(cmd.Context())
			if err != nil {
				return err
			}
			printOutcome(out, snap)
			return report(snap.Err)
		},
	}

	cmd.Flags().IntVar(&categoryID, "category", 0, "Category id")
	cmd.Flags().IntVar(&subCategoryID, "sub-category", 0, "Sub-category id")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("sub-category")

	return cmd
}

// renderProgress follows the monitor until the submission finishes. Terminals get a
// progress bar, anything else gets one line per file change.
func renderProgress(ctx context.Context, out io.Writer, monitor *pipeline.Monitor) {
	updates := monitor.Watch(ctx, 200*time.Millisecond)

	if !isTerminal(out) {
		lastFile := ""
		for snap := range updates {
			if snap.ActiveFile != lastFile && snap.ActiveFile != "" {
				lastFile = snap.ActiveFile
				fmt.Fprintf(out, "  uploading %s\n", snap.ActiveFile)
			}
			if pipeline.Finished(snap) {
				return
			}
		}
		return
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("video"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionClearOnFinish(),
	)
	for snap := range updates {
		if snap.ActiveFile != "" {
			bar.Describe(snap.ActiveFile)
		}
		_ = bar.Set(snap.Overall)
		if pipeline.Finished(snap) || snap.State == pipeline.StateUploaded {
			_ = bar.Finish()
			return
		}
	}
}

func printOutcome(out io.Writer, snap pipeline.Snapshot) {
	fmt.Fprintf(out, "Item %d: %s\n", snap.ItemID, snap.State)
	if snap.VideoURL != "" {
		fmt.Fprintf(out, "  video:    %s\n", snap.VideoURL)
	}
	if snap.SubtitleURL != "" {
		fmt.Fprintf(out, "  subtitle: %s\n", snap.SubtitleURL)
	}
	if snap.CueCount > 0 {
		fmt.Fprintf(out, "  cues:     %d\n", snap.CueCount)
	}
	if snap.LedgerError != "" {
		fmt.Fprintf(out, "  ledger:   %s\n", snap.LedgerError)
	}
	if snap.State == pipeline.StateCatalogFailed {
		fmt.Fprintf(out, "  run `uploader retry %d` once the database is reachable\n", snap.ItemID)
	}
}

func fileSize(path string) string {
	info, err := file.StatRegular(path)
	if err != nil {
		return "?"
	}
	return humanize.Bytes(uint64(info.Size()))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
