package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"clipper/internal/queue"
	"clipper/internal/selection"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show full detail for one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseJobIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				job, err := store.GetByID(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %d not found", ids[0])
				}
				printJob(cmd, job)
				return nil
			})
		},
	}
}

func printJob(cmd *cobra.Command, job *queue.Job) {
	out := cmd.OutOrStdout()
	color := shouldColorize(out)

	fmt.Fprintf(out, "Job %d: %s\n", job.ID, job.Title)
	fmt.Fprintf(out, "  status:   %s\n", colorizeStatus(string(job.Status), color))
	if job.SourceURL != "" {
		fmt.Fprintf(out, "  source:   %s\n", job.SourceURL)
	}
	if job.SourcePath != "" {
		fmt.Fprintf(out, "  file:     %s\n", job.SourcePath)
	}
	if job.Language != "" {
		fmt.Fprintf(out, "  language: %s\n", job.Language)
	}
	fmt.Fprintf(out, "  created:  %s\n", job.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	if job.Status == queue.StatusProcessing {
		fmt.Fprintf(out, "  progress: %s\n", formatProgress(job))
		fmt.Fprintf(out, "  heartbeat: %s\n", formatTimestamp(job.LastHeartbeat))
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "  error:    %s\n", job.ErrorMessage)
	}

	if job.Status == queue.StatusDone && job.ClipsJSON != "" {
		printClipManifest(cmd, job.ClipsJSON)
	}
}

// printClipManifest renders the finalize manifest; it falls back to the
// bare clip list when the job has not reached finalize yet.
func printClipManifest(cmd *cobra.Command, clipsJSON string) {
	type manifestClip struct {
		selection.Clip
		ExportPath string `json:"export_path"`
	}
	var doc struct {
		Clips []manifestClip `json:"clips"`
	}
	if err := json.Unmarshal([]byte(clipsJSON), &doc); err != nil || len(doc.Clips) == 0 {
		return
	}

	rows := make([][]string, 0, len(doc.Clips))
	for _, clip := range doc.Clips {
		rows = append(rows, []string{
			clip.ID,
			truncateCell(clip.Title, 36),
			fmt.Sprintf("%.1fs", clip.End-clip.Start),
			clip.Grade,
			fmt.Sprintf("%.0f", clip.Score),
			clip.ExportPath,
		})
	}
	out := renderTable(
		[]string{"Clip", "Title", "Length", "Grade", "Score", "Export"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
	)
	fmt.Fprintln(cmd.OutOrStdout(), out)
}
