package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"clipper/internal/queue"
	"clipper/internal/selection"
)

// addFlags collects the per-job selection overrides. Unset flags stay at
// their zero values so the daemon defaults apply.
type addFlags struct {
	title          string
	language       string
	style          string
	genre          string
	minSeconds     float64
	maxSeconds     float64
	targetSeconds  float64
	maxClips       int
	timeframeStart float64
	timeframeEnd   float64
	momentText     string
	windows        []string
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	flags := &addFlags{}

	cmd := &cobra.Command{
		Use:   "add <file-or-url>",
		Short: "Enqueue a source video for clipping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := strings.TrimSpace(args[0])
			if source == "" {
				return fmt.Errorf("source is required")
			}

			requestJSON, err := buildRequestJSON(cmd, flags)
			if err != nil {
				return err
			}

			return ctx.withStore(func(store *queue.Store) error {
				var job *queue.Job
				if isRemoteSource(source) {
					job, err = store.NewJob(cmd.Context(), flags.title, source, flags.language, requestJSON, nil)
				} else {
					path, absErr := filepath.Abs(source)
					if absErr != nil {
						return fmt.Errorf("resolve source path: %w", absErr)
					}
					if _, statErr := os.Stat(path); statErr != nil {
						return fmt.Errorf("source file: %w", statErr)
					}
					job, err = store.NewLocalJob(cmd.Context(), path, flags.language, requestJSON)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued job %d (%s) as %s\n", job.ID, job.Title, job.Status)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&flags.title, "title", "", "Job title (defaults to the source file name)")
	cmd.Flags().StringVar(&flags.language, "language", "", "Spoken language hint, e.g. en")
	cmd.Flags().StringVar(&flags.style, "style", "", "Clip style: hooky, educational, or story")
	cmd.Flags().StringVar(&flags.genre, "genre", "", "Source genre hint, e.g. podcast")
	cmd.Flags().Float64Var(&flags.minSeconds, "min-seconds", 0, "Minimum clip duration")
	cmd.Flags().Float64Var(&flags.maxSeconds, "max-seconds", 0, "Maximum clip duration")
	cmd.Flags().Float64Var(&flags.targetSeconds, "target-seconds", 0, "Preferred clip duration")
	cmd.Flags().IntVar(&flags.maxClips, "max-clips", 0, "Maximum number of clips")
	cmd.Flags().Float64Var(&flags.timeframeStart, "from", 0, "Only consider material after this offset in seconds")
	cmd.Flags().Float64Var(&flags.timeframeEnd, "to", 0, "Only consider material before this offset in seconds")
	cmd.Flags().StringVar(&flags.momentText, "moment", "", "Favor clips containing this phrase")
	cmd.Flags().StringArrayVar(&flags.windows, "window", nil, "Pin an explicit clip window as start-end seconds (repeatable)")

	return cmd
}

func buildRequestJSON(cmd *cobra.Command, flags *addFlags) (string, error) {
	req := selection.Request{
		Style:         strings.ToLower(strings.TrimSpace(flags.style)),
		Genre:         strings.ToLower(strings.TrimSpace(flags.genre)),
		MinSeconds:    flags.minSeconds,
		MaxSeconds:    flags.maxSeconds,
		TargetSeconds: flags.targetSeconds,
		MaxClips:      flags.maxClips,
		MomentText:    strings.TrimSpace(flags.momentText),
	}
	if cmd.Flags().Changed("from") {
		start := flags.timeframeStart
		req.TimeframeStart = &start
	}
	if cmd.Flags().Changed("to") {
		end := flags.timeframeEnd
		req.TimeframeEnd = &end
	}
	windows, err := parseWindows(flags.windows)
	if err != nil {
		return "", err
	}
	req.Windows = windows

	if req.IsEmpty() {
		return "", nil
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode selection request: %w", err)
	}
	return string(raw), nil
}

func parseWindows(values []string) ([]selection.ProvidedWindow, error) {
	if len(values) == 0 {
		return nil, nil
	}
	windows := make([]selection.ProvidedWindow, 0, len(values))
	for _, value := range values {
		lowHigh := strings.SplitN(strings.TrimSpace(value), "-", 2)
		if len(lowHigh) != 2 {
			return nil, fmt.Errorf("invalid window %q, want start-end seconds", value)
		}
		start, startErr := strconv.ParseFloat(strings.TrimSpace(lowHigh[0]), 64)
		end, endErr := strconv.ParseFloat(strings.TrimSpace(lowHigh[1]), 64)
		if startErr != nil || endErr != nil || end <= start {
			return nil, fmt.Errorf("invalid window %q, want start-end seconds", value)
		}
		windows = append(windows, selection.ProvidedWindow{Start: start, End: end})
	}
	return windows, nil
}

func isRemoteSource(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
