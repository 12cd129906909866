package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/famomatic/tubemux/internal/jobs"
	"github.com/famomatic/tubemux/internal/mux"
	"github.com/famomatic/tubemux/internal/types"
)

func newMuxCmd(c *cli) *cobra.Command {
	var videoItag, audioItag int
	var format string
	cmd := &cobra.Command{
		Use:   "mux <url>",
		Short: "Download a video-only format and an audio format and remux them into one MP4",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" && videoItag <= 0 {
				return errors.New("--format or --video-itag is required (see tubemux lookup)")
			}
			a, err := newApp(cmd.Context(), c.cfg, c.log)
			if err != nil {
				return err
			}
			if !a.ffmpeg.Available() {
				return fmt.Errorf("ffmpeg not found at %q", c.cfg.FFmpegPath)
			}

			info, err := a.provider.Lookup(cmd.Context(), args[0])
			if err != nil {
				return userError(err, c.cfg.Locale)
			}
			var req mux.Request
			if format != "" {
				req, err = mux.RequestFromFormat(info, format)
			} else {
				req, err = mux.RequestFromInfo(info, videoItag, audioItag)
			}
			if err != nil {
				return userError(err, c.cfg.Locale)
			}
			req.Locale = types.ParseLocale(c.cfg.Locale)

			job, err := a.pipeline.Create(req)
			if err != nil {
				return userError(err, c.cfg.Locale)
			}
			done := make(chan struct{})
			go func() {
				defer close(done)
				reportProgress(cmd.Context(), cmd.ErrOrStderr(), a.pipeline.Tracker(), job.ID)
			}()
			runErr := a.pipeline.Run(cmd.Context(), job)
			<-done

			final, _ := a.pipeline.Tracker().Get(job.ID)
			if runErr != nil {
				if final.Error != "" {
					return errors.New(final.Error)
				}
				return runErr
			}
			fmt.Fprintln(cmd.OutOrStdout(), final.OutputPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", `Format expression, e.g. "bv[height<=1080]+ba/best"`)
	cmd.Flags().IntVar(&videoItag, "video-itag", 0, "Itag of the video format")
	cmd.Flags().IntVar(&audioItag, "audio-itag", 0, "Itag of the audio format (default best audio)")
	return cmd
}

// reportProgress prints status changes and new log lines until the job ends.
func reportProgress(ctx context.Context, w io.Writer, tracker *jobs.Tracker, id string) {
	updates, cancel := tracker.Subscribe(id)
	defer cancel()

	var lastProgress = -1
	var lastStatus jobs.Status
	printed := 0
	for {
		job, ok := tracker.Get(id)
		if !ok {
			return
		}
		for ; printed < len(job.Logs); printed++ {
			fmt.Fprintf(w, "  %s\n", job.Logs[printed].Message)
		}
		if job.Progress != lastProgress || job.Status != lastStatus {
			fmt.Fprintf(w, "[%3d%%] %s\n", job.Progress, job.Status)
			lastProgress, lastStatus = job.Progress, job.Status
		}
		if job.Status.Terminal() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case _, open := <-updates:
			if !open {
				return
			}
		}
	}
}

func userError(err error, locale string) error {
	return fmt.Errorf("%s (%w)", types.Message(types.KindOf(err), types.ParseLocale(locale)), err)
}
