package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/famomatic/tubemux/internal/config"
	"github.com/famomatic/tubemux/internal/server"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (lookup, relay and mux jobs)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), c.cfg, c.log)
			if err != nil {
				return err
			}
			if !a.ffmpeg.Available() {
				a.log.Warn().Str("ffmpeg", c.cfg.FFmpegPath).Msg("ffmpeg not found, mux jobs will fail")
			}
			srv := server.New(server.Options{
				Provider:       a.provider,
				Relay:          a.fetcher,
				Pipeline:       a.pipeline,
				Files:          a.files,
				AllowedOrigins: c.cfg.AllowedOrigins,
				Ready: func() error {
					if !a.ffmpeg.Available() {
						return errors.New("ffmpeg not available")
					}
					return nil
				},
				Logger: a.log.With().Str("component", "http").Logger(),
			})
			return srv.ListenAndServe(cmd.Context(), c.cfg.Addr)
		},
	}
	cmd.Flags().String(config.KeyAddr, ":8080", "Listen address")
	cmd.Flags().StringSlice(config.KeyAllowedOrigins, []string{"*"}, "Allowed CORS origins")
	cmd.Flags().Duration(config.KeySuccessTTL, 0, "How long finished jobs stay listed")
	cmd.Flags().Duration(config.KeyErrorTTL, 0, "How long failed jobs stay listed")
	return cmd
}
