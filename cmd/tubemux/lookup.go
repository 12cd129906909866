package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/famomatic/tubemux/internal/catalog"
	"github.com/famomatic/tubemux/internal/provider"
)

func newLookupCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "lookup <url>",
		Short: "List the downloadable formats of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c.cfg, c.log)
			if err != nil {
				return err
			}
			info, err := a.provider.Lookup(cmd.Context(), args[0])
			if err != nil {
				return userError(err, c.cfg.Locale)
			}
			cat, err := catalog.Build(info.Variants)
			if err != nil {
				return userError(err, c.cfg.Locale)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					*provider.VideoInfo
					Catalog *catalog.Catalog `json:"catalog"`
				}{info, cat})
			}
			return printCatalog(cmd.OutOrStdout(), info, cat)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func printCatalog(w io.Writer, info *provider.VideoInfo, cat *catalog.Catalog) error {
	fmt.Fprintf(w, "%s\n", info.Title)
	if info.Author != "" {
		fmt.Fprintf(w, "by %s\n", info.Author)
	}
	fmt.Fprintf(w, "duration %ss, source %s\n\n", info.DurationSeconds, info.Source)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITAG\tQUALITY\tCONTAINER\tTYPE\tSIZE")
	for _, e := range cat.Entries {
		size := e.FileSize
		if size == "" {
			size = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.Itag, e.Quality, e.Container, e.Category, size)
	}
	return tw.Flush()
}
