package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/famomatic/tubemux/internal/config"
	"github.com/famomatic/tubemux/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// cli carries state from the persistent pre-run into the subcommands.
type cli struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
	log        zerolog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:           "tubemux",
		Short:         "Look up YouTube videos, relay their streams and mux video with audio",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configFile, "config", "", "Config file (default ./tubemux.{yaml,toml,json})")
	pf.String(config.KeyLogLevel, "info", "Log level (trace, debug, info, warn, error)")
	pf.String(config.KeyLogFormat, logging.FormatConsole, "Log format (console or json)")
	pf.String(config.KeyLocale, "pt-BR", "Language of user-facing messages (pt-BR or en)")
	pf.String(config.KeyProxy, "", "Proxy URL for upstream requests")
	pf.String(config.KeyUserAgent, "", "User-Agent for upstream requests")
	pf.StringSlice(config.KeyStrategies, config.DefaultStrategies, "Lookup strategies in order (innertube, library, page)")
	pf.StringSlice(config.KeyClients, nil, "Innertube client profiles in order (android, ios, web, web_embedded, mweb, tv)")
	pf.String(config.KeyVisitorData, "", "Innertube visitor data")
	pf.String(config.KeyCookiesFile, "", "Netscape cookies file for upstream requests")
	pf.Bool(config.KeyCookiesFromBrowser, false, "Read youtube.com cookies from local browsers")
	pf.Duration(config.KeyRequestTimeout, 0, "Timeout of a single extraction request")
	pf.String(config.KeyOutputDir, "downloads", "Directory finished files are written to")
	pf.String(config.KeyWorkDir, "", "Transcoder workspace directory (default a temp dir)")
	pf.String(config.KeyFFmpegPath, "ffmpeg", "ffmpeg binary")
	pf.String(config.KeyFFprobePath, "ffprobe", "ffprobe binary")
	pf.String(config.KeyRelayURL, "", "Fetch media through a remote tubemux /relay endpoint")
	if err := bindFlags(c.v, pf); err != nil {
		panic(err)
	}

	root.AddCommand(
		newServeCmd(c),
		newLookupCmd(c),
		newMuxCmd(c),
		newVersionCmd(),
	)
	return root
}

// bindFlags binds every flag except --config to the viper key of the same name.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		if err := v.BindPFlag(f.Name, f); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

func (c *cli) load(cmd *cobra.Command) error {
	if err := bindFlags(c.v, cmd.Flags()); err != nil {
		return err
	}
	bootstrap, err := logging.New(logging.Options{
		Level:  c.v.GetString(config.KeyLogLevel),
		Format: c.v.GetString(config.KeyLogFormat),
	})
	if err != nil {
		bootstrap, _ = logging.New(logging.Options{})
	}
	cfg, err := config.Load(c.v, c.configFile, bootstrap)
	if err != nil {
		return err
	}
	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	c.cfg, c.log = cfg, log
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tubemux %s\n", version)
		},
	}
}

func exitWith(err error) {
	fmt.Fprintln(os.Stderr, "tubemux:", err)
	os.Exit(1)
}
