package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/heapscope/heapscope/internal/logutil"
)

var release string

func main() {
	logutil.ConfigureLogger()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error reading environment")
	}

	root := newRootCmd(&cfg)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *serviceConfig) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "heapscope",
		Short:         "Allocation profiler for embedded managed runtimes",
		Version:       release,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if !verbose {
				log.Logger = log.Logger.Sample(logutil.LevelSampler{Level: zerolog.WarnLevel})
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "keep per-cycle GC log lines")
	root.PersistentFlags().StringVar(&cfg.Format, "format", cfg.Format, "output format: dot, csv, text or json")
	root.PersistentFlags().StringVar(&cfg.ArchiveDir, "archive-dir", cfg.ArchiveDir, "badger directory for archived profiles")

	root.AddCommand(newDemoCmd(cfg))
	root.AddCommand(newServeCmd(cfg))
	root.AddCommand(newShowCmd(cfg))
	return root
}
