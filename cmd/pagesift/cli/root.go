// Package cli implements the pagesift commands using Cobra.
package cli

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pagesift/pagesift/internal/config"
)

var (
	flagConfig  string
	flagVerbose bool

	cfg config.FileConfig
)

var rootCmd = &cobra.Command{
	Use:   "pagesift",
	Short: "pagesift — turn URLs and files into clean text",
	Long: `pagesift runs an ingestion pipeline over web and file resources:
fetch with retry, detect the content type, extract text per format,
clean it through a configurable chain, and emit the result.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zerolog.TimeFieldFormat = time.RFC3339
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return err
		}
		config.ApplyEnv(&cfg)

		if flagVerbose || cfg.Verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to a YAML or JSON config file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
}
