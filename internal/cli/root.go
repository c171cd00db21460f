package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"prodvec/config"
)

var (
	cfgFile  string
	cfg      *config.Config
	rootDir  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "prodvec",
	Short: "Product vectorization pipeline - embed product chunks into a vector collection",
	Long: `prodvec loads pre-chunked product datasets, enriches each chunk with
tracking metadata, embeds it and replaces the product's points in a vector
collection without leaving duplicates behind.

Example usage:
  prodvec ingest datasets/                 # Upsert every dataset under datasets/
  prodvec ingest inuit.json --fresh        # Recreate the collection first
  prodvec search -q "Wie lange hält der Akku?"
  prodvec verify --entity 022572-00`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := config.ApplyEnv(cfg, rootDir); err != nil {
			return fmt.Errorf("failed to apply environment: %w", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./prodvec.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
