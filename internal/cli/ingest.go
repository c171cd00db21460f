package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"prodvec/internal/adapter/dataset"
	"prodvec/internal/domain"
	"prodvec/internal/usecase"
)

var (
	ingestFresh  bool
	ingestVerify bool
	ingestJSON   bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [paths...]",
	Short: "Upsert product datasets into the vector collection",
	Long: `Load each dataset, enrich and embed its chunks, and replace the product's
points in the collection. Directories are searched for datasets using the
configured include and exclude globs.

Examples:
  prodvec ingest                       # All datasets under the current directory
  prodvec ingest inuit.json --verify   # One dataset, then run the sample queries
  prodvec ingest datasets/ --fresh     # Drop and recreate the collection first`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVar(&ingestFresh, "fresh", false, "drop and recreate the collection before the first dataset")
	ingestCmd.Flags().BoolVar(&ingestVerify, "verify", false, "verify counts and run sample queries after each upsert")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output run results as JSON")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	paths := args
	if len(paths) == 0 {
		paths = []string{GetRootDir()}
	}
	walker := dataset.NewWalker(cfg.Dataset.Includes, cfg.Dataset.Excludes)
	files, err := walker.Resolve(paths)
	if err != nil {
		return fmt.Errorf("failed to resolve datasets: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no dataset files found in %v", paths)
	}

	a, err := openApp(cfg, GetRootDir(), ingestJSON)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := usecase.RunOptions{
		Mode:       usecase.ModeIdempotent,
		Verify:     ingestVerify || cfg.Verify.Enabled,
		Queries:    cfg.Verify.Queries,
		QueryLimit: cfg.Verify.Limit,
	}
	if ingestFresh {
		opts.Mode = usecase.ModeFresh
	}

	var bar *progressbar.ProgressBar
	if !ingestJSON && len(files) > 1 {
		bar = newProgressBar(len(files), "Ingesting")
	}

	start := time.Now()
	results := make([]*domain.RunResult, 0, len(files))
	failed := 0
	for _, f := range files {
		result, err := a.pipeline.RunFile(ctx, f, opts)
		results = append(results, result)
		if err != nil {
			failed++
		} else if opts.Mode == usecase.ModeFresh {
			// Only the first successful run starts from an empty collection.
			opts.Mode = usecase.ModeIdempotent
		}
		if bar != nil {
			bar.Add(1)
		}
		if ctx.Err() != nil {
			break
		}
	}

	if ingestJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
	} else {
		for _, r := range results {
			printRunResult(r)
		}
		fmt.Printf("\nProcessed %d dataset(s) in %s\n", len(results), formatDuration(time.Since(start)))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d datasets failed", failed, len(files))
	}
	return nil
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan]%s[reset]", description)),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
