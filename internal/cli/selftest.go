package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"prodvec/internal/adapter/dataset"
)

var selftestJSON bool

var selftestCmd = &cobra.Command{
	Use:   "selftest [dataset]",
	Short: "Upsert a dataset twice and check that points are replaced, not duplicated",
	Long: `Run the replace-not-duplicate check against the live collection. The
dataset is upserted twice with marked content; the command fails unless the
point count stays stable and the stored content reflects the second update.

Without an argument the first dataset found under the root directory is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSelftest,
}

func init() {
	rootCmd.AddCommand(selftestCmd)
	selftestCmd.Flags().BoolVar(&selftestJSON, "json", false, "output the report as JSON")
}

func runSelftest(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	path := ""
	if len(args) > 0 {
		path = args[0]
	} else {
		files, err := dataset.NewWalker(cfg.Dataset.Includes, cfg.Dataset.Excludes).Walk(GetRootDir())
		if err != nil {
			return fmt.Errorf("failed to find datasets: %w", err)
		}
		if len(files) == 0 {
			return fmt.Errorf("no dataset found in %s", GetRootDir())
		}
		path = files[0]
	}

	ds, err := dataset.Load(path)
	if err != nil {
		return err
	}

	a, err := openApp(cfg, GetRootDir(), selftestJSON)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.pipeline.SelfTest(cmd.Context(), ds)
	if selftestJSON {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Self test for %s (%s)\n", report.EntityKey, path)
		for _, s := range report.Steps {
			fmt.Printf("  %s %-22s count=%d %s\n", statusLabel(s.Success), s.Name, s.Count, dimText(s.Detail))
		}
		if report.Error != "" {
			fmt.Printf("  %s %s\n", failLabel("Error:"), report.Error)
		}
		fmt.Printf("Overall: %s\n", statusLabel(report.OverallSuccess))
	}

	if err != nil {
		return err
	}
	if !report.OverallSuccess {
		return fmt.Errorf("self test failed for %s", report.EntityKey)
	}
	return nil
}
