package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	verifyEntity   string
	verifyExpected int
	verifyQueries  bool
	verifyJSON     bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the stored points of one entity",
	Long: `Count the points stored for an entity and fetch a sample. With --expected
the command fails when the count differs; with --queries the configured
sample queries are run against the entity.

Examples:
  prodvec verify --entity 022572-00
  prodvec verify --entity 022572-00 --expected 3 --queries`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVar(&verifyEntity, "entity", "", "entity key to verify (required)")
	verifyCmd.Flags().IntVar(&verifyExpected, "expected", -1, "expected number of points")
	verifyCmd.Flags().BoolVar(&verifyQueries, "queries", false, "run the configured sample queries")
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "output as JSON")
	verifyCmd.MarkFlagRequired("entity")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	a, err := openApp(cfg, GetRootDir(), verifyJSON)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if _, err := a.requireCollection(ctx); err != nil {
		return err
	}

	expected := verifyExpected
	if expected < 0 {
		expected = a.probe.CountForEntity(ctx, verifyEntity)
	}
	var queries []string
	if verifyQueries {
		queries = cfg.Verify.Queries
	}
	v := a.probe.Verify(ctx, verifyEntity, expected, queries, cfg.Verify.Limit)

	if verifyJSON {
		output, _ := json.MarshalIndent(v, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("%s %s\n", statusLabel(v.CountMatches && v.PointsCount > 0), verifyEntity)
		printVerification(v)
	}

	if v.PointsCount == 0 {
		return fmt.Errorf("no points stored for entity %s", verifyEntity)
	}
	if !v.CountMatches {
		return fmt.Errorf("entity %s has %d points, expected %d", verifyEntity, v.PointsCount, expected)
	}
	return nil
}
