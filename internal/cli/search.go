package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	searchText   string
	searchEntity string
	searchTopK   int
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run a similarity search against the collection",
	Long: `Embed a query and print the closest chunks, best first.

Examples:
  prodvec search -q "Ist der Handschuh wasserdicht?"
  prodvec search -q "Akku" --entity 022572-00 -k 3 --json`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchText, "query", "q", "", "search query (required)")
	searchCmd.Flags().StringVar(&searchEntity, "entity", "", "restrict results to one entity key")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 5, "number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := openApp(GetConfig(), GetRootDir(), searchJSON)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if _, err := a.requireCollection(ctx); err != nil {
		return err
	}

	hits := a.probe.Search(ctx, searchText, searchEntity, searchTopK)

	if searchJSON {
		output, _ := json.MarshalIndent(hits, "", "  ")
		fmt.Println(string(output))
		return nil
	}
	if len(hits) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(hits), searchText)
	printHits(hits, "")
	return nil
}
