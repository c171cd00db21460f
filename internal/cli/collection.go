package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"prodvec/internal/usecase"
)

var (
	collectionFresh bool
	collectionJSON  bool
)

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Inspect and manage the target collection",
}

var collectionInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show point count, vector size, distance and indexes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(GetConfig(), GetRootDir(), collectionJSON)
		if err != nil {
			return err
		}
		defer a.Close()

		info, err := a.requireCollection(cmd.Context())
		if err != nil {
			return err
		}
		if collectionJSON {
			output, _ := json.MarshalIndent(info, "", "  ")
			fmt.Println(string(output))
			return nil
		}
		printCollectionInfo(info)
		return nil
	},
}

var collectionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the collection and its payload indexes",
	Long: `Create the collection sized for the configured embedder. An existing
collection is kept and only missing indexes are added, unless --fresh is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(GetConfig(), GetRootDir(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		mode := usecase.ModeIdempotent
		if collectionFresh {
			mode = usecase.ModeFresh
		}
		result, err := a.collections.EnsureCollection(cmd.Context(), a.spec, mode)
		if err != nil {
			return err
		}

		switch {
		case result.Recreated:
			fmt.Printf("Recreated collection %s\n", a.spec.Name)
		case result.Created:
			fmt.Printf("Created collection %s\n", a.spec.Name)
		default:
			fmt.Printf("Collection %s already exists\n", a.spec.Name)
		}
		if len(result.IndexesAdded) > 0 {
			fmt.Printf("Indexes added: %v\n", result.IndexesAdded)
		}
		if len(result.IndexFailures) > 0 {
			fmt.Printf("%s could not index %v\n", warnText("Warning:"), result.IndexFailures)
		}
		return nil
	},
}

var collectionDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Delete the collection and every point in it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(GetConfig(), GetRootDir(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.collections.Drop(cmd.Context(), a.spec.Name); err != nil {
			return err
		}
		fmt.Printf("Dropped collection %s\n", a.spec.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(collectionCmd)
	collectionCmd.AddCommand(collectionInfoCmd, collectionCreateCmd, collectionDropCmd)
	collectionInfoCmd.Flags().BoolVar(&collectionJSON, "json", false, "output as JSON")
	collectionCreateCmd.Flags().BoolVar(&collectionFresh, "fresh", false, "drop and recreate an existing collection")
}
