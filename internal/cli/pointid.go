package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"prodvec/internal/domain"
)

var pointIDCmd = &cobra.Command{
	Use:   "point-id KEY INDEX",
	Short: "Print the point id derived from an entity key and chunk index",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[1])
		if err != nil || index < 0 {
			return fmt.Errorf("invalid chunk index: %s", args[1])
		}
		fmt.Fprintln(cmd.OutOrStdout(), domain.DerivePointID(args[0], index))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pointIDCmd)
}
