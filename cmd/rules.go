package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dataprofiler/internal/recommend"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the heuristics in evaluation order",
	RunE: func(cmd *cobra.Command, args []string) error {
		for i, name := range recommend.NewEngine().Rules() {
			fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}
