package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// exampleQuestions are offered to new users; selecting one fills the prompt.
var exampleQuestions = []string{
	"What columns are in the dataset?",
	"Which columns have missing values?",
	"Give me statistics for the age column",
	"Show me the first 5 columns with their types",
}

var examplesCmd = &cobra.Command{
	Use:   "examples",
	Short: "List example questions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for i, q := range exampleQuestions {
			fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, q)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(examplesCmd)
}
