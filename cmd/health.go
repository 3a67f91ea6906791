package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the analysis server is up",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := ensureConfig()
		if err != nil {
			return err
		}
		client := newClient(c)
		h, err := client.Health(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ %s is %s\n", client.BaseURL(), h.Status)
		if h.GoogleAPIKeyConfigured != nil && !*h.GoogleAPIKeyConfigured {
			fmt.Fprintln(out, "⚠ The server has no model API key configured; questions will fail")
		}
		if h.DefaultCSVExists != nil {
			if *h.DefaultCSVExists {
				fmt.Fprintf(out, "default dataset: %s\n", h.CSVPath)
			} else {
				fmt.Fprintf(out, "⚠ Default dataset missing on the server (%s); upload a CSV instead\n", h.CSVPath)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
