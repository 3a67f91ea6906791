package cmd

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/edachat-cli/internal/utils"
)

var plotOutput string

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Work with plots attached to answers",
}

var plotSaveCmd = &cobra.Command{
	Use:   "save <n>",
	Short: "Download the plot of the n-th exchange (1 is the oldest)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid exchange number: %s", args[0])
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		snap := a.session.Conversation.Snapshot()
		if n < 1 || n > len(snap) {
			return fmt.Errorf("no exchange %d (conversation has %d)", n, len(snap))
		}
		ex := snap[n-1]
		if !ex.HasPlot() {
			return fmt.Errorf("exchange %d has no plot", n)
		}
		out := plotOutput
		if out == "" {
			out = plotFileName(ex.PlotURL, n)
		}
		var buf bytes.Buffer
		size, err := a.client.FetchPlot(cmd.Context(), ex.PlotURL, &buf)
		if err != nil {
			return err
		}
		if err := utils.SafeWriteFile(out, buf.Bytes()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved plot (%d bytes) to %s\n", size, out)
		return nil
	},
}

// plotFileName derives a local name from the plot URL.
func plotFileName(plotURL string, n int) string {
	if u, err := url.Parse(plotURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			return base
		}
	}
	return fmt.Sprintf("plot-%d.png", n)
}

func init() {
	rootCmd.AddCommand(plotCmd)
	plotCmd.AddCommand(plotSaveCmd)
	plotSaveCmd.Flags().StringVarP(&plotOutput, "output", "o", "", "output file (default: the plot's file name)")
}
