package cmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/edachat-cli/internal/conversation"
	"github.com/KaramelBytes/edachat-cli/internal/utils"
)

var (
	exportFormat string
	exportOutput string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show, export or clear the saved conversation",
}

var historyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved conversation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		snap := a.session.Conversation.Snapshot()
		if len(snap) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "(no saved conversation)")
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), a.render.History(snap))
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Erase the conversation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		a.session.Conversation.Clear()
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Conversation cleared")
		return nil
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the conversation as markdown, json or yaml",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		var buf bytes.Buffer
		if err := conversation.Export(&buf, a.session.Conversation.Snapshot(), exportFormat); err != nil {
			return err
		}
		if exportOutput == "" {
			_, err := cmd.OutOrStdout().Write(buf.Bytes())
			return err
		}
		if err := utils.SafeWriteFile(exportOutput, buf.Bytes()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d exchanges to %s\n", a.session.Conversation.Len(), exportOutput)
		return nil
	},
}

var historySaveCmd = &cobra.Command{
	Use:   "save [on|off]",
	Short: "Show or change whether the conversation is saved between runs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if len(args) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "save history: %s\n", onOff(a.session.SaveHistoryEnabled()))
			return nil
		}
		enabled, err := parseOnOff(args[0])
		if err != nil {
			return err
		}
		if err := a.session.SetSaveHistory(enabled); err != nil {
			return err
		}
		if enabled {
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Conversation will be saved between runs")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved conversation erased; new messages will not be saved")
		}
		return nil
	},
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd, historyClearCmd, historyExportCmd, historySaveCmd)
	historyExportCmd.Flags().StringVar(&exportFormat, "format", conversation.FormatMarkdown, "export format: markdown, json or yaml")
	historyExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")
}
