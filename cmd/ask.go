package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/edachat-cli/internal/dataset"
	"github.com/KaramelBytes/edachat-cli/internal/gateway"
)

var askFile string

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask one question and print the answer",
	Long: `Ask one question about the default dataset, or about a CSV file given with
--file. Selecting a file starts a new conversation, exactly like uploading it
in chat does.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.TrimSpace(strings.Join(args, " "))
		if question == "" {
			return errors.New("question cannot be empty")
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if askFile != "" {
			if err := selectFile(a, []string{askFile}); err != nil {
				return err
			}
		}
		res := a.session.Ask(cmd.Context(), question)
		switch res.Outcome {
		case gateway.OutcomeAppended:
			fmt.Fprint(cmd.OutOrStdout(), a.render.Exchange(res.Exchange))
			return nil
		case gateway.OutcomeFailed:
			return res.Err
		default:
			return fmt.Errorf("question was not sent (%s)", res.Outcome)
		}
	},
}

// selectFile accepts the first of paths as the custom dataset. Extra paths
// are dropped like extra files in a multi-file drop; one that cannot be read
// is dropped early.
func selectFile(a *app, paths []string) error {
	if len(paths) == 0 {
		return errors.New("no file given")
	}
	first, err := dataset.OpenUpload(paths[0])
	if err != nil {
		return err
	}
	uploads := []*dataset.Upload{first}
	for _, p := range paths[1:] {
		if u, err := dataset.OpenUpload(p); err == nil {
			uploads = append(uploads, u)
		}
	}
	return a.session.Dataset.AcceptFirst(uploads)
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askFile, "file", "f", "", "CSV file to ask about instead of the default dataset")
}
