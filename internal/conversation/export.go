package conversation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Export formats.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
)

// Export writes the raw exchanges in the requested format. Answers are
// written exactly as stored, with no emphasis rendering applied.
func Export(w io.Writer, exchanges []Exchange, format string) error {
	switch strings.ToLower(format) {
	case "", FormatMarkdown, "md":
		return exportMarkdown(w, exchanges)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if exchanges == nil {
			exchanges = []Exchange{}
		}
		if err := enc.Encode(exchanges); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	case FormatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(exchanges); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported export format: %s (use markdown, json or yaml)", format)
	}
}

func exportMarkdown(w io.Writer, exchanges []Exchange) error {
	var sb strings.Builder
	sb.WriteString("# Conversation\n\n")
	if len(exchanges) == 0 {
		sb.WriteString("(no exchanges)\n")
	}
	for i, ex := range exchanges {
		fmt.Fprintf(&sb, "## %d. %s\n\n", i+1, ex.Question)
		sb.WriteString(ex.Answer)
		sb.WriteString("\n")
		if ex.HasPlot() {
			fmt.Fprintf(&sb, "\n![plot](%s)\n", ex.PlotURL)
		}
		sb.WriteString("\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
