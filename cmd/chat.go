package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/edachat-cli/internal/dataset"
	"github.com/KaramelBytes/edachat-cli/internal/gateway"
	"github.com/KaramelBytes/edachat-cli/internal/render"
	"github.com/KaramelBytes/edachat-cli/internal/utils"
)

var (
	chatFile  string
	chatWatch bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Start an interactive conversation about the default dataset or a CSV file.
Type a question to ask it, or a slash command (/help lists them). Answers
arrive while you keep typing; only one question is answered at a time.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		c := newChatREPL(a, cmd.OutOrStdout())
		if chatFile != "" {
			if err := selectFile(a, []string{chatFile}); err != nil {
				return err
			}
		}
		if chatWatch {
			if !a.session.Dataset.Current().HasFile() {
				return errors.New("--watch needs --file")
			}
			go c.watch(ctx)
		}
		go c.follow(ctx)

		c.printWelcome()
		err = c.loop(ctx)
		c.wait()
		return err
	},
}

// chatREPL reads input, dispatches slash commands and prints answers as they
// complete. Output from background goroutines is serialized through printf.
type chatREPL struct {
	app *app
	out io.Writer

	mu         sync.Mutex
	suggestion string
	// set by commands that announce their own reset
	typedReset bool

	wg sync.WaitGroup
}

func newChatREPL(a *app, out io.Writer) *chatREPL {
	return &chatREPL{app: a, out: out}
}

func (c *chatREPL) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// loop runs the line editor until /quit, EOF or Ctrl+C.
func (c *chatREPL) loop(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyFile := filepath.Join(c.app.cfg.DataDir, "chat_history")
	if p, err := utils.ExpandHome(historyFile); err == nil {
		historyFile = p
	}
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		// typed lines follow the conversation's save preference
		if !c.app.session.SaveHistoryEnabled() {
			_ = os.Remove(historyFile)
			return
		}
		f, err := os.OpenFile(historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return
		}
		defer f.Close()
		_, _ = line.WriteHistory(f)
	}()

	for {
		prompt := c.prompt()
		var input string
		var err error
		if s := c.takeSuggestion(); s != "" {
			input, err = line.PromptWithSuggestion(prompt, s, -1)
		} else {
			input, err = line.Prompt(prompt)
		}
		if err != nil {
			// Ctrl+C, Ctrl+D and closed stdin all end the session.
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				c.printf("\n")
				return nil
			}
			return err
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}
		cont, err := c.handle(ctx, input)
		if err != nil {
			c.printf("%s\n", render.Error(err.Error()))
		}
		if !cont {
			return nil
		}
	}
}

func (c *chatREPL) prompt() string {
	sel := c.app.session.Dataset.Current()
	name := "default"
	switch {
	case sel.HasFile():
		name = sel.FileName
	case sel.Kind == dataset.KindCustom:
		name = "custom: no file"
	}
	busy := ""
	if c.app.session.Gateway.Loading() {
		busy = "…"
	}
	return fmt.Sprintf("edachat[%s]%s> ", name, busy)
}

func (c *chatREPL) takeSuggestion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.suggestion
	c.suggestion = ""
	return s
}

func (c *chatREPL) expectReset() {
	c.mu.Lock()
	c.typedReset = true
	c.mu.Unlock()
}

func (c *chatREPL) takeTypedReset() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.typedReset
	c.typedReset = false
	return t
}

func (c *chatREPL) suggest(s string) {
	c.mu.Lock()
	c.suggestion = s
	c.mu.Unlock()
}

// parseSlash splits "/cmd arg1 arg2" into a lower-cased command and its args.
func parseSlash(input string) (string, []string) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return "", nil
	}
	return strings.ToLower(parts[0]), parts[1:]
}

// handle processes one input line. It returns false when the session should
// end.
func (c *chatREPL) handle(ctx context.Context, input string) (bool, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return true, nil
	}
	if !strings.HasPrefix(input, "/") {
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return false, nil
		}
		c.ask(ctx, input)
		return true, nil
	}

	s := c.app.session
	command, args := parseSlash(input)
	switch command {
	case "/help", "/h", "/?", "/":
		c.printHelp()
	case "/default", "/d":
		before := s.Dataset.Current().Generation
		c.expectReset()
		s.Dataset.SelectDefault()
		if s.Dataset.Current().Generation == before {
			// already on default: nothing was reset
			c.takeTypedReset()
		}
		c.printf("✓ Using the default dataset\n")
	case "/upload", "/u":
		if len(args) == 0 {
			s.Dataset.SelectCustomPending()
			c.printf("Custom dataset selected. Choose a file with /upload <path.csv>\n")
			return true, nil
		}
		if len(args) > 1 {
			c.printf("%s\n", render.Subtle(fmt.Sprintf("only the first file is used; ignoring %d more", len(args)-1)))
		}
		c.expectReset()
		if err := selectFile(c.app, args); err != nil {
			c.takeTypedReset()
			return true, err
		}
		sel := s.Dataset.Current()
		c.printf("✓ Loaded %s (%d bytes)\n", sel.FileName, sel.Upload.Size())
	case "/clear", "/c":
		c.expectReset()
		s.Conversation.Clear()
		c.printf("✓ Conversation cleared\n")
	case "/save":
		if len(args) == 0 {
			c.printf("save history: %s\n", onOff(s.SaveHistoryEnabled()))
			return true, nil
		}
		enabled, err := parseOnOff(args[0])
		if err != nil {
			return true, err
		}
		if err := s.SetSaveHistory(enabled); err != nil {
			return true, err
		}
		c.printf("✓ save history: %s\n", onOff(enabled))
	case "/history":
		snap := s.Conversation.Snapshot()
		if len(snap) == 0 {
			c.printf("(no messages yet)\n")
			return true, nil
		}
		c.printf("%s", c.app.render.History(snap))
	case "/examples", "/e":
		if len(args) == 0 {
			for i, q := range exampleQuestions {
				c.printf("%d. %s\n", i+1, q)
			}
			c.printf("%s\n", render.Subtle("use /examples <n> to put one on the prompt"))
			return true, nil
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > len(exampleQuestions) {
			return true, fmt.Errorf("pick an example between 1 and %d", len(exampleQuestions))
		}
		c.suggest(exampleQuestions[n-1])
	case "/status", "/s":
		c.printStatus()
	case "/quit", "/q", "/exit":
		return false, nil
	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
	return true, nil
}

// ask submits in the background. The prompt stays usable; a question typed
// while another is being answered is dropped.
func (c *chatREPL) ask(ctx context.Context, question string) {
	if c.app.session.Gateway.Loading() {
		c.printf("⚠ Still answering the previous question\n")
		return
	}
	done := c.app.session.AskAsync(ctx, question)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.report(<-done)
	}()
}

func (c *chatREPL) report(res gateway.Result) {
	s := c.app.session
	switch res.Outcome {
	case gateway.OutcomeAppended:
		c.printf("\n%s\n", c.app.render.Exchange(res.Exchange))
	case gateway.OutcomeFailed:
		c.printf("\n%s\n", render.Error(s.Conversation.LastError()))
		// the failed question goes back on the prompt for editing or retry
		c.suggest(s.Conversation.Pending())
	case gateway.OutcomeDiscarded:
		c.printf("\n%s\n", render.Subtle("dataset changed; previous answer discarded"))
	case gateway.OutcomeIgnored:
		c.printf("⚠ Still answering the previous question\n")
	}
}

// wait blocks until background answers have been reported.
func (c *chatREPL) wait() { c.wg.Wait() }

// follow reports resets that did not come from a typed command, such as a
// watched file being rewritten.
func (c *chatREPL) follow(ctx context.Context) {
	changes, cancel := c.app.session.Conversation.Subscribe()
	defer cancel()
	last := c.app.session.Conversation.Len()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			n := c.app.session.Conversation.Len()
			if n == 0 {
				if typed := c.takeTypedReset(); !typed && last > 0 {
					c.printf("\n%s\n", render.Subtle(fmt.Sprintf("conversation reset (%d messages removed)", last)))
				}
			}
			last = n
		}
	}
}

func (c *chatREPL) watch(ctx context.Context) {
	err := c.app.session.Dataset.Watch(ctx, func(u *dataset.Upload, err error) {
		if err != nil {
			c.printf("%s\n", render.Error(err.Error()))
			return
		}
		c.app.log.Info("dataset reloaded", zap.String("name", u.Name), zap.Int("bytes", u.Size()))
		c.printf("\n↻ %s changed on disk and was reloaded\n", u.Name)
	})
	if err != nil {
		c.app.log.Warn("dataset watch stopped", zap.Error(err))
	}
}

func (c *chatREPL) printWelcome() {
	s := c.app.session
	c.printf("Ask a question about your data. Type /help for commands.\n")
	if n := s.Conversation.Len(); n > 0 {
		c.printf("%s\n", render.Subtle(fmt.Sprintf("restored %d messages from your last session", n)))
		return
	}
	c.printf("Try one of these:\n")
	for i, q := range exampleQuestions {
		c.printf("  %d. %s\n", i+1, q)
	}
}

func (c *chatREPL) printStatus() {
	s := c.app.session
	sel := s.Dataset.Current()
	ds := "default"
	if sel.HasFile() {
		ds = fmt.Sprintf("%s (%d bytes)", sel.FileName, sel.Upload.Size())
	} else if sel.Kind == dataset.KindCustom {
		ds = "custom (no file chosen)"
	}
	c.printf("session: %s\n", s.ID)
	c.printf("server: %s\n", c.app.client.BaseURL())
	c.printf("dataset: %s\n", ds)
	c.printf("messages: %d\n", s.Conversation.Len())
	c.printf("save history: %s\n", onOff(s.SaveHistoryEnabled()))
	c.printf("loading: %t\n", s.Gateway.Loading())
	if e := s.Conversation.LastError(); e != "" {
		c.printf("last error: %s\n", e)
	}
}

func (c *chatREPL) printHelp() {
	c.printf(`Commands:
  /default            ask about the server's default dataset
  /upload <file.csv>  ask about a CSV file (starts a new conversation)
  /clear              erase the conversation
  /save on|off        keep the conversation between runs
  /history            show the conversation
  /examples [n]       list example questions, or put one on the prompt
  /status             show session state
  /quit               leave
`)
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&chatFile, "file", "f", "", "CSV file to start with")
	chatCmd.Flags().BoolVar(&chatWatch, "watch", false, "reload --file when it changes on disk")
}
