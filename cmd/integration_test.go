package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type ipv4Server struct {
	URL string
	srv *http.Server
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	s := &ipv4Server{URL: "http://" + ln.Addr().String(), srv: srv}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return s
}

// fakeBackend mimics the analysis server's /ask, /health and /plots routes.
type fakeBackend struct {
	mu   sync.Mutex
	asks []askCall
	fail bool
}

type askCall struct {
	question    string
	datasetType string
	fileName    string
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/ask" && r.Method == http.MethodPost:
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rec := askCall{question: r.FormValue("question"), datasetType: r.FormValue("dataset_type")}
		if file, hdr, err := r.FormFile("file"); err == nil {
			rec.fileName = hdr.Filename
			file.Close()
		}
		f.mu.Lock()
		f.asks = append(f.asks, rec)
		fail := f.fail
		f.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{"detail": "agent crashed"})
			return
		}
		resp := map[string]any{"answer": "**Columns:** age, fare", "success": true, "plot_url": nil}
		if strings.Contains(rec.question, "plot") {
			resp["answer"] = "Here is the histogram."
			resp["plot_url"] = "/plots/age_hist.png"
		}
		_ = json.NewEncoder(w).Encode(resp)
	case r.URL.Path == "/health":
		_, _ = io.WriteString(w, `{"status":"healthy","google_api_key_configured":true,"default_csv_exists":true,"csv_path":"data/titanic.csv"}`)
	case strings.HasPrefix(r.URL.Path, "/plots/"):
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG fake"))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeBackend) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *fakeBackend) calls() []askCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]askCall(nil), f.asks...)
}

// setupCLI isolates HOME and points the CLI at a fake backend.
func setupCLI(t *testing.T) (*fakeBackend, string) {
	t.Helper()
	fb := &fakeBackend{}
	srv := newIPv4Server(t, fb)
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("EDACHAT_BACKEND_URL", srv.URL)
	return fb, home
}

// resetFlags restores every flag to its default so state does not leak
// between invocations of the shared root command.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		_ = fl.Value.Set(fl.DefValue)
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execCmd executes the root command with args and returns its output.
func execCmd(args ...string) (string, error) {
	resetFlags(rootCmd)
	cfg = nil
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execCmd(args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

func TestCLI_AskThenHistoryAcrossRuns(t *testing.T) {
	fb, home := setupCLI(t)

	out := runCmd(t, "ask", "What", "columns", "are", "in", "the", "dataset?")
	if !strings.Contains(out, "age, fare") || !strings.Contains(out, "What columns are in the dataset?") {
		t.Fatalf("unexpected ask output: %q", out)
	}
	if calls := fb.calls(); len(calls) != 1 || calls[0].datasetType != "default" || calls[0].fileName != "" {
		t.Fatalf("unexpected backend calls: %+v", calls)
	}

	out = runCmd(t, "history", "show")
	if !strings.Contains(out, "What columns are in the dataset?") {
		t.Fatalf("history not restored: %q", out)
	}

	exportPath := filepath.Join(home, "conv.json")
	runCmd(t, "history", "export", "--format", "json", "--output", exportPath)
	b, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var exported []map[string]any
	if err := json.Unmarshal(b, &exported); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(exported) != 1 || exported[0]["answer"] != "**Columns:** age, fare" {
		t.Fatalf("unexpected export: %s", b)
	}

	runCmd(t, "history", "clear")
	if out := runCmd(t, "history", "show"); !strings.Contains(out, "(no saved conversation)") {
		t.Fatalf("clear did not persist: %q", out)
	}
}

func TestCLI_SaveOffPurgesAndStopsSaving(t *testing.T) {
	setupCLI(t)
	runCmd(t, "ask", "first")
	out := runCmd(t, "history", "save", "off")
	if !strings.Contains(out, "erased") {
		t.Fatalf("unexpected output: %q", out)
	}
	runCmd(t, "ask", "second")
	if out := runCmd(t, "history", "show"); !strings.Contains(out, "(no saved conversation)") {
		t.Fatalf("history should not be saved: %q", out)
	}
	if out := runCmd(t, "history", "save"); !strings.Contains(out, "save history: off") {
		t.Fatalf("preference not kept: %q", out)
	}
}

func TestCLI_AskWithFileSendsCustomDataset(t *testing.T) {
	fb, home := setupCLI(t)
	csvPath := filepath.Join(home, "passengers.csv")
	if err := os.WriteFile(csvPath, []byte("name,age\nann,31\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runCmd(t, "ask", "--file", csvPath, "mean age?")
	calls := fb.calls()
	if len(calls) != 1 || calls[0].datasetType != "custom" || calls[0].fileName != "passengers.csv" {
		t.Fatalf("unexpected backend calls: %+v", calls)
	}

	txtPath := filepath.Join(home, "notes.txt")
	if err := os.WriteFile(txtPath, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := execCmd("ask", "--file", txtPath, "q"); err == nil || !strings.Contains(err.Error(), "CSV") {
		t.Fatalf("expected invalid file type error, got %v", err)
	}
	if len(fb.calls()) != 1 {
		t.Fatalf("rejected file must not reach the backend")
	}
}

func TestCLI_AskFailureReportsServerDetail(t *testing.T) {
	fb, _ := setupCLI(t)
	fb.setFail(true)
	_, err := execCmd("ask", "Which columns have missing values?")
	if err == nil || err.Error() != "Error: 500 (agent crashed)" {
		t.Fatalf("unexpected error: %v", err)
	}
	if out := runCmd(t, "history", "show"); !strings.Contains(out, "(no saved conversation)") {
		t.Fatalf("failed ask must not be recorded: %q", out)
	}
}

func TestCLI_PlotSave(t *testing.T) {
	_, home := setupCLI(t)
	out := runCmd(t, "ask", "plot", "the", "age", "histogram")
	if !strings.Contains(out, "/plots/age_hist.png") {
		t.Fatalf("plot url not shown: %q", out)
	}
	dst := filepath.Join(home, "hist.png")
	runCmd(t, "plot", "save", "1", "--output", dst)
	b, err := os.ReadFile(dst)
	if err != nil || !bytes.HasPrefix(b, []byte("\x89PNG")) {
		t.Fatalf("plot not saved: %v %q", err, b)
	}
	if _, err := execCmd("plot", "save", "2"); err == nil {
		t.Fatalf("expected error for missing exchange")
	}
}

func TestCLI_HealthAndExamples(t *testing.T) {
	setupCLI(t)
	if out := runCmd(t, "health"); !strings.Contains(out, "is healthy") || !strings.Contains(out, "data/titanic.csv") {
		t.Fatalf("unexpected health output: %q", out)
	}
	if out := runCmd(t, "examples"); !strings.Contains(out, "1. What columns are in the dataset?") {
		t.Fatalf("unexpected examples: %q", out)
	}
}

func TestCLI_EphemeralDoesNotPersist(t *testing.T) {
	setupCLI(t)
	runCmd(t, "--ephemeral", "ask", "q")
	if out := runCmd(t, "history", "show"); !strings.Contains(out, "(no saved conversation)") {
		t.Fatalf("ephemeral run leaked to disk: %q", out)
	}
}

func TestCLI_ConfigSetAndShow(t *testing.T) {
	setupCLI(t)
	runCmd(t, "config", "set", "store_backend", "sqlite")
	if out := runCmd(t, "config", "show"); !strings.Contains(out, "store_backend: sqlite") {
		t.Fatalf("config not saved: %q", out)
	}
	if _, err := execCmd("config", "set", "store_backend", "postgres"); err == nil {
		t.Fatalf("expected invalid store_backend error")
	}
	runCmd(t, "ask", "q")
	if out := runCmd(t, "history", "show"); !strings.Contains(out, "You: q") {
		t.Fatalf("sqlite store did not persist: %q", out)
	}
}
