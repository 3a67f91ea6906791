package dataset_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KaramelBytes/edachat-cli/internal/conversation"
	"github.com/KaramelBytes/edachat-cli/internal/dataset"
)

func TestWatchReacceptsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live.csv")
	if err := os.WriteFile(path, []byte("a\n1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	conv := conversation.NewStore(nil, nil)
	c := dataset.NewContext(conv, nil)
	u, err := dataset.OpenUpload(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.AcceptFile(u); err != nil {
		t.Fatal(err)
	}
	conv.Append("q", "a", "")
	gen := c.Current().Generation

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	changed := make(chan *dataset.Upload, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, func(u *dataset.Upload, err error) {
			if err == nil {
				select {
				case changed <- u:
				default:
				}
			}
		})
	}()

	// give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("a\n1\n2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case nu := <-changed:
		if string(nu.Data) != "a\n1\n2\n" {
			t.Fatalf("unexpected reloaded data %q", nu.Data)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for reload")
	}
	if c.Current().Generation == gen {
		t.Fatalf("reload should bump the generation")
	}
	if conv.Len() != 0 {
		t.Fatalf("reload should reset the conversation")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watch returned %v", err)
	}
}

func TestWatchRequiresOnDiskUpload(t *testing.T) {
	c := dataset.NewContext(nil, nil)
	if err := c.Watch(context.Background(), nil); err == nil {
		t.Fatalf("expected error without an upload")
	}
}
