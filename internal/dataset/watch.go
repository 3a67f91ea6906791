package dataset

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch re-reads the accepted upload whenever its source file is written and
// accepts the new contents, which resets the conversation. It returns when ctx
// is done. Uploads without a Path cannot be watched.
//
// The parent directory is watched rather than the file so editors that save
// by rename are still seen.
func (c *Context) Watch(ctx context.Context, onChange func(*Upload, error)) error {
	sel := c.Current()
	if sel.Upload == nil || sel.Upload.Path == "" {
		return fmt.Errorf("no on-disk dataset to watch")
	}
	target, err := filepath.Abs(sel.Upload.Path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	// Editors often emit several events per save.
	const settle = 150 * time.Millisecond
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(settle)
			} else {
				timer.Reset(settle)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.log.Warn("dataset watch error", zap.Error(err))
		case <-fire:
			fire = nil
			if cur := c.Current(); cur.Upload == nil || cur.Upload.Path != sel.Upload.Path {
				// the user switched datasets; stop following the old file
				return nil
			}
			u, err := OpenUpload(sel.Upload.Path)
			if err == nil {
				err = c.AcceptFile(u)
			}
			if onChange != nil {
				onChange(u, err)
			}
		}
	}
}
