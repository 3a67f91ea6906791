// Package dataset tracks which dataset the conversation is about.
package dataset

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/KaramelBytes/edachat-cli/internal/logging"
)

// Kind identifies the active dataset.
type Kind string

const (
	KindDefault Kind = "default"
	KindCustom  Kind = "custom"
)

// ErrInvalidFileType is returned by AcceptFile when the file is not a CSV.
var ErrInvalidFileType = errors.New("invalid file type: please upload a CSV file")

// Selector is a read-only view of the dataset choice.
type Selector struct {
	Kind     Kind
	FileName string
	// Generation increases on every dataset change. Two selectors with
	// different generations refer to different datasets even if the file
	// names match.
	Generation uint64
	// Upload is the owned file, nil unless Kind is custom and a file was accepted.
	Upload *Upload
}

// HasFile reports whether a custom file is attached.
func (s Selector) HasFile() bool { return s.Upload != nil }

// Resetter is notified when the dataset changes and prior answers go stale.
type Resetter interface {
	Clear()
}

// Context owns the dataset selection and the uploaded file.
type Context struct {
	mu         sync.Mutex
	kind       Kind
	upload     *Upload
	generation uint64

	reset Resetter
	log   *zap.Logger
}

// NewContext starts on the default dataset. reset may be nil.
func NewContext(reset Resetter, log *zap.Logger) *Context {
	log = logging.OrNop(log)
	return &Context{kind: KindDefault, reset: reset, log: log.Named("dataset")}
}

// SelectDefault switches to the default dataset, releasing any upload and
// resetting the conversation. Selecting default while already on default
// with no file is a no-op.
func (c *Context) SelectDefault() {
	c.mu.Lock()
	if c.kind == KindDefault && c.upload == nil {
		c.mu.Unlock()
		return
	}
	released := ""
	if c.upload != nil {
		released = c.upload.Name
	}
	c.kind = KindDefault
	c.upload = nil
	c.generation++
	c.mu.Unlock()

	c.log.Info("dataset switched to default", zap.String("released", released))
	c.resetConversation()
}

// SelectCustomPending marks the custom dataset as chosen before a file has
// been picked. Any previously accepted file is kept.
func (c *Context) SelectCustomPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kind = KindCustom
}

// AcceptFile validates and takes ownership of u. On a non-CSV file the state
// is left untouched and ErrInvalidFileType is returned.
func (c *Context) AcceptFile(u *Upload) error {
	if u == nil {
		return errors.New("no file provided")
	}
	if !isCSV(u) {
		c.log.Info("rejected upload", zap.String("name", u.Name), zap.String("content_type", u.ContentType))
		return fmt.Errorf("%w (%s is %s)", ErrInvalidFileType, u.Name, u.ContentType)
	}
	c.mu.Lock()
	c.kind = KindCustom
	c.upload = u
	c.generation++
	c.mu.Unlock()

	c.log.Info("dataset file accepted", zap.String("name", u.Name), zap.Int("bytes", u.Size()))
	c.resetConversation()
	return nil
}

// AcceptFirst accepts the first of several dropped files; the rest are
// ignored.
func (c *Context) AcceptFirst(files []*Upload) error {
	if len(files) == 0 {
		return errors.New("no file provided")
	}
	if len(files) > 1 {
		c.log.Debug("ignoring extra dropped files", zap.Int("ignored", len(files)-1))
	}
	return c.AcceptFile(files[0])
}

// Current returns a snapshot of the selection.
func (c *Context) Current() Selector {
	c.mu.Lock()
	defer c.mu.Unlock()
	sel := Selector{Kind: c.kind, Generation: c.generation, Upload: c.upload}
	if c.upload != nil {
		sel.FileName = c.upload.Name
	}
	return sel
}

// IfCurrent runs fn only if sel still describes the active dataset, and
// reports whether it ran. Only changes that reset the conversation count;
// opening the upload picker without choosing a file does not. The selection
// cannot change while fn runs, so a switch lands either before the check or
// after fn's effects.
func (c *Context) IfCurrent(sel Selector, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != sel.Generation {
		return false
	}
	fn()
	return true
}

func (c *Context) resetConversation() {
	if c.reset != nil {
		c.reset.Clear()
	}
}
