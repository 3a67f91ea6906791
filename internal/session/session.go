// Package session assembles the per-run chat state: identity, storage,
// conversation, dataset selection and the request gateway.
package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/KaramelBytes/edachat-cli/internal/backend"
	"github.com/KaramelBytes/edachat-cli/internal/conversation"
	"github.com/KaramelBytes/edachat-cli/internal/dataset"
	"github.com/KaramelBytes/edachat-cli/internal/gateway"
	"github.com/KaramelBytes/edachat-cli/internal/logging"
	"github.com/KaramelBytes/edachat-cli/internal/storage"
)

// Options configures Init.
type Options struct {
	Storage storage.Options
	// Backend overrides Storage when set (tests, embedding).
	Backend storage.Backend
	Asker   backend.Asker
	Plots   gateway.PlotResolver
	Logger  *zap.Logger
}

// Session is the process-wide state created once per run.
type Session struct {
	ID           string
	Storage      *storage.Store
	Conversation *conversation.Store
	Dataset      *dataset.Context
	Gateway      *gateway.Gateway

	log *zap.Logger
}

// Init opens storage, restores the saved conversation, and wires the
// components together.
func Init(ctx context.Context, opt Options) (*Session, error) {
	log := logging.OrNop(opt.Logger)
	id := NewID()
	log = log.With(zap.String("session", id))

	b := opt.Backend
	if b == nil {
		var err error
		b, err = storage.Open(ctx, opt.Storage)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
	}
	store := storage.New(b, opt.Storage.Namespace, log)

	conv := conversation.NewStore(store, log)
	restored := store.LoadHistory()
	conv.Restore(restored)

	ds := dataset.NewContext(conv, log)
	gw := gateway.New(opt.Asker, opt.Plots, conv, ds, log)

	log.Info("session started",
		zap.String("store", opt.Storage.Kind),
		zap.Int("restored", len(restored)),
		zap.Bool("save_history", store.LoadPreference()),
	)
	return &Session{
		ID:           id,
		Storage:      store,
		Conversation: conv,
		Dataset:      ds,
		Gateway:      gw,
		log:          log,
	}, nil
}

// SaveHistoryEnabled reports the persistence preference.
func (s *Session) SaveHistoryEnabled() bool { return s.Storage.LoadPreference() }

// SetSaveHistory updates the persistence preference. Disabling erases the
// saved copy; enabling saves the current conversation right away.
func (s *Session) SetSaveHistory(enabled bool) error {
	if err := s.Storage.SavePreference(enabled); err != nil {
		return err
	}
	if enabled {
		return s.Storage.SaveHistory(s.Conversation.Snapshot())
	}
	return nil
}

// Ask submits question against the current dataset.
func (s *Session) Ask(ctx context.Context, question string) gateway.Result {
	return s.Gateway.Submit(ctx, question, s.Dataset.Current())
}

// AskAsync is Ask without blocking.
func (s *Session) AskAsync(ctx context.Context, question string) <-chan gateway.Result {
	return s.Gateway.SubmitAsync(ctx, question, s.Dataset.Current())
}

// Close releases storage.
func (s *Session) Close() error {
	s.log.Debug("session closed", zap.Int("exchanges", s.Conversation.Len()))
	return s.Storage.Close()
}
