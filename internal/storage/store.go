package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/edachat-cli/internal/conversation"
	"github.com/KaramelBytes/edachat-cli/internal/logging"
)

const (
	preferenceKey = "saveHistory"
	historyKey    = "history"

	defaultOpTimeout = 5 * time.Second
)

// Store reads and writes the save-history preference and the conversation
// history. Storage failures on the load path are absorbed: callers always get
// a usable value.
type Store struct {
	backend   Backend
	namespace string
	log       *zap.Logger
	timeout   time.Duration
}

// New wraps a backend. Keys are prefixed with namespace and a dot.
func New(backend Backend, namespace string, log *zap.Logger) *Store {
	log = logging.OrNop(log)
	return &Store{
		backend:   backend,
		namespace: namespace,
		log:       log.Named("storage"),
		timeout:   defaultOpTimeout,
	}
}

func (s *Store) key(k string) string {
	if s.namespace == "" {
		return k
	}
	return s.namespace + "." + k
}

func (s *Store) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// LoadPreference returns the save-history flag, true when absent or unparsable.
func (s *Store) LoadPreference() bool {
	ctx, cancel := s.ctx()
	defer cancel()
	raw, err := s.backend.Get(ctx, s.key(preferenceKey))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Debug("load preference", zap.Error(err))
		}
		return true
	}
	v, err := strconv.ParseBool(strings.Trim(strings.TrimSpace(string(raw)), `"`))
	if err != nil {
		s.log.Debug("unparsable preference, using default", zap.ByteString("raw", raw))
		return true
	}
	return v
}

// SavePreference stores the flag. Turning it off erases any saved history.
func (s *Store) SavePreference(enabled bool) error {
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.backend.Put(ctx, s.key(preferenceKey), []byte(strconv.FormatBool(enabled))); err != nil {
		return fmt.Errorf("save preference: %w", err)
	}
	if !enabled {
		if err := s.backend.Delete(ctx, s.key(historyKey)); err != nil {
			return fmt.Errorf("erase history: %w", err)
		}
	}
	s.log.Info("history preference saved", zap.Bool("enabled", enabled))
	return nil
}

// LoadHistory returns the saved conversation, or an empty one when nothing is
// saved, the data is corrupt, or saving is disabled.
func (s *Store) LoadHistory() []conversation.Exchange {
	if !s.LoadPreference() {
		return []conversation.Exchange{}
	}
	ctx, cancel := s.ctx()
	defer cancel()
	raw, err := s.backend.Get(ctx, s.key(historyKey))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Debug("load history", zap.Error(err))
		}
		return []conversation.Exchange{}
	}
	out, err := decodeHistory(raw)
	if err != nil {
		s.log.Debug("discarding persisted history", zap.Error(err))
		return []conversation.Exchange{}
	}
	return out
}

func decodeHistory(raw []byte) ([]conversation.Exchange, error) {
	var out []conversation.Exchange
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	for i, ex := range out {
		if strings.TrimSpace(ex.Question) == "" {
			return nil, fmt.Errorf("%w: exchange %d has no question", ErrCorrupt, i)
		}
	}
	if out == nil {
		out = []conversation.Exchange{}
	}
	return out, nil
}

// SaveHistory overwrites the saved conversation. It writes nothing when saving
// is disabled or the conversation is empty.
func (s *Store) SaveHistory(exchanges []conversation.Exchange) error {
	if len(exchanges) == 0 || !s.LoadPreference() {
		return nil
	}
	b, err := json.Marshal(exchanges)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.backend.Put(ctx, s.key(historyKey), b); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	s.log.Debug("history saved", zap.Int("exchanges", len(exchanges)))
	return nil
}

// ClearHistory erases the saved conversation.
func (s *Store) ClearHistory() error {
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.backend.Delete(ctx, s.key(historyKey)); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// Close releases the backend.
func (s *Store) Close() error { return s.backend.Close() }

var _ conversation.Mirror = (*Store)(nil)
