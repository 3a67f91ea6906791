package conversation

import (
	"sync"

	"go.uber.org/zap"

	"github.com/KaramelBytes/edachat-cli/internal/logging"
)

// Mirror receives the conversation whenever it changes so it can be kept in
// durable storage. storage.Store implements it.
type Mirror interface {
	SaveHistory([]Exchange) error
	ClearHistory() error
}

// Store is the conversation state: the exchange log, the question being
// composed, and the last request error.
type Store struct {
	mu        sync.Mutex
	exchanges []Exchange
	pending   string
	lastErr   string

	mirror Mirror
	log    *zap.Logger

	subMu   sync.Mutex
	subs    map[int]chan struct{}
	nextSub int
}

// NewStore returns an empty store. mirror may be nil for a purely in-memory
// conversation.
func NewStore(mirror Mirror, log *zap.Logger) *Store {
	log = logging.OrNop(log)
	return &Store{
		mirror: mirror,
		log:    log.Named("conversation"),
		subs:   make(map[int]chan struct{}),
	}
}

// Append adds an exchange at the tail and mirrors the log to storage.
func (s *Store) Append(question, answer, plotURL string) Exchange {
	ex := Exchange{Question: question, Answer: answer, PlotURL: plotURL}
	s.mu.Lock()
	s.exchanges = append(s.exchanges, ex)
	snap := s.snapshotLocked()
	if s.mirror != nil {
		if err := s.mirror.SaveHistory(snap); err != nil {
			s.log.Warn("mirror history", zap.Error(err), zap.Int("exchanges", len(snap)))
		}
	}
	s.mu.Unlock()
	s.notify()
	return ex
}

// Clear empties the log, drops the last error and erases the persisted copy.
// The question being composed is kept.
func (s *Store) Clear() {
	s.mu.Lock()
	s.exchanges = nil
	s.lastErr = ""
	if s.mirror != nil {
		if err := s.mirror.ClearHistory(); err != nil {
			s.log.Warn("clear persisted history", zap.Error(err))
		}
	}
	s.mu.Unlock()
	s.notify()
}

// Restore replaces the log wholesale without writing it back to storage.
func (s *Store) Restore(exchanges []Exchange) {
	s.mu.Lock()
	s.exchanges = append([]Exchange(nil), exchanges...)
	s.mu.Unlock()
	s.notify()
}

// Snapshot returns a copy of the log, oldest first.
func (s *Store) Snapshot() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() []Exchange {
	out := make([]Exchange, len(s.exchanges))
	copy(out, s.exchanges)
	return out
}

// Len returns the number of exchanges.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.exchanges)
}

// Last returns the most recent exchange.
func (s *Store) Last() (Exchange, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.exchanges) == 0 {
		return Exchange{}, false
	}
	return s.exchanges[len(s.exchanges)-1], true
}

func (s *Store) SetPending(q string) {
	s.mu.Lock()
	s.pending = q
	s.mu.Unlock()
	s.notify()
}

func (s *Store) Pending() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Store) SetError(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
	s.notify()
}

func (s *Store) ClearError() { s.SetError("") }

func (s *Store) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Subscribe returns a channel that receives a signal after every state change
// and a function to cancel the subscription. Signals coalesce: a slow reader
// sees at least one pending signal, never a backlog.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
