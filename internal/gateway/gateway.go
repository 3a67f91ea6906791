// Package gateway runs question submissions against the analysis backend and
// folds their outcome into the conversation.
package gateway

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/KaramelBytes/edachat-cli/internal/backend"
	"github.com/KaramelBytes/edachat-cli/internal/conversation"
	"github.com/KaramelBytes/edachat-cli/internal/dataset"
	"github.com/KaramelBytes/edachat-cli/internal/logging"
	"github.com/KaramelBytes/edachat-cli/internal/utils"
)

// Outcome classifies how a submission ended.
type Outcome int

const (
	// OutcomeIgnored: empty question, or another submission was in flight.
	OutcomeIgnored Outcome = iota
	// OutcomeAppended: the answer was added to the conversation.
	OutcomeAppended
	// OutcomeFailed: the request failed and the last error was set.
	OutcomeFailed
	// OutcomeDiscarded: the dataset changed while the request ran.
	OutcomeDiscarded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeAppended:
		return "appended"
	case OutcomeFailed:
		return "failed"
	case OutcomeDiscarded:
		return "discarded"
	}
	return "unknown"
}

// Result is the single completion event of a submission.
type Result struct {
	Outcome  Outcome
	Exchange conversation.Exchange
	Err      error
}

// PlotResolver turns a server-relative plot path into an absolute URL.
type PlotResolver interface {
	PlotURL(path string) string
}

// Gateway serializes submissions: at most one is in flight at a time.
type Gateway struct {
	asker   backend.Asker
	plots   PlotResolver
	conv    *conversation.Store
	dataset *dataset.Context
	log     *zap.Logger

	inflight *semaphore.Weighted
	loading  atomic.Bool
}

// New wires a gateway. plots may be nil when the asker is not a
// *backend.Client; plot paths are then kept as returned.
func New(asker backend.Asker, plots PlotResolver, conv *conversation.Store, ds *dataset.Context, log *zap.Logger) *Gateway {
	log = logging.OrNop(log)
	if plots == nil {
		if r, ok := asker.(PlotResolver); ok {
			plots = r
		}
	}
	return &Gateway{
		asker:    asker,
		plots:    plots,
		conv:     conv,
		dataset:  ds,
		log:      log.Named("gateway"),
		inflight: semaphore.NewWeighted(1),
	}
}

// Loading reports whether a submission is in flight.
func (g *Gateway) Loading() bool { return g.loading.Load() }

// Submit asks question against the dataset described by sel and blocks until
// the outcome is known. A call made while another is in flight returns
// OutcomeIgnored immediately without touching any state.
func (g *Gateway) Submit(ctx context.Context, question string, sel dataset.Selector) Result {
	if strings.TrimSpace(question) == "" {
		return Result{Outcome: OutcomeIgnored}
	}
	if !g.inflight.TryAcquire(1) {
		g.log.Debug("submission ignored, request in flight")
		return Result{Outcome: OutcomeIgnored}
	}
	g.loading.Store(true)
	defer func() {
		g.loading.Store(false)
		g.inflight.Release(1)
	}()
	return g.run(ctx, question, sel)
}

// SubmitAsync starts Submit on its own goroutine. The returned channel
// receives exactly one Result and is then closed. Loading is already true
// when SubmitAsync returns, unless the submission was ignored.
func (g *Gateway) SubmitAsync(ctx context.Context, question string, sel dataset.Selector) <-chan Result {
	out := make(chan Result, 1)
	if strings.TrimSpace(question) == "" || !g.inflight.TryAcquire(1) {
		out <- Result{Outcome: OutcomeIgnored}
		close(out)
		return out
	}
	g.loading.Store(true)
	go func() {
		defer close(out)
		res := g.run(ctx, question, sel)
		// Idle again before the result is observable.
		g.loading.Store(false)
		g.inflight.Release(1)
		out <- res
	}()
	return out
}

func (g *Gateway) run(ctx context.Context, question string, sel dataset.Selector) Result {
	g.conv.SetPending(question)
	g.conv.ClearError()

	req := backend.AskRequest{Question: question, DatasetType: backend.DatasetDefault}
	if sel.Kind == dataset.KindCustom && sel.Upload != nil {
		req.DatasetType = backend.DatasetCustom
		req.FileName = sel.Upload.Name
		req.File = sel.Upload.Data
	}

	start := time.Now()
	resp, err := g.asker.Ask(ctx, req)
	log := g.log.With(
		zap.String("question", utils.Preview(question, 60)),
		zap.String("dataset_type", req.DatasetType),
		zap.Duration("elapsed", time.Since(start)),
	)

	if err == nil && resp == nil {
		err = errors.New("empty response")
	}
	plotURL := ""
	if err == nil {
		plotURL = resp.PlotPath()
		if g.plots != nil {
			plotURL = g.plots.PlotURL(plotURL)
		}
	}

	var res Result
	committed := g.commit(sel, func() {
		if err != nil {
			rf := &RequestFailedError{Err: err}
			g.conv.SetError(rf.Error())
			res = Result{Outcome: OutcomeFailed, Err: rf}
			return
		}
		ex := g.conv.Append(question, resp.Answer, plotURL)
		g.conv.SetPending("")
		res = Result{Outcome: OutcomeAppended, Exchange: ex}
	})
	if !committed {
		log.Info("discarding stale answer, dataset changed during request")
		return Result{Outcome: OutcomeDiscarded, Err: err}
	}
	if res.Outcome == OutcomeFailed {
		log.Warn("submission failed", zap.Error(err))
	} else {
		log.Info("submission appended", zap.Bool("plot", plotURL != ""), zap.String("request_id", resp.RequestID))
	}
	return res
}

// commit applies fn unless the dataset changed since sel was taken. The check
// and fn run under the dataset lock, so a concurrent switch cannot slip
// between them.
func (g *Gateway) commit(sel dataset.Selector, fn func()) bool {
	if g.dataset == nil {
		fn()
		return true
	}
	return g.dataset.IfCurrent(sel, fn)
}
