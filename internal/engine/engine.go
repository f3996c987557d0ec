package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seantiz/urlcheck/internal/checker"
	"github.com/seantiz/urlcheck/internal/model"
	"github.com/seantiz/urlcheck/internal/runner"
	"github.com/seantiz/urlcheck/internal/store"
)

// ErrUnknownKind is returned for checks whose kind is neither local nor remote.
var ErrUnknownKind = errors.New("unknown check kind")

// Engine runs checks and records their outcome in the store.
type Engine struct {
	store  store.Store
	local  *checker.Checker
	remote *checker.RemoteChecker
	logger *slog.Logger
	wg       sync.WaitGroup
	inFlight atomic.Int64
	broker   *HopBroker
}

// NewEngine creates a new check engine.
func NewEngine(s store.Store, local *checker.Checker, remote *checker.RemoteChecker, logger *slog.Logger) *Engine {
	return &Engine{
		store:  s,
		local:  local,
		remote: remote,
		logger: logger,
		broker: NewHopBroker(),
	}
}

// Broker returns the engine's hop broker for SSE subscription.
func (e *Engine) Broker() *HopBroker {
	return e.broker
}

// Local returns the local checker the engine runs local checks with.
func (e *Engine) Local() *checker.Checker {
	return e.local
}

// Run stores c, executes it before returning and returns the finished record.
func (e *Engine) Run(ctx context.Context, c *model.Check) (*model.Check, error) {
	if !model.ValidKind(c.Kind) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
	if err := e.store.CreateCheck(ctx, c); err != nil {
		return nil, fmt.Errorf("create check: %w", err)
	}

	cCopy := *c
	e.execute(ctx, &cCopy)

	done, err := e.store.GetCheck(context.WithoutCancel(ctx), c.ID)
	if err != nil {
		return nil, fmt.Errorf("get finished check: %w", err)
	}
	return done, nil
}

// Submit creates a check record and launches its execution in a goroutine.
// The check is stored with status "pending" before returning. The goroutine
// operates on a copy of the check to avoid data races with the caller.
func (e *Engine) Submit(ctx context.Context, c *model.Check) error {
	if !model.ValidKind(c.Kind) {
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
	if err := e.store.CreateCheck(ctx, c); err != nil {
		return fmt.Errorf("create check: %w", err)
	}

	cCopy := *c
	e.inFlight.Add(1)
	e.wg.Go(func() {
		defer e.inFlight.Add(-1)
		e.execute(context.Background(), &cCopy)
	})

	return nil
}

// InFlight returns the number of submitted checks that have not finished.
func (e *Engine) InFlight() int64 {
	return e.inFlight.Load()
}

// Wait blocks until all in-flight check goroutines complete.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// execute runs the check lifecycle: pending→running→completed/failed.
func (e *Engine) execute(ctx context.Context, c *model.Check) {
	defer e.broker.Close(c.ID)

	// Bookkeeping outlives a caller that gives up on a synchronous check.
	storeCtx := context.WithoutCancel(ctx)

	if err := e.store.UpdateCheckStatus(storeCtx, c.ID, model.StatusRunning); err != nil {
		e.logger.Error("failed to transition to running", "check_id", c.ID, "error", err)
		e.finishFailed(c.ID, nil, 0, fmt.Sprintf("failed to start: %v", err))
		return
	}
	start := time.Now().UTC()

	// A timed-out local check keeps running on an abandoned goroutine. Hops
	// it reports once Inspect has returned belong to a finished check and
	// are dropped.
	var (
		hopMu    sync.Mutex
		recorded int
		sealed   bool
	)
	record := func(h checker.Hop) {
		hopMu.Lock()
		defer hopMu.Unlock()
		if sealed {
			return
		}
		recorded++

		line := model.HopLine{
			CheckID:    c.ID,
			Seq:        h.Seq,
			Path:       h.Path,
			Query:      h.Query,
			Handler:    h.Handler,
			StatusCode: h.StatusCode,
			Location:   h.Location,
		}
		if err := e.store.InsertHopLine(storeCtx, &line); err != nil {
			e.logger.Error("failed to persist hop", "check_id", c.ID, "seq", h.Seq, "error", err)
		}
		e.broker.Publish(line)
	}

	var res checker.Result
	switch c.Kind {
	case model.KindRemote:
		res = e.remote.Inspect(ctx, c.Target)
		for _, h := range res.Hops {
			record(h)
		}
	default:
		opts := []checker.Option{checker.WithQuery(c.Query), checker.WithTrace(record)}
		if c.MaxRedirects != nil {
			opts = append(opts, checker.WithMaxRedirects(*c.MaxRedirects))
		}
		res = e.local.Inspect(ctx, c.Target, opts...)
	}

	hopMu.Lock()
	sealed = true
	hops := recorded
	hopMu.Unlock()

	if res.Err != nil {
		errMsg := res.Err.Error()
		if errors.Is(res.Err, runner.ErrTimeout) {
			errMsg = "check timed out"
		}
		e.finishFailed(c.ID, &start, hops, errMsg)
		return
	}

	now := time.Now().UTC()
	durationMS := int(res.Duration.Milliseconds())
	statusCode := res.StatusCode()
	reachable := res.Reachable

	completed := &model.Check{
		ID:         c.ID,
		Status:     model.StatusCompleted,
		StatusCode: &statusCode,
		Reachable:  &reachable,
		Hops:       hops,
		DurationMS: &durationMS,
		StartedAt:  &start,
		FinishedAt: &now,
	}

	if err := e.store.UpdateCheck(storeCtx, completed); err != nil {
		e.logger.Error("failed to update completed check", "check_id", c.ID, "error", err)
		return
	}
	e.logger.Info("check completed",
		"check_id", c.ID,
		"kind", c.Kind,
		"target", c.Target,
		"status_code", statusCode,
		"reachable", reachable,
		"hops", completed.Hops,
	)
}

// finishFailed marks a check as failed with the given error message.
// startedAt may be nil if execution never started.
func (e *Engine) finishFailed(id string, startedAt *time.Time, hops int, errMsg string) {
	now := time.Now().UTC()
	var durationMS int
	if startedAt != nil {
		durationMS = int(time.Since(*startedAt).Milliseconds())
	}
	reachable := false

	c := &model.Check{
		ID:         id,
		Status:     model.StatusFailed,
		Reachable:  &reachable,
		Hops:       hops,
		Error:      errMsg,
		DurationMS: &durationMS,
		StartedAt:  startedAt,
		FinishedAt: &now,
	}

	if err := e.store.UpdateCheck(context.Background(), c); err != nil {
		e.logger.Error("failed to update failed check", "check_id", id, "error", err)
	}
}
