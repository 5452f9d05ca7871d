package decoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/devblac/state-lens/internal/metrics"
	"github.com/devblac/state-lens/internal/scval"
)

// ErrAlreadyStarted is returned by Start on a running worker.
var ErrAlreadyStarted = errors.New("decoder worker already started")

// Options configures a Worker.
type Options struct {
	Workers   int
	QueueSize int
	// CacheSize bounds the NormalizeXDR result cache; zero disables it.
	CacheSize int
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Worker runs normalization on a pool of goroutines fed over a channel.
type Worker struct {
	opts  Options
	jobs  chan job
	cache *lru.Cache[string, Result]

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group
	running bool
}

type job struct {
	ctx   context.Context
	run   func() Result
	reply chan Result
}

// NewWorker builds an idle worker; call Start before sending requests.
func NewWorker(opts Options) (*Worker, error) {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	w := &Worker{opts: opts}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, Result](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("decode cache: %w", err)
		}
		w.cache = cache
	}
	return w, nil
}

// Start launches the pool. The pool stops when ctx is cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return ErrAlreadyStarted
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.jobs = make(chan job, w.opts.QueueSize)
	jobs := w.jobs
	g, gctx := errgroup.WithContext(w.ctx)
	for i := 0; i < w.opts.Workers; i++ {
		g.Go(func() error {
			return w.loop(gctx, jobs)
		})
	}
	w.group = g
	w.running = true
	w.opts.Logger.Debug("decoder worker started", "workers", w.opts.Workers, "queue", w.opts.QueueSize)
	return nil
}

// Stop cancels the pool and waits for every goroutine to exit. Requests still
// queued are answered with WORKER_STOPPED by their callers.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	cancel, g := w.cancel, w.group
	w.mu.Unlock()

	cancel()
	err := g.Wait()
	w.opts.Logger.Debug("decoder worker stopped")
	return err
}

func (w *Worker) loop(ctx context.Context, jobs <-chan job) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-jobs:
			if err := j.ctx.Err(); err != nil {
				j.reply <- cancelled(err)
				continue
			}
			j.reply <- j.run()
		}
	}
}

func (w *Worker) dispatch(ctx context.Context, run func() Result) Result {
	w.mu.Lock()
	running, jobs, wctx := w.running, w.jobs, w.ctx
	w.mu.Unlock()
	if !running {
		return stopped()
	}

	reply := make(chan Result, 1)
	select {
	case jobs <- job{ctx: ctx, run: run, reply: reply}:
	case <-ctx.Done():
		return cancelled(ctx.Err())
	case <-wctx.Done():
		return stopped()
	}

	select {
	case r := <-reply:
		return r
	case <-ctx.Done():
		return cancelled(ctx.Err())
	case <-wctx.Done():
		return stopped()
	}
}

// Ping round-trips a no-op job through the pool.
func (w *Worker) Ping(ctx context.Context) (PingResponse, *Error) {
	res := w.dispatch(ctx, func() Result { return Result{Type: "pong"} })
	if res.Err != nil {
		msg := res.Err.Message
		if err := ctx.Err(); err != nil {
			msg = err.Error()
		}
		return PingResponse{}, &Error{Code: CodePingFailed, Message: "ping failed: " + msg}
	}
	return PingResponse{Status: "pong"}, nil
}

// Normalize runs req on the pool. Like Handle it always returns a Result.
func (w *Worker) Normalize(ctx context.Context, req Request) Result {
	w.opts.Metrics.NormalizeRequest()
	res := w.dispatch(ctx, func() Result { return Handle(req) })
	w.observe(res)
	return res
}

// NormalizeXDR decodes a base64 XDR ScVal and normalizes it. Successful
// results are cached by input; callers must treat them as read-only. A stopped
// worker answers WORKER_STOPPED even for cached inputs.
func (w *Worker) NormalizeXDR(ctx context.Context, b64 string, asAddress bool) Result {
	w.opts.Metrics.NormalizeRequest()
	if !w.isRunning() {
		res := stopped()
		w.observe(res)
		return res
	}

	key := "v:" + b64
	if asAddress {
		key = "a:" + b64
	}
	if w.cache != nil {
		if res, ok := w.cache.Get(key); ok {
			w.opts.Metrics.CacheHit()
			return res
		}
		w.opts.Metrics.CacheMiss()
	}

	v, err := scval.ParseXDR(b64)
	if err != nil {
		res := failed(CodeInvalidRequest, err.Error(), nil)
		w.observe(res)
		return res
	}
	req := Request{ScVal: v, AsAddress: asAddress}
	res := w.dispatch(ctx, func() Result { return Handle(req) })
	w.observe(res)
	if w.cache != nil && !res.IsError() {
		w.cache.Add(key, res)
	}
	return res
}

func (w *Worker) isRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Worker) observe(res Result) {
	if res.Err != nil {
		w.opts.Metrics.NormalizeFailure()
		if res.Err.Code == CodeNormalizeFailed {
			w.opts.Logger.Warn("normalize failed", "error", res.Err.Message)
		}
		return
	}
	if res.Type == ResultValue {
		unsupported, cycles := scval.Census(res.Value)
		w.opts.Metrics.Fallbacks(unsupported)
		w.opts.Metrics.CycleMarkers(cycles)
	}
}

func stopped() Result {
	return failed(CodeWorkerStopped, "decoder worker is not running", nil)
}

func cancelled(err error) Result {
	return normalizeFailure(err, "")
}
