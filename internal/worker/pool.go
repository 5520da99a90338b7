// Package worker executes queued bootstrap jobs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/luxfi/tfhe"
	"github.com/luxfi/tfhe/internal/metrics"
	"github.com/luxfi/tfhe/internal/queue"
	"github.com/luxfi/tfhe/internal/storage"
)

// ErrInvalidJob marks jobs that can never succeed.
var ErrInvalidJob = errors.New("invalid job")

// popRetryDelay is the pause after a failed Pop.
const popRetryDelay = time.Second

// DefaultMaxServerKeys bounds the decoded server keys a pool keeps.
const DefaultMaxServerKeys = 8

// Config configures a Pool.
type Config struct {
	// Workers is the number of goroutines popping jobs; zero means one
	// per CPU.
	Workers int
	// Params is the parameter set every server key must match.
	Params  tfhe.Parameters
	Queue   queue.Queue
	Storage storage.Storage
	// Metrics is optional.
	Metrics *metrics.WorkerMetrics
	// Log is optional.
	Log *zap.Logger
	// MaxServerKeys bounds the evaluator cache; the oldest key is evicted
	// first. Zero means DefaultMaxServerKeys.
	MaxServerKeys int
}

// Pool runs a fixed number of workers over a job queue. Server keys are
// decoded once and shared; every job gets its own evaluator scratch.
type Pool struct {
	cfg     Config
	log     *zap.Logger
	metrics *metrics.WorkerMetrics

	mu    sync.Mutex
	evals map[storage.Handle]*tfhe.Evaluator
	order []storage.Handle // insertion order of evals
	loads singleflight.Group
}

// New validates cfg and returns an idle pool.
func New(cfg Config) (*Pool, error) {
	if cfg.Queue == nil || cfg.Storage == nil {
		return nil, errors.New("worker pool needs a queue and a storage")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.MaxServerKeys <= 0 {
		cfg.MaxServerKeys = DefaultMaxServerKeys
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.NewWorkerMetrics(prometheus.NewRegistry())
	}
	return &Pool{cfg: cfg, log: log, metrics: m, evals: make(map[storage.Handle]*tfhe.Evaluator)}, nil
}

// Run processes jobs until ctx is done or the queue is closed.
func (p *Pool) Run(ctx context.Context) error {
	p.log.Info("starting workers", zap.Int("workers", p.cfg.Workers))
	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		eg.Go(func() error { return p.worker(ctx, i) })
	}
	err := eg.Wait()
	p.log.Info("workers stopped")
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, queue.ErrQueueClosed) {
		return nil
	}
	return err
}

func (p *Pool) worker(ctx context.Context, id int) error {
	log := p.log.With(zap.Int("worker", id))
	log.Debug("worker started")
	for {
		job, err := p.cfg.Queue.Pop(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, queue.ErrQueueClosed):
			return err
		default:
			log.Warn("failed to pop job", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(popRetryDelay):
			}
			continue
		}

		p.metrics.ActiveWorkers.Inc()
		p.Process(ctx, job)
		p.metrics.ActiveWorkers.Dec()
	}
}

// Process executes job and records its outcome in the queue. Failures are
// stored on the job, never returned.
func (p *Pool) Process(ctx context.Context, job *queue.Job) {
	log := p.log.With(zap.String("job", job.ID), zap.String("op", string(job.Op)))
	start := time.Now()

	job.Status = queue.StatusProcessing
	if err := p.cfg.Queue.Update(ctx, job); err != nil {
		log.Warn("failed to update job status", zap.Error(err))
	}

	result, err := p.execute(ctx, job)
	if err != nil {
		job.Status = queue.StatusFailed
		job.Error = err.Error()
		log.Info("job failed", zap.Error(err))
	} else {
		job.Status = queue.StatusCompleted
		job.ResultHandle = string(result)
		log.Debug("job completed", zap.Duration("elapsed", time.Since(start)))
	}
	p.metrics.JobsProcessed.WithLabelValues(string(job.Op), job.Status.String()).Inc()
	p.metrics.JobDuration.WithLabelValues(string(job.Op)).Observe(time.Since(start).Seconds())

	if err := p.cfg.Queue.Update(ctx, job); err != nil {
		log.Error("failed to record job outcome", zap.Error(err))
	}
}

func (p *Pool) execute(ctx context.Context, job *queue.Job) (storage.Handle, error) {
	base, err := p.evaluator(ctx, storage.Handle(job.ServerKey))
	if err != nil {
		return "", err
	}
	inputs := make([]*tfhe.Ciphertext, len(job.Inputs))
	for i, h := range job.Inputs {
		data, err := p.cfg.Storage.Load(ctx, storage.Handle(h))
		if err != nil {
			return "", fmt.Errorf("load input %d: %w", i, err)
		}
		ct := new(tfhe.Ciphertext)
		if err := ct.UnmarshalBinary(data); err != nil {
			return "", fmt.Errorf("decode input %d: %w", i, err)
		}
		inputs[i] = ct
	}

	start := time.Now()
	out, bootstraps, err := evaluate(base.ShallowCopy(), job, inputs)
	if err != nil {
		return "", err
	}
	if bootstraps > 0 {
		per := time.Since(start).Seconds() / float64(bootstraps)
		for i := 0; i < bootstraps; i++ {
			p.metrics.BootstrapDuration.Observe(per)
		}
		p.metrics.Bootstraps.Add(float64(bootstraps))
	}

	data, err := out.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	h, err := p.cfg.Storage.Store(ctx, data)
	if err != nil {
		return "", fmt.Errorf("store result: %w", err)
	}
	return h, nil
}

// evaluator returns the shared evaluator of the server key stored under h,
// decoding the key on first use. Concurrent misses on one handle share a
// single load, and the lock is never held while a key is decoded.
func (p *Pool) evaluator(ctx context.Context, h storage.Handle) (*tfhe.Evaluator, error) {
	if eval, ok := p.cached(h); ok {
		return eval, nil
	}
	v, err, _ := p.loads.Do(string(h), func() (any, error) {
		if eval, ok := p.cached(h); ok {
			return eval, nil
		}
		eval, err := p.load(ctx, h)
		if err != nil {
			return nil, err
		}
		p.insert(h, eval)
		return eval, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*tfhe.Evaluator), nil
}

func (p *Pool) cached(h storage.Handle) (*tfhe.Evaluator, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	eval, ok := p.evals[h]
	return eval, ok
}

func (p *Pool) insert(h storage.Handle, eval *tfhe.Evaluator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.evals[h]; ok {
		return
	}
	for len(p.order) >= p.cfg.MaxServerKeys {
		evicted := p.order[0]
		p.order = p.order[1:]
		delete(p.evals, evicted)
		p.log.Debug("server key evicted", zap.String("handle", string(evicted)))
	}
	p.evals[h] = eval
	p.order = append(p.order, h)
}

func (p *Pool) load(ctx context.Context, h storage.Handle) (*tfhe.Evaluator, error) {
	data, err := p.cfg.Storage.Load(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("load server key: %w", err)
	}
	sk := new(tfhe.ServerKey)
	if err := sk.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("decode server key: %w", err)
	}
	if !sk.Parameters().Equal(p.cfg.Params) {
		return nil, fmt.Errorf("%w: server key parameters %v, worker serves %v", ErrInvalidJob, sk.Parameters(), p.cfg.Params)
	}
	eval, err := tfhe.NewEvaluator(p.cfg.Params, sk)
	if err != nil {
		return nil, err
	}
	p.metrics.ServerKeysLoaded.Inc()
	p.log.Info("server key loaded", zap.String("handle", string(h)))
	return eval, nil
}

type gateFunc func(eval *tfhe.Evaluator, in []*tfhe.Ciphertext) (*tfhe.Ciphertext, error)

type gate struct {
	arity      int
	bootstraps int
	eval       gateFunc
}

func binaryGate(f func(*tfhe.Evaluator, *tfhe.Ciphertext, *tfhe.Ciphertext) (*tfhe.Ciphertext, error)) gate {
	return gate{arity: 2, bootstraps: 1, eval: func(e *tfhe.Evaluator, in []*tfhe.Ciphertext) (*tfhe.Ciphertext, error) {
		return f(e, in[0], in[1])
	}}
}

var gates = map[string]gate{
	"and":  binaryGate((*tfhe.Evaluator).AND),
	"or":   binaryGate((*tfhe.Evaluator).OR),
	"xor":  binaryGate((*tfhe.Evaluator).XOR),
	"nand": binaryGate((*tfhe.Evaluator).NAND),
	"nor":  binaryGate((*tfhe.Evaluator).NOR),
	"xnor": binaryGate((*tfhe.Evaluator).XNOR),
	"not": {arity: 1, eval: func(e *tfhe.Evaluator, in []*tfhe.Ciphertext) (*tfhe.Ciphertext, error) {
		return e.NOT(in[0]), nil
	}},
	"majority": {arity: 3, bootstraps: 1, eval: func(e *tfhe.Evaluator, in []*tfhe.Ciphertext) (*tfhe.Ciphertext, error) {
		return e.MAJORITY(in[0], in[1], in[2])
	}},
	"mux": {arity: 3, bootstraps: 3, eval: func(e *tfhe.Evaluator, in []*tfhe.Ciphertext) (*tfhe.Ciphertext, error) {
		return e.MUX(in[0], in[1], in[2])
	}},
}

// GateNames lists the gates a job may name.
func GateNames() []string {
	return []string{"and", "or", "xor", "nand", "nor", "xnor", "not", "majority", "mux"}
}

func arity(job *queue.Job, want int) error {
	if len(job.Inputs) != want {
		return fmt.Errorf("%w: %s takes %d inputs, have %d", ErrInvalidJob, job.Op, want, len(job.Inputs))
	}
	return nil
}

// Validate checks the shape of a job before it is queued.
func Validate(job *queue.Job, params tfhe.Parameters) error {
	switch job.Op {
	case queue.OpRefresh:
		return arity(job, 1)
	case queue.OpLUT:
		if uint64(len(job.Table)) != params.PlaintextModulus() {
			return fmt.Errorf("%w: table has %d entries, plaintext modulus is %d",
				ErrInvalidJob, len(job.Table), params.PlaintextModulus())
		}
		return arity(job, 1)
	case queue.OpAdd:
		if len(job.Inputs) < 2 {
			return fmt.Errorf("%w: add takes at least 2 inputs, have %d", ErrInvalidJob, len(job.Inputs))
		}
		return nil
	case queue.OpGate:
		g, ok := gates[job.Gate]
		if !ok {
			return fmt.Errorf("%w: unknown gate %q", ErrInvalidJob, job.Gate)
		}
		return arity(job, g.arity)
	default:
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidJob, job.Op)
	}
}

// evaluate runs job on its decoded inputs and returns the result and the
// number of bootstraps it took.
func evaluate(eval *tfhe.Evaluator, job *queue.Job, in []*tfhe.Ciphertext) (*tfhe.Ciphertext, int, error) {
	if err := Validate(job, eval.Parameters()); err != nil {
		return nil, 0, err
	}
	switch job.Op {
	case queue.OpRefresh:
		out, err := eval.Refresh(in[0])
		return out, 1, err
	case queue.OpLUT:
		table := job.Table
		out, err := eval.Bootstrap(in[0], tfhe.NewLookupTable(eval.Parameters(), func(m uint64) uint64 { return table[m] }))
		return out, 1, err
	case queue.OpAdd:
		out, err := eval.LinearCombination(in, ones(len(in)))
		return out, 0, err
	default:
		g := gates[job.Gate]
		out, err := g.eval(eval, in)
		return out, g.bootstraps, err
	}
}

func ones(n int) []uint64 {
	w := make([]uint64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}
