package materialize

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"voxelschem.ai/internal/sim/world"
)

var ErrAlreadySubmitted = errors.New("pipeline already submitted")

// JobRecord is what the dispatcher reports for every finished pipeline.
type JobRecord struct {
	Result
	SubmittedTick uint64 `json:"submitted_tick"`
	FinishedTick  uint64 `json:"finished_tick"`
}

type JobSink interface {
	WriteJob(rec JobRecord) error
}

// Submitter accepts pipelines for materialization.
type Submitter interface {
	Submit(p *Pipeline) error
}

type Config struct {
	TickRateHz int
	// ChangesPerTick is the default per-pipeline budget.
	ChangesPerTick int
	// MaxWritesPerTick bounds writes across every active pipeline in one
	// tick, shared in submission order. 0 means unbounded.
	MaxWritesPerTick int
	// Shapes is used for pipelines submitted without their own classifier.
	Shapes ShapeClassifier
	Sink   JobSink
	Logger *log.Logger
}

// Dispatcher owns the tick goroutine: every world write of every submitted
// pipeline happens inside Step, which Run calls at TickRateHz.
type Dispatcher struct {
	cfg Config
	w   world.Writer
	log *log.Logger

	mu      sync.Mutex
	inbox   []*Pipeline
	active  []*Pipeline
	started map[*Pipeline]uint64

	tick     atomic.Uint64
	nActive  atomic.Int64
	stop     chan struct{}
	stopOnce sync.Once
}

func NewDispatcher(w world.Writer, cfg Config) *Dispatcher {
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 20
	}
	if cfg.ChangesPerTick <= 0 {
		cfg.ChangesPerTick = DefaultChangesPerTick
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Dispatcher{
		cfg:     cfg,
		w:       w,
		log:     logger,
		started: map[*Pipeline]uint64{},
		stop:    make(chan struct{}),
	}
}

// Submit starts p and queues it for the next tick. It never blocks and may be
// called from any goroutine, including completion callbacks.
func (d *Dispatcher) Submit(p *Pipeline) error {
	if p == nil {
		return errors.New("nil pipeline")
	}
	if p.State() != Idle {
		return ErrAlreadySubmitted
	}
	if p.budget <= 0 {
		p.budget = d.cfg.ChangesPerTick
	}
	if p.shapes == nil {
		p.shapes = d.cfg.Shapes
	}
	if !p.Start() {
		return ErrAlreadySubmitted
	}
	now := d.tick.Load()
	if p.State() != Draining {
		d.report(p, now, now)
		return nil
	}
	d.nActive.Add(1)
	d.mu.Lock()
	d.inbox = append(d.inbox, p)
	d.started[p] = now
	d.mu.Unlock()
	return nil
}

func (d *Dispatcher) CurrentTick() uint64 { return d.tick.Load() }

// Active reports pipelines submitted and not yet finished.
func (d *Dispatcher) Active() int { return int(d.nActive.Load()) }

func (d *Dispatcher) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(d.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.stop:
			return nil
		case <-ticker.C:
			d.Step()
		}
	}
}

func (d *Dispatcher) Stop() { d.stopOnce.Do(func() { close(d.stop) }) }

// Step advances one tick. It must not run concurrently with Run or itself.
func (d *Dispatcher) Step() {
	tick := d.tick.Add(1)

	d.mu.Lock()
	d.active = append(d.active, d.inbox...)
	d.inbox = nil
	d.mu.Unlock()

	remaining := d.cfg.MaxWritesPerTick
	capped := remaining > 0
	kept := d.active[:0]
	for _, p := range d.active {
		limit := p.Budget()
		if capped {
			if remaining == 0 && !p.cancelReq.Load() {
				kept = append(kept, p)
				continue
			}
			if limit > remaining {
				limit = remaining
			}
		}
		before := p.applied
		more := p.tick(d.w, limit)
		if capped {
			remaining -= p.applied - before
		}
		if more {
			kept = append(kept, p)
			continue
		}
		d.mu.Lock()
		submitted := d.started[p]
		delete(d.started, p)
		d.mu.Unlock()
		d.nActive.Add(-1)
		d.report(p, submitted, tick)
	}
	for i := len(kept); i < len(d.active); i++ {
		d.active[i] = nil
	}
	d.active = kept

	if f, ok := d.w.(world.TickFlusher); ok {
		if err := f.EndTick(); err != nil {
			d.log.Printf("tick %d: flush world: %v", tick, err)
		}
	}
}

// Drain steps until no pipeline is active or ctx is done. Intended for
// tools and tests that do not run the ticker.
func (d *Dispatcher) Drain(ctx context.Context) error {
	for d.Active() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.Step()
	}
	return nil
}

func (d *Dispatcher) report(p *Pipeline, submitted, finished uint64) {
	r := p.Result()
	if r.Cancelled {
		d.log.Printf("job %s %s cancelled: applied=%d discarded=%d ticks=%d", r.JobID, r.Label, r.Applied, r.Discarded, r.Ticks)
	} else {
		d.log.Printf("job %s %s complete: applied=%d ticks=%d", r.JobID, r.Label, r.Applied, r.Ticks)
	}
	if d.cfg.Sink == nil {
		return
	}
	if err := d.cfg.Sink.WriteJob(JobRecord{Result: r, SubmittedTick: submitted, FinishedTick: finished}); err != nil {
		d.log.Printf("job %s: write job log: %v", r.JobID, err)
	}
}
