// Package materialize applies queued block writes to a live world at a
// bounded number of writes per tick.
package materialize

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"voxelschem.ai/internal/sim/voxel"
	"voxelschem.ai/internal/sim/world"
)

const DefaultChangesPerTick = 2500

type State int32

const (
	Idle State = iota
	Draining
	Complete
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Draining:
		return "draining"
	case Complete:
		return "complete"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

type Write struct {
	Pos  voxel.Vec3i
	Desc voxel.Descriptor
}

// ShapeClassifier reports block types whose shape depends on neighbours
// (fences, walls); their writes ask the world to recompute connectivity.
type ShapeClassifier interface {
	ShapeSensitive(typeID string) bool
}

// SuffixShapes treats every "*_fence" and "*_wall" type as shape sensitive.
// Pipelines use it when neither they nor their dispatcher have a classifier.
type SuffixShapes struct{}

func (SuffixShapes) ShapeSensitive(typeID string) bool {
	id := strings.TrimPrefix(typeID, "minecraft:")
	return strings.HasSuffix(id, "_fence") || strings.HasSuffix(id, "_wall")
}

type Result struct {
	JobID     string `json:"job_id"`
	Label     string `json:"label,omitempty"`
	Total     int    `json:"total"`
	Applied   int    `json:"applied"`
	Discarded int    `json:"discarded,omitempty"`
	Ticks     int    `json:"ticks"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

type Options struct {
	// Budget is the per-tick write cap; <=0 takes the dispatcher default
	// (DefaultChangesPerTick when ticked directly).
	Budget int
	// Shapes overrides the dispatcher's classifier; SuffixShapes applies
	// when both are nil.
	Shapes ShapeClassifier
	Label  string
	// OnComplete runs exactly once, on the goroutine that drives the final
	// tick (or on the submitting goroutine for an empty queue).
	OnComplete func(Result)
}

// Pipeline drains one ordered queue of writes. OnTick must only be called
// from a single goroutine; Cancel, State and Done are safe from any.
type Pipeline struct {
	id     string
	label  string
	budget int
	shapes ShapeClassifier

	queue []Write
	next  int
	total int

	state      atomic.Int32
	cancelReq  atomic.Bool
	onComplete func(Result)
	finishOnce sync.Once
	done       chan struct{}

	applied int
	ticks   int
	result  Result
}

// New takes ownership of writes; they are applied in slice order.
func New(writes []Write, opts Options) *Pipeline {
	p := &Pipeline{
		id:         uuid.NewString(),
		label:      opts.Label,
		budget:     opts.Budget,
		shapes:     opts.Shapes,
		queue:      writes,
		total:      len(writes),
		onComplete: opts.OnComplete,
		done:       make(chan struct{}),
	}
	return p
}

func (p *Pipeline) ID() string       { return p.id }
func (p *Pipeline) Label() string    { return p.label }
func (p *Pipeline) Budget() int      { return budgetOr(p.budget) }
func (p *Pipeline) Total() int       { return p.total }
func (p *Pipeline) State() State     { return State(p.state.Load()) }
func (p *Pipeline) IsComplete() bool { return p.State() == Complete }

// Done is closed once the pipeline reaches Complete or Cancelled.
func (p *Pipeline) Done() <-chan struct{} { return p.done }

// Result is only meaningful after Done is closed.
func (p *Pipeline) Result() Result { return p.result }

// Cancel stops the pipeline at the start of its next tick. Writes already
// applied stay in the world; the rest are discarded.
func (p *Pipeline) Cancel() { p.cancelReq.Store(true) }

// Start moves an idle pipeline to Draining. An empty queue completes at once.
// It reports false if the pipeline was not idle.
func (p *Pipeline) Start() bool {
	if !p.state.CompareAndSwap(int32(Idle), int32(Draining)) {
		return false
	}
	if len(p.queue) == 0 {
		p.finish(Complete)
	}
	return true
}

// OnTick applies up to Budget writes and reports whether writes remain.
func (p *Pipeline) OnTick(w world.Writer) bool {
	return p.tick(w, p.Budget())
}

func budgetOr(b int) int {
	if b <= 0 {
		return DefaultChangesPerTick
	}
	return b
}

func (p *Pipeline) tick(w world.Writer, limit int) bool {
	if p.State() == Idle {
		p.Start()
	}
	if p.State() != Draining {
		return false
	}
	if p.cancelReq.Load() {
		p.finish(Cancelled)
		return false
	}
	if b := p.Budget(); limit > b {
		limit = b
	}
	shapes := p.shapes
	if shapes == nil {
		shapes = SuffixShapes{}
	}
	p.ticks++
	for n := 0; n < limit && p.next < len(p.queue); n++ {
		wr := p.queue[p.next]
		p.queue[p.next] = Write{}
		p.next++
		w.SetBlock(wr.Pos, wr.Desc, shapes.ShapeSensitive(wr.Desc.Type))
		p.applied++
	}
	if p.next >= len(p.queue) {
		p.finish(Complete)
		return false
	}
	return true
}

// Remaining reports queued writes not yet applied. Tick goroutine only.
func (p *Pipeline) Remaining() int { return len(p.queue) - p.next }

func (p *Pipeline) finish(s State) {
	p.finishOnce.Do(func() {
		total := p.total
		p.result = Result{
			JobID:     p.id,
			Label:     p.label,
			Total:     total,
			Applied:   p.applied,
			Discarded: total - p.applied,
			Ticks:     p.ticks,
			Cancelled: s == Cancelled,
		}
		p.queue = nil
		p.next = 0
		p.state.Store(int32(s))
		close(p.done)
		if p.onComplete != nil {
			p.onComplete(p.result)
		}
	})
}
