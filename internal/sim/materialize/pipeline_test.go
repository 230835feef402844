package materialize

import (
	"context"
	"sync"
	"testing"
	"time"

	"voxelschem.ai/internal/sim/voxel"
)

type setCall struct {
	pos       voxel.Vec3i
	desc      voxel.Descriptor
	recompute bool
}

type recordingWriter struct {
	mu      sync.Mutex
	calls   []setCall
	flushes int
}

func (r *recordingWriter) SetBlock(pos voxel.Vec3i, d voxel.Descriptor, recompute bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, setCall{pos: pos, desc: d, recompute: recompute})
}

func (r *recordingWriter) EndTick() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
	return nil
}

func (r *recordingWriter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type fenceShapes struct{}

func (fenceShapes) ShapeSensitive(id string) bool { return id == "oak_fence" || id == "stone_wall" }

func makeWrites(n int) []Write {
	out := make([]Write, n)
	for i := range out {
		out[i] = Write{Pos: voxel.Vec3i{X: i}, Desc: voxel.NewDescriptor("stone")}
	}
	return out
}

func TestPipeline_TicksToComplete(t *testing.T) {
	cases := []struct {
		n, budget, ticks int
	}{
		{n: 7, budget: 3, ticks: 3},
		{n: 6, budget: 3, ticks: 2},
		{n: 1, budget: 2500, ticks: 1},
		{n: 2500, budget: 2500, ticks: 1},
		{n: 2501, budget: 2500, ticks: 2},
	}
	for _, c := range cases {
		calls := 0
		p := New(makeWrites(c.n), Options{Budget: c.budget, OnComplete: func(Result) { calls++ }})
		w := &recordingWriter{}
		ticks := 0
		for p.OnTick(w) {
			ticks++
			if ticks > c.n+1 {
				t.Fatalf("n=%d: pipeline does not terminate", c.n)
			}
		}
		ticks++
		if ticks != c.ticks {
			t.Fatalf("n=%d budget=%d: ticks=%d want %d", c.n, c.budget, ticks, c.ticks)
		}
		if !p.IsComplete() || p.State() != Complete {
			t.Fatalf("n=%d: state=%s", c.n, p.State())
		}
		if calls != 1 {
			t.Fatalf("n=%d: callback calls=%d want 1", c.n, calls)
		}
		if w.count() != c.n {
			t.Fatalf("n=%d: writes=%d", c.n, w.count())
		}
		if r := p.Result(); r.Ticks != c.ticks || r.Applied != c.n || r.Total != c.n {
			t.Fatalf("n=%d: result=%+v", c.n, r)
		}
		// Further ticks are no-ops.
		if p.OnTick(w) || calls != 1 || w.count() != c.n {
			t.Fatalf("n=%d: pipeline kept running after completion", c.n)
		}
	}
}

func TestPipeline_EmptyCompletesOnStart(t *testing.T) {
	calls := 0
	p := New(nil, Options{OnComplete: func(Result) { calls++ }})
	if p.State() != Idle {
		t.Fatalf("state=%s want idle", p.State())
	}
	if !p.Start() {
		t.Fatalf("Start on idle pipeline returned false")
	}
	if !p.IsComplete() || calls != 1 {
		t.Fatalf("state=%s calls=%d", p.State(), calls)
	}
	if p.Start() {
		t.Fatalf("second Start must report false")
	}
	select {
	case <-p.Done():
	default:
		t.Fatalf("Done not closed")
	}
}

func TestPipeline_OrderAndConnectivity(t *testing.T) {
	writes := []Write{
		{Pos: voxel.Vec3i{X: 2}, Desc: voxel.NewDescriptor("oak_fence")},
		{Pos: voxel.Vec3i{X: 0}, Desc: voxel.NewDescriptor("stone")},
		{Pos: voxel.Vec3i{X: 1}, Desc: voxel.NewDescriptor("stone_wall")},
	}
	p := New(append([]Write(nil), writes...), Options{Budget: 2, Shapes: fenceShapes{}})
	w := &recordingWriter{}
	for p.OnTick(w) {
	}
	if len(w.calls) != 3 {
		t.Fatalf("calls=%d", len(w.calls))
	}
	for i, c := range w.calls {
		if c.pos != writes[i].Pos {
			t.Fatalf("call %d pos=%v want %v", i, c.pos, writes[i].Pos)
		}
	}
	if !w.calls[0].recompute || w.calls[1].recompute || !w.calls[2].recompute {
		t.Fatalf("recompute flags=%v", w.calls)
	}
}

func TestPipeline_DefaultShapesWithoutClassifier(t *testing.T) {
	writes := []Write{
		{Pos: voxel.Vec3i{X: 0}, Desc: voxel.NewDescriptor("oak_fence")},
		{Pos: voxel.Vec3i{X: 1}, Desc: voxel.NewDescriptor("minecraft:cobblestone_wall")},
		{Pos: voxel.Vec3i{X: 2}, Desc: voxel.NewDescriptor("wall_torch")},
		{Pos: voxel.Vec3i{X: 3}, Desc: voxel.NewDescriptor("oak_fence_gate")},
	}
	want := []bool{true, true, false, false}

	w := &recordingWriter{}
	d := NewDispatcher(w, Config{})
	if err := d.Submit(New(writes, Options{})); err != nil {
		t.Fatal(err)
	}
	d.Step()
	if len(w.calls) != len(want) {
		t.Fatalf("calls=%d", len(w.calls))
	}
	for i, c := range w.calls {
		if c.recompute != want[i] {
			t.Fatalf("%s: recompute=%v want %v", c.desc.Type, c.recompute, want[i])
		}
	}
}

func TestPipeline_CancelLeavesPartialWrites(t *testing.T) {
	var got Result
	p := New(makeWrites(10), Options{Budget: 4, OnComplete: func(r Result) { got = r }})
	w := &recordingWriter{}
	if !p.OnTick(w) {
		t.Fatalf("expected more work after first tick")
	}
	p.Cancel()
	if p.OnTick(w) {
		t.Fatalf("cancelled pipeline reported more work")
	}
	if p.State() != Cancelled || p.IsComplete() {
		t.Fatalf("state=%s", p.State())
	}
	if w.count() != 4 {
		t.Fatalf("writes=%d want 4", w.count())
	}
	if !got.Cancelled || got.Applied != 4 || got.Discarded != 6 {
		t.Fatalf("result=%+v", got)
	}
}

func TestDispatcher_StepAndSink(t *testing.T) {
	w := &recordingWriter{}
	sink := &memSink{}
	d := NewDispatcher(w, Config{ChangesPerTick: 5, Shapes: fenceShapes{}, Sink: sink})

	a := New(makeWrites(12), Options{Label: "a"})
	b := New(makeWrites(3), Options{Label: "b", Budget: 1})
	empty := New(nil, Options{Label: "empty"})
	for _, p := range []*Pipeline{a, b, empty} {
		if err := d.Submit(p); err != nil {
			t.Fatalf("submit %s: %v", p.Label(), err)
		}
	}
	if err := d.Submit(a); err != ErrAlreadySubmitted {
		t.Fatalf("resubmit err=%v", err)
	}
	if a.Budget() != 5 || b.Budget() != 1 {
		t.Fatalf("budgets a=%d b=%d", a.Budget(), b.Budget())
	}
	if d.Active() != 2 {
		t.Fatalf("active=%d want 2", d.Active())
	}
	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if d.CurrentTick() != 3 {
		t.Fatalf("ticks=%d want 3", d.CurrentTick())
	}
	if w.count() != 15 || w.flushes != 3 {
		t.Fatalf("writes=%d flushes=%d", w.count(), w.flushes)
	}
	if len(sink.records) != 3 {
		t.Fatalf("sink records=%d", len(sink.records))
	}
	if sink.records[0].Label != "empty" || sink.records[0].Ticks != 0 {
		t.Fatalf("first record=%+v", sink.records[0])
	}
	for _, r := range sink.records[1:] {
		if r.Ticks != 3 || r.FinishedTick != 3 {
			t.Fatalf("record=%+v", r)
		}
	}
}

func TestDispatcher_MaxWritesPerTickIsShared(t *testing.T) {
	w := &recordingWriter{}
	d := NewDispatcher(w, Config{ChangesPerTick: 10, MaxWritesPerTick: 4})
	a := New(makeWrites(6), Options{})
	b := New(makeWrites(2), Options{})
	_ = d.Submit(a)
	_ = d.Submit(b)

	d.Step()
	if w.count() != 4 || a.Remaining() != 2 || b.Remaining() != 2 {
		t.Fatalf("tick1 writes=%d a=%d b=%d", w.count(), a.Remaining(), b.Remaining())
	}
	d.Step()
	if w.count() != 8 || !a.IsComplete() || !b.IsComplete() {
		t.Fatalf("tick2 writes=%d a=%s b=%s", w.count(), a.State(), b.State())
	}
	if d.Active() != 0 {
		t.Fatalf("active=%d", d.Active())
	}
}

func TestDispatcher_RunDrivesTicks(t *testing.T) {
	w := &recordingWriter{}
	d := NewDispatcher(w, Config{TickRateHz: 200, ChangesPerTick: 10})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	p := New(makeWrites(35), Options{})
	if err := d.Submit(p); err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("pipeline did not finish")
	}
	if r := p.Result(); r.Applied != 35 || r.Ticks != 4 {
		t.Fatalf("result=%+v", r)
	}
	d.Stop()
	if err := <-errCh; err != nil {
		t.Fatalf("run: %v", err)
	}
}

type memSink struct{ records []JobRecord }

func (m *memSink) WriteJob(rec JobRecord) error {
	m.records = append(m.records, rec)
	return nil
}
