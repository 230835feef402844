package schematic

import "context"

// Pending is the handle of a background load or save.
type Pending[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func start[T any](ctx context.Context, fn func(context.Context) (T, error)) *Pending[T] {
	p := &Pending[T]{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		if err := ctx.Err(); err != nil {
			p.err = err
			return
		}
		p.val, p.err = fn(ctx)
	}()
	return p
}

// Done is closed when the job has finished.
func (p *Pending[T]) Done() <-chan struct{} { return p.done }

// Wait blocks until the job finishes or ctx is done. The job itself keeps
// running if ctx expires first.
func (p *Pending[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
