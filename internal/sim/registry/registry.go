// Package registry caches loaded schematics per owner, keyed by file name.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sort"
	"sync"

	"voxelschem.ai/internal/sim/schematic"
	"voxelschem.ai/internal/sim/schematic/codec"
)

var ErrNotFound = errors.New("schematic not found")

type Config struct {
	Resolver codec.TypeResolver
	// Workers bounds concurrent file loads per batch.
	Workers int
	Logger  *log.Logger
}

// Registry is constructed once per owning context. Reads are lock-free after
// a batch has been published.
type Registry struct {
	res     codec.TypeResolver
	workers int
	log     *log.Logger

	// writeMu serializes batches; mu guards the owners map itself.
	writeMu sync.Mutex
	mu      sync.RWMutex
	owners  map[string]map[string]*schematic.Schematic
}

func New(cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Registry{
		res:     cfg.Resolver,
		workers: workers,
		log:     logger,
		owners:  map[string]map[string]*schematic.Schematic{},
	}
}

type Result struct {
	Loaded  int
	Skipped int
}

type loaded struct {
	s   *schematic.Schematic
	err error
}

// AddFromFiles loads every path and adds the supported ones under owner,
// keyed by base file name. Unreadable and unsupported files are skipped and
// counted. On duplicate names the later path wins. The owner's map is
// replaced in one step once the batch is done. Only ctx errors are returned.
func (r *Registry) AddFromFiles(ctx context.Context, owner string, paths ...string) (Result, error) {
	results := make([]loaded, len(paths))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < r.workers && i < len(paths); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				s, err := schematic.StartLoad(ctx, paths[idx], r.res).Wait(ctx)
				results[idx] = loaded{s: s, err: err}
			}
		}()
	}
feed:
	for i := range paths {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.RLock()
	cur := r.owners[owner]
	r.mu.RUnlock()
	next := make(map[string]*schematic.Schematic, len(cur)+len(paths))
	for k, v := range cur {
		next[k] = v
	}

	var res Result
	for i, p := range paths {
		name := filepath.Base(p)
		l := results[i]
		switch {
		case l.err != nil:
			r.log.Printf("owner %s: skip %s: %v", owner, name, l.err)
			res.Skipped++
		case !l.s.IsSupported():
			r.log.Printf("owner %s: schematic %s is not supported (%d unknown blocks)", owner, name, l.s.UnknownCount())
			res.Skipped++
		default:
			next[name] = l.s
			res.Loaded++
		}
	}

	r.mu.Lock()
	r.owners[owner] = next
	r.mu.Unlock()

	r.log.Printf("owner %s: loaded %d schematic(s), skipped %d unsupported or unreadable", owner, res.Loaded, res.Skipped)
	return res, nil
}

// AddFromDir loads every file in dir matching pattern (filepath.Match syntax).
func (r *Registry) AddFromDir(ctx context.Context, owner, dir, pattern string) (Result, error) {
	if pattern == "" {
		pattern = "*"
	}
	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return Result{}, fmt.Errorf("glob %s: %w", pattern, err)
	}
	sort.Strings(paths)
	return r.AddFromFiles(ctx, owner, paths...)
}

func (r *Registry) Get(owner, name string) (*schematic.Schematic, error) {
	r.mu.RLock()
	s, ok := r.owners[owner][name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: owner=%s name=%s", ErrNotFound, owner, name)
	}
	return s, nil
}

// Names lists the owner's schematic names in sorted order.
func (r *Registry) Names(owner string) []string {
	r.mu.RLock()
	m := r.owners[owner]
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// DropOwner forgets everything loaded for owner.
func (r *Registry) DropOwner(owner string) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.mu.Lock()
	delete(r.owners, owner)
	r.mu.Unlock()
}
