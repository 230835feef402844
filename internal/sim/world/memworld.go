package world

import (
	"sync"

	"voxelschem.ai/internal/sim/voxel"
)

const AirType = "air"

var sides = [4]struct {
	state string
	dx    int
	dz    int
	back  string
}{
	{state: "north", dz: -1, back: "south"},
	{state: "east", dx: 1, back: "west"},
	{state: "south", dz: 1, back: "north"},
	{state: "west", dx: -1, back: "east"},
}

// MemWorld is a sparse in-memory world. Reads may run on any goroutine;
// writes take the exclusive lock.
type MemWorld struct {
	mu     sync.RWMutex
	blocks map[voxel.Vec3i]voxel.Descriptor
	cls    Classifier

	writes       int
	shapeUpdates int
}

// NewMemWorld returns an empty world. cls may be nil, in which case only
// "air" and the empty type are air and no type is shape sensitive.
func NewMemWorld(cls Classifier) *MemWorld {
	return &MemWorld{blocks: map[voxel.Vec3i]voxel.Descriptor{}, cls: cls}
}

func (w *MemWorld) BlockAt(pos voxel.Vec3i) voxel.Descriptor {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if d, ok := w.blocks[pos]; ok {
		return d
	}
	return voxel.Descriptor{Type: AirType}
}

func (w *MemWorld) IsAirLike(d voxel.Descriptor) bool { return w.isAir(d.Type) }

func (w *MemWorld) isAir(typeID string) bool {
	if typeID == "" || typeID == AirType {
		return true
	}
	return w.cls != nil && w.cls.IsAir(typeID)
}

func (w *MemWorld) shapeSensitive(typeID string) bool {
	return w.cls != nil && w.cls.ShapeSensitive(typeID)
}

// SetBlock stores d at pos. With recomputeConnectivity set, the connection
// states (north/east/south/west) of d and of shape-sensitive neighbours are
// recomputed from the surrounding blocks.
func (w *MemWorld) SetBlock(pos voxel.Vec3i, d voxel.Descriptor, recomputeConnectivity bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes++
	if w.isAir(d.Type) {
		delete(w.blocks, pos)
	} else {
		w.blocks[pos] = d
	}
	if !recomputeConnectivity {
		return
	}
	if !w.isAir(d.Type) && w.shapeSensitive(d.Type) {
		w.blocks[pos] = w.connectLocked(pos, d)
		w.shapeUpdates++
	}
	for _, s := range sides {
		np := voxel.Vec3i{X: pos.X + s.dx, Y: pos.Y, Z: pos.Z + s.dz}
		nd, ok := w.blocks[np]
		if !ok || !w.shapeSensitive(nd.Type) {
			continue
		}
		w.blocks[np] = w.connectLocked(np, nd)
		w.shapeUpdates++
	}
}

func (w *MemWorld) connectLocked(pos voxel.Vec3i, d voxel.Descriptor) voxel.Descriptor {
	for _, s := range sides {
		np := voxel.Vec3i{X: pos.X + s.dx, Y: pos.Y, Z: pos.Z + s.dz}
		_, solid := w.blocks[np]
		v := "false"
		if solid {
			v = "true"
		}
		d = d.WithState(s.state, v)
	}
	return d
}

func (w *MemWorld) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.blocks)
}

// Stats returns the number of writes and connectivity recomputations seen.
func (w *MemWorld) Stats() (writes, shapeUpdates int) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.writes, w.shapeUpdates
}

// Blocks returns a copy of every stored block.
func (w *MemWorld) Blocks() map[voxel.Vec3i]voxel.Descriptor {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[voxel.Vec3i]voxel.Descriptor, len(w.blocks))
	for k, v := range w.blocks {
		out[k] = v
	}
	return out
}
