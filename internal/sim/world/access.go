package world

import "voxelschem.ai/internal/sim/voxel"

// BlockReader is the read side of a host world.
type BlockReader interface {
	BlockAt(pos voxel.Vec3i) voxel.Descriptor
	IsAirLike(d voxel.Descriptor) bool
}

// Writer applies single-block writes. Implementations are not required to be
// safe for concurrent use; callers serialize writes onto one goroutine.
type Writer interface {
	SetBlock(pos voxel.Vec3i, d voxel.Descriptor, recomputeConnectivity bool)
}

type ReadWriter interface {
	BlockReader
	Writer
}

// TickFlusher is implemented by writers that batch the writes of one tick.
type TickFlusher interface {
	EndTick() error
}

// Classifier answers per-type questions about block behaviour.
type Classifier interface {
	IsAir(typeID string) bool
	ShapeSensitive(typeID string) bool
}

// Region returns every non-air block in the inclusive box spanned by pos1
// and pos2 (any corner order), iterating x, then y, then z.
func Region(r BlockReader, pos1, pos2 voxel.Vec3i) []voxel.Block {
	if r == nil {
		return nil
	}
	lo, hi := voxel.Bounds(pos1, pos2)
	var out []voxel.Block
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				p := voxel.Vec3i{X: x, Y: y, Z: z}
				d := r.BlockAt(p)
				if r.IsAirLike(d) {
					continue
				}
				out = append(out, voxel.Block{Pos: p, Desc: d})
			}
		}
	}
	return out
}
