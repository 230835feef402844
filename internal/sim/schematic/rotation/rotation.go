package rotation

import (
	"math"

	"voxelschem.ai/internal/sim/voxel"
)

// QuarterTurns snaps an angle in radians to the nearest multiple of pi/2 and
// returns it as a quarter-turn count in [0,3]. Any finite angle is accepted;
// it is wrapped modulo 2*pi first.
func QuarterTurns(angle float64) int {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return 0
	}
	a := math.Mod(angle, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	q := int(math.Round(a / (math.Pi / 2)))
	return q & 3
}

// NormalizeRotation maps a user rotation, given as quarter turns or as a
// multiple of 90 degrees, to a quarter-turn count in [0,3]. Values in -3..3
// are always quarter turns.
func NormalizeRotation(r int) int {
	if r < -3 || r > 3 {
		if r%90 == 0 {
			r /= 90
		}
	}
	return (r%4 + 4) % 4
}

// RotateXZ rotates an (x,z) offset around the Y axis by rot*90 degrees using
// the standard rotation matrix, so rot=1 maps +x onto +z. rot must be a
// normalized quarter-turn count in [0,3].
func RotateXZ(x, z, rot int) (rx, rz int) {
	switch rot & 3 {
	case 0:
		return x, z
	case 1:
		return -z, x
	case 2:
		return -x, -z
	default: // 3
		return z, -x
	}
}

func RotateOffset(off voxel.Vec3i, rot int) voxel.Vec3i {
	rx, rz := RotateXZ(off.X, off.Z, rot)
	return voxel.Vec3i{X: rx, Y: off.Y, Z: rz}
}

// Placement is one relative offset with the entry stored there.
type Placement struct {
	Offset voxel.Vec3i
	Entry  voxel.Entry
}

// Rotate rotates every offset and its descriptor orientation by angle
// (radians, snapped to quarter turns). The input slice is not modified and
// the output keeps input order.
func Rotate(in []Placement, angle float64) []Placement {
	return RotateQuarter(in, QuarterTurns(angle))
}

func RotateQuarter(in []Placement, rot int) []Placement {
	rot &= 3
	out := make([]Placement, len(in))
	for i, p := range in {
		out[i] = Placement{Offset: RotateOffset(p.Offset, rot), Entry: RotateEntry(p.Entry, rot)}
	}
	return out
}

func RotateEntry(e voxel.Entry, rot int) voxel.Entry {
	d, ok := e.Descriptor()
	if !ok {
		return e
	}
	return voxel.Known(RotateDescriptor(d, rot))
}
