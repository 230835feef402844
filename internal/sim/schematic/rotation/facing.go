package rotation

import "voxelschem.ai/internal/sim/voxel"

// Horizontal directions in the order a positive quarter turn walks them
// (+x is east, +z is south).
var horizontal = [4]string{"north", "east", "south", "west"}

func horizontalIndex(v string) int {
	for i, h := range horizontal {
		if h == v {
			return i
		}
	}
	return -1
}

// RotateDescriptor rotates the horizontal orientation of d by rot quarter
// turns. Only the "facing" state (when horizontal) and the horizontal "axis"
// state are touched; vertical states such as up/down or half stay as they are.
func RotateDescriptor(d voxel.Descriptor, rot int) voxel.Descriptor {
	rot &= 3
	if rot == 0 || len(d.States) == 0 {
		return d
	}
	out := d
	if f, ok := d.States["facing"]; ok {
		if i := horizontalIndex(f); i >= 0 {
			out = out.WithState("facing", horizontal[(i+rot)&3])
		}
	}
	if a, ok := d.States["axis"]; ok && rot&1 == 1 {
		switch a {
		case "x":
			out = out.WithState("axis", "z")
		case "z":
			out = out.WithState("axis", "x")
		}
	}
	return out
}
