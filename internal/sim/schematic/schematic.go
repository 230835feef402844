// Package schematic captures a cuboid of a world into a relocatable,
// immutable block map and pastes it back, optionally rotated.
package schematic

import (
	"voxelschem.ai/internal/sim/schematic/codec"
	"voxelschem.ai/internal/sim/schematic/rotation"
	"voxelschem.ai/internal/sim/voxel"
)

// Schematic maps offsets (relative to the captured min corner) to entries.
// Entries keep file order, which is also paste order.
type Schematic struct {
	path    string
	version int

	offsets []voxel.Vec3i
	entries []voxel.Entry
	index   map[voxel.Vec3i]int
	unknown int
}

// FromRecords builds a schematic from decoded records. A repeated offset
// replaces the earlier entry in place.
func FromRecords(recs []codec.Record) *Schematic {
	s := &Schematic{
		version: codec.VersionCurrent,
		offsets: make([]voxel.Vec3i, 0, len(recs)),
		entries: make([]voxel.Entry, 0, len(recs)),
		index:   make(map[voxel.Vec3i]int, len(recs)),
	}
	for _, r := range recs {
		if i, ok := s.index[r.Offset]; ok {
			if !s.entries[i].IsKnown() {
				s.unknown--
			}
			s.entries[i] = r.Entry
		} else {
			s.index[r.Offset] = len(s.offsets)
			s.offsets = append(s.offsets, r.Offset)
			s.entries = append(s.entries, r.Entry)
		}
		if !r.Entry.IsKnown() {
			s.unknown++
		}
	}
	return s
}

func (s *Schematic) Path() string { return s.path }

// Version is the format version the schematic was read from.
func (s *Schematic) Version() int { return s.version }

func (s *Schematic) Len() int { return len(s.offsets) }

func (s *Schematic) Get(off voxel.Vec3i) (voxel.Entry, bool) {
	i, ok := s.index[off]
	if !ok {
		return voxel.Entry{}, false
	}
	return s.entries[i], true
}

// Placements returns a copy of every (offset, entry) pair in order.
func (s *Schematic) Placements() []rotation.Placement {
	out := make([]rotation.Placement, len(s.offsets))
	for i := range s.offsets {
		out[i] = rotation.Placement{Offset: s.offsets[i], Entry: s.entries[i]}
	}
	return out
}

func (s *Schematic) Records() []codec.Record {
	out := make([]codec.Record, len(s.offsets))
	for i := range s.offsets {
		out[i] = codec.Record{Offset: s.offsets[i], Entry: s.entries[i]}
	}
	return out
}

// Dimensions is the component-wise max minus min over all offsets. An empty
// schematic has zero dimensions.
func (s *Schematic) Dimensions() voxel.Vec3i {
	if len(s.offsets) == 0 {
		return voxel.Vec3i{}
	}
	lo, hi := s.offsets[0], s.offsets[0]
	for _, o := range s.offsets[1:] {
		lo = voxel.Min(lo, o)
		hi = voxel.Max(hi, o)
	}
	return hi.Sub(lo)
}

// IsSupported reports whether every entry resolved to a known type.
func (s *Schematic) IsSupported() bool { return s.unknown == 0 }

func (s *Schematic) UnknownCount() int { return s.unknown }
