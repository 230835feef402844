package voxel

// Entry is either a known Descriptor or an Unknown marker for a block whose
// type the running engine could not resolve. Unknown keeps the raw type id
// (possibly empty) and states so the entry can be written back unchanged.
type Entry struct {
	desc  Descriptor
	known bool
}

func Known(d Descriptor) Entry { return Entry{desc: d, known: true} }

func Unknown(raw Descriptor) Entry { return Entry{desc: raw} }

func (e Entry) IsKnown() bool { return e.known }

// Descriptor returns the descriptor and whether it is usable.
func (e Entry) Descriptor() (Descriptor, bool) {
	if !e.known {
		return Descriptor{}, false
	}
	return e.desc, true
}

// Raw returns the stored descriptor regardless of whether it is known.
func (e Entry) Raw() Descriptor { return e.desc }

func (e Entry) String() string {
	if !e.known {
		if e.desc.Type == "" {
			return "<unknown>"
		}
		return "<unknown:" + e.desc.Key() + ">"
	}
	return e.desc.Key()
}

// Block is a descriptor at an absolute or relative position.
type Block struct {
	Pos  Vec3i
	Desc Descriptor
}
