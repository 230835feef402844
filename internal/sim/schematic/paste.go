package schematic

import (
	"path/filepath"

	"voxelschem.ai/internal/sim/materialize"
	"voxelschem.ai/internal/sim/schematic/rotation"
	"voxelschem.ai/internal/sim/voxel"
	"voxelschem.ai/internal/sim/world"
)

// Plan computes the writes that pasting at anchor would perform: offsets and
// facing rotated by angle (radians, snapped to quarter turns) and Unknown
// entries dropped. Order follows the schematic.
func (s *Schematic) Plan(anchor voxel.Vec3i, angle float64) []materialize.Write {
	rot := rotation.QuarterTurns(angle)
	out := make([]materialize.Write, 0, len(s.offsets)-s.unknown)
	for i, off := range s.offsets {
		d, ok := s.entries[i].Descriptor()
		if !ok {
			continue
		}
		out = append(out, materialize.Write{
			Pos:  anchor.Add(rotation.RotateOffset(off, rot)),
			Desc: rotation.RotateDescriptor(d, rot),
		})
	}
	return out
}

type PasteOptions struct {
	Angle      float64
	Budget     int
	Shapes     materialize.ShapeClassifier
	Label      string
	OnComplete func(materialize.Result)
}

// Paste submits the unrotated schematic at anchor. The returned positions
// are the targets that will be written; the writes themselves happen later
// on the dispatcher's tick goroutine.
func (s *Schematic) Paste(sub materialize.Submitter, anchor voxel.Vec3i) ([]voxel.Vec3i, error) {
	_, pos, err := s.PasteWith(sub, anchor, PasteOptions{})
	return pos, err
}

func (s *Schematic) PasteRotated(sub materialize.Submitter, anchor voxel.Vec3i, angle float64) ([]voxel.Vec3i, error) {
	_, pos, err := s.PasteWith(sub, anchor, PasteOptions{Angle: angle})
	return pos, err
}

// PasteWith is Paste with a job handle for waiting or cancellation.
func (s *Schematic) PasteWith(sub materialize.Submitter, anchor voxel.Vec3i, opts PasteOptions) (*materialize.Pipeline, []voxel.Vec3i, error) {
	writes := s.Plan(anchor, opts.Angle)
	pos := make([]voxel.Vec3i, len(writes))
	for i, w := range writes {
		pos[i] = w.Pos
	}
	label := opts.Label
	if label == "" && s.path != "" {
		label = filepath.Base(s.path)
	}
	p := materialize.New(writes, materialize.Options{
		Budget:     opts.Budget,
		Shapes:     opts.Shapes,
		Label:      label,
		OnComplete: opts.OnComplete,
	})
	if err := sub.Submit(p); err != nil {
		return nil, nil, err
	}
	return p, pos, nil
}

// Placed counts how many known entries are present at their pasted position
// with the expected type. States are not compared; connectivity may differ.
func (s *Schematic) Placed(r world.BlockReader, anchor voxel.Vec3i, angle float64) (correct, total int) {
	for _, w := range s.Plan(anchor, angle) {
		total++
		if r.BlockAt(w.Pos).Type == w.Desc.Type {
			correct++
		}
	}
	return correct, total
}
