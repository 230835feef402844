package worldstore

import (
	"path/filepath"
	"testing"

	"voxelschem.ai/internal/sim/voxel"
)

type fences struct{}

func (fences) IsAir(id string) bool          { return id == "cave_air" }
func (fences) ShapeSensitive(id string) bool { return id == "oak_fence" }

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.sqlite")
	s, err := Open(path, fences{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.SetBlock(voxel.Vec3i{X: 1}, voxel.NewDescriptor("stone"), true)
	s.SetBlock(voxel.Vec3i{X: 2}, voxel.NewDescriptor("oak_fence"), true)
	s.SetBlock(voxel.Vec3i{X: 3}, voxel.NewDescriptor("dirt"), true)
	if err := s.EndTick(); err != nil {
		t.Fatalf("end tick: %v", err)
	}
	s.SetBlock(voxel.Vec3i{X: 3}, voxel.NewDescriptor("cave_air"), true)
	if err := s.EndTick(); err != nil {
		t.Fatalf("end tick: %v", err)
	}
	if err := s.EndTick(); err != nil {
		t.Fatalf("empty tick: %v", err)
	}
	if n, err := s.Ticks(); err != nil || n != 2 {
		t.Fatalf("ticks=%d err=%v", n, err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := Open(path, fences{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if s2.Len() != 2 {
		t.Fatalf("len=%d", s2.Len())
	}
	fence := s2.BlockAt(voxel.Vec3i{X: 2})
	if fence.Type != "oak_fence" || fence.States["west"] != "true" || fence.States["east"] != "false" {
		t.Fatalf("fence=%s", fence)
	}
	if got := s2.BlockAt(voxel.Vec3i{X: 3}); !s2.IsAirLike(got) {
		t.Fatalf("removed block came back: %s", got)
	}
}

func TestStore_CloseFlushesPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w.sqlite")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.SetBlock(voxel.Vec3i{Y: 64}, voxel.NewDescriptor("oak_stairs", "facing", "east"), false)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	s2, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if got := s2.BlockAt(voxel.Vec3i{Y: 64}); got.States["facing"] != "east" {
		t.Fatalf("got %s", got)
	}
}
