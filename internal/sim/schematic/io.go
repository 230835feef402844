package schematic

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"voxelschem.ai/internal/sim/schematic/codec"
	"voxelschem.ai/internal/sim/voxel"
	"voxelschem.ai/internal/sim/world"
)

// ReadFrom decodes a schematic stream. res decides which types are known;
// nil accepts every type.
func ReadFrom(r io.Reader, res codec.TypeResolver) (*Schematic, error) {
	dec, err := codec.Decode(r, res)
	if err != nil {
		return nil, err
	}
	s := FromRecords(dec.Records)
	s.version = dec.Version
	return s, nil
}

func readFile(path string, res codec.TypeResolver) (*Schematic, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &codec.IOError{Op: "read", Err: err}
	}
	defer f.Close()
	s, err := ReadFrom(f, res)
	if err != nil {
		return nil, err
	}
	s.path = path
	return s, nil
}

// StartLoad reads path on a background goroutine and returns immediately.
func StartLoad(ctx context.Context, path string, res codec.TypeResolver) *Pending[*Schematic] {
	return start(ctx, func(context.Context) (*Schematic, error) {
		return readFile(path, res)
	})
}

// Load reads path off the calling goroutine and waits for the result.
func Load(ctx context.Context, path string, res codec.TypeResolver) (*Schematic, error) {
	return StartLoad(ctx, path, res).Wait(ctx)
}

// Capture scans the inclusive box between pos1 and pos2 (any corner order),
// skipping air-like blocks. Offsets are relative to the min corner.
func Capture(r world.BlockReader, pos1, pos2 voxel.Vec3i) *Schematic {
	lo, _ := voxel.Bounds(pos1, pos2)
	blocks := world.Region(r, pos1, pos2)
	recs := make([]codec.Record, len(blocks))
	for i, b := range blocks {
		recs[i] = codec.Record{Offset: b.Pos.Sub(lo), Entry: voxel.Known(b.Desc)}
	}
	return FromRecords(recs)
}

type SaveOptions struct {
	// Compress forces a zstd container; paths ending in .zst are always
	// compressed.
	Compress bool
}

// WriteTo encodes s in the current format.
func (s *Schematic) WriteTo(w io.Writer, opts SaveOptions) error {
	return codec.Encode(w, s.Records(), codec.Options{Compress: opts.Compress})
}

// WriteFile writes s to path, creating parent directories. s is not
// modified; Path keeps reporting where s was loaded from.
func (s *Schematic) WriteFile(path string, opts SaveOptions) error {
	if strings.HasSuffix(path, ".zst") {
		opts.Compress = true
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &codec.IOError{Op: "write", Err: err}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return &codec.IOError{Op: "write", Err: err}
	}
	bw := bufio.NewWriterSize(f, 256*1024)
	if err := s.WriteTo(bw, opts); err != nil {
		_ = f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return &codec.IOError{Op: "write", Err: err}
	}
	if err := f.Close(); err != nil {
		return &codec.IOError{Op: "write", Err: err}
	}
	return nil
}

// SaveRegion captures the region and writes it to path. It only reads the
// world.
func SaveRegion(path string, r world.BlockReader, pos1, pos2 voxel.Vec3i, opts SaveOptions) (*Schematic, error) {
	s := Capture(r, pos1, pos2)
	if err := s.WriteFile(path, opts); err != nil {
		return nil, err
	}
	s.path = path
	return s, nil
}

// StartSave runs SaveRegion on a background goroutine. r must be safe for
// reads from that goroutine.
func StartSave(ctx context.Context, path string, r world.BlockReader, pos1, pos2 voxel.Vec3i, opts SaveOptions) *Pending[*Schematic] {
	return start(ctx, func(context.Context) (*Schematic, error) {
		return SaveRegion(path, r, pos1, pos2, opts)
	})
}
