package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"voxelschem.ai/internal/sim/voxel"
)

// Decode reads a schematic stream. Records whose type is empty, malformed or
// not known to res become Unknown entries instead of failing the read. A nil
// res accepts every non-empty type.
func Decode(r io.Reader, res TypeResolver) (Decoded, error) {
	var out Decoded

	br := bufio.NewReaderSize(r, 64*1024)
	head, err := br.Peek(len(zstdMagic))
	if err != nil {
		return out, ioErr("read", truncated(err))
	}
	if bytes.Equal(head, zstdMagic) {
		zr, err := zstd.NewReader(br)
		if err != nil {
			return out, ioErr("read", err)
		}
		defer zr.Close()
		br = bufio.NewReaderSize(zr, 64*1024)
	}

	d := &decoder{r: br}
	version := d.int()
	if d.err != nil {
		return out, ioErr("read", d.err)
	}
	if version < VersionLegacy || version > VersionCurrent {
		return out, &FormatError{Version: version, Msg: fmt.Sprintf("unsupported version, reader supports %d..%d", VersionLegacy, VersionCurrent)}
	}
	out.Version = version

	count := d.int()
	if d.err != nil {
		return out, ioErr("read", d.err)
	}
	if count < 0 {
		return out, &FormatError{Version: version, Msg: fmt.Sprintf("negative record count %d", count)}
	}
	// Counts come from the file; never size allocations from them directly.
	out.Records = make([]Record, 0, min(count, maxRecordHint))

	for i := 0; i < count; i++ {
		rec, err := d.record(version, res)
		if err != nil {
			var fe *FormatError
			if errors.As(err, &fe) {
				return out, err
			}
			return out, ioErr("read", fmt.Errorf("record %d of %d: %w", i, count, err))
		}
		if !rec.Entry.IsKnown() {
			out.Unknown++
		}
		out.Records = append(out.Records, rec)
	}
	return out, nil
}

const (
	maxRecordHint = 1 << 16
	maxStateHint  = 16
)

type decoder struct {
	r   *bufio.Reader
	tmp [4]byte
	err error
}

func truncated(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

func (d *decoder) int() int {
	if d.err != nil {
		return 0
	}
	if _, err := io.ReadFull(d.r, d.tmp[:]); err != nil {
		d.err = truncated(err)
		return 0
	}
	return int(int32(binary.BigEndian.Uint32(d.tmp[:])))
}

func (d *decoder) str() string {
	if d.err != nil {
		return ""
	}
	if _, err := io.ReadFull(d.r, d.tmp[:2]); err != nil {
		d.err = truncated(err)
		return ""
	}
	n := int(binary.BigEndian.Uint16(d.tmp[:2]))
	if n == 0 {
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		d.err = truncated(err)
		return ""
	}
	return string(buf)
}

func (d *decoder) record(version int, res TypeResolver) (Record, error) {
	var rec Record
	rec.Offset = voxel.Vec3i{X: d.int(), Y: d.int(), Z: d.int()}

	var desc voxel.Descriptor
	parsed := true
	if version == VersionLegacy {
		data := d.str()
		if d.err != nil {
			return rec, d.err
		}
		if data != "" {
			p, err := voxel.Parse(data)
			if err != nil {
				parsed = false
			} else {
				desc = p
			}
		}
	} else {
		desc.Type = d.str()
		n := d.int()
		if d.err != nil {
			return rec, d.err
		}
		if n < 0 {
			return rec, &FormatError{Version: version, Msg: fmt.Sprintf("negative state count %d", n)}
		}
		for j := 0; j < n; j++ {
			k := d.str()
			v := d.str()
			if d.err != nil {
				return rec, d.err
			}
			if desc.States == nil {
				desc.States = make(map[string]string, min(n, maxStateHint))
			}
			desc.States[k] = v
		}
	}
	if d.err != nil {
		return rec, d.err
	}

	switch {
	case !parsed || desc.Type == "":
		rec.Entry = voxel.Unknown(desc)
	case res != nil && !res.KnownType(desc.Type):
		rec.Entry = voxel.Unknown(desc)
	default:
		rec.Entry = voxel.Known(desc)
	}
	return rec, nil
}
