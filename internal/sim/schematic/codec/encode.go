package codec

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"
)

type Options struct {
	// Compress wraps the stream in a zstd frame.
	Compress bool
	Level    zstd.EncoderLevel
}

// Encode writes recs in order using the current format version.
func Encode(w io.Writer, recs []Record, opts Options) error {
	return encode(w, recs, opts, VersionCurrent)
}

func encode(w io.Writer, recs []Record, opts Options, version int) error {
	if len(recs) > math.MaxInt32 {
		return &FormatError{Msg: fmt.Sprintf("too many records: %d", len(recs))}
	}
	var zw *zstd.Encoder
	if opts.Compress {
		level := opts.Level
		if level == 0 {
			level = zstd.SpeedDefault
		}
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(level))
		if err != nil {
			return ioErr("write", err)
		}
		zw = enc
		w = enc
	}
	bw := bufio.NewWriterSize(w, 64*1024)
	e := &encoder{w: bw}

	e.int(version)
	e.int(len(recs))
	for i, r := range recs {
		if err := e.record(r, version); err != nil {
			if zw != nil {
				_ = zw.Close()
			}
			return fmt.Errorf("record %d: %w", i, err)
		}
		if e.err != nil {
			break
		}
	}
	if e.err != nil {
		if zw != nil {
			_ = zw.Close()
		}
		return ioErr("write", e.err)
	}
	if err := bw.Flush(); err != nil {
		return ioErr("write", err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return ioErr("write", err)
		}
	}
	return nil
}

type encoder struct {
	w   *bufio.Writer
	tmp [4]byte
	err error
}

func (e *encoder) int(v int) {
	if e.err != nil {
		return
	}
	binary.BigEndian.PutUint32(e.tmp[:], uint32(int32(v)))
	_, e.err = e.w.Write(e.tmp[:])
}

func (e *encoder) str(s string) {
	if e.err != nil {
		return
	}
	binary.BigEndian.PutUint16(e.tmp[:2], uint16(len(s)))
	if _, e.err = e.w.Write(e.tmp[:2]); e.err != nil {
		return
	}
	_, e.err = e.w.WriteString(s)
}

func checkInt32(v int) error {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return &FormatError{Msg: fmt.Sprintf("coordinate %d out of int32 range", v)}
	}
	return nil
}

func checkString(s string) error {
	if len(s) > maxString {
		return &FormatError{Msg: fmt.Sprintf("string of %d bytes exceeds %d", len(s), maxString)}
	}
	return nil
}

func (e *encoder) record(r Record, version int) error {
	for _, c := range [3]int{r.Offset.X, r.Offset.Y, r.Offset.Z} {
		if err := checkInt32(c); err != nil {
			return err
		}
	}
	d, known := r.Entry.Descriptor()
	if !known {
		d = r.Entry.Raw()
	} else if d.Type == "" {
		return &FormatError{Msg: "known block with empty type"}
	}
	if err := checkString(d.Type); err != nil {
		return err
	}
	keys := d.StateKeys()
	for _, k := range keys {
		if err := checkString(k); err != nil {
			return err
		}
		if err := checkString(d.States[k]); err != nil {
			return err
		}
	}

	e.int(r.Offset.X)
	e.int(r.Offset.Y)
	e.int(r.Offset.Z)
	if version == VersionLegacy {
		data := ""
		if d.Type != "" {
			data = d.Key()
		}
		if err := checkString(data); err != nil {
			return err
		}
		e.str(data)
		return nil
	}
	e.str(d.Type)
	e.int(len(keys))
	for _, k := range keys {
		e.str(k)
		e.str(d.States[k])
	}
	return nil
}
