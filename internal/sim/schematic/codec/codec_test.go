package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"voxelschem.ai/internal/sim/voxel"
)

type knownSet map[string]bool

func (k knownSet) KnownType(id string) bool { return k[id] }

func sampleRecords() []Record {
	return []Record{
		{Offset: voxel.Vec3i{X: 0, Y: 0, Z: 0}, Entry: voxel.Known(voxel.NewDescriptor("stone"))},
		{Offset: voxel.Vec3i{X: 1, Y: 0, Z: 0}, Entry: voxel.Known(voxel.NewDescriptor("oak_stairs", "facing", "north", "half", "bottom"))},
		{Offset: voxel.Vec3i{X: 0, Y: 2, Z: 5}, Entry: voxel.Known(voxel.NewDescriptor("oak_fence", "waterlogged", "false"))},
	}
}

func mustEncode(t *testing.T, recs []Record, opts Options) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := Encode(&buf, recs, opts); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func assertSameRecords(t *testing.T, got, want []Record) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("records=%d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Offset != want[i].Offset {
			t.Fatalf("record %d offset=%v want %v", i, got[i].Offset, want[i].Offset)
		}
		if got[i].Entry.String() != want[i].Entry.String() {
			t.Fatalf("record %d entry=%s want %s", i, got[i].Entry, want[i].Entry)
		}
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		raw := mustEncode(t, sampleRecords(), Options{Compress: compress})
		dec, err := Decode(bytes.NewReader(raw), nil)
		if err != nil {
			t.Fatalf("compress=%v decode: %v", compress, err)
		}
		if dec.Version != VersionCurrent || dec.Unknown != 0 {
			t.Fatalf("compress=%v version=%d unknown=%d", compress, dec.Version, dec.Unknown)
		}
		assertSameRecords(t, dec.Records, sampleRecords())
	}
}

func TestEncode_ByteLayout(t *testing.T) {
	raw := mustEncode(t, []Record{
		{Offset: voxel.Vec3i{X: 1, Y: -1, Z: 2}, Entry: voxel.Known(voxel.NewDescriptor("ab", "k", "v"))},
	}, Options{})
	want := []byte{
		0, 0, 0, 2, // version
		0, 0, 0, 1, // count
		0, 0, 0, 1, 0xff, 0xff, 0xff, 0xff, 0, 0, 0, 2,
		0, 2, 'a', 'b',
		0, 0, 0, 1,
		0, 1, 'k', 0, 1, 'v',
	}
	if !bytes.Equal(raw, want) {
		t.Fatalf("bytes=%v\nwant  %v", raw, want)
	}
}

func TestDecode_UnknownTypesDegrade(t *testing.T) {
	recs := append(sampleRecords(), Record{
		Offset: voxel.Vec3i{X: 3},
		Entry:  voxel.Known(voxel.NewDescriptor("copper_bulb", "lit", "true")),
	})
	raw := mustEncode(t, recs, Options{})
	dec, err := Decode(bytes.NewReader(raw), knownSet{"stone": true, "oak_stairs": true, "oak_fence": true})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.Unknown != 1 || len(dec.Records) != 4 {
		t.Fatalf("unknown=%d records=%d", dec.Unknown, len(dec.Records))
	}
	last := dec.Records[3].Entry
	if last.IsKnown() {
		t.Fatalf("expected unknown entry, got %s", last)
	}
	if last.Raw().Key() != "copper_bulb[lit=true]" {
		t.Fatalf("raw=%s", last.Raw().Key())
	}

	// Writing the unknown entry back keeps its raw type for newer readers.
	again := mustEncode(t, dec.Records, Options{})
	dec2, err := Decode(bytes.NewReader(again), nil)
	if err != nil {
		t.Fatalf("decode again: %v", err)
	}
	assertSameRecords(t, dec2.Records, recs)
}

func TestDecode_EmptyTypeIsReservedUnknown(t *testing.T) {
	raw := mustEncode(t, []Record{{Entry: voxel.Unknown(voxel.Descriptor{})}}, Options{})
	dec, err := Decode(bytes.NewReader(raw), nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.Unknown != 1 || dec.Records[0].Entry.IsKnown() {
		t.Fatalf("empty type must decode as unknown")
	}
}

func TestEncode_RejectsKnownEmptyType(t *testing.T) {
	var buf bytes.Buffer
	for _, opts := range []Options{{}, {Compress: true}} {
		buf.Reset()
		err := Encode(&buf, []Record{sampleRecords()[0], {Entry: voxel.Known(voxel.Descriptor{})}}, opts)
		if !errors.Is(err, ErrFormat) {
			t.Fatalf("compress=%v: err=%v want ErrFormat", opts.Compress, err)
		}
	}
}

func TestDecode_Legacy(t *testing.T) {
	var buf bytes.Buffer
	if err := encode(&buf, sampleRecords(), Options{}, VersionLegacy); err != nil {
		t.Fatalf("encode legacy: %v", err)
	}
	dec, err := Decode(&buf, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.Version != VersionLegacy {
		t.Fatalf("version=%d", dec.Version)
	}
	assertSameRecords(t, dec.Records, sampleRecords())
}

func TestDecode_LegacyMalformedDataIsUnknown(t *testing.T) {
	var buf bytes.Buffer
	put := func(v int32) { _ = binary.Write(&buf, binary.BigEndian, v) }
	putStr := func(s string) {
		_ = binary.Write(&buf, binary.BigEndian, uint16(len(s)))
		buf.WriteString(s)
	}
	put(VersionLegacy)
	put(2)
	put(0)
	put(0)
	put(0)
	putStr("stone")
	put(1)
	put(0)
	put(0)
	putStr("stairs[facing")

	dec, err := Decode(&buf, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.Unknown != 1 || !dec.Records[0].Entry.IsKnown() || dec.Records[1].Entry.IsKnown() {
		t.Fatalf("unexpected entries: %v", dec.Records)
	}
}

func TestDecode_StructuralFailures(t *testing.T) {
	valid := mustEncode(t, sampleRecords(), Options{})

	newer := append([]byte(nil), valid...)
	binary.BigEndian.PutUint32(newer[:4], VersionCurrent+1)

	zero := append([]byte(nil), valid...)
	binary.BigEndian.PutUint32(zero[:4], 0)

	negCount := append([]byte(nil), valid...)
	binary.BigEndian.PutUint32(negCount[4:8], 0xffffffff)

	// One record claiming far more state pairs than the stream carries.
	var hugeStates bytes.Buffer
	for _, v := range []uint32{VersionCurrent, 1, 0, 0, 0} {
		_ = binary.Write(&hugeStates, binary.BigEndian, v)
	}
	writeStr := func(s string) {
		_ = binary.Write(&hugeStates, binary.BigEndian, uint16(len(s)))
		hugeStates.WriteString(s)
	}
	writeStr("a")
	_ = binary.Write(&hugeStates, binary.BigEndian, uint32(0x7fffffff))
	writeStr("k")
	writeStr("v")

	cases := []struct {
		name   string
		in     []byte
		format bool
	}{
		{name: "huge state count", in: hugeStates.Bytes()},
		{name: "empty", in: nil},
		{name: "short header", in: valid[:3]},
		{name: "truncated body", in: valid[:len(valid)-3]},
		{name: "missing records", in: valid[:8]},
		{name: "newer version", in: newer, format: true},
		{name: "zero version", in: zero, format: true},
		{name: "negative count", in: negCount, format: true},
	}
	for _, c := range cases {
		_, err := Decode(bytes.NewReader(c.in), nil)
		if err == nil {
			t.Fatalf("%s: expected error", c.name)
		}
		if c.format {
			if !errors.Is(err, ErrFormat) {
				t.Fatalf("%s: err=%v want ErrFormat", c.name, err)
			}
			continue
		}
		var ioe *IOError
		if !errors.As(err, &ioe) {
			t.Fatalf("%s: err=%v want IOError", c.name, err)
		}
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Fatalf("%s: err=%v want ErrUnexpectedEOF", c.name, err)
		}
	}
}
