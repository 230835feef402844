// Package codec reads and writes the binary schematic format.
//
// All integers are big-endian int32. Strings are a big-endian uint16 byte
// length followed by that many UTF-8 bytes.
//
//	file    = version:int32 count:int32 record*
//	v2 rec  = x:int32 y:int32 z:int32 type:str n:int32 (key:str value:str)*n
//	v1 rec  = x:int32 y:int32 z:int32 data:str      (data = "type[k=v,...]")
//
// The stream may be wrapped in a single zstd frame; Decode detects it.
// An empty type string is reserved for blocks whose type was already
// unknown when the file was written and always decodes as Unknown.
package codec

import "voxelschem.ai/internal/sim/voxel"

const (
	// VersionLegacy stores each block as one data string.
	VersionLegacy = 1
	// VersionCurrent stores the type and each state pair separately.
	VersionCurrent = 2

	maxString = 0xFFFF
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// TypeResolver reports whether the running engine knows a block type.
type TypeResolver interface {
	KnownType(id string) bool
}

// Record is one stored block; Offset is relative to the min corner.
type Record struct {
	Offset voxel.Vec3i
	Entry  voxel.Entry
}

// Decoded is the result of reading one stream.
type Decoded struct {
	Version int
	Records []Record
	// Unknown counts records whose type did not resolve.
	Unknown int
}
