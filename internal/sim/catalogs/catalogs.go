package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"voxelschem.ai/internal/sim/engineversion"
)

type BlockCatalog struct {
	Palette []string
	Defs    map[string]BlockDef
	Digest  string
}

type BlockDef struct {
	ID             string `json:"id"`
	Air            bool   `json:"air,omitempty"`
	ShapeSensitive bool   `json:"shape_sensitive,omitempty"`
	// Since is the first engine version that has this type ("1.20.5").
	Since string `json:"since,omitempty"`

	since engineversion.Version
}

const blocksSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id"],
    "additionalProperties": false,
    "properties": {
      "id": {"type": "string", "minLength": 1, "pattern": "^[a-z0-9_:./-]+$"},
      "air": {"type": "boolean"},
      "shape_sensitive": {"type": "boolean"},
      "since": {"type": "string", "pattern": "^1\\.[0-9]+(\\.[0-9]+)?$"}
    }
  }
}`

var compiledBlocksSchema = jsonschema.MustCompileString("blocks.schema.json", blocksSchema)

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// LoadBlocks reads and validates a blocks.json catalog.
func LoadBlocks(path string) (*BlockCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := ParseBlocks(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func ParseBlocks(raw []byte) (*BlockCatalog, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("blocks.json: %w", err)
	}
	if err := compiledBlocksSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("blocks.json: %w", err)
	}
	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("blocks.json: %w", err)
	}

	out := &BlockCatalog{Defs: map[string]BlockDef{}, Digest: sha256Hex(raw)}
	for _, d := range defs {
		d.ID = normalizeID(d.ID)
		if _, dup := out.Defs[d.ID]; dup {
			return nil, fmt.Errorf("blocks.json: duplicate id %q", d.ID)
		}
		if d.Since != "" {
			v, err := engineversion.Parse(d.Since)
			if err != nil {
				return nil, fmt.Errorf("blocks.json: %s: %w", d.ID, err)
			}
			d.since = v
		}
		out.Defs[d.ID] = d
	}
	if _, ok := out.Defs["air"]; !ok {
		return nil, fmt.Errorf("blocks.json: missing air")
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	return out, nil
}

// normalizeID strips the default namespace so "minecraft:stone" and "stone"
// name the same type.
func normalizeID(id string) string {
	return strings.TrimPrefix(strings.TrimSpace(id), "minecraft:")
}

// View answers type questions for one running engine version. Types
// introduced after that version are unknown.
type View struct {
	cat     *BlockCatalog
	version engineversion.Version
}

func (c *BlockCatalog) ForVersion(v engineversion.Version) *View {
	return &View{cat: c, version: v}
}

func (v *View) Version() engineversion.Version { return v.version }

func (v *View) def(id string) (BlockDef, bool) {
	if v == nil || v.cat == nil {
		return BlockDef{}, false
	}
	d, ok := v.cat.Defs[normalizeID(id)]
	if !ok {
		return BlockDef{}, false
	}
	if d.Since != "" && !v.version.AtLeast(d.since) {
		return BlockDef{}, false
	}
	return d, true
}

func (v *View) KnownType(id string) bool {
	_, ok := v.def(id)
	return ok
}

func (v *View) IsAir(id string) bool {
	d, ok := v.def(id)
	return ok && d.Air
}

func (v *View) ShapeSensitive(id string) bool {
	d, ok := v.def(id)
	return ok && d.ShapeSensitive
}
