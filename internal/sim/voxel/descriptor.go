package voxel

import (
	"fmt"
	"sort"
	"strings"
)

// Descriptor is a block type plus its state properties (facing, half,
// waterlogged, ...). Two descriptors are equal iff their Key is equal.
type Descriptor struct {
	Type   string
	States map[string]string
}

func NewDescriptor(typeID string, kv ...string) Descriptor {
	d := Descriptor{Type: typeID}
	for i := 0; i+1 < len(kv); i += 2 {
		if d.States == nil {
			d.States = make(map[string]string, len(kv)/2)
		}
		d.States[kv[i]] = kv[i+1]
	}
	return d
}

func (d Descriptor) State(key string) (string, bool) {
	v, ok := d.States[key]
	return v, ok
}

// WithState returns a copy of d with key set to value.
func (d Descriptor) WithState(key, value string) Descriptor {
	out := Descriptor{Type: d.Type, States: make(map[string]string, len(d.States)+1)}
	for k, v := range d.States {
		out.States[k] = v
	}
	out.States[key] = value
	return out
}

// StateKeys returns the state keys in sorted order.
func (d Descriptor) StateKeys() []string {
	keys := make([]string, 0, len(d.States))
	for k := range d.States {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Key renders the canonical data string: type[k1=v1,k2=v2] with sorted keys,
// or just type when there are no states.
func (d Descriptor) Key() string {
	if len(d.States) == 0 {
		return d.Type
	}
	var b strings.Builder
	b.WriteString(d.Type)
	b.WriteByte('[')
	for i, k := range d.StateKeys() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(d.States[k])
	}
	b.WriteByte(']')
	return b.String()
}

func (d Descriptor) String() string { return d.Key() }

func (d Descriptor) Equal(o Descriptor) bool { return d.Key() == o.Key() }

// Parse reads a data string as produced by Key.
func Parse(s string) (Descriptor, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '[')
	if open < 0 {
		if s == "" || strings.ContainsAny(s, "],=") {
			return Descriptor{}, fmt.Errorf("bad block data %q", s)
		}
		return Descriptor{Type: s}, nil
	}
	if open == 0 || !strings.HasSuffix(s, "]") {
		return Descriptor{}, fmt.Errorf("bad block data %q", s)
	}
	d := Descriptor{Type: s[:open]}
	body := s[open+1 : len(s)-1]
	if body == "" {
		return d, nil
	}
	d.States = map[string]string{}
	for _, pair := range strings.Split(body, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return Descriptor{}, fmt.Errorf("bad block state %q in %q", pair, s)
		}
		d.States[k] = strings.TrimSpace(v)
	}
	return d, nil
}
