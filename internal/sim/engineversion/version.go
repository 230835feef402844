// Package engineversion maps a host engine version string onto the set of
// versions this library declares support for.
package engineversion

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnsupported = errors.New("unsupported engine version")

// Version is a 1.<Major>.<Minor> release.
type Version struct {
	Major int
	Minor int
}

var (
	V1_16   = Version{Major: 16}
	V1_17   = Version{Major: 17}
	V1_18   = Version{Major: 18}
	V1_19   = Version{Major: 19}
	V1_20   = Version{Major: 20}
	V1_20_5 = Version{Major: 20, Minor: 5}
	V1_21   = Version{Major: 21}
	V1_22   = Version{Major: 22}
)

// Declared lists supported versions in ascending order.
var Declared = []Version{V1_16, V1_17, V1_18, V1_19, V1_20, V1_20_5, V1_21, V1_22}

func (v Version) String() string {
	if v.Minor == 0 {
		return fmt.Sprintf("1.%d", v.Major)
	}
	return fmt.Sprintf("1.%d.%d", v.Major, v.Minor)
}

func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		if v.Major < o.Major {
			return -1
		}
		return 1
	case v.Minor != o.Minor:
		if v.Minor < o.Minor {
			return -1
		}
		return 1
	}
	return 0
}

// AtLeast reports whether v is o or newer.
func (v Version) AtLeast(o Version) bool { return v.Compare(o) >= 0 }

// Parse reads "1.20.4", "1.20.4-R0.1-SNAPSHOT" or "1.21". A leading "1." is
// required.
func Parse(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '-'); i >= 0 {
		s = s[:i]
	}
	parts := strings.Split(s, ".")
	if len(parts) < 2 || len(parts) > 3 || parts[0] != "1" {
		return Version{}, fmt.Errorf("parse engine version %q: want 1.<major>[.<minor>]", s)
	}
	var v Version
	var err error
	if v.Major, err = strconv.Atoi(parts[1]); err != nil || v.Major < 0 {
		return Version{}, fmt.Errorf("parse engine version %q: bad major", s)
	}
	if len(parts) == 3 {
		if v.Minor, err = strconv.Atoi(parts[2]); err != nil || v.Minor < 0 {
			return Version{}, fmt.Errorf("parse engine version %q: bad minor", s)
		}
	}
	return v, nil
}

// Resolve picks the closest declared version at or above detected.
func Resolve(detected Version) (Version, error) {
	for _, d := range Declared {
		if d.AtLeast(detected) {
			return d, nil
		}
	}
	return Version{}, fmt.Errorf("%w: %s is newer than %s", ErrUnsupported, detected, Declared[len(Declared)-1])
}

// ResolveString is Parse followed by Resolve.
func ResolveString(s string) (Version, error) {
	v, err := Parse(s)
	if err != nil {
		return Version{}, err
	}
	return Resolve(v)
}
