// Package simulator knows the supported flight simulators, where they are
// usually installed, and which of them have a scenery store.
package simulator

import "strings"

// Type identifies a simulator or a navigation data source.
type Type int

// The numbering is persisted in old settings files and must stay stable.
const (
	None Type = iota - 1
	FSX
	FSXSE
	P3DV3
	P3DV4
	XPlane11
	// Navigraph is the supplemental navigation data source, not a simulator.
	Navigraph
	P3DV5
	MSFS
	XPlane12
)

var shortNames = map[Type]string{
	None:      "NONE",
	FSX:       "FSX",
	FSXSE:     "FSXSE",
	P3DV3:     "P3DV3",
	P3DV4:     "P3DV4",
	P3DV5:     "P3DV5",
	XPlane11:  "XP11",
	XPlane12:  "XP12",
	MSFS:      "MSFS",
	Navigraph: "NAVIGRAPH",
}

var names = map[Type]string{
	None:      "None",
	FSX:       "Microsoft Flight Simulator X",
	FSXSE:     "Microsoft Flight Simulator - Steam Edition",
	P3DV3:     "Prepar3D v3",
	P3DV4:     "Prepar3D v4",
	P3DV5:     "Prepar3D v5",
	XPlane11:  "X-Plane 11",
	XPlane12:  "X-Plane 12",
	MSFS:      "Microsoft Flight Simulator 2020",
	Navigraph: "Navigraph",
}

// Simulators lists real simulators in descending preference.
var Simulators = []Type{MSFS, XPlane12, XPlane11, P3DV5, P3DV4, P3DV3, FSXSE, FSX}

// All lists every type that can own a store file, including Navigraph.
var All = append(append([]Type{}, Simulators...), Navigraph)

// ShortName is used in store file names and settings.
func (t Type) ShortName() string {
	if s, ok := shortNames[t]; ok {
		return s
	}
	return shortNames[None]
}

func (t Type) String() string {
	if s, ok := names[t]; ok {
		return s
	}
	return names[None]
}

// ParseShortName is the inverse of ShortName. Unknown names map to None.
func ParseShortName(s string) Type {
	s = strings.ToUpper(strings.TrimSpace(s))
	for t, n := range shortNames {
		if n == s {
			return t
		}
	}
	return None
}

// IsXPlane reports whether the type reads scenery_packs.ini below its base path.
func (t Type) IsXPlane() bool { return t == XPlane11 || t == XPlane12 }

// UsesSceneryConfig reports whether loading requires a scenery.cfg file.
func (t Type) UsesSceneryConfig() bool {
	switch t {
	case FSX, FSXSE, P3DV3, P3DV4, P3DV5:
		return true
	}
	return false
}
