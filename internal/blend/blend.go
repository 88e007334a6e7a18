// Package blend decides which store files back the primary and supplemental
// roles for a simulator selection and blend mode.
package blend

import "github.com/maloquacious/navstore/internal/simulator"

// Mode selects where navigation data comes from.
// Values are persisted as integers.
type Mode int

const (
	// UseSupplementalForAll reads everything from the supplemental source.
	UseSupplementalForAll Mode = iota
	// Mixed reads airports from the simulator and navaids from the supplemental source.
	Mixed
	// Off ignores the supplemental source.
	Off
)

// Default is the mode used when nothing is configured.
const Default = Mixed

func (m Mode) String() string {
	switch m {
	case UseSupplementalForAll:
		return "all"
	case Mixed:
		return "mixed"
	case Off:
		return "off"
	}
	return "unknown"
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m >= UseSupplementalForAll && m <= Off }

// ParseMode is the inverse of String.
func ParseMode(s string) (Mode, bool) {
	for _, m := range []Mode{UseSupplementalForAll, Mixed, Off} {
		if m.String() == s {
			return m, true
		}
	}
	return Default, false
}

// Source is the supplemental navigation data source.
const Source = simulator.Navigraph

// Files are the store files backing the four bulk roles.
type Files struct {
	Primary              string
	Supplemental         string
	PrimaryAirspace      string
	SupplementalAirspace string
}

// Resolve maps a selection to store files. It is pure: airspace files never
// depend on mode, and file existence is not checked here.
func Resolve(selected simulator.Type, mode Mode, fileName func(simulator.Type) string) Files {
	native := fileName(selected)
	supplemental := fileName(Source)

	f := Files{
		Primary:              native,
		Supplemental:         supplemental,
		PrimaryAirspace:      native,
		SupplementalAirspace: supplemental,
	}
	switch mode {
	case UseSupplementalForAll:
		f.Primary = supplemental
	case Off:
		f.Supplemental = native
	}
	return f
}
