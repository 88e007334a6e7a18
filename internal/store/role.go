package store

// Role is a stable logical name query layers bind to,
// independent of the file currently backing it.
type Role int

const (
	Primary Role = iota
	Supplemental
	PrimaryAirspace
	SupplementalAirspace
	User
	Track
	Logbook
	Online
	UserAirspace
)

var roleNames = [...]string{
	Primary:              "primary",
	Supplemental:         "supplemental",
	PrimaryAirspace:      "primary-airspace",
	SupplementalAirspace: "supplemental-airspace",
	User:                 "user",
	Track:                "track",
	Logbook:              "logbook",
	Online:               "online",
	UserAirspace:         "user-airspace",
}

func (r Role) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return "unknown"
	}
	return roleNames[r]
}

// Bulk reports whether the role is backed by a bulk-loaded, read-mostly store.
func (r Role) Bulk() bool {
	switch r {
	case Primary, Supplemental, PrimaryAirspace, SupplementalAirspace:
		return true
	}
	return false
}

// BulkRoles are swapped together on blend, simulator and rebuild changes.
var BulkRoles = []Role{Primary, Supplemental, PrimaryAirspace, SupplementalAirspace}

// InteractiveRoles are opened once at startup and closed independently.
var InteractiveRoles = []Role{User, Track, Logbook, Online, UserAirspace}
