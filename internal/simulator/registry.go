package simulator

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/maloquacious/navstore/internal/logger"
	"github.com/spf13/afero"
)

// Entry is what is known about one simulator installation.
type Entry struct {
	BasePath          string
	SceneryConfigPath string
	Installed         bool
	HasDatabase       bool
}

// Paths is the persisted part of an Entry.
type Paths struct {
	BasePath          string `yaml:"basePath" json:"basePath"`
	SceneryConfigPath string `yaml:"sceneryConfig" json:"sceneryConfig"`
}

// Location is a well-known install location probed by FillDefault.
type Location struct {
	BasePath          string
	SceneryConfigPath string
}

// Registry tracks known simulator installations. Entries are never removed,
// only flagged.
type Registry struct {
	fs        afero.Fs
	log       logger.Logger
	locations map[Type][]Location
	entries   map[Type]*Entry
}

// NewRegistry creates an empty registry probing the given locations.
func NewRegistry(fs afero.Fs, log logger.Logger, locations map[Type][]Location) *Registry {
	r := &Registry{fs: fs, log: log, locations: locations, entries: map[Type]*Entry{}}
	for _, t := range All {
		r.entries[t] = &Entry{}
	}
	return r
}

// DefaultLocations returns the usual install locations below a home directory.
func DefaultLocations(home string) map[Type][]Location {
	appData := filepath.Join(home, "AppData", "Roaming")
	programData := filepath.Join(home, "ProgramData")
	return map[Type][]Location{
		FSX: {{
			BasePath:          filepath.Join(home, "Microsoft Games", "Microsoft Flight Simulator X"),
			SceneryConfigPath: filepath.Join(programData, "Microsoft", "FSX", "scenery.cfg"),
		}},
		FSXSE: {{
			BasePath:          filepath.Join(home, "Steam", "steamapps", "common", "FSX"),
			SceneryConfigPath: filepath.Join(programData, "Microsoft", "FSX-SE", "scenery.cfg"),
		}},
		P3DV3: {{
			BasePath:          filepath.Join(home, "Lockheed Martin", "Prepar3D v3"),
			SceneryConfigPath: filepath.Join(programData, "Lockheed Martin", "Prepar3D v3", "scenery.cfg"),
		}},
		P3DV4: {{
			BasePath:          filepath.Join(home, "Lockheed Martin", "Prepar3D v4"),
			SceneryConfigPath: filepath.Join(programData, "Lockheed Martin", "Prepar3D v4", "scenery.cfg"),
		}},
		P3DV5: {{
			BasePath:          filepath.Join(home, "Lockheed Martin", "Prepar3D v5"),
			SceneryConfigPath: filepath.Join(programData, "Lockheed Martin", "Prepar3D v5", "scenery.cfg"),
		}},
		XPlane11: {{BasePath: filepath.Join(home, "X-Plane 11")}},
		XPlane12: {{BasePath: filepath.Join(home, "X-Plane 12")}},
		MSFS: {
			{BasePath: filepath.Join(appData, "Microsoft Flight Simulator", "Packages")},
			{BasePath: filepath.Join(home, "AppData", "Local", "Packages", "Microsoft.FlightSimulator_8wekyb3d8bbwe", "LocalCache", "Packages")},
		},
	}
}

// FillDefault probes the well-known locations of every simulator and sets
// Installed. Paths already configured by the user are kept.
func (r *Registry) FillDefault() {
	for _, t := range Simulators {
		e := r.entries[t]
		e.Installed = false

		if e.BasePath != "" && r.isDir(e.BasePath) {
			e.Installed = true
			continue
		}
		for _, loc := range r.locations[t] {
			if !r.isDir(loc.BasePath) {
				continue
			}
			e.Installed = true
			if e.BasePath == "" {
				e.BasePath = loc.BasePath
			}
			if e.SceneryConfigPath == "" {
				e.SceneryConfigPath = loc.SceneryConfigPath
			}
			break
		}
		if e.Installed {
			r.log.Debug("found %s in %s", t.ShortName(), e.BasePath)
		}
	}
}

// RefreshDatabaseFlags sets HasDatabase for every type from the existence of
// its store file. Nothing from earlier calls is carried over.
func (r *Registry) RefreshDatabaseFlags(fileName func(Type) string) {
	for _, t := range All {
		_, err := r.fs.Stat(fileName(t))
		r.entries[t].HasDatabase = err == nil
		if err != nil && !os.IsNotExist(err) {
			r.log.Warn("cannot stat store of %s: %v", t.ShortName(), err)
		}
	}
}

// Entry returns a copy of what is known about t.
func (r *Registry) Entry(t Type) Entry {
	if e, ok := r.entries[t]; ok {
		return *e
	}
	return Entry{}
}

// SetPaths updates user-edited paths of t.
func (r *Registry) SetPaths(t Type, p Paths) {
	e, ok := r.entries[t]
	if !ok {
		return
	}
	e.BasePath, e.SceneryConfigPath = p.BasePath, p.SceneryConfigPath
}

// BestInstalled returns the first installed type of candidates, which are in
// order of preference. With no candidates Simulators is used.
func (r *Registry) BestInstalled(candidates ...Type) Type {
	if len(candidates) == 0 {
		candidates = Simulators
	}
	for _, t := range candidates {
		if e, ok := r.entries[t]; ok && e.Installed {
			return t
		}
	}
	return None
}

// Best prefers a simulator with installation and store, then store only,
// then installation only.
func (r *Registry) Best() Type {
	preds := []func(*Entry) bool{
		func(e *Entry) bool { return e.Installed && e.HasDatabase },
		func(e *Entry) bool { return e.HasDatabase },
		func(e *Entry) bool { return e.Installed },
	}
	for _, pred := range preds {
		for _, t := range Simulators {
			if pred(r.entries[t]) {
				return t
			}
		}
	}
	return None
}

// Installed lists installed simulators in preference order.
func (r *Registry) Installed() []Type {
	return r.filter(func(e *Entry) bool { return e.Installed })
}

// HavingDatabase lists simulators with a store file in preference order.
func (r *Registry) HavingDatabase() []Type {
	return r.filter(func(e *Entry) bool { return e.HasDatabase })
}

func (r *Registry) filter(pred func(*Entry) bool) []Type {
	var out []Type
	for _, t := range Simulators {
		if pred(r.entries[t]) {
			out = append(out, t)
		}
	}
	return out
}

// Snapshot returns the persisted paths keyed by short name.
func (r *Registry) Snapshot() map[string]Paths {
	out := map[string]Paths{}
	for _, t := range Simulators {
		e := r.entries[t]
		out[t.ShortName()] = Paths{BasePath: e.BasePath, SceneryConfigPath: e.SceneryConfigPath}
	}
	return out
}

// Restore loads paths saved by Snapshot. Unknown names are ignored.
func (r *Registry) Restore(snapshot map[string]Paths) {
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if t := ParseShortName(k); t != None {
			r.SetPaths(t, snapshot[k])
		}
	}
}

func (r *Registry) isDir(path string) bool {
	if path == "" {
		return false
	}
	ok, err := afero.DirExists(r.fs, path)
	return err == nil && ok
}
