package simulator

import (
	"path/filepath"
	"testing"

	"github.com/maloquacious/navstore/internal/logger"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const home = "/home/pilot"

func storeName(t Type) string {
	return filepath.Join("/db", "little_navmap_"+t.ShortName()+".sqlite")
}

func newTestRegistry(t *testing.T, fs afero.Fs) *Registry {
	t.Helper()
	return NewRegistry(fs, logger.Discard, DefaultLocations(home))
}

func TestFillDefault(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(filepath.Join(home, "X-Plane 12"), 0755))
	require.NoError(t, fs.MkdirAll(filepath.Join(home, "Lockheed Martin", "Prepar3D v4"), 0755))

	r := newTestRegistry(t, fs)
	r.FillDefault()

	assert.Equal(t, []Type{XPlane12, P3DV4}, r.Installed())
	e := r.Entry(P3DV4)
	assert.Equal(t, filepath.Join(home, "Lockheed Martin", "Prepar3D v4"), e.BasePath)
	assert.Contains(t, e.SceneryConfigPath, "scenery.cfg")
	assert.False(t, r.Entry(MSFS).Installed)
}

func TestFillDefaultKeepsUserPaths(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/games/xp11", 0755))

	r := newTestRegistry(t, fs)
	r.SetPaths(XPlane11, Paths{BasePath: "/games/xp11"})
	r.FillDefault()

	assert.True(t, r.Entry(XPlane11).Installed)
	assert.Equal(t, "/games/xp11", r.Entry(XPlane11).BasePath)
}

func TestRefreshDatabaseFlags(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := newTestRegistry(t, fs)

	require.NoError(t, afero.WriteFile(fs, storeName(MSFS), nil, 0644))
	require.NoError(t, afero.WriteFile(fs, storeName(Navigraph), nil, 0644))

	r.RefreshDatabaseFlags(storeName)
	first := map[Type]bool{}
	for _, typ := range All {
		first[typ] = r.Entry(typ).HasDatabase
		exists, _ := afero.Exists(fs, storeName(typ))
		assert.Equal(t, exists, first[typ], typ.ShortName())
	}

	r.RefreshDatabaseFlags(storeName)
	for _, typ := range All {
		assert.Equal(t, first[typ], r.Entry(typ).HasDatabase, "idempotent for %s", typ.ShortName())
	}

	require.NoError(t, fs.Remove(storeName(MSFS)))
	r.RefreshDatabaseFlags(storeName)
	assert.False(t, r.Entry(MSFS).HasDatabase, "no state carried over")
	assert.Equal(t, []Type(nil), r.HavingDatabase())
}

func TestBest(t *testing.T) {
	tests := []struct {
		name      string
		installed []Type
		databases []Type
		want      Type
	}{
		{name: "nothing", want: None},
		{name: "navigraph only is not a simulator", databases: []Type{Navigraph}, want: None},
		{name: "install only", installed: []Type{FSX}, want: FSX},
		{name: "database beats install", installed: []Type{MSFS}, databases: []Type{P3DV5}, want: P3DV5},
		{name: "both beats database", installed: []Type{FSX, XPlane11}, databases: []Type{MSFS, XPlane11}, want: XPlane11},
		{name: "preference order", installed: []Type{FSX, MSFS}, databases: []Type{FSX, MSFS}, want: MSFS},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(t, afero.NewMemMapFs())
			for _, typ := range tt.installed {
				r.entries[typ].Installed = true
			}
			for _, typ := range tt.databases {
				r.entries[typ].HasDatabase = true
			}
			assert.Equal(t, tt.want, r.Best())
		})
	}
}

func TestBestInstalled(t *testing.T) {
	r := newTestRegistry(t, afero.NewMemMapFs())
	assert.Equal(t, None, r.BestInstalled())

	r.entries[FSX].Installed = true
	r.entries[XPlane11].Installed = true
	assert.Equal(t, XPlane11, r.BestInstalled())
	assert.Equal(t, FSX, r.BestInstalled(FSX, XPlane11))
	assert.Equal(t, None, r.BestInstalled(MSFS, P3DV5))
}

func TestSnapshotRestore(t *testing.T) {
	r := newTestRegistry(t, afero.NewMemMapFs())
	r.SetPaths(MSFS, Paths{BasePath: "/msfs", SceneryConfigPath: ""})
	r.SetPaths(P3DV5, Paths{BasePath: "/p3d", SceneryConfigPath: "/p3d/scenery.cfg"})

	snap := r.Snapshot()
	snap["BOGUS"] = Paths{BasePath: "/nope"}

	other := newTestRegistry(t, afero.NewMemMapFs())
	other.Restore(snap)
	assert.Equal(t, "/msfs", other.Entry(MSFS).BasePath)
	assert.Equal(t, "/p3d/scenery.cfg", other.Entry(P3DV5).SceneryConfigPath)
}

func TestShortNames(t *testing.T) {
	for _, typ := range append(All, None) {
		assert.Equal(t, typ, ParseShortName(typ.ShortName()))
	}
	assert.Equal(t, None, ParseShortName("fs9"))
	assert.Equal(t, MSFS, ParseShortName(" msfs "))
}
