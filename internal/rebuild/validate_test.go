package rebuild

import (
	"testing"

	"github.com/maloquacious/navstore/internal/simulator"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/sim/p3d", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/sim/p3d/scenery.cfg", []byte("[Area.001]"), 0o644))
	require.NoError(t, fs.MkdirAll("/sim/xp12/Custom Scenery", 0o755))
	require.NoError(t, fs.MkdirAll("/sim/xp11", 0o755))
	require.NoError(t, afero.WriteFile(fs, SceneryPacksPath("/sim/xp12"), []byte("I\n"), 0o644))

	tests := []struct {
		name  string
		opts  Options
		valid bool
	}{
		{"no base path", Options{Simulator: simulator.MSFS}, false},
		{"missing base path", Options{Simulator: simulator.MSFS, BasePath: "/nope"}, false},
		{"msfs", Options{Simulator: simulator.MSFS, BasePath: "/sim/p3d"}, true},
		{"p3d with config", Options{Simulator: simulator.P3DV5, BasePath: "/sim/p3d", SceneryConfigPath: "/sim/p3d/scenery.cfg"}, true},
		{"p3d without config", Options{Simulator: simulator.P3DV5, BasePath: "/sim/p3d", SceneryConfigPath: "/sim/p3d/missing.cfg"}, false},
		{"xplane with packs", Options{Simulator: simulator.XPlane12, BasePath: "/sim/xp12"}, true},
		{"xplane without packs", Options{Simulator: simulator.XPlane11, BasePath: "/sim/xp11"}, false},
		{"xplane inactive", Options{Simulator: simulator.XPlane11, BasePath: "/sim/xp11", ReadInactive: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(fs, tt.opts)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
			}
		})
	}
}
