package settings

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paths struct {
	BasePath string `yaml:"basePath"`
}

func TestFileSaveLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	f, err := Load(fs, "/cfg/navstore.yaml")
	require.NoError(t, err)
	assert.Empty(t, f.Keys())

	f.SetString("Database/Simulator", "MSFS")
	f.SetInt("Database/UseNav", 2)
	f.SetBool("Database/LoadInactive", true)
	require.NoError(t, f.Set("Database/Paths", map[string]paths{"XP12": {BasePath: "/xp12"}}))
	require.NoError(t, f.Save())

	exists, err := afero.Exists(fs, "/cfg/navstore.yaml.next")
	require.NoError(t, err)
	assert.False(t, exists)

	g, err := Load(fs, "/cfg/navstore.yaml")
	require.NoError(t, err)
	assert.Equal(t, "MSFS", g.String("Database/Simulator", ""))
	assert.Equal(t, 2, g.Int("Database/UseNav", 1))
	assert.True(t, g.Bool("Database/LoadInactive", false))

	var p map[string]paths
	ok, err := g.Decode("Database/Paths", &p)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/xp12", p["XP12"].BasePath)
}

func TestDefaults(t *testing.T) {
	f, err := Load(afero.NewMemMapFs(), "/none.yaml")
	require.NoError(t, err)

	assert.Equal(t, "x", f.String("missing", "x"))
	assert.Equal(t, 50000, f.Int("missing", 50000))
	assert.True(t, f.Bool("missing", true))

	f.SetString("Database/UseNav", "not a number")
	assert.Equal(t, 1, f.Int("Database/UseNav", 1), "wrong type falls back to default")
}

func TestLoadMalformed(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/bad.yaml", []byte("{ not: [yaml"), 0644))
	_, err := Load(fs, "/bad.yaml")
	assert.Error(t, err)
}
