package rebuild

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid scenery configuration")

// SceneryPacksPath is where X-Plane lists its active scenery.
func SceneryPacksPath(basePath string) string {
	return filepath.Join(basePath, "Custom Scenery", "scenery_packs.ini")
}

// Validate checks base path and scenery configuration before any temp file is created.
func Validate(fs afero.Fs, opts Options) error {
	if opts.BasePath == "" {
		return errors.Wrap(ErrInvalidConfig, "no base path configured")
	}
	if ok, err := afero.DirExists(fs, opts.BasePath); err != nil || !ok {
		return errors.Wrapf(ErrInvalidConfig, "cannot read base path %q", opts.BasePath)
	}

	switch {
	case opts.Simulator.IsXPlane():
		if opts.ReadInactive {
			return nil
		}
		packs := SceneryPacksPath(opts.BasePath)
		if ok, err := afero.Exists(fs, packs); err != nil || !ok {
			return errors.Wrapf(ErrInvalidConfig,
				"cannot read scenery configuration %q: enable reading inactive scenery entries or start X-Plane once to create it", packs)
		}
	case opts.Simulator.UsesSceneryConfig():
		if ok, err := afero.Exists(fs, opts.SceneryConfigPath); opts.SceneryConfigPath == "" || err != nil || !ok {
			return errors.Wrapf(ErrInvalidConfig, "cannot read scenery configuration %q", opts.SceneryConfigPath)
		}
	}
	return nil
}
