package dirscan

import (
	"bufio"
	"bytes"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maloquacious/navstore/internal/rebuild"
	"github.com/maloquacious/navstore/internal/simulator"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/ini.v1"
)

// Area is one scenery area in load order.
type Area struct {
	Title  string
	Path   string
	Layer  int
	Active bool
}

// Areas lists the scenery areas of the configured simulator. Inactive areas
// are only returned when opts.ReadInactive is set.
func Areas(fs afero.Fs, opts rebuild.Options) ([]Area, error) {
	var areas []Area
	var err error
	switch {
	case opts.Simulator.UsesSceneryConfig():
		areas, err = sceneryConfigAreas(fs, opts)
	case opts.Simulator.IsXPlane():
		areas, err = sceneryPackAreas(fs, opts)
	case opts.Simulator == simulator.MSFS:
		areas, err = packageAreas(fs, opts.BasePath, "Official", "Community")
	default:
		areas, err = packageAreas(fs, opts.BasePath, ".")
	}
	if err != nil {
		return nil, err
	}

	var result []Area
	for _, a := range areas {
		if !a.Active && !opts.ReadInactive {
			continue
		}
		if excluded(a.Path, opts.DirExcludes) || excluded(a.Path, opts.AddOnDirExcludes) {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

// sceneryConfigAreas reads [Area.NNN] sections of scenery.cfg.
func sceneryConfigAreas(fs afero.Fs, opts rebuild.Options) ([]Area, error) {
	data, err := afero.ReadFile(fs, opts.SceneryConfigPath)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read scenery configuration")
	}
	cfg, err := ini.LoadSources(ini.LoadOptions{Insensitive: true, SkipUnrecognizableLines: true}, data)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse %s", opts.SceneryConfigPath)
	}

	var areas []Area
	for _, sec := range cfg.Sections() {
		if !strings.HasPrefix(sec.Name(), "area.") {
			continue
		}
		local := sec.Key("local").String()
		if local == "" {
			continue
		}
		if !filepath.IsAbs(local) {
			local = filepath.Join(opts.BasePath, local)
		}
		areas = append(areas, Area{
			Title:  sec.Key("title").String(),
			Path:   local,
			Layer:  sec.Key("layer").MustInt(0),
			Active: sec.Key("active").MustBool(true),
		})
	}
	sort.SliceStable(areas, func(i, j int) bool { return areas[i].Layer < areas[j].Layer })
	return areas, nil
}

// sceneryPackAreas reads Custom Scenery entries from scenery_packs.ini. With
// ReadInactive every directory below Custom Scenery is used instead.
func sceneryPackAreas(fs afero.Fs, opts rebuild.Options) ([]Area, error) {
	custom := filepath.Join(opts.BasePath, "Custom Scenery")
	packs := map[string]bool{}
	var order []string

	data, err := afero.ReadFile(fs, rebuild.SceneryPacksPath(opts.BasePath))
	if err != nil && !opts.ReadInactive {
		return nil, errors.Wrap(err, "cannot read scenery packs")
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		active := strings.HasPrefix(line, "SCENERY_PACK ")
		if !active && !strings.HasPrefix(line, "SCENERY_PACK_DISABLED ") {
			continue
		}
		_, dir, _ := strings.Cut(line, " ")
		dir = strings.TrimSuffix(filepath.FromSlash(strings.TrimSpace(dir)), string(filepath.Separator))
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(opts.BasePath, dir)
		}
		packs[dir] = active
		order = append(order, dir)
	}

	var areas []Area
	for i, dir := range order {
		areas = append(areas, Area{Title: filepath.Base(dir), Path: dir, Layer: i, Active: packs[dir]})
	}
	if opts.ReadInactive {
		infos, err := afero.ReadDir(fs, custom)
		if err != nil {
			return nil, errors.Wrap(err, "cannot read custom scenery")
		}
		for _, info := range infos {
			dir := filepath.Join(custom, info.Name())
			if _, ok := packs[dir]; ok || !info.IsDir() {
				continue
			}
			areas = append(areas, Area{Title: info.Name(), Path: dir, Layer: len(areas), Active: false})
		}
	}
	return areas, nil
}

// packageAreas uses every directory below the given roots as an area.
func packageAreas(fs afero.Fs, base string, roots ...string) ([]Area, error) {
	var areas []Area
	for _, root := range roots {
		dir := filepath.Join(base, root)
		ok, err := afero.DirExists(fs, dir)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		infos, err := afero.ReadDir(fs, dir)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot read %s", dir)
		}
		for _, info := range infos {
			if info.IsDir() {
				areas = append(areas, Area{Title: info.Name(), Path: filepath.Join(dir, info.Name()), Layer: len(areas), Active: true})
			}
		}
	}
	return areas, nil
}

// excluded matches path against directory prefixes or base name patterns.
func excluded(path string, patterns []string) bool {
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.HasPrefix(path, filepath.Clean(p)) {
			return true
		}
		if ok, _ := filepath.Match(p, filepath.Base(path)); ok {
			return true
		}
	}
	return false
}
