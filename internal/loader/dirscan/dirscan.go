// Package dirscan is a loader which records the scenery areas and files of a
// simulator installation without decoding them.
package dirscan

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	"github.com/maloquacious/navstore/internal/logger"
	"github.com/maloquacious/navstore/internal/rebuild"
	"github.com/maloquacious/navstore/internal/simulator"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Extensions of scenery files per simulator family.
var (
	bglExtensions = []string{".bgl"}
	xpExtensions  = []string{".dat", ".txt"}
)

// Loader walks the scenery areas and inserts one row per area and file.
type Loader struct {
	fs  afero.Fs
	log logger.Logger
}

var _ rebuild.Loader = (*Loader)(nil)

func New(fs afero.Fs, log logger.Logger) *Loader {
	if log == nil {
		log = logger.Discard
	}
	return &Loader{fs: fs, log: log.With(logger.Fields{"component": "dirscan"})}
}

type areaFiles struct {
	area  Area
	files []string
	err   error
}

// Load implements rebuild.Loader.
func (l *Loader) Load(ctx context.Context, db *sql.DB, opts rebuild.Options, progress rebuild.ProgressFunc) (rebuild.ResultFlags, error) {
	var flags rebuild.ResultFlags
	areas, err := Areas(l.fs, opts)
	if err != nil {
		return flags, &rebuild.LoadErrors{Cause: err}
	}

	exts := bglExtensions
	if opts.Simulator.IsXPlane() {
		exts = xpExtensions
	}
	var scans []areaFiles
	total := 0
	for _, a := range areas {
		files, err := l.files(a.Path, exts, opts.FileExcludes)
		scans = append(scans, areaFiles{area: a, files: files, err: err})
		total += len(files)
	}

	p := rebuild.Progress{FirstCall: true, Total: total}
	if progress(p) {
		return flags | rebuild.Aborted, nil
	}
	p.FirstCall = false

	loadErrs := &rebuild.LoadErrors{}
	for _, scan := range scans {
		if ctx.Err() != nil {
			return flags | rebuild.Aborted, nil
		}
		var areaErrs *rebuild.AreaErrors
		if scan.err != nil {
			areaErrs = loadErrs.AddArea(scan.area.Title, scan.area.Path)
			areaErrs.Messages = append(areaErrs.Messages, scan.err.Error())
			p.Counts.Errors++
		}

		p.NewSceneryArea, p.SceneryTitle, p.SceneryPath = true, scan.area.Title, scan.area.Path
		aborted, err := l.loadArea(ctx, db, scan, &p, progress, func(path string, ferr error) {
			if areaErrs == nil {
				areaErrs = loadErrs.AddArea(scan.area.Title, scan.area.Path)
			}
			areaErrs.Files = append(areaErrs.Files, rebuild.FileError{Path: path, Message: ferr.Error()})
			p.Counts.Errors++
		})
		if err != nil {
			loadErrs.Cause = err
			return flags, loadErrs
		}
		if aborted {
			return flags | rebuild.Aborted, nil
		}
	}

	if supplementalDetected(l.fs, opts) {
		flags |= rebuild.SupplementalDetected
	}

	p.NewSceneryArea, p.NewFile = false, false
	p.NewOther, p.OtherAction = true, "Finishing"
	p.LastCall = true
	progress(p)

	if !loadErrs.Empty() {
		flags |= rebuild.HadErrors
		return flags, loadErrs
	}
	return flags, nil
}

// loadArea writes an area and its files in one transaction.
func (l *Loader) loadArea(ctx context.Context, db *sql.DB, scan areaFiles, p *rebuild.Progress, progress rebuild.ProgressFunc, fileErr func(string, error)) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "cannot begin transaction")
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO scenery_area (title, local_path) VALUES (?, ?)`, scan.area.Title, scan.area.Path)
	if err != nil {
		return false, errors.Wrap(err, "cannot insert scenery area")
	}
	areaID, err := res.LastInsertId()
	if err != nil {
		return false, errors.Wrap(err, "cannot insert scenery area")
	}

	for _, path := range scan.files {
		info, err := l.fs.Stat(path)
		if err != nil {
			fileErr(path, err)
			continue
		}
		if _, err := tx.Exec(`INSERT INTO bgl_file (scenery_area_id, filepath, size, file_modification_time) VALUES (?, ?, ?, ?)`,
			areaID, path, info.Size(), info.ModTime().Unix()); err != nil {
			return false, errors.Wrap(err, "cannot insert file")
		}
		p.Current++
		p.Counts.Files++
		p.NewFile, p.FilePath = true, path
		if progress(*p) {
			return true, nil
		}
		p.NewSceneryArea = false
	}
	return false, errors.Wrap(tx.Commit(), "cannot commit scenery area")
}

func (l *Loader) files(dir string, exts, excludes []string) ([]string, error) {
	var files []string
	err := afero.Walk(l.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if excluded(path, excludes) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		for _, e := range exts {
			if ext == e {
				files = append(files, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return files, errors.Wrapf(err, "cannot read scenery area %s", dir)
	}
	return files, nil
}

// supplementalDetected reports a navdata update installed into the simulator.
func supplementalDetected(fs afero.Fs, opts rebuild.Options) bool {
	switch {
	case opts.Simulator == simulator.MSFS:
		infos, err := afero.ReadDir(fs, filepath.Join(opts.BasePath, "Community"))
		if err != nil {
			return false
		}
		for _, info := range infos {
			if info.IsDir() && strings.HasPrefix(strings.ToLower(info.Name()), "navigraph-navdata") {
				return true
			}
		}
	case opts.Simulator.IsXPlane():
		ok, _ := afero.Exists(fs, filepath.Join(opts.BasePath, "Custom Data", "earth_nav.dat"))
		return ok
	}
	return false
}
