// Package audit checks at startup that every store file can be read by this
// build and erases the ones that cannot, after confirmation.
package audit

import (
	"fmt"
	"os"

	"github.com/maloquacious/navstore/internal/logger"
	"github.com/maloquacious/navstore/internal/metrics"
	"github.com/maloquacious/navstore/internal/simulator"
	"github.com/maloquacious/navstore/internal/store"
	"github.com/maloquacious/navstore/internal/store/sqlite"
	"github.com/maloquacious/semver"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// ErrDeclined is returned when the user refused to erase incompatible stores.
var ErrDeclined = errors.New("erasing incompatible stores declined")

// Incompatible is a store whose schema version is outside the supported range.
type Incompatible struct {
	Type simulator.Type
	Path string
	Meta sqlite.Meta
}

func (i Incompatible) String() string {
	return fmt.Sprintf("%s: %s (schema %d.%d.%d)", i.Type, i.Path,
		i.Meta.SchemaVersion.Major, i.Meta.SchemaVersion.Minor, i.Meta.SchemaVersion.Patch)
}

// ScanResult lists what a scan found.
type ScanResult struct {
	Incompatible []Incompatible
	// Initialized are schema-absent stores which received an empty schema.
	Initialized []string
}

// ConfirmFunc decides whether the listed stores may be erased.
type ConfirmFunc func(incompatible []Incompatible) bool

// Auditor scans store files. It never prompts on its own.
type Auditor struct {
	fs         afero.Fs
	log        logger.Logger
	appVersion semver.Version
	cacheKb    int
	supported  sqlite.VersionRange
}

func New(fs afero.Fs, log logger.Logger, appVersion semver.Version, cacheKb int) *Auditor {
	if log == nil {
		log = logger.Discard
	}
	return &Auditor{
		fs:         fs,
		log:        log.With(logger.Fields{"component": "audit"}),
		appVersion: appVersion,
		cacheKb:    cacheKb,
		supported:  sqlite.Supported,
	}
}

func (a *Auditor) options(schema sqlite.SchemaKind) sqlite.Options {
	return sqlite.Options{Profile: sqlite.Bulk, Schema: schema, AppVersion: a.appVersion, CacheKb: a.cacheKb}
}

// Scan opens the store of every type whose file exists. Stores without a
// schema are initialized in place, stores with an unsupported schema version
// are reported and left alone.
func (a *Auditor) Scan(types []simulator.Type, fileName func(simulator.Type) string) (ScanResult, error) {
	var result ScanResult
	for _, t := range types {
		path := fileName(t)
		exists, err := store.CheckExists(a.fs, path)
		if err != nil {
			return result, err
		}
		if !exists {
			continue
		}

		h, err := sqlite.Open(a.fs, a.log, path, a.options(sqlite.SchemaNone))
		if err != nil {
			return result, errors.WithMessagef(err, "cannot check store %s", path)
		}
		m, err := h.Meta()
		switch {
		case errors.Is(err, sqlite.ErrNoSchema):
			a.log.Info("%s has no schema, creating it", path)
			err = sqlite.InitSchema(h.DB(), a.appVersion)
			if err == nil {
				result.Initialized = append(result.Initialized, path)
			}
		case err != nil:
		case !a.supported.Contains(m.SchemaVersion):
			a.log.Warn("%s has incompatible schema %d.%d.%d", path,
				m.SchemaVersion.Major, m.SchemaVersion.Minor, m.SchemaVersion.Patch)
			result.Incompatible = append(result.Incompatible, Incompatible{Type: t, Path: path, Meta: m})
		}
		if cerr := h.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return result, errors.WithMessagef(err, "cannot check store %s", path)
		}
	}
	metrics.IncompatibleStores.Set(float64(len(result.Incompatible)))
	return result, nil
}

// Erase deletes every listed store and creates an empty schema in its place.
func (a *Auditor) Erase(list []Incompatible) error {
	for _, inc := range list {
		if err := a.recreate(inc.Path); err != nil {
			return err
		}
	}
	return nil
}

func (a *Auditor) recreate(path string) error {
	if err := a.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		metrics.FileErrorsTotal.WithLabelValues("remove").Inc()
		return &store.FileError{Op: "remove", Path: path, Err: err}
	}
	if err := a.fs.Remove(store.JournalPath(path)); err != nil && !os.IsNotExist(err) {
		a.log.Warn("cannot remove journal of %s: %v", path, err)
	}
	a.log.Info("removed %s", path)

	h, err := sqlite.Open(a.fs, a.log, path, a.options(sqlite.SchemaNav))
	if err != nil {
		return errors.WithMessagef(err, "cannot create empty store %s", path)
	}
	return h.Close()
}

// Run scans, asks confirm about incompatible stores and erases them.
// It returns ErrDeclined if confirm refuses.
func (a *Auditor) Run(types []simulator.Type, fileName func(simulator.Type) string, confirm ConfirmFunc) (ScanResult, error) {
	result, err := a.Scan(types, fileName)
	if err != nil || len(result.Incompatible) == 0 {
		return result, err
	}
	if confirm == nil || !confirm(result.Incompatible) {
		return result, ErrDeclined
	}
	if err := a.Erase(result.Incompatible); err != nil {
		return result, err
	}
	metrics.IncompatibleStores.Set(0)
	return result, nil
}

// EnsurePlaceholder makes sure the store used when no simulator is selected
// exists with a supported empty schema. It holds no data and is recreated
// without asking.
func (a *Auditor) EnsurePlaceholder(path string) error {
	if store.Exists(a.fs, path) {
		m, err := sqlite.MetaFromFile(a.fs, a.log, path)
		if err == nil && a.supported.Contains(m.SchemaVersion) {
			return nil
		}
		a.log.Info("recreating placeholder %s", path)
		return a.recreate(path)
	}
	h, err := sqlite.Open(a.fs, a.log, path, a.options(sqlite.SchemaNav))
	if err != nil {
		return errors.WithMessagef(err, "cannot create placeholder store %s", path)
	}
	return h.Close()
}
