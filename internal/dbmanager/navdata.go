package dbmanager

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/maloquacious/navstore/internal/blend"
	"github.com/maloquacious/navstore/internal/logger"
	"github.com/maloquacious/navstore/internal/metrics"
	"github.com/maloquacious/navstore/internal/store"
	"github.com/maloquacious/navstore/internal/store/sqlite"
	"github.com/pkg/errors"
)

// BundledFileName is where a supplemental store shipped with the
// application is looked for.
func (m *Manager) BundledFileName() string {
	return filepath.Join(m.cfg.AppDir, store.DefaultDir, filepath.Base(m.fileName(blend.Source)))
}

// newerThan compares data cycles numerically, then build times.
func newerThan(a, b sqlite.Meta) bool {
	ca, _ := strconv.Atoi(a.DataCycle)
	cb, _ := strconv.Atoi(b.DataCycle)
	if ca != cb {
		return ca > cb
	}
	return a.LastBuildTime.After(b.LastBuildTime)
}

// PrepareNavdata installs the bundled supplemental store if it is newer than
// the one in the store directory, then runs a pending preparation script.
// It must be called while the bulk roles are closed and reports whether the
// bundled store was copied.
func (m *Manager) PrepareNavdata() (bool, error) {
	if m.state != Ready {
		return false, newError(Retryable, "prepare navdata", "", ErrNotReady)
	}
	if open := m.openBulkRoles(); len(open) > 0 {
		return false, newError(Retryable, "prepare navdata", m.handles[open[0]].Path(),
			errors.New("bulk stores must be closed before preparing navdata"))
	}

	bundled, current := m.BundledFileName(), m.fileName(blend.Source)
	bundledMeta, hasBundled := m.metaIfExists(bundled)
	currentMeta, hasCurrent := m.metaIfExists(current)
	needsPreparation := hasCurrent && currentMeta.HasPendingScript
	m.log.Debug("bundled %v %+v, current %v %+v", hasBundled, bundledMeta, hasCurrent, currentMeta)

	copied := false
	if hasBundled && newerThan(bundledMeta, currentMeta) {
		confirmed := !hasCurrent ||
			(m.cfg.Confirmer != nil && m.cfg.Confirmer.ConfirmOverwrite(bundledMeta, currentMeta, bundled, current))
		if confirmed {
			if hasCurrent {
				if err := m.fs.Remove(current); err != nil && !os.IsNotExist(err) {
					metrics.FileErrorsTotal.WithLabelValues("remove").Inc()
					return false, newError(Retryable, "prepare navdata", current,
						&store.FileError{Op: "remove", Path: current, Err: err})
				}
				_ = m.fs.Remove(store.JournalPath(current))
			}
			if err := store.CopyFile(m.fs, bundled, current); err != nil {
				metrics.FileErrorsTotal.WithLabelValues("copy").Inc()
				return false, newError(Retryable, "prepare navdata", current, err)
			}
			m.log.Info("copied %s to %s", bundled, current)
			copied = true
			needsPreparation = bundledMeta.HasPendingScript
		}
	}

	if needsPreparation {
		if err := m.prepare(current); err != nil {
			return copied, newError(Retryable, "prepare navdata", current, err)
		}
	}
	m.registry.RefreshDatabaseFlags(m.fileName)
	return copied, nil
}

func (m *Manager) metaIfExists(path string) (sqlite.Meta, bool) {
	if !store.Exists(m.fs, path) {
		return sqlite.Meta{}, false
	}
	meta, err := sqlite.MetaFromFile(m.fs, m.log, path)
	if err != nil {
		m.log.Warn("cannot read metadata of %s: %v", path, err)
	}
	return meta, true
}

// prepare runs the script stored in path and compacts the store.
func (m *Manager) prepare(path string) error {
	h, err := sqlite.Open(m.fs, m.log.With(logger.Fields{"prepare": path}), path, sqlite.Options{
		Profile:    sqlite.Bulk,
		Schema:     sqlite.SchemaNav,
		AppVersion: m.cfg.AppVersion,
		CacheKb:    m.cacheKb,
	})
	if err != nil {
		return err
	}
	defer h.Close()

	if m.cfg.PrepareHook != nil {
		if err := m.cfg.PrepareHook(h.DB()); err != nil {
			return errors.WithMessage(err, "preparation hook failed")
		}
	}
	n, err := sqlite.RunPreparationScript(h.DB())
	if err != nil {
		return err
	}
	m.log.Info("ran %d preparation statements", n)
	if err := h.Vacuum(); err != nil {
		return err
	}
	return h.Analyze()
}
