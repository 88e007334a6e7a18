package dbmanager

import (
	"github.com/maloquacious/navstore/internal/logger"
	"github.com/maloquacious/navstore/internal/metrics"
	"github.com/maloquacious/navstore/internal/store"
	"github.com/maloquacious/navstore/internal/store/sqlite"
	"github.com/pkg/errors"
)

type interactiveStore struct {
	role   store.Role
	name   string
	backup bool
	schema sqlite.SchemaKind
}

// Schemas of user, logbook, track and online stores belong to their owners.
var interactiveStores = []interactiveStore{
	{role: store.User, name: "userdata", backup: true},
	{role: store.Logbook, name: "logbook", backup: true},
	{role: store.UserAirspace, name: "userairspace", schema: sqlite.SchemaAirspace},
	{role: store.Track, name: "track"},
	{role: store.Online, name: "onlinedata"},
}

// InteractiveFileName returns the file of an interactive role.
func (m *Manager) InteractiveFileName(role store.Role) string {
	for _, s := range interactiveStores {
		if s.role == role {
			return m.naming.FileName(s.name)
		}
	}
	return ""
}

// openInteractive opens the read-write stores. Any failure is fatal since
// another instance most likely holds them.
func (m *Manager) openInteractive() error {
	for _, s := range interactiveStores {
		path := m.naming.FileName(s.name)
		if s.backup {
			m.backup(path, m.naming.BackupFileName(s.name))
		}
		h, err := sqlite.Open(m.fs, m.log.With(logger.Fields{"role": s.role.String()}), path, sqlite.Options{
			Profile:     sqlite.Interactive,
			Schema:      s.schema,
			AppVersion:  m.cfg.AppVersion,
			CacheKb:     m.cacheKb,
			ForeignKeys: m.foreignKeys,
		})
		if err != nil {
			return newError(Fatal, "open "+s.role.String(), path,
				errors.WithMessage(err, "is another instance running?"))
		}
		m.handles[s.role] = h
	}
	return nil
}

// backup keeps one previous generation. Failures are logged.
func (m *Manager) backup(path, backup string) {
	if !store.Exists(m.fs, path) {
		return
	}
	if err := store.RollFile(m.fs, backup); err != nil {
		metrics.FileErrorsTotal.WithLabelValues("rename").Inc()
		m.log.Warn("cannot roll backup: %v", err)
	}
	if err := store.CopyFile(m.fs, path, backup); err != nil {
		metrics.FileErrorsTotal.WithLabelValues("copy").Inc()
		m.log.Warn("cannot back up: %v", err)
		return
	}
	m.log.Info("copied %s to %s", path, backup)
}

func (m *Manager) closeInteractive() {
	for _, role := range store.InteractiveRoles {
		h := m.handles[role]
		if h == nil {
			continue
		}
		if err := h.Close(); err != nil {
			m.log.Warn("closing %s: %v", role, err)
		}
		delete(m.handles, role)
	}
}
