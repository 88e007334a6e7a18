package dbmanager

import (
	"github.com/maloquacious/navstore/internal/blend"
	"github.com/maloquacious/navstore/internal/simulator"
	"github.com/maloquacious/navstore/internal/store/sqlite"
	"github.com/pkg/errors"
)

// Settings keys.
const (
	KeySimulator        = "Database/Simulator"
	KeyLoadingSimulator = "Database/LoadingSimulator"
	KeyUseNav           = "Database/UseNav"
	KeyLoadInactive     = "Database/LoadInactive"
	KeyLoadAddOnXml     = "Database/LoadAddOnXml"
	KeyPaths            = "Database/Paths"
	KeyCacheKb          = "Database/CacheKb"
	KeyForeignKeys      = "Database/ForeignKeys"
)

func (m *Manager) restoreState() {
	if m.settings == nil {
		return
	}
	s := m.settings
	m.current = simulator.ParseShortName(s.String(KeySimulator, ""))
	m.loading = simulator.ParseShortName(s.String(KeyLoadingSimulator, ""))
	if mode := blend.Mode(s.Int(KeyUseNav, int(blend.Default))); mode.Valid() {
		m.mode = mode
	}
	m.readInactive = s.Bool(KeyLoadInactive, false)
	m.readAddOnXml = s.Bool(KeyLoadAddOnXml, true)
	m.cacheKb = s.Int(KeyCacheKb, sqlite.DefaultCacheKb)
	m.foreignKeys = s.Bool(KeyForeignKeys, false)

	paths := map[string]simulator.Paths{}
	if ok, err := s.Decode(KeyPaths, &paths); err != nil {
		m.log.Warn("ignoring saved simulator paths: %v", err)
	} else if ok {
		m.registry.Restore(paths)
	}
}

func (m *Manager) saveState() error {
	if m.settings == nil {
		return nil
	}
	s := m.settings
	s.SetString(KeySimulator, m.current.ShortName())
	s.SetString(KeyLoadingSimulator, m.loading.ShortName())
	s.SetInt(KeyUseNav, int(m.mode))
	s.SetBool(KeyLoadInactive, m.readInactive)
	s.SetBool(KeyLoadAddOnXml, m.readAddOnXml)
	s.SetInt(KeyCacheKb, m.cacheKb)
	s.SetBool(KeyForeignKeys, m.foreignKeys)
	if err := s.Set(KeyPaths, m.registry.Snapshot()); err != nil {
		return newError(Ignorable, "save settings", "", err)
	}
	return newError(Ignorable, "save settings", "", errors.WithMessage(s.Save(), "cannot save settings"))
}
