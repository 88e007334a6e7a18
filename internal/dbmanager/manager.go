// Package dbmanager owns every store of the application. It opens the bulk
// roles according to the selected simulator and blend mode, swaps them on
// switches and rebuilds, and keeps the interactive stores open for the
// lifetime of the process.
package dbmanager

import (
	"database/sql"
	"slices"
	"time"

	"github.com/maloquacious/navstore/internal/audit"
	"github.com/maloquacious/navstore/internal/blend"
	"github.com/maloquacious/navstore/internal/logger"
	"github.com/maloquacious/navstore/internal/metrics"
	"github.com/maloquacious/navstore/internal/rebuild"
	"github.com/maloquacious/navstore/internal/settings"
	"github.com/maloquacious/navstore/internal/simulator"
	"github.com/maloquacious/navstore/internal/store"
	"github.com/maloquacious/navstore/internal/store/sqlite"
	"github.com/maloquacious/semver"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// ErrNotReady is returned by operations called before Init or after Shutdown.
var ErrNotReady = errors.New("store manager not initialized")

// State of the manager.
type State int

const (
	Uninitialized State = iota
	Ready
	Rebuilding
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Rebuilding:
		return "rebuilding"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Confirmer takes decisions on behalf of the user.
type Confirmer interface {
	// ConfirmErase is asked before incompatible stores are deleted.
	ConfirmErase(incompatible []audit.Incompatible) bool
	// ConfirmOverwrite is asked before a bundled store replaces an older one.
	ConfirmOverwrite(bundled, current sqlite.Meta, bundledPath, currentPath string) bool
}

// Config is fixed for the lifetime of a Manager.
type Config struct {
	// Dir holds all store files.
	Dir string
	// AppDir is searched for a bundled supplemental store.
	AppDir     string
	AppVersion semver.Version
	Locations  map[simulator.Type][]simulator.Location
	Loader     rebuild.Loader
	Confirmer  Confirmer
	// PrepareHook runs before the preparation script of a supplemental store.
	PrepareHook func(db *sql.DB) error
	// NoInteractive skips the interactive stores, for tools which only
	// inspect the bulk stores.
	NoInteractive bool
}

// Manager is the single owner of all store handles. It is driven from one
// goroutine.
type Manager struct {
	fs       afero.Fs
	log      logger.Logger
	settings settings.Settings
	cfg      Config
	naming   store.Naming

	registry *simulator.Registry
	auditor  *audit.Auditor
	pipeline *rebuild.Pipeline

	state        State
	current      simulator.Type
	loading      simulator.Type
	mode         blend.Mode
	readInactive bool
	readAddOnXml bool
	cacheKb      int
	foreignKeys  bool

	handles map[store.Role]*sqlite.Handle
	files   blend.Files
	started bool

	observers observers

	// Now is used for staleness checks.
	Now func() time.Time
}

// New creates a manager. Nothing is opened before Init.
func New(fs afero.Fs, log logger.Logger, s settings.Settings, cfg Config) *Manager {
	if log == nil {
		log = logger.Discard
	}
	log = log.With(logger.Fields{"component": "dbmanager"})
	return &Manager{
		fs:       fs,
		log:      log,
		settings: s,
		cfg:      cfg,
		naming:   store.NewNaming(cfg.Dir),
		registry: simulator.NewRegistry(fs, log, cfg.Locations),
		current:  simulator.None,
		loading:  simulator.None,
		mode:     blend.Default,
		cacheKb:  sqlite.DefaultCacheKb,
		handles:  map[store.Role]*sqlite.Handle{},
		Now:      time.Now,
	}
}

// Init restores the persisted state, discovers simulators and opens the
// interactive stores. Bulk roles are opened by OpenAll after the
// compatibility audit.
func (m *Manager) Init() error {
	if m.state != Uninitialized {
		return errors.Errorf("store manager already %s", m.state)
	}
	m.restoreState()

	if err := m.fs.MkdirAll(m.cfg.Dir, 0o755); err != nil {
		m.log.Warn("cannot create store directory %s: %v", m.cfg.Dir, err)
	}
	if !store.Exists(m.fs, m.fileName(blend.Source)) && m.mode != blend.Off {
		m.log.Info("no %s store, blending off", blend.Source.ShortName())
		m.mode = blend.Off
	}

	m.registry.FillDefault()
	m.registry.RefreshDatabaseFlags(m.fileName)
	m.correctSimulator()
	m.log.Info("simulator %s, loading %s, mode %s", m.current.ShortName(), m.loading.ShortName(), m.mode)

	m.auditor = audit.New(m.fs, m.log, m.cfg.AppVersion, m.cacheKb)
	m.pipeline = rebuild.NewPipeline(m.fs, m.log, m.cfg.AppVersion, m.cacheKb)

	if !m.cfg.NoInteractive {
		if err := m.openInteractive(); err != nil {
			m.closeInteractive()
			return err
		}
	}
	m.state = Ready
	return nil
}

// Shutdown closes every store and saves the state. The manager cannot be
// used afterwards.
func (m *Manager) Shutdown() error {
	if m.state == Closed {
		return nil
	}
	err := m.CloseAll()
	m.closeInteractive()
	if m.state != Uninitialized {
		if serr := m.saveState(); err == nil {
			err = serr
		}
	}
	m.state = Closed
	return err
}

func (m *Manager) State() State                     { return m.state }
func (m *Manager) Registry() *simulator.Registry    { return m.registry }
func (m *Manager) Naming() store.Naming             { return m.naming }
func (m *Manager) Simulator() simulator.Type        { return m.current }
func (m *Manager) LoadingSimulator() simulator.Type { return m.loading }
func (m *Manager) BlendMode() blend.Mode            { return m.mode }

// Files returns the files last resolved for the bulk roles.
func (m *Manager) Files() blend.Files { return m.files }

// Handle returns the open handle of role, or nil. Callers must not keep it
// beyond a PreSwap notification.
func (m *Manager) Handle(role store.Role) *sqlite.Handle {
	h := m.handles[role]
	if h == nil || !h.IsOpen() {
		return nil
	}
	return h
}

// SetLoadingOptions changes what the next rebuild reads.
func (m *Manager) SetLoadingOptions(readInactive, readAddOnXml bool) {
	m.readInactive, m.readAddOnXml = readInactive, readAddOnXml
}

func (m *Manager) fileName(t simulator.Type) string {
	return m.naming.FileName(t.ShortName())
}

func (m *Manager) bulkOptions() sqlite.Options {
	return sqlite.Options{
		Profile:     sqlite.Bulk,
		ReadOnly:    true,
		Schema:      sqlite.SchemaNav,
		AppVersion:  m.cfg.AppVersion,
		CacheKb:     m.cacheKb,
		ForeignKeys: m.foreignKeys,
	}
}

// correctSimulator replaces a selection without installation or store by the
// best known one. The loading simulator must be installed.
func (m *Manager) correctSimulator() {
	e := m.registry.Entry(m.current)
	if m.current == simulator.None || (!e.HasDatabase && !e.Installed) {
		m.current = m.registry.Best()
	}
	if m.current == simulator.None {
		m.current = m.registry.BestInstalled()
	}
	if m.loading == simulator.None || !m.registry.Entry(m.loading).Installed {
		m.loading = m.registry.BestInstalled()
	}
}

// OpenAll opens the bulk roles on the files resolved for the current
// simulator and blend mode. Roles already open on the right file are kept.
// If any role fails to open all bulk roles are closed.
func (m *Manager) OpenAll() error {
	if m.state == Uninitialized || m.state == Closed {
		return newError(Retryable, "open", "", ErrNotReady)
	}
	files := blend.Resolve(m.current, m.mode, m.fileName)
	wanted := map[store.Role]string{
		store.Primary:              files.Primary,
		store.Supplemental:         files.Supplemental,
		store.PrimaryAirspace:      files.PrimaryAirspace,
		store.SupplementalAirspace: files.SupplementalAirspace,
	}

	for _, role := range store.BulkRoles {
		path := wanted[role]
		if h := m.handles[role]; h != nil && h.IsOpen() {
			if h.Path() == path {
				continue
			}
			if err := h.Close(); err != nil {
				m.log.Warn("closing %s: %v", role, err)
			}
		}
		h, err := sqlite.Open(m.fs, m.log.With(logger.Fields{"role": role.String()}), path, m.bulkOptions())
		if err != nil {
			kind := Retryable
			if !m.started && errors.Is(err, sqlite.ErrLocked) {
				kind = Fatal
			}
			_ = m.CloseAll()
			return newError(kind, "open "+role.String(), path, err)
		}
		m.handles[role] = h
	}
	m.files = files
	m.started = true
	m.registry.RefreshDatabaseFlags(m.fileName)
	return nil
}

// CloseAll closes the bulk roles. Interactive stores stay open.
func (m *Manager) CloseAll() error {
	var first error
	for _, role := range store.BulkRoles {
		h := m.handles[role]
		if h == nil {
			continue
		}
		if err := h.Close(); err != nil && first == nil {
			first = newError(Ignorable, "close "+role.String(), h.Path(), err)
		}
		delete(m.handles, role)
	}
	return first
}

// swapRoles runs change between PreSwap and PostSwap with the bulk roles
// closed. PostSwap is only sent if the roles could be reopened.
func (m *Manager) swapRoles(cause string, change func() error) error {
	event := SwapEvent{Cause: cause, Roles: store.BulkRoles}
	m.notifyPre(event)
	if err := m.CloseAll(); err != nil {
		m.log.Warn("%v", err)
	}
	if change != nil {
		if err := change(); err != nil {
			return err
		}
	}
	if err := m.OpenAll(); err != nil {
		return err
	}
	metrics.SwapsTotal.WithLabelValues(cause).Inc()
	m.notifyPost(event)
	return nil
}

// SwitchBlendMode reopens the bulk roles for mode.
func (m *Manager) SwitchBlendMode(mode blend.Mode) error {
	if !mode.Valid() {
		return newError(Retryable, "switch blend mode", "", errors.Errorf("invalid blend mode %d", mode))
	}
	if err := m.checkIdle("switch blend mode"); err != nil {
		return err
	}
	m.log.Info("switching blend mode %s -> %s", m.mode, mode)
	err := m.swapRoles(CauseBlend, func() error {
		m.mode = mode
		return nil
	})
	if serr := m.saveState(); err == nil && serr != nil {
		m.log.Warn("%v", serr)
	}
	return err
}

// SwitchSimulator reopens the bulk roles for t.
func (m *Manager) SwitchSimulator(t simulator.Type) error {
	if t != simulator.None && !slices.Contains(simulator.Simulators, t) {
		return newError(Retryable, "switch simulator", "", errors.Errorf("%s is not a simulator", t))
	}
	if err := m.checkIdle("switch simulator"); err != nil {
		return err
	}
	m.log.Info("switching simulator %s -> %s", m.current.ShortName(), t.ShortName())
	err := m.swapRoles(CauseSimulator, func() error {
		m.current = t
		return nil
	})
	if serr := m.saveState(); err == nil && serr != nil {
		m.log.Warn("%v", serr)
	}
	return err
}

func (m *Manager) checkIdle(op string) error {
	switch m.state {
	case Ready:
		return nil
	case Rebuilding:
		return newError(Retryable, op, "", rebuild.ErrAlreadyRunning)
	}
	return newError(Retryable, op, "", ErrNotReady)
}
