package dbmanager

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/maloquacious/navstore/internal/audit"
	"github.com/maloquacious/navstore/internal/blend"
	"github.com/maloquacious/navstore/internal/logger"
	"github.com/maloquacious/navstore/internal/rebuild"
	"github.com/maloquacious/navstore/internal/settings"
	"github.com/maloquacious/navstore/internal/simulator"
	"github.com/maloquacious/navstore/internal/store"
	"github.com/maloquacious/navstore/internal/store/sqlite"
	"github.com/maloquacious/semver"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appVersion = semver.Version{Major: 3, Minor: 0, Patch: 4}

type confirmer struct {
	erase, overwrite bool
	asked            int
}

func (c *confirmer) ConfirmErase([]audit.Incompatible) bool {
	c.asked++
	return c.erase
}

func (c *confirmer) ConfirmOverwrite(bundled, current sqlite.Meta, bundledPath, currentPath string) bool {
	c.asked++
	return c.overwrite
}

type env struct {
	t        *testing.T
	fs       afero.Fs
	root     string
	naming   store.Naming
	settings *settings.File
	confirm  *confirmer
	cfg      Config
	load     rebuild.LoaderFunc
}

func newEnv(t *testing.T) *env {
	t.Helper()
	root := t.TempDir()
	fs := afero.NewOsFs()
	s, err := settings.Load(fs, filepath.Join(root, "settings.yaml"))
	require.NoError(t, err)

	e := &env{
		t:        t,
		fs:       fs,
		root:     root,
		naming:   store.NewNaming(filepath.Join(root, "db")),
		settings: s,
		confirm:  &confirmer{},
	}
	e.load = func(ctx context.Context, db *sql.DB, opts rebuild.Options, progress rebuild.ProgressFunc) (rebuild.ResultFlags, error) {
		progress(rebuild.Progress{FirstCall: true, Total: 1})
		if _, err := db.Exec(`INSERT INTO airport (ident) VALUES ('KSEA')`); err != nil {
			return 0, err
		}
		progress(rebuild.Progress{LastCall: true, Current: 1, Total: 1})
		return 0, nil
	}
	e.cfg = Config{
		Dir:        e.naming.Dir,
		AppDir:     filepath.Join(root, "app"),
		AppVersion: appVersion,
		Locations: map[simulator.Type][]simulator.Location{
			simulator.MSFS:     {{BasePath: filepath.Join(root, "sims", "msfs")}},
			simulator.XPlane12: {{BasePath: filepath.Join(root, "sims", "xp12")}},
		},
		Loader: rebuild.LoaderFunc(func(ctx context.Context, db *sql.DB, opts rebuild.Options, progress rebuild.ProgressFunc) (rebuild.ResultFlags, error) {
			return e.load(ctx, db, opts, progress)
		}),
		Confirmer: e.confirm,
	}
	require.NoError(t, fs.MkdirAll(e.naming.Dir, 0o755))
	return e
}

func (e *env) installMSFS() {
	require.NoError(e.t, e.fs.MkdirAll(filepath.Join(e.root, "sims", "msfs", "Community"), 0o755))
}

func (e *env) writeStoreAt(path string, m sqlite.Meta, script ...string) {
	e.t.Helper()
	require.NoError(e.t, e.fs.MkdirAll(filepath.Dir(path), 0o755))
	h, err := sqlite.Open(e.fs, logger.Discard, path, sqlite.Options{Profile: sqlite.Bulk, Schema: sqlite.SchemaNav, AppVersion: appVersion})
	require.NoError(e.t, err)
	if m.SchemaVersion == (semver.Version{}) {
		m.SchemaVersion = sqlite.CurrentSchema
	}
	m.HasPendingScript = len(script) > 0
	require.NoError(e.t, sqlite.WriteMeta(h.DB(), m))
	for _, s := range script {
		_, err := h.DB().Exec(`INSERT INTO script (statement) VALUES (?)`, s)
		require.NoError(e.t, err)
	}
	_, err = h.DB().Exec(`INSERT INTO airport (ident) VALUES ('EDDF'), ('LOWI')`)
	require.NoError(e.t, err)
	require.NoError(e.t, h.Close())
}

func (e *env) writeStore(t simulator.Type, m sqlite.Meta) string {
	path := e.naming.FileName(t.ShortName())
	e.writeStoreAt(path, m)
	return path
}

func (e *env) manager() *Manager {
	m := New(e.fs, logger.Discard, e.settings, e.cfg)
	e.t.Cleanup(func() { m.Shutdown() })
	return m
}

func (e *env) start() *Manager {
	e.t.Helper()
	m := e.manager()
	require.NoError(e.t, m.Init())
	_, err := m.AuditCompatibility()
	require.NoError(e.t, err)
	require.NoError(e.t, m.OpenAll())
	return m
}

type recorder struct {
	events []string
	m      *Manager
	open   []bool
}

func (r *recorder) PreSwap(e SwapEvent) {
	r.events = append(r.events, "pre:"+e.Cause)
	r.open = append(r.open, r.m.Handle(store.Primary) != nil)
}

func (r *recorder) PostSwap(e SwapEvent) {
	r.events = append(r.events, "post:"+e.Cause)
	r.open = append(r.open, r.m.Handle(store.Primary) != nil)
}

func TestNoSimulatorUsesPlaceholder(t *testing.T) {
	e := newEnv(t)
	m := e.start()

	assert.Equal(t, simulator.None, m.Registry().Best())
	assert.Equal(t, simulator.None, m.Simulator())
	placeholder := e.naming.FileName("NONE")
	assert.Equal(t, placeholder, m.Files().Primary)

	meta, err := sqlite.MetaFromFile(e.fs, logger.Discard, placeholder)
	require.NoError(t, err)
	assert.True(t, meta.IsCompatible())
	assert.False(t, meta.HasData())
}

func TestOpenAllIdempotent(t *testing.T) {
	e := newEnv(t)
	e.installMSFS()
	e.writeStore(simulator.MSFS, sqlite.Meta{LastBuildTime: time.Now()})
	m := e.start()

	before := map[store.Role]*sqlite.Handle{}
	for _, role := range store.BulkRoles {
		h := m.Handle(role)
		require.NotNil(t, h, role.String())
		assert.True(t, h.ReadOnly())
		before[role] = h
	}
	files := m.Files()

	require.NoError(t, m.OpenAll())
	assert.Equal(t, files, m.Files())
	for _, role := range store.BulkRoles {
		assert.Same(t, before[role], m.Handle(role), role.String())
	}
}

func TestBlendScenario(t *testing.T) {
	e := newEnv(t)
	e.installMSFS()
	native := e.writeStore(simulator.MSFS, sqlite.Meta{LastBuildTime: time.Now()})
	nav := e.writeStore(simulator.Navigraph, sqlite.Meta{DataCycle: "2401", LastBuildTime: time.Now()})
	e.settings.SetInt(KeyUseNav, int(blend.Mixed))

	m := e.start()
	assert.Equal(t, simulator.MSFS, m.Simulator())
	assert.Equal(t, blend.Mixed, m.BlendMode())
	assert.Equal(t, blend.Files{
		Primary:              native,
		Supplemental:         nav,
		PrimaryAirspace:      native,
		SupplementalAirspace: nav,
	}, m.Files())

	meta, err := m.Handle(store.Supplemental).Meta()
	require.NoError(t, err)
	assert.Equal(t, "2401", meta.DataCycle)

	rec := &recorder{m: m}
	unsubscribe := m.Subscribe(rec)
	require.NoError(t, m.SwitchBlendMode(blend.UseSupplementalForAll))
	assert.Equal(t, blend.Files{
		Primary:              nav,
		Supplemental:         nav,
		PrimaryAirspace:      native,
		SupplementalAirspace: nav,
	}, m.Files())
	assert.Equal(t, nav, m.Handle(store.Primary).Path())
	assert.Equal(t, []string{"pre:blend", "post:blend"}, rec.events)
	assert.Equal(t, []bool{true, true}, rec.open, "pre fires before closing, post after reopening")

	unsubscribe()
	require.NoError(t, m.SwitchBlendMode(blend.Off))
	assert.Len(t, rec.events, 2)
	assert.Equal(t, native, m.Handle(store.Supplemental).Path())
}

func TestSwitchSimulatorPersists(t *testing.T) {
	e := newEnv(t)
	e.installMSFS()
	m := e.start()

	require.NoError(t, m.SwitchSimulator(simulator.XPlane12))
	assert.Equal(t, e.naming.FileName("XP12"), m.Handle(store.Primary).Path())
	assert.Error(t, m.SwitchSimulator(simulator.Navigraph))
	require.NoError(t, m.Shutdown())
	assert.Equal(t, Closed, m.State())

	s, err := settings.Load(e.fs, e.settings.Path())
	require.NoError(t, err)
	assert.Equal(t, "XP12", s.String(KeySimulator, ""))
	assert.Equal(t, "MSFS", s.String(KeyLoadingSimulator, ""))
	assert.Equal(t, int(blend.Off), s.Int(KeyUseNav, -1))

	var paths map[string]simulator.Paths
	ok, err := s.Decode(KeyPaths, &paths)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(e.root, "sims", "msfs"), paths["MSFS"].BasePath)
}

func TestSwitchFailureLeavesRolesClosed(t *testing.T) {
	e := newEnv(t)
	e.installMSFS()
	m := e.start()
	rec := &recorder{m: m}
	m.Subscribe(rec)

	// Creating the schema leaves the writer holding its exclusive lock.
	target := e.naming.FileName("XP12")
	other, err := sqlite.Open(e.fs, logger.Discard, target, sqlite.Options{Profile: sqlite.Bulk, Schema: sqlite.SchemaNav})
	require.NoError(t, err)

	err = m.SwitchSimulator(simulator.XPlane12)
	require.Error(t, err)
	assert.Equal(t, Retryable, KindOf(err))
	assert.True(t, errors.Is(err, sqlite.ErrLocked))
	assert.Equal(t, []string{"pre:simulator"}, rec.events)
	for _, role := range store.BulkRoles {
		assert.Nil(t, m.Handle(role), role.String())
	}

	require.NoError(t, other.Close())
	require.NoError(t, m.OpenAll())
	assert.Equal(t, target, m.Handle(store.Primary).Path())
	assert.Equal(t, []string{"pre:simulator"}, rec.events)
}

func TestRestoreStateKeepsUserPaths(t *testing.T) {
	e := newEnv(t)
	custom := filepath.Join(e.root, "elsewhere", "msfs")
	require.NoError(t, e.fs.MkdirAll(custom, 0o755))
	require.NoError(t, e.settings.Set(KeyPaths, map[string]simulator.Paths{"MSFS": {BasePath: custom}}))
	e.settings.SetString(KeySimulator, "MSFS")

	m := e.manager()
	require.NoError(t, m.Init())
	entry := m.Registry().Entry(simulator.MSFS)
	assert.Equal(t, custom, entry.BasePath)
	assert.True(t, entry.Installed)
	assert.Equal(t, simulator.MSFS, m.Simulator())
}

func TestRebuildSucceeds(t *testing.T) {
	e := newEnv(t)
	e.installMSFS()
	live := e.writeStore(simulator.MSFS, sqlite.Meta{AppVersion: semver.Version{Major: 2}, LastBuildTime: time.Now().Add(-time.Hour)})
	m := e.start()
	rec := &recorder{m: m}
	m.Subscribe(rec)

	before := time.Now()
	result, err := m.Rebuild(context.Background(), simulator.MSFS, nil)
	require.NoError(t, err)

	h := m.Handle(store.Primary)
	require.NotNil(t, h)
	assert.Equal(t, live, h.Path())
	assert.True(t, h.ReadOnly())
	meta, err := h.Meta()
	require.NoError(t, err)
	assert.Zero(t, appVersion.Compare(meta.AppVersion))
	assert.True(t, meta.LastBuildTime.After(before))

	n, err := sqlite.RowCount(h.DB(), "airport")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, []string{"pre:rebuild", "post:rebuild"}, rec.events)
	assert.Equal(t, []bool{true, true}, rec.open)
	assert.Equal(t, Ready, m.State())
	assert.Equal(t, blend.Off, result.SuggestedMode)
	assert.False(t, result.HasSuggestion(m.BlendMode()))
	assert.False(t, store.Exists(e.fs, e.naming.CompilingFileName()))
}

func TestRebuildFailureKeepsLiveStore(t *testing.T) {
	e := newEnv(t)
	e.installMSFS()
	e.writeStore(simulator.MSFS, sqlite.Meta{DataCycle: "old", LastBuildTime: time.Now()})
	m := e.start()
	rec := &recorder{m: m}
	m.Subscribe(rec)
	primary := m.Handle(store.Primary)

	succeed := e.load
	e.load = func(ctx context.Context, db *sql.DB, opts rebuild.Options, progress rebuild.ProgressFunc) (rebuild.ResultFlags, error) {
		return 0, errors.New("disk full")
	}
	_, err := m.Rebuild(context.Background(), simulator.MSFS, nil)
	require.Error(t, err)
	assert.Equal(t, Retryable, KindOf(err))
	assert.Empty(t, rec.events)
	assert.Same(t, primary, m.Handle(store.Primary))

	meta, err := primary.Meta()
	require.NoError(t, err)
	assert.Equal(t, "old", meta.DataCycle)
	assert.False(t, store.Exists(e.fs, e.naming.CompilingFileName()))
	assert.False(t, store.Exists(e.fs, store.JournalPath(e.naming.CompilingFileName())))

	// A retry is independent of the failed attempt.
	e.load = succeed
	_, err = m.Rebuild(context.Background(), simulator.MSFS, nil)
	require.NoError(t, err)
}

func TestRebuildCancelled(t *testing.T) {
	e := newEnv(t)
	e.installMSFS()
	m := e.start()

	_, err := m.Rebuild(context.Background(), simulator.MSFS, func(rebuild.Progress) bool { return true })
	require.Error(t, err)
	assert.True(t, errors.Is(err, rebuild.ErrCancelled))
	assert.Equal(t, Ignorable, KindOf(err))
}

func TestRebuildValidation(t *testing.T) {
	e := newEnv(t)
	m := e.start()

	_, err := m.Rebuild(context.Background(), simulator.XPlane12, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rebuild.ErrInvalidConfig))
	assert.Equal(t, Retryable, KindOf(err))
	assert.NotEmpty(t, err.(*Error).Remedy())
	assert.False(t, store.Exists(e.fs, e.naming.CompilingFileName()))

	_, err = m.Rebuild(context.Background(), simulator.Navigraph, nil)
	assert.Error(t, err)
}

func TestRebuildAlreadyRunning(t *testing.T) {
	e := newEnv(t)
	e.installMSFS()
	m := e.start()

	var nested, switched error
	inner := e.load
	e.load = func(ctx context.Context, db *sql.DB, opts rebuild.Options, progress rebuild.ProgressFunc) (rebuild.ResultFlags, error) {
		assert.Equal(t, Rebuilding, m.State())
		_, nested = m.Rebuild(ctx, simulator.MSFS, nil)
		switched = m.SwitchBlendMode(blend.Mixed)
		return inner(ctx, db, opts, progress)
	}
	_, err := m.Rebuild(context.Background(), simulator.MSFS, nil)
	require.NoError(t, err)
	assert.True(t, errors.Is(nested, rebuild.ErrAlreadyRunning))
	assert.True(t, errors.Is(switched, rebuild.ErrAlreadyRunning))
	assert.Equal(t, Ready, m.State())
}

func TestAuditCompatibility(t *testing.T) {
	tests := []struct {
		name  string
		erase bool
	}{
		{"declined", false},
		{"confirmed", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			old := e.writeStore(simulator.XPlane12, sqlite.Meta{SchemaVersion: semver.Version{Minor: 9}})
			e.confirm.erase = tt.erase
			m := e.manager()
			require.NoError(t, m.Init())

			_, err := m.AuditCompatibility()
			assert.Equal(t, 1, e.confirm.asked)
			meta, merr := sqlite.MetaFromFile(e.fs, logger.Discard, old)
			require.NoError(t, merr)
			if tt.erase {
				require.NoError(t, err)
				assert.True(t, meta.IsCompatible())
			} else {
				require.Error(t, err)
				assert.Equal(t, StartupAbort, KindOf(err))
				assert.True(t, errors.Is(err, audit.ErrDeclined))
				assert.False(t, meta.IsCompatible())
			}
		})
	}
}

func TestInteractiveStores(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 3; i++ {
		m := e.manager()
		require.NoError(t, m.Init())
		for _, role := range store.InteractiveRoles {
			h := m.Handle(role)
			require.NotNil(t, h, role.String())
			assert.False(t, h.ReadOnly())
			assert.Equal(t, sqlite.Interactive, h.Profile())
			assert.Equal(t, h.Path(), m.InteractiveFileName(role))
		}
		n, err := sqlite.RowCount(m.Handle(store.UserAirspace).DB(), "boundary")
		require.NoError(t, err)
		assert.Zero(t, n)
		require.NoError(t, m.Shutdown())
	}

	backup := e.naming.BackupFileName("userdata")
	assert.True(t, store.Exists(e.fs, backup))
	assert.True(t, store.Exists(e.fs, backup+".1"))
	assert.True(t, store.Exists(e.fs, e.naming.BackupFileName("logbook")))
	assert.False(t, store.Exists(e.fs, e.naming.BackupFileName("track")))
}

func TestInteractiveStoreLockedIsFatal(t *testing.T) {
	e := newEnv(t)
	// A writable bulk handle keeps its exclusive lock, like another instance would.
	other, err := sqlite.Open(e.fs, logger.Discard, e.naming.FileName("userdata"), sqlite.Options{Profile: sqlite.Bulk, Schema: sqlite.SchemaNav})
	require.NoError(t, err)
	defer other.Close()

	m := e.manager()
	err = m.Init()
	require.Error(t, err)
	assert.Equal(t, Fatal, KindOf(err))
	assert.True(t, errors.Is(err, sqlite.ErrLocked))
	assert.Contains(t, err.(*Error).Remedy(), "another instance")
}

func TestPrepareNavdata(t *testing.T) {
	tests := []struct {
		name      string
		overwrite bool
		cycle     string
	}{
		{"overwrite", true, "2402"},
		{"keep", false, "2401"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			hooked := 0
			e.cfg.PrepareHook = func(*sql.DB) error {
				hooked++
				return nil
			}
			e.confirm.overwrite = tt.overwrite
			e.writeStore(simulator.Navigraph, sqlite.Meta{DataCycle: "2401", LastBuildTime: time.Now()})
			m := e.manager()
			require.NoError(t, m.Init())
			e.writeStoreAt(m.BundledFileName(), sqlite.Meta{DataCycle: "2402", LastBuildTime: time.Now().Add(-time.Hour)},
				`CREATE INDEX idx_airport_ident ON airport (ident)`)

			copied, err := m.PrepareNavdata()
			require.NoError(t, err)
			assert.Equal(t, tt.overwrite, copied)
			assert.Equal(t, 1, e.confirm.asked)

			info, err := m.Info(simulator.Navigraph)
			require.NoError(t, err)
			assert.Equal(t, tt.cycle, info.Meta.DataCycle)
			assert.False(t, info.Meta.HasPendingScript)
			if tt.overwrite {
				assert.Equal(t, 1, hooked)
			} else {
				assert.Zero(t, hooked)
			}
		})
	}
}

func TestPrepareNavdataRefusesOpenStores(t *testing.T) {
	e := newEnv(t)
	m := e.start()
	_, err := m.PrepareNavdata()
	assert.Error(t, err)
}

func TestCheckStaleness(t *testing.T) {
	e := newEnv(t)
	e.installMSFS()
	e.writeStore(simulator.MSFS, sqlite.Meta{
		AppVersion:    semver.Version{Major: 2, Minor: 8},
		LastBuildTime: time.Now().Add(-90 * 24 * time.Hour),
	})
	m := e.start()

	msgs := m.CheckStaleness()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "older application version")
	assert.Contains(t, msgs[1], "not reloaded for 90 days")

	require.NoError(t, m.SwitchBlendMode(blend.UseSupplementalForAll))
	assert.Empty(t, m.CheckStaleness())
}

func TestCheckStalenessFreshStore(t *testing.T) {
	e := newEnv(t)
	e.installMSFS()
	e.writeStore(simulator.MSFS, sqlite.Meta{AppVersion: appVersion, LastBuildTime: time.Now()})
	m := e.start()
	assert.Empty(t, m.CheckStaleness())
}

func TestCheckStalenessPreRelease(t *testing.T) {
	e := newEnv(t)
	e.installMSFS()
	beta := appVersion
	beta.PreRelease = "beta"
	e.writeStore(simulator.MSFS, sqlite.Meta{AppVersion: beta, LastBuildTime: time.Now()})
	m := e.start()

	msgs := m.CheckStaleness()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "older application version 3.0.4-beta")
}

func TestCheckModified(t *testing.T) {
	e := newEnv(t)
	e.installMSFS()
	native := e.writeStore(simulator.MSFS, sqlite.Meta{LastBuildTime: time.Now()})
	m := e.start()
	require.Equal(t, blend.Off, m.BlendMode())
	assert.Empty(t, m.CheckModified())

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(native, later, later))
	assert.Equal(t, []string{native}, m.CheckModified())
	assert.Empty(t, m.CheckModified())
}

func TestInfo(t *testing.T) {
	e := newEnv(t)
	e.writeStore(simulator.MSFS, sqlite.Meta{DataCycle: "2401", LastBuildTime: time.Now()})
	e.writeStore(simulator.XPlane11, sqlite.Meta{SchemaVersion: semver.Version{Major: 9}})
	m := e.manager()
	require.NoError(t, m.Init())

	tests := []struct {
		sim      simulator.Type
		state    store.StoreState
		airports int64
	}{
		{simulator.MSFS, store.StateReady, 2},
		{simulator.XPlane11, store.StateVersionMismatch, 0},
		{simulator.P3DV5, store.StateMissing, 0},
	}
	for _, tt := range tests {
		t.Run(tt.sim.ShortName(), func(t *testing.T) {
			info, err := m.Info(tt.sim)
			require.NoError(t, err)
			assert.Equal(t, tt.state, info.State)
			assert.Equal(t, tt.airports, info.Counts["airport"])
		})
	}
	assert.False(t, store.Exists(e.fs, e.naming.FileName("P3DV5")), "info must not create stores")
}

func TestNotReady(t *testing.T) {
	e := newEnv(t)
	m := e.manager()
	assert.True(t, errors.Is(m.OpenAll(), ErrNotReady))
	_, err := m.Rebuild(context.Background(), simulator.MSFS, nil)
	assert.True(t, errors.Is(err, ErrNotReady))
	assert.True(t, errors.Is(m.SwitchBlendMode(blend.Off), ErrNotReady))
}

func TestSuggestMode(t *testing.T) {
	tests := []struct {
		name  string
		sim   simulator.Type
		mode  blend.Mode
		flags rebuild.ResultFlags
		want  blend.Mode
	}{
		{"msfs navdata update", simulator.MSFS, blend.Off, rebuild.SupplementalDetected, blend.Mixed},
		{"msfs without update", simulator.MSFS, blend.Mixed, 0, blend.Off},
		{"msfs already off", simulator.MSFS, blend.Off, 0, blend.Off},
		{"xplane all", simulator.XPlane12, blend.UseSupplementalForAll, 0, blend.Mixed},
		{"xplane mixed", simulator.XPlane12, blend.Mixed, 0, blend.Mixed},
		{"aborted", simulator.MSFS, blend.Mixed, rebuild.Aborted, blend.Mixed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, suggestMode(tt.sim, tt.mode, tt.flags))
		})
	}
}

func TestErrorKinds(t *testing.T) {
	err := newError(Retryable, "rebuild MSFS", "/db/x.sqlite",
		&store.FileError{Op: "rename", Path: "/db/a", To: "/db/b", Err: os.ErrPermission})
	assert.Equal(t, `rebuild MSFS /db/x.sqlite: cannot rename "/db/a" to "/db/b": permission denied`, err.Error())
	assert.Contains(t, err.(*Error).Remedy(), `"/db/a"`)
	assert.Nil(t, newError(Fatal, "x", "", nil))
	assert.Equal(t, Retryable, KindOf(errors.New("plain")))
	assert.Equal(t, "startup-abort", StartupAbort.String())
}
