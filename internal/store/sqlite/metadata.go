package sqlite

import (
	"database/sql"
	"time"

	"github.com/maloquacious/navstore/internal/logger"
	"github.com/maloquacious/navstore/internal/store"
	"github.com/maloquacious/semver"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Schema versions understood by this build. Stores outside
// [MinSupportedSchema, CurrentSchema] must be erased and reloaded.
var (
	CurrentSchema      = semver.Version{Major: 1, Minor: 2}
	MinSupportedSchema = semver.Version{Major: 1, Minor: 0}
)

// ErrNoSchema is returned when a store carries no metadata record.
var ErrNoSchema = errors.New("store has no metadata record")

type queryer interface {
	QueryRow(query string, args ...any) *sql.Row
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// Meta is the metadata record embedded in every navigation store.
// It is a plain value and stays valid after the store is closed.
type Meta struct {
	SchemaVersion    semver.Version
	AppVersion       semver.Version
	LastBuildTime    time.Time
	DataCycle        string
	DataSource       string
	HasPendingScript bool
}

// VersionRange is an inclusive range of schema versions.
type VersionRange struct {
	Min, Max semver.Version
}

// Supported is the range of schema versions this build can read.
var Supported = VersionRange{Min: MinSupportedSchema, Max: CurrentSchema}

// Contains reports whether Min <= v <= Max in semantic version precedence.
// A pre-release sorts before its release.
func (r VersionRange) Contains(v semver.Version) bool {
	return !v.Less(r.Min) && !r.Max.Less(v)
}

// IsCompatible reports whether the schema version is within the supported range.
func (m Meta) IsCompatible() bool {
	return Supported.Contains(m.SchemaVersion)
}

// HasData reports whether a loader completed a build into the store.
func (m Meta) HasData() bool {
	return !m.LastBuildTime.IsZero()
}

// HasSchema reports whether the metadata table exists and holds a record.
func HasSchema(q queryer) (bool, error) {
	ok, err := hasTable(q, "metadata")
	if err != nil || !ok {
		return false, err
	}
	var n int
	if err := q.QueryRow(`SELECT COUNT(*) FROM metadata`).Scan(&n); err != nil {
		return false, errors.Wrap(err, "failed to count metadata")
	}
	return n > 0, nil
}

// ReadMeta returns the metadata record, or ErrNoSchema.
func ReadMeta(q queryer) (Meta, error) {
	if ok, err := HasSchema(q); err != nil {
		return Meta{}, err
	} else if !ok {
		return Meta{}, ErrNoSchema
	}

	var m Meta
	var nanos int64
	err := q.QueryRow(`SELECT
		db_version_major, db_version_minor, db_version_patch,
		app_version_major, app_version_minor, app_version_patch, app_version_pre, app_version_build,
		last_load_timestamp, airac_cycle, data_source, has_script
		FROM metadata LIMIT 1`).Scan(
		&m.SchemaVersion.Major, &m.SchemaVersion.Minor, &m.SchemaVersion.Patch,
		&m.AppVersion.Major, &m.AppVersion.Minor, &m.AppVersion.Patch, &m.AppVersion.PreRelease, &m.AppVersion.Build,
		&nanos, &m.DataCycle, &m.DataSource, &m.HasPendingScript)
	if err != nil {
		return Meta{}, errors.Wrap(err, "failed to read metadata")
	}
	if nanos != 0 {
		m.LastBuildTime = time.Unix(0, nanos).UTC()
	}
	return m, nil
}

// WriteMeta replaces the metadata record. Pass the transaction of a preceding
// schema creation so both commit together.
func WriteMeta(e execer, m Meta) error {
	var nanos int64
	if !m.LastBuildTime.IsZero() {
		nanos = m.LastBuildTime.UnixNano()
	}
	if _, err := e.Exec(`DELETE FROM metadata`); err != nil {
		return errors.Wrap(err, "failed to clear metadata")
	}
	_, err := e.Exec(`INSERT INTO metadata (
		db_version_major, db_version_minor, db_version_patch,
		app_version_major, app_version_minor, app_version_patch, app_version_pre, app_version_build,
		last_load_timestamp, airac_cycle, data_source, has_script)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.SchemaVersion.Major, m.SchemaVersion.Minor, m.SchemaVersion.Patch,
		m.AppVersion.Major, m.AppVersion.Minor, m.AppVersion.Patch, m.AppVersion.PreRelease, m.AppVersion.Build,
		nanos, m.DataCycle, m.DataSource, m.HasPendingScript)
	if err != nil {
		return errors.Wrap(err, "failed to write metadata")
	}
	return nil
}

// MetaView reads and writes the metadata of a handle and keeps the last
// record after Detach.
type MetaView struct {
	h      *Handle
	cached Meta
	loaded bool
}

// NewMetaView binds a view to an open handle.
func NewMetaView(h *Handle) *MetaView { return &MetaView{h: h} }

// Read returns the record, from the handle while attached and from the cache after Detach.
func (v *MetaView) Read() (Meta, error) {
	if v.h == nil {
		if !v.loaded {
			return Meta{}, ErrNotOpen
		}
		return v.cached, nil
	}
	m, err := v.h.Meta()
	if err != nil {
		return Meta{}, err
	}
	v.cached, v.loaded = m, true
	return m, nil
}

// Write replaces the record through the attached handle.
func (v *MetaView) Write(m Meta) error {
	if v.h == nil || v.h.DB() == nil {
		return ErrNotOpen
	}
	if err := WriteMeta(v.h.DB(), m); err != nil {
		return err
	}
	v.cached, v.loaded = m, true
	return nil
}

// Detach drops the reference to the handle without closing it.
func (v *MetaView) Detach() {
	if v.h != nil && !v.loaded {
		if m, err := v.h.Meta(); err == nil {
			v.cached, v.loaded = m, true
		}
	}
	v.h = nil
}

// MetaFromFile opens path read-only, reads its metadata and closes it again.
func MetaFromFile(fs afero.Fs, log logger.Logger, path string) (Meta, error) {
	if !store.Exists(fs, path) {
		return Meta{}, errors.Errorf("store %s does not exist", path)
	}
	h, err := Open(fs, log, path, Options{Profile: Interactive, ReadOnly: true})
	if err != nil {
		return Meta{}, err
	}
	defer h.Close()

	view := NewMetaView(h)
	m, err := view.Read()
	view.Detach()
	return m, err
}
