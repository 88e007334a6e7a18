package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/maloquacious/navstore/internal/logger"
	"github.com/maloquacious/navstore/internal/store"
	"github.com/maloquacious/semver"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotOpen is returned by operations which need a connection.
	ErrNotOpen = errors.New("database not opened")
	// ErrLocked is returned when another process holds a conflicting lock.
	ErrLocked = errors.New("database is locked by another process")
)

// Profile is a pragma preset.
type Profile int

const (
	// Bulk is for large one-shot writes and read-mostly access under an exclusive lock.
	Bulk Profile = iota
	// Interactive is for frequent small transactions with a durable journal.
	Interactive
)

func (p Profile) String() string {
	if p == Interactive {
		return "interactive"
	}
	return "bulk"
}

// SchemaKind selects the empty schema created on demand.
type SchemaKind int

const (
	// SchemaNone never creates a schema.
	SchemaNone SchemaKind = iota
	// SchemaNav creates the full navigation schema plus metadata.
	SchemaNav
	// SchemaAirspace creates the boundary table only.
	SchemaAirspace
)

const DefaultCacheKb = 50000

// Options configure a Handle.
type Options struct {
	Profile  Profile
	ReadOnly bool
	// Schema is created when missing. A read-only handle is opened read-write
	// just long enough to create it.
	Schema SchemaKind
	// AppVersion is written to the metadata of a newly created schema.
	AppVersion  semver.Version
	CacheKb     int
	ForeignKeys bool
}

type fingerprint struct {
	modTime time.Time
	size    int64
}

// Handle wraps a single SQLite connection to one store file.
type Handle struct {
	path string
	opts Options
	fs   afero.Fs
	log  logger.Logger

	db    *sql.DB
	print fingerprint
}

var _ store.Store = (*Handle)(nil)

// New creates a Handle for path. The caller must Open the handle before use.
func New(fs afero.Fs, log logger.Logger, path string, opts Options) *Handle {
	if opts.CacheKb <= 0 {
		opts.CacheKb = DefaultCacheKb
	}
	if log == nil {
		log = logger.Discard
	}
	return &Handle{path: path, opts: opts, fs: fs, log: log.With(logger.Fields{"db": path})}
}

// Open opens path with the given options, replacing the handle's current ones.
func Open(fs afero.Fs, log logger.Logger, path string, opts Options) (*Handle, error) {
	h := New(fs, log, path, opts)
	if err := h.Open(); err != nil {
		return nil, err
	}
	return h, nil
}

// Pragmas returns the statements applied to a connection for the options.
func (o Options) Pragmas() []string {
	pragmas := []string{
		fmt.Sprintf("PRAGMA cache_size=-%d", o.CacheKb),
		"PRAGMA page_size=8196",
	}
	if o.Profile == Bulk {
		pragmas = append(pragmas,
			"PRAGMA locking_mode=EXCLUSIVE",
			"PRAGMA journal_mode=TRUNCATE",
			"PRAGMA synchronous=OFF",
		)
	} else {
		pragmas = append(pragmas,
			"PRAGMA locking_mode=NORMAL",
			"PRAGMA journal_mode=DELETE",
			"PRAGMA synchronous=NORMAL",
		)
	}
	if !o.ReadOnly {
		pragmas = append(pragmas, "PRAGMA busy_timeout=2000")
	}
	if o.ForeignKeys {
		pragmas = append(pragmas, "PRAGMA foreign_keys=ON")
	} else {
		pragmas = append(pragmas, "PRAGMA foreign_keys=OFF")
	}
	return pragmas
}

// Open opens the database, creates a missing schema if requested and
// switches to read-only mode last.
func (h *Handle) Open() error {
	if h.db != nil {
		return errors.Errorf("database %s already open", h.path)
	}

	// query_only is applied last so a missing schema can still be created.
	db, err := h.connect(h.opts)
	if err != nil {
		return err
	}

	if h.opts.Schema != SchemaNone {
		created, err := h.ensureSchema(db)
		if err != nil {
			db.Close()
			return err
		}
		if created && h.opts.ReadOnly {
			// Drop the write lock taken while creating the schema.
			db.Close()
			if db, err = h.connect(h.opts); err != nil {
				return err
			}
		}
	}

	if h.opts.ReadOnly {
		if _, err := db.Exec("PRAGMA query_only=ON"); err != nil {
			db.Close()
			return errors.Wrap(err, "failed to switch database to read-only")
		}
	}

	h.db = db
	h.RecordFingerprint()
	h.log.Debug("opened %s profile, read-only=%v", h.opts.Profile, h.opts.ReadOnly)
	return nil
}

func (h *Handle) connect(opts Options) (*sql.DB, error) {
	db, err := sql.Open("sqlite", h.path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	// Pragmas are per connection and the exclusive lock is held by it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range opts.Pragmas() {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, wrapLocked(err, fmt.Sprintf("failed to set pragma %q", pragma))
		}
	}
	h.log.Debug("pragmas %v", opts.Pragmas())

	// Touch the file so a lock held elsewhere fails here and not on first query.
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master`).Scan(&n); err != nil {
		db.Close()
		return nil, wrapLocked(err, "failed to read database")
	}
	return db, nil
}

func (h *Handle) ensureSchema(db *sql.DB) (bool, error) {
	var ok bool
	var err error
	if h.opts.Schema == SchemaAirspace {
		ok, err = hasTable(db, "boundary")
	} else {
		ok, err = HasSchema(db)
	}
	if err != nil || ok {
		return false, err
	}

	h.log.Info("creating empty schema")
	if h.opts.Schema == SchemaAirspace {
		return true, CreateAirspaceSchema(db)
	}
	return true, InitSchema(db, h.opts.AppVersion)
}

// Close closes the database connection. Closing a closed handle is a no-op.
func (h *Handle) Close() error {
	if h.db == nil {
		return nil
	}
	err := h.db.Close()
	h.db = nil
	h.log.Debug("closed")
	if err != nil {
		return errors.Wrapf(err, "failed to close database %s", h.path)
	}
	return nil
}

func (h *Handle) IsOpen() bool     { return h.db != nil }
func (h *Handle) Path() string     { return h.path }
func (h *Handle) ReadOnly() bool   { return h.opts.ReadOnly }
func (h *Handle) Profile() Profile { return h.opts.Profile }
func (h *Handle) Options() Options { return h.opts }

// DB returns the connection, or nil when closed.
func (h *Handle) DB() *sql.DB { return h.db }

// SetReadOnly changes the mode, reopening the handle if it is open.
func (h *Handle) SetReadOnly(readOnly bool) error {
	if h.opts.ReadOnly == readOnly {
		return nil
	}
	h.opts.ReadOnly = readOnly
	if h.db == nil {
		return nil
	}
	if err := h.Close(); err != nil {
		return err
	}
	return h.Open()
}

// RecordFingerprint remembers the file's current modification time and size.
func (h *Handle) RecordFingerprint() {
	info, err := h.fs.Stat(h.path)
	if err != nil {
		h.log.Debug("cannot stat for fingerprint: %v", err)
		h.print = fingerprint{}
		return
	}
	h.print = fingerprint{modTime: info.ModTime(), size: info.Size()}
}

// IsFileModified reports whether the file changed on disk since it was opened
// or since the last RecordFingerprint. Probe failures are logged and count as unmodified.
func (h *Handle) IsFileModified() bool {
	if h.db == nil {
		return false
	}
	info, err := h.fs.Stat(h.path)
	if err != nil {
		h.log.Debug("modification probe failed: %v", err)
		return false
	}
	return !info.ModTime().Equal(h.print.modTime) || info.Size() != h.print.size
}

// Meta reads the metadata record of the open store.
func (h *Handle) Meta() (Meta, error) {
	if h.db == nil {
		return Meta{}, ErrNotOpen
	}
	return ReadMeta(h.db)
}

// HasSchema reports whether the open store carries a metadata record.
func (h *Handle) HasSchema() (bool, error) {
	if h.db == nil {
		return false, ErrNotOpen
	}
	return HasSchema(h.db)
}

// Analyze updates the query planner statistics.
func (h *Handle) Analyze() error {
	if h.db == nil {
		return ErrNotOpen
	}
	_, err := h.db.Exec("ANALYZE")
	return errors.Wrap(err, "failed to analyze database")
}

// Vacuum rebuilds the database file.
func (h *Handle) Vacuum() error {
	if h.db == nil {
		return ErrNotOpen
	}
	_, err := h.db.Exec("VACUUM")
	return errors.Wrap(err, "failed to vacuum database")
}

// SQLite primary result codes for lock contention.
const (
	codeBusy   = 5
	codeLocked = 6
)

type coder interface{ Code() int }

func wrapLocked(err error, msg string) error {
	var c coder
	if errors.As(err, &c) {
		if code := c.Code() & 0xff; code == codeBusy || code == codeLocked {
			return errors.Wrap(ErrLocked, msg+": "+err.Error())
		}
	}
	return errors.Wrap(err, msg)
}
