package sqlite

import (
	"database/sql"

	"github.com/maloquacious/semver"
	"github.com/pkg/errors"
)

// initialSchema is the empty navigation schema. Loaders fill these tables;
// the manager only relies on metadata and script.
const initialSchema = `
CREATE TABLE IF NOT EXISTS metadata (
    db_version_major INTEGER NOT NULL,
    db_version_minor INTEGER NOT NULL,
    db_version_patch INTEGER NOT NULL,
    app_version_major INTEGER NOT NULL,
    app_version_minor INTEGER NOT NULL,
    app_version_patch INTEGER NOT NULL,
    app_version_pre TEXT NOT NULL DEFAULT '',
    app_version_build TEXT NOT NULL DEFAULT '',
    last_load_timestamp INTEGER NOT NULL DEFAULT 0,
    airac_cycle TEXT NOT NULL DEFAULT '',
    data_source TEXT NOT NULL DEFAULT '',
    has_script INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS script (
    script_id INTEGER PRIMARY KEY,
    statement TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS scenery_area (
    scenery_area_id INTEGER PRIMARY KEY,
    title TEXT NOT NULL,
    local_path TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS bgl_file (
    bgl_file_id INTEGER PRIMARY KEY,
    scenery_area_id INTEGER NOT NULL,
    filepath TEXT NOT NULL,
    size INTEGER NOT NULL,
    file_modification_time INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS airport (airport_id INTEGER PRIMARY KEY, file_id INTEGER, ident TEXT);
CREATE TABLE IF NOT EXISTS vor (vor_id INTEGER PRIMARY KEY, file_id INTEGER, ident TEXT);
CREATE TABLE IF NOT EXISTS ils (ils_id INTEGER PRIMARY KEY, file_id INTEGER, ident TEXT);
CREATE TABLE IF NOT EXISTS ndb (ndb_id INTEGER PRIMARY KEY, file_id INTEGER, ident TEXT);
CREATE TABLE IF NOT EXISTS marker (marker_id INTEGER PRIMARY KEY, file_id INTEGER, ident TEXT);
CREATE TABLE IF NOT EXISTS waypoint (waypoint_id INTEGER PRIMARY KEY, file_id INTEGER, ident TEXT);
` + airspaceSchema

const airspaceSchema = `
CREATE TABLE IF NOT EXISTS boundary (
    boundary_id INTEGER PRIMARY KEY,
    file_id INTEGER,
    type TEXT,
    name TEXT
);
`

// CountedTables are the loader tables reported by store info.
var CountedTables = []string{"bgl_file", "airport", "vor", "ils", "ndb", "marker", "waypoint", "boundary"}

// InitSchema creates the empty schema and its metadata record in a single transaction.
func InitSchema(db *sql.DB, appVersion semver.Version) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err = tx.Exec(initialSchema); err != nil {
		return errors.Wrap(err, "failed to create schema")
	}
	if err = WriteMeta(tx, Meta{SchemaVersion: CurrentSchema, AppVersion: appVersion}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// CreateAirspaceSchema creates the boundary table only.
func CreateAirspaceSchema(db *sql.DB) error {
	_, err := db.Exec(airspaceSchema)
	return errors.Wrap(err, "failed to create airspace schema")
}

// RunPreparationScript executes the statements queued in the script table,
// empties it and clears the metadata flag.
func RunPreparationScript(db *sql.DB) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT statement FROM script ORDER BY script_id`)
	if err != nil {
		return 0, errors.Wrap(err, "failed to read preparation script")
	}
	var stmts []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			rows.Close()
			return 0, errors.Wrap(err, "failed to read preparation script")
		}
		stmts = append(stmts, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, errors.Wrap(err, "failed to read preparation script")
	}

	for i, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return i, errors.Wrapf(err, "preparation statement %d failed", i+1)
		}
	}
	if _, err := tx.Exec(`DELETE FROM script`); err != nil {
		return 0, errors.Wrap(err, "failed to clear preparation script")
	}
	if _, err := tx.Exec(`UPDATE metadata SET has_script = 0`); err != nil {
		return 0, errors.Wrap(err, "failed to clear script flag")
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit transaction")
	}
	return len(stmts), nil
}

// RowCount returns the number of rows in table, or zero if it does not exist.
func RowCount(q queryer, table string) (int64, error) {
	ok, err := hasTable(q, table)
	if err != nil || !ok {
		return 0, err
	}
	var n int64
	// Table names come from CountedTables, never from input.
	if err := q.QueryRow(`SELECT COUNT(*) FROM "` + table + `"`).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "failed to count %s", table)
	}
	return n, nil
}

func hasTable(q queryer, name string) (bool, error) {
	var count int
	err := q.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&count)
	if err != nil {
		return false, errors.Wrapf(err, "failed to check %s table", name)
	}
	return count > 0, nil
}
