package rebuild

import (
	"context"
	"database/sql"
	"strings"

	"github.com/maloquacious/navstore/internal/simulator"
)

// ResultFlags report how a load went.
type ResultFlags uint32

const (
	// Aborted is set when the load was cancelled or the caller gave up.
	Aborted ResultFlags = 1 << iota
	// SupplementalDetected is set when the simulator carries a navdata update
	// from the supplemental source.
	SupplementalDetected
	// HadErrors is set when files were skipped because of read errors.
	HadErrors
)

func (f ResultFlags) Has(flag ResultFlags) bool { return f&flag != 0 }

func (f ResultFlags) String() string {
	var s []string
	if f.Has(Aborted) {
		s = append(s, "aborted")
	}
	if f.Has(SupplementalDetected) {
		s = append(s, "supplemental-detected")
	}
	if f.Has(HadErrors) {
		s = append(s, "errors")
	}
	if len(s) == 0 {
		return "none"
	}
	return strings.Join(s, "|")
}

// Options are handed to the loader unchanged.
type Options struct {
	Simulator         simulator.Type
	BasePath          string
	SceneryConfigPath string
	ReadInactive      bool
	ReadAddOnXml      bool
	Language          string
	DirExcludes       []string
	FileExcludes      []string
	AddOnDirExcludes  []string
}

// Counts are running totals of loaded objects.
type Counts struct {
	Files      int
	Airports   int
	VORs       int
	ILS        int
	NDBs       int
	Markers    int
	Waypoints  int
	Boundaries int
	Errors     int
}

// Progress is reported by a loader between units of work.
type Progress struct {
	FirstCall bool
	LastCall  bool
	Current   int
	Total     int
	Counts    Counts

	NewSceneryArea bool
	NewFile        bool
	SceneryTitle   string
	SceneryPath    string
	FilePath       string

	// NewOther is set for phases not tied to a file, described by OtherAction.
	NewOther    bool
	OtherAction string
}

// ProgressFunc receives progress and returns true to request cancellation.
type ProgressFunc func(Progress) bool

// Loader fills a freshly created temp store. It must stop at its next safe
// point once progress returns true, and report Aborted.
type Loader interface {
	Load(ctx context.Context, db *sql.DB, opts Options, progress ProgressFunc) (ResultFlags, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, db *sql.DB, opts Options, progress ProgressFunc) (ResultFlags, error)

func (f LoaderFunc) Load(ctx context.Context, db *sql.DB, opts Options, progress ProgressFunc) (ResultFlags, error) {
	return f(ctx, db, opts, progress)
}
