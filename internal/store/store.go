package store

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const (
	// DefaultDir is the name of the database directory below the settings directory.
	DefaultDir = "little_navmap_db"
	// DefaultPrefix and DefaultSuffix frame every store file name. They must not
	// change: existing installations are found by these names.
	DefaultPrefix = "little_navmap_"
	DefaultSuffix = ".sqlite"

	// CompilingName is the short name of the in-flight rebuild target.
	CompilingName = "compiling"

	journalSuffix = "-journal"
	backupSuffix  = ".bak"
)

// Naming builds store file paths by convention:
// <dir>/<prefix><short-name-lowercase><suffix>.
type Naming struct {
	Dir    string
	Prefix string
	Suffix string
}

// NewNaming returns the default naming convention rooted at dir.
func NewNaming(dir string) Naming {
	return Naming{Dir: dir, Prefix: DefaultPrefix, Suffix: DefaultSuffix}
}

// FileName returns the path of the store for a simulator short name.
func (n Naming) FileName(shortName string) string {
	return filepath.Join(n.Dir, n.Prefix+strings.ToLower(shortName)+n.Suffix)
}

// CompilingFileName returns the path of the rebuild temp store.
// It never collides with a simulator store.
func (n Naming) CompilingFileName() string {
	return n.FileName(CompilingName)
}

// BackupFileName returns the rolling backup path for a named interactive store.
func (n Naming) BackupFileName(name string) string {
	return filepath.Join(n.Dir, n.Prefix+strings.ToLower(name)+"_backup"+n.Suffix)
}

// JournalPath returns the rollback journal sidecar of a store file.
func JournalPath(path string) string {
	return path + journalSuffix
}

// SwapBackupPath returns where the live file is parked during a swap.
func SwapBackupPath(path string) string {
	return path + backupSuffix
}

// CheckExists verifies if a store file exists at the given path.
// Returns true if the store exists, false otherwise.
func CheckExists(fs afero.Fs, path string) (bool, error) {
	info, err := fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "failed to check store existence")
	}
	if info.IsDir() {
		return false, errors.Errorf("store path is a directory, expected file: %s", path)
	}
	return true, nil
}

// Exists is CheckExists for callers which treat any error as absence.
func Exists(fs afero.Fs, path string) bool {
	ok, _ := CheckExists(fs, path)
	return ok
}
