package store

import "fmt"

// FileError is a failed mutation of a store file. It names the exact path and
// what the user can do about it.
type FileError struct {
	Op   string // remove, rename, copy
	Path string
	// To is the rename or copy destination.
	To  string
	Err error
}

func (e *FileError) Error() string {
	if e.To != "" {
		return fmt.Sprintf("cannot %s %q to %q: %v", e.Op, e.Path, e.To, e.Err)
	}
	return fmt.Sprintf("cannot %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Remedy suggests a manual fix.
func (e *FileError) Remedy() string {
	switch e.Op {
	case "remove":
		return fmt.Sprintf("Remove the file %q manually and restart the program.", e.Path)
	case "rename":
		return fmt.Sprintf("Make sure no other program uses %q and %q, then retry.", e.Path, e.To)
	default:
		return fmt.Sprintf("Check permissions and free space for %q, then retry.", e.To)
	}
}
