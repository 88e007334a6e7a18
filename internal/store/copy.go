package store

import (
	"io"
	"os"

	"github.com/spf13/afero"
)

// CopyFile copies src to dst, replacing dst. A partial dst is removed on failure.
func CopyFile(fs afero.Fs, src, dst string) error {
	in, err := fs.Open(src)
	if err != nil {
		return &FileError{Op: "copy", Path: src, To: dst, Err: err}
	}
	defer in.Close()

	out, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return &FileError{Op: "copy", Path: src, To: dst, Err: err}
	}
	if _, err = io.Copy(out, in); err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = fs.Remove(dst)
		return &FileError{Op: "copy", Path: src, To: dst, Err: err}
	}
	return nil
}

// RollFile moves path to path.1, dropping an older path.1. A missing path
// is not an error.
func RollFile(fs afero.Fs, path string) error {
	ok, err := CheckExists(fs, path)
	if err != nil || !ok {
		return err
	}
	rolled := path + ".1"
	if err := fs.Remove(rolled); err != nil && !os.IsNotExist(err) {
		return &FileError{Op: "remove", Path: rolled, Err: err}
	}
	if err := fs.Rename(path, rolled); err != nil {
		return &FileError{Op: "rename", Path: path, To: rolled, Err: err}
	}
	return nil
}
