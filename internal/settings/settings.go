// Package settings persists application settings as a flat key/value
// document.
package settings

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Settings is the key/value contract used by the store manager.
// Getters return def when the key is missing or has the wrong type.
type Settings interface {
	String(key, def string) string
	SetString(key, value string)
	Int(key string, def int) int
	SetInt(key string, value int)
	Bool(key string, def bool) bool
	SetBool(key string, value bool)
	// Decode unmarshals a structured value into out and reports whether key was present.
	Decode(key string, out any) (bool, error)
	// Set stores a structured value.
	Set(key string, value any) error
	Save() error
}

// File is a Settings document stored as YAML.
type File struct {
	fs     afero.Fs
	path   string
	values map[string]yaml.Node
}

var _ Settings = (*File)(nil)

// Load reads path, or starts empty if it does not exist.
func Load(fs afero.Fs, path string) (*File, error) {
	f := &File{fs: fs, path: path, values: map[string]yaml.Node{}}

	b, err := afero.ReadFile(fs, path)
	if os.IsNotExist(err) {
		return f, nil
	} else if err != nil {
		return nil, errors.WithMessage(err, "reading settings file")
	}
	if err := yaml.Unmarshal(b, &f.values); err != nil {
		return nil, errors.WithMessagef(err, "parsing settings file %s", path)
	}
	if f.values == nil {
		f.values = map[string]yaml.Node{}
	}
	return f, nil
}

// Path returns the backing file.
func (f *File) Path() string { return f.path }

func (f *File) String(key, def string) string {
	var v string
	if ok, err := f.Decode(key, &v); !ok || err != nil {
		return def
	}
	return v
}

func (f *File) SetString(key, value string) { _ = f.Set(key, value) }

func (f *File) Int(key string, def int) int {
	var v int
	if ok, err := f.Decode(key, &v); !ok || err != nil {
		return def
	}
	return v
}

func (f *File) SetInt(key string, value int) { _ = f.Set(key, value) }

func (f *File) Bool(key string, def bool) bool {
	var v bool
	if ok, err := f.Decode(key, &v); !ok || err != nil {
		return def
	}
	return v
}

func (f *File) SetBool(key string, value bool) { _ = f.Set(key, value) }

func (f *File) Decode(key string, out any) (bool, error) {
	node, ok := f.values[key]
	if !ok {
		return false, nil
	}
	if err := node.Decode(out); err != nil {
		return true, errors.WithMessagef(err, "decoding setting %s", key)
	}
	return true, nil
}

func (f *File) Set(key string, value any) error {
	var node yaml.Node
	if err := node.Encode(value); err != nil {
		return errors.WithMessagef(err, "encoding setting %s", key)
	}
	f.values[key] = node
	return nil
}

// Keys returns all keys in sorted order.
func (f *File) Keys() []string {
	keys := make([]string, 0, len(f.values))
	for k := range f.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Save writes the document to a temporary file and renames it into place,
// so a crash never leaves a partial settings file behind.
func (f *File) Save() error {
	b, err := yaml.Marshal(f.values)
	if err != nil {
		return errors.WithMessage(err, "encoding settings")
	}
	if err := f.fs.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return errors.WithMessage(err, "creating settings directory")
	}
	next := f.path + ".next"
	if err := afero.WriteFile(f.fs, next, b, 0644); err != nil {
		return errors.WithMessage(err, "writing settings file")
	}
	if err := f.fs.Rename(next, f.path); err != nil {
		return errors.WithMessage(err, "renaming next => current")
	}
	return nil
}
