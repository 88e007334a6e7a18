package dbmanager

import (
	"fmt"
	"time"

	"github.com/maloquacious/navstore/internal/blend"
	"github.com/maloquacious/navstore/internal/simulator"
	"github.com/maloquacious/navstore/internal/store"
	"github.com/maloquacious/navstore/internal/store/sqlite"
	"github.com/pkg/errors"
)

// MaxAge after which a store should be reloaded.
const MaxAge = 60 * 24 * time.Hour

// CheckStaleness returns warnings about the primary store. Nothing is
// reported when the supplemental source serves all features.
func (m *Manager) CheckStaleness() []string {
	if m.mode == blend.UseSupplementalForAll {
		return nil
	}
	h := m.Handle(store.Primary)
	if h == nil {
		return nil
	}
	meta, err := h.Meta()
	if err != nil || !meta.HasData() {
		return nil
	}

	var msgs []string
	if meta.AppVersion.Less(m.cfg.AppVersion) {
		msgs = append(msgs, fmt.Sprintf("The store %s was built by an older application version %s.",
			h.Path(), meta.AppVersion.String()))
	}
	if age := m.Now().Sub(meta.LastBuildTime); age > MaxAge {
		msgs = append(msgs, fmt.Sprintf("The store %s was not reloaded for %d days.",
			h.Path(), int(age.Hours()/24)))
	}
	for _, msg := range msgs {
		m.log.Info("%s", msg)
	}
	return msgs
}

// CheckModified lists the primary and supplemental files changed on disk
// since they were opened and accepts the changes for the next check.
func (m *Manager) CheckModified() []string {
	var files []string
	for _, role := range []store.Role{store.Primary, store.Supplemental} {
		h := m.Handle(role)
		if h == nil || !h.IsFileModified() {
			continue
		}
		if len(files) == 0 || files[0] != h.Path() {
			files = append(files, h.Path())
		}
	}
	if len(files) > 0 {
		m.log.Warn("store files modified while open: %v", files)
		for _, role := range []store.Role{store.Primary, store.Supplemental} {
			if h := m.Handle(role); h != nil {
				h.RecordFingerprint()
			}
		}
	}
	return files
}

// StoreInfo describes the store of one type.
type StoreInfo struct {
	Type    simulator.Type
	Path    string
	State   store.StoreState
	Meta    sqlite.Meta
	Size    int64
	ModTime time.Time
	// Counts are rows per loader table.
	Counts map[string]int64
}

// Info inspects the store of t through a private read-only handle.
func (m *Manager) Info(t simulator.Type) (StoreInfo, error) {
	info := StoreInfo{Type: t, Path: m.fileName(t), State: store.StateMissing}
	if ok, err := store.CheckExists(m.fs, info.Path); err != nil {
		return info, newError(Retryable, "info", info.Path, err)
	} else if !ok {
		return info, nil
	}
	if fi, err := m.fs.Stat(info.Path); err == nil {
		info.Size, info.ModTime = fi.Size(), fi.ModTime()
	}

	h, err := sqlite.Open(m.fs, m.log, info.Path, sqlite.Options{Profile: sqlite.Interactive, ReadOnly: true})
	if err != nil {
		return info, newError(Retryable, "info", info.Path, err)
	}
	defer h.Close()

	info.Meta, err = h.Meta()
	switch {
	case errors.Is(err, sqlite.ErrNoSchema):
		info.State = store.StateUninitialized
		return info, nil
	case err != nil:
		return info, newError(Retryable, "info", info.Path, err)
	case !info.Meta.IsCompatible():
		info.State = store.StateVersionMismatch
		return info, nil
	}
	info.State = store.StateReady

	info.Counts = map[string]int64{}
	for _, table := range sqlite.CountedTables {
		n, err := sqlite.RowCount(h.DB(), table)
		if err != nil {
			return info, newError(Retryable, "info", info.Path, err)
		}
		info.Counts[table] = n
	}
	return info, nil
}
