package dbmanager

import (
	"context"
	"slices"

	"github.com/maloquacious/navstore/internal/blend"
	"github.com/maloquacious/navstore/internal/metrics"
	"github.com/maloquacious/navstore/internal/rebuild"
	"github.com/maloquacious/navstore/internal/simulator"
	"github.com/maloquacious/navstore/internal/store"
	"github.com/pkg/errors"
)

// RebuildResult is returned by Rebuild.
type RebuildResult struct {
	rebuild.Result
	// SuggestedMode is the blend mode recommended for the rebuilt store.
	// It equals the current mode if nothing is to be changed.
	SuggestedMode blend.Mode
}

// HasSuggestion reports whether a different blend mode is recommended.
func (r RebuildResult) HasSuggestion(current blend.Mode) bool { return r.SuggestedMode != current }

// roleSwapper closes the bulk roles around the file replacement.
type roleSwapper struct {
	m     *Manager
	event SwapEvent
}

func (s *roleSwapper) Release() error {
	s.m.notifyPre(s.event)
	return s.m.CloseAll()
}

func (s *roleSwapper) Reacquire() error {
	if err := s.m.OpenAll(); err != nil {
		return err
	}
	metrics.SwapsTotal.WithLabelValues(CauseRebuild).Inc()
	s.m.notifyPost(s.event)
	return nil
}

// LoaderOptions returns what a rebuild of t would read.
func (m *Manager) LoaderOptions(t simulator.Type) rebuild.Options {
	e := m.registry.Entry(t)
	return rebuild.Options{
		Simulator:         t,
		BasePath:          e.BasePath,
		SceneryConfigPath: e.SceneryConfigPath,
		ReadInactive:      m.readInactive,
		ReadAddOnXml:      m.readAddOnXml,
	}
}

// Rebuild reloads the store of t with the configured loader and swaps it in.
// On failure the live store is untouched and Rebuild may be called again.
func (m *Manager) Rebuild(ctx context.Context, t simulator.Type, progress rebuild.ProgressFunc) (RebuildResult, error) {
	result := RebuildResult{SuggestedMode: m.mode}
	if err := m.checkIdle("rebuild"); err != nil {
		return result, err
	}
	if m.cfg.Loader == nil {
		return result, newError(Retryable, "rebuild", "", errors.New("no loader configured"))
	}
	if !slices.Contains(simulator.Simulators, t) {
		return result, newError(Retryable, "rebuild", "", errors.Errorf("%s is not a simulator", t))
	}

	opts := m.LoaderOptions(t)
	if err := rebuild.Validate(m.fs, opts); err != nil {
		return result, newError(Retryable, "validate", opts.BasePath, err)
	}

	m.state = Rebuilding
	defer func() {
		if m.state == Rebuilding {
			m.state = Ready
		}
	}()

	job := rebuild.NewJob(t, m.fileName(t), m.naming.CompilingFileName(), opts)
	m.log.Info("rebuild %s of %s into %s", job.ID, t.ShortName(), job.LivePath)
	swap := &roleSwapper{m: m, event: SwapEvent{Cause: CauseRebuild, Roles: store.BulkRoles}}

	res, err := m.pipeline.Run(ctx, job, m.cfg.Loader, progress, swap)
	result.Result = res
	m.registry.RefreshDatabaseFlags(m.fileName)
	if err != nil {
		kind := Retryable
		if errors.Is(err, rebuild.ErrCancelled) {
			kind = Ignorable
		}
		return result, newError(kind, "rebuild "+t.ShortName(), job.LivePath, err)
	}

	m.loading = t
	result.SuggestedMode = suggestMode(t, m.mode, res.Flags)
	if serr := m.saveState(); serr != nil {
		m.log.Warn("%v", serr)
	}
	return result, nil
}

// suggestMode recommends the blend mode for a freshly loaded store.
// MSFS with a navdata update wants mixed, without it off. Everywhere else
// using the supplemental source for all features hides airport details.
func suggestMode(t simulator.Type, mode blend.Mode, flags rebuild.ResultFlags) blend.Mode {
	if flags.Has(rebuild.Aborted) {
		return mode
	}
	if t == simulator.MSFS {
		if flags.Has(rebuild.SupplementalDetected) {
			return blend.Mixed
		}
		return blend.Off
	}
	if mode == blend.UseSupplementalForAll {
		return blend.Mixed
	}
	return mode
}
