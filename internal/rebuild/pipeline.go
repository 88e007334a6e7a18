package rebuild

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/maloquacious/navstore/internal/logger"
	"github.com/maloquacious/navstore/internal/metrics"
	"github.com/maloquacious/navstore/internal/simulator"
	"github.com/maloquacious/navstore/internal/store"
	"github.com/maloquacious/navstore/internal/store/sqlite"
	"github.com/maloquacious/semver"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

var (
	// ErrAlreadyRunning is returned when a rebuild is started while one is in progress.
	ErrAlreadyRunning = errors.New("a rebuild is already running")
	// ErrCancelled is returned when the caller cancelled the rebuild.
	ErrCancelled = errors.New("rebuild cancelled")
)

// State of the pipeline.
type State int

const (
	Idle State = iota
	PreparingTemp
	Loading
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PreparingTemp:
		return "preparing-temp"
	case Loading:
		return "loading"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Swapper releases and reacquires the handles on the live file around the
// file replacement. Release is called after the temp store is closed, Reacquire
// is called whenever Release was, even if the replacement failed.
type Swapper interface {
	Release() error
	Reacquire() error
}

// Job describes one rebuild.
type Job struct {
	ID        uuid.UUID
	Simulator simulator.Type
	// LivePath is replaced on success.
	LivePath string
	// TempPath receives the new data.
	TempPath string
	Options  Options
}

// Result of a finished rebuild.
type Result struct {
	JobID    uuid.UUID
	Flags    ResultFlags
	Meta     sqlite.Meta
	Duration time.Duration
	// Report lists non-fatal loader errors.
	Report []string
	// Progress is the last progress seen from the loader.
	Progress Progress
}

// Pipeline builds a store into a temp file and swaps it in atomically.
type Pipeline struct {
	fs         afero.Fs
	log        logger.Logger
	appVersion semver.Version
	cacheKb    int

	// Interval between forwarded progress updates.
	Interval time.Duration
	// Now is used for the build timestamp.
	Now func() time.Time
	// OnState is called on every state transition.
	OnState func(State)

	state State
}

func NewPipeline(fs afero.Fs, log logger.Logger, appVersion semver.Version, cacheKb int) *Pipeline {
	if log == nil {
		log = logger.Discard
	}
	return &Pipeline{
		fs:         fs,
		log:        log,
		appVersion: appVersion,
		cacheKb:    cacheKb,
		Interval:   DefaultProgressInterval,
		Now:        time.Now,
	}
}

func (p *Pipeline) State() State { return p.state }

// Running reports whether a rebuild is in progress.
func (p *Pipeline) Running() bool { return p.state == PreparingTemp || p.state == Loading }

func (p *Pipeline) setState(s State) {
	p.state = s
	if p.OnState != nil {
		p.OnState(s)
	}
}

// NewJob prepares a job with a fresh id.
func NewJob(sim simulator.Type, livePath, tempPath string, opts Options) *Job {
	return &Job{ID: uuid.New(), Simulator: sim, LivePath: livePath, TempPath: tempPath, Options: opts}
}

// Run executes job. On any failure before the swap the live file is left
// untouched and the temp file and its journal are removed. The swapper is
// only used once loading succeeded.
func (p *Pipeline) Run(ctx context.Context, job *Job, loader Loader, progress ProgressFunc, swap Swapper) (Result, error) {
	if p.Running() {
		return Result{}, ErrAlreadyRunning
	}
	started := time.Now()
	result := Result{JobID: job.ID}
	log := p.log.With(logger.Fields{"job": job.ID.String(), "simulator": job.Simulator.ShortName()})

	sim := job.Simulator.ShortName()
	defer func() {
		result.Duration = time.Since(started)
		metrics.RebuildDurationSeconds.WithLabelValues(sim).Observe(result.Duration.Seconds())
		p.setState(Idle)
	}()

	p.setState(PreparingTemp)
	if err := p.removeStale(log, job.TempPath); err != nil {
		p.setState(Failed)
		metrics.RebuildsTotal.WithLabelValues(sim, metrics.Fail).Inc()
		return result, err
	}
	temp, err := sqlite.Open(p.fs, log, job.TempPath, sqlite.Options{
		Profile:    sqlite.Bulk,
		Schema:     sqlite.SchemaNav,
		AppVersion: p.appVersion,
		CacheKb:    p.cacheKb,
	})
	if err != nil {
		p.setState(Failed)
		p.discard(log, job.TempPath)
		metrics.RebuildsTotal.WithLabelValues(sim, metrics.Fail).Inc()
		return result, errors.Wrap(err, "cannot create temp store")
	}

	p.setState(Loading)
	log.Info("loading into %s", job.TempPath)
	th := newThrottle(ctx, p.Interval, progress)
	flags, err := p.load(ctx, temp, job, loader, th)
	result.Flags = flags
	result.Progress = th.last
	if err == nil && (th.cancelled || flags.Has(Aborted) || ctx.Err() != nil) {
		result.Flags |= Aborted
		err = ErrCancelled
	}
	var loadErrs *LoadErrors
	if errors.As(err, &loadErrs) {
		result.Report = loadErrs.Report()
		if loadErrs.Cause == nil {
			// Skipped files only, the store is usable.
			result.Flags |= HadErrors
			log.Warn("%d scenery areas reported errors", len(loadErrs.Areas))
			err = nil
		}
	}
	if err == nil {
		result.Meta, err = p.finish(temp)
	}
	if cerr := temp.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		p.setState(Failed)
		p.discard(log, job.TempPath)
		status := metrics.Fail
		if errors.Is(err, ErrCancelled) {
			status = metrics.Cancelled
			log.Info("rebuild cancelled")
		} else {
			log.Error("rebuild failed: %v", err)
		}
		metrics.RebuildsTotal.WithLabelValues(sim, status).Inc()
		return result, err
	}

	p.setState(Succeeded)
	if err := p.swap(log, job, swap); err != nil {
		p.discard(log, job.TempPath)
		metrics.RebuildsTotal.WithLabelValues(sim, metrics.Fail).Inc()
		return result, err
	}
	metrics.RebuildsTotal.WithLabelValues(sim, metrics.Ok).Inc()
	log.Info("rebuild done, flags %s", result.Flags)
	return result, nil
}

// load calls the loader, turning a panic into an error.
func (p *Pipeline) load(ctx context.Context, temp *sqlite.Handle, job *Job, loader Loader, th *throttle) (flags ResultFlags, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("loader panic: %v", r)
		}
	}()
	return loader.Load(ctx, temp.DB(), job.Options, th.progress)
}

// finish stamps the metadata of a completed temp store.
func (p *Pipeline) finish(temp *sqlite.Handle) (sqlite.Meta, error) {
	view := sqlite.NewMetaView(temp)
	defer view.Detach()
	m, err := view.Read()
	if err != nil {
		return m, errors.Wrap(err, "cannot read temp store metadata")
	}
	m.SchemaVersion = sqlite.CurrentSchema
	m.AppVersion = p.appVersion
	m.LastBuildTime = p.Now().UTC()
	if err := view.Write(m); err != nil {
		return m, errors.Wrap(err, "cannot write temp store metadata")
	}
	if err := temp.Analyze(); err != nil {
		return m, err
	}
	return m, nil
}

// swap replaces the live file with the temp file. The live file is moved
// aside first and restored if the temp file cannot take its place.
func (p *Pipeline) swap(log logger.Logger, job *Job, swap Swapper) error {
	if swap != nil {
		if err := swap.Release(); err != nil {
			if rerr := swap.Reacquire(); rerr != nil {
				log.Error("cannot reacquire live store: %v", rerr)
			}
			return errors.Wrap(err, "cannot release live store")
		}
	}

	err := p.replace(log, job.TempPath, job.LivePath)

	if swap != nil {
		if rerr := swap.Reacquire(); rerr != nil && err == nil {
			err = errors.Wrap(rerr, "cannot reopen live store")
		}
	}
	return err
}

func (p *Pipeline) replace(log logger.Logger, temp, live string) error {
	backup := store.SwapBackupPath(live)
	_ = p.remove(log, backup)

	exists, err := store.CheckExists(p.fs, live)
	if err != nil {
		return err
	}
	if exists {
		if err := p.fs.Rename(live, backup); err != nil {
			metrics.FileErrorsTotal.WithLabelValues("rename").Inc()
			return &store.FileError{Op: "rename", Path: live, To: backup, Err: err}
		}
	}
	// The old journal must not be applied to the new file.
	_ = p.remove(log, store.JournalPath(live))

	if err := p.fs.Rename(temp, live); err != nil {
		metrics.FileErrorsTotal.WithLabelValues("rename").Inc()
		if exists {
			if rerr := p.fs.Rename(backup, live); rerr != nil {
				log.Error("cannot restore %s from %s: %v", live, backup, rerr)
			}
		}
		return &store.FileError{Op: "rename", Path: temp, To: live, Err: err}
	}
	if exists {
		_ = p.remove(log, backup)
	}
	_ = p.remove(log, store.JournalPath(temp))
	log.Info("replaced %s", live)
	return nil
}

// removeStale deletes leftovers of an earlier rebuild. A temp file which
// cannot be removed aborts the rebuild since it would be reused.
func (p *Pipeline) removeStale(log logger.Logger, temp string) error {
	for _, path := range []string{temp, store.JournalPath(temp)} {
		if err := p.remove(log, path); err != nil && store.Exists(p.fs, path) {
			return &store.FileError{Op: "remove", Path: path, Err: err}
		}
	}
	return nil
}

// discard removes the temp file and its journal, logging failures.
func (p *Pipeline) discard(log logger.Logger, temp string) {
	_ = p.remove(log, temp)
	_ = p.remove(log, store.JournalPath(temp))
}

// remove deletes path if present. Failures are logged.
func (p *Pipeline) remove(log logger.Logger, path string) error {
	if err := p.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		metrics.FileErrorsTotal.WithLabelValues("remove").Inc()
		log.Warn("cannot remove %s: %v", path, err)
		return err
	}
	return nil
}
