package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/maloquacious/navstore/internal/blend"
	"github.com/maloquacious/navstore/internal/dbmanager"
	"github.com/maloquacious/navstore/internal/loader/dirscan"
	"github.com/maloquacious/navstore/internal/logger"
	"github.com/maloquacious/navstore/internal/metrics"
	"github.com/maloquacious/navstore/internal/rebuild"
	"github.com/maloquacious/navstore/internal/settings"
	"github.com/maloquacious/navstore/internal/simulator"
	"github.com/maloquacious/navstore/internal/store"
	"github.com/maloquacious/semver"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	version = semver.Version{Minor: 1, PreRelease: "alpha", Build: semver.Commit()}
)

var (
	dbDir        string
	settingsPath string
	appDir       string
	homeDir      string
	verbose      bool
	assumeYes    bool
	withMetrics  bool
	showSettings bool
	watch        time.Duration
	readInactive bool
	noAddOnXml   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "navstore",
		Short:         "Navigation store manager",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	configDir, _ := os.UserConfigDir()
	home, _ := os.UserHomeDir()
	exe, _ := os.Executable()

	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbDir, "db-dir", filepath.Join(configDir, "navstore", store.DefaultDir), "directory holding the store files")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", filepath.Join(configDir, "navstore", "settings.yaml"), "settings file")
	rootCmd.PersistentFlags().StringVar(&appDir, "app-dir", filepath.Dir(exe), "application directory searched for a bundled navdata store")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", home, "directory below which simulators are searched")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug messages")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "answer every question with yes")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.String())
		},
	}

	// db command group
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Store management commands",
	}

	dbStatusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show simulators, stores and the current selection",
		RunE:  runDBStatus,
	}
	dbStatusCmd.Flags().BoolVar(&withMetrics, "metrics", false, "print collected metrics")
	dbStatusCmd.Flags().BoolVar(&showSettings, "show-settings", false, "print the saved settings")

	dbAuditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Find and erase stores with an incompatible schema",
		RunE:  runDBAudit,
	}
	dbRebuildCmd := &cobra.Command{
		Use:   "rebuild SIMULATOR",
		Short: "Reload the store of a simulator from its scenery",
		Args:  cobra.ExactArgs(1),
		RunE:  runDBRebuild,
	}
	dbRebuildCmd.Flags().BoolVar(&readInactive, "inactive", false, "read disabled scenery areas")
	dbRebuildCmd.Flags().BoolVar(&noAddOnXml, "no-addon-xml", false, "skip add-on.xml packages")

	dbBlendCmd := &cobra.Command{
		Use:   "blend all|mixed|off",
		Short: "Select how navdata is blended with the simulator store",
		Args:  cobra.ExactArgs(1),
		RunE:  runDBBlend,
	}
	dbSimCmd := &cobra.Command{
		Use:   "sim SIMULATOR",
		Short: "Select the simulator whose store is used",
		Args:  cobra.ExactArgs(1),
		RunE:  runDBSim,
	}
	dbCheckCmd := &cobra.Command{
		Use:   "check",
		Short: "Warn about outdated stores, and with --watch about stores modified by other programs",
		RunE:  runDBCheck,
	}
	dbCheckCmd.Flags().DurationVar(&watch, "watch", 0, "keep the stores open and report modifications at this interval")
	dbPrepareCmd := &cobra.Command{
		Use:   "prepare-nav",
		Short: "Install a newer bundled navdata store and run its preparation script",
		RunE:  runDBPrepareNav,
	}

	dbCmd.AddCommand(dbStatusCmd, dbAuditCmd, dbRebuildCmd, dbBlendCmd, dbSimCmd, dbCheckCmd, dbPrepareCmd)
	rootCmd.AddCommand(versionCmd, dbCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var e *dbmanager.Error
		if errors.As(err, &e) {
			if remedy := e.Remedy(); remedy != "" {
				fmt.Fprintln(os.Stderr, remedy)
			}
		}
		os.Exit(1)
	}
}

// startup selects what is opened before a command runs.
type startup struct {
	interactive bool
	audit       bool
	prepareNav  bool
	open        bool
}

// openManager runs the startup sequence: init, audit, navdata preparation
// and opening the bulk roles.
func openManager(s startup) (*dbmanager.Manager, error) {
	lg := logger.Default
	if verbose {
		lg = logger.New(os.Stderr, log.DebugLevel)
	}
	fs := afero.NewOsFs()

	cfg, err := settings.Load(fs, settingsPath)
	if err != nil {
		return nil, err
	}
	m := dbmanager.New(fs, lg, cfg, dbmanager.Config{
		Dir:           dbDir,
		AppDir:        appDir,
		AppVersion:    version,
		Locations:     simulator.DefaultLocations(homeDir),
		Loader:        dirscan.New(fs, lg),
		Confirmer:     &promptConfirmer{in: os.Stdin, out: os.Stdout, yes: assumeYes},
		NoInteractive: !s.interactive,
	})
	if err := m.Init(); err != nil {
		return nil, err
	}
	if s.audit {
		if _, err := m.AuditCompatibility(); err != nil {
			m.Shutdown()
			return nil, err
		}
	}
	if s.prepareNav {
		if _, err := m.PrepareNavdata(); err != nil {
			m.Shutdown()
			return nil, err
		}
	}
	if s.open {
		if err := m.OpenAll(); err != nil {
			m.Shutdown()
			return nil, err
		}
	}
	return m, nil
}

func runDBStatus(cmd *cobra.Command, args []string) error {
	m, err := openManager(startup{})
	if err != nil {
		return err
	}
	defer m.Shutdown()

	fmt.Printf("store directory  %s\n", m.Naming().Dir)
	fmt.Printf("simulator        %s\n", m.Simulator())
	fmt.Printf("loading          %s\n", m.LoadingSimulator())
	fmt.Printf("blend mode       %s\n", m.BlendMode())
	fmt.Printf("installed        %s\n", shortNames(m.Registry().Installed()))
	fmt.Printf("with store       %s\n", shortNames(m.Registry().HavingDatabase()))
	fmt.Println()

	for _, t := range simulator.All {
		e := m.Registry().Entry(t)
		info, err := m.Info(t)
		if err != nil {
			fmt.Printf("%-10s %v\n", t.ShortName(), err)
			continue
		}
		installed := "-"
		if e.Installed {
			installed = e.BasePath
		}
		fmt.Printf("%-10s %-13s installed: %s\n", t.ShortName(), info.State, installed)
		if info.State == store.StateMissing {
			continue
		}
		fmt.Printf("           %s, %s, modified %s\n", info.Path, humanize.Bytes(uint64(info.Size)), humanize.Time(info.ModTime))
		if info.Meta.HasData() {
			fmt.Printf("           built %s by %s", humanize.Time(info.Meta.LastBuildTime), info.Meta.AppVersion.String())
			if info.Meta.DataCycle != "" {
				fmt.Printf(", cycle %s", info.Meta.DataCycle)
			}
			fmt.Println()
		}
		var counts []string
		for _, table := range []string{"airport", "vor", "ndb", "waypoint", "boundary"} {
			if n := info.Counts[table]; n > 0 {
				counts = append(counts, fmt.Sprintf("%s %s", humanize.Comma(n), table))
			}
		}
		if len(counts) > 0 {
			fmt.Printf("           %s\n", strings.Join(counts, ", "))
		}
	}

	fmt.Println()
	for _, role := range store.InteractiveRoles {
		path := m.InteractiveFileName(role)
		state := "missing"
		if store.Exists(afero.NewOsFs(), path) {
			state = "present"
		}
		fmt.Printf("%-22s %-8s %s\n", role, state, path)
	}

	if showSettings {
		if err := printSettings(); err != nil {
			return err
		}
	}
	if withMetrics {
		return printMetrics()
	}
	return nil
}

func shortNames(types []simulator.Type) string {
	if len(types) == 0 {
		return "-"
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.ShortName()
	}
	return strings.Join(names, ", ")
}

func printSettings() error {
	s, err := settings.Load(afero.NewOsFs(), settingsPath)
	if err != nil {
		return err
	}
	fmt.Printf("\n%s\n", s.Path())
	for _, key := range s.Keys() {
		var v any
		if _, err := s.Decode(key, &v); err != nil {
			return err
		}
		fmt.Printf("  %-28s %v\n", key, v)
	}
	return nil
}

func printMetrics() error {
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	fmt.Println()
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			var labels []string
			for _, l := range metric.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			value := metric.GetCounter().GetValue() + metric.GetGauge().GetValue()
			if h := metric.GetHistogram(); h != nil {
				value = float64(h.GetSampleCount())
			}
			fmt.Printf("%s{%s} %g\n", f.GetName(), strings.Join(labels, ","), value)
		}
	}
	return nil
}

func runDBAudit(cmd *cobra.Command, args []string) error {
	m, err := openManager(startup{})
	if err != nil {
		return err
	}
	defer m.Shutdown()

	res, err := m.AuditCompatibility()
	if err != nil {
		return err
	}
	for _, path := range res.Initialized {
		fmt.Printf("initialized %s\n", path)
	}
	for _, inc := range res.Incompatible {
		fmt.Printf("erased %s\n", inc)
	}
	if len(res.Incompatible) == 0 {
		fmt.Println("all stores are compatible")
	}
	return nil
}

func runDBRebuild(cmd *cobra.Command, args []string) error {
	t, err := parseSimulator(args[0])
	if err != nil {
		return err
	}
	m, err := openManager(startup{interactive: true, audit: true, open: true})
	if err != nil {
		return err
	}
	defer m.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m.SetLoadingOptions(readInactive, !noAddOnXml)
	started := time.Now()
	res, err := m.Rebuild(ctx, t, printProgress)
	for _, line := range res.Report {
		fmt.Println(line)
	}
	if err != nil {
		return err
	}
	c := res.Progress.Counts
	fmt.Printf("loaded %s files, %s airports, %s navaids, %s waypoints in %s\n",
		humanize.Comma(int64(c.Files)), humanize.Comma(int64(c.Airports)),
		humanize.Comma(int64(c.VORs+c.NDBs+c.ILS+c.Markers)), humanize.Comma(int64(c.Waypoints)),
		time.Since(started).Round(time.Millisecond))
	if res.HasSuggestion(m.BlendMode()) {
		fmt.Printf("consider switching the blend mode to %q: navstore db blend %s\n", res.SuggestedMode, res.SuggestedMode)
	}
	return nil
}

func printProgress(p rebuild.Progress) bool {
	switch {
	case p.FirstCall:
		fmt.Printf("reading %s files\n", humanize.Comma(int64(p.Total)))
	case p.NewSceneryArea:
		fmt.Printf("[%d/%d] %s\n", p.Current, p.Total, p.SceneryTitle)
	case p.NewOther:
		fmt.Printf("%s\n", p.OtherAction)
	}
	return false
}

func runDBBlend(cmd *cobra.Command, args []string) error {
	mode, ok := blend.ParseMode(strings.ToLower(args[0]))
	if !ok {
		return errors.Errorf("unknown blend mode %q", args[0])
	}
	m, err := openManager(startup{audit: true, open: true})
	if err != nil {
		return err
	}
	defer m.Shutdown()

	if err := m.SwitchBlendMode(mode); err != nil {
		return err
	}
	fmt.Printf("primary store %s\n", m.Files().Primary)
	return nil
}

func runDBSim(cmd *cobra.Command, args []string) error {
	t, err := parseSimulator(args[0])
	if err != nil {
		return err
	}
	m, err := openManager(startup{audit: true, open: true})
	if err != nil {
		return err
	}
	defer m.Shutdown()

	if err := m.SwitchSimulator(t); err != nil {
		return err
	}
	fmt.Printf("primary store %s\n", m.Files().Primary)
	return nil
}

func runDBCheck(cmd *cobra.Command, args []string) error {
	m, err := openManager(startup{audit: true, open: true})
	if err != nil {
		return err
	}
	defer m.Shutdown()

	msgs := m.CheckStaleness()
	for _, msg := range msgs {
		fmt.Println(msg)
	}
	if len(msgs) == 0 {
		fmt.Println("stores are up to date")
	}
	if watch <= 0 {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ticker := time.NewTicker(watch)
	defer ticker.Stop()
	fmt.Printf("watching %s and %s\n", m.Files().Primary, m.Files().Supplemental)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, path := range m.CheckModified() {
				fmt.Printf("%s modified by another program, reload or restart to use it\n", path)
			}
		}
	}
}

func runDBPrepareNav(cmd *cobra.Command, args []string) error {
	m, err := openManager(startup{audit: true})
	if err != nil {
		return err
	}
	defer m.Shutdown()

	copied, err := m.PrepareNavdata()
	if err != nil {
		return err
	}
	if copied {
		fmt.Printf("installed %s\n", m.BundledFileName())
	} else {
		fmt.Println("navdata store is current")
	}
	return nil
}

func parseSimulator(s string) (simulator.Type, error) {
	t := simulator.ParseShortName(strings.ToUpper(s))
	if t == simulator.None || t == simulator.Navigraph {
		return t, errors.Errorf("unknown simulator %q", s)
	}
	return t, nil
}
