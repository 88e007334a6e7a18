package metrics

import "github.com/prometheus/client_golang/prometheus"

// Keys for navstore metrics.
const (
	Fail      = "fail"
	Ok        = "ok"
	Cancelled = "cancelled"
)

// Collectors for the store manager.
var (
	RebuildsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "navstore_rebuilds_total",
		Help: "Cumulative number of store rebuilds by simulator and outcome.",
	}, []string{"simulator", "status"})
	RebuildDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "navstore_rebuild_duration_seconds",
		Help:    "Duration of store rebuilds, from temp creation to swap or discard.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"simulator"})
	SwapsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "navstore_swaps_total",
		Help: "Cumulative number of bulk role swaps by cause.",
	}, []string{"cause"})
	IncompatibleStores = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "navstore_incompatible_stores",
		Help: "Number of incompatible stores found by the last compatibility audit.",
	})
	FileErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "navstore_file_errors_total",
		Help: "Cumulative number of failed store file mutations by operation.",
	}, []string{"op"})
)

// Collectors returns all navstore collectors for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		RebuildsTotal,
		RebuildDurationSeconds,
		SwapsTotal,
		IncompatibleStores,
		FileErrorsTotal,
	}
}

// Register adds all collectors to reg, ignoring ones already registered.
func Register(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
