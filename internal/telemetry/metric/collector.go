package metric

import "github.com/prometheus/client_golang/prometheus"

// StoreStats is the view of the store the collector needs.
type StoreStats interface {
	Len() int
	Poisoned() bool
}

// StoreCollector reports store statistics at scrape time.
type StoreCollector struct {
	store StoreStats

	keys     *prometheus.Desc
	poisoned *prometheus.Desc
}

// NewStoreCollector creates a collector for store.
func NewStoreCollector(store StoreStats) *StoreCollector {
	return &StoreCollector{
		store: store,
		keys: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "keys"),
			"Number of keys in the store.",
			nil, nil,
		),
		poisoned: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "poisoned"),
			"1 if the store lock is poisoned, else 0.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.keys
	ch <- c.poisoned
}

// Collect implements prometheus.Collector.
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.keys, prometheus.GaugeValue, float64(c.store.Len()))

	var poisoned float64
	if c.store.Poisoned() {
		poisoned = 1
	}
	ch <- prometheus.MustNewConstMetric(c.poisoned, prometheus.GaugeValue, poisoned)
}
