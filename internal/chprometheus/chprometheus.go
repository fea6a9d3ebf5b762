// Package chprometheus exports ClickHouse connection pool statistics as
// Prometheus gauges.
package chprometheus

import (
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/prometheus/client_golang/prometheus"
)

// StatGetter provides a method to get pool statistics.
type StatGetter interface {
	Stats() driver.Stats
}

// PoolCollector reads driver.Stats on every scrape and reports each counter
// as a gauge. It implements the prometheus.Collector interface.
type PoolCollector struct {
	getter      StatGetter
	idleDesc    *prometheus.Desc
	openDesc    *prometheus.Desc
	maxIdleDesc *prometheus.Desc
	maxOpenDesc *prometheus.Desc
}

var _ prometheus.Collector = (*PoolCollector)(nil)

// NewPoolCollector returns a collector over getter. The db_name label keeps
// collectors for separate pools apart in one registry.
func NewPoolCollector(getter StatGetter, dbName string) *PoolCollector {
	labels := prometheus.Labels{"db_name": dbName}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("skywatch_"+name, help, nil, labels)
	}
	return &PoolCollector{
		getter:      getter,
		idleDesc:    desc("conn_idle_current", "Current number of idle connections in the pool"),
		openDesc:    desc("conn_open_current", "Current number of open connections in the pool"),
		maxIdleDesc: desc("conn_max_idle_current", "Max number of idle connections in the pool"),
		maxOpenDesc: desc("conn_max_open_current", "Max number of open connections in the pool"),
	}
}

// Describe implements the prometheus.Collector interface.
func (c *PoolCollector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.idleDesc
	descs <- c.openDesc
	descs <- c.maxIdleDesc
	descs <- c.maxOpenDesc
}

// Collect implements the prometheus.Collector interface.
func (c *PoolCollector) Collect(metrics chan<- prometheus.Metric) {
	stats := c.getter.Stats()
	for _, g := range []struct {
		desc  *prometheus.Desc
		value float64
	}{
		{c.idleDesc, float64(stats.Idle)},
		{c.openDesc, float64(stats.Open)},
		{c.maxIdleDesc, float64(stats.MaxIdleConns)},
		{c.maxOpenDesc, float64(stats.MaxOpenConns)},
	} {
		metrics <- prometheus.MustNewConstMetric(g.desc, prometheus.GaugeValue, g.value)
	}
}
