package chprometheus_test

import (
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/skywatch/skywatch/internal/chprometheus"
)

type fixedStats struct {
	stats driver.Stats
}

func (f *fixedStats) Stats() driver.Stats {
	return f.stats
}

func TestPoolCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()

	analytics := &fixedStats{stats: driver.Stats{
		Idle: 5, Open: 10, MaxIdleConns: 20, MaxOpenConns: 50,
	}}
	if err := reg.Register(chprometheus.NewPoolCollector(analytics, "analytics")); err != nil {
		t.Fatal(err)
	}

	replica := &fixedStats{stats: driver.Stats{
		Idle: 3, Open: 8, MaxIdleConns: 15, MaxOpenConns: 40,
	}}
	if err := reg.Register(chprometheus.NewPoolCollector(replica, "replica")); err != nil {
		t.Fatal(err)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]bool{
		"skywatch_conn_idle_current":     false,
		"skywatch_conn_open_current":     false,
		"skywatch_conn_max_idle_current": false,
		"skywatch_conn_max_open_current": false,
	}

	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; !ok {
			t.Errorf("unexpected metric family %s", mf.GetName())
			continue
		}
		want[mf.GetName()] = true

		metrics := mf.GetMetric()
		if len(metrics) != 2 {
			t.Fatalf("%s: expected one metric per pool, got %d", mf.GetName(), len(metrics))
		}
		for i, wantDB := range []string{"analytics", "replica"} {
			label := metrics[i].GetLabel()[0]
			if name := label.GetName(); name != "db_name" {
				t.Errorf("expected label db_name, got %s", name)
			}
			if value := label.GetValue(); value != wantDB {
				t.Errorf("expected db_name %q, got %q", wantDB, value)
			}
		}
	}

	for name, found := range want {
		if !found {
			t.Errorf("%s not found", name)
		}
	}
}
