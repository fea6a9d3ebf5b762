// Package ch implements the analytics store on ClickHouse.
package ch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const DefaultTimeout = 5 * time.Second

// ConnectLoop opens a connection pool for dsn and pings it once a second
// until the store answers or connTimeout passes. ClickHouse is usually the
// last piece of the stack to come up, so the first pings are expected to
// fail during deployment.
//
//nolint:ireturn // return external client.
func ConnectLoop(
	ctx context.Context,
	dsn string,
	connTimeout time.Duration,
	logger *slog.Logger,
) (conn driver.Conn, closeFunc func() error, err error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse: parse dsn: %w", err)
	}

	pool, err := clickhouse.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse: open connection pool: %w", err)
	}

	deadline := time.NewTimer(connTimeout)
	defer deadline.Stop()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		if err = pool.Ping(ctx); err == nil {
			return pool, pool.Close, nil
		}
		logger.Warn("clickhouse not ready, retrying", slog.Any("error", err))

		select {
		case <-deadline.C:
			return nil, nil, fmt.Errorf("clickhouse: no answer after %s: %w", connTimeout, err)
		case <-ctx.Done():
			return nil, nil, fmt.Errorf("clickhouse: connect aborted: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
