package ch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/skywatch/skywatch/internal/skywatch"
	"github.com/skywatch/skywatch/internal/svcotel"
	"go.opentelemetry.io/otel/trace"
)

// historyTable is the append-only table holding aggregation snapshots.
const historyTable = "aggregation_history"

// ClickhouseStore encapsulates the clickhouse connection. It implements
// skywatch.AnalyticsStore: the query methods execute SQL produced by the
// query compiler, so their scan order is fixed by the engines' SELECT lists.
type ClickhouseStore struct {
	conn            clickhouse.Conn
	tracer          trace.Tracer // https://github.com/ClickHouse/clickhouse-go/issues/1444
	asyncInsertWait bool
}

// NewClickhouseStore creates a new ClickhouseStore.
func NewClickhouseStore(conn clickhouse.Conn, tracerProvider svcotel.TracerProvider) *ClickhouseStore {
	return &ClickhouseStore{conn: conn, tracer: tracerProvider.Tracer("clickhouse")}
}

// EnableAsyncInsertWait makes history inserts wait for acknowledgment.
// Used in tests so reads observe the write.
func (s *ClickhouseStore) EnableAsyncInsertWait() {
	s.asyncInsertWait = true
}

// Close closes the connection to Clickhouse.
func (s *ClickhouseStore) Close() error {
	return s.conn.Close()
}

// QueryErrorGroups executes a compiled per-fingerprint aggregation query.
// Column order: fingerprint, message, stack, total_count, first_seen,
// last_seen, affected_users, affected_sessions, framework, browser, os.
func (s *ClickhouseStore) QueryErrorGroups(ctx context.Context, sql string) ([]skywatch.BasicErrorGroup, error) {
	ctx, span := s.tracer.Start(ctx, "ClickhouseStore.QueryErrorGroups")
	defer span.End()

	rows, err := s.conn.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: query error groups: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	groups := make([]skywatch.BasicErrorGroup, 0, 100)
	for rows.Next() {
		g := skywatch.BasicErrorGroup{}
		if err := rows.Scan(
			&g.Fingerprint,
			&g.Message,
			&g.Stack,
			&g.TotalCount,
			&g.FirstSeen,
			&g.LastSeen,
			&g.AffectedUsers,
			&g.AffectedSessions,
			&g.Framework,
			&g.Browser,
			&g.OS); err != nil {
			return nil, fmt.Errorf("clickhouse: query error groups, scan result: %w", err)
		}
		groups = append(groups, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clickhouse: query error groups, rows.Err: %w", err)
	}

	return groups, nil
}

// QueryTrendPoints executes a compiled time-bucketed aggregation query.
// Column order: time_bucket, count, total_occurrences, affected_users,
// affected_sessions.
func (s *ClickhouseStore) QueryTrendPoints(ctx context.Context, sql string) ([]skywatch.TrendPoint, error) {
	ctx, span := s.tracer.Start(ctx, "ClickhouseStore.QueryTrendPoints")
	defer span.End()

	rows, err := s.conn.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: query trend points: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	points := make([]skywatch.TrendPoint, 0, 24)
	for rows.Next() {
		p := skywatch.TrendPoint{}
		if err := rows.Scan(
			&p.TimeBucket,
			&p.Count,
			&p.TotalOccurrences,
			&p.AffectedUsers,
			&p.AffectedSessions); err != nil {
			return nil, fmt.Errorf("clickhouse: query trend points, scan result: %w", err)
		}
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clickhouse: query trend points, rows.Err: %w", err)
	}

	return points, nil
}

// InsertAggregationHistory appends one aggregation snapshot. The insert is
// asynchronous on the server side; the hot path does not wait for the merge.
func (s *ClickhouseStore) InsertAggregationHistory(ctx context.Context, rec *skywatch.AggregationHistoryRecord) error {
	ctx, span := s.tracer.Start(ctx, "ClickhouseStore.InsertAggregationHistory")
	defer span.End()

	data, err := json.Marshal(rec.Groups)
	if err != nil {
		return fmt.Errorf("clickhouse: marshal aggregation data: %w", err)
	}

	const query = `INSERT INTO ` + historyTable + ` (
		app_id, timestamp, threshold, original_groups, merged_groups, reduction_rate, aggregation_data
	) VALUES (?, ?, ?, ?, ?, ?, ?)`

	if err := s.conn.AsyncInsert(
		ctx,
		query,
		s.asyncInsertWait,
		rec.AppID,
		rec.Timestamp,
		rec.Threshold,
		uint32(rec.OriginalGroups),
		uint32(rec.MergedGroups),
		rec.ReductionRate,
		string(data),
	); err != nil {
		return fmt.Errorf("clickhouse: async insert aggregation history: %w", err)
	}

	return nil
}

// ListAggregationHistory reads aggregation snapshots for a tenant, newest
// first, deserializing the stored group data.
func (s *ClickhouseStore) ListAggregationHistory(
	ctx context.Context,
	c skywatch.HistoryCriteria,
) ([]skywatch.AggregationHistoryRecord, error) {
	ctx, span := s.tracer.Start(ctx, "ClickhouseStore.ListAggregationHistory")
	defer span.End()

	query := `SELECT app_id, timestamp, threshold, original_groups, merged_groups, reduction_rate, aggregation_data
			  FROM ` + historyTable + `
			  WHERE app_id = ?`

	args := []any{c.AppID}

	if !c.Start.IsZero() {
		query += " AND timestamp >= toDateTime(?, 'UTC')"
		args = append(args, c.Start)
	}
	if !c.End.IsZero() {
		query += " AND timestamp <= toDateTime(?, 'UTC')"
		args = append(args, c.End)
	}

	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, c.Limit)

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: list aggregation history: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	records := make([]skywatch.AggregationHistoryRecord, 0, 10)
	for rows.Next() {
		var (
			rec            skywatch.AggregationHistoryRecord
			original       uint32
			merged         uint32
			serializedData string
		)
		if err := rows.Scan(
			&rec.AppID,
			&rec.Timestamp,
			&rec.Threshold,
			&original,
			&merged,
			&rec.ReductionRate,
			&serializedData); err != nil {
			return nil, fmt.Errorf("clickhouse: list aggregation history, scan result: %w", err)
		}
		rec.OriginalGroups = int(original)
		rec.MergedGroups = int(merged)
		if serializedData != "" {
			if err := json.Unmarshal([]byte(serializedData), &rec.Groups); err != nil {
				return nil, fmt.Errorf("clickhouse: list aggregation history, unmarshal data: %w", err)
			}
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clickhouse: list aggregation history, rows.Err: %w", err)
	}

	return records, nil
}
