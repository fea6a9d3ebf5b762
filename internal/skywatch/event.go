// Package skywatch contains the domain model of the analytics core:
// the queryable event schema, the query DSL, error-group and trend types,
// and the storage interfaces the engines depend on.
package skywatch

import (
	"fmt"
	"time"
)

// EventTable is the wide append-only table every compiled query reads from.
// Rows are written by the ingestion collaborator; this core only reads them,
// except for the aggregation history table.
const EventTable = "monitor_events"

// TenantField scopes every query to one application.
const TenantField = "app_id"

// TimeRange bounds a query. Both ends are inclusive and interpreted as UTC.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// LastHours returns a time range covering the trailing n hours.
func LastHours(now time.Time, n int) TimeRange {
	end := now.UTC()
	return TimeRange{Start: end.Add(-time.Duration(n) * time.Hour), End: end}
}

// QueryCondition is a single WHERE predicate of the query DSL.
type QueryCondition struct {
	Field    string
	Operator string
	Value    any
}

// OrderBy is a single ORDER BY entry. Direction is ASC unless exactly "DESC".
type OrderBy struct {
	Field     string
	Direction string
}

// QueryConfig is the unit of the query DSL, compiled into one SQL statement.
type QueryConfig struct {
	ID         string
	Fields     []string
	Conditions []QueryCondition
	GroupBy    []string
	OrderBy    []OrderBy
	Limit      int
}

// Window is a time-bucketing granularity for trend series.
type Window string

const (
	WindowHour Window = "hour"
	WindowDay  Window = "day"
	WindowWeek Window = "week"
)

// Valid reports whether the window is one of the supported granularities.
func (w Window) Valid() bool {
	switch w {
	case WindowHour, WindowDay, WindowWeek:
		return true
	default:
		return false
	}
}

// TimeFunction maps the window to the analytical store's bucketing function.
// Weeks start on Monday (ISO).
func (w Window) TimeFunction() string {
	switch w {
	case WindowHour:
		return "toStartOfHour"
	case WindowDay:
		return "toStartOfDay"
	case WindowWeek:
		return "toMonday"
	default:
		return ""
	}
}

// ValidationError is returned when a query or request is rejected at the
// boundary, before any SQL reaches the analytical store.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Detail
}

// NewValidationError builds a ValidationError with a formatted detail.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Detail: fmt.Sprintf(format, args...)}
}
