// Package query compiles the structured query DSL into a single SQL
// statement for the analytical store. Every field, operator and function is
// validated against the schema registry before any SQL text is built, and
// every literal is escaped; a query that fails validation never reaches the
// store.
package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/skywatch/skywatch/internal/skywatch"
)

// timeLayout formats the inclusive WHERE bounds. All timestamps are UTC.
const timeLayout = "2006-01-02 15:04:05"

var (
	// fieldCharset is the only character set a field expression may use.
	// Everything else (semicolons, quotes, comments) is rejected outright.
	fieldCharset = regexp.MustCompile(`^[A-Za-z0-9_(),.\s*]+$`)

	aliasPattern = regexp.MustCompile(`(?i)\s+as\s+[A-Za-z_][A-Za-z0-9_]*\s*$`)
	funcPattern  = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z0-9]*)\s*\((.*)\)\s*$`)
	identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// aggregateFuncs are the aggregate functions a field expression may use.
var aggregateFuncs = map[string]struct{}{
	"count":      {},
	"sum":        {},
	"avg":        {},
	"min":        {},
	"max":        {},
	"uniq":       {},
	"any":        {},
	"countIf":    {},
	"groupArray": {},
}

// timeFuncs are the recognized time-bucketing functions.
var timeFuncs = map[string]struct{}{
	"toStartOfMinute": {},
	"toStartOfHour":   {},
	"toStartOfDay":    {},
	"toStartOfWeek":   {},
	"toStartOfMonth":  {},
	"toMonday":        {},
}

var operators = map[string]struct{}{
	"=": {}, "!=": {}, ">": {}, "<": {}, ">=": {}, "<=": {},
	"IN": {}, "NOT IN": {}, "LIKE": {},
}

// Compile translates cfg into one SQL statement over the event table,
// bounded to timeRange and optionally scoped to tenants. An empty tenant
// slice means no tenant clause at all, not "scope to nothing".
func Compile(cfg *skywatch.QueryConfig, timeRange skywatch.TimeRange, tenants []string) (string, error) {
	if len(cfg.Fields) == 0 {
		return "", skywatch.NewValidationError("query %q: fields must not be empty", cfg.ID)
	}

	selectFields := make([]string, 0, len(cfg.Fields))
	for _, f := range cfg.Fields {
		sanitized, err := validateFieldExpr(f, false)
		if err != nil {
			return "", err
		}
		selectFields = append(selectFields, sanitized)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(selectFields, ", "))
	b.WriteString(" FROM ")
	b.WriteString(skywatch.EventTable)

	where := []string{
		fmt.Sprintf("timestamp >= '%s'", timeRange.Start.UTC().Format(timeLayout)),
		fmt.Sprintf("timestamp <= '%s'", timeRange.End.UTC().Format(timeLayout)),
	}

	if clause := tenantClause(tenants); clause != "" {
		where = append(where, clause)
	}

	for i := range cfg.Conditions {
		clause, err := conditionClause(&cfg.Conditions[i])
		if err != nil {
			return "", err
		}
		where = append(where, clause)
	}

	b.WriteString(" WHERE ")
	b.WriteString(strings.Join(where, " AND "))

	if len(cfg.GroupBy) > 0 {
		groupFields := make([]string, 0, len(cfg.GroupBy))
		for _, g := range cfg.GroupBy {
			sanitized, err := validateFieldExpr(g, true)
			if err != nil {
				return "", err
			}
			groupFields = append(groupFields, sanitized)
		}
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(groupFields, ", "))
	}

	if len(cfg.OrderBy) > 0 {
		orderFields := make([]string, 0, len(cfg.OrderBy))
		for _, o := range cfg.OrderBy {
			field := strings.TrimSpace(o.Field)
			if field == "" || !fieldCharset.MatchString(field) {
				return "", skywatch.NewValidationError("order by field %q contains invalid characters", o.Field)
			}
			direction := "ASC"
			if o.Direction == "DESC" {
				direction = "DESC"
			}
			orderFields = append(orderFields, field+" "+direction)
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(orderFields, ", "))
	}

	if cfg.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", cfg.Limit)
	}

	return b.String(), nil
}

// validateFieldExpr checks one SELECT or GROUP BY expression and returns its
// sanitized form. Aggregate and time-function expressions pass through
// verbatim once recognized; bare names must resolve in the schema registry.
func validateFieldExpr(expr string, forGroupBy bool) (string, error) {
	sanitized := strings.TrimSpace(expr)
	if sanitized == "" || !fieldCharset.MatchString(sanitized) {
		return "", skywatch.NewValidationError("field %q contains invalid characters", expr)
	}

	name := strings.TrimSpace(aliasPattern.ReplaceAllString(sanitized, ""))

	if m := funcPattern.FindStringSubmatch(name); m != nil {
		fn, inner := m[1], strings.TrimSpace(m[2])

		// A single call only. The pattern is greedy, so an argument that
		// itself contains parentheses means the expression smuggled in
		// another call or a parenthesized group.
		if strings.ContainsAny(inner, "()") {
			return "", skywatch.NewValidationError("field %q must be a single function call", expr)
		}

		_, isAggregate := aggregateFuncs[fn]
		_, isTimeFunc := timeFuncs[fn]
		if !isAggregate && !isTimeFunc {
			return "", skywatch.NewValidationError("unknown function %q in field %q", fn, expr)
		}

		// Validate the argument when it is a plain column reference;
		// stars and compound expressions pass through.
		if identPattern.MatchString(inner) {
			cfg, ok := skywatch.FieldByName(inner)
			if !ok {
				return "", skywatch.NewValidationError("unknown field %q in expression %q", inner, expr)
			}
			if isAggregate && !cfg.Aggregatable {
				return "", skywatch.NewValidationError("field %q is not aggregatable", inner)
			}
		}

		return sanitized, nil
	}

	cfg, ok := skywatch.FieldByName(name)
	if !ok {
		return "", skywatch.NewValidationError("unknown field %q", name)
	}
	if forGroupBy && !cfg.Groupable {
		return "", skywatch.NewValidationError("field %q cannot be used in GROUP BY", name)
	}

	return sanitized, nil
}

// tenantClause renders tenant scoping: an equality for a single tenant, an
// IN list for several, nothing for none.
func tenantClause(tenants []string) string {
	switch len(tenants) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%s = '%s'", skywatch.TenantField, escape(tenants[0]))
	default:
		quoted := make([]string, len(tenants))
		for i, t := range tenants {
			quoted[i] = "'" + escape(t) + "'"
		}
		return fmt.Sprintf("%s IN (%s)", skywatch.TenantField, strings.Join(quoted, ", "))
	}
}

func conditionClause(c *skywatch.QueryCondition) (string, error) {
	field := strings.TrimSpace(c.Field)
	if field == "" || !fieldCharset.MatchString(field) {
		return "", skywatch.NewValidationError("condition field %q contains invalid characters", c.Field)
	}
	if !skywatch.ValidateField(field) {
		return "", skywatch.NewValidationError("unknown condition field %q", field)
	}
	if _, ok := operators[c.Operator]; !ok {
		return "", skywatch.NewValidationError("unsupported operator %q on field %q", c.Operator, field)
	}

	switch c.Operator {
	case "IN", "NOT IN":
		values, ok := listValues(c.Value)
		if !ok {
			return "", skywatch.NewValidationError("operator %s on field %q requires an array value", c.Operator, field)
		}
		quoted := make([]string, len(values))
		for i, v := range values {
			quoted[i] = "'" + escape(v) + "'"
		}
		return fmt.Sprintf("%s %s (%s)", field, c.Operator, strings.Join(quoted, ", ")), nil
	case "LIKE":
		return fmt.Sprintf("%s LIKE '%%%s%%'", field, escape(stringify(c.Value))), nil
	default:
		return fmt.Sprintf("%s %s '%s'", field, c.Operator, escape(stringify(c.Value))), nil
	}
}

// listValues stringifies an array condition value. Scalars report false.
func listValues(v any) ([]string, bool) {
	switch vv := v.(type) {
	case []string:
		return vv, true
	case []any:
		out := make([]string, len(vv))
		for i, e := range vv {
			out[i] = stringify(e)
		}
		return out, true
	case []int:
		out := make([]string, len(vv))
		for i, e := range vv {
			out[i] = stringify(e)
		}
		return out, true
	default:
		return nil, false
	}
}

// stringify renders any condition value as a string literal; the event
// store compares stringified numerics correctly against typed columns.
func stringify(v any) string {
	return fmt.Sprintf("%v", v)
}

// escape doubles single quotes. The store client is raw-SQL-string based,
// so escaping is applied to every literal without exception.
func escape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
