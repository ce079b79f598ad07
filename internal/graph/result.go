package graph

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type (
	// ResultSet is the parsed reply of a graph query
	ResultSet struct {
		Stats   Stats
		Columns []string
		Rows    []Row
	}

	// Row is one record of a result set, holding scalar projections
	Row []any

	// Stats are the execution statistics reported with a reply
	Stats map[string]float64
)

// StatRelationshipsCreated counts the edges a write query created
const StatRelationshipsCreated = "Relationships created"

var (
	ErrMalformedReply = errors.New("malformed graph reply")
	ErrColumnRange    = errors.New("column out of range")
	ErrColumnType     = errors.New("unexpected column type")
	ErrColumnNull     = errors.New("unexpected null column")
)

// Empty reports whether the result set has no rows
func (r *ResultSet) Empty() bool {
	return len(r.Rows) == 0
}

// Int returns the statistic with the given name as an integer
func (s Stats) Int(name string) int {
	return int(s[name])
}

// Value returns the raw value of column i
func (r Row) Value(i int) (any, error) {
	if i < 0 || i >= len(r) {
		return nil, fmt.Errorf("%w: %d", ErrColumnRange, i)
	}
	return r[i], nil
}

// Int returns column i as an integer. FalkorDB reports integers natively, but
// values that arrive as decimal strings are accepted too
func (r Row) Int(i int) (int64, error) {
	v, err := r.OptInt(i)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, fmt.Errorf("%w: %d", ErrColumnNull, i)
	}
	return *v, nil
}

// OptInt returns column i as an integer, or nil when the value is null
func (r Row) OptInt(i int) (*int64, error) {
	v, err := r.Value(i)
	if err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case nil:
		return nil, nil
	case int64:
		return &v, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %d is %q", ErrColumnType, i, v)
		}
		return &n, nil
	default:
		return nil, fmt.Errorf("%w: %d is %T", ErrColumnType, i, v)
	}
}

// String returns column i as a string
func (r Row) String(i int) (string, error) {
	v, err := r.OptString(i)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", fmt.Errorf("%w: %d", ErrColumnNull, i)
	}
	return *v, nil
}

// OptString returns column i as a string, or nil when the value is null
func (r Row) OptString(i int) (*string, error) {
	v, err := r.Value(i)
	if err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string:
		return &v, nil
	default:
		return nil, fmt.Errorf("%w: %d is %T", ErrColumnType, i, v)
	}
}

// parseResultSet decodes a verbose GRAPH.QUERY reply. Writes without a
// RETURN clause reply with statistics only; everything else replies with
// header, rows and statistics
func parseResultSet(raw any) (*ResultSet, error) {
	parts, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: reply is %T", ErrMalformedReply, raw)
	}

	res := &ResultSet{Stats: Stats{}}
	switch len(parts) {
	case 1:
		return res, parseStats(res.Stats, parts[0])
	case 3:
		if err := parseHeader(res, parts[0]); err != nil {
			return nil, err
		}
		if err := parseRows(res, parts[1]); err != nil {
			return nil, err
		}
		return res, parseStats(res.Stats, parts[2])
	default:
		return nil, fmt.Errorf("%w: %d sections", ErrMalformedReply, len(parts))
	}
}

func parseHeader(res *ResultSet, raw any) error {
	cols, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("%w: header is %T", ErrMalformedReply, raw)
	}
	res.Columns = make([]string, 0, len(cols))
	for _, col := range cols {
		// compact headers are [type, name] pairs
		if pair, ok := col.([]any); ok && len(pair) > 0 {
			col = pair[len(pair)-1]
		}
		name, ok := col.(string)
		if !ok {
			return fmt.Errorf("%w: column is %T", ErrMalformedReply, col)
		}
		res.Columns = append(res.Columns, name)
	}
	return nil
}

func parseRows(res *ResultSet, raw any) error {
	rows, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("%w: rows are %T", ErrMalformedReply, raw)
	}
	res.Rows = make([]Row, 0, len(rows))
	for _, row := range rows {
		vals, ok := row.([]any)
		if !ok {
			return fmt.Errorf("%w: row is %T", ErrMalformedReply, row)
		}
		if len(vals) != len(res.Columns) {
			return fmt.Errorf("%w: row has %d of %d columns",
				ErrMalformedReply, len(vals), len(res.Columns))
		}
		res.Rows = append(res.Rows, Row(vals))
	}
	return nil
}

func parseStats(stats Stats, raw any) error {
	lines, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("%w: stats are %T", ErrMalformedReply, raw)
	}
	for _, line := range lines {
		s, ok := line.(string)
		if !ok {
			continue
		}
		name, val, ok := strings.Cut(s, ":")
		if !ok {
			continue
		}
		num, _, _ := strings.Cut(strings.TrimSpace(val), " ")
		f, err := strconv.ParseFloat(num, 64)
		if err != nil {
			continue
		}
		stats[strings.TrimSpace(name)] = f
	}
	return nil
}
