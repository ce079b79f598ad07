package graph

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Params are the named parameters of a Cypher statement
type Params map[string]any

var (
	ErrInvalidParamName = errors.New("invalid parameter name")
	ErrUnsupportedParam = errors.New("unsupported parameter type")
)

var paramName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var literalEscapes = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// BuildQuery prefixes stmt with the CYPHER parameter header FalkorDB expects.
// Parameters are emitted in name order so equal inputs produce equal queries
func BuildQuery(stmt string, params Params) (string, error) {
	if len(params) == 0 {
		return stmt, nil
	}

	names := make([]string, 0, len(params))
	for name := range params {
		if !paramName.MatchString(name) {
			return "", fmt.Errorf("%w: %q", ErrInvalidParamName, name)
		}
		names = append(names, name)
	}
	slices.Sort(names)

	var sb strings.Builder
	sb.WriteString("CYPHER")
	for _, name := range names {
		lit, err := Literal(params[name])
		if err != nil {
			return "", fmt.Errorf("%w (%s)", err, name)
		}
		sb.WriteByte(' ')
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(lit)
	}
	sb.WriteByte(' ')
	sb.WriteString(stmt)
	return sb.String(), nil
}

// Literal renders a Go value as a Cypher literal
func Literal(v any) (string, error) {
	if v == nil {
		return "null", nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return `"` + literalEscapes.Replace(rv.String()) + `"`, nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64), nil
	case reflect.Pointer:
		if rv.IsNil() {
			return "null", nil
		}
		return Literal(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := range rv.Len() {
			lit, err := Literal(rv.Index(i).Interface())
			if err != nil {
				return "", err
			}
			parts[i] = lit
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedParam, v)
	}
}
