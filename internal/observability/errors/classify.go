// Package errors labels errors for metrics and logs.
package errors

import (
	"context"
	goerrors "errors"
	"net"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// httpStatusError is implemented by provider errors that carry a response status.
type httpStatusError interface {
	HTTPStatus() int
}

// pgClasses names the SQLSTATE classes worth telling apart on a dashboard.
var pgClasses = map[string]string{
	"08": "postgres_connection",
	"23": "postgres_constraint",
	"40": "postgres_serialization",
	"53": "postgres_resources",
	"57": "postgres_operator",
}

// Classify returns a low-cardinality label for err. Known families (context,
// Postgres, provider HTTP status, network) get fixed names; anything else is
// named after its innermost concrete type, e.g. "enrich_errorstring".
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if goerrors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if goerrors.Is(err, context.Canceled) {
		return "canceled"
	}

	var pgErr *pgconn.PgError
	if goerrors.As(err, &pgErr) {
		if name, ok := pgClasses[sqlStateClass(pgErr.Code)]; ok {
			return name
		}
		return "postgres"
	}

	var statusErr httpStatusError
	if goerrors.As(err, &statusErr) {
		switch code := statusErr.HTTPStatus(); {
		case code == 429:
			return "rate_limited"
		case code >= 500:
			return "upstream_5xx"
		default:
			return "upstream_4xx"
		}
	}

	var netErr net.Error
	if goerrors.As(err, &netErr) {
		return "network"
	}

	return typeName(innermost(err))
}

func sqlStateClass(code string) string {
	if len(code) < 2 {
		return ""
	}
	return code[:2]
}

func innermost(err error) error {
	for {
		next := goerrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func typeName(err error) string {
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "unknown"
	}
	pkg := t.PkgPath()
	if i := strings.LastIndexByte(pkg, '/'); i >= 0 {
		pkg = pkg[i+1:]
	}
	if pkg == "" {
		return strings.ToLower(t.Name())
	}
	return strings.ToLower(pkg + "_" + t.Name())
}
