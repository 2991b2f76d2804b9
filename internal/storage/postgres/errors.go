package postgres

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"kindmesh/pkg/platform/sentinel"
)

// Fail wraps a store operation error. Driver connectivity failures fold
// in sentinel.ErrUnavailable so services surface a typed
// store-unavailable condition even when the database goes down after
// startup.
func Fail(op string, err error) error {
	if unavailable(err) {
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func unavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sentinel.ErrUnavailable) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && connectivityCode(pgErr.Code)
}

// connectivityCode matches SQLSTATEs that mean the server cannot be
// reached or is going away: class 08 (connection exception), the 57P0x
// shutdown family, and 53300 (too many connections).
func connectivityCode(code string) bool {
	return strings.HasPrefix(code, "08") ||
		code == "57P01" || code == "57P02" || code == "57P03" ||
		code == "53300"
}
