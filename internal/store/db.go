package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type DB struct {
	Pool   *sql.DB
	Driver string
}

// Open connects to sqlite (dsn is a file path) or postgres (dsn is a
// connection string) and pings it.
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case "", DriverSQLite:
		driver = DriverSQLite
		// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dsn)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}

	pool, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		pool.SetMaxOpenConns(1) // sqlite typically wants 1 writer
	} else {
		pool.SetMaxOpenConns(8)
	}
	pool.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("store: ping %s: %w", driver, err)
	}

	return &DB{Pool: pool, Driver: driver}, nil
}

func (d *DB) Close() error {
	if d == nil || d.Pool == nil {
		return nil
	}
	return d.Pool.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (d *DB) rebind(q string) string {
	if d.Driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
