package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Dialect captures the SQL differences between the supported catalog engines.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Rebind rewrites ? placeholders into the dialect's positional form.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
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

// Catalog is an open catalog database handle.
type Catalog struct {
	DB      *sql.DB
	Dialect Dialect
	pool    *pgxpool.Pool
}

// Close releases the database and any underlying pool.
func (c *Catalog) Close() error {
	err := c.DB.Close()
	if c.pool != nil {
		c.pool.Close()
	}
	return err
}

// Ping checks the catalog connection.
func (c *Catalog) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// OpenCatalog creates a catalog handle from a connection string: postgres:// and
// postgresql:// URLs use pgx, sqlite:// and file: URLs or bare paths use SQLite.
func OpenCatalog(ctx context.Context, url string) (*Catalog, error) {
	url = strings.TrimSpace(url)
	switch {
	case url == "":
		return nil, ErrUnsupportedDSN
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return openPostgresCatalog(ctx, url)
	case strings.Contains(url, "://") && !strings.HasPrefix(url, "sqlite://"):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDSN, url)
	default:
		path := strings.TrimPrefix(strings.TrimPrefix(url, "sqlite://"), "file:")
		db, err := NewSQLiteDB(ctx, path)
		if err != nil {
			return nil, err
		}
		return &Catalog{DB: db, Dialect: DialectSQLite}, nil
	}
}

// ErrUnsupportedDSN signals a catalog URL with an unknown scheme.
var ErrUnsupportedDSN = errors.New("unsupported catalog url")
