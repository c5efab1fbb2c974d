package database

import (
	"database/sql"
	"fmt"
	"regexp"
	"strconv"

	// registers the "mysql" database/sql driver
	_ "github.com/go-sql-driver/mysql"
	// registers the "pgx" database/sql driver
	_ "github.com/jackc/pgx/v5/stdlib"
)

// identifierPattern matches table and column names that are safe to
// interpolate into queries
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// sqlDrivers maps config engine names onto registered database/sql drivers
var sqlDrivers = map[string]string{
	"postgresql": "pgx",
	"mysql":      "mysql",
}

// OpenSQL opens and pings a database/sql handle for one of the supported
// engines (postgresql or mysql)
func OpenSQL(engine, dsn string) (*sql.DB, error) {
	driver, ok := sqlDrivers[engine]
	if !ok {
		return nil, fmt.Errorf("unsupported database engine %q", engine)
	}
	if dsn == "" {
		return nil, fmt.Errorf("no DSN configured for %s", engine)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to %s: %w", engine, err)
	}
	return db, nil
}

// Placeholder returns the n-th (1 based) bind parameter marker for engine
func Placeholder(engine string, n int) string {
	if engine == "postgresql" {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// ValidIdentifier reports whether name can be used as a table or column name
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}
