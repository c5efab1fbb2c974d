package alert

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/config"
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/database"
)

// Source reports the distinct addresses an external detection system
// alerted on during a day
type Source interface {
	Alerted(ctx context.Context, day time.Time) ([]string, error)
}

// SQLSource reads alerts from a table in a PostgreSQL or MySQL database
type SQLSource struct {
	db    *sql.DB
	query string
}

// NewSQLSource builds a Source over the table and columns named in cfg
func NewSQLSource(db *sql.DB, cfg config.AlertStoreStaticCfg) (*SQLSource, error) {
	for _, name := range []string{cfg.Table, cfg.AddrColumn, cfg.DateColumn} {
		if !database.ValidIdentifier(name) {
			return nil, fmt.Errorf("invalid alert store identifier %q", name)
		}
	}

	query := fmt.Sprintf(
		"SELECT DISTINCT %s FROM %s WHERE %s >= %s AND %s < %s",
		cfg.AddrColumn, cfg.Table,
		cfg.DateColumn, database.Placeholder(cfg.Driver, 1),
		cfg.DateColumn, database.Placeholder(cfg.Driver, 2),
	)
	return &SQLSource{db: db, query: query}, nil
}

// Open connects to the configured alert database
func Open(cfg config.AlertStoreStaticCfg) (*SQLSource, error) {
	db, err := database.OpenSQL(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	source, err := NewSQLSource(db, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	return source, nil
}

// Alerted implements Source. day is truncated to midnight in its location.
func (s *SQLSource) Alerted(ctx context.Context, day time.Time) ([]string, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	rows, err := s.db.QueryContext(ctx, s.query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var addrs []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, rows.Err()
}

// Query returns the statement used to fetch a day's alerts
func (s *SQLSource) Query() string {
	return s.query
}

// Close closes the database handle
func (s *SQLSource) Close() error {
	return s.db.Close()
}
