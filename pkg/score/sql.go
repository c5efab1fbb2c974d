package score

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/database"
	"github.com/go-sql-driver/mysql"
	log "github.com/sirupsen/logrus"
)

// sqlRepo serves scores from a PostgreSQL or MySQL table laid out as
// (id, ip_addr BIGINT, score FLOAT)
type sqlRepo struct {
	db     *sql.DB
	engine string
	table  string
	log    *log.Logger
}

// NewSQLRepository creates a score store over an open database handle
func NewSQLRepository(db *sql.DB, engine, table string, logger *log.Logger) (Store, error) {
	if !database.ValidIdentifier(table) {
		return nil, fmt.Errorf("invalid score table name %q", table)
	}
	return &sqlRepo{
		db:     db,
		engine: engine,
		table:  table,
		log:    logger,
	}, nil
}

// CreateIndexes creates the score table and its ip_addr index
func (r *sqlRepo) CreateIndexes(ctx context.Context) error {
	id := "id SERIAL PRIMARY KEY"
	if r.engine == "mysql" {
		id = "id INTEGER AUTO_INCREMENT PRIMARY KEY"
	}
	stmts := []string{
		fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (%s, ip_addr BIGINT NOT NULL, score FLOAT NOT NULL)",
			r.table, id,
		),
	}
	if r.engine == "mysql" {
		// MySQL has no CREATE INDEX IF NOT EXISTS, duplicates fail with error 1061
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX ix_%s_ip_addr ON %s (ip_addr)", r.table, r.table))
	} else {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS ix_%s_ip_addr ON %s (ip_addr)", r.table, r.table))
	}

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			var mysqlErr *mysql.MySQLError
			if errors.As(err, &mysqlErr) && mysqlErr.Number == 1061 {
				continue
			}
			return err
		}
	}
	return nil
}

// Score implements Store
func (r *sqlRepo) Score(ctx context.Context, key uint32) (float64, bool, error) {
	query := fmt.Sprintf(
		"SELECT score FROM %s WHERE ip_addr = %s LIMIT 1",
		r.table, database.Placeholder(r.engine, 1),
	)

	var s float64
	err := r.db.QueryRowContext(ctx, query, int64(key)).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return s, true, nil
}

// Replace implements Loader. The delete and inserts share one transaction
// so readers never see an empty table.
func (r *sqlRepo) Replace(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := r.CreateIndexes(ctx); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", r.table)); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (ip_addr, score) VALUES (%s, %s)",
		r.table, database.Placeholder(r.engine, 1), database.Placeholder(r.engine, 2),
	))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, entry := range entries {
		if _, err := stmt.ExecContext(ctx, int64(entry.Key), entry.Score); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	r.log.WithFields(log.Fields{
		"table": r.table,
		"count": len(entries),
	}).Info("Replaced scores")
	return nil
}

// Ping implements Pinger
func (r *sqlRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close implements Store
func (r *sqlRepo) Close() error {
	return r.db.Close()
}
