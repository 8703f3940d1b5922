package memo

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	// sqlite3 driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/venus-lab/venusml/pkg/errors"
	"github.com/venus-lab/venusml/pkg/log"
)

const schema = `CREATE TABLE IF NOT EXISTS experiments (
	key        TEXT PRIMARY KEY,
	scope      TEXT NOT NULL,
	params     TEXT NOT NULL,
	results    TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

// keySep joins key values; it cannot appear in rendered parameters.
const keySep = "\x1f"

// SQLiteStore keeps records in an experiments table. Records from different
// scopes (file set, model, predicted columns) share one database.
type SQLiteStore struct {
	db     *sql.DB
	scope  string
	logger log.Logger
}

// OpenSQLiteStore opens or creates the database at dsn.
func OpenSQLiteStore(ctx context.Context, dsn, scope string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", dsn)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create experiments table")
	}
	return &SQLiteStore{
		db:     db,
		scope:  scope,
		logger: log.GetLoggerWithName("memo.sqlite").With(log.StoreKey, dsn),
	}, nil
}

func (s *SQLiteStore) rowKey(key []string) string {
	return s.scope + keySep + strings.Join(key, keySep)
}

// Has reports whether a record with exactly key exists in the scope.
func (s *SQLiteStore) Has(ctx context.Context, key []string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM experiments WHERE key = ?`, s.rowKey(key)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "query experiments")
	}
	return true, nil
}

// Append inserts rec. Recording the same key twice is an error.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	results, err := json.Marshal(rec.Rows)
	if err != nil {
		return errors.Wrap(err, "encode results")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO experiments (key, scope, params, results) VALUES (?, ?, ?, ?)`,
		s.rowKey(rec.Params.Key()), s.scope, ParameterString(rec.Params), string(results))
	if err != nil {
		return errors.Wrap(err, "insert experiment")
	}
	s.logger.Info("Experiment recorded", log.ParamsKey, ParameterString(rec.Params))
	return nil
}

// Records returns the rows of every record in the scope, oldest first.
func (s *SQLiteStore) Records(ctx context.Context) ([][]Row, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT results FROM experiments WHERE scope = ? ORDER BY rowid`, s.scope)
	if err != nil {
		return nil, errors.Wrap(err, "query experiments")
	}
	defer rows.Close()

	var out [][]Row
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.Wrap(err, "scan experiment")
		}
		var r []Row
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, errors.Wrap(err, "decode results")
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "iterate experiments")
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
