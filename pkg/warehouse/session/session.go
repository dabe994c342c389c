// Package session opens a direct driver connection to the warehouse for the
// bulk-upload path. Everything else in this tool goes through the vendor
// CLI; the ETL binds thousands of rows and needs a real driver.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sf "github.com/snowflakedb/gosnowflake"

	"github.com/probeworks/pcbcv/pkg/utils"
	"github.com/probeworks/pcbcv/pkg/warehouse/keypair"
)

// Params is everything needed to open a session. It deliberately mirrors
// the connection parameters of the CLI surface.
type Params struct {
	Account        string
	User           string
	Password       string
	Authenticator  string // "", "snowflake", "snowflake_jwt", "externalbrowser"
	PrivateKeyFile string

	Database  string
	Schema    string
	Role      string
	Warehouse string
}

// Column declares one column of a table written by Overwrite.
type Column struct {
	Name string
	Type string
}

// Writer is the warehouse-side sink of the upload ETL.
type Writer interface {
	// Overwrite (re)creates table with the given columns and inserts all
	// rows in batches. progress, when not nil, is called after each batch
	// with the number of rows written so far.
	Overwrite(ctx context.Context, table string, cols []Column, rows [][]any, progress func(written int)) error

	Close() error
}

type Session struct {
	db        *sql.DB
	batchSize int
}

var _ Writer = &Session{}

type Option = func(*Session) *Session

// WithBatchSize sets rows per INSERT statement. Default 500.
func WithBatchSize(n int) Option {
	return func(s *Session) *Session {
		if 0 < n {
			s.batchSize = n
		}
		return s
	}
}

// Open builds a DSN from params and opens the connection pool.
func Open(params Params, opt ...Option) (*Session, error) {
	cfg := &sf.Config{
		Account:   params.Account,
		User:      params.User,
		Password:  params.Password,
		Database:  params.Database,
		Schema:    params.Schema,
		Role:      params.Role,
		Warehouse: params.Warehouse,
	}

	switch strings.ToLower(params.Authenticator) {
	case "", "snowflake":
		// password auth. default.
	case "snowflake_jwt":
		key, err := keypair.Load(params.PrivateKeyFile)
		if err != nil {
			return nil, err
		}
		cfg.Authenticator = sf.AuthTypeJwt
		cfg.PrivateKey = key
	case "externalbrowser":
		cfg.Authenticator = sf.AuthTypeExternalBrowser
	default:
		return nil, fmt.Errorf("unsupported authenticator: %s", params.Authenticator)
	}

	dsn, err := sf.DSN(cfg)
	if err != nil {
		return nil, fmt.Errorf("building DSN: %w", err)
	}
	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, err
	}

	return utils.ApplyAll(&Session{db: db, batchSize: 500}, opt...), nil
}

func (s *Session) Close() error {
	return s.db.Close()
}

func (s *Session) Overwrite(
	ctx context.Context,
	table string,
	cols []Column,
	rows [][]any,
	progress func(written int),
) error {
	if _, err := s.db.ExecContext(ctx, BuildCreateTable(table, cols)); err != nil {
		return fmt.Errorf("creating table %s: %w", table, err)
	}

	written := 0
	for start := 0; start < len(rows); start += s.batchSize {
		end := start + s.batchSize
		if len(rows) < end {
			end = len(rows)
		}
		batch := rows[start:end]

		args := make([]any, 0, len(batch)*len(cols))
		for _, row := range batch {
			if len(row) != len(cols) {
				return fmt.Errorf(
					"row %d of %s has %d values, want %d",
					start+len(args)/len(cols), table, len(row), len(cols),
				)
			}
			args = append(args, row...)
		}

		stmt := BuildInsert(table, cols, len(batch))
		if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("inserting into %s (rows %d..%d): %w", table, start, end-1, err)
		}

		written += len(batch)
		if progress != nil {
			progress(written)
		}
	}
	return nil
}

// BuildCreateTable renders the CREATE OR REPLACE TABLE statement used by
// Overwrite. Exposed for tests.
func BuildCreateTable(table string, cols []Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = c.Name + " " + c.Type
	}
	return fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", table, strings.Join(defs, ", "))
}

// BuildInsert renders a multi-row INSERT with placeholders for nRows rows.
// Exposed for tests.
func BuildInsert(table string, cols []Column, nRows int) string {
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
		marks[i] = "?"
	}
	tuple := "(" + strings.Join(marks, ", ") + ")"

	tuples := make([]string, nRows)
	for i := range tuples {
		tuples[i] = tuple
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s",
		table, strings.Join(names, ", "), strings.Join(tuples, ", "),
	)
}
