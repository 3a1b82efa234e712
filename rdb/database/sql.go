package database

import (
	"context"
	"database/sql"

	"github.com/hatlonely/seeddb/log/logger"
	"github.com/hatlonely/seeddb/rdb"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SQL 基于 database/sql 和 go-sqlite3 的实现
type SQL struct {
	db       *sql.DB
	metadata *rdb.Metadata
	logger   logger.Logger
	debug    bool
}

func NewSQLWithOptions(options *Options, metadata *rdb.Metadata) (*SQL, error) {
	if metadata == nil {
		return nil, errors.New("metadata cannot be nil")
	}

	db, err := sql.Open("sqlite3", dsn(options))
	if err != nil {
		return nil, errors.Wrapf(err, "sql.Open %s failed", options.Path)
	}

	// SQLite 只允许一个写者，单连接也保证 :memory: 始终是同一个库
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "ping %s failed", options.Path)
	}

	return &SQL{
		db:       db,
		metadata: metadata,
		logger:   logger.Discard(),
		debug:    options.Debug,
	}, nil
}

func (s *SQL) SetLogger(l logger.Logger) {
	if l == nil {
		l = logger.Discard()
	}
	s.logger = l
}

func (s *SQL) Metadata() *rdb.Metadata {
	return s.metadata
}

func (s *SQL) CreateTablesIfNotExist(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range s.metadata.Tables() {
			stmt, err := table.CreateTableSQL()
			if err != nil {
				return err
			}
			s.trace(ctx, stmt)
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return errors.Wrapf(err, "create table %s failed", table.Name())
			}
		}
		return nil
	})
}

func (s *SQL) Insert(ctx context.Context, record rdb.Record, opts ...InsertOption) error {
	return s.InsertMany(ctx, []rdb.Record{record}, opts...)
}

func (s *SQL) InsertMany(ctx context.Context, records []rdb.Record, opts ...InsertOption) error {
	plan, err := newInsertPlan(s.metadata, records, opts)
	if err != nil {
		return err
	}
	s.trace(ctx, plan.query)

	var keys []any
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if !plan.options.PrimaryKey {
			stmt, err := tx.PrepareContext(ctx, plan.query)
			if err != nil {
				return errors.Wrap(err, "prepare insert failed")
			}
			defer stmt.Close()
			for i, row := range plan.rows {
				if _, err := stmt.ExecContext(ctx, row...); err != nil {
					return errors.Wrapf(err, "insert record %d into %s failed", i, plan.meta.Name())
				}
			}
			return nil
		}

		keys = make([]any, 0, len(plan.rows))
		for i, row := range plan.rows {
			var key any
			if err := tx.QueryRowContext(ctx, plan.query, row...).Scan(&key); err != nil {
				return errors.Wrapf(err, "insert record %d into %s failed", i, plan.meta.Name())
			}
			if err := plan.checkKey(i, key); err != nil {
				return err
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "insert records", "table", plan.meta.Name(), "count", len(plan.rows))

	if plan.options.PrimaryKey {
		return plan.assignKeys(keys)
	}
	return nil
}

func (s *SQL) QueryAll(ctx context.Context, query string, args ...any) ([]Row, error) {
	s.trace(ctx, query)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "query failed: %s", query)
	}
	return scanRows(rows)
}

func (s *SQL) Close() error {
	return s.db.Close()
}

// withTx 整批在同一事务中执行，任一失败则回滚
func (s *SQL) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction failed")
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit failed")
	}
	return nil
}

func (s *SQL) trace(ctx context.Context, stmt string) {
	if s.debug {
		s.logger.DebugContext(ctx, "execute", "sql", stmt)
	}
}
