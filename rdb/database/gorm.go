package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hatlonely/seeddb/log/logger"
	"github.com/hatlonely/seeddb/rdb"
	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Gorm 基于 gorm 的实现，语句全部由 rdb 生成，gorm 只负责连接和事务
type Gorm struct {
	db       *gorm.DB
	metadata *rdb.Metadata
	logger   logger.Logger
	debug    bool
}

func NewGormWithOptions(options *Options, metadata *rdb.Metadata) (*Gorm, error) {
	if metadata == nil {
		return nil, errors.New("metadata cannot be nil")
	}

	g := &Gorm{
		metadata: metadata,
		logger:   logger.Discard(),
		debug:    options.Debug,
	}

	db, err := gorm.Open(sqlite.Open(dsn(options)), &gorm.Config{
		Logger: gormlogger.New(gormWriter{g: g}, gormlogger.Config{
			LogLevel:                  g.logLevel(),
			IgnoreRecordNotFoundError: true,
		}),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "gorm.Open %s failed", options.Path)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql.DB failed")
	}
	sqlDB.SetMaxOpenConns(1)

	g.db = db
	return g, nil
}

func (g *Gorm) SetLogger(l logger.Logger) {
	if l == nil {
		l = logger.Discard()
	}
	g.logger = l
}

func (g *Gorm) Metadata() *rdb.Metadata {
	return g.metadata
}

func (g *Gorm) CreateTablesIfNotExist(ctx context.Context) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range g.metadata.Tables() {
			stmt, err := table.CreateTableSQL()
			if err != nil {
				return err
			}
			if err := tx.Exec(stmt).Error; err != nil {
				return errors.Wrapf(err, "create table %s failed", table.Name())
			}
		}
		return nil
	})
}

func (g *Gorm) Insert(ctx context.Context, record rdb.Record, opts ...InsertOption) error {
	return g.InsertMany(ctx, []rdb.Record{record}, opts...)
}

func (g *Gorm) InsertMany(ctx context.Context, records []rdb.Record, opts ...InsertOption) error {
	plan, err := newInsertPlan(g.metadata, records, opts)
	if err != nil {
		return err
	}

	var keys []any
	err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		keys = keys[:0]
		for i, row := range plan.rows {
			if !plan.options.PrimaryKey {
				if err := tx.Exec(plan.query, row...).Error; err != nil {
					return errors.Wrapf(err, "insert record %d into %s failed", i, plan.meta.Name())
				}
				continue
			}

			var key any
			if err := tx.Raw(plan.query, row...).Row().Scan(&key); err != nil {
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

	g.logger.DebugContext(ctx, "insert records", "table", plan.meta.Name(), "count", len(plan.rows))

	if plan.options.PrimaryKey {
		return plan.assignKeys(keys)
	}
	return nil
}

func (g *Gorm) QueryAll(ctx context.Context, query string, args ...any) ([]Row, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if len(args) == 0 {
		rows, err = g.db.WithContext(ctx).Raw(query).Rows()
	} else {
		rows, err = g.db.WithContext(ctx).Raw(query, args...).Rows()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "query failed: %s", query)
	}
	return scanRows(rows)
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return errors.Wrap(err, "get sql.DB failed")
	}
	return sqlDB.Close()
}

func (g *Gorm) logLevel() gormlogger.LogLevel {
	if g.debug {
		return gormlogger.Info
	}
	return gormlogger.Warn
}

// gormWriter 将 gorm 的日志转发到当前 logger
type gormWriter struct {
	g *Gorm
}

func (w gormWriter) Printf(format string, args ...any) {
	w.g.logger.Debug(fmt.Sprintf(format, args...), "component", "gorm")
}
