// Package database 持有单个 SQLite 连接，基于 rdb.Metadata 建表、写入和查询。
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hatlonely/seeddb/log/logger"
	"github.com/hatlonely/seeddb/rdb"
	"github.com/hatlonely/seeddb/refx"
	"github.com/pkg/errors"
)

var (
	ErrEmptyRecords      = errors.New("records must not be empty")
	ErrMixedRecords      = errors.New("records belong to different tables")
	ErrNotKeyed          = errors.New("record cannot receive a primary key")
	ErrPrimaryKeyMissing = errors.New("returned primary key is missing")
)

// Options 数据库连接配置
type Options struct {
	// 后端类型：sql（database/sql + go-sqlite3），gorm
	Type string `cfg:"type" def:"sql" validate:"omitempty,oneof=sql gorm"`
	// 数据库文件路径，不存在时自动创建，":memory:" 表示内存数据库
	Path string `cfg:"path" def:"dataset.sqlite3" validate:"required"`
	// 等待写锁的超时时间
	BusyTimeout time.Duration `cfg:"busyTimeout" def:"5s"`
	// 日志模式，前端服务以 WAL 模式并发读取同一个文件
	JournalMode string `cfg:"journalMode" validate:"omitempty,oneof=DELETE TRUNCATE PERSIST MEMORY WAL OFF"`
	// 打印每条生成的语句
	Debug bool `cfg:"debug"`
}

// Database 数据库上下文
type Database interface {
	// CreateTablesIfNotExist 为每张已声明的表执行 CREATE TABLE IF NOT EXISTS
	CreateTablesIfNotExist(ctx context.Context) error
	// InsertMany 写入同一张表的一组记录
	InsertMany(ctx context.Context, records []rdb.Record, opts ...InsertOption) error
	// Insert 写入单条记录
	Insert(ctx context.Context, record rdb.Record, opts ...InsertOption) error
	// QueryAll 执行只读查询，按引擎返回的顺序返回所有行
	QueryAll(ctx context.Context, query string, args ...any) ([]Row, error)
	// Metadata 表元数据
	Metadata() *rdb.Metadata
	// Close 关闭连接
	Close() error
}

// InsertOptions 写入选项
type InsertOptions struct {
	// Upsert 冲突时更新
	Upsert bool
	// PrimaryKey 获取自增主键并回写到记录
	PrimaryKey bool
}

type InsertOption func(*InsertOptions)

// WithUpsert 冲突时用新行更新非键列
func WithUpsert() InsertOption {
	return func(o *InsertOptions) {
		o.Upsert = true
	}
}

// WithPrimaryKey 逐条执行并回写数据库分配的主键
func WithPrimaryKey() InsertOption {
	return func(o *InsertOptions) {
		o.PrimaryKey = true
	}
}

// Constructor 后端构造函数
type Constructor func(options *Options, metadata *rdb.Metadata, l logger.Logger) (Database, error)

var backends = refx.NewRegistry[Constructor]("database")

func init() {
	backends.MustRegister("sql", func(options *Options, metadata *rdb.Metadata, l logger.Logger) (Database, error) {
		db, err := NewSQLWithOptions(options, metadata)
		if err != nil {
			return nil, err
		}
		db.SetLogger(l)
		return db, nil
	})
	backends.MustRegister("gorm", func(options *Options, metadata *rdb.Metadata, l logger.Logger) (Database, error) {
		db, err := NewGormWithOptions(options, metadata)
		if err != nil {
			return nil, err
		}
		db.SetLogger(l)
		return db, nil
	})
}

// Register 注册新的后端类型
func Register(typ string, newFunc Constructor) error {
	return backends.Register(typ, newFunc)
}

// NewDatabaseWithOptions 根据 Type 创建对应的后端，为空时使用 sql
func NewDatabaseWithOptions(options *Options, metadata *rdb.Metadata, l logger.Logger) (Database, error) {
	if options == nil {
		return nil, errors.New("options cannot be nil")
	}

	typ := options.Type
	if typ == "" {
		typ = "sql"
	}
	newFunc, err := backends.Get(typ)
	if err != nil {
		return nil, errors.WithMessagef(err, "unsupported database type: %s", options.Type)
	}
	return newFunc(options, metadata, l)
}

// dsn go-sqlite3 连接串，参数写在 ? 之后
func dsn(options *Options) string {
	var params []string
	if options.BusyTimeout > 0 {
		params = append(params, fmt.Sprintf("_busy_timeout=%d", options.BusyTimeout.Milliseconds()))
	}
	if options.JournalMode != "" {
		params = append(params, "_journal_mode="+options.JournalMode)
	}
	if len(params) == 0 {
		return options.Path
	}
	return options.Path + "?" + strings.Join(params, "&")
}

// insertPlan 一次 InsertMany 的语句和参数
type insertPlan struct {
	meta    *rdb.TableMeta
	query   string
	rows    [][]any
	records []rdb.Record
	options *InsertOptions
}

func newInsertPlan(metadata *rdb.Metadata, records []rdb.Record, opts []InsertOption) (*insertPlan, error) {
	options := &InsertOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if len(records) == 0 {
		return nil, ErrEmptyRecords
	}

	table := records[0].TableName()
	meta, ok := metadata.Table(table)
	if !ok {
		return nil, errors.Wrapf(rdb.ErrUnknownTable, "table %s", table)
	}

	rows := make([][]any, 0, len(records))
	for i, record := range records {
		if record.TableName() != table {
			return nil, errors.Wrapf(ErrMixedRecords, "record %d is %s, expected %s", i, record.TableName(), table)
		}
		if options.PrimaryKey {
			if _, ok := record.(rdb.KeyedRecord); !ok {
				return nil, errors.Wrapf(ErrNotKeyed, "record %d of %s", i, table)
			}
		}
		row, err := metadata.Encode(record)
		if err != nil {
			return nil, errors.WithMessagef(err, "record %d", i)
		}
		rows = append(rows, row)
	}

	query, err := meta.InsertSQL(rdb.InsertSQLOptions{
		Upsert:    options.Upsert,
		Returning: options.PrimaryKey,
	})
	if err != nil {
		return nil, err
	}

	return &insertPlan{
		meta:    meta,
		query:   query,
		rows:    rows,
		records: records,
		options: options,
	}, nil
}

// checkKey 返回主键为空说明主键列的类型不能自增
func (p *insertPlan) checkKey(i int, key any) error {
	if key == nil {
		pk, _ := p.meta.PrimaryKeyColumn()
		return errors.Wrapf(ErrPrimaryKeyMissing,
			"record %d: %s.%s is NULL - perhaps you need to declare it as int", i, p.meta.Name(), pk.Name)
	}
	return nil
}

// assignKeys 提交成功后把主键回写到记录
func (p *insertPlan) assignKeys(keys []any) error {
	for i, record := range p.records {
		if err := record.(rdb.KeyedRecord).SetPrimaryKey(keys[i]); err != nil {
			return errors.WithMessagef(err, "record %d", i)
		}
	}
	return nil
}
