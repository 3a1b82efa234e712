// seeddb 创建视频标注数据库并写入样本，供前端服务读取
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/hatlonely/seeddb/cfg"
	"github.com/hatlonely/seeddb/dataset"
	"github.com/hatlonely/seeddb/log"
	"github.com/hatlonely/seeddb/log/logger"
	"github.com/hatlonely/seeddb/rdb"
	"github.com/hatlonely/seeddb/rdb/database"
	"github.com/hatlonely/seeddb/rdb/query"
	"github.com/pkg/errors"
)

const envPrefix = "SEEDDB_"

// Config 命令配置，所有字段都有默认值，不带参数即可运行
type Config struct {
	Database database.Options `cfg:"database"`
	Dataset  DatasetOptions   `cfg:"dataset"`
	Log      log.Options      `cfg:"log"`

	Upsert     bool     `cfg:"upsert" def:"true" help:"冲突时按 (path, annotation) 原地更新"`
	PrimaryKey bool     `cfg:"primaryKey" def:"true" help:"回写数据库分配的主键"`
	Dump       bool     `cfg:"dump" help:"写入后以 JSON 数组输出 Sample 表"`
	DumpPrefix string   `cfg:"dumpPrefix" help:"只输出 path 以该前缀开头的样本"`
	DumpPaths  []string `cfg:"dumpPaths" help:"只输出这些 path 的样本，逗号分隔"`
	DumpTagged bool     `cfg:"dumpTagged" help:"只输出带 tags 的样本"`
	Watch      bool     `cfg:"watch" help:"数据集文件变化时重新写入"`
}

type DatasetOptions struct {
	Path string `cfg:"path" help:"数据集文件 (yaml/json/toml)，为空时使用内置样本"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Environ(), os.Stdout); err != nil {
		if errors.Is(err, cfg.ErrHelp) {
			fmt.Fprint(os.Stdout, cfg.GenerateHelp(&Config{}, envPrefix, ""))
			return
		}
		log.Default().Error("seeddb failed", "error", fmt.Sprintf("%+v", err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args, environ []string, stdout io.Writer) error {
	var config Config
	if err := cfg.Load(&cfg.Options{
		EnvPrefix: envPrefix,
		Args:      args,
		Environ:   environ,
	}, &config); err != nil {
		return err
	}
	if config.Watch && config.Dataset.Path == "" {
		return errors.New("--watch requires --dataset-path")
	}

	l, err := log.NewLogWithOptions(&config.Log)
	if err != nil {
		return errors.WithMessage(err, "create logger failed")
	}
	defer l.Close()
	prev := log.Default()
	log.SetDefault(l)
	defer log.SetDefault(prev)

	metadata, err := dataset.Metadata()
	if err != nil {
		return err
	}

	db, err := database.NewDatabaseWithOptions(&config.Database, metadata, l.With("component", "database"))
	if err != nil {
		return err
	}
	defer db.Close()

	s := &seeder{db: db, config: &config, logger: l}
	if err := s.seed(ctx); err != nil {
		return err
	}

	if config.Dump {
		if err := dump(ctx, db, dumpFilter(&config), stdout); err != nil {
			return err
		}
	}

	if config.Watch {
		return s.watch(ctx)
	}
	return nil
}

type seeder struct {
	db     database.Database
	config *Config
	logger logger.Logger
}

// seed 建表并写入数据集，重复执行不会产生重复行
func (s *seeder) seed(ctx context.Context) error {
	if err := s.db.CreateTablesIfNotExist(ctx); err != nil {
		return err
	}

	samples, err := dataset.Load(s.config.Dataset.Path)
	if err != nil {
		return err
	}
	records, err := dataset.Records(samples)
	if err != nil {
		return err
	}

	var opts []database.InsertOption
	if s.config.Upsert {
		opts = append(opts, database.WithUpsert())
	}
	if s.config.PrimaryKey {
		opts = append(opts, database.WithPrimaryKey())
	}
	if err := s.db.InsertMany(ctx, records, opts...); err != nil {
		return err
	}

	ids := make([]int64, 0, len(samples))
	for _, sample := range samples {
		if sample.ID != nil {
			ids = append(ids, *sample.ID)
		}
	}
	s.logger.InfoContext(ctx, "seeded samples", "path", s.config.Database.Path, "count", len(samples), "ids", ids)
	return nil
}

// watch 文件变化通过 channel 交给当前 goroutine 处理，写入始终是单线程的
func (s *seeder) watch(ctx context.Context) error {
	w, err := cfg.NewFileWatcher(s.config.Dataset.Path)
	if err != nil {
		return err
	}
	defer w.Close()

	reload := make(chan struct{}, 1)
	w.OnChange(func(data []byte) error {
		select {
		case reload <- struct{}{}:
		default:
		}
		return nil
	})
	w.OnError(func(err error) {
		s.logger.WarnContext(ctx, "watch dataset failed", "error", err.Error())
	})
	if err := w.Watch(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "watching dataset", "path", w.Path())

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-reload:
			if err := s.seed(ctx); err != nil {
				s.logger.ErrorContext(ctx, "reseed failed", "error", err.Error())
			}
		}
	}
}

// dumpFilter 各过滤条件同时满足，没有条件时返回 nil
func dumpFilter(config *Config) query.Query {
	var must []query.Query
	if config.DumpPrefix != "" {
		must = append(must, &query.PrefixQuery{Field: "path", Value: config.DumpPrefix})
	}
	switch len(config.DumpPaths) {
	case 0:
	case 1:
		must = append(must, &query.TermQuery{Field: "path", Value: config.DumpPaths[0]})
	default:
		values := make([]any, len(config.DumpPaths))
		for i, p := range config.DumpPaths {
			values[i] = p
		}
		must = append(must, &query.TermsQuery{Field: "path", Values: values})
	}
	if config.DumpTagged {
		must = append(must, &query.ExistsQuery{Field: "tags"})
	}

	if len(must) == 0 {
		return nil
	}
	return &query.BoolQuery{Must: must}
}

// dump 以前端 /samples 接口的格式输出所有样本，JSON 列原样嵌入
func dump(ctx context.Context, db database.Database, q query.Query, stdout io.Writer) error {
	meta, ok := db.Metadata().Table(dataset.Sample{}.Table())
	if !ok {
		return errors.Wrap(rdb.ErrUnknownTable, dataset.Sample{}.Table())
	}
	jsonColumns := map[string]bool{}
	for _, col := range meta.Columns {
		if col.Type == rdb.FieldTypeJSON {
			jsonColumns[col.Name] = true
		}
	}

	var orderBy []string
	if pk, ok := meta.PrimaryKeyColumn(); ok {
		orderBy = append(orderBy, pk.Name)
	}
	stmt, args, err := query.SelectSQL(meta.Name(), q, orderBy...)
	if err != nil {
		return err
	}
	rows, err := db.QueryAll(ctx, stmt, args...)
	if err != nil {
		return err
	}

	out := make([]database.Row, 0, len(rows))
	for _, row := range rows {
		values := make([]any, len(row.Values()))
		for i, c := range row.Columns() {
			values[i] = row.Values()[i]
			if !jsonColumns[c] {
				continue
			}
			if s, err := row.String(c); err == nil && s != "" {
				values[i] = json.RawMessage(s)
			}
		}
		out = append(out, database.NewRow(row.Columns(), values))
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return errors.Wrap(err, "encode samples failed")
	}
	return nil
}
