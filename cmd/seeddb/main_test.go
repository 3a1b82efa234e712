package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hatlonely/seeddb/cfg"
	"github.com/hatlonely/seeddb/dataset"
	"github.com/hatlonely/seeddb/rdb/database"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func countSamples(path string) int64 {
	m, err := dataset.Metadata()
	So(err, ShouldBeNil)
	db, err := database.NewDatabaseWithOptions(&database.Options{Path: path, BusyTimeout: time.Second}, m, nil)
	So(err, ShouldBeNil)
	defer db.Close()

	rows, err := db.QueryAll(context.Background(), `SELECT COUNT(*) AS n FROM "Sample"`)
	if err != nil {
		// 表还没有创建
		return 0
	}
	n, err := rows[0].Int64("n")
	So(err, ShouldBeNil)
	return n
}

func TestRun(t *testing.T) {
	Convey("测试 run", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		dbPath := filepath.Join(dir, "dataset.sqlite3")
		logArgs := []string{"--log-output-target", "file", "--log-output-path", filepath.Join(dir, "seeddb.log")}

		Convey("写入内置样本并输出", func() {
			for _, typ := range []string{"sql", "gorm"} {
				var stdout bytes.Buffer
				args := append([]string{"--database-path", dbPath, "--database-type", typ, "--dump"}, logArgs...)
				So(run(ctx, args, []string{}, &stdout), ShouldBeNil)

				var samples []struct {
					ID         int64               `json:"id"`
					Path       string              `json:"path"`
					Annotation map[string][]string `json:"annotation"`
					Tags       []string            `json:"tags"`
				}
				So(json.Unmarshal(stdout.Bytes(), &samples), ShouldBeNil)
				So(samples, ShouldHaveLength, 4)
				So(samples[0].Path, ShouldEqual, "https://i.imgur.com/ZVsTgFW.mp4")
				So(samples[0].Annotation, ShouldResemble, map[string][]string{"captions": {"It said edible!"}})
				So(samples[0].Tags, ShouldBeNil)
				So(samples[0].ID, ShouldNotEqual, samples[1].ID)
			}
			So(countSamples(dbPath), ShouldEqual, 4)
		})

		Convey("按前缀过滤输出", func() {
			var stdout bytes.Buffer
			args := append([]string{"--database-path", dbPath, "--dump", "--dump-prefix", "https://i.imgur.com/"}, logArgs...)
			So(run(ctx, args, []string{}, &stdout), ShouldBeNil)

			var samples []struct {
				Path string `json:"path"`
			}
			So(json.Unmarshal(stdout.Bytes(), &samples), ShouldBeNil)
			So(samples, ShouldHaveLength, 3)
			for _, s := range samples {
				So(s.Path, ShouldStartWith, "https://i.imgur.com/")
			}
		})

		Convey("按 path 和 tags 过滤输出", func() {
			dumpPaths := func(extra ...string) []string {
				var stdout bytes.Buffer
				args := append([]string{"--database-path", dbPath, "--dump"}, extra...)
				So(run(ctx, append(args, logArgs...), []string{}, &stdout), ShouldBeNil)

				var samples []struct {
					Path string `json:"path"`
				}
				So(json.Unmarshal(stdout.Bytes(), &samples), ShouldBeNil)
				paths := []string{}
				for _, s := range samples {
					paths = append(paths, s.Path)
				}
				return paths
			}

			So(dumpPaths("--dump-paths", "https://i.imgur.com/2QF3yfo.mp4"), ShouldResemble, []string{"https://i.imgur.com/2QF3yfo.mp4"})
			So(dumpPaths("--dump-paths", "https://i.imgur.com/2QF3yfo.mp4,https://www.youtube.com/watch?v=CiZO38P_3Y8"), ShouldResemble,
				[]string{"https://i.imgur.com/2QF3yfo.mp4", "https://www.youtube.com/watch?v=CiZO38P_3Y8"})
			So(dumpPaths("--dump-paths", "https://i.imgur.com/ZVsTgFW.mp4", "--dump-prefix", "https://www.youtube.com/"), ShouldBeEmpty)
			So(dumpPaths("--dump-tagged"), ShouldBeEmpty)
		})

		Convey("环境变量配置", func() {
			var stdout bytes.Buffer
			env := []string{"SEEDDB_DATABASE_PATH=" + dbPath, "SEEDDB_UPSERT=true", "SEEDDB_DUMP=false"}
			So(run(ctx, logArgs, env, &stdout), ShouldBeNil)
			So(stdout.Len(), ShouldEqual, 0)
			So(countSamples(dbPath), ShouldEqual, 4)
		})

		Convey("不使用 upsert 时重复写入会违反唯一约束", func() {
			args := append([]string{"--database-path", dbPath, "--upsert=false"}, logArgs...)
			So(run(ctx, args, []string{}, &bytes.Buffer{}), ShouldBeNil)
			So(run(ctx, args, []string{}, &bytes.Buffer{}), ShouldNotBeNil)
			So(countSamples(dbPath), ShouldEqual, 4)
		})

		Convey("数据集文件", func() {
			datasetPath := filepath.Join(dir, "samples.yaml")
			So(os.WriteFile(datasetPath, []byte("samples:\n  - path: a.mp4\n    annotation: {captions: [a]}\n"), 0644), ShouldBeNil)
			args := append([]string{"--database-path", dbPath, "--dataset-path", datasetPath}, logArgs...)
			So(run(ctx, args, []string{}, &bytes.Buffer{}), ShouldBeNil)
			So(countSamples(dbPath), ShouldEqual, 1)
		})

		Convey("监听数据集文件", func() {
			datasetPath := filepath.Join(dir, "samples.yaml")
			So(os.WriteFile(datasetPath, []byte("samples:\n  - path: a.mp4\n"), 0644), ShouldBeNil)

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			done := make(chan error, 1)
			go func() {
				args := append([]string{"--database-path", dbPath, "--dataset-path", datasetPath, "--watch"}, logArgs...)
				done <- run(ctx, args, []string{}, &bytes.Buffer{})
			}()

			deadline := time.Now().Add(10 * time.Second)
			for countSamples(dbPath) < 1 && time.Now().Before(deadline) {
				time.Sleep(50 * time.Millisecond)
			}
			So(countSamples(dbPath), ShouldEqual, 1)

			// 监听可能晚于第一次写文件，重复写入直到生效
			for countSamples(dbPath) < 2 && time.Now().Before(deadline) {
				So(os.WriteFile(datasetPath, []byte("samples:\n  - path: a.mp4\n  - path: b.mp4\n"), 0644), ShouldBeNil)
				time.Sleep(200 * time.Millisecond)
			}
			So(countSamples(dbPath), ShouldEqual, 2)

			cancel()
			select {
			case err := <-done:
				So(err, ShouldBeNil)
			case <-time.After(10 * time.Second):
				t.Fatal("watch did not stop")
			}
		})

		Convey("参数错误", func() {
			So(errors.Is(run(ctx, []string{"--help"}, []string{}, &bytes.Buffer{}), cfg.ErrHelp), ShouldBeTrue)
			So(run(ctx, []string{"--nope"}, []string{}, &bytes.Buffer{}), ShouldNotBeNil)
			So(run(ctx, []string{"--watch"}, []string{}, &bytes.Buffer{}), ShouldNotBeNil)
			So(run(ctx, []string{"--database-type=mysql"}, []string{}, &bytes.Buffer{}), ShouldNotBeNil)
		})
	})
}

func TestDumpFilter(t *testing.T) {
	Convey("测试 dumpFilter", t, func() {
		So(dumpFilter(&Config{}), ShouldBeNil)

		q := dumpFilter(&Config{DumpPrefix: "https://i.imgur.com/", DumpPaths: []string{"a", "b"}, DumpTagged: true})
		sql, args, err := q.ToSQL()
		So(err, ShouldBeNil)
		So(sql, ShouldEqual, `("path" LIKE ? ESCAPE '\' AND "path" IN (?, ?) AND "tags" IS NOT NULL)`)
		So(args, ShouldResemble, []any{"https://i.imgur.com/%", "a", "b"})

		sql, args, err = dumpFilter(&Config{DumpPaths: []string{"a"}}).ToSQL()
		So(err, ShouldBeNil)
		So(sql, ShouldEqual, `("path" = ?)`)
		So(args, ShouldResemble, []any{"a"})
	})
}

func TestHelp(t *testing.T) {
	Convey("帮助信息包含所有参数", t, func() {
		help := cfg.GenerateHelp(&Config{}, envPrefix, "")
		for _, name := range []string{"--database-path", "--database-type", "--dataset-path", "--dump", "--dump-prefix", "--dump-paths", "--dump-tagged", "--watch", "--primary-key", "SEEDDB_UPSERT"} {
			So(help, ShouldContainSubstring, name)
		}
	})
}
