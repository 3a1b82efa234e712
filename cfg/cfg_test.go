package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

type testDatabase struct {
	Type        string        `cfg:"type" def:"sql" validate:"oneof=sql gorm"`
	Path        string        `cfg:"path" def:"dataset.sqlite3" validate:"required"`
	BusyTimeout time.Duration `cfg:"busyTimeout" def:"5s"`
}

type testConfig struct {
	Database testDatabase `cfg:"database"`
	Upsert   bool         `cfg:"upsert" def:"true"`
	Tags     []string     `cfg:"tags"`
	Level    string       `cfg:"level" def:"info" help:"日志级别"`
	Ignored  string       `cfg:"-"`
}

func writeFile(dir, name, content string) string {
	filename := filepath.Join(dir, name)
	So(os.WriteFile(filename, []byte(content), 0644), ShouldBeNil)
	return filename
}

func TestLoad(t *testing.T) {
	Convey("测试 Load", t, func() {
		dir := t.TempDir()

		Convey("只有默认值", func() {
			var c testConfig
			So(Load(&Options{Environ: []string{}}, &c), ShouldBeNil)
			So(c.Database.Type, ShouldEqual, "sql")
			So(c.Database.Path, ShouldEqual, "dataset.sqlite3")
			So(c.Database.BusyTimeout, ShouldEqual, 5*time.Second)
			So(c.Upsert, ShouldBeTrue)
			So(c.Level, ShouldEqual, "info")
		})

		Convey("各种格式的配置文件", func() {
			files := map[string]string{
				"c.yaml": "database:\n  path: a.sqlite3\n  busy_timeout: 1s\nupsert: false\ntags: [x, y]\n",
				"c.json": `{"database": {"path": "a.sqlite3", "busyTimeout": "1s"}, "upsert": false, "tags": ["x", "y"]}`,
				"c.toml": "upsert = false\ntags = [\"x\", \"y\"]\n[database]\npath = \"a.sqlite3\"\nbusyTimeout = \"1s\"\n",
				"c.ini":  "upsert = false\ntags = x, y\n[database]\npath = a.sqlite3\nbusy-timeout = 1s\n",
			}
			for name, content := range files {
				var c testConfig
				filename := writeFile(dir, name, content)
				So(Load(&Options{Filename: filename, Environ: []string{}}, &c), ShouldBeNil)
				So(c.Database.Path, ShouldEqual, "a.sqlite3")
				So(c.Database.Type, ShouldEqual, "sql")
				So(c.Database.BusyTimeout, ShouldEqual, time.Second)
				So(c.Upsert, ShouldBeFalse)
				So(c.Tags, ShouldResemble, []string{"x", "y"})
			}
		})

		Convey("优先级：命令行 > 环境变量 > 文件 > 默认值", func() {
			filename := writeFile(dir, "c.yaml", "database:\n  path: file.sqlite3\n  type: gorm\nlevel: warn\n")
			var c testConfig
			err := Load(&Options{
				EnvPrefix: "SEEDDB_",
				Args:      []string{"--config", filename, "--database-path=arg.sqlite3", "--upsert", "false"},
				Environ: []string{
					"SEEDDB_DATABASE_PATH=env.sqlite3",
					"SEEDDB_LEVEL=debug",
					"SEEDDB_UNKNOWN=1",
					"OTHER_LEVEL=error",
				},
			}, &c)
			So(err, ShouldBeNil)
			So(c.Database.Path, ShouldEqual, "arg.sqlite3")
			So(c.Database.Type, ShouldEqual, "gorm")
			So(c.Level, ShouldEqual, "debug")
			So(c.Upsert, ShouldBeFalse)
		})

		Convey("驼峰字段的扁平键", func() {
			var c testConfig
			err := Load(&Options{
				EnvPrefix: "SEEDDB_",
				Environ:   []string{"SEEDDB_DATABASE_BUSY_TIMEOUT=2s"},
				Args:      []string{"--tags=a,b"},
			}, &c)
			So(err, ShouldBeNil)
			So(c.Database.BusyTimeout, ShouldEqual, 2*time.Second)
			So(c.Tags, ShouldResemble, []string{"a", "b"})
		})

		Convey("未知的命令行参数", func() {
			var c testConfig
			err := Load(&Options{Args: []string{"--nope=1"}, Environ: []string{}}, &c)
			So(err, ShouldNotBeNil)

			err = Load(&Options{Args: []string{"--ignored=1"}, Environ: []string{}}, &c)
			So(err, ShouldNotBeNil)
		})

		Convey("帮助", func() {
			var c testConfig
			So(errors.Is(Load(&Options{Args: []string{"--help"}}, &c), ErrHelp), ShouldBeTrue)
			So(errors.Is(Load(&Options{Args: []string{"-h"}}, &c), ErrHelp), ShouldBeTrue)
		})

		Convey("校验失败", func() {
			var c testConfig
			err := Load(&Options{Args: []string{"--database-type=mysql"}, Environ: []string{}}, &c)
			So(err, ShouldNotBeNil)

			err = Load(&Options{Args: []string{"--upsert=maybe"}, Environ: []string{}}, &c)
			So(err, ShouldNotBeNil)
		})

		Convey("文件错误", func() {
			var c testConfig
			So(Load(&Options{Filename: filepath.Join(dir, "missing.yaml")}, &c), ShouldNotBeNil)
			So(Load(&Options{Filename: writeFile(dir, "c.xml", "<a/>")}, &c), ShouldNotBeNil)
			So(Load(&Options{Filename: writeFile(dir, "bad.json", "{")}, &c), ShouldNotBeNil)
			So(Load(&Options{Filename: writeFile(dir, "bad.yaml", "database: [1, 2]")}, &c), ShouldNotBeNil)
		})

		Convey("目标不是结构体指针", func() {
			var c testConfig
			So(Load(nil, c), ShouldNotBeNil)
			So(Load(nil, (*testConfig)(nil)), ShouldNotBeNil)
		})
	})
}

func TestParseArgs(t *testing.T) {
	Convey("测试 ParseArgs", t, func() {
		args, err := ParseArgs([]string{"run", "--a=1", "--b", "2", "--flag", "--c", "--app-d=4", "--", "--e=5"}, "")
		So(err, ShouldBeNil)
		So(args, ShouldResemble, map[string]string{"a": "1", "b": "2", "flag": "true", "c": "true", "app-d": "4"})

		args, err = ParseArgs([]string{"--a=1", "--app-d=4", "--help"}, "app-")
		So(err, ShouldBeNil)
		So(args, ShouldResemble, map[string]string{"d": "4", "help": "true"})

		_, err = ParseArgs([]string{"--app-=1"}, "app-")
		So(err, ShouldNotBeNil)
	})
}

func TestParseEnv(t *testing.T) {
	Convey("测试 ParseEnv", t, func() {
		env := ParseEnv([]string{"SEEDDB_A=1", "SEEDDB_=2", "B=3", "SEEDDB_C=x=y", "broken"}, "SEEDDB_")
		So(env, ShouldResemble, map[string]string{"A": "1", "C": "x=y"})
	})
}
