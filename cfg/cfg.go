// Package cfg 加载分层配置：def tag 默认值 < 配置文件 < 环境变量 < 命令行参数
package cfg

import (
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// ErrHelp 命令行参数中出现 --help 或 -h
var ErrHelp = errors.New("help requested")

// ConfigArg 指定配置文件的命令行参数名
const ConfigArg = "config"

// Options 配置加载选项
type Options struct {
	// Filename 配置文件路径，为空时不读取文件；命令行 --config 优先
	Filename string
	// EnvPrefix 环境变量前缀，如 "SEEDDB_"，为空时不读取环境变量
	EnvPrefix string
	// CmdPrefix 命令行参数前缀，如 "app-" 只处理 --app-* 参数
	CmdPrefix string
	// Args 命令行参数，不包含程序名
	Args []string
	// Environ 环境变量，为 nil 时使用 os.Environ()
	Environ []string
}

// Load 按优先级将配置写入 object，最后执行 validate tag 校验
func Load(options *Options, object any) error {
	if options == nil {
		options = &Options{}
	}

	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return errors.Errorf("object must be a pointer to struct, got %T", object)
	}

	args, err := ParseArgs(options.Args, options.CmdPrefix)
	if err != nil {
		return err
	}
	if _, ok := args["help"]; ok {
		return ErrHelp
	}

	if err := SetDefaults(object); err != nil {
		return errors.WithMessage(err, "set defaults failed")
	}

	filename := options.Filename
	if v, ok := args[ConfigArg]; ok {
		filename = v
		delete(args, ConfigArg)
	}
	if filename != "" {
		if err := LoadFile(filename, object); err != nil {
			return err
		}
	}

	if options.EnvPrefix != "" {
		environ := options.Environ
		if environ == nil {
			environ = os.Environ()
		}
		for key, value := range ParseEnv(environ, options.EnvPrefix) {
			// 带前缀的无关环境变量直接忽略
			if _, err := setFlat(rv.Elem(), splitFlatKey(key), value); err != nil {
				return errors.WithMessagef(err, "env %s%s", options.EnvPrefix, key)
			}
		}
	}

	for key, value := range args {
		ok, err := setFlat(rv.Elem(), splitFlatKey(key), value)
		if err != nil {
			return errors.WithMessagef(err, "arg --%s%s", options.CmdPrefix, key)
		}
		if !ok {
			return errors.Errorf("unknown arg --%s%s", options.CmdPrefix, key)
		}
	}

	return Validate(object)
}

// LoadFile 按扩展名解码配置文件并写入 object
func LoadFile(filename string, object any) error {
	decoder, err := DecoderFor(filename)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrapf(err, "read config file %s failed", filename)
	}
	m, err := decoder.Decode(data)
	if err != nil {
		return errors.WithMessagef(err, "decode config file %s", filename)
	}
	if err := convertValue(m, reflect.ValueOf(object)); err != nil {
		return errors.WithMessagef(err, "config file %s", filename)
	}
	return nil
}

// ParseArgs 解析 --key=value、--key value 和布尔标志 --key
// 不以 -- 开头的参数被忽略，-h 视为 --help
func ParseArgs(args []string, prefix string) (map[string]string, error) {
	result := map[string]string{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "-h" {
			result["help"] = "true"
			continue
		}
		if !strings.HasPrefix(arg, "--") {
			continue
		}
		if arg == "--" {
			break
		}

		key := arg[2:]
		value := "true"
		if k, v, ok := strings.Cut(key, "="); ok {
			key, value = k, v
		} else if i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
			i++
			value = args[i]
		}

		if key == "help" {
			result[key] = value
			continue
		}
		if prefix != "" {
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			key = key[len(prefix):]
		}
		if key == "" {
			return nil, errors.Errorf("invalid arg %q", arg)
		}
		result[key] = value
	}
	return result, nil
}

// ParseEnv 取出带前缀的环境变量，返回去掉前缀后的键
func ParseEnv(environ []string, prefix string) map[string]string {
	result := map[string]string{}
	for _, env := range environ {
		key, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		key = key[len(prefix):]
		if key == "" {
			continue
		}
		result[key] = value
	}
	return result
}

var validate = validator.New()

// Validate 使用 validate tag 校验结构体
func Validate(object any) error {
	rv := reflect.ValueOf(object)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	if err := validate.Struct(rv.Interface()); err != nil {
		return errors.Wrap(err, "validate config failed")
	}
	return nil
}
