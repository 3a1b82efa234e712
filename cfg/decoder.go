package cfg

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Decoder 将配置文件内容解码为嵌套 map
type Decoder interface {
	Decode(data []byte) (map[string]any, error)
}

// DecoderFunc 函数形式的 Decoder
type DecoderFunc func(data []byte) (map[string]any, error)

func (f DecoderFunc) Decode(data []byte) (map[string]any, error) {
	return f(data)
}

var decoders = map[string]Decoder{
	".yaml": DecoderFunc(decodeYAML),
	".yml":  DecoderFunc(decodeYAML),
	".json": DecoderFunc(decodeJSON),
	".toml": DecoderFunc(decodeTOML),
	".ini":  DecoderFunc(decodeINI),
}

// DecoderFor 根据文件扩展名选择解码器
func DecoderFor(filename string) (Decoder, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	d, ok := decoders[ext]
	if !ok {
		return nil, errors.Errorf("unsupported config file extension %q", ext)
	}
	return d, nil
}

func decodeYAML(data []byte) (map[string]any, error) {
	result := map[string]any{}
	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrap(err, "yaml.Unmarshal failed")
	}
	return result, nil
}

func decodeJSON(data []byte) (map[string]any, error) {
	result := map[string]any{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrap(err, "json.Unmarshal failed")
	}
	return result, nil
}

func decodeTOML(data []byte) (map[string]any, error) {
	result := map[string]any{}
	if _, err := toml.Decode(string(data), &result); err != nil {
		return nil, errors.Wrap(err, "toml.Decode failed")
	}
	return result, nil
}

// decodeINI 默认分区的键放在顶层，其余分区作为嵌套 map，值保持字符串
func decodeINI(data []byte) (map[string]any, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		AllowBooleanKeys:         true,
		SpaceBeforeInlineComment: true,
	}, data)
	if err != nil {
		return nil, errors.Wrap(err, "ini.LoadSources failed")
	}

	result := map[string]any{}
	for _, section := range file.Sections() {
		target := result
		if section.Name() != ini.DefaultSection {
			target = map[string]any{}
			result[section.Name()] = target
		}
		for _, key := range section.Keys() {
			target[key.Name()] = key.Value()
		}
	}
	return result, nil
}
