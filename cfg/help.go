package cfg

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
)

// FieldInfo 叶子配置项的说明
type FieldInfo struct {
	Path         string // 字段路径，如 "database.path"
	Type         string
	Help         string
	EnvName      string
	CmdName      string
	DefaultValue string
	Required     bool
}

// GenerateHelp 生成配置帮助信息
// envPrefix: 环境变量前缀，如 "SEEDDB_"
// cmdPrefix: 命令行参数前缀，如 "app-"
func GenerateHelp(object any, envPrefix, cmdPrefix string) string {
	fields := ExtractFieldInfo(object, envPrefix, cmdPrefix)
	if len(fields) == 0 {
		return "未找到配置字段信息\n"
	}

	var sb strings.Builder
	sb.WriteString("配置参数说明：\n\n")
	for _, f := range fields {
		fmt.Fprintf(&sb, "  %s (%s)", f.CmdName, f.Type)
		if f.Required {
			sb.WriteString(" [必填]")
		}
		sb.WriteString("\n")
		if f.Help != "" {
			fmt.Fprintf(&sb, "    说明: %s\n", f.Help)
		}
		if f.DefaultValue != "" {
			fmt.Fprintf(&sb, "    默认值: %s\n", f.DefaultValue)
		}
		if envPrefix != "" {
			fmt.Fprintf(&sb, "    环境变量: %s\n", f.EnvName)
		}
	}
	fmt.Fprintf(&sb, "\n  --%s (string)\n    说明: 配置文件路径，支持 yaml/json/toml/ini\n", ConfigArg)
	sb.WriteString("\n配置优先级 (从低到高): 默认值, 配置文件, 环境变量, 命令行参数\n")
	return sb.String()
}

// ExtractFieldInfo 按声明顺序提取叶子字段
func ExtractFieldInfo(object any, envPrefix, cmdPrefix string) []FieldInfo {
	rt := reflect.TypeOf(object)
	for rt != nil && rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt == nil || rt.Kind() != reflect.Struct {
		return nil
	}
	return extractFields(rt, nil, envPrefix, cmdPrefix)
}

func extractFields(rt reflect.Type, path []string, envPrefix, cmdPrefix string) []FieldInfo {
	var fields []FieldInfo
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := fieldKey(field)
		if name == "-" {
			continue
		}

		p := append(append([]string{}, path...), name)
		if isNested(field.Type) {
			t := field.Type
			for t.Kind() == reflect.Ptr {
				t = t.Elem()
			}
			fields = append(fields, extractFields(t, p, envPrefix, cmdPrefix)...)
			continue
		}

		words := make([]string, 0, len(p))
		for _, s := range p {
			words = append(words, splitWords(s)...)
		}
		fields = append(fields, FieldInfo{
			Path:         strings.Join(p, "."),
			Type:         field.Type.String(),
			Help:         field.Tag.Get("help"),
			EnvName:      envPrefix + strings.ToUpper(strings.Join(words, "_")),
			CmdName:      "--" + cmdPrefix + strings.ToLower(strings.Join(words, "-")),
			DefaultValue: field.Tag.Get("def"),
			Required:     strings.Contains(field.Tag.Get("validate"), "required"),
		})
	}
	return fields
}

// splitWords busyTimeout -> [busy Timeout]，已有分隔符时按分隔符切分
func splitWords(s string) []string {
	var words []string
	var cur []rune
	for i, r := range s {
		if r == '-' || r == '_' {
			if len(cur) > 0 {
				words = append(words, string(cur))
				cur = nil
			}
			continue
		}
		if i > 0 && unicode.IsUpper(r) && len(cur) > 0 && !unicode.IsUpper(cur[len(cur)-1]) {
			words = append(words, string(cur))
			cur = nil
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		words = append(words, string(cur))
	}
	return words
}
