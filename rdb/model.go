package rdb

import (
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// TableModel 表模型定义
type TableModel struct {
	Table  string // 表名
	Fields []FieldDefinition
	// Unique 表级唯一约束，每一项是一组字段名，生成 UNIQUE (a, b)
	Unique [][]string
	// ConflictKey upsert 时的冲突目标字段，为空时使用主键
	ConflictKey []string
}

// FieldDefinition 字段定义
type FieldDefinition struct {
	Name       string
	Type       FieldType
	PrimaryKey bool
	Unique     bool
	// References 外键引用的表名，存储的是被引用表的主键值
	References string
}

// FieldType 字段类型
type FieldType string

const (
	FieldTypeString FieldType = "string"
	FieldTypeInt    FieldType = "int"
	FieldTypeFloat  FieldType = "float"
	FieldTypeBool   FieldType = "bool"
	FieldTypeDate   FieldType = "date"
	FieldTypeJSON   FieldType = "json"
)

// Field 按名称查找字段定义
func (m *TableModel) Field(name string) (FieldDefinition, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// TableModelBuilder 表模型构建器
type TableModelBuilder struct{}

// NewTableModelBuilder 创建新的表模型构建器
func NewTableModelBuilder() *TableModelBuilder {
	return &TableModelBuilder{}
}

type tableNamer interface {
	Table() string
}

type uniqueKeyer interface {
	UniqueKeys() [][]string
}

type conflictKeyer interface {
	ConflictKey() []string
}

// FromStruct 从结构体构建 TableModel
// 支持的 tag 格式：
// - `rdb:"column_name,type=json,pk,unique,ref=Table"`
// - `rdb:"-"` 忽略字段
// 表级配置通过结构体方法提供：Table() string、UniqueKeys() [][]string、ConflictKey() []string
func (b *TableModelBuilder) FromStruct(v any) (*TableModel, error) {
	rt := reflect.TypeOf(v)
	for rt != nil && rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt == nil || rt.Kind() != reflect.Struct {
		return nil, errors.Errorf("expected struct, got %T", v)
	}

	model := &TableModel{
		Table: rt.Name(),
	}

	zero := reflect.New(rt).Interface()
	if t, ok := zero.(tableNamer); ok && t.Table() != "" {
		model.Table = t.Table()
	}
	if u, ok := zero.(uniqueKeyer); ok {
		model.Unique = u.UniqueKeys()
	}
	if c, ok := zero.(conflictKeyer); ok {
		model.ConflictKey = c.ConflictKey()
	}

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		if field.Tag.Get("rdb") == "-" {
			continue
		}

		fieldDef, err := b.parseFieldTag(field)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to parse field %s", field.Name)
		}
		model.Fields = append(model.Fields, fieldDef)
	}

	return model, nil
}

// parseFieldTag 解析字段的 rdb tag
func (b *TableModelBuilder) parseFieldTag(field reflect.StructField) (FieldDefinition, error) {
	// 第一部分是字段名（如果指定）
	name, parts, _ := splitTag(field)
	fieldDef := FieldDefinition{
		Name: name,
		Type: b.inferFieldType(field.Type),
	}

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if key, value, ok := strings.Cut(part, "="); ok {
			key = strings.TrimSpace(key)
			value = strings.TrimSpace(value)
			switch key {
			case "type":
				fieldDef.Type = FieldType(value)
			case "ref", "references":
				fieldDef.References = value
			default:
				return fieldDef, errors.Errorf("unknown tag option %q", key)
			}
			continue
		}

		switch part {
		case "primary", "pk":
			fieldDef.PrimaryKey = true
		case "unique", "uniq":
			fieldDef.Unique = true
		default:
			return fieldDef, errors.Errorf("unknown tag option %q", part)
		}
	}

	return fieldDef, nil
}

// inferFieldType 从 Go 类型推断字段类型
func (b *TableModelBuilder) inferFieldType(t reflect.Type) FieldType {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.String:
		return FieldTypeString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return FieldTypeInt
	case reflect.Float32, reflect.Float64:
		return FieldTypeFloat
	case reflect.Bool:
		return FieldTypeBool
	case reflect.Map, reflect.Slice, reflect.Array:
		return FieldTypeJSON
	case reflect.Struct:
		if t.String() == "time.Time" {
			return FieldTypeDate
		}
		// big.Rat 等分数类型按浮点存储
		if t.String() == "big.Rat" {
			return FieldTypeFloat
		}
		// 结构体字段一般是外键（配合 ref=），类型在构建元数据时由被引用主键决定
		return ""
	default:
		return ""
	}
}
