package rdb

import (
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// Record 可写入数据库的记录
type Record interface {
	// TableName 记录所属的表
	TableName() string
	// Value 按字段名取值，外键字段返回被引用的记录（Record 或带 rdb tag 的结构体指针）
	Value(field string) (any, bool)
}

// KeyedRecord 支持回写自增主键的记录
type KeyedRecord interface {
	Record
	SetPrimaryKey(value any) error
}

// StructRecord 基于 rdb tag 的结构体记录适配器
type StructRecord struct {
	rv      reflect.Value
	table   string
	fields  map[string]int
	pkIndex int
}

// NewStructRecord 包装结构体指针，字段名与 TableModelBuilder.FromStruct 的规则一致
func NewStructRecord(v any) (*StructRecord, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, errors.Errorf("expected pointer to struct, got %T", v)
	}

	rt := rv.Elem().Type()
	r := &StructRecord{
		rv:      rv.Elem(),
		table:   rt.Name(),
		fields:  make(map[string]int, rt.NumField()),
		pkIndex: -1,
	}
	if t, ok := v.(tableNamer); ok && t.Table() != "" {
		r.table = t.Table()
	}

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, opts, skip := splitTag(field)
		if skip {
			continue
		}
		r.fields[name] = i
		if r.pkIndex < 0 && (hasOption(opts, "pk") || hasOption(opts, "primary")) {
			r.pkIndex = i
		}
	}

	return r, nil
}

// MustNewStructRecord 同 NewStructRecord，出错时 panic
func MustNewStructRecord(v any) *StructRecord {
	r, err := NewStructRecord(v)
	if err != nil {
		panic(err)
	}
	return r
}

// StructRecords 将一组结构体指针包装为记录
func StructRecords[T any](xs []*T) ([]Record, error) {
	records := make([]Record, 0, len(xs))
	for i, x := range xs {
		r, err := NewStructRecord(x)
		if err != nil {
			return nil, errors.WithMessagef(err, "record %d", i)
		}
		records = append(records, r)
	}
	return records, nil
}

func (r *StructRecord) TableName() string {
	return r.table
}

func (r *StructRecord) Value(field string) (any, bool) {
	i, ok := r.fields[field]
	if !ok {
		return nil, false
	}
	return r.rv.Field(i).Interface(), true
}

// Interface 返回被包装的结构体指针
func (r *StructRecord) Interface() any {
	return r.rv.Addr().Interface()
}

// SetPrimaryKey 将数据库返回的主键写回结构体
func (r *StructRecord) SetPrimaryKey(value any) error {
	if r.pkIndex < 0 {
		return errors.Wrapf(ErrNoPrimaryKey, "struct %s", r.rv.Type().Name())
	}
	field := r.rv.Field(r.pkIndex)
	if err := assignValue(field, value); err != nil {
		return errors.WithMessagef(err, "set primary key %s.%s", r.rv.Type().Name(), r.rv.Type().Field(r.pkIndex).Name)
	}
	return nil
}

// assignValue 将数据库返回值赋给字段，支持指针字段
func assignValue(dst reflect.Value, value any) error {
	if value == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}

	if dst.Kind() == reflect.Ptr {
		elem := reflect.New(dst.Type().Elem())
		if err := assignValue(elem.Elem(), value); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	src := reflect.ValueOf(value)
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}

	switch dst.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		if isNumberKind(src.Kind()) {
			dst.Set(src.Convert(dst.Type()))
			return nil
		}
	case reflect.String:
		switch v := value.(type) {
		case string:
			dst.SetString(v)
			return nil
		case []byte:
			dst.SetString(string(v))
			return nil
		}
	}

	return errors.Wrapf(ErrTypeMismatch, "cannot assign %T to %s", value, dst.Type())
}

func isNumberKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// splitTag 解析 rdb tag，返回字段名、其余选项以及是否忽略
func splitTag(field reflect.StructField) (string, []string, bool) {
	tag := field.Tag.Get("rdb")
	if tag == "-" {
		return "", nil, true
	}
	if tag == "" {
		return field.Name, nil, false
	}
	parts := strings.Split(tag, ",")
	name := field.Name
	if parts[0] != "" && !strings.Contains(parts[0], "=") {
		name = strings.TrimSpace(parts[0])
		parts = parts[1:]
	}
	return name, parts, false
}

func hasOption(opts []string, option string) bool {
	for _, o := range opts {
		if strings.TrimSpace(o) == option {
			return true
		}
	}
	return false
}
