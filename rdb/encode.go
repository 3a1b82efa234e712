package rdb

import (
	"encoding/json"
	"math"
	"math/big"
	"reflect"
	"time"

	"github.com/pkg/errors"
)

// Encode 将记录按列顺序编码为可直接绑定到 SQL 参数的值
func (m *Metadata) Encode(record Record) ([]any, error) {
	meta, ok := m.tables[record.TableName()]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTable, "table %s", record.TableName())
	}

	conflict := make(map[string]bool, len(meta.Model.ConflictKey))
	for _, f := range meta.Model.ConflictKey {
		conflict[f] = true
	}

	values := make([]any, 0, len(meta.Columns))
	for _, col := range meta.Columns {
		value, _ := record.Value(col.Field.Name)
		v, err := m.encodeValue(col, value)
		if err != nil {
			return nil, errors.WithMessagef(err, "encode %s.%s", meta.Name(), col.Name)
		}
		// UNIQUE 约束中 NULL 互不相等，冲突列里的空 JSON 存为 null 文本才能命中 ON CONFLICT
		if v == nil && col.Type == FieldTypeJSON && conflict[col.Field.Name] {
			v = "null"
		}
		values = append(values, v)
	}
	return values, nil
}

func (m *Metadata) encodeValue(col Column, value any) (any, error) {
	if col.ForeignKey {
		return m.encodeReference(col, value)
	}

	if isNil(value) {
		return nil, nil
	}

	switch col.Type {
	case FieldTypeJSON:
		buf, err := json.Marshal(value)
		if err != nil {
			return nil, errors.Wrap(err, "json.Marshal failed")
		}
		return string(buf), nil
	case FieldTypeDate:
		t, ok := indirect(value).(time.Time)
		if !ok {
			return nil, errors.Wrapf(ErrTypeMismatch, "%s class: %T, expected: time.Time", col.Name, value)
		}
		return t.UTC().Unix(), nil
	}

	if r, ok := value.(*big.Rat); ok {
		if col.Type != FieldTypeFloat {
			return nil, errors.Wrapf(ErrTypeMismatch, "%s class: %T, expected: float field", col.Name, value)
		}
		f, _ := r.Float64()
		return f, nil
	}

	rv := reflect.ValueOf(indirect(value))
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() > math.MaxInt64 {
			return nil, errors.Wrapf(ErrTypeMismatch, "%s value %d overflows int64", col.Name, rv.Uint())
		}
		return int64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		return rv.String(), nil
	}

	return nil, errors.Wrapf(ErrTypeMismatch, "%s class: %T, expected: (bool, float, int, string)", col.Name, value)
}

// encodeReference 外键字段存储被引用记录的主键值，主键未分配时为 NULL
func (m *Metadata) encodeReference(col Column, value any) (any, error) {
	if isNil(value) {
		return nil, nil
	}

	ref, ok := value.(Record)
	if !ok {
		sr, err := NewStructRecord(value)
		if err != nil {
			return nil, errors.Wrapf(ErrTypeMismatch, "%s class: %T, expected: record of %s", col.Name, value, col.RefTable)
		}
		ref = sr
	}
	if ref.TableName() != col.RefTable {
		return nil, errors.Wrapf(ErrTypeMismatch, "%s references %s, got record of %s", col.Name, col.RefTable, ref.TableName())
	}

	pk, _ := ref.Value(col.RefField)
	if isNil(pk) {
		return nil, nil
	}
	refMeta := m.tables[col.RefTable]
	refCol, _ := refMeta.PrimaryKeyColumn()
	return m.encodeValue(refCol, pk)
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// indirect 解引用指针，调用前已保证非 nil
func indirect(value any) any {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	return rv.Interface()
}
