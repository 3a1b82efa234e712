package database

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/hatlonely/seeddb/rdb"
	"github.com/pkg/errors"
)

// Row 查询结果中的一行，保留列顺序
type Row struct {
	columns []string
	values  []any
}

// NewRow 按列名和值构建一行，长度必须一致
func NewRow(columns []string, values []any) Row {
	return Row{columns: columns, values: values}
}

func (r Row) Columns() []string {
	return r.columns
}

func (r Row) Values() []any {
	return r.values
}

// Get 按列名取原始值
func (r Row) Get(column string) (any, bool) {
	for i, c := range r.columns {
		if c == column {
			return r.values[i], true
		}
	}
	return nil, false
}

// Map 转换为 map，TEXT/BLOB 统一为字符串
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.columns))
	for i, c := range r.columns {
		m[c] = normalize(r.values[i])
	}
	return m
}

// Int64 读取整数列
func (r Row) Int64(column string) (int64, error) {
	v, ok := r.Get(column)
	if !ok {
		return 0, errors.Wrapf(rdb.ErrUnknownField, "column %s", column)
	}
	switch x := v.(type) {
	case int64:
		return x, nil
	case float64:
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	case nil:
		return 0, errors.Errorf("column %s is NULL", column)
	}
	return 0, errors.Wrapf(rdb.ErrTypeMismatch, "column %s class: %T", column, v)
}

// String 读取文本列，NULL 返回空字符串
func (r Row) String(column string) (string, error) {
	v, ok := r.Get(column)
	if !ok {
		return "", errors.Wrapf(rdb.ErrUnknownField, "column %s", column)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case nil:
		return "", nil
	}
	return "", errors.Wrapf(rdb.ErrTypeMismatch, "column %s class: %T", column, v)
}

// Time 读取日期列，存储为 UTC 秒级时间戳
func (r Row) Time(column string) (time.Time, error) {
	sec, err := r.Int64(column)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0).UTC(), nil
}

// JSON 将 JSON 列反序列化到 dst
func (r Row) JSON(column string, dst any) error {
	s, err := r.String(column)
	if err != nil {
		return err
	}
	if s == "" {
		return errors.Errorf("column %s is NULL", column)
	}
	if err := json.Unmarshal([]byte(s), dst); err != nil {
		return errors.Wrapf(err, "json.Unmarshal column %s failed", column)
	}
	return nil
}

// MarshalJSON 按列顺序输出对象
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(normalize(r.values[i]))
		if err != nil {
			return nil, errors.Wrapf(err, "marshal column %s", c)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// scanRows 读取所有行，驱动返回的 []byte 会被复制
func scanRows(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "rows.Columns failed")
	}

	var result []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "rows.Scan failed")
		}
		result = append(result, NewRow(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows.Err")
	}
	return result, nil
}
