// Package rdb 提供记录类型声明到 SQLite 表结构的映射：
// 字段声明、列描述、值编码以及 INSERT / CREATE TABLE 语句构建。
package rdb

import (
	"github.com/pkg/errors"
)

var (
	ErrUnsupportedFieldType = errors.New("unsupported field type")
	ErrUnknownTable         = errors.New("unknown table")
	ErrDuplicateTable       = errors.New("duplicate table")
	ErrUnknownField         = errors.New("unknown field")
	ErrNoPrimaryKey         = errors.New("table has no primary key")
	ErrTypeMismatch         = errors.New("type mismatch")
	ErrNoConflictTarget     = errors.New("upsert requires a conflict key or primary key")
)
