// Package query 将结构化的过滤条件翻译为 SQLite 的 WHERE 子句
package query

import (
	"strings"

	"github.com/hatlonely/seeddb/rdb"
)

// QueryType 查询类型
type QueryType string

const (
	QueryTypeBool   QueryType = "bool"
	QueryTypeTerm   QueryType = "term"
	QueryTypeTerms  QueryType = "terms"
	QueryTypeExists QueryType = "exists"
	QueryTypePrefix QueryType = "prefix"
)

// Query 查询节点接口
type Query interface {
	Type() QueryType
	ToSQL() (string, []any, error)
}

// SelectSQL 生成查询整张表的语句，q 为 nil 时不带过滤条件
func SelectSQL(table string, q Query, orderBy ...string) (string, []any, error) {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(rdb.QuoteIdent(table))

	var args []any
	if q != nil {
		where, whereArgs, err := q.ToSQL()
		if err != nil {
			return "", nil, err
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
		args = whereArgs
	}

	if len(orderBy) > 0 {
		cols := make([]string, len(orderBy))
		for i, col := range orderBy {
			cols[i] = rdb.QuoteIdent(col)
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(cols, ", "))
	}
	return b.String(), args, nil
}
