package query

import (
	"strings"

	"github.com/hatlonely/seeddb/rdb"
	"github.com/pkg/errors"
)

// PrefixQuery 前缀查询，值中的 % 和 _ 按字面匹配
type PrefixQuery struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (q *PrefixQuery) Type() QueryType {
	return QueryTypePrefix
}

func (q *PrefixQuery) ToSQL() (string, []any, error) {
	if q.Field == "" {
		return "", nil, errors.New("prefix query requires field")
	}
	return rdb.QuoteIdent(q.Field) + ` LIKE ? ESCAPE '\'`, []any{likeEscaper.Replace(q.Value) + "%"}, nil
}
