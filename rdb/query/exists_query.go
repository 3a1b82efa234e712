package query

import (
	"github.com/hatlonely/seeddb/rdb"
	"github.com/pkg/errors"
)

// ExistsQuery 字段非 NULL
type ExistsQuery struct {
	Field string `json:"field"`
}

func (q *ExistsQuery) Type() QueryType {
	return QueryTypeExists
}

func (q *ExistsQuery) ToSQL() (string, []any, error) {
	if q.Field == "" {
		return "", nil, errors.New("exists query requires field")
	}
	return rdb.QuoteIdent(q.Field) + " IS NOT NULL", nil, nil
}
