package query

import (
	"strings"

	"github.com/hatlonely/seeddb/rdb"
	"github.com/pkg/errors"
)

// TermQuery 精确匹配查询
type TermQuery struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

func (q *TermQuery) Type() QueryType {
	return QueryTypeTerm
}

func (q *TermQuery) ToSQL() (string, []any, error) {
	if q.Field == "" {
		return "", nil, errors.New("term query requires field")
	}
	return rdb.QuoteIdent(q.Field) + " = ?", []any{q.Value}, nil
}

// TermsQuery 匹配任意一个值
type TermsQuery struct {
	Field  string `json:"field"`
	Values []any  `json:"values"`
}

func (q *TermsQuery) Type() QueryType {
	return QueryTypeTerms
}

func (q *TermsQuery) ToSQL() (string, []any, error) {
	if q.Field == "" {
		return "", nil, errors.New("terms query requires field")
	}
	if len(q.Values) == 0 {
		return "1=0", nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(q.Values)), ", ")
	return rdb.QuoteIdent(q.Field) + " IN (" + placeholders + ")", append([]any(nil), q.Values...), nil
}
