package query

import (
	"strings"
)

// BoolQuery 布尔查询
type BoolQuery struct {
	Must    []Query `json:"must,omitempty"`
	Should  []Query `json:"should,omitempty"`
	MustNot []Query `json:"must_not,omitempty"`
}

func (q *BoolQuery) Type() QueryType {
	return QueryTypeBool
}

func (q *BoolQuery) ToSQL() (string, []any, error) {
	var conditions []string
	var args []any

	join := func(queries []Query, wrap func(string) string, sep string) error {
		if len(queries) == 0 {
			return nil
		}
		parts := make([]string, 0, len(queries))
		for _, query := range queries {
			sql, queryArgs, err := query.ToSQL()
			if err != nil {
				return err
			}
			parts = append(parts, wrap(sql))
			args = append(args, queryArgs...)
		}
		conditions = append(conditions, "("+strings.Join(parts, sep)+")")
		return nil
	}

	same := func(s string) string { return s }
	if err := join(q.Must, same, " AND "); err != nil {
		return "", nil, err
	}
	if err := join(q.Should, same, " OR "); err != nil {
		return "", nil, err
	}
	if err := join(q.MustNot, func(s string) string { return "NOT (" + s + ")" }, " AND "); err != nil {
		return "", nil, err
	}

	if len(conditions) == 0 {
		return "1=1", nil, nil
	}
	return strings.Join(conditions, " AND "), args, nil
}
