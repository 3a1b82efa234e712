package rdb

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// InsertSQLOptions INSERT 语句选项
type InsertSQLOptions struct {
	// Upsert 冲突时用新行更新非键列
	Upsert bool
	// Returning 追加 RETURNING <pk>
	Returning bool
}

// CreateTableSQL 构建幂等建表语句
// 列顺序与 Encode 一致；不声明 FOREIGN KEY 约束，外键只以同类型的值存储
func (t *TableMeta) CreateTableSQL() (string, error) {
	defs := make([]string, 0, len(t.Columns)+len(t.Model.Unique))
	for _, col := range t.Columns {
		var sb strings.Builder
		sb.WriteString(QuoteIdent(col.Name))
		sb.WriteByte(' ')
		sb.WriteString(col.SQLType())
		if col.PrimaryKey {
			sb.WriteString(" PRIMARY KEY")
		} else if col.Unique {
			sb.WriteString(" UNIQUE")
		}
		defs = append(defs, sb.String())
	}

	uniques, err := t.UniqueColumns()
	if err != nil {
		return "", err
	}
	for _, cols := range uniques {
		defs = append(defs, fmt.Sprintf("UNIQUE (%s)", quoteIdents(cols)))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", QuoteIdent(t.Name()), strings.Join(defs, ", ")), nil
}

// InsertSQL 构建单行参数化 INSERT 语句，占位符顺序与 Encode 一致
func (t *TableMeta) InsertSQL(options InsertSQLOptions) (string, error) {
	cols := t.ColumnNames()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES (%s)", QuoteIdent(t.Name()), quoteIdents(cols), placeholders)

	if options.Upsert {
		conflict, err := t.ConflictColumns()
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, " ON CONFLICT (%s) DO UPDATE SET %s", quoteIdents(conflict), t.updateSet(conflict))
	}

	if options.Returning {
		pk, ok := t.PrimaryKeyColumn()
		if !ok {
			return "", errors.Wrapf(ErrNoPrimaryKey, "table %s", t.Name())
		}
		fmt.Fprintf(&sb, " RETURNING %s", QuoteIdent(pk.Name))
	}

	return sb.String(), nil
}

// updateSet 更新除主键和冲突列以外的所有列
// 没有可更新的列时把第一个冲突列赋给自身，保证 RETURNING 仍然返回该行
func (t *TableMeta) updateSet(conflict []string) string {
	skip := make(map[string]bool, len(conflict)+1)
	for _, c := range conflict {
		skip[c] = true
	}

	var parts []string
	for _, col := range t.Columns {
		if col.PrimaryKey || skip[col.Name] {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=excluded.%s", QuoteIdent(col.Name), QuoteIdent(col.Name)))
	}
	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%s=excluded.%s", QuoteIdent(conflict[0]), QuoteIdent(conflict[0])))
	}
	return strings.Join(parts, ", ")
}

// QuoteIdent 用双引号包裹标识符
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteIdents(names []string) string {
	quoted := make([]string, 0, len(names))
	for _, n := range names {
		quoted = append(quoted, QuoteIdent(n))
	}
	return strings.Join(quoted, ", ")
}
