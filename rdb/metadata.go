package rdb

import (
	"github.com/pkg/errors"
)

// Column 字段对应的列描述
type Column struct {
	Name       string // 列名，外键为 <field>_<referencedPk>
	Field      FieldDefinition
	Type       FieldType // 外键列的类型与被引用主键一致
	PrimaryKey bool
	Unique     bool
	ForeignKey bool
	RefTable   string
	RefField   string
}

// SQLType 列在 SQLite 中的存储类型
func (c Column) SQLType() string {
	return SQLiteType(c.Type)
}

// SQLiteType 将字段类型映射为 SQLite 存储类型，未知类型返回空字符串
func SQLiteType(t FieldType) string {
	switch t {
	case FieldTypeInt, FieldTypeBool, FieldTypeDate:
		return "INTEGER"
	case FieldTypeFloat:
		return "REAL"
	case FieldTypeString:
		return "TEXT"
	case FieldTypeJSON:
		return "BLOB"
	default:
		return ""
	}
}

// TableMeta 单张表的元数据
type TableMeta struct {
	Model      *TableModel
	PrimaryKey *FieldDefinition // 第一个标记为主键的字段，可能为 nil
	Columns    []Column         // 建表与编码共用同一顺序
}

// Name 表名
func (t *TableMeta) Name() string {
	return t.Model.Table
}

// ColumnNames 按声明顺序返回列名
func (t *TableMeta) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	return names
}

// PrimaryKeyColumn 主键列
func (t *TableMeta) PrimaryKeyColumn() (Column, bool) {
	for _, c := range t.Columns {
		if c.PrimaryKey {
			return c, true
		}
	}
	return Column{}, false
}

// ConflictColumns upsert 冲突目标的列名
// 优先使用显式声明的 ConflictKey，否则退回主键
func (t *TableMeta) ConflictColumns() ([]string, error) {
	if len(t.Model.ConflictKey) > 0 {
		return t.columnNamesOf(t.Model.ConflictKey)
	}
	if pk, ok := t.PrimaryKeyColumn(); ok {
		return []string{pk.Name}, nil
	}
	return nil, errors.Wrapf(ErrNoConflictTarget, "table %s", t.Name())
}

// UniqueColumns 表级唯一约束对应的列名
func (t *TableMeta) UniqueColumns() ([][]string, error) {
	result := make([][]string, 0, len(t.Model.Unique))
	for _, fields := range t.Model.Unique {
		cols, err := t.columnNamesOf(fields)
		if err != nil {
			return nil, err
		}
		result = append(result, cols)
	}
	return result, nil
}

func (t *TableMeta) columnNamesOf(fields []string) ([]string, error) {
	cols := make([]string, 0, len(fields))
	for _, name := range fields {
		col, ok := t.columnOf(name)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownField, "table %s field %s", t.Name(), name)
		}
		cols = append(cols, col.Name)
	}
	return cols, nil
}

func (t *TableMeta) columnOf(field string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Field.Name == field {
			return c, true
		}
	}
	return Column{}, false
}

// Metadata 所有已声明表的元数据，构建后只读
type Metadata struct {
	tables map[string]*TableMeta
	order  []string
}

// NewMetadata 根据表声明构建元数据
// 外键字段只支持一层：列名为 <field>_<referencedPk>，类型取被引用表主键的类型
func NewMetadata(models ...*TableModel) (*Metadata, error) {
	m := &Metadata{
		tables: make(map[string]*TableMeta, len(models)),
	}

	// 第一遍：登记表和主键，外键解析需要所有表的主键
	for _, model := range models {
		if model == nil || model.Table == "" {
			return nil, errors.New("table model must have a name")
		}
		if _, ok := m.tables[model.Table]; ok {
			return nil, errors.Wrapf(ErrDuplicateTable, "table %s", model.Table)
		}

		meta := &TableMeta{Model: model}
		for i := range model.Fields {
			if model.Fields[i].PrimaryKey {
				meta.PrimaryKey = &model.Fields[i]
				break
			}
		}
		m.tables[model.Table] = meta
		m.order = append(m.order, model.Table)
	}

	// 第二遍：生成列描述
	for _, name := range m.order {
		meta := m.tables[name]
		for _, f := range meta.Model.Fields {
			col, err := m.buildColumn(meta, f)
			if err != nil {
				return nil, err
			}
			meta.Columns = append(meta.Columns, col)
		}

		if _, err := meta.UniqueColumns(); err != nil {
			return nil, err
		}
		if len(meta.Model.ConflictKey) > 0 {
			if _, err := meta.ConflictColumns(); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

func (m *Metadata) buildColumn(meta *TableMeta, f FieldDefinition) (Column, error) {
	col := Column{
		Name:       f.Name,
		Field:      f,
		Type:       f.Type,
		PrimaryKey: meta.PrimaryKey != nil && meta.PrimaryKey.Name == f.Name,
		Unique:     f.Unique,
	}

	if f.References != "" {
		ref, ok := m.tables[f.References]
		if !ok {
			return col, errors.Wrapf(ErrUnknownTable, "table %s field %s references %s", meta.Name(), f.Name, f.References)
		}
		if ref.PrimaryKey == nil {
			return col, errors.Wrapf(ErrNoPrimaryKey, "table %s field %s references %s", meta.Name(), f.Name, f.References)
		}
		if ref.PrimaryKey.References != "" {
			return col, errors.Errorf("table %s field %s: nested reference through %s.%s",
				meta.Name(), f.Name, f.References, ref.PrimaryKey.Name)
		}
		col.Name = f.Name + "_" + ref.PrimaryKey.Name
		col.Type = ref.PrimaryKey.Type
		col.ForeignKey = true
		col.RefTable = ref.Name()
		col.RefField = ref.PrimaryKey.Name
	}

	if col.SQLType() == "" {
		return col, errors.Wrapf(ErrUnsupportedFieldType, "table %s field %s type %q", meta.Name(), f.Name, col.Type)
	}

	return col, nil
}

// Table 按表名获取元数据
func (m *Metadata) Table(name string) (*TableMeta, bool) {
	t, ok := m.tables[name]
	return t, ok
}

// Tables 按声明顺序返回所有表
func (m *Metadata) Tables() []*TableMeta {
	result := make([]*TableMeta, 0, len(m.order))
	for _, name := range m.order {
		result = append(result, m.tables[name])
	}
	return result
}

// MustNewMetadata 同 NewMetadata，出错时 panic，用于包级变量初始化
func MustNewMetadata(models ...*TableModel) *Metadata {
	m, err := NewMetadata(models...)
	if err != nil {
		panic(err)
	}
	return m
}
