package rdb

import (
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func sampleModel() *TableModel {
	return &TableModel{
		Table: "Sample",
		Fields: []FieldDefinition{
			{Name: "id", Type: FieldTypeInt, PrimaryKey: true},
			{Name: "path", Type: FieldTypeString},
			{Name: "annotation", Type: FieldTypeJSON},
			{Name: "tags", Type: FieldTypeJSON},
		},
		Unique:      [][]string{{"path", "annotation"}},
		ConflictKey: []string{"path", "annotation"},
	}
}

func TestNewMetadata(t *testing.T) {
	Convey("测试 NewMetadata", t, func() {
		Convey("列描述与声明顺序一致", func() {
			m, err := NewMetadata(sampleModel())
			So(err, ShouldBeNil)

			meta, ok := m.Table("Sample")
			So(ok, ShouldBeTrue)
			So(meta.Name(), ShouldEqual, "Sample")
			So(meta.ColumnNames(), ShouldResemble, []string{"id", "path", "annotation", "tags"})
			So(meta.PrimaryKey.Name, ShouldEqual, "id")

			pk, ok := meta.PrimaryKeyColumn()
			So(ok, ShouldBeTrue)
			So(pk.SQLType(), ShouldEqual, "INTEGER")

			conflict, err := meta.ConflictColumns()
			So(err, ShouldBeNil)
			So(conflict, ShouldResemble, []string{"path", "annotation"})

			_, ok = m.Table("Missing")
			So(ok, ShouldBeFalse)
		})

		Convey("外键列", func() {
			m, err := NewMetadata(
				&TableModel{Table: "Book", Fields: []FieldDefinition{
					{Name: "id", Type: FieldTypeInt, PrimaryKey: true},
					{Name: "author", References: "Author"},
				}},
				&TableModel{Table: "Author", Fields: []FieldDefinition{
					{Name: "name", Type: FieldTypeString, PrimaryKey: true},
				}},
			)
			So(err, ShouldBeNil)

			var names []string
			for _, table := range m.Tables() {
				names = append(names, table.Name())
			}
			So(names, ShouldResemble, []string{"Book", "Author"})

			book, _ := m.Table("Book")
			col := book.Columns[1]
			So(col.Name, ShouldEqual, "author_name")
			So(col.Type, ShouldEqual, FieldTypeString)
			So(col.SQLType(), ShouldEqual, "TEXT")
			So(col.ForeignKey, ShouldBeTrue)
			So(col.RefTable, ShouldEqual, "Author")
			So(col.RefField, ShouldEqual, "name")
		})

		Convey("多个主键只取第一个", func() {
			m, err := NewMetadata(&TableModel{Table: "T", Fields: []FieldDefinition{
				{Name: "a", Type: FieldTypeInt, PrimaryKey: true},
				{Name: "b", Type: FieldTypeInt, PrimaryKey: true},
			}})
			So(err, ShouldBeNil)
			meta, _ := m.Table("T")
			So(meta.Columns[0].PrimaryKey, ShouldBeTrue)
			So(meta.Columns[1].PrimaryKey, ShouldBeFalse)
		})

		Convey("没有主键时 upsert 冲突目标缺失", func() {
			m, err := NewMetadata(&TableModel{Table: "T", Fields: []FieldDefinition{{Name: "a", Type: FieldTypeInt}}})
			So(err, ShouldBeNil)
			meta, _ := m.Table("T")
			_, err = meta.ConflictColumns()
			So(errors.Is(err, ErrNoConflictTarget), ShouldBeTrue)
		})

		Convey("错误的声明", func() {
			_, err := NewMetadata(sampleModel(), sampleModel())
			So(errors.Is(err, ErrDuplicateTable), ShouldBeTrue)

			_, err = NewMetadata(&TableModel{Table: "T", Fields: []FieldDefinition{{Name: "a", References: "Missing"}}})
			So(errors.Is(err, ErrUnknownTable), ShouldBeTrue)

			_, err = NewMetadata(
				&TableModel{Table: "T", Fields: []FieldDefinition{{Name: "a", References: "U"}}},
				&TableModel{Table: "U", Fields: []FieldDefinition{{Name: "x", Type: FieldTypeInt}}},
			)
			So(errors.Is(err, ErrNoPrimaryKey), ShouldBeTrue)

			_, err = NewMetadata(
				&TableModel{Table: "T", Fields: []FieldDefinition{{Name: "a", References: "U"}}},
				&TableModel{Table: "U", Fields: []FieldDefinition{{Name: "v", References: "V", PrimaryKey: true}}},
				&TableModel{Table: "V", Fields: []FieldDefinition{{Name: "id", Type: FieldTypeInt, PrimaryKey: true}}},
			)
			So(err, ShouldNotBeNil)

			_, err = NewMetadata(&TableModel{Table: "T", Fields: []FieldDefinition{{Name: "a", Type: "decimal"}}})
			So(errors.Is(err, ErrUnsupportedFieldType), ShouldBeTrue)

			model := sampleModel()
			model.Unique = [][]string{{"path", "nope"}}
			_, err = NewMetadata(model)
			So(errors.Is(err, ErrUnknownField), ShouldBeTrue)

			model = sampleModel()
			model.ConflictKey = []string{"nope"}
			_, err = NewMetadata(model)
			So(errors.Is(err, ErrUnknownField), ShouldBeTrue)

			_, err = NewMetadata(&TableModel{})
			So(err, ShouldNotBeNil)

			So(func() { MustNewMetadata(nil) }, ShouldPanic)
		})
	})
}

func TestSQLiteType(t *testing.T) {
	Convey("测试 SQLiteType", t, func() {
		So(SQLiteType(FieldTypeInt), ShouldEqual, "INTEGER")
		So(SQLiteType(FieldTypeBool), ShouldEqual, "INTEGER")
		So(SQLiteType(FieldTypeDate), ShouldEqual, "INTEGER")
		So(SQLiteType(FieldTypeFloat), ShouldEqual, "REAL")
		So(SQLiteType(FieldTypeString), ShouldEqual, "TEXT")
		So(SQLiteType(FieldTypeJSON), ShouldEqual, "BLOB")
		So(SQLiteType("x"), ShouldEqual, "")
	})
}
