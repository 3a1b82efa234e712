package query

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestQueryToSQL(t *testing.T) {
	Convey("测试 ToSQL", t, func() {
		Convey("TermQuery", func() {
			q := &TermQuery{Field: "path", Value: "a.mp4"}
			So(q.Type(), ShouldEqual, QueryTypeTerm)
			sql, args, err := q.ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, `"path" = ?`)
			So(args, ShouldResemble, []any{"a.mp4"})

			_, _, err = (&TermQuery{Value: 1}).ToSQL()
			So(err, ShouldNotBeNil)
		})

		Convey("TermsQuery", func() {
			sql, args, err := (&TermsQuery{Field: "id", Values: []any{1, 2, 3}}).ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, `"id" IN (?, ?, ?)`)
			So(args, ShouldResemble, []any{1, 2, 3})

			sql, args, err = (&TermsQuery{Field: "id"}).ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "1=0")
			So(args, ShouldBeNil)
		})

		Convey("ExistsQuery", func() {
			sql, args, err := (&ExistsQuery{Field: "tags"}).ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, `"tags" IS NOT NULL`)
			So(args, ShouldBeNil)
		})

		Convey("PrefixQuery 转义通配符", func() {
			sql, args, err := (&PrefixQuery{Field: "path", Value: "https://www.youtube.com/watch?v=CiZO38P_"}).ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, `"path" LIKE ? ESCAPE '\'`)
			So(args, ShouldResemble, []any{`https://www.youtube.com/watch?v=CiZO38P\_%`})
		})

		Convey("BoolQuery", func() {
			q := &BoolQuery{
				Must:    []Query{&PrefixQuery{Field: "path", Value: "https://i.imgur.com/"}},
				Should:  []Query{&TermQuery{Field: "id", Value: 1}, &TermQuery{Field: "id", Value: 2}},
				MustNot: []Query{&ExistsQuery{Field: "tags"}},
			}
			So(q.Type(), ShouldEqual, QueryTypeBool)
			sql, args, err := q.ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, `("path" LIKE ? ESCAPE '\') AND ("id" = ? OR "id" = ?) AND (NOT ("tags" IS NOT NULL))`)
			So(args, ShouldResemble, []any{"https://i.imgur.com/%", 1, 2})

			sql, args, err = (&BoolQuery{}).ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "1=1")
			So(args, ShouldBeNil)

			_, _, err = (&BoolQuery{Must: []Query{&TermQuery{}}}).ToSQL()
			So(err, ShouldNotBeNil)
		})
	})
}

func TestSelectSQL(t *testing.T) {
	Convey("测试 SelectSQL", t, func() {
		sql, args, err := SelectSQL("Sample", nil)
		So(err, ShouldBeNil)
		So(sql, ShouldEqual, `SELECT * FROM "Sample"`)
		So(args, ShouldBeNil)

		sql, args, err = SelectSQL("Sample", &TermQuery{Field: "path", Value: "a"}, "id")
		So(err, ShouldBeNil)
		So(sql, ShouldEqual, `SELECT * FROM "Sample" WHERE "path" = ? ORDER BY "id"`)
		So(args, ShouldResemble, []any{"a"})

		_, _, err = SelectSQL("Sample", &ExistsQuery{})
		So(err, ShouldNotBeNil)
	})
}
