package refx

import (
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

type Value struct {
	Name string
}

type Options struct {
	Name string
}

type newFunc func(options *Options) (*Value, error)

func NewValue(options *Options) (*Value, error) {
	if options == nil {
		return nil, errors.New("options cannot be nil")
	}
	return &Value{Name: options.Name}, nil
}

func NewDefaultValue(*Options) (*Value, error) {
	return &Value{Name: "default"}, nil
}

func TestRegistry(t *testing.T) {
	Convey("测试 Registry", t, func() {
		r := NewRegistry[newFunc]("value")

		Convey("注册后可以查找并调用", func() {
			So(r.Register("value", NewValue), ShouldBeNil)
			So(r.Register("default", NewDefaultValue), ShouldBeNil)
			So(r.Names(), ShouldResemble, []string{"default", "value"})

			f, err := r.Get("value")
			So(err, ShouldBeNil)
			v, err := f(&Options{Name: "test"})
			So(err, ShouldBeNil)
			So(v.Name, ShouldEqual, "test")
		})

		Convey("重复注册同一个函数", func() {
			So(r.Register("value", NewValue), ShouldBeNil)
			So(r.Register("value", NewValue), ShouldBeNil)
		})

		Convey("同名注册不同函数", func() {
			So(r.Register("value", NewValue), ShouldBeNil)
			So(r.Register("value", NewDefaultValue), ShouldNotBeNil)
			So(func() { r.MustRegister("value", NewDefaultValue) }, ShouldPanic)
		})

		Convey("注册 nil", func() {
			So(r.Register("nil", nil), ShouldNotBeNil)
		})

		Convey("未注册", func() {
			_, err := r.Get("missing")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "value:missing")
		})

		Convey("零值可用", func() {
			var zero Registry[newFunc]
			So(zero.Register("value", NewValue), ShouldBeNil)
			So(zero.Names(), ShouldResemble, []string{"value"})
		})
	})
}
