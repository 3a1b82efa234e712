// Package refx 按名字注册和查找构造函数
package refx

import (
	"reflect"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("constructor not found")

// Registry 名字到构造函数的映射，并发安全，零值可用
type Registry[T any] struct {
	namespace string
	m         sync.Map
}

func NewRegistry[T any](namespace string) *Registry[T] {
	return &Registry[T]{namespace: namespace}
}

func isSameFunc(func1, func2 any) bool {
	v1 := reflect.ValueOf(func1)
	v2 := reflect.ValueOf(func2)
	if v1.Kind() != reflect.Func || v2.Kind() != reflect.Func {
		return false
	}
	return v1.Pointer() == v2.Pointer()
}

// Register 重复注册同一个函数会被忽略，同名不同函数返回错误
func (r *Registry[T]) Register(name string, newFunc T) error {
	if reflect.ValueOf(newFunc).Kind() != reflect.Func || reflect.ValueOf(newFunc).IsNil() {
		return errors.Errorf("constructor for %s:%s must be a non-nil function", r.namespace, name)
	}
	if existing, loaded := r.m.LoadOrStore(name, newFunc); loaded {
		if isSameFunc(existing, newFunc) {
			return nil
		}
		return errors.Errorf("constructor for %s:%s already registered with different function", r.namespace, name)
	}
	return nil
}

func (r *Registry[T]) MustRegister(name string, newFunc T) {
	if err := r.Register(name, newFunc); err != nil {
		panic(err)
	}
}

// Get 查找构造函数，未注册时返回 ErrNotFound
func (r *Registry[T]) Get(name string) (T, error) {
	value, ok := r.m.Load(name)
	if !ok {
		var zero T
		return zero, errors.Wrapf(ErrNotFound, "%s:%s", r.namespace, name)
	}
	return value.(T), nil
}

// Names 已注册的名字，按字典序排列
func (r *Registry[T]) Names() []string {
	var names []string
	r.m.Range(func(key, _ any) bool {
		names = append(names, key.(string))
		return true
	})
	sort.Strings(names)
	return names
}
