package cfg

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// fieldKey 字段的配置名，优先使用 cfg tag，"-" 表示忽略
func fieldKey(field reflect.StructField) string {
	if tag := field.Tag.Get("cfg"); tag != "" {
		if name := strings.Split(tag, ",")[0]; name != "" {
			return name
		}
	}
	return field.Name
}

// normalizeKey 忽略大小写和分隔符，database_path、databasePath、database-path 视为同一个键
func normalizeKey(key string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(key) {
		if r == '-' || r == '_' || r == '.' {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// convertValue 将配置文件解码出的值写入目标，未出现的键保持原值
func convertValue(src any, dst reflect.Value) error {
	if src == nil {
		return nil
	}

	if dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return convertValue(src, dst.Elem())
	}

	srcValue := reflect.ValueOf(src)

	if dst.Type() == durationType || dst.Type() == timeType {
		switch srcValue.Kind() {
		case reflect.String:
			return setValue(dst, srcValue.String())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return setValue(dst, fmt.Sprint(srcValue.Int()))
		}
		if t, ok := src.(interface{ Unix() int64 }); ok && dst.Type() == timeType {
			dst.Set(reflect.ValueOf(t))
			return nil
		}
		return errors.Errorf("cannot convert %v to %v", srcValue.Type(), dst.Type())
	}

	switch dst.Kind() {
	case reflect.Struct:
		m, ok := src.(map[string]any)
		if !ok {
			return errors.Errorf("cannot convert %v to %v", srcValue.Type(), dst.Type())
		}
		return convertToStruct(m, dst)
	case reflect.Map:
		return convertToMap(srcValue, dst)
	case reflect.Slice:
		if srcValue.Kind() == reflect.String {
			return setValue(dst, srcValue.String())
		}
		return convertToSlice(srcValue, dst)
	case reflect.Interface:
		if dst.Type().NumMethod() == 0 {
			dst.Set(srcValue)
			return nil
		}
	}

	if srcValue.Type().AssignableTo(dst.Type()) {
		dst.Set(srcValue)
		return nil
	}

	// ini 和部分 yaml 值是字符串
	if srcValue.Kind() == reflect.String {
		return setValue(dst, srcValue.String())
	}

	if isNumber(srcValue.Kind()) && isNumber(dst.Kind()) {
		dst.Set(srcValue.Convert(dst.Type()))
		return nil
	}

	return errors.Errorf("cannot convert %v to %v", srcValue.Type(), dst.Type())
}

func convertToStruct(src map[string]any, dst reflect.Value) error {
	keys := make(map[string]string, len(src))
	for k := range src {
		keys[normalizeKey(k)] = k
	}

	rt := dst.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !dst.Field(i).CanSet() {
			continue
		}
		name := fieldKey(field)
		if name == "-" {
			continue
		}
		k, ok := keys[normalizeKey(name)]
		if !ok {
			continue
		}
		if err := convertValue(src[k], dst.Field(i)); err != nil {
			return errors.WithMessagef(err, "key %s", k)
		}
	}
	return nil
}

func convertToMap(src, dst reflect.Value) error {
	if src.Kind() != reflect.Map {
		return errors.Errorf("cannot convert %v to %v", src.Type(), dst.Type())
	}
	if dst.IsNil() {
		dst.Set(reflect.MakeMap(dst.Type()))
	}
	for _, key := range src.MapKeys() {
		value := reflect.New(dst.Type().Elem()).Elem()
		if err := convertValue(src.MapIndex(key).Interface(), value); err != nil {
			return errors.WithMessagef(err, "key %v", key.Interface())
		}
		k := reflect.New(dst.Type().Key()).Elem()
		if err := setValue(k, fmt.Sprint(key.Interface())); err != nil {
			return err
		}
		dst.SetMapIndex(k, value)
	}
	return nil
}

func convertToSlice(src, dst reflect.Value) error {
	if src.Kind() != reflect.Slice && src.Kind() != reflect.Array {
		return errors.Errorf("cannot convert %v to %v", src.Type(), dst.Type())
	}
	slice := reflect.MakeSlice(dst.Type(), src.Len(), src.Len())
	for i := 0; i < src.Len(); i++ {
		if err := convertValue(src.Index(i).Interface(), slice.Index(i)); err != nil {
			return errors.WithMessagef(err, "index %d", i)
		}
	}
	dst.Set(slice)
	return nil
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// setFlat 按扁平键写入字段，例如 database-busy-timeout 对应 Database.BusyTimeout
// 键被切分后贪心匹配字段名，匹配失败时回溯尝试更短的前缀
func setFlat(rv reflect.Value, tokens []string, value string) (bool, error) {
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct || len(tokens) == 0 {
		return false, nil
	}

	rt := rv.Type()
	for n := len(tokens); n > 0; n-- {
		prefix := strings.Join(tokens[:n], "")
		for i := 0; i < rt.NumField(); i++ {
			field := rt.Field(i)
			fv := rv.Field(i)
			if !fv.CanSet() || fieldKey(field) == "-" || normalizeKey(fieldKey(field)) != prefix {
				continue
			}

			if n == len(tokens) {
				if isNested(field.Type) {
					continue
				}
				if err := setValue(fv, value); err != nil {
					return false, errors.WithMessagef(err, "field %s", field.Name)
				}
				return true, nil
			}

			if isNested(field.Type) {
				ok, err := setFlat(fv, tokens[n:], value)
				if err != nil || ok {
					return ok, err
				}
			}
		}
	}
	return false, nil
}

// splitFlatKey 按分隔符切分并归一化
func splitFlatKey(key string) []string {
	parts := strings.FieldsFunc(strings.ToLower(key), func(r rune) bool {
		return r == '-' || r == '_' || r == '.'
	})
	return parts
}
