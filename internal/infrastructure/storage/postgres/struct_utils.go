package postgres

import (
	"reflect"
	"sync"
)

// ExtractDBColumns returns column names from "db" tags, descending into embedded structs.
// Called once per repository at construction time.
func ExtractDBColumns[T any]() []string {
	var zero T
	return columnsOf(reflect.TypeOf(zero))
}

func columnsOf(t reflect.Type) []string {
	if t.Kind() != reflect.Ptr {
		t = reflect.PointerTo(t)
	}
	meta := metadataFor(t)
	cols := make([]string, 0, len(meta.fields))
	for _, f := range meta.fields {
		if f.embedded {
			cols = append(cols, columnsOf(t.Elem().Field(f.index).Type)...)
			continue
		}
		cols = append(cols, f.column)
	}
	return cols
}

type fieldInfo struct {
	index    int
	column   string
	embedded bool
}

type typeMetadata struct {
	fields []fieldInfo
}

var typeCache sync.Map // reflect.Type -> *typeMetadata

// metadataFor returns cached field metadata. Pointer types are normalised so that
// callers can index t.Elem() uniformly.
func metadataFor(t reflect.Type) *typeMetadata {
	if t.Kind() != reflect.Ptr {
		t = reflect.PointerTo(t)
	}
	if cached, ok := typeCache.Load(t); ok {
		return cached.(*typeMetadata)
	}

	meta := &typeMetadata{}
	st := t.Elem()
	if st.Kind() == reflect.Struct {
		for i := 0; i < st.NumField(); i++ {
			field := st.Field(i)
			if field.Anonymous {
				meta.fields = append(meta.fields, fieldInfo{index: i, embedded: true})
				continue
			}
			tag := field.Tag.Get("db")
			if tag == "" || tag == "-" {
				continue
			}
			meta.fields = append(meta.fields, fieldInfo{index: i, column: tag})
		}
	}
	typeCache.Store(t, meta)
	return meta
}

// StructToMap converts a struct (or pointer to one) to column -> value using "db" tags.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	res := make(map[string]any)
	collect(rv, res)
	return res
}

func collect(rv reflect.Value, out map[string]any) {
	meta := metadataFor(rv.Type())
	for _, f := range meta.fields {
		fv := rv.Field(f.index)
		if f.embedded {
			if fv.Kind() == reflect.Ptr {
				if fv.IsNil() {
					continue
				}
				fv = fv.Elem()
			}
			if fv.Kind() == reflect.Struct {
				collect(fv, out)
			}
			continue
		}
		out[f.column] = fv.Interface()
	}
}
