package hashcol

import (
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

var typeInfoCache sync.Map

var (
	timeType  = reflect.TypeOf(time.Time{})
	valueType = reflect.TypeOf(Value{})
)

type structInfo struct {
	fields []*fieldInfo
}

type fieldInfo struct {
	name      string
	index     []int
	omitEmpty bool
}

func reflectType(typ reflect.Type) *structInfo {
	if v, ok := typeInfoCache.Load(typ); ok {
		return v.(*structInfo)
	}
	info := reflectTypeWithoutCache(typ)
	actual, _ := typeInfoCache.LoadOrStore(typ, info)
	return actual.(*structInfo)
}

func reflectTypeWithoutCache(typ reflect.Type) *structInfo {
	info := &structInfo{}
	for _, f := range reflect.VisibleFields(typ) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		tag := f.Tag.Get("attr")
		if tag == "" || tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		info.fields = append(info.fields, &fieldInfo{
			name:      name,
			index:     f.Index,
			omitEmpty: opts == "omitempty",
		})
	}
	return info
}

func structValue(ptr any, wantPtr bool) (reflect.Value, error) {
	v := reflect.ValueOf(ptr)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, errors.Newf("nil %T", ptr)
		}
		v = v.Elem()
	} else if wantPtr {
		return reflect.Value{}, errors.Newf("expected pointer to struct, got %T", ptr)
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, errors.Newf("expected struct, got %T", ptr)
	}
	return v, nil
}

// Scan fills fields of dst tagged `attr:"name"` from rec. Fields whose
// attribute is null are left alone.
//
//	type PostAttrs struct {
//	    Name        string    `attr:"name"`
//	    LuckyNumber int       `attr:"lucky_number"`
//	    PublishedAt time.Time `attr:"published_at,omitempty"`
//	}
func Scan(rec *Record, dst any) error {
	v, err := structValue(dst, true)
	if err != nil {
		return err
	}
	for _, f := range reflectType(v.Type()).fields {
		val, err := rec.Read(f.name)
		if err != nil {
			return err
		}
		if val.IsNull() {
			continue
		}
		if err := setField(v.FieldByIndex(f.index), val); err != nil {
			return errors.Wrapf(err, "%s.%s", v.Type().Name(), f.name)
		}
	}
	return nil
}

// Assign writes tagged fields of src to rec. Zero fields tagged omitempty are
// skipped.
func Assign(rec *Record, src any) error {
	v, err := structValue(src, false)
	if err != nil {
		return err
	}
	for _, f := range reflectType(v.Type()).fields {
		fv := v.FieldByIndex(f.index)
		if f.omitEmpty && fv.IsZero() {
			continue
		}
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}
		if err := rec.Write(f.name, fv.Interface()); err != nil {
			return err
		}
	}
	return nil
}

func setField(fv reflect.Value, val Value) error {
	if fv.Kind() == reflect.Pointer {
		ptr := reflect.New(fv.Type().Elem())
		if err := setField(ptr.Elem(), val); err != nil {
			return err
		}
		fv.Set(ptr)
		return nil
	}
	switch {
	case fv.Type() == valueType:
		fv.Set(reflect.ValueOf(val))
		return nil
	case fv.Type() == timeType && val.Kind() == KindTime:
		fv.Set(reflect.ValueOf(val.Time()))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		if val.Kind() == KindText {
			fv.SetString(val.Str())
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if val.Kind() == KindNumber {
			fv.SetInt(val.Int64())
			return nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if val.Kind() == KindNumber && val.Float() >= 0 {
			fv.SetUint(uint64(val.Float()))
			return nil
		}
	case reflect.Float32, reflect.Float64:
		if val.Kind() == KindNumber {
			fv.SetFloat(val.Float())
			return nil
		}
	case reflect.Bool:
		if val.Kind() == KindBool {
			fv.SetBool(val.Bool())
			return nil
		}
	case reflect.Slice:
		if val.Kind() == KindList {
			items := val.Items()
			out := reflect.MakeSlice(fv.Type(), len(items), len(items))
			for i, item := range items {
				if err := setField(out.Index(i), item); err != nil {
					return errors.Wrapf(err, "[%d]", i)
				}
			}
			fv.Set(out)
			return nil
		}
	default:
		x := reflect.ValueOf(val.Any())
		if x.IsValid() && x.Type().AssignableTo(fv.Type()) {
			fv.Set(x)
			return nil
		}
	}
	return errors.Newf("cannot store %s in %v", val.Kind(), fv.Type())
}
