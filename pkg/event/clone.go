package event

import "reflect"

// maxCloneDepth bounds CloneData on self-referencing values.
const maxCloneDepth = 32

// CloneData returns a copy of an event payload that shares no maps, slices
// or pointers with v, so the caller may keep changing v after tracking it.
//
// Structs are copied by value with their exported fields cloned in turn.
// Values reached through unexported fields, channels and functions are
// shared, as is anything nested deeper than maxCloneDepth.
func CloneData(v any) any {
	if v == nil {
		return nil
	}
	return cloneValue(reflect.ValueOf(v), 0).Interface()
}

func cloneValue(v reflect.Value, depth int) reflect.Value {
	if depth > maxCloneDepth {
		return v
	}
	switch v.Kind() {
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneValue(iter.Value(), depth+1))
		}
		return out

	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneValue(v.Index(i), depth+1))
		}
		return out

	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneValue(v.Index(i), depth+1))
		}
		return out

	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(cloneValue(v.Elem(), depth+1))
		return out

	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(cloneValue(v.Elem(), depth+1))
		return out

	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if f := out.Field(i); f.CanSet() {
				f.Set(cloneValue(v.Field(i), depth+1))
			}
		}
		return out

	default:
		return v
	}
}
