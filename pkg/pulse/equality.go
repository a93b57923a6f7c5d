package pulse

import "reflect"

// Equality selects the strategy used to decide whether a new value differs
// from the old one. A write that produces an equal value never notifies
// listeners or invalidates dependents.
type Equality int

const (
	// EqualityDefault uses fast paths for common scalar types and falls back
	// to reflect.DeepEqual for everything else.
	EqualityDefault Equality = iota

	// EqualityStrict compares identity: == for comparable types, data-pointer
	// identity for slices, maps, and functions.
	EqualityStrict

	// EqualityShallow compares one level deep: top-level elements of slices,
	// maps, and struct fields are compared strictly.
	EqualityShallow

	// EqualityDeep uses reflect.DeepEqual.
	EqualityDeep
)

// String returns a human-readable name for the equality strategy.
func (e Equality) String() string {
	switch e {
	case EqualityStrict:
		return "strict"
	case EqualityShallow:
		return "shallow"
	case EqualityDeep:
		return "deep"
	default:
		return "default"
	}
}

// equalsFor resolves an Equality strategy to a concrete comparison function.
func equalsFor[T any](e Equality) func(T, T) bool {
	switch e {
	case EqualityStrict:
		return strictEquals[T]
	case EqualityShallow:
		return shallowEquals[T]
	case EqualityDeep:
		return func(a, b T) bool { return reflect.DeepEqual(a, b) }
	default:
		return defaultEquals[T]
	}
}

// defaultEquals provides type-appropriate equality checking.
// Uses == for common scalar types and reflect.DeepEqual for others.
func defaultEquals[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		return av == any(b).(int)
	case int8:
		return av == any(b).(int8)
	case int16:
		return av == any(b).(int16)
	case int32:
		return av == any(b).(int32)
	case int64:
		return av == any(b).(int64)
	case uint:
		return av == any(b).(uint)
	case uint8:
		return av == any(b).(uint8)
	case uint16:
		return av == any(b).(uint16)
	case uint32:
		return av == any(b).(uint32)
	case uint64:
		return av == any(b).(uint64)
	case float32:
		return av == any(b).(float32)
	case float64:
		return av == any(b).(float64)
	case string:
		return av == any(b).(string)
	case bool:
		return av == any(b).(bool)
	default:
		// Fall back to reflect.DeepEqual for slices, maps, structs, etc.
		return reflect.DeepEqual(a, b)
	}
}

// strictEquals compares values by identity. Comparable types use ==;
// slices, maps, and funcs compare their data pointers; nil matches nil.
func strictEquals[T any](a, b T) bool {
	va := reflect.ValueOf(a)
	vb := reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() {
		return va.IsValid() == vb.IsValid()
	}
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Slice, reflect.Map, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}
	if va.Type().Comparable() {
		return any(a) == any(b)
	}
	return false
}

// shallowEquals compares one level deep. Slice elements, map entries, and
// struct fields are compared with identity semantics; everything else
// behaves like strictEquals.
func shallowEquals[T any](a, b T) bool {
	va := reflect.ValueOf(a)
	vb := reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() {
		return va.IsValid() == vb.IsValid()
	}
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Slice:
		if va.IsNil() != vb.IsNil() || va.Len() != vb.Len() {
			return false
		}
		for i := 0; i < va.Len(); i++ {
			if !shallowElemEqual(va.Index(i), vb.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Map:
		if va.IsNil() != vb.IsNil() || va.Len() != vb.Len() {
			return false
		}
		iter := va.MapRange()
		for iter.Next() {
			mv := vb.MapIndex(iter.Key())
			if !mv.IsValid() || !shallowElemEqual(iter.Value(), mv) {
				return false
			}
		}
		return true
	case reflect.Struct:
		for i := 0; i < va.NumField(); i++ {
			if !shallowElemEqual(va.Field(i), vb.Field(i)) {
				return false
			}
		}
		return true
	}
	return strictEquals(a, b)
}

// shallowElemEqual compares a single element with identity semantics.
func shallowElemEqual(a, b reflect.Value) bool {
	switch a.Kind() {
	case reflect.Slice, reflect.Map, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return a.Pointer() == b.Pointer()
	}
	if a.Type().Comparable() && a.CanInterface() && b.CanInterface() {
		return a.Interface() == b.Interface()
	}
	return false
}
