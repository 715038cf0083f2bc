// Package option provides a tri-state value wrapper.
//
// An [Option] is either Undefined (never loaded), None (loaded, but empty)
// or Some (loaded with a value). The zero value is Undefined.
//
// Equality only compares values within the same variant:
//
//	option.None[int]() != option.Some(0)
//	option.Undefined[int]() != option.None[int]()
package option

import (
	"fmt"
	"reflect"
)

// Kind identifies the variant of an Option.
type Kind uint8

const (
	// KindUndefined indicates that no value has been loaded yet.
	KindUndefined Kind = iota

	// KindNone indicates that the value was loaded but is empty.
	KindNone

	// KindSome indicates that a value is present.
	KindSome
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNone:
		return "none"
	case KindSome:
		return "some"
	default:
		return "unknown"
	}
}

// Option is an immutable tri-state value.
type Option[T any] struct {
	kind  Kind
	value T
}

// Undefined returns an option that has never been loaded.
func Undefined[T any]() Option[T] {
	return Option[T]{}
}

// None returns an empty option.
func None[T any]() Option[T] {
	return Option[T]{kind: KindNone}
}

// Some returns an option holding v.
func Some[T any](v T) Option[T] {
	return Option[T]{kind: KindSome, value: v}
}

// Kind returns the variant of the option.
func (o Option[T]) Kind() Kind {
	return o.kind
}

// IsUndefined reports whether the option was never loaded.
func (o Option[T]) IsUndefined() bool {
	return o.kind == KindUndefined
}

// IsNone reports whether the option is empty.
func (o Option[T]) IsNone() bool {
	return o.kind == KindNone
}

// IsSome reports whether the option holds a value.
func (o Option[T]) IsSome() bool {
	return o.kind == KindSome
}

// Get returns the value and true if the option is Some.
func (o Option[T]) Get() (T, bool) {
	if o.kind != KindSome {
		var zero T
		return zero, false
	}
	return o.value, true
}

// OrElse returns the value if Some, fallback otherwise.
func (o Option[T]) OrElse(fallback T) T {
	if o.kind != KindSome {
		return fallback
	}
	return o.value
}

// Equal reports whether both options are the same variant and, for Some,
// hold equal values. Values are compared with == when their dynamic type is
// comparable and with reflect.DeepEqual otherwise.
func (o Option[T]) Equal(other Option[T]) bool {
	if o.kind != other.kind {
		return false
	}
	if o.kind != KindSome {
		return true
	}
	return ValuesEqual(o.value, other.value)
}

// Box converts the option to an Option[any].
func (o Option[T]) Box() Option[any] {
	return Option[any]{kind: o.kind, value: o.value}
}

// String returns a debug representation.
func (o Option[T]) String() string {
	switch o.kind {
	case KindSome:
		return fmt.Sprintf("Some(%v)", o.value)
	case KindNone:
		return "None"
	default:
		return "Undefined"
	}
}

// Map transforms the value of a Some option, keeping the other variants.
func Map[T, R any](o Option[T], fn func(T) R) Option[R] {
	switch o.kind {
	case KindSome:
		return Some(fn(o.value))
	case KindNone:
		return None[R]()
	default:
		return Undefined[R]()
	}
}

// Unbox converts an Option[any] back to a typed option.
// A Some holding a value of another type yields false.
func Unbox[T any](o Option[any]) (Option[T], bool) {
	switch o.kind {
	case KindSome:
		if o.value == nil {
			var zero T
			return Some(zero), true
		}
		v, ok := o.value.(T)
		if !ok {
			return Option[T]{}, false
		}
		return Some(v), true
	case KindNone:
		return None[T](), true
	default:
		return Undefined[T](), true
	}
}

// ValuesEqual compares two arbitrary values without panicking on
// non-comparable dynamic types.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	if ta.Comparable() {
		if equal, ok := compare(a, b); ok {
			return equal
		}
	}
	return reflect.DeepEqual(a, b)
}

// compare runs a == b, reporting false in ok when an interface field
// holds a non-comparable value.
func compare(a, b any) (equal, ok bool) {
	defer func() {
		if recover() != nil {
			equal, ok = false, false
		}
	}()
	return a == b, true
}
