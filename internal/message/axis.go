package message

import (
	"errors"
	"slices"

	"github.com/dshills/feedcore/internal/option"
	"github.com/dshills/feedcore/internal/token"
)

// Axis is a named orthogonal channel of state carried by a message.
type Axis uint8

const (
	// AxisData carries the value of the feed as an option.
	AxisData Axis = iota

	// AxisError carries the error raised while loading the value.
	AxisError

	// AxisProgress indicates that the message is transient (loading).
	AxisProgress

	// AxisPagination carries a [Pagination] state.
	AxisPagination

	// AxisSelection carries a [Selection] state.
	AxisSelection

	// AxisRefresh carries the [token.Set] of satisfied refresh requests.
	AxisRefresh

	axisCount
)

// String returns a human-readable representation of the axis.
func (a Axis) String() string {
	switch a {
	case AxisData:
		return "data"
	case AxisError:
		return "error"
	case AxisProgress:
		return "progress"
	case AxisPagination:
		return "pagination"
	case AxisSelection:
		return "selection"
	case AxisRefresh:
		return "refresh"
	default:
		return "unknown"
	}
}

// AllAxes returns every known axis in declaration order.
func AllAxes() []Axis {
	axes := make([]Axis, 0, axisCount)
	for a := Axis(0); a < axisCount; a++ {
		axes = append(axes, a)
	}
	return axes
}

// IsValid reports whether a is a known axis.
func (a Axis) IsValid() bool {
	return a < axisCount
}

// AxisValue is the raw value of an axis. The zero value is Unset.
type AxisValue struct {
	IsSet bool
	Value any
}

// Unset is the value of an axis that has not been set.
var Unset = AxisValue{}

// Set wraps v into a set AxisValue.
func Set(v any) AxisValue {
	return AxisValue{IsSet: true, Value: v}
}

// Pagination is the value of [AxisPagination].
type Pagination struct {
	HasMoreItems       bool
	IsLoadingMoreItems bool
	Tokens             token.Set
}

// Equal reports whether both pagination states are the same.
func (p Pagination) Equal(o Pagination) bool {
	return p.HasMoreItems == o.HasMoreItems &&
		p.IsLoadingMoreItems == o.IsLoadingMoreItems &&
		p.Tokens.Equal(o.Tokens)
}

// Range is a contiguous block of selected indices.
type Range struct {
	Start  int
	Length int
}

// Selection is the value of [AxisSelection].
type Selection struct {
	Ranges []Range
}

// SelectIndices builds a selection from individual indices.
func SelectIndices(indices ...int) Selection {
	if len(indices) == 0 {
		return Selection{}
	}
	sorted := slices.Clone(indices)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	var ranges []Range
	for _, idx := range sorted {
		if n := len(ranges); n > 0 && ranges[n-1].Start+ranges[n-1].Length == idx {
			ranges[n-1].Length++
			continue
		}
		ranges = append(ranges, Range{Start: idx, Length: 1})
	}
	return Selection{Ranges: ranges}
}

// IsEmpty reports whether nothing is selected.
func (s Selection) IsEmpty() bool {
	return len(s.Ranges) == 0
}

// Contains reports whether index is selected.
func (s Selection) Contains(index int) bool {
	for _, r := range s.Ranges {
		if index >= r.Start && index < r.Start+r.Length {
			return true
		}
	}
	return false
}

// Equal reports whether both selections cover the same ranges.
func (s Selection) Equal(o Selection) bool {
	return slices.Equal(s.Ranges, o.Ranges)
}

// behavior is the per-kind equality and merge logic of an axis.
type behavior interface {
	// zero is the value equivalent to Unset.
	zero() any
	equal(a, b any) bool
	// aggregate merges non-zero values, ordered from outermost to innermost.
	aggregate(values []any) any
	// inherited reports whether parent values flow into dependents.
	inherited() bool
}

var behaviors = [axisCount]behavior{
	AxisData:       dataAxis{},
	AxisError:      errorAxis{},
	AxisProgress:   progressAxis{},
	AxisPagination: paginationAxis{},
	AxisSelection:  selectionAxis{},
	AxisRefresh:    refreshAxis{},
}

type dataAxis struct{}

func (dataAxis) zero() any { return option.Undefined[any]() }

func (dataAxis) equal(a, b any) bool {
	return a.(option.Option[any]).Equal(b.(option.Option[any]))
}

func (dataAxis) aggregate(values []any) any { return values[len(values)-1] }

func (dataAxis) inherited() bool { return false }

type errorAxis struct{}

func (errorAxis) zero() any { return nil }

func (errorAxis) equal(a, b any) bool { return errorsEqual(a, b) }

// errorsEqual compares errors by identity, and aggregates of the error
// axis by their parts.
func errorsEqual(a, b any) bool {
	if option.ValuesEqual(a, b) {
		return true
	}
	ja, ok := a.(*joinedError)
	if !ok {
		return false
	}
	jb, ok := b.(*joinedError)
	if !ok {
		return false
	}
	return slices.EqualFunc(ja.errs, jb.errs, func(x, y error) bool { return errorsEqual(x, y) })
}

func (errorAxis) aggregate(values []any) any {
	if len(values) == 1 {
		return values[0]
	}
	errs := make([]error, 0, len(values))
	for _, v := range values {
		errs = append(errs, v.(error))
	}
	return &joinedError{errs: errs}
}

// joinedError is the error axis of several layers. It behaves like the
// result of errors.Join.
type joinedError struct {
	errs []error
}

func (e *joinedError) Error() string {
	return errors.Join(e.errs...).Error()
}

func (e *joinedError) Unwrap() []error {
	return e.errs
}

func (errorAxis) inherited() bool { return true }

type progressAxis struct{}

func (progressAxis) zero() any { return false }

func (progressAxis) equal(a, b any) bool { return a.(bool) == b.(bool) }

func (progressAxis) aggregate(values []any) any {
	for _, v := range values {
		if v.(bool) {
			return true
		}
	}
	return false
}

func (progressAxis) inherited() bool { return true }

type paginationAxis struct{}

func (paginationAxis) zero() any { return Pagination{} }

func (paginationAxis) equal(a, b any) bool { return a.(Pagination).Equal(b.(Pagination)) }

func (paginationAxis) aggregate(values []any) any {
	var out Pagination
	sets := make([]token.Set, 0, len(values))
	for _, v := range values {
		p := v.(Pagination)
		out.HasMoreItems = p.HasMoreItems
		out.IsLoadingMoreItems = out.IsLoadingMoreItems || p.IsLoadingMoreItems
		sets = append(sets, p.Tokens)
	}
	out.Tokens = token.Merge(sets...)
	return out
}

func (paginationAxis) inherited() bool { return true }

type selectionAxis struct{}

func (selectionAxis) zero() any { return Selection{} }

func (selectionAxis) equal(a, b any) bool { return a.(Selection).Equal(b.(Selection)) }

func (selectionAxis) aggregate(values []any) any { return values[len(values)-1] }

func (selectionAxis) inherited() bool { return false }

type refreshAxis struct{}

func (refreshAxis) zero() any { return token.Set{} }

func (refreshAxis) equal(a, b any) bool { return a.(token.Set).Equal(b.(token.Set)) }

func (refreshAxis) aggregate(values []any) any {
	sets := make([]token.Set, 0, len(values))
	for _, v := range values {
		sets = append(sets, v.(token.Set))
	}
	return token.Merge(sets...)
}

func (refreshAxis) inherited() bool { return true }

// normalize returns the effective value of v, the axis zero when unset.
func (a Axis) normalize(v AxisValue) any {
	if !v.IsSet || v.Value == nil {
		return behaviors[a].zero()
	}
	return v.Value
}

// Equal reports whether two values of this axis are equivalent.
// An unset value is equivalent to the axis zero (no error, not transient).
func (a Axis) Equal(x, y AxisValue) bool {
	return behaviors[a].equal(a.normalize(x), a.normalize(y))
}

// IsZero reports whether v is equivalent to Unset.
func (a Axis) IsZero(v AxisValue) bool {
	return a.Equal(v, Unset)
}

// Aggregate merges several values of this axis with the axis merge logic.
// Unset values are ignored; the result is Unset if nothing remains.
func (a Axis) Aggregate(values ...AxisValue) AxisValue {
	set := make([]any, 0, len(values))
	for _, v := range values {
		if !a.IsZero(v) {
			set = append(set, v.Value)
		}
	}
	if len(set) == 0 {
		return Unset
	}
	return Set(behaviors[a].aggregate(set))
}

// Inherited reports whether parent values of this axis flow into the
// messages of dependent feeds. Data never does.
func (a Axis) Inherited() bool {
	return behaviors[a].inherited()
}
