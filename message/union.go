package message

import (
	"errors"
	"fmt"
	"reflect"
)

// Method is implemented by every variant of a caller's method union. MethodName returns the
// wire tag; it must not depend on the receiver's fields, since it is read from the zero
// value when the variant is bound.
type Method interface {
	MethodName() string
}

// Unmarshaler decodes one raw wire value into v. Codecs hand one to variant decoders so
// the union types stay independent of the wire format.
type Unmarshaler func(v any) error

// MethodVariant binds a method tag to the concrete type decoded for it.
type MethodVariant[M Method] struct {
	tag    string
	typ    reflect.Type
	decode func(params Unmarshaler) (M, error)
}

// Tag returns the wire tag of the variant.
func (v MethodVariant[M]) Tag() string { return v.tag }

// Decode builds the variant from its params. A nil params means the params member was
// absent; the variant is then its zero value.
func (v MethodVariant[M]) Decode(params Unmarshaler) (M, error) { return v.decode(params) }

// Bind registers T as the variant of union M tagged T{}.MethodName(). T should be a value
// (non-pointer) type; it is decoded from the params member and stored in M as is.
//
// Bind panics if T does not implement M.
func Bind[M Method, T Method]() MethodVariant[M] {
	var zero T
	if _, ok := any(zero).(M); !ok {
		panic(fmt.Sprintf("message: %v does not implement %v", reflect.TypeOf((*T)(nil)).Elem(), reflect.TypeOf((*M)(nil)).Elem()))
	}
	return MethodVariant[M]{
		tag: zero.MethodName(),
		typ: reflect.TypeOf((*T)(nil)).Elem(),
		decode: func(params Unmarshaler) (M, error) {
			var v T
			if params != nil {
				if err := params(&v); err != nil {
					var m M
					return m, err
				}
			}
			return any(v).(M), nil
		},
	}
}

// MethodSet is the closed, tagged method union M: a fixed tag→variant mapping.
// It is read-only after construction and safe for concurrent use.
type MethodSet[M Method] struct {
	variants map[string]MethodVariant[M]
	tags     []string
}

// NewMethodSet builds the union from its variants. It panics on an empty or duplicate tag,
// since both are programming errors in the union definition.
func NewMethodSet[M Method](variants ...MethodVariant[M]) *MethodSet[M] {
	s := &MethodSet[M]{variants: make(map[string]MethodVariant[M], len(variants))}
	for _, v := range variants {
		if v.tag == "" {
			panic(fmt.Sprintf("message: method variant %v has an empty tag", v.typ))
		}
		if prev, dup := s.variants[v.tag]; dup {
			panic(fmt.Sprintf("message: tag %q bound to both %v and %v", v.tag, prev.typ, v.typ))
		}
		s.variants[v.tag] = v
		s.tags = append(s.tags, v.tag)
	}
	return s
}

// Lookup returns the variant registered for tag.
func (s *MethodSet[M]) Lookup(tag string) (MethodVariant[M], bool) {
	v, ok := s.variants[tag]
	return v, ok
}

// Tags returns the registered tags in registration order.
func (s *MethodSet[M]) Tags() []string {
	return append([]string(nil), s.tags...)
}

// ResultVariant is one structural shape of a result union.
type ResultVariant[R any] struct {
	typ    reflect.Type
	decode func(raw Unmarshaler) (R, error)
}

// Shape registers T as a shape of the untagged result union R.
//
// Shape panics if a T value cannot be stored in R.
func Shape[R any, T any]() ResultVariant[R] {
	var zero T
	if _, ok := any(zero).(R); !ok {
		panic(fmt.Sprintf("message: %v cannot be used as %v", reflect.TypeOf((*T)(nil)).Elem(), reflect.TypeOf((*R)(nil)).Elem()))
	}
	return ResultVariant[R]{
		typ: reflect.TypeOf((*T)(nil)).Elem(),
		decode: func(raw Unmarshaler) (R, error) {
			var v T
			if err := raw(&v); err != nil {
				var r R
				return r, err
			}
			return any(v).(R), nil
		},
	}
}

// ResultSet is the closed, untagged result union R: an ordered list of shapes tried in
// turn until one decodes. Shapes must be structurally disjoint; when two shapes both
// accept a value the first registered wins.
type ResultSet[R any] struct {
	variants []ResultVariant[R]
}

// NewResultSet builds the union from its shapes, in decode order.
func NewResultSet[R any](variants ...ResultVariant[R]) *ResultSet[R] {
	return &ResultSet[R]{variants: append([]ResultVariant[R](nil), variants...)}
}

// ErrNoShape is returned by ResultSet.Decode when no shape accepts the value.
var ErrNoShape = errors.New("no result shape matches")

// Decode tries each shape in order and returns the first success.
func (s *ResultSet[R]) Decode(raw Unmarshaler) (R, error) {
	errs := make([]error, 0, len(s.variants)+1)
	errs = append(errs, ErrNoShape)
	for _, v := range s.variants {
		r, err := v.decode(raw)
		if err == nil {
			return r, nil
		}
		errs = append(errs, fmt.Errorf("%v: %w", v.typ, err))
	}
	var zero R
	return zero, errors.Join(errs...)
}
