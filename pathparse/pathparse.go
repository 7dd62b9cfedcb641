// Package pathparse binds slash-delimited paths onto struct fields
// with an expressively defined, statically-typed grammar.
//
// A parser for "/first/last/age" (age optional) reads:
//
//	ok := pathparse.Parse(src, &person, "/",
//		pathparse.String(func(p *Person) *string { return &p.First }),
//		pathparse.String(func(p *Person) *string { return &p.Last }),
//		pathparse.Optional(pathparse.Uint32(func(p *Person, v uint32) { p.Age = v })),
//	)
//
// Bindings run in segment order; parsing fails on a missing required
// segment, a failed conversion, or trailing unconsumed segments.
package pathparse

import (
	"strconv"
	"strings"
)

// Field binds one path segment onto the destination object.
type Field[T any] struct {
	bind     func(dst *T, segment string) bool
	optional bool
}

// String binds the raw segment text into the addressed field.
func String[T any](addr func(dst *T) *string) Field[T] {
	return Field[T]{bind: func(dst *T, segment string) bool {
		*addr(dst) = segment
		return true
	}}
}

// Uint32 converts the segment to an unsigned integer; conversion
// failure fails the parse.
func Uint32[T any](set func(dst *T, v uint32)) Field[T] {
	return Field[T]{bind: func(dst *T, segment string) bool {
		v, err := strconv.ParseUint(segment, 10, 32)
		if err != nil {
			return false
		}
		set(dst, uint32(v))
		return true
	}}
}

// Optional marks a binding as satisfiable by an absent segment. The
// destination keeps its prior value when the path runs out.
func Optional[T any](f Field[T]) Field[T] {
	f.optional = true
	return f
}

// splitStep cuts the next delimiter-separated segment off src.
func splitStep(src string, delim byte) (segment, rest string) {
	if i := strings.IndexByte(src, delim); i >= 0 {
		return src[:i], src[i+1:]
	}
	return src, ""
}

// Parse consumes src, which must start with prefix, binding one
// segment per field in order.
func Parse[T any](src string, dst *T, prefix string, fields ...Field[T]) bool {
	rest, ok := strings.CutPrefix(src, prefix)
	if !ok {
		return false
	}
	exhausted := rest == ""
	for _, f := range fields {
		if exhausted {
			if !f.optional {
				return false
			}
			continue
		}
		var segment string
		segment, rest = splitStep(rest, '/')
		exhausted = rest == ""
		if !f.bind(dst, segment) {
			return false
		}
	}
	return exhausted
}
