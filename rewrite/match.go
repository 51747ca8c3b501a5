package rewrite

import (
	"reflect"
	"strings"

	"github.com/chazu/exprcache/expr"
)

// DefaultCapturePrefix is the type-name prefix that marks a capture class
// unless configured otherwise.
const DefaultCapturePrefix = "closure"

// Matcher reports whether a constant's declared type is a capture class whose
// value must be promoted to a parameter.
type Matcher func(t reflect.Type) bool

// PrefixMatcher matches named types, after dereferencing pointers, whose
// name starts with prefix.
func PrefixMatcher(prefix string) Matcher {
	return func(t reflect.Type) bool {
		for t != nil && t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t == nil || t.Name() == "" {
			return false
		}
		return strings.HasPrefix(t.Name(), prefix)
	}
}

// DefaultMatcher is PrefixMatcher(DefaultCapturePrefix).
var DefaultMatcher = PrefixMatcher(DefaultCapturePrefix)

// CaptureKey returns the registry key of a capture class: its import path
// and name, with one '*' per level of pointer indirection. Unnamed types fall
// back to their Go syntax.
func CaptureKey(t reflect.Type) string {
	stars := 0
	for t.Kind() == reflect.Pointer && t.Name() == "" {
		stars++
		t = t.Elem()
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return strings.Repeat("*", stars) + t.String()
	}
	return strings.Repeat("*", stars) + t.PkgPath() + "." + t.Name()
}

// ByReference reports whether v is a non-nil func, channel or pointer. Such
// values cannot be keyed by content, so Promote turns each occurrence into
// its own parameter and the executor re-reads it from the caller's tree.
func ByReference(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func, reflect.Chan, reflect.Pointer, reflect.UnsafePointer:
		return !rv.IsNil()
	}
	return false
}

// ReferenceKey returns the registry key of a by-reference constant found at
// path.
func ReferenceKey(path expr.Path) string {
	return "ref@" + path.String()
}
