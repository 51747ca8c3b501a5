package signature

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/exprcache/rewrite"
)

// cborEncMode encodes composite literals canonically so that equal values
// render identically regardless of map iteration order.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("signature: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

var untagged = map[reflect.Type]bool{
	reflect.TypeFor[bool]():       true,
	reflect.TypeFor[int]():        true,
	reflect.TypeFor[float64]():    true,
	reflect.TypeFor[complex128](): true,
	reflect.TypeFor[string]():     true,
}

// literal renders a constant value. Scalars render as their Go literal text,
// suffixed with ":type" unless they have the default type of a Go constant;
// float64 values always carry a decimal point or exponent so they never read
// as ints. Composites render as canonical CBOR in hex. Values CBOR cannot
// encode (funcs, channels) render by type and address.
func literal(v any) string {
	if v == nil {
		return "null"
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return tagged(strconv.FormatBool(rv.Bool()), rv.Type())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return tagged(strconv.FormatInt(rv.Int(), 10), rv.Type())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return tagged(strconv.FormatUint(rv.Uint(), 10), rv.Type())
	case reflect.Float32:
		return tagged(strconv.FormatFloat(rv.Float(), 'g', -1, 32), rv.Type())
	case reflect.Float64:
		s := strconv.FormatFloat(rv.Float(), 'g', -1, 64)
		if !strings.ContainsAny(s, ".eIN") {
			s += ".0"
		}
		return tagged(s, rv.Type())
	case reflect.Complex64, reflect.Complex128:
		return tagged(strconv.FormatComplex(rv.Complex(), 'g', -1, 128), rv.Type())
	case reflect.String:
		return tagged(strconv.Quote(rv.String()), rv.Type())
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return "null"
		}
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return identity(rv)
	}

	if hasUnexported(rv.Type()) {
		// CBOR only sees exported fields; fall back to the full Go syntax.
		return fmt.Sprintf("%#v", reflect.Indirect(rv).Interface())
	}

	data, err := cborEncMode.Marshal(v)
	if err != nil {
		return identity(rv)
	}
	return "cbor:" + hex.EncodeToString(data)
}

func tagged(text string, t reflect.Type) string {
	if untagged[t] {
		return text
	}
	return text + ":" + rewrite.CaptureKey(t)
}

func identity(rv reflect.Value) string {
	if rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Func || rv.Kind() == reflect.Chan || rv.Kind() == reflect.UnsafePointer {
		return fmt.Sprintf("%s@%#x", rv.Type(), rv.Pointer())
	}
	return fmt.Sprintf("%s@?", rv.Type())
}

func hasUnexported(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		if !t.Field(i).IsExported() {
			return true
		}
	}
	return false
}
