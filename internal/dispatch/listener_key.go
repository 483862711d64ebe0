package dispatch

import (
	"fmt"
	"reflect"
)

// ListenerKey wraps a Listener so the Registry can key on the listener's
// reference identity instead of any equality the listener's own type might
// define. Go never calls a type's own methods to satisfy map-key equality,
// so for pointer-like listeners (pointers, channels, funcs, maps, slices)
// this already holds by construction — the work here is making that
// behaviour explicit and documented, and extending it to funcs and maps
// which are not comparable with == at all.
//
// For listeners of a non-reference kind (structs, basic types passed by
// value, interfaces wrapping either), Go has no notion of reference
// identity to fall back on: two value copies with identical fields are
// indistinguishable. Such listeners fall back to ordinary value equality,
// which means two distinct copies of a value-equal struct are treated as
// the same listener. Callers who need per-instance identity for value
// types should register a pointer to the listener instead.
type ListenerKey struct {
	ptr     uintptr
	typ     reflect.Type
	byValue any
}

// referenceKind reports whether v's kind carries its own stable address,
// independent of anything the listener's type defines.
func referenceKind(k reflect.Kind) bool {
	switch k {
	case reflect.Ptr, reflect.Chan, reflect.Func, reflect.Map, reflect.Slice, reflect.UnsafePointer:
		return true
	default:
		return false
	}
}

func newListenerKey(l Listener) ListenerKey {
	v := reflect.ValueOf(l)
	if v.IsValid() && referenceKind(v.Kind()) {
		return ListenerKey{ptr: v.Pointer(), typ: v.Type()}
	}
	return ListenerKey{byValue: l}
}

// String renders the key for log lines and QueueStats snapshots. It never
// consults the listener's own String()/Error() — just its Go type and,
// where available, its pointer identity — so it stays cheap and safe to
// call from a hot path.
func (k ListenerKey) String() string {
	if k.typ != nil {
		return fmt.Sprintf("%s@%#x", k.typ, k.ptr)
	}
	return reflect.TypeOf(k.byValue).String()
}
