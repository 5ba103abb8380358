package cascache

import (
	"reflect"
	"strings"
)

// FormatKey builds the canonical cross-tier identity string:
//
//	"<prefix>:<type-fqn>:<serializer-tag>:<user-key>"
//
// The type segment scopes by the logical type of the cached value so the
// same user key under two different types never collides; the serializer
// segment invalidates entries when the encoder changes. prefix may be
// empty to deliberately share keys across services.
func FormatKey(prefix, typeFQN, serializerTag, userKey string) string {
	var b strings.Builder
	b.Grow(len(prefix) + len(typeFQN) + len(serializerTag) + len(userKey) + 3)
	b.WriteString(prefix)
	b.WriteByte(':')
	b.WriteString(typeFQN)
	b.WriteByte(':')
	b.WriteString(serializerTag)
	b.WriteByte(':')
	b.WriteString(userKey)
	return b.String()
}

// lazySuffix marks the single-flight collapser's internal key for a given
// user-facing FormattedKey. It must never alias a real value key, so a
// successful write cannot accidentally satisfy a later first-class Get.
const lazySuffix = "_Lazy"

func lazyKey(formatted string) string { return formatted + lazySuffix }

// typeFQN returns a stable, human-readable type identifier for T, used as
// the FormattedKey's type segment. It panics-free rejects nothing itself;
// callers must call rejectInterfaceType at construction time.
func typeFQN[T any]() string {
	var zero T
	t := reflect.TypeOf(&zero).Elem()
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// rejectInterfaceType implements spec.md §4.1 step 1: T must not be an
// interface (or trait object), nor a pointer to one, because the coordinator needs a concrete
// type identity to scope FormattedKey and to know whether T is a raw byte
// slice. Go generics cannot reject this at compile time for an arbitrary
// caller-supplied T, so the check runs once at New[T] construction.
func rejectInterfaceType[T any]() error {
	var zero T
	t := reflect.TypeOf(&zero).Elem()
	if t.Kind() == reflect.Interface {
		return ErrInterfaceType
	}
	if t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Interface {
		return ErrInterfaceType
	}
	return nil
}

// isByteSlice reports whether T is exactly []byte, which bypasses
// serialization per spec.md §4.6.
func isByteSlice[T any]() bool {
	var zero T
	_, ok := any(zero).([]byte)
	return ok
}
