// tags.go: the closed set of native value shapes the engine understands.
//
// Every argument slot and every return slot carries exactly one TypeTag. The
// set covers what a literal typed at the prompt can express (int, long,
// float, double, char, string pointer) plus void for the return position. Nothing outside this file adds tags.
package crepl

import (
	"fmt"
	"unsafe"
)

// TypeTag identifies the native representation of an argument or return value.
type TypeTag int

const (
	Void TypeTag = iota
	SInt32
	SInt64
	Float32
	Float64
	SChar
	Pointer
)

// PointerSize is the width of a native data pointer on the host.
const PointerSize = int(unsafe.Sizeof(uintptr(0)))

var tagNames = [...]string{
	Void:    "void",
	SInt32:  "int",
	SInt64:  "long",
	Float32: "float",
	Float64: "double",
	SChar:   "char",
	Pointer: "pointer",
}

// String returns the C spelling of the tag.
func (t TypeTag) String() string {
	if t.Valid() {
		return tagNames[t]
	}
	return fmt.Sprintf("TypeTag(%d)", int(t))
}

// Valid reports whether t belongs to the closed tag set.
func (t TypeTag) Valid() bool { return t >= Void && t <= Pointer }

// Size is the number of bytes a value of this tag occupies in caller storage.
// Void occupies nothing.
func (t TypeTag) Size() int {
	switch t {
	case SInt32, Float32:
		return 4
	case SInt64, Float64:
		return 8
	case SChar:
		return 1
	case Pointer:
		return PointerSize
	default:
		return 0
	}
}

// Tags returns the argument tags of a slot list, in order.
func Tags(slots []ArgumentSlot) []TypeTag {
	out := make([]TypeTag, len(slots))
	for i, s := range slots {
		out[i] = s.Tag
	}
	return out
}
