package crepl

import (
	"encoding/binary"
	"fmt"
	"math"
)

// maxStringSniff is how far the renderer looks behind a returned pointer
// before deciding it is not a C string.
const maxStringSniff = 256

// StringPeeker reads a NUL-terminated byte run at addr, at most max bytes.
type StringPeeker interface {
	PeekCString(addr uintptr, max int) []byte
}

// Render turns a raw return value into text. It never fails: a tag it does
// not understand, or a buffer too short for the tag, renders a size notice.
// Void renders as the empty string.
//
// A non-NULL pointer is shown as a quoted string when the bytes behind it are
// a non-empty run of printable or whitespace characters terminated within 256
// bytes; otherwise the address is shown. Short binary data can pass that test
// and be shown as text.
func Render(tag TypeTag, raw []byte, peek StringPeeker) string {
	if tag == Void {
		return ""
	}
	if !tag.Valid() || len(raw) < tag.Size() {
		return fmt.Sprintf("[unknown type, size=%d]", len(raw))
	}
	switch tag {
	case SChar:
		c := raw[0]
		if isPrint(c) {
			return fmt.Sprintf("'%c' (%d)", c, int8(c))
		}
		return fmt.Sprintf("%d (non-printable)", int8(c))
	case SInt32:
		return fmt.Sprintf("%d", int32(binary.NativeEndian.Uint32(raw)))
	case SInt64:
		return fmt.Sprintf("%d", int64(binary.NativeEndian.Uint64(raw)))
	case Float32:
		return fmt.Sprintf("%f", float64(math.Float32frombits(binary.NativeEndian.Uint32(raw))))
	case Float64:
		return fmt.Sprintf("%f", math.Float64frombits(binary.NativeEndian.Uint64(raw)))
	case Pointer:
		return renderPointer(getAddr(raw), peek)
	}
	return fmt.Sprintf("[unknown type, size=%d]", len(raw))
}

func renderPointer(addr uintptr, peek StringPeeker) string {
	if addr == 0 {
		return "NULL"
	}
	if peek != nil {
		s := peek.PeekCString(addr, maxStringSniff)
		if len(s) > 0 && len(s) < maxStringSniff && printableRun(s) {
			return `"` + string(s) + `"`
		}
	}
	return fmt.Sprintf("0x%x", addr)
}

func printableRun(s []byte) bool {
	for _, c := range s {
		if !isPrint(c) && !isSpace(c) {
			return false
		}
	}
	return true
}

func isPrint(c byte) bool { return c >= 0x20 && c < 0x7f }
