package crepl

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// ArgumentSlot is one positional argument: its native tag, the arena block
// holding the value in host byte order, and the decoded literal.
type ArgumentSlot struct {
	Tag     TypeTag
	Block   Block
	Literal any
}

// CallRequest is everything needed to invoke one function.
type CallRequest struct {
	Callee string
	Args   []ArgumentSlot
	Return TypeTag
}

// Signature renders the request as a C-like prototype, e.g. "int add(int, int)".
func (r *CallRequest) Signature() string {
	parts := make([]string, len(r.Args))
	for i, a := range r.Args {
		parts[i] = a.Tag.String()
	}
	return fmt.Sprintf("%s %s(%s)", r.Return, r.Callee, strings.Join(parts, ", "))
}

// BuildRequest tokenizes line and lays out every argument in arena. source is
// the module's source text, used to infer the return type. Any token that is
// not a literal aborts the whole request.
func BuildRequest(line string, arena *Arena, source string) (*CallRequest, error) {
	lx := NewLexer(line)
	name, err := lx.Callee()
	if err != nil {
		return nil, err
	}
	req := &CallRequest{Callee: name}
	for idx := 0; ; idx++ {
		tok, ok, err := lx.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		slot, err := buildSlot(arena, idx, tok)
		if err != nil {
			return nil, err
		}
		req.Args = append(req.Args, slot)
	}
	req.Return = InferReturnType(name, source)
	return req, nil
}

func buildSlot(arena *Arena, idx int, tok Token) (ArgumentSlot, error) {
	switch tok.Kind {
	case IntLiteral:
		b, err := arena.Alloc(4)
		if err != nil {
			return ArgumentSlot{}, err
		}
		v := tok.Value.(int32)
		binary.NativeEndian.PutUint32(b.Bytes, uint32(v))
		return ArgumentSlot{Tag: SInt32, Block: b, Literal: v}, nil
	case LongLiteral:
		b, err := arena.Alloc(8)
		if err != nil {
			return ArgumentSlot{}, err
		}
		v := tok.Value.(int64)
		binary.NativeEndian.PutUint64(b.Bytes, uint64(v))
		return ArgumentSlot{Tag: SInt64, Block: b, Literal: v}, nil
	case FloatLiteral:
		b, err := arena.Alloc(4)
		if err != nil {
			return ArgumentSlot{}, err
		}
		v := tok.Value.(float32)
		binary.NativeEndian.PutUint32(b.Bytes, math.Float32bits(v))
		return ArgumentSlot{Tag: Float32, Block: b, Literal: v}, nil
	case DoubleLiteral:
		b, err := arena.Alloc(8)
		if err != nil {
			return ArgumentSlot{}, err
		}
		v := tok.Value.(float64)
		binary.NativeEndian.PutUint64(b.Bytes, math.Float64bits(v))
		return ArgumentSlot{Tag: Float64, Block: b, Literal: v}, nil
	case CharLiteral:
		b, err := arena.Alloc(1)
		if err != nil {
			return ArgumentSlot{}, err
		}
		v := tok.Value.(int8)
		b.Bytes[0] = byte(v)
		return ArgumentSlot{Tag: SChar, Block: b, Literal: v}, nil
	case StringLiteral:
		s := tok.Value.(string)
		str, err := arena.CString(s)
		if err != nil {
			return ArgumentSlot{}, fmt.Errorf("argument %d: %w", idx+1, err)
		}
		b, err := arena.Alloc(PointerSize)
		if err != nil {
			return ArgumentSlot{}, err
		}
		putAddr(b.Bytes, str.Addr)
		return ArgumentSlot{Tag: Pointer, Block: b, Literal: s}, nil
	default:
		return ArgumentSlot{}, &CallBuildError{Index: idx, Token: tok}
	}
}

// Decode reads the slot's value back out of its arena block. Pointer slots
// decode to the address they hold.
func (s ArgumentSlot) Decode() any {
	b := s.Block.Bytes
	if len(b) < s.Tag.Size() {
		return nil
	}
	switch s.Tag {
	case SInt32:
		return int32(binary.NativeEndian.Uint32(b))
	case SInt64:
		return int64(binary.NativeEndian.Uint64(b))
	case Float32:
		return math.Float32frombits(binary.NativeEndian.Uint32(b))
	case Float64:
		return math.Float64frombits(binary.NativeEndian.Uint64(b))
	case SChar:
		return int8(b[0])
	case Pointer:
		return getAddr(b)
	}
	return nil
}
