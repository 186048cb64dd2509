//go:build linux && cgo

package crepl

/*
#define _GNU_SOURCE
#cgo LDFLAGS: -ldl
#cgo pkg-config: libffi
#include <ffi.h>
#include <dlfcn.h>
#include <stdlib.h>
#include <string.h>

// ffi_call wrapper: accept a generic void* fn so cgo does not need to name
// the function pointer type at the call site.
static void cr_ffi_call(ffi_cif* cif, void* fn, void* rvalue, void** avalue) {
	ffi_call(cif, (void (*)(void))fn, rvalue, avalue);
}

// Allocate a cif on the C heap so it outlives the Go stack frame.
static ffi_cif* cr_alloc_cif(void) {
	return (ffi_cif*)calloc(1, sizeof(ffi_cif));
}

static void* cr_dlopen(const char* path) {
	return dlopen(path, RTLD_NOW | RTLD_LOCAL);
}
static const char* cr_dlerror(void) {
	return dlerror();
}
static int cr_dlclose(void* h) {
	return dlclose(h);
}

// Clear dlerror, call dlsym, and return the error (if any) alongside the symbol.
static void* cr_dlsym_clear(void* h, const char* name, char** err) {
	dlerror();
	void* p = dlsym(h, name);
	char* e = dlerror();
	if (e) { if (err) *err = e; return NULL; }
	if (err) *err = NULL;
	return p;
}
*/
import "C"

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"
)

// NativeAvailable reports whether this build can call into native code.
const NativeAvailable = true

// NativeRuntime returns the libffi executor and the C heap allocator its
// argument storage must come from.
func NativeRuntime() (Executor, Memory) {
	return ffiExecutor{}, cMemory{}
}

// dlerr returns the last dlerror as a Go string, or a fallback label.
func dlerr() string {
	errC := C.cr_dlerror()
	if errC != nil {
		return C.GoString(errC)
	}
	return "unknown dlerror"
}

// -------------------------
// libffi executor
// -------------------------

type ffiExecutor struct{}

type ffiSignature struct {
	basicSignature
	cif   *C.ffi_cif
	types unsafe.Pointer // ffi_type** argv type vector on the C heap
}

func (s *ffiSignature) Release() {
	if s.cif != nil {
		C.free(unsafe.Pointer(s.cif))
		s.cif = nil
	}
	if s.types != nil {
		C.free(s.types)
		s.types = nil
	}
}

func ffiTypeFor(t TypeTag) *C.ffi_type {
	switch t {
	case Void:
		return &C.ffi_type_void
	case SInt32:
		return &C.ffi_type_sint32
	case SInt64:
		return &C.ffi_type_sint64
	case Float32:
		return &C.ffi_type_float
	case Float64:
		return &C.ffi_type_double
	case SChar:
		return &C.ffi_type_sint8
	case Pointer:
		return &C.ffi_type_pointer
	}
	return nil
}

func (ffiExecutor) Prepare(args []TypeTag, ret TypeTag) (Signature, error) {
	if err := validateShape(args, ret); err != nil {
		return nil, err
	}
	sig := &ffiSignature{basicSignature: basicSignature{args: append([]TypeTag(nil), args...), ret: ret}}
	n := len(args)
	var typesPtr **C.ffi_type
	if n > 0 {
		mem := C.malloc(C.size_t(n) * C.size_t(unsafe.Sizeof(uintptr(0))))
		if mem == nil {
			return nil, &SignatureError{Args: args, Return: ret, Err: errors.New("out of memory")}
		}
		vec := unsafe.Slice((**C.ffi_type)(mem), n)
		for i, a := range args {
			vec[i] = ffiTypeFor(a)
		}
		sig.types = mem
		typesPtr = (**C.ffi_type)(mem)
	}
	sig.cif = C.cr_alloc_cif()
	if sig.cif == nil {
		sig.Release()
		return nil, &SignatureError{Args: args, Return: ret, Err: errors.New("out of memory")}
	}
	st := C.ffi_prep_cif(sig.cif, C.FFI_DEFAULT_ABI, C.uint(n), ffiTypeFor(ret), typesPtr)
	if st != C.FFI_OK {
		sig.Release()
		return nil, &SignatureError{Args: args, Return: ret, Err: fmt.Errorf("ffi_prep_cif status %d", int(st))}
	}
	return sig, nil
}

// Invoke refuses a mismatched call with a *SignatureError before any native
// code runs; the session treats those as ordinary per-line errors.
func (ffiExecutor) Invoke(s Signature, fn uintptr, args []ArgumentSlot) ([]byte, error) {
	sig, ok := s.(*ffiSignature)
	if !ok || sig.cif == nil {
		return nil, rejectCall(Tags(args), Void, errors.New("signature was not prepared by the libffi executor"))
	}
	if fn == 0 {
		return nil, rejectCall(sig.args, sig.ret, errors.New("call through NULL function pointer"))
	}
	if len(args) != len(sig.args) {
		return nil, rejectCall(sig.args, sig.ret, fmt.Errorf("prepared for %d arguments, got %d", len(sig.args), len(args)))
	}
	for i, a := range args {
		if a.Tag != sig.args[i] {
			return nil, rejectCall(sig.args, sig.ret, fmt.Errorf("argument %d is %s, prepared as %s", i+1, a.Tag, sig.args[i]))
		}
	}

	var argv unsafe.Pointer
	if n := len(args); n > 0 {
		argv = C.malloc(C.size_t(n) * C.size_t(unsafe.Sizeof(uintptr(0))))
		if argv == nil {
			return nil, rejectCall(sig.args, sig.ret, errors.New("out of memory"))
		}
		defer C.free(argv)
		vec := unsafe.Slice((*unsafe.Pointer)(argv), n)
		for i, a := range args {
			// Block.Addr is C heap memory from cMemory; the Go GC never moves it.
			vec[i] = unsafe.Pointer(a.Block.Addr)
		}
	}

	// fn is a dlsym result, a code address outside the Go heap.
	if sig.ret == Void {
		C.cr_ffi_call(sig.cif, unsafe.Pointer(fn), nil, (*unsafe.Pointer)(argv))
		return nil, nil
	}

	// libffi writes at least a full ffi_arg for integral returns.
	size := sig.ret.Size()
	if size < int(unsafe.Sizeof(C.ffi_arg(0))) {
		size = int(unsafe.Sizeof(C.ffi_arg(0)))
	}
	rv := C.calloc(1, C.size_t(size))
	if rv == nil {
		return nil, rejectCall(sig.args, sig.ret, errors.New("out of memory"))
	}
	defer C.free(rv)
	C.cr_ffi_call(sig.cif, unsafe.Pointer(fn), rv, (*unsafe.Pointer)(argv))

	out := make([]byte, sig.ret.Size())
	switch sig.ret {
	case SInt32:
		binary.NativeEndian.PutUint32(out, uint32(int32(*(*C.ffi_sarg)(rv))))
	case SChar:
		out[0] = byte(int8(*(*C.ffi_sarg)(rv)))
	default:
		copy(out, unsafe.Slice((*byte)(rv), len(out)))
	}
	return out, nil
}

// -------------------------
// C heap memory
// -------------------------

type cMemory struct{}

func (cMemory) Alloc(size int) (Block, error) {
	if size <= 0 {
		return Block{}, fmt.Errorf("attempted to allocate %d bytes", size)
	}
	p := C.calloc(1, C.size_t(size))
	if p == nil {
		return Block{}, errors.New("calloc failed")
	}
	return Block{Addr: uintptr(p), Bytes: unsafe.Slice((*byte)(p), size)}, nil
}

func (cMemory) Free(b Block) {
	if b.Addr != 0 {
		// Addr came from C.calloc in Alloc.
		C.free(unsafe.Pointer(b.Addr))
	}
}

// PeekCString trusts addr: a pointer into unmapped memory faults here the same
// way it would in the callee.
func (cMemory) PeekCString(addr uintptr, max int) []byte {
	if addr == 0 {
		return nil
	}
	out := make([]byte, 0, 32)
	for i := 0; i < max; i++ {
		c := *(*byte)(unsafe.Add(unsafe.Pointer(addr), i))
		if c == 0 {
			break
		}
		out = append(out, c)
	}
	return out
}

// -------------------------
// dlopen'd modules
// -------------------------

type dlModule struct {
	path    string
	source  string
	handle  unsafe.Pointer
	cleanup func() error
}

// OpenLibrary dlopens a shared object. source is the text it was built from,
// if known; it feeds return type inference and the function catalog.
func OpenLibrary(path, source string) (ModuleHandle, error) {
	return openLibrary(path, source, nil)
}

func openLibrary(path, source string, cleanup func() error) (ModuleHandle, error) {
	cs := C.CString(path)
	defer C.free(unsafe.Pointer(cs))
	h := C.cr_dlopen(cs)
	if h == nil {
		return nil, fmt.Errorf("dlopen(%q) failed: %s", path, dlerr())
	}
	return &dlModule{path: path, source: source, handle: h, cleanup: cleanup}, nil
}

func (m *dlModule) Lookup(name string) (uintptr, bool) {
	if m.handle == nil || name == "" {
		return 0, false
	}
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	var cerr *C.char
	p := C.cr_dlsym_clear(m.handle, cs, &cerr)
	if cerr != nil || p == nil {
		return 0, false
	}
	return uintptr(p), true
}

func (m *dlModule) Source() string { return m.source }
func (m *dlModule) Path() string   { return m.path }

func (m *dlModule) Close() error {
	var errs []error
	if m.handle != nil {
		if int(C.cr_dlclose(m.handle)) != 0 {
			errs = append(errs, fmt.Errorf("dlclose failed: %s", dlerr()))
		}
		m.handle = nil
	}
	if m.cleanup != nil {
		errs = append(errs, m.cleanup())
		m.cleanup = nil
	}
	return errors.Join(errs...)
}
