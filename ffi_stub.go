//go:build !linux || !cgo

package crepl

import "errors"

// NativeAvailable reports whether this build can call into native code.
const NativeAvailable = false

var errNoNative = errors.New("native calls require a linux build with cgo and libffi")

// NativeRuntime returns an executor that refuses every call shape, and a Go
// heap allocator. The REPL still starts, lists and inspects; calls fail.
func NativeRuntime() (Executor, Memory) {
	return stubExecutor{}, NewHeapMemory()
}

type stubExecutor struct{}

func (stubExecutor) Prepare(args []TypeTag, ret TypeTag) (Signature, error) {
	if err := validateShape(args, ret); err != nil {
		return nil, err
	}
	return nil, &SignatureError{Args: args, Return: ret, Err: errNoNative}
}

func (stubExecutor) Invoke(_ Signature, _ uintptr, args []ArgumentSlot) ([]byte, error) {
	return nil, rejectCall(Tags(args), Void, errNoNative)
}

// OpenLibrary always fails in this build.
func OpenLibrary(path, source string) (ModuleHandle, error) {
	return openLibrary(path, source, nil)
}

func openLibrary(path, _ string, _ func() error) (ModuleHandle, error) {
	return nil, errors.New("cannot open " + path + ": " + errNoNative.Error())
}
