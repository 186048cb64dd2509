package crepl

import "context"

// Signature is a prepared call shape. Release frees whatever the executor
// allocated for it; it is called once, after the invocation.
type Signature interface {
	Args() []TypeTag
	Return() TypeTag
	Release()
}

// Executor performs the architecture-level call. Prepare builds a call shape
// for the given argument and return tags and fails with the reason the shape
// was rejected. Invoke calls fn with args (whose tags must match the prepared
// shape) and returns the raw result, sized to the return tag; nil for Void.
//
// Invoke blocks until the callee returns and cannot be cancelled. A callee that
// crashes takes the process with it.
type Executor interface {
	Prepare(args []TypeTag, ret TypeTag) (Signature, error)
	Invoke(sig Signature, fn uintptr, args []ArgumentSlot) ([]byte, error)
}

// ModuleHandle is a loaded body of native code.
type ModuleHandle interface {
	// Lookup resolves an exported symbol to its address.
	Lookup(name string) (uintptr, bool)
	// Source is the text the module was built from; empty when unknown.
	Source() string
	// Path names the loaded artifact (the shared object), for :info.
	Path() string
	Close() error
}

// CodeProvider turns a source locator into a loaded module.
type CodeProvider interface {
	Load(ctx context.Context, locator string) (ModuleHandle, error)
}

type basicSignature struct {
	args []TypeTag
	ret  TypeTag
}

func (s *basicSignature) Args() []TypeTag { return s.args }
func (s *basicSignature) Return() TypeTag { return s.ret }
func (s *basicSignature) Release()        {}

// validateShape checks the parts of a call shape every executor agrees on.
func validateShape(args []TypeTag, ret TypeTag) error {
	if !ret.Valid() {
		return &SignatureError{Args: args, Return: ret, Err: errUnsupportedTag(ret)}
	}
	for _, a := range args {
		if !a.Valid() || a == Void {
			return &SignatureError{Args: args, Return: ret, Err: errUnsupportedTag(a)}
		}
	}
	return nil
}

// rejectCall is the error an executor returns when it refuses a call before
// any native code has run.
func rejectCall(args []TypeTag, ret TypeTag, err error) error {
	return &SignatureError{Args: args, Return: ret, Err: err}
}
