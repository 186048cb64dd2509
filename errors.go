// errors.go: error kinds surfaced by the engine, and caret rendering for
// tokenizer errors.
//
// Per-line errors (TokenizeError, CallBuildError, SymbolNotFoundError,
// SignatureError) are reported by the session and the loop continues.
// InvocationError, LoadError and ReloadError end the session.
//
// WrapErrorWithLine turns a *TokenizeError into a two-line snippet with a caret
// under the offending column:
//
//	unterminated string literal at column 9
//	   | greet "bob
//	   |       ^
//
// Every other error is returned unchanged.
package crepl

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrQuit is returned by HandleLine when the operator asked to leave.
	ErrQuit = errors.New("quit requested")
	// ErrInterrupted is returned by a LineReader when the prompt was aborted
	// with Ctrl+C.
	ErrInterrupted = errors.New("interrupted")
)

// TokenizeError reports a malformed literal or a bad callee. Pos is the 0-based
// byte offset in the trimmed line.
type TokenizeError struct {
	Pos int
	Msg string
}

func (e *TokenizeError) Error() string { return e.Msg }

// CallBuildError reports a token that cannot be an argument (an identifier or
// an unrecognized sequence). Index is the 0-based argument position.
type CallBuildError struct {
	Index int
	Token Token
}

func (e *CallBuildError) Error() string {
	return fmt.Sprintf("unsupported argument %d: %s %q", e.Index+1, e.Token.Kind, e.Token.Raw)
}

// SymbolNotFoundError reports a callee the module cannot resolve.
type SymbolNotFoundError struct {
	Name       string
	Suggestion string
}

func (e *SymbolNotFoundError) Error() string {
	return fmt.Sprintf("function '%s' not found", e.Name)
}

// SignatureError reports that the executor rejected the assembled signature.
type SignatureError struct {
	Args   []TypeTag
	Return TypeTag
	Err    error
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("could not prepare FFI call (%s): %v", formatSignature(e.Args, e.Return), e.Err)
}

func (e *SignatureError) Unwrap() error { return e.Err }

// InvocationError reports a failure after the native call was attempted.
// Once native code has run the process state is unknown, so it is fatal.
type InvocationError struct {
	Name string
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invocation of '%s' failed: %v", e.Name, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// LoadError reports that the code provider could not produce a module.
type LoadError struct {
	Locator string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load '%s': %v", e.Locator, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ReloadError is a LoadError raised by :reload. It is fatal; the previous
// module is already gone.
type ReloadError struct {
	Err error
}

func (e *ReloadError) Error() string { return "reload failed: " + e.Err.Error() }

func (e *ReloadError) Unwrap() error { return e.Err }

// IsFatal reports whether err must end the session.
func IsFatal(err error) bool {
	var ie *InvocationError
	var re *ReloadError
	var le *LoadError
	return errors.As(err, &ie) || errors.As(err, &re) || errors.As(err, &le)
}

// WrapErrorWithLine returns err augmented with a caret snippet of line when
// err is a *TokenizeError; other errors are returned as-is.
func WrapErrorWithLine(err error, line string) error {
	var te *TokenizeError
	if !errors.As(err, &te) {
		return err
	}
	return fmt.Errorf("%s", caretSnippet(strings.TrimSpace(line), te.Pos, te.Msg))
}

func caretSnippet(line string, pos int, msg string) string {
	if pos < 0 {
		pos = 0
	}
	if pos > len(line) {
		pos = len(line)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s at column %d\n", msg, pos+1)
	fmt.Fprintf(&b, "   | %s\n", line)
	fmt.Fprintf(&b, "   | %s^", strings.Repeat(" ", pos))
	return b.String()
}

func errUnsupportedTag(t TypeTag) error {
	if t == Void {
		return errors.New("void is not a valid argument type")
	}
	return fmt.Errorf("unsupported type %s", t)
}

func formatSignature(args []TypeTag, ret TypeTag) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", ret, strings.Join(parts, ", "))
}
