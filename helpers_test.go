package crepl

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"testing"
	"time"
)

func mustContain(t *testing.T, s, sub string) {
	t.Helper()
	if !strings.Contains(s, sub) {
		t.Fatalf("expected output to contain %q\n--- output ---\n%s", sub, s)
	}
}

func mustNotContain(t *testing.T, s, sub string) {
	t.Helper()
	if strings.Contains(s, sub) {
		t.Fatalf("expected output NOT to contain %q\n--- output ---\n%s", sub, s)
	}
}

func wantErrContains(t *testing.T, err error, sub string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error containing %q, got nil", sub)
	}
	if !strings.Contains(err.Error(), sub) {
		t.Fatalf("expected error containing %q, got %q", sub, err.Error())
	}
}

// -----------------------------------------------------------------------------
// fakes: a module/executor pair that runs Go functions instead of machine code
// -----------------------------------------------------------------------------

const fakeSource = `#include <string.h>

int add_ret(int a, int b) { return a + b; }
const char* greet(const char* who) { return who; }
double half(double x) { return x / 2; }
void nothing(void) {}
`

type fakeFunc func(args []ArgumentSlot) []byte

type fakeModule struct {
	path   string
	source string
	syms   map[string]uintptr
	closed bool
}

func (m *fakeModule) Lookup(name string) (uintptr, bool) {
	fn, ok := m.syms[name]
	return fn, ok
}
func (m *fakeModule) Source() string { return m.source }
func (m *fakeModule) Path() string   { return m.path }
func (m *fakeModule) Close() error {
	m.closed = true
	return nil
}

type fakeExecutor struct {
	funcs      map[uintptr]fakeFunc
	prepareErr error
	invokeErr  error
	prepared   [][]TypeTag
	released   int
}

type fakeSignature struct {
	basicSignature
	exec *fakeExecutor
}

func (s *fakeSignature) Release() { s.exec.released++ }

func (e *fakeExecutor) Prepare(args []TypeTag, ret TypeTag) (Signature, error) {
	if err := validateShape(args, ret); err != nil {
		return nil, err
	}
	if e.prepareErr != nil {
		return nil, &SignatureError{Args: args, Return: ret, Err: e.prepareErr}
	}
	e.prepared = append(e.prepared, args)
	return &fakeSignature{basicSignature: basicSignature{args: args, ret: ret}, exec: e}, nil
}

func (e *fakeExecutor) Invoke(sig Signature, fn uintptr, args []ArgumentSlot) ([]byte, error) {
	if e.invokeErr != nil {
		return nil, e.invokeErr
	}
	f, ok := e.funcs[fn]
	if !ok {
		return nil, fmt.Errorf("no function at 0x%x", fn)
	}
	return f(args), nil
}

type fakeProvider struct {
	modules []*fakeModule
	errs    []error
	loads   int
}

func (p *fakeProvider) Load(_ context.Context, locator string) (ModuleHandle, error) {
	i := p.loads
	p.loads++
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i >= len(p.modules) {
		return nil, errors.New("no more modules")
	}
	return p.modules[i], nil
}

func i32(v int32) []byte {
	b := make([]byte, 4)
	binary.NativeEndian.PutUint32(b, uint32(v))
	return b
}

// newFakeRuntime wires a module exposing fakeSource's functions to an
// executor that implements them in Go.
func newFakeRuntime(mem *HeapMemory) (*fakeModule, *fakeExecutor) {
	mod := &fakeModule{
		path:   "/tmp/crepl-test/module.so",
		source: fakeSource,
		syms:   map[string]uintptr{"add_ret": 0x1000, "greet": 0x2000, "half": 0x3000, "nothing": 0x4000},
	}
	exec := &fakeExecutor{funcs: map[uintptr]fakeFunc{
		0x1000: func(args []ArgumentSlot) []byte {
			return i32(args[0].Decode().(int32) + args[1].Decode().(int32))
		},
		0x2000: func(args []ArgumentSlot) []byte {
			who := string(mem.PeekCString(args[0].Decode().(uintptr), 256))
			blk, _ := mem.Alloc(len("Hello, !") + len(who) + 1)
			copy(blk.Bytes, "Hello, "+who+"!")
			out := make([]byte, PointerSize)
			putAddr(out, blk.Addr)
			return out
		},
		0x3000: func(args []ArgumentSlot) []byte {
			out := make([]byte, 8)
			binary.NativeEndian.PutUint64(out, math.Float64bits(args[0].Decode().(float64)/2))
			return out
		},
		0x4000: func([]ArgumentSlot) []byte { return nil },
	}}
	return mod, exec
}

type step struct {
	line string
	err  error
	at   time.Duration
}

// scriptReader replays lines and errors, moving the fake clock to each
// step's time before returning it. After the script it reports EOF.
type scriptReader struct {
	steps   []step
	i       int
	now     *time.Time
	base    time.Time
	prompts []string
}

func (r *scriptReader) ReadLine(prompt string) (string, error) {
	r.prompts = append(r.prompts, prompt)
	if r.i >= len(r.steps) {
		return "", io.EOF
	}
	st := r.steps[r.i]
	r.i++
	if r.now != nil {
		*r.now = r.base.Add(st.at)
	}
	return st.line, st.err
}

type testSession struct {
	*Session
	out  *bytes.Buffer
	mem  *HeapMemory
	mod  *fakeModule
	exec *fakeExecutor
	prov *fakeProvider
	now  time.Time
}

func newTestSession(t *testing.T) *testSession {
	t.Helper()
	ts := &testSession{out: &bytes.Buffer{}, mem: NewHeapMemory()}
	ts.mod, ts.exec = newFakeRuntime(ts.mem)
	ts.prov = &fakeProvider{modules: []*fakeModule{ts.mod}}
	ts.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s, err := NewSession(Options{
		Provider: ts.prov,
		Executor: ts.exec,
		Memory:   ts.mem,
		Locator:  "lib.c",
		Out:      ts.out,
		Config:   Config{Compiler: "cc", InterruptWindow: 2 * time.Second, Prompt: "> "},
		Now:      func() time.Time { return ts.now },
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	ts.Session = s
	return ts
}

func (ts *testSession) line(t *testing.T, line string) string {
	t.Helper()
	ts.out.Reset()
	if err := ts.HandleLine(context.Background(), line); err != nil {
		t.Fatalf("HandleLine(%q): %v", line, err)
	}
	return ts.out.String()
}
