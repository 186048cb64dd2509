package crepl

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/daios-ai/crepl/internal/obfuscate"
)

type openCall struct {
	path    string
	source  string
	cleanup func() error
	data    []byte
}

// recordingOpen captures what the provider asks to load and returns a fake module.
func recordingOpen(calls *[]openCall, fail error) OpenFunc {
	return func(path, source string, cleanup func() error) (ModuleHandle, error) {
		data, _ := os.ReadFile(path)
		*calls = append(*calls, openCall{path: path, source: source, cleanup: cleanup, data: data})
		if fail != nil {
			return nil, fail
		}
		return &fakeModule{path: path, source: source}, nil
	}
}

func writeFile(t *testing.T, path, text string, mode os.FileMode) {
	t.Helper()
	if err := os.WriteFile(path, []byte(text), mode); err != nil {
		t.Fatal(err)
	}
}

func mustBeEmptyDir(t *testing.T, dir string) {
	t.Helper()
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(ents) != 0 {
		t.Fatalf("%s not cleaned up: %v", dir, ents)
	}
}

func Test_Provider_CompileArgs(t *testing.T) {
	dir := t.TempDir()
	locator := filepath.Join(dir, "lib.c")

	p := &CompilerProvider{}
	got := p.compileArgs(locator, "/b/module.c", "/b/module.so")
	want := []string{"cc", "-shared", "-fPIC", "-o", "/b/module.so", "/b/module.c", "-I" + dir, "-lm"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("default args\n got %v\nwant %v", got, want)
	}

	p = &CompilerProvider{Compiler: "ccache gcc", CFlags: []string{"-O2"}, Libs: []string{}}
	got = p.compileArgs("https://example.com/lib.c", "m.c", "m.so")
	want = []string{"ccache", "gcc", "-shared", "-fPIC", "-o", "m.so", "m.c", "-O2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("custom args\n got %v\nwant %v", got, want)
	}
}

func Test_Provider_SharedObjectOpenedInPlace(t *testing.T) {
	var calls []openCall
	p := &CompilerProvider{Open: recordingOpen(&calls, nil)}
	m, err := p.Load(context.Background(), "/opt/lib/libdemo.so")
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 1 || calls[0].path != "/opt/lib/libdemo.so" || calls[0].source != "" || calls[0].cleanup != nil {
		t.Fatalf("open calls = %+v", calls)
	}
	if m.Source() != "" {
		t.Fatalf("source = %q", m.Source())
	}
}

func Test_Provider_CompilesSource(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("no true(1) on PATH")
	}
	src := filepath.Join(t.TempDir(), "lib.c")
	writeFile(t, src, fakeSource, 0o600)
	tmp := t.TempDir()

	var calls []openCall
	p := &CompilerProvider{Compiler: "true", Open: recordingOpen(&calls, nil), TempDir: tmp}
	if _, err := p.Load(context.Background(), src); err != nil {
		t.Fatal(err)
	}
	if len(calls) != 1 {
		t.Fatalf("open calls = %d", len(calls))
	}
	c := calls[0]
	if filepath.Base(c.path) != "module.so" || c.source != fakeSource {
		t.Fatalf("opened %q with source %q", c.path, c.source)
	}
	built, err := os.ReadFile(filepath.Join(filepath.Dir(c.path), "module.c"))
	if err != nil || string(built) != fakeSource {
		t.Fatalf("module.c = %q, %v", built, err)
	}
	if c.cleanup == nil {
		t.Fatal("no cleanup handed to the module")
	}
	if err := c.cleanup(); err != nil {
		t.Fatal(err)
	}
	mustBeEmptyDir(t, tmp)
}

func Test_Provider_CompileFailure(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no sh on PATH")
	}
	dir := t.TempDir()
	cc := filepath.Join(dir, "badcc")
	writeFile(t, cc, "#!/bin/sh\necho 'module.c:1: error: expected ;' >&2\nexit 1\n", 0o755)
	src := filepath.Join(dir, "lib.c")
	writeFile(t, src, "int broken(", 0o600)
	tmp := t.TempDir()

	var calls []openCall
	p := &CompilerProvider{Compiler: cc, Open: recordingOpen(&calls, nil), TempDir: tmp}
	_, err := p.Load(context.Background(), src)
	wantErrContains(t, err, "compilation failed")
	wantErrContains(t, err, "expected ;")
	if len(calls) != 0 {
		t.Fatal("opened a module after a failed build")
	}
	mustBeEmptyDir(t, tmp)
}

func Test_Provider_OpenFailureCleansUp(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("no true(1) on PATH")
	}
	src := filepath.Join(t.TempDir(), "lib.c")
	writeFile(t, src, fakeSource, 0o600)
	tmp := t.TempDir()

	var calls []openCall
	p := &CompilerProvider{Compiler: "true", Open: recordingOpen(&calls, errors.New("bad ELF")), TempDir: tmp}
	_, err := p.Load(context.Background(), src)
	wantErrContains(t, err, "bad ELF")
	mustBeEmptyDir(t, tmp)
}

func Test_Provider_FetchError(t *testing.T) {
	var calls []openCall
	p := &CompilerProvider{Open: recordingOpen(&calls, nil), TempDir: t.TempDir()}
	_, err := p.Load(context.Background(), filepath.Join(t.TempDir(), "missing.c"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v", err)
	}
	if len(calls) != 0 {
		t.Fatal("opened after a failed fetch")
	}
}

func Test_Provider_DecryptsSharedObject(t *testing.T) {
	payload := []byte("\x7fELF not really")
	path := filepath.Join(t.TempDir(), "libsecret.so")
	writeFile(t, path, string(obfuscate.Encrypt(payload, "k3y")), 0o600)

	var calls []openCall
	p := &CompilerProvider{
		Open:    recordingOpen(&calls, nil),
		TempDir: t.TempDir(),
		Decrypt: func(b []byte) ([]byte, error) { return obfuscate.Decrypt(b, "k3y") },
	}
	if _, err := p.Load(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	if len(calls) != 1 || filepath.Base(calls[0].path) != "module.so" || string(calls[0].data) != string(payload) {
		t.Fatalf("open calls = %+v", calls)
	}
	if calls[0].cleanup == nil {
		t.Fatal("decrypted object has no cleanup")
	}
	_ = calls[0].cleanup()
}

func Test_Provider_DecryptError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lib.c")
	writeFile(t, path, "!!! not base64 !!!", 0o600)

	var calls []openCall
	p := &CompilerProvider{
		Open:    recordingOpen(&calls, nil),
		Decrypt: func(b []byte) ([]byte, error) { return obfuscate.Decrypt(b, "k") },
	}
	_, err := p.Load(context.Background(), path)
	wantErrContains(t, err, "decrypt:")
	if !errors.Is(err, obfuscate.ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}
