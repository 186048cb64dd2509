package crepl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// OpenFunc loads a shared object. cleanup, when non-nil, runs after the
// module is closed.
type OpenFunc func(path, source string, cleanup func() error) (ModuleHandle, error)

// CompilerProvider builds C source into a shared object with the system
// compiler and dlopens it. A locator ending in ".so" is loaded as is, with no
// source text, so the catalog is empty and every return type defaults to int.
//
// Each Load gets its own temporary build directory, removed when the module
// is closed, so :reload always sees a fresh object.
type CompilerProvider struct {
	Compiler string   // command, split on spaces ("cc", "ccache gcc")
	CFlags   []string // extra flags before the libraries
	Libs     []string // linker inputs; nil means -lm

	Fetcher *Fetcher
	// Decrypt, if set, is applied to the fetched bytes before anything else.
	Decrypt func([]byte) ([]byte, error)
	// Open defaults to OpenLibrary's loader.
	Open OpenFunc

	TempDir string
	Logger  *slog.Logger
}

func (p *CompilerProvider) Load(ctx context.Context, locator string) (ModuleHandle, error) {
	open := p.Open
	if open == nil {
		open = openLibrary
	}
	isShared := strings.HasSuffix(locator, ".so")
	if isShared && !IsURL(locator) && p.Decrypt == nil {
		p.logger().Debug("opening shared object", "path", locator)
		return open(locator, "", nil)
	}

	data, err := p.fetcher().Fetch(ctx, locator)
	if err != nil {
		return nil, err
	}
	if p.Decrypt != nil {
		if data, err = p.Decrypt(data); err != nil {
			return nil, fmt.Errorf("decrypt: %w", err)
		}
	}

	dir, err := os.MkdirTemp(p.TempDir, "crepl-")
	if err != nil {
		return nil, err
	}
	cleanup := func() error { return os.RemoveAll(dir) }
	so := filepath.Join(dir, "module.so")

	if isShared {
		if err := os.WriteFile(so, data, 0o700); err != nil {
			_ = cleanup()
			return nil, err
		}
		m, err := open(so, "", cleanup)
		if err != nil {
			_ = cleanup()
			return nil, err
		}
		return m, nil
	}

	if err := p.compile(ctx, locator, dir, so, data); err != nil {
		_ = cleanup()
		return nil, err
	}
	m, err := open(so, string(data), cleanup)
	if err != nil {
		_ = cleanup()
		return nil, err
	}
	return m, nil
}

func (p *CompilerProvider) compile(ctx context.Context, locator, dir, so string, src []byte) error {
	cfile := filepath.Join(dir, "module.c")
	if err := os.WriteFile(cfile, src, 0o600); err != nil {
		return err
	}
	argv := p.compileArgs(locator, cfile, so)
	if len(argv) == 0 {
		return errors.New("no C compiler configured")
	}
	p.logger().Debug("compiling", "cmd", strings.Join(argv, " "))

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(out.String())
		if msg == "" {
			return fmt.Errorf("compilation failed: %w", err)
		}
		return fmt.Errorf("compilation failed: %w\n%s", err, msg)
	}
	return nil
}

// compileArgs is the full compiler command line, program first.
func (p *CompilerProvider) compileArgs(locator, cfile, so string) []string {
	cc := p.Compiler
	if cc == "" {
		cc = "cc"
	}
	argv := strings.Fields(cc)
	argv = append(argv, "-shared", "-fPIC", "-o", so, cfile)
	if !IsURL(locator) {
		if abs, err := filepath.Abs(locator); err == nil {
			argv = append(argv, "-I"+filepath.Dir(abs))
		}
	}
	argv = append(argv, p.CFlags...)
	libs := p.Libs
	if libs == nil {
		libs = []string{"-lm"}
	}
	return append(argv, libs...)
}

func (p *CompilerProvider) fetcher() *Fetcher {
	if p.Fetcher != nil {
		return p.Fetcher
	}
	return &Fetcher{}
}

func (p *CompilerProvider) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return discardLogger()
}
