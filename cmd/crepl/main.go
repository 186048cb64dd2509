package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/daios-ai/crepl"
	"github.com/daios-ai/crepl/internal/obfuscate"
)

const appName = "crepl"

const banner = `╔════════════════════════════════════════════════════════════╗
║          C REPL - Interactive C Function Executor          ║
╚════════════════════════════════════════════════════════════╝

Successfully compiled: %s
Type :help for commands, :quit or Ctrl+C to exit

`

func red(s string) string { return "\x1b[31m" + s + "\x1b[0m" }

type mode int

const (
	modeRun mode = iota
	modeEncrypt
	modeDecrypt
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func usage() {
	fmt.Fprintf(os.Stderr, `crepl %s (built %s)

Usage:
  %s [flags] <source.c|lib.so|url>     Compile (or load) and start the REPL.
  %s [flags] 1 <source.c>              Write an obfuscated copy (<name>_enc.c).
  %s [flags] 0 <source_enc.c|url>      De-obfuscate, compile and start the REPL.

Flags:
  -config <file>   settings file (default ~/.crepl.yaml)
  -cc <command>    C compiler (overrides config and $CC)
  -v               debug logging on stderr
  -version         print the version and exit

`, crepl.Version, crepl.BuildDate, appName, appName, appName)
}

func run(args []string) int {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.Usage = usage
	configPath := fs.String("config", "", "settings file")
	cc := fs.String("cc", "", "C compiler")
	verbose := fs.Bool("v", false, "debug logging")
	showVersion := fs.Bool("version", false, "print version")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *showVersion {
		fmt.Println(crepl.Version)
		return 0
	}

	m, locator, err := parseMode(fs.Args())
	if err != nil {
		usage()
		fmt.Fprintln(os.Stderr, "ERROR: "+err.Error())
		return 1
	}

	cfg, err := crepl.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR: "+err.Error())
		return 1
	}
	if *cc != "" {
		cfg.Compiler = *cc
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		cfg.Color = false
	}
	logger, err := crepl.NewLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR: "+err.Error())
		return 1
	}

	ctx := context.Background()
	stdin := bufio.NewReader(os.Stdin)
	fetcher := &crepl.Fetcher{Timeout: cfg.FetchTimeout}

	if m == modeEncrypt {
		return cmdEncrypt(ctx, fetcher, stdin, locator)
	}

	var decrypt func([]byte) ([]byte, error)
	if m == modeDecrypt {
		fmt.Printf("Decrypting file: %s\n", locator)
		key, err := readKey(stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, "ERROR: Failed to get decryption key: "+err.Error())
			return 1
		}
		decrypt = func(b []byte) ([]byte, error) { return obfuscate.Decrypt(b, key) }
	}

	return cmdRepl(ctx, cfg, logger, fetcher, decrypt, stdin, locator)
}

func parseMode(args []string) (mode, string, error) {
	if len(args) == 0 {
		return 0, "", errors.New("no input source file provided")
	}
	switch args[0] {
	case "1":
		if len(args) < 2 {
			return 0, "", errors.New("encryption mode requires a file path")
		}
		return modeEncrypt, args[1], nil
	case "0":
		if len(args) < 2 {
			return 0, "", errors.New("decryption mode requires a file path")
		}
		return modeDecrypt, args[1], nil
	}
	return modeRun, args[0], nil
}

// -----------------------------------------------------------------------------
// encrypt
// -----------------------------------------------------------------------------

func cmdEncrypt(ctx context.Context, fetcher *crepl.Fetcher, stdin *bufio.Reader, path string) int {
	if crepl.IsURL(path) {
		fmt.Fprintln(os.Stderr, "ERROR: Cannot encrypt URLs directly. Encrypt target file with this program before attempting to retrieve it.")
		return 1
	}
	src, err := fetcher.Fetch(ctx, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Could not retrieve source code from: %s: %v\n", path, err)
		return 1
	}
	fmt.Printf("Encrypting file: %s\n", path)
	key, err := readKey(stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR: Failed to get encryption key: "+err.Error())
		return 1
	}
	out := obfuscate.EncryptedPath(path)
	if err := os.WriteFile(out, obfuscate.Encrypt(src, key), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR: Could not write encrypted file: "+err.Error())
		return 1
	}
	fmt.Printf("File encrypted successfully: %s\n", out)
	return 0
}

// readKey prompts on stderr. On a terminal the key is read without echo.
func readKey(stdin *bufio.Reader) (string, error) {
	fmt.Fprint(os.Stderr, "Enter encryption/decryption key: ")
	var key string
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		if err != nil {
			return "", err
		}
		key = string(b)
	} else {
		line, err := stdin.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", err
		}
		key = strings.TrimRight(line, "\r\n")
	}
	fmt.Fprintln(os.Stderr)
	if key == "" {
		fmt.Fprintln(os.Stderr, "Warning: Using empty key")
	}
	return key, nil
}

// -----------------------------------------------------------------------------
// repl
// -----------------------------------------------------------------------------

func cmdRepl(ctx context.Context, cfg crepl.Config, logger *slog.Logger, fetcher *crepl.Fetcher,
	decrypt func([]byte) ([]byte, error), stdin *bufio.Reader, locator string) int {

	exec, mem := crepl.NativeRuntime()
	if !crepl.NativeAvailable {
		logger.Warn("built without cgo and libffi; function calls will fail")
	}
	provider := &crepl.CompilerProvider{
		Compiler: cfg.Compiler,
		CFlags:   cfg.CFlags,
		Libs:     cfg.Libs,
		Fetcher:  fetcher,
		Decrypt:  decrypt,
		Logger:   logger,
	}
	s, err := crepl.NewSession(crepl.Options{
		Provider: provider,
		Executor: exec,
		Memory:   mem,
		Locator:  locator,
		Out:      os.Stdout,
		Logger:   logger,
		Config:   cfg,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR: "+err.Error())
		return 1
	}
	if err := s.Open(ctx); err != nil {
		fmt.Fprintln(os.Stderr, paint(cfg, "ERROR: "+err.Error()))
		return 1
	}
	defer s.Close()

	fmt.Printf(banner, locator)

	var r lineReader
	if term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())) {
		r = newLinerReader(s, cfg)
	} else {
		r = &pipeReader{in: stdin, out: os.Stdout}
	}
	defer r.Close()

	if err := s.Run(ctx, r); err != nil {
		fmt.Fprintln(os.Stderr, paint(cfg, "ERROR: "+err.Error()))
		return 1
	}
	return 0
}

func paint(cfg crepl.Config, s string) string {
	if !cfg.Color {
		return s
	}
	return red(s)
}
