package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"github.com/daios-ai/crepl"
)

type lineReader interface {
	crepl.LineReader
	Close() error
}

// linerReader is the interactive front end: line editing, history and tab
// completion of built-ins and catalog names.
type linerReader struct {
	ln       *liner.State
	histPath string
	limit    int
	sigc     chan os.Signal
}

func newLinerReader(s *crepl.Session, cfg crepl.Config) *linerReader {
	ln := liner.NewLiner()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(func(line string) []string {
		var names []string
		if c := s.Catalog(); c != nil {
			names = c.Names()
		}
		return complete(line, names)
	})

	r := &linerReader{ln: ln, histPath: cfg.HistoryFile, limit: cfg.HistoryLimit}
	if r.histPath != "" {
		if f, err := os.Open(r.histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}

	// Restore the terminal if we are killed while liner holds it in raw mode.
	r.sigc = make(chan os.Signal, 1)
	signal.Notify(r.sigc, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		if _, ok := <-r.sigc; ok {
			ln.Close()
			os.Exit(130)
		}
	}()
	return r
}

func (r *linerReader) ReadLine(prompt string) (string, error) {
	line, err := r.ln.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", crepl.ErrInterrupted
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		r.ln.AppendHistory(line)
	}
	return line, nil
}

func (r *linerReader) Close() error {
	signal.Stop(r.sigc)
	close(r.sigc)
	r.saveHistory()
	return r.ln.Close()
}

func (r *linerReader) saveHistory() {
	if r.histPath == "" || r.limit == 0 {
		return
	}
	var buf bytes.Buffer
	if _, err := r.ln.WriteHistory(&buf); err != nil {
		return
	}
	lines := strings.SplitAfter(buf.String(), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	if len(lines) > r.limit {
		lines = lines[len(lines)-r.limit:]
	}
	_ = os.WriteFile(r.histPath, []byte(strings.Join(lines, "")), 0o600)
}

// pipeReader serves non-interactive input such as `producer | crepl lib.so`.
type pipeReader struct {
	in  *bufio.Reader
	out io.Writer
}

func (r *pipeReader) ReadLine(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	line, err := r.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (r *pipeReader) Close() error { return nil }

// complete offers built-ins for a ':' prefix, and built-ins plus function
// names for the first word of a call. Arguments are not completed.
func complete(line string, functions []string) []string {
	if strings.ContainsAny(line, " \t") {
		return nil
	}
	var out []string
	for _, c := range crepl.CommandNames() {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	if strings.HasPrefix(line, ":") {
		return out
	}
	var fns []string
	for _, f := range functions {
		if strings.HasPrefix(f, line) {
			fns = append(fns, f)
		}
	}
	sort.Strings(fns)
	return append(out, fns...)
}
