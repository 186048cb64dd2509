package crepl

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

const helpText = `
Builtin commands:
  :help, :h   - Show this help message
  :quit, :q   - Exit the REPL
  :info       - Show compilation info
  :list, :l   - List all available functions
  :reload, :r - Reload and recompile source file

Function call format:
  function_name [args...]

Supported argument types:
  - Integers: 42, -10, 100L (long)
  - Floats: 3.14, 2.5f (float), 1.0 (double)
  - Strings: "hello world"
  - Characters: 'a', 'Z'
`

const boxWidth = 60

type command struct {
	names []string
	run   func(s *Session, ctx context.Context) error
}

var commands = []command{
	{names: []string{":help", ":h"}, run: (*Session).cmdHelp},
	{names: []string{":quit", ":q"}, run: (*Session).cmdQuit},
	{names: []string{":info"}, run: (*Session).cmdInfo},
	{names: []string{":list", ":l"}, run: (*Session).cmdList},
	{names: []string{":reload", ":r"}, run: (*Session).cmdReload},
}

// CommandNames lists every built-in spelling, for completion.
func CommandNames() []string {
	var out []string
	for _, c := range commands {
		out = append(out, c.names...)
	}
	return out
}

func lookupCommand(text string) (command, bool) {
	for _, c := range commands {
		for _, n := range c.names {
			if n == text {
				return c, true
			}
		}
	}
	return command{}, false
}

func (s *Session) runCommand(ctx context.Context, text string) error {
	c, ok := lookupCommand(text)
	if !ok {
		s.errorf("unknown command. Type :help for available commands")
		return nil
	}
	return c.run(s, ctx)
}

func (s *Session) cmdHelp(context.Context) error {
	fmt.Fprint(s.out, helpText)
	return nil
}

func (s *Session) cmdQuit(context.Context) error {
	s.state = Terminated
	return ErrQuit
}

func (s *Session) cmdInfo(context.Context) error {
	st := s.arena.Stats()
	loaded := "(none)"
	if s.module != nil {
		loaded = s.module.Path()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\nCompilation info:\n")
	fmt.Fprintf(&b, "  Source: %s\n", s.locator)
	fmt.Fprintf(&b, "  Loaded: %s\n", loaded)
	if s.cfg.Compiler != "" {
		fmt.Fprintf(&b, "  Compiler: %s\n", s.cfg.Compiler)
	}
	fmt.Fprintf(&b, "  Arena: blocks=%d bytes=%d peak=%d capacity=%d resets=%d\n",
		st.Blocks, st.Bytes, st.PeakBytes, st.Capacity, st.Resets)
	fmt.Fprintf(&b, "  Calls: %d\n", s.calls)
	fmt.Fprintln(s.out, b.String())
	return nil
}

func (s *Session) cmdList(context.Context) error {
	var entries []CatalogEntry
	if s.catalog != nil {
		entries = s.catalog.Entries()
	}
	fmt.Fprint(s.out, formatCatalog(entries))
	return nil
}

func (s *Session) cmdReload(ctx context.Context) error {
	return s.reload(ctx)
}

func formatCatalog(entries []CatalogEntry) string {
	if len(entries) == 0 {
		return "\nNo callable functions found.\n\n"
	}
	bar := strings.Repeat("═", boxWidth)
	title := fmt.Sprintf("  Available Functions (%d)", len(entries))
	pad := boxWidth - utf8.RuneCountInString(title)
	if pad < 0 {
		pad = 0
	}
	var b strings.Builder
	b.WriteString("\n╔" + bar + "╗\n")
	b.WriteString("║" + title + strings.Repeat(" ", pad) + "║\n")
	b.WriteString("╠" + bar + "╣\n")
	for _, e := range entries {
		b.WriteString("  " + e.Signature + "\n")
	}
	b.WriteString("╚" + bar + "╝\n\n")
	return b.String()
}
