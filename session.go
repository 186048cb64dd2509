package crepl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// State is where a Session is in its read/dispatch cycle.
type State int

const (
	AwaitingInput State = iota
	Dispatching
	Reloading
	Terminated
)

func (s State) String() string {
	switch s {
	case AwaitingInput:
		return "AwaitingInput"
	case Dispatching:
		return "Dispatching"
	case Reloading:
		return "Reloading"
	case Terminated:
		return "Terminated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// LineReader supplies input lines. It returns io.EOF at end of input and
// ErrInterrupted when the operator pressed Ctrl+C at the prompt.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// Options configures a Session. Provider and Executor are required. Memory
// must be the allocator that goes with Executor (see NativeRuntime).
type Options struct {
	Provider CodeProvider
	Executor Executor
	Memory   Memory
	Locator  string

	Out    io.Writer
	Logger *slog.Logger
	Config Config
	Now    func() time.Time
}

// Session drives one REPL: it owns the loaded module, its catalog and the
// per-line arena. It is not safe for concurrent use.
type Session struct {
	provider CodeProvider
	exec     Executor
	locator  string
	out      io.Writer
	log      *slog.Logger
	cfg      Config
	now      func() time.Time

	arena   *Arena
	module  ModuleHandle
	catalog *Catalog

	state         State
	calls         int
	lastInterrupt time.Time
}

func NewSession(opts Options) (*Session, error) {
	if opts.Provider == nil {
		return nil, errors.New("session: no code provider")
	}
	if opts.Executor == nil {
		return nil, errors.New("session: no executor")
	}
	s := &Session{
		provider: opts.Provider,
		exec:     opts.Executor,
		locator:  opts.Locator,
		out:      opts.Out,
		log:      opts.Logger,
		cfg:      opts.Config,
		now:      opts.Now,
	}
	mem := opts.Memory
	if mem == nil {
		mem = NewHeapMemory()
	}
	s.arena = NewArena(mem)
	if s.out == nil {
		s.out = io.Discard
	}
	if s.log == nil {
		s.log = discardLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	def := DefaultConfig()
	if s.cfg.InterruptWindow <= 0 {
		s.cfg.InterruptWindow = def.InterruptWindow
	}
	if s.cfg.Prompt == "" {
		s.cfg.Prompt = def.Prompt
	}
	return s, nil
}

// Open loads the module named by the locator. A failure here is fatal.
func (s *Session) Open(ctx context.Context) error {
	if err := s.load(ctx); err != nil {
		s.state = Terminated
		return err
	}
	s.state = AwaitingInput
	return nil
}

func (s *Session) load(ctx context.Context) error {
	m, err := s.provider.Load(ctx, s.locator)
	if err != nil {
		return &LoadError{Locator: s.locator, Err: err}
	}
	s.module = m
	s.catalog = NewCatalog(m.Source(), func(name string) bool {
		_, ok := m.Lookup(name)
		return ok
	})
	s.log.Debug("module loaded", "locator", s.locator, "path", m.Path(), "source_bytes", len(m.Source()))
	return nil
}

func (s *Session) State() State { return s.state }

// Catalog returns the catalog of the current module; nil before Open.
func (s *Session) Catalog() *Catalog { return s.catalog }

// Module returns the current module; nil before Open and after Close.
func (s *Session) Module() ModuleHandle { return s.module }

func (s *Session) Arena() *Arena { return s.arena }

// Calls is the number of native invocations that completed.
func (s *Session) Calls() int { return s.calls }

// Prompt is the configured prompt text.
func (s *Session) Prompt() string { return s.cfg.Prompt }

// Run reads and handles lines until the operator quits, input ends, or a
// fatal error occurs. Quit and end of input return nil.
func (s *Session) Run(ctx context.Context, r LineReader) error {
	for {
		if err := ctx.Err(); err != nil {
			s.state = Terminated
			return err
		}
		line, err := r.ReadLine(s.cfg.Prompt)
		switch {
		case errors.Is(err, io.EOF):
			s.state = Terminated
			s.goodbye()
			return nil
		case errors.Is(err, ErrInterrupted):
			if s.interrupt() {
				return nil
			}
			continue
		case err != nil:
			s.state = Terminated
			return fmt.Errorf("read input: %w", err)
		}

		err = s.HandleLine(ctx, line)
		if errors.Is(err, ErrQuit) {
			s.goodbye()
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// HandleLine processes one input line. It returns nil for handled lines,
// including lines whose errors were reported, ErrQuit for :quit, and a fatal
// error (*ReloadError, *InvocationError) that ends the session.
func (s *Session) HandleLine(ctx context.Context, line string) error {
	if s.state == Terminated {
		return ErrQuit
	}
	text := strings.TrimSpace(line)
	if text == "" {
		return nil
	}
	s.arena.Reset()
	s.log.Debug("arena reset", "resets", s.arena.Stats().Resets)

	if strings.HasPrefix(text, ":") {
		return s.runCommand(ctx, text)
	}
	return s.dispatch(text)
}

func (s *Session) dispatch(line string) error {
	if s.module == nil {
		s.errorf("no module loaded")
		return nil
	}
	s.state = Dispatching
	defer func() {
		if s.state == Dispatching {
			s.state = AwaitingInput
		}
	}()

	req, err := BuildRequest(line, s.arena, s.module.Source())
	if err != nil {
		s.errorf("%v", WrapErrorWithLine(err, line))
		return nil
	}

	fn, ok := s.module.Lookup(req.Callee)
	if !ok {
		nf := &SymbolNotFoundError{Name: req.Callee, Suggestion: s.catalog.Closest(req.Callee)}
		s.errorf("%v", nf)
		fmt.Fprintln(s.out, "Hint: Make sure the function is defined and not static")
		if nf.Suggestion != "" {
			fmt.Fprintf(s.out, "Did you mean '%s'?\n", nf.Suggestion)
		}
		return nil
	}

	sig, err := s.exec.Prepare(Tags(req.Args), req.Return)
	if err != nil {
		var se *SignatureError
		if !errors.As(err, &se) {
			err = &SignatureError{Args: Tags(req.Args), Return: req.Return, Err: err}
		}
		s.errorf("%v", err)
		return nil
	}
	defer sig.Release()

	s.log.Debug("invoke", "call", req.Signature(), "addr", fmt.Sprintf("0x%x", fn))
	raw, err := s.exec.Invoke(sig, fn, req.Args)
	var rejected *SignatureError
	if errors.As(err, &rejected) {
		s.errorf("%v", rejected)
		return nil
	}
	if err != nil {
		s.state = Terminated
		return &InvocationError{Name: req.Callee, Err: err}
	}
	s.calls++

	if out := Render(req.Return, raw, s.arena.Memory()); out != "" {
		fmt.Fprintln(s.out, s.paint(blue, "→ "+out))
	}
	return nil
}

func (s *Session) reload(ctx context.Context) error {
	s.state = Reloading
	if s.module != nil {
		if err := s.module.Close(); err != nil {
			s.log.Warn("closing module", "path", s.module.Path(), "err", err)
		}
	}
	s.module = nil
	s.catalog = nil
	s.arena.Reset()

	if err := s.load(ctx); err != nil {
		s.state = Terminated
		return &ReloadError{Err: err}
	}
	s.state = AwaitingInput
	fmt.Fprintf(s.out, "Reloaded: %s\n", s.locator)
	return nil
}

// interrupt records a Ctrl+C and reports whether it was the second one
// inside the window.
func (s *Session) interrupt() bool {
	now := s.now()
	window := s.cfg.InterruptWindow
	if !s.lastInterrupt.IsZero() && now.Sub(s.lastInterrupt) <= window {
		fmt.Fprintln(s.out, "\nExiting...")
		s.state = Terminated
		return true
	}
	s.lastInterrupt = now
	fmt.Fprintf(s.out, "\nPress Ctrl+C again within %s to quit (or type :quit)\n", humanWindow(window))
	return false
}

func humanWindow(d time.Duration) string {
	if d%time.Second == 0 {
		n := int(d / time.Second)
		if n == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", n)
	}
	return d.String()
}

func (s *Session) goodbye() {
	fmt.Fprintln(s.out, "\nGoodbye!")
}

// Close unloads the module and releases the arena.
func (s *Session) Close() error {
	s.state = Terminated
	s.arena.Reset()
	if s.module == nil {
		return nil
	}
	err := s.module.Close()
	s.module = nil
	s.catalog = nil
	return err
}

func (s *Session) errorf(format string, args ...any) {
	fmt.Fprintln(s.out, s.paint(red, "ERROR: "+fmt.Sprintf(format, args...)))
}

func (s *Session) paint(color func(string) string, text string) string {
	if !s.cfg.Color {
		return text
	}
	return color(text)
}

func red(s string) string  { return "\x1b[31m" + s + "\x1b[0m" }
func blue(s string) string { return "\x1b[94m" + s + "\x1b[0m" }
