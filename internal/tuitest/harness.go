package tuitest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
)

const (
	defaultWidth   = 120
	defaultHeight  = 32
	defaultTimeout = 10 * time.Second
	pollInterval   = 25 * time.Millisecond
)

// Step is one scripted interaction. The harness sleeps for Delay, then blocks until a
// frame shows WaitFor (when set), then writes Input.
type Step struct {
	Delay   time.Duration
	WaitFor string
	Input   []byte
}

// WaitFor returns a step that blocks until text is on screen.
func WaitFor(text string) Step {
	return Step{WaitFor: text}
}

// Type returns a step that writes text as keystrokes.
func Type(text string) Step {
	return Step{Input: []byte(text)}
}

// Press returns a step that writes a single key sequence.
func Press(key []byte) Step {
	return Step{Input: key}
}

// Pause returns a step that only sleeps.
func Pause(d time.Duration) Step {
	return Step{Delay: d}
}

var (
	// KeyEnter submits the path or the composer.
	KeyEnter = []byte{'\r'}
	// KeyCtrlC quits pdfchat.
	KeyCtrlC = []byte{3}
	// KeyCtrlN starts a new session.
	KeyCtrlN = []byte{14}
	// KeyEsc leaves the composer.
	KeyEsc = []byte{27}
	// KeyTab cycles citations.
	KeyTab = []byte{'\t'}
)

// Config describes the program under test and its script.
type Config struct {
	Command []string
	Dir     string
	// Env is appended to the current environment. See IsolatedEnv.
	Env     []string
	Width   int
	Height  int
	Steps   []Step
	Timeout time.Duration
	// AllowInterrupt accepts an exit caused by SIGINT.
	AllowInterrupt bool
}

// Recording contains the raw terminal stream plus parsed frames.
type Recording struct {
	Raw      []byte
	Frames   []Frame
	Duration time.Duration
}

// IsolatedEnv points every pdfchat state file at dir and forces embedded mode with an
// unreachable model host, so a run never touches the user's data or the network.
func IsolatedEnv(dir string) []string {
	return []string{
		"PDFCHAT_SERVER=",
		"PDFCHAT_PUSH=false",
		"PDFCHAT_DB=" + filepath.Join(dir, "pdfchat.db"),
		"PDFCHAT_CACHE_DIR=" + filepath.Join(dir, "cache"),
		"PDFCHAT_RECENT_FILE=" + filepath.Join(dir, "recent.json"),
		"PDFCHAT_LOG_FILE=" + filepath.Join(dir, "pdfchat.log"),
		"OPENAI_API_KEY=",
		"OLLAMA_HOST=http://127.0.0.1:1",
	}
}

// Run starts the command inside a PTY, replays the steps, and returns everything the
// program drew. A WaitFor that never matches fails the run with the last frame attached.
func Run(ctx context.Context, cfg Config) (*Recording, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("tuitest: command is required")
	}
	width, height, timeout := cfg.Width, cfg.Height, cfg.Timeout
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, cfg.Command[0], cfg.Command[1:]...)
	cmd.Dir = cfg.Dir
	cmd.Env = buildEnv(cfg.Env)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(height), Cols: uint16(width)})
	if err != nil {
		return nil, fmt.Errorf("tuitest: start program: %w", err)
	}
	defer func() { _ = ptmx.Close() }()

	scr := newScreen(ptmx)
	copyDone := make(chan struct{})
	go func() {
		defer close(copyDone)
		_, _ = io.Copy(scr, ptmx)
	}()

	start := time.Now()
	for i, step := range cfg.Steps {
		if err := scr.play(ctx, step); err != nil {
			return nil, fmt.Errorf("tuitest: step %d: %w", i, err)
		}
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()
	select {
	case err := <-waitErr:
		if err != nil && !(cfg.AllowInterrupt && strings.Contains(err.Error(), "signal: interrupt")) {
			return nil, fmt.Errorf("tuitest: program exited with error: %w", err)
		}
	case <-ctx.Done():
		return nil, fmt.Errorf("tuitest: timeout waiting for program exit: %w", ctx.Err())
	}

	// Closing the PTY ends the copy goroutine.
	_ = ptmx.Close()
	<-copyDone

	raw := scr.bytes()
	return &Recording{Raw: raw, Frames: parseFrames(raw), Duration: time.Since(start)}, nil
}

func buildEnv(extra []string) []string {
	env := append(os.Environ(), extra...)
	for _, entry := range env {
		if strings.HasPrefix(entry, "TERM=") {
			return env
		}
	}
	return append(env, "TERM=xterm-256color")
}

// queryReplies answers the terminal queries bubbletea and termenv send at startup.
// Without a reply the program waits for its query timeout before drawing.
var queryReplies = []struct {
	query string
	reply string
}{
	{"\x1b[6n", "\x1b[1;1R"},
	{"\x1b]10;?\x07", "\x1b]10;rgb:cccc/cccc/cccc\x07"},
	{"\x1b]10;?\x1b\\", "\x1b]10;rgb:cccc/cccc/cccc\x1b\\"},
	{"\x1b]11;?\x07", "\x1b]11;rgb:0000/0000/0000\x07"},
	{"\x1b]11;?\x1b\\", "\x1b]11;rgb:0000/0000/0000\x1b\\"},
}

// screen accumulates program output and answers terminal queries in the order they
// were asked.
type screen struct {
	mu    sync.Mutex
	raw   bytes.Buffer
	tail  []byte
	reply io.Writer
}

func newScreen(reply io.Writer) *screen {
	return &screen{reply: reply}
}

func (s *screen) Write(chunk []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw.Write(chunk)
	s.tail = append(s.tail, chunk...)
	for {
		at, n, reply := firstQuery(s.tail)
		if at < 0 {
			break
		}
		_, _ = io.WriteString(s.reply, reply)
		s.tail = s.tail[at+n:]
	}
	// Keep enough to catch a query split across reads.
	if len(s.tail) > 256 {
		s.tail = append([]byte(nil), s.tail[len(s.tail)-64:]...)
	}
	return len(chunk), nil
}

func firstQuery(buf []byte) (int, int, string) {
	at, n, reply := -1, 0, ""
	for _, q := range queryReplies {
		idx := bytes.Index(buf, []byte(q.query))
		if idx >= 0 && (at < 0 || idx < at) {
			at, n, reply = idx, len(q.query), q.reply
		}
	}
	return at, n, reply
}

func (s *screen) bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.raw.Bytes()...)
}

func (s *screen) recording() *Recording {
	raw := s.bytes()
	return &Recording{Raw: raw, Frames: parseFrames(raw)}
}

func (s *screen) play(ctx context.Context, step Step) error {
	if step.Delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(step.Delay):
		}
	}
	if step.WaitFor != "" {
		if err := s.waitFor(ctx, step.WaitFor); err != nil {
			return err
		}
	}
	if len(step.Input) == 0 {
		return nil
	}
	if _, err := s.reply.Write(step.Input); err != nil {
		return fmt.Errorf("write input: %w", err)
	}
	return nil
}

func (s *screen) waitFor(ctx context.Context, text string) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if s.recording().Contains(text) {
			return nil
		}
		select {
		case <-ctx.Done():
			last := "(no frames)"
			if frame, ok := s.recording().FinalFrame(); ok {
				last = frame.Plain
			}
			return fmt.Errorf("%q never appeared: %w\n%s", text, ctx.Err(), last)
		case <-ticker.C:
		}
	}
}
