// Package console is the interactive side of kapsel: prompting for values,
// reading passwords without echo, and turning an interrupt into a clean
// cancellation.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"golang.org/x/term"

	"github.com/systmms/kapsel/internal/errors"
)

// Console implements requirement.Prompter over a line-oriented input stream.
// After a cancellation the console is spent: the abandoned read still owns
// the input, so every later prompt returns errors.ErrCanceled.
type Console struct {
	ctx         context.Context
	in          *bufio.Reader
	out         io.Writer
	fd          int
	tty         bool
	interactive bool
	canceled    atomic.Bool
}

type readResult struct {
	line string
	err  error
}

// NewStdio returns a console on the process standard streams. It is
// interactive only when stdin is a terminal and nonInteractive is false.
// Canceling ctx (the CLI wires it to SIGINT) aborts a pending prompt with
// errors.ErrCanceled.
func NewStdio(ctx context.Context, nonInteractive bool) *Console {
	fd := int(os.Stdin.Fd())
	tty := term.IsTerminal(fd)
	return &Console{
		ctx:         ctx,
		in:          bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		fd:          fd,
		tty:         tty,
		interactive: tty && !nonInteractive,
	}
}

// New returns a console over arbitrary streams. Passwords are read as
// ordinary lines since in is not a terminal.
func New(ctx context.Context, in io.Reader, out io.Writer, interactive bool) *Console {
	return &Console{
		ctx:         ctx,
		in:          bufio.NewReader(in),
		out:         out,
		fd:          -1,
		interactive: interactive,
	}
}

// IsInteractive reports whether prompts may be shown.
func (c *Console) IsInteractive() bool {
	return c.interactive
}

// Ask prints prompt and reads one line.
func (c *Console) Ask(prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	return c.wait(func() (string, error) {
		line, err := c.in.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	})
}

// AskPassword is Ask without echo when stdin is a terminal.
func (c *Console) AskPassword(prompt string) (string, error) {
	if !c.tty {
		return c.Ask(prompt)
	}
	fmt.Fprint(c.out, prompt)
	answer, err := c.wait(func() (string, error) {
		b, err := term.ReadPassword(c.fd)
		return string(b), err
	})
	fmt.Fprintln(c.out)
	return answer, err
}

// Tell prints one line of feedback.
func (c *Console) Tell(message string) {
	fmt.Fprintln(c.out, message)
}

// wait runs read and maps EOF and interrupts to errors.ErrCanceled.
func (c *Console) wait(read func() (string, error)) (string, error) {
	if c.canceled.Load() {
		return "", errors.ErrCanceled
	}
	done := make(chan readResult, 1)
	go func() {
		line, err := read()
		done <- readResult{line: line, err: err}
	}()

	select {
	case <-c.ctx.Done():
		c.canceled.Store(true)
		return "", errors.ErrCanceled
	case res := <-done:
		if res.err == io.EOF {
			return "", errors.ErrCanceled
		}
		if res.err != nil {
			return "", fmt.Errorf("failed to read input: %w", res.err)
		}
		return res.line, nil
	}
}
