package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// TerminalPrompter blocks on a line of input from the operator terminal.
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminalPrompter returns a prompter over stdin/stdout.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(os.Stdin), out: os.Stdout}
}

// NewPrompter returns a prompter over the given reader and writer.
// Used by tests and non-terminal frontends.
func NewPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(in), out: out}
}

// Acknowledge shows message and blocks until the operator presses Enter
// or the context is canceled. EOF counts as confirmation so piped input
// does not wedge the run.
func (p *TerminalPrompter) Acknowledge(ctx context.Context, message string) error {
	fmt.Fprintln(p.out, message)

	// The read happens in a goroutine so cancellation can win the race.
	// The goroutine may outlive a canceled call; the process is exiting
	// in that case so the leak is harmless.
	done := make(chan error, 1)
	go func() {
		_, err := p.in.ReadString('\n')
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading confirmation: %w", err)
		}
		return nil
	}
}
