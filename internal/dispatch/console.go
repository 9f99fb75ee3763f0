package dispatch

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Console is the line-oriented user surface of interactive mode. Prompt and
// PromptSecret return io.EOF when input is exhausted.
type Console interface {
	Prompt(label string) (string, error)
	PromptSecret(label string) (string, error)
	Printf(format string, args ...any)
}

// LineConsole reads answers line by line. Secrets are read without echo when
// the input is a terminal.
type LineConsole struct {
	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
}

// NewLineConsole creates a console over in and out.
func NewLineConsole(in io.Reader, out io.Writer) *LineConsole {
	return &LineConsole{in: in, reader: bufio.NewReader(in), out: out}
}

// Prompt prints label and returns the next line without its line ending.
func (c *LineConsole) Prompt(label string) (string, error) {
	_, _ = fmt.Fprint(c.out, label)
	line, err := c.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// PromptSecret is Prompt without echo on terminals.
func (c *LineConsole) PromptSecret(label string) (string, error) {
	f, ok := c.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return c.Prompt(label)
	}

	_, _ = fmt.Fprint(c.out, label)
	secret, err := term.ReadPassword(int(f.Fd()))
	_, _ = fmt.Fprintln(c.out)
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return string(secret), nil
}

// Printf writes formatted output.
func (c *LineConsole) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}
