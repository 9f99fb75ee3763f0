package dispatch

import (
	"fmt"
	"io"
	"strings"
)

// scriptedConsole is a Console replaying fixed answers. Once the answers
// run out every prompt returns io.EOF.
type scriptedConsole struct {
	answers []string

	prompts       []string
	secretPrompts []string
	out           strings.Builder
}

func newScriptedConsole(answers ...string) *scriptedConsole {
	return &scriptedConsole{answers: answers}
}

func (c *scriptedConsole) next() (string, error) {
	if len(c.answers) == 0 {
		return "", io.EOF
	}
	a := c.answers[0]
	c.answers = c.answers[1:]
	return a, nil
}

func (c *scriptedConsole) Prompt(label string) (string, error) {
	c.prompts = append(c.prompts, label)
	return c.next()
}

func (c *scriptedConsole) PromptSecret(label string) (string, error) {
	c.secretPrompts = append(c.secretPrompts, label)
	return c.next()
}

func (c *scriptedConsole) Printf(format string, args ...any) {
	fmt.Fprintf(&c.out, format, args...)
}
