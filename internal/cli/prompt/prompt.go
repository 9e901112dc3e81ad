// Package prompt implements the operator confirmation prompts used at
// checkpoint-resume and collection-reconciliation decision points.
package prompt

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
)

// Prompter asks yes/no questions on a terminal. The reader and writer are
// injectable for tests.
type Prompter struct {
	in  io.Reader
	out io.Writer

	// AssumeYes answers every question with its default without asking,
	// for non-interactive runs.
	AssumeYes bool
}

// New returns a prompter over stdin/stdout.
func New() *Prompter {
	return &Prompter{in: os.Stdin, out: os.Stdout}
}

// NewWithIO returns a prompter over the given streams.
func NewWithIO(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out}
}

// Confirm asks message and returns the operator's answer. An empty answer
// takes def.
func (p *Prompter) Confirm(message string, def bool) (bool, error) {
	if p.AssumeYes {
		return def, nil
	}

	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	if _, err := color.New(color.FgYellow).Fprintf(p.out, "%s [%s] ", message, hint); err != nil {
		return false, errors.Wrap(err, "failed to write prompt")
	}

	reader := bufio.NewReader(p.in)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, errors.Wrap(err, "failed to read prompt answer")
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
