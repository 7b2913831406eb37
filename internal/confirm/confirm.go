// Package confirm provides the yes/no channel the executor asks before a
// dangerous step runs. The executor never reads process input itself.
package confirm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Request describes the step awaiting approval. Step is 1-based.
type Request struct {
	Step        int
	Total       int
	Command     string
	Description string
	Dangerous   bool
}

// Confirmer decides whether a step may run.
type Confirmer interface {
	Confirm(ctx context.Context, req Request) (bool, error)
}

// Func adapts a function to Confirmer.
type Func func(ctx context.Context, req Request) (bool, error)

func (f Func) Confirm(ctx context.Context, req Request) (bool, error) {
	return f(ctx, req)
}

// Policy answers every request the same way. Used for headless runs.
type Policy bool

func (p Policy) Confirm(context.Context, Request) (bool, error) {
	return bool(p), nil
}

// Prompt asks on Out and reads a y/N answer from In. Anything other than
// "y" or "yes" declines, including end of input.
type Prompt struct {
	In  io.Reader
	Out io.Writer

	reader *bufio.Reader
}

func (p *Prompt) Confirm(ctx context.Context, req Request) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}

	fmt.Fprintf(p.Out, "\nStep %d/%d: %s\n  $ %s\n", req.Step, req.Total, req.Description, req.Command)
	if req.Dangerous {
		fmt.Fprintln(p.Out, "  WARNING: this command is potentially destructive")
	}
	fmt.Fprint(p.Out, "Execute this step? [y/N] ")

	line, err := p.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// Auto picks a confirmer for the CLI: always yes with assumeYes, an
// interactive prompt when in is a terminal, otherwise decline.
func Auto(in *os.File, out io.Writer, assumeYes bool) Confirmer {
	if assumeYes {
		return Policy(true)
	}
	if in != nil && term.IsTerminal(int(in.Fd())) {
		return &Prompt{In: in, Out: out}
	}
	return Policy(false)
}
