package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// CodeProvider supplies one-time codes during sign-in. Implementations may
// block on a human and must return when ctx ends.
type CodeProvider interface {
	Code(ctx context.Context, prompt string) (string, error)
}

// CodeFunc adapts a function to CodeProvider.
type CodeFunc func(ctx context.Context, prompt string) (string, error)

func (f CodeFunc) Code(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// PromptCodeProvider asks for codes on a terminal.
type PromptCodeProvider struct {
	out io.Writer

	mu     sync.Mutex
	lines  chan lineResult
	reader *bufio.Reader
}

type lineResult struct {
	line string
	err  error
}

// NewPromptCodeProvider reads answers from in and writes prompts to out.
func NewPromptCodeProvider(in io.Reader, out io.Writer) *PromptCodeProvider {
	return &PromptCodeProvider{out: out, reader: bufio.NewReader(in)}
}

// Code prints prompt and waits for one line of input. The read continues in
// the background after cancellation and its line is handed to the next call.
func (p *PromptCodeProvider) Code(ctx context.Context, prompt string) (string, error) {
	p.mu.Lock()
	if p.lines == nil {
		p.lines = make(chan lineResult, 1)
		go func() {
			line, err := p.reader.ReadString('\n')
			p.lines <- lineResult{line: line, err: err}
		}()
	}
	lines := p.lines
	p.mu.Unlock()

	fmt.Fprintf(p.out, "%s: ", prompt)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-lines:
		p.mu.Lock()
		p.lines = nil
		p.mu.Unlock()
		code := strings.TrimSpace(res.line)
		if res.err != nil && (res.err != io.EOF || code == "") {
			return "", fmt.Errorf("failed to read code: %w", res.err)
		}
		return code, nil
	}
}
