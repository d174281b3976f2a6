// ABOUTME: External adapter invoker running a subprocess per completion
// ABOUTME: Passes model and rendered prompt as arguments, reads stdout as the reply

package backend

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/2389/chaz/internal/prompt"
)

// Adapter invokes completions through an external executable. The
// executable receives the model via --model and the full rendered prompt
// as the final argument, and writes the completion to stdout. A non-zero
// exit or empty stdout is an invocation failure.
type Adapter struct {
	command string
}

// NewAdapter creates an invoker for the given executable.
func NewAdapter(command string) *Adapter {
	return &Adapter{command: command}
}

// Invoke runs the adapter process and returns its stdout.
func (a *Adapter) Invoke(ctx context.Context, model string, p *prompt.Prompt) (string, error) {
	args := []string{"--no-stream"}
	if model != "" {
		args = append(args, "--model", model)
	}
	args = append(args, "--", p.RenderWithSystem())

	cmd := exec.CommandContext(ctx, a.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			return "", fmt.Errorf("adapter %s: %w", a.command, err)
		}
		return "", fmt.Errorf("adapter %s: %w: %s", a.command, err, detail)
	}

	out := strings.TrimRight(stdout.String(), "\n")
	if out == "" {
		// A clean exit with nothing on stdout still means no reply.
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return "", fmt.Errorf("adapter %s: %s", a.command, detail)
		}
		return "", fmt.Errorf("adapter %s: empty output", a.command)
	}
	return out, nil
}
