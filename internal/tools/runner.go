package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"coho/internal/services"
)

// Result captures the output of a finished tool invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes external binaries. The zero value is usable; tests swap
// in a fake via the interface in consuming packages.
type Runner struct{}

// Run executes a binary and returns its captured output. A non-zero exit
// status is returned as an ErrExternalTool-tagged error alongside the
// captured result so callers can inspect tool output.
func (Runner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	if strings.TrimSpace(name) == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, "tools", "run", "binary name is empty", nil)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return result, nil
	}

	if ctx.Err() != nil {
		return result, ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		detail := fmt.Sprintf("%s exited with status %d", name, result.ExitCode)
		if trimmed := strings.TrimSpace(stderr.String()); trimmed != "" {
			detail += ": " + firstLine(trimmed)
		}
		return result, services.Wrap(services.ErrExternalTool, "tools", name, detail, nil)
	}
	return result, services.Wrap(services.ErrExternalTool, "tools", name, "failed to start", err)
}

// Pipe runs two binaries with the first's stdout connected to the second's
// stdin, the shape of a flac-decode-into-lame transcode.
func (Runner) Pipe(ctx context.Context, first []string, second []string) error {
	if len(first) == 0 || len(second) == 0 {
		return services.Wrap(services.ErrConfiguration, "tools", "pipe", "both commands are required", nil)
	}

	producer := exec.CommandContext(ctx, first[0], first[1:]...)
	consumer := exec.CommandContext(ctx, second[0], second[1:]...)

	pipe, err := producer.StdoutPipe()
	if err != nil {
		return fmt.Errorf("connect pipe: %w", err)
	}
	consumer.Stdin = pipe

	var producerErr, consumerErr bytes.Buffer
	producer.Stderr = &producerErr
	consumer.Stderr = &consumerErr

	if err := producer.Start(); err != nil {
		return services.Wrap(services.ErrExternalTool, "tools", first[0], "failed to start", err)
	}
	if err := consumer.Start(); err != nil {
		_ = producer.Process.Kill()
		_ = producer.Wait()
		return services.Wrap(services.ErrExternalTool, "tools", second[0], "failed to start", err)
	}

	pErr := producer.Wait()
	cErr := consumer.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if pErr != nil {
		return services.Wrap(services.ErrExternalTool, "tools", first[0], firstLine(producerErr.String()), pErr)
	}
	if cErr != nil {
		return services.Wrap(services.ErrExternalTool, "tools", second[0], firstLine(consumerErr.String()), cErr)
	}
	return nil
}

// Available reports whether the named binary can be found on PATH.
func Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}
