package adb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Result captures one adb subprocess run. TimedOut is set when the
// wall-clock limit expired and the process was killed.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
}

// Runner shells out to the adb binary with a per-call timeout.
type Runner struct {
	Bin     string
	Timeout time.Duration
}

func NewRunner(bin string, timeout time.Duration) *Runner {
	if bin == "" {
		bin = "adb"
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Runner{Bin: bin, Timeout: timeout}
}

// Run executes the adb binary with the given arguments. The returned error
// covers start failures only; nonzero exits and timeouts land in Result.
func (r *Runner) Run(ctx context.Context, args ...string) (Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.Bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		result.ExitCode = -1
		return result, nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("run %s: %w", r.Bin, err)
	}
	return result, nil
}

// Connect establishes the bridge connection to host:port.
func (r *Runner) Connect(ctx context.Context, host string, port int) (Result, error) {
	return r.Run(ctx, "connect", fmt.Sprintf("%s:%d", host, port))
}

// Disconnect drops the bridge connection to host:port.
func (r *Runner) Disconnect(ctx context.Context, host string, port int) (Result, error) {
	return r.Run(ctx, "disconnect", fmt.Sprintf("%s:%d", host, port))
}

// Shell runs a shell command on the target device.
func (r *Runner) Shell(ctx context.Context, host string, port int, command string) (Result, error) {
	return r.Run(ctx, "-s", fmt.Sprintf("%s:%d", host, port), "shell", command)
}

// Devices lists bridge-visible devices.
func (r *Runner) Devices(ctx context.Context) (Result, error) {
	return r.Run(ctx, "devices")
}

// FailureMessage extracts the user-facing error text from a failed run,
// preferring stderr and falling back to stdout.
func (res Result) FailureMessage() string {
	if res.TimedOut {
		return "timeout"
	}
	if msg := strings.TrimSpace(res.Stderr); msg != "" {
		return msg
	}
	return strings.TrimSpace(res.Stdout)
}
