package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// command describes one engine subprocess invocation.
type command struct {
	Binary      string
	Args        []string
	Env         []string
	GracePeriod time.Duration
}

// result holds the captured output of a finished subprocess.
type result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// run executes cmd and waits for it. On context cancellation the process gets
// an interrupt first and is killed after the grace period.
func run(ctx context.Context, cmd command) (*result, error) {
	if cmd.Binary == "" {
		return nil, errors.New("engine: binary is required")
	}

	grace := cmd.GracePeriod
	if grace == 0 {
		grace = 2 * time.Second
	}

	c := exec.CommandContext(ctx, cmd.Binary, cmd.Args...) //nolint:gosec // engine path comes from startup resolution
	c.Env = mergeEnv(cmd.Env)

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return c.Process.Signal(os.Interrupt)
	}
	c.WaitDelay = grace

	start := time.Now()
	err := c.Run()
	res := &result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: -1,
		Duration: time.Since(start),
	}
	if c.ProcessState != nil {
		res.ExitCode = c.ProcessState.ExitCode()
	}

	if err != nil {
		if ctx.Err() != nil {
			return res, fmt.Errorf("engine: killed by context: %w", ctx.Err())
		}
		return res, fmt.Errorf("engine: exit code %d: %w", res.ExitCode, err)
	}
	return res, nil
}

// mergeEnv appends extra variables to the parent environment. A nil result
// makes exec inherit the parent environment unchanged.
func mergeEnv(extra []string) []string {
	if len(extra) == 0 {
		return nil
	}
	return append(os.Environ(), extra...)
}
