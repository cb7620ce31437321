package main

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/planwright/planwright/internal/domain/task"
)

// shellWork is the default work callback: a task whose description is a
// shell command is executed with sh -c, and its output recorded. Tasks with
// an empty description complete immediately — they exist for tracking only.
// Timeout policy belongs to the callback, not the engine; here the command
// simply inherits ctx, which is cancelled when the executor stops.
func shellWork(ctx context.Context, t task.Task) (map[string]any, error) {
	cmdline := strings.TrimSpace(t.Description)
	if cmdline == "" {
		return nil, nil
	}

	started := time.Now()
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", cmdline)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	outputs := map[string]any{
		"command":     cmdline,
		"stdout":      stdout.String(),
		"stderr":      stderr.String(),
		"duration_ms": time.Since(started).Milliseconds(),
	}
	if err != nil {
		return nil, fmt.Errorf("command %q: %w (stderr: %s)", cmdline, err, strings.TrimSpace(stderr.String()))
	}
	return outputs, nil
}
