package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"mediaforge/logger"
)

// ErrToolNotFound is matched by every MissingToolError.
var ErrToolNotFound = errors.New("tool not found")

// MissingToolError reports an external program absent from PATH.
type MissingToolError struct {
	Tool string
}

func (e *MissingToolError) Error() string {
	return fmt.Sprintf("command '%s' not found in PATH", e.Tool)
}

func (e *MissingToolError) Unwrap() error { return ErrToolNotFound }

// ExecError is a tool that ran and failed.
type ExecError struct {
	Tool   string
	Stderr string
	Err    error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Tool, e.Err, e.Diagnostic())
}

func (e *ExecError) Unwrap() error { return e.Err }

// Diagnostic returns the last few stderr lines, which is where ffmpeg and
// magick put the actual reason.
func (e *ExecError) Diagnostic() string {
	lines := strings.Split(strings.TrimSpace(e.Stderr), "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	msg := strings.TrimSpace(strings.Join(lines, "\n"))
	if msg == "" {
		return e.Tool + " exited with " + e.Err.Error()
	}
	return msg
}

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// Tools lists every external program a backend may call.
var Tools = []string{"ffmpeg", "magick"}

func resolveTool(name string) (string, error) {
	p, err := lookPath(name)
	if err != nil {
		return "", &MissingToolError{Tool: name}
	}
	return p, nil
}

// runTool resolves name on every call so a tool installed after startup is
// picked up without a restart.
func runTool(ctx context.Context, name string, args ...string) error {
	bin, err := resolveTool(name)
	if err != nil {
		return err
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	logger.Debugf("running %s %s", name, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return &ExecError{Tool: name, Stderr: stderr.String(), Err: err}
	}
	return nil
}

// CheckTools logs which external tools are present. Missing tools are not
// fatal: only jobs that need them fail.
func CheckTools() map[string]bool {
	found := make(map[string]bool, len(Tools))
	for _, name := range Tools {
		if p, err := lookPath(name); err != nil {
			logger.Warnf("encoder tool [%s] not found in PATH; dependent conversions will fail", name)
		} else {
			found[name] = true
			logger.Debugf("encoder tool [%s] available at %s", name, p)
		}
	}
	return found
}

// ToolStatus reports, without logging, whether each tool is on PATH.
func ToolStatus() map[string]bool {
	status := make(map[string]bool, len(Tools))
	for _, name := range Tools {
		_, err := lookPath(name)
		status[name] = err == nil
	}
	return status
}
